// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdftext extracts plain text from the PDFs in the artifact
// directory so analysis stages can read the papers.
package pdftext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Extractor turns one PDF file into text.
type Extractor interface {
	Extract(ctx context.Context, pdfPath string) (string, error)
}

// Batch holds the outcome of loading a directory.
type Batch struct {
	// Texts maps file name (not path) to extracted text.
	Texts  map[string]string
	Loaded int
	Failed int
}

// Total returns the number of PDFs attempted.
func (b Batch) Total() int {
	return b.Loaded + b.Failed
}

// HasFailures reports whether any file could not be read.
func (b Batch) HasFailures() bool {
	return b.Failed > 0
}

// LoadAll extracts every *.pdf (case-insensitive) directly inside dir.
// A missing directory is an error; a file that cannot be extracted is
// logged and skipped.
func LoadAll(ctx context.Context, ex Extractor, dir string, logger *zap.Logger) (Batch, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Batch{}, fmt.Errorf("reading paper directory %s: %w", dir, err)
	}

	b := Batch{Texts: make(map[string]string)}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return b, err
		}
		text, err := ex.Extract(ctx, filepath.Join(dir, e.Name()))
		if err != nil {
			b.Failed++
			logger.Warn("pdf text extraction failed", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		b.Texts[e.Name()] = text
		b.Loaded++
	}
	logger.Debug("pdf texts loaded",
		zap.String("dir", dir), zap.Int("loaded", b.Loaded), zap.Int("failed", b.Failed))
	return b, nil
}
