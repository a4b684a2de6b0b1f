// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const binPdftotext = "pdftotext"

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Pdftotext extracts text with the poppler pdftotext binary, keeping the
// physical layout of each page.
type Pdftotext struct {
	exec executor
}

// NewPdftotext returns an extractor backed by the pdftotext binary on PATH.
func NewPdftotext() *Pdftotext {
	return &Pdftotext{exec: osExecutor{}}
}

// ErrNotInstalled is returned by Check when pdftotext is not on PATH.
var ErrNotInstalled = errors.New("pdftotext not found on PATH (install poppler-utils)")

// Check returns ErrNotInstalled when pdftotext cannot be found.
func (p *Pdftotext) Check() error {
	if _, err := p.exec.LookPath(binPdftotext); err != nil {
		return fmt.Errorf("%w: %v", ErrNotInstalled, err)
	}
	return nil
}

// Extract runs pdftotext on pdfPath and returns its output.
func (p *Pdftotext) Extract(ctx context.Context, pdfPath string) (string, error) {
	out, err := p.exec.Output(ctx, binPdftotext, "-layout", "-enc", "UTF-8", pdfPath, "-")
	if err != nil {
		return "", fmt.Errorf("extracting text from %s: %w", pdfPath, err)
	}
	return string(out), nil
}
