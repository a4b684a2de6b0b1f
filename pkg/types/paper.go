// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the neuroloom pipeline.
// Implements: paper records and short ids (retrieval, registry);
//
//	contradictions, verdicts and session snapshots (evidence store);
//	per-stage configuration.
package types

import "fmt"

// Defaults applied when a search record omits a field.
const (
	UnknownTitle   = "Unknown Title"
	UnknownPaperID = "unknown"
)

// Paper is one retrieved publication. It is created when its PDF has been
// downloaded and is not modified afterwards.
type Paper struct {
	// ShortID is the session-local label (paper-N) assigned by the registry.
	// Empty until the record has been merged.
	ShortID string `json:"short_id,omitempty" yaml:"short_id,omitempty"`

	// PaperID is the source-assigned identifier (Europe PMC id).
	PaperID string `json:"paperId" yaml:"paperId"`

	// Title is the paper title with inline markup removed.
	Title string `json:"title" yaml:"title"`

	// Year is the publication year, nil when the source did not report one.
	Year *int `json:"year,omitempty" yaml:"year,omitempty"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Journal is the journal title, empty when absent.
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`

	// PDFName is the file name inside the artifact directory ({paperId}.pdf).
	PDFName string `json:"pdf_name" yaml:"pdf_name"`

	// PDFURL is the open-access link the PDF was downloaded from.
	PDFURL string `json:"pdf_url" yaml:"pdf_url"`
}

// PDFFileName returns the artifact file name for a paper id.
func PDFFileName(paperID string) string {
	return paperID + ".pdf"
}

// Citation renders the paper the way the report shows a resolved citation.
func (p Paper) Citation() string {
	title := p.Title
	if title == "" {
		title = "Untitled Paper"
	}
	name := p.PDFName
	if name == "" {
		name = "unknown.pdf"
	}
	if p.PDFURL != "" {
		return fmt.Sprintf("[%s (%s)](%s)", title, name, p.PDFURL)
	}
	return fmt.Sprintf("%s (%s)", title, name)
}
