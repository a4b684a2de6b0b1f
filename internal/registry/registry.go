// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry assigns stable short identifiers (paper-N) to retrieved
// papers. It is a pure data structure with no I/O.
//
// Short ids are issued in strictly increasing order starting at 1. The next
// number is derived from the mapping size, so a mapping must only grow and
// must not be merged into concurrently.
package registry

import (
	"maps"
	"strconv"

	"github.com/pdiddy/neuroloom/pkg/types"
)

const shortIDPrefix = "paper-"

// FormatShortID returns the short id for sequence number n.
func FormatShortID(n int) string {
	return shortIDPrefix + strconv.Itoa(n)
}

// Merge folds newly retrieved papers into an existing paperId→short id
// mapping and short id→paper map. The inputs are not modified; updated
// copies are returned.
//
// A paperId that already has a short id is skipped, which deduplicates
// papers across repeated retrieval runs. Papers without a paperId cannot be
// cited and are dropped.
func Merge(mapping map[string]string, papers map[string]types.Paper, incoming []types.Paper) (map[string]string, map[string]types.Paper) {
	outMapping := make(map[string]string, len(mapping)+len(incoming))
	maps.Copy(outMapping, mapping)
	outPapers := make(map[string]types.Paper, len(papers)+len(incoming))
	maps.Copy(outPapers, papers)

	for _, p := range incoming {
		if p.PaperID == "" {
			continue
		}
		if _, ok := outMapping[p.PaperID]; ok {
			continue
		}
		shortID := FormatShortID(len(outMapping) + 1)
		outMapping[p.PaperID] = shortID
		outPapers[shortID] = curate(shortID, p)
	}
	return outMapping, outPapers
}

// curate copies the fields a citation needs into a fresh record.
func curate(shortID string, p types.Paper) types.Paper {
	rec := types.Paper{
		ShortID: shortID,
		PaperID: p.PaperID,
		Title:   p.Title,
		Journal: p.Journal,
		PDFName: p.PDFName,
		PDFURL:  p.PDFURL,
	}
	if p.Year != nil {
		y := *p.Year
		rec.Year = &y
	}
	if p.Authors != nil {
		rec.Authors = append([]string{}, p.Authors...)
	}
	return rec
}

// Registry holds one session's mapping. It is not safe for concurrent use.
type Registry struct {
	mapping map[string]string
	papers  map[string]types.Paper
}

// New returns an empty registry.
func New() *Registry {
	return Restore(nil, nil)
}

// Restore returns a registry continuing from an existing mapping and paper
// map, as held by the evidence store. The inputs are copied.
func Restore(mapping map[string]string, papers map[string]types.Paper) *Registry {
	r := &Registry{mapping: maps.Clone(mapping), papers: maps.Clone(papers)}
	if r.mapping == nil {
		r.mapping = map[string]string{}
	}
	if r.papers == nil {
		r.papers = map[string]types.Paper{}
	}
	return r
}

// Merge adds incoming papers and returns the short ids issued by this call,
// in issue order.
func (r *Registry) Merge(incoming []types.Paper) []string {
	before := len(r.mapping)
	r.mapping, r.papers = Merge(r.mapping, r.papers, incoming)
	issued := make([]string, 0, len(r.mapping)-before)
	for n := before + 1; n <= len(r.mapping); n++ {
		issued = append(issued, FormatShortID(n))
	}
	return issued
}

// Len returns the number of registered papers.
func (r *Registry) Len() int {
	return len(r.mapping)
}

// Papers returns a copy of the short id→paper map.
func (r *Registry) Papers() map[string]types.Paper {
	return maps.Clone(r.papers)
}

// Mapping returns a copy of the paperId→short id map.
func (r *Registry) Mapping() map[string]string {
	return maps.Clone(r.mapping)
}
