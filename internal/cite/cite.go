// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cite resolves inline citation tags in a composed report into
// human-readable references to retrieved papers.
package cite

import (
	"regexp"

	"go.uber.org/zap"

	"github.com/pdiddy/neuroloom/pkg/types"
)

// UnknownSource replaces a tag whose id is not in the registry.
const UnknownSource = "[Unknown Source]"

var (
	tagPattern   = regexp.MustCompile(`<cite\s+source\s*=\s*["']?\s*(paper-\d+|src-\d+)\s*["']?\s*/>`)
	spacePattern = regexp.MustCompile(`\s+([.,;:])`)
)

// Tag returns the markup the composer emits for a short id.
func Tag(shortID string) string {
	return `<cite source="` + shortID + `"/>`
}

// Resolver rewrites citation tags.
type Resolver struct {
	Logger *zap.Logger
}

// Resolve replaces every well-formed tag with the cited paper's reference,
// or with UnknownSource when the id is not in papers. Whitespace before
// . , ; : is then removed. Text that does not match the tag grammar is left
// as it is, so Resolve never fails and applying it twice changes nothing.
func (r Resolver) Resolve(report string, papers map[string]types.Paper) string {
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}
	out := tagPattern.ReplaceAllStringFunc(report, func(tag string) string {
		id := tagPattern.FindStringSubmatch(tag)[1]
		p, ok := papers[id]
		if !ok {
			log.Warn("invalid citation tag replaced", zap.String("tag", tag))
			return UnknownSource
		}
		return p.Citation()
	})
	return spacePattern.ReplaceAllString(out, "$1")
}

// Unresolved returns the distinct ids cited in report that papers does not
// contain, in order of first appearance.
func Unresolved(report string, papers map[string]types.Paper) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, m := range tagPattern.FindAllStringSubmatch(report, -1) {
		id := m[1]
		if _, ok := papers[id]; ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// Cited returns the distinct known ids cited in report, in order of first
// appearance.
func Cited(report string, papers map[string]types.Paper) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, m := range tagPattern.FindAllStringSubmatch(report, -1) {
		id := m[1]
		if _, ok := papers[id]; !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
