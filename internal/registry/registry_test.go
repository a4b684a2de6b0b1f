// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/neuroloom/pkg/types"
)

func paper(id string) types.Paper {
	return types.Paper{
		PaperID: id,
		Title:   "Title " + id,
		Authors: []string{"A. Author"},
		PDFName: types.PDFFileName(id),
		PDFURL:  "https://example.org/" + id + ".pdf",
	}
}

func TestMergeAssignsSequentialIDs(t *testing.T) {
	mapping, papers := Merge(nil, nil, []types.Paper{paper("PMC1"), paper("PMC2"), paper("PMC3")})

	want := map[string]string{"PMC1": "paper-1", "PMC2": "paper-2", "PMC3": "paper-3"}
	if diff := cmp.Diff(want, mapping); diff != "" {
		t.Errorf("mapping mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, papers, 3)
	assert.Equal(t, "PMC2", papers["paper-2"].PaperID)
	assert.Equal(t, "paper-2", papers["paper-2"].ShortID)
	assert.Equal(t, "PMC2.pdf", papers["paper-2"].PDFName)
}

func TestMergeDeduplicatesAcrossCalls(t *testing.T) {
	mapping, papers := Merge(nil, nil, []types.Paper{paper("PMC1"), paper("PMC2")})
	mapping, papers = Merge(mapping, papers, []types.Paper{paper("PMC2"), paper("PMC3"), paper("PMC1")})
	mapping, papers = Merge(mapping, papers, []types.Paper{paper("PMC3"), paper("PMC3")})

	want := map[string]string{"PMC1": "paper-1", "PMC2": "paper-2", "PMC3": "paper-3"}
	if diff := cmp.Diff(want, mapping); diff != "" {
		t.Errorf("mapping mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, papers, 3)
}

func TestMergeDuplicateWithinOneCall(t *testing.T) {
	mapping, papers := Merge(nil, nil, []types.Paper{paper("PMC9"), paper("PMC9")})
	assert.Equal(t, map[string]string{"PMC9": "paper-1"}, mapping)
	assert.Len(t, papers, 1)
}

func TestMergeDropsPapersWithoutID(t *testing.T) {
	mapping, papers := Merge(nil, nil, []types.Paper{{Title: "anonymous"}, paper("PMC1")})
	assert.Equal(t, map[string]string{"PMC1": "paper-1"}, mapping)
	assert.Len(t, papers, 1)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	mapping := map[string]string{"PMC1": "paper-1"}
	papers := map[string]types.Paper{"paper-1": paper("PMC1")}

	newMapping, newPapers := Merge(mapping, papers, []types.Paper{paper("PMC2")})

	assert.Len(t, mapping, 1)
	assert.Len(t, papers, 1)
	assert.Equal(t, "paper-2", newMapping["PMC2"])
	assert.Contains(t, newPapers, "paper-2")
}

func TestMergeNeverReassigns(t *testing.T) {
	mapping, papers := Merge(nil, nil, []types.Paper{paper("PMC1")})
	changed := paper("PMC1")
	changed.Title = "Different title"

	mapping, papers = Merge(mapping, papers, []types.Paper{changed})

	assert.Equal(t, "paper-1", mapping["PMC1"])
	assert.Equal(t, "Title PMC1", papers["paper-1"].Title)
}

func TestMergeCopiesMutableFields(t *testing.T) {
	year := 2021
	in := paper("PMC1")
	in.Year = &year

	_, papers := Merge(nil, nil, []types.Paper{in})
	year = 1999
	in.Authors[0] = "changed"

	got := papers["paper-1"]
	require.NotNil(t, got.Year)
	assert.Equal(t, 2021, *got.Year)
	assert.Equal(t, []string{"A. Author"}, got.Authors)
}

func TestRegistryIssuesWithoutGapsOrReuse(t *testing.T) {
	r := New()
	var all []string
	for round := 0; round < 4; round++ {
		var batch []types.Paper
		for i := 0; i <= round; i++ {
			batch = append(batch, paper(fmt.Sprintf("PMC%d", i)))
		}
		all = append(all, r.Merge(batch)...)
	}

	assert.Equal(t, []string{"paper-1", "paper-2", "paper-3", "paper-4"}, all)
	assert.Equal(t, 4, r.Len())
	assert.Equal(t, "paper-3", r.Mapping()["PMC2"])
	assert.Equal(t, "PMC2", r.Papers()["paper-3"].PaperID)
}

func TestRestoreContinuesNumbering(t *testing.T) {
	mapping, papers := Merge(nil, nil, []types.Paper{paper("PMC1"), paper("PMC2")})

	r := Restore(mapping, papers)
	issued := r.Merge([]types.Paper{paper("PMC2"), paper("PMC3")})

	assert.Equal(t, []string{"paper-3"}, issued)
	assert.Equal(t, 3, r.Len())
	assert.Len(t, mapping, 2, "restored inputs must not be modified")
	assert.Len(t, papers, 2)

	out := r.Papers()
	out["paper-1"] = types.Paper{}
	assert.Equal(t, "PMC1", r.Papers()["paper-1"].PaperID)

	empty := Restore(nil, nil)
	assert.Empty(t, empty.Merge(nil))
	assert.Equal(t, 0, empty.Len())
}
