// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/neuroloom/pkg/types"
)

var testPapers = map[string]types.Paper{
	"paper-1": {ShortID: "paper-1", PaperID: "a", Title: "T", PDFName: "a.pdf", PDFURL: "http://x"},
	"paper-2": {ShortID: "paper-2", PaperID: "b", Title: "Sleep", PDFName: "b.pdf"},
	"src-3":   {Title: "Legacy", PDFName: "c.pdf", PDFURL: "http://c"},
	"paper-4": {PaperID: "d"},
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		report string
		want   string
	}{
		{"known with url", `See <cite source="paper-1"/> .`, "See [T (a.pdf)](http://x)."},
		{"unknown id", `Claim <cite source="paper-9"/>.`, "Claim [Unknown Source]."},
		{"no url", `As shown <cite source="paper-2"/>, sleep matters.`, "As shown Sleep (b.pdf), sleep matters."},
		{"src prefix", `Old <cite source="src-3"/>`, "Old [Legacy (c.pdf)](http://c)"},
		{"missing fields", `X <cite source="paper-4"/>`, "X Untitled Paper (unknown.pdf)"},
		{"single quotes", `A <cite source='paper-1'/>`, "A [T (a.pdf)](http://x)"},
		{"unquoted and spaced", `A <cite   source = paper-2 />`, "A Sleep (b.pdf)"},
		{"malformed left verbatim", `A <cite source="doc-1"/> and <cite src="paper-1"/>`, `A <cite source="doc-1"/> and <cite src="paper-1"/>`},
		{"punctuation cleanup", "one , two ; three :\n.", "one, two; three:."},
		{"adjacent tags", `<cite source="paper-1"/><cite source="paper-2"/>`, "[T (a.pdf)](http://x)Sleep (b.pdf)"},
		{"empty", "", ""},
	}
	r := Resolver{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.report, testPapers))
		})
	}
}

func TestResolveIdempotent(t *testing.T) {
	r := Resolver{}
	reports := []string{
		`See <cite source="paper-1"/> . Also <cite source="paper-9"/> ; done`,
		`A <cite source="doc-1"/> , b`,
		"plain text .",
	}
	for _, report := range reports {
		once := r.Resolve(report, testPapers)
		assert.Equal(t, once, r.Resolve(once, testPapers), report)
	}
}

func TestResolveWarnsOnUnknown(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := Resolver{Logger: zap.New(core)}

	r.Resolve(`<cite source="paper-1"/> <cite source="paper-7"/>`, testPapers)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, `<cite source="paper-7"/>`, entries[0].ContextMap()["tag"])
}

func TestUnresolvedAndCited(t *testing.T) {
	report := `a <cite source="paper-9"/> b <cite source="paper-1"/> c <cite source="paper-9"/> d <cite source="src-5"/> e <cite source="paper-1"/>`

	assert.Equal(t, []string{"paper-9", "src-5"}, Unresolved(report, testPapers))
	assert.Equal(t, []string{"paper-1"}, Cited(report, testPapers))
	assert.Nil(t, Unresolved("no tags", testPapers))
}

func TestTagRoundTrip(t *testing.T) {
	got := Resolver{}.Resolve(Tag("paper-2"), testPapers)
	assert.Equal(t, "Sleep (b.pdf)", got)
}
