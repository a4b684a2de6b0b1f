// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stages

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/neuroloom/internal/evidence"
	"github.com/pdiddy/neuroloom/pkg/types"
)

// fakeModel returns canned responses per stage and records every request.
type fakeModel struct {
	mu        sync.Mutex
	responses map[string][]string
	errs      map[string]error
	requests  []Request
}

func (f *fakeModel) Generate(_ context.Context, req Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if err := f.errs[req.Stage]; err != nil {
		return "", err
	}
	queue := f.responses[req.Stage]
	if len(queue) == 0 {
		return "", errors.New("no canned response for " + req.Stage)
	}
	out := queue[0]
	if len(queue) > 1 {
		f.responses[req.Stage] = queue[1:]
	}
	return out, nil
}

func (f *fakeModel) last(stage string) Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].Stage == stage {
			return f.requests[i]
		}
	}
	return Request{}
}

type fakeSearcher struct {
	results map[string]types.RetrievalResult
	queries []string
}

func (f *fakeSearcher) Retrieve(_ context.Context, query string, _, _ int) types.RetrievalResult {
	f.queries = append(f.queries, query)
	if r, ok := f.results[query]; ok {
		return r
	}
	return types.RetrievalResult{Papers: []types.Paper{}}
}

type fileExtractor struct{}

func (fileExtractor) Extract(_ context.Context, path string) (string, error) {
	b, err := os.ReadFile(path)
	return string(b), err
}

func newStore(t *testing.T, query string) *evidence.Store {
	t.Helper()
	s := evidence.New()
	require.NoError(t, s.Apply("pipeline", evidence.Update{evidence.UserQuery: query}))
	return s
}

func apply(t *testing.T, s *evidence.Store, stage interface {
	Name() string
	Generate(context.Context, *evidence.Store) (evidence.Update, error)
}) {
	t.Helper()
	u, err := stage.Generate(context.Background(), s)
	require.NoError(t, err)
	require.NoError(t, s.Apply(stage.Name(), u))
}

func TestPlannerAndSections(t *testing.T) {
	m := &fakeModel{responses: map[string][]string{
		PlannerName:  {"  - [RESEARCH] Retrieve papers\n"},
		SectionsName: {"```markdown\n# Introduction\nWhy.\n```"},
	}}
	s := newStore(t, "melatonin and sleep onset")

	apply(t, s, &Planner{Model: m})
	apply(t, s, &SectionPlanner{Model: m})

	assert.Equal(t, "- [RESEARCH] Retrieve papers", s.Plan())
	assert.Equal(t, "# Introduction\nWhy.", s.Sections())
	assert.Contains(t, m.last(PlannerName).Prompt, "melatonin and sleep onset")
	assert.Contains(t, m.last(SectionsName).Prompt, "[RESEARCH] Retrieve papers")
}

func TestRetrieverRegistersPapers(t *testing.T) {
	search := &fakeSearcher{results: map[string]types.RetrievalResult{
		"q": {Papers: []types.Paper{
			{PaperID: "PMC1", Title: "One", PDFName: "PMC1.pdf"},
			{PaperID: "PMC2", Title: "Two", PDFName: "PMC2.pdf"},
		}},
		"follow up": {Papers: []types.Paper{
			{PaperID: "PMC2", Title: "Two", PDFName: "PMC2.pdf"},
			{PaperID: "PMC3", Title: "Three", PDFName: "PMC3.pdf"},
		}},
	}}
	s := newStore(t, "q")
	r := &Retriever{Engine: search, MaxPapers: 5, MaxPages: 25}

	apply(t, s, r)
	assert.Equal(t, map[string]string{"PMC1": "paper-1", "PMC2": "paper-2"}, s.ShortIDs())

	r.SetFollowUps([]string{"follow up"})
	apply(t, s, r)

	assert.Equal(t, []string{"q", "follow up"}, search.queries)
	assert.Equal(t, map[string]string{"PMC1": "paper-1", "PMC2": "paper-2", "PMC3": "paper-3"}, s.ShortIDs())
	papers := s.Papers()
	assert.Equal(t, "Three", papers["paper-3"].Title)
	assert.Equal(t, "paper-3", papers["paper-3"].ShortID)

	got, ok := s.Retrieved()
	require.True(t, ok)
	assert.Len(t, got.Papers, 2)
	assert.Equal(t, "follow up", got.Query)
}

func TestRetrieverRecordsBatchFailure(t *testing.T) {
	search := &fakeSearcher{results: map[string]types.RetrievalResult{
		"q": {Message: "search request failed: 500"},
	}}
	s := newStore(t, "q")

	apply(t, s, &Retriever{Engine: search, MaxPapers: 5, MaxPages: 1})

	got, ok := s.Retrieved()
	require.True(t, ok)
	assert.True(t, got.Failed())
	assert.Equal(t, "search request failed: 500", got.Message)
	assert.Empty(t, s.Papers())
}

func TestRetrieverQueries(t *testing.T) {
	s := newStore(t, "q")
	r := &Retriever{}
	assert.Equal(t, []string{"q"}, r.Queries(s))

	// A failing verdict in the store does not steer retrieval by itself.
	require.NoError(t, s.Apply(EvaluatorName, evidence.Update{evidence.ResearchEvaluation: types.Verdict{
		Grade:           types.GradeFail,
		FollowUpQueries: []types.SearchQuery{{SearchQuery: "stale"}},
	}}))
	assert.Equal(t, []string{"q"}, r.Queries(s))

	in := []string{"a", "b"}
	r.SetFollowUps(in)
	in[0] = "changed"
	assert.Equal(t, []string{"a", "b"}, r.Queries(s))

	r.SetFollowUps(nil)
	assert.Equal(t, []string{"q"}, r.Queries(s))
}

func TestContradictionFinder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PMC1.pdf"), []byte("melatonin shortens sleep onset"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PMC2.pdf"), []byte(strings.Repeat("x", 50)), 0o644))

	m := &fakeModel{responses: map[string][]string{
		ContradictionName: {"```json\n" + `{"contradictions": [
			{"text_segment": "PMC1 reports shorter onset, PMC2 reports none", "paper_ids": ["PMC1.pdf", "PMC2.pdf"], "confidence": 0.8},
			{"text_segment": "  ", "paper_ids": ["PMC1.pdf"], "confidence": 0.1}
		]}` + "\n```"},
	}}
	s := newStore(t, "q")

	apply(t, s, &ContradictionFinder{Model: m, Extractor: fileExtractor{}, Dir: dir, MaxChars: 10})

	got := s.Contradictions()
	require.Len(t, got, 1)
	assert.Equal(t, []string{"PMC1.pdf", "PMC2.pdf"}, got[0].PaperIDs)
	assert.InDelta(t, 0.8, got[0].Confidence, 1e-9)

	req := m.last(ContradictionName)
	assert.True(t, req.JSON)
	assert.Contains(t, req.Prompt, "=== PMC1.pdf ===\nmelatonin ")
	assert.NotContains(t, req.Prompt, "melatonin shortens")
	assert.Less(t, strings.Index(req.Prompt, "PMC1.pdf ==="), strings.Index(req.Prompt, "PMC2.pdf ==="))
}

// brokenExtractor fails on the named files and reads the rest.
type brokenExtractor map[string]bool

func (b brokenExtractor) Extract(ctx context.Context, path string) (string, error) {
	if b[filepath.Base(path)] {
		return "", errors.New("corrupt pdf")
	}
	return fileExtractor{}.Extract(ctx, path)
}

func TestContradictionFinderReportsUnreadablePapers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PMC1.pdf"), []byte("melatonin"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PMC2.pdf"), []byte("broken"), 0o644))
	core, logs := observer.New(zapcore.WarnLevel)
	m := &fakeModel{responses: map[string][]string{ContradictionName: {`{"contradictions": []}`}}}
	s := newStore(t, "q")

	apply(t, s, &ContradictionFinder{Model: m, Extractor: brokenExtractor{"PMC2.pdf": true}, Dir: dir, Logger: zap.New(core)})

	summary := logs.FilterMessage("some papers could not be read").All()
	require.Len(t, summary, 1)
	assert.Equal(t, int64(1), summary[0].ContextMap()["failed"])
	assert.Equal(t, int64(2), summary[0].ContextMap()["total"])
	assert.NotContains(t, m.last(ContradictionName).Prompt, "broken")
}

func TestContradictionFinderWithoutPapers(t *testing.T) {
	m := &fakeModel{}
	s := newStore(t, "q")

	apply(t, s, &ContradictionFinder{Model: m, Extractor: fileExtractor{}, Dir: t.TempDir()})

	assert.Empty(t, s.Contradictions())
	assert.Equal(t, 2, s.Version(evidence.Contradictions))
	assert.Empty(t, m.requests)
}

func TestContradictionFinderErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("text"), 0o644))
	s := newStore(t, "q")

	_, err := (&ContradictionFinder{Model: &fakeModel{responses: map[string][]string{ContradictionName: {"not json"}}},
		Extractor: fileExtractor{}, Dir: dir}).Generate(context.Background(), s)
	assert.Error(t, err)

	_, err = (&ContradictionFinder{Model: &fakeModel{}, Extractor: fileExtractor{},
		Dir: filepath.Join(dir, "missing")}).Generate(context.Background(), s)
	assert.Error(t, err)
}

func TestHypothesisRequestsThinking(t *testing.T) {
	m := &fakeModel{responses: map[string][]string{HypothesisName: {`{"hypotheses": []}`}}}
	s := newStore(t, "q")
	require.NoError(t, s.Apply(ContradictionName, evidence.Update{evidence.Contradictions: []types.Contradiction{
		{TextSegment: "dose matters", PaperIDs: []string{"a.pdf"}, Confidence: 0.5},
	}}))

	apply(t, s, &HypothesisGenerator{Model: m})

	assert.Equal(t, `{"hypotheses": []}`, s.Hypothesis())
	req := m.last(HypothesisName)
	assert.True(t, req.Thinking)
	assert.Contains(t, req.Prompt, "dose matters")
}

func TestComposerPromptCarriesCitationContract(t *testing.T) {
	m := &fakeModel{responses: map[string][]string{ComposerName: {"# Report\nClaim <cite source=\"paper-1\"/>."}}}
	s := newStore(t, "q")
	require.NoError(t, s.Apply(RetrieverName, evidence.Update{
		evidence.Papers: map[string]types.Paper{"paper-1": {ShortID: "paper-1", PaperID: "PMC1", Title: "Sleep study", PDFName: "PMC1.pdf"}},
	}))
	require.NoError(t, s.Apply(HypothesisName, evidence.Update{evidence.Hypothesis: "dose effect"}))

	apply(t, s, &Composer{Model: m})

	assert.Equal(t, "# Report\nClaim <cite source=\"paper-1\"/>.", s.FinalReport())
	prompt := m.last(ComposerName).Prompt
	assert.Contains(t, prompt, `<cite source="SHORT_ID"/>`)
	assert.Contains(t, prompt, `(for example <cite source="paper-1"/>)`)
	assert.Contains(t, prompt, "paper-1:")
	assert.Contains(t, prompt, "title: Sleep study")
	assert.Contains(t, prompt, "dose effect")
}

func TestEvaluator(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantOK   bool
		want     types.Verdict
	}{
		{
			name:     "pass",
			response: `{"grade": "pass", "comment": "enough"}`,
			wantOK:   true,
			want:     types.Verdict{Grade: types.GradePass, Comment: "enough"},
		},
		{
			name:     "fail with queries and prose",
			response: "Here is my verdict:\n{\"grade\": \"FAIL\", \"comment\": \"thin\", \"follow_up_queries\": [{\"search_query\": \"melatonin dose\"}]}",
			wantOK:   true,
			want: types.Verdict{Grade: types.GradeFail, Comment: "thin",
				FollowUpQueries: []types.SearchQuery{{SearchQuery: "melatonin dose"}}},
		},
		{name: "unknown grade", response: `{"grade": "maybe"}`},
		{name: "not json", response: "looks fine to me"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeModel{responses: map[string][]string{EvaluatorName: {tt.response}}}
			s := newStore(t, "q")

			apply(t, s, &Evaluator{Model: m})

			got, ok := s.Evaluation()
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
			assert.True(t, m.last(EvaluatorName).JSON)
		})
	}
}

func TestStageModelErrorsPropagate(t *testing.T) {
	boom := errors.New("quota exceeded")
	m := &fakeModel{errs: map[string]error{PlannerName: boom, EvaluatorName: boom}}
	s := newStore(t, "q")

	_, err := (&Planner{Model: m}).Generate(context.Background(), s)
	assert.ErrorIs(t, err, boom)
	_, err = (&Evaluator{Model: m}).Generate(context.Background(), s)
	assert.ErrorIs(t, err, boom)
}

func TestStripFenceAndDecode(t *testing.T) {
	assert.Equal(t, "body", stripFence("```\nbody\n```"))
	assert.Equal(t, "```unterminated", stripFence("```unterminated"))
	assert.Equal(t, "plain", stripFence("  plain \n"))

	var v struct{ A int }
	require.NoError(t, decodeJSON("noise {\"A\": 2} trailing", &v))
	assert.Equal(t, 2, v.A)
	assert.Error(t, decodeJSON("}{", &v))

	assert.Equal(t, "h", truncate("héllo", 2))
	assert.Equal(t, "abc", truncate("abc", 10))
}
