// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stages implements the pipeline stages. Each stage reads the
// channels it needs from the evidence store and returns the channels it
// writes; the orchestrator applies the update.
package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/neuroloom/internal/evidence"
	"github.com/pdiddy/neuroloom/internal/pdftext"
	"github.com/pdiddy/neuroloom/internal/registry"
	"github.com/pdiddy/neuroloom/pkg/types"
)

// Stage names. Each is also the owner recorded for the channels the stage writes.
const (
	PlannerName       = "plan_generator"
	SectionsName      = "section_planner"
	RetrieverName     = "retriever_agent"
	ContradictionName = "contra_agent"
	HypothesisName    = "hypothesis_agent"
	ComposerName      = "report_composer"
	EvaluatorName     = "research_evaluator"
)

// DefaultMaxChars bounds the text of one paper sent to the contradiction stage.
const DefaultMaxChars = 40000

func nopIfNil(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Planner drafts the research plan.
type Planner struct {
	Model Model
}

func (p *Planner) Name() string { return PlannerName }

func (p *Planner) Generate(ctx context.Context, s *evidence.Store) (evidence.Update, error) {
	prompt, err := render(planPromptTmpl, promptData{Query: s.Query()})
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}
	out, err := p.Model.Generate(ctx, Request{Stage: PlannerName, Prompt: prompt})
	if err != nil {
		return nil, err
	}
	return evidence.Update{evidence.ResearchPlan: strings.TrimSpace(out)}, nil
}

// SectionPlanner writes the report outline.
type SectionPlanner struct {
	Model Model
}

func (p *SectionPlanner) Name() string { return SectionsName }

func (p *SectionPlanner) Generate(ctx context.Context, s *evidence.Store) (evidence.Update, error) {
	prompt, err := render(sectionsPromptTmpl, promptData{Query: s.Query(), Plan: s.Plan()})
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}
	out, err := p.Model.Generate(ctx, Request{Stage: SectionsName, Prompt: prompt})
	if err != nil {
		return nil, err
	}
	return evidence.Update{evidence.ReportSections: stripFence(out)}, nil
}

// Searcher runs one bounded retrieval. *retrieve.Engine satisfies it.
type Searcher interface {
	Retrieve(ctx context.Context, query string, maxPapers, maxPages int) types.RetrievalResult
}

// Retriever downloads papers for the user query, or for the follow-up
// queries handed to it for the current iteration, and registers them under
// short ids.
type Retriever struct {
	Engine    Searcher
	MaxPapers int
	MaxPages  int
	Logger    *zap.Logger

	followUps []string
}

func (r *Retriever) Name() string { return RetrieverName }

// SetFollowUps sets the queries the next Generate searches. An empty list
// makes it search the user query.
func (r *Retriever) SetFollowUps(queries []string) {
	r.followUps = append([]string(nil), queries...)
}

// Queries returns the searches the next Generate runs.
func (r *Retriever) Queries(s *evidence.Store) []string {
	if len(r.followUps) > 0 {
		return append([]string(nil), r.followUps...)
	}
	return []string{s.Query()}
}

func (r *Retriever) Generate(ctx context.Context, s *evidence.Store) (evidence.Update, error) {
	log := nopIfNil(r.Logger)
	queries := r.Queries(s)

	combined := types.RetrievalResult{Query: strings.Join(queries, "; ")}
	var failures []string
	for _, q := range queries {
		res := r.Engine.Retrieve(ctx, q, r.MaxPapers, r.MaxPages)
		if res.Failed() {
			log.Warn("retrieval failed", zap.String("query", q), zap.String("message", res.Message))
			failures = append(failures, res.Message)
			continue
		}
		log.Info("papers retrieved", zap.String("query", q), zap.Int("count", len(res.Papers)))
		combined.Papers = append(combined.Papers, res.Papers...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(combined.Papers) == 0 && len(failures) > 0 {
		combined.Message = strings.Join(failures, "; ")
	}

	reg := registry.Restore(s.ShortIDs(), s.Papers())
	issued := reg.Merge(combined.Papers)
	log.Info("papers registered", zap.Strings("issued", issued), zap.Int("total", reg.Len()))
	return evidence.Update{
		evidence.RetrievedPapers:  combined,
		evidence.Papers:           reg.Papers(),
		evidence.PaperIDToShortID: reg.Mapping(),
	}, nil
}

// ContradictionFinder reads every downloaded PDF and asks the model for
// conflicting claims.
type ContradictionFinder struct {
	Model     Model
	Extractor pdftext.Extractor
	Dir       string
	// MaxChars truncates each paper's text; 0 uses DefaultMaxChars.
	MaxChars int
	Logger   *zap.Logger
}

func (c *ContradictionFinder) Name() string { return ContradictionName }

func (c *ContradictionFinder) Generate(ctx context.Context, s *evidence.Store) (evidence.Update, error) {
	log := nopIfNil(c.Logger)
	batch, err := pdftext.LoadAll(ctx, c.Extractor, c.Dir, log)
	if err != nil {
		return nil, err
	}
	if batch.HasFailures() {
		log.Warn("some papers could not be read",
			zap.Int("failed", batch.Failed), zap.Int("total", batch.Total()))
	}
	if len(batch.Texts) == 0 {
		log.Warn("no paper text available, skipping contradiction analysis", zap.String("dir", c.Dir))
		return evidence.Update{evidence.Contradictions: []types.Contradiction{}}, nil
	}

	limit := c.MaxChars
	if limit <= 0 {
		limit = DefaultMaxChars
	}
	papers := make([]promptPaper, 0, len(batch.Texts))
	for _, name := range sortedKeys(batch.Texts) {
		papers = append(papers, promptPaper{Name: name, Text: truncate(batch.Texts[name], limit)})
	}

	prompt, err := render(contradictionsPromptTmpl, promptData{Query: s.Query(), Papers: papers})
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}
	out, err := c.Model.Generate(ctx, Request{Stage: ContradictionName, Prompt: prompt, JSON: true})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Contradictions []types.Contradiction `json:"contradictions"`
	}
	if err := decodeJSON(out, &resp); err != nil {
		return nil, fmt.Errorf("parsing contradictions: %w", err)
	}
	found := make([]types.Contradiction, 0, len(resp.Contradictions))
	for i, ct := range resp.Contradictions {
		if strings.TrimSpace(ct.TextSegment) == "" {
			log.Debug("dropping contradiction without text", zap.Int("index", i))
			continue
		}
		if ct.PaperIDs == nil {
			ct.PaperIDs = []string{}
		}
		found = append(found, ct)
	}
	log.Info("contradictions found", zap.Int("count", len(found)), zap.Int("papers", len(papers)))
	return evidence.Update{evidence.Contradictions: found}, nil
}

// HypothesisGenerator proposes explanations for the contradictions.
type HypothesisGenerator struct {
	Model Model
}

func (h *HypothesisGenerator) Name() string { return HypothesisName }

func (h *HypothesisGenerator) Generate(ctx context.Context, s *evidence.Store) (evidence.Update, error) {
	contradictions, err := indentJSON(s.Contradictions())
	if err != nil {
		return nil, err
	}
	prompt, err := render(hypothesisPromptTmpl, promptData{Query: s.Query(), Contradictions: contradictions})
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}
	out, err := h.Model.Generate(ctx, Request{Stage: HypothesisName, Prompt: prompt, JSON: true, Thinking: true})
	if err != nil {
		return nil, err
	}
	return evidence.Update{evidence.Hypothesis: stripFence(out)}, nil
}

// Composer writes the report with inline citation tags.
type Composer struct {
	Model Model
}

func (c *Composer) Name() string { return ComposerName }

func (c *Composer) Generate(ctx context.Context, s *evidence.Store) (evidence.Update, error) {
	data, err := analysisData(s)
	if err != nil {
		return nil, err
	}
	data.Plan = s.Plan()
	data.Sections = s.Sections()
	prompt, err := render(composePromptTmpl, data)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}
	out, err := c.Model.Generate(ctx, Request{Stage: ComposerName, Prompt: prompt})
	if err != nil {
		return nil, err
	}
	return evidence.Update{evidence.FinalReport: stripFence(out)}, nil
}

// Evaluator grades the accumulated evidence. A response that cannot be read
// as a verdict is logged and nothing is written, which the loop treats as a
// failing iteration.
type Evaluator struct {
	Model  Model
	Logger *zap.Logger
}

func (e *Evaluator) Name() string { return EvaluatorName }

func (e *Evaluator) Generate(ctx context.Context, s *evidence.Store) (evidence.Update, error) {
	log := nopIfNil(e.Logger)
	data, err := analysisData(s)
	if err != nil {
		return nil, err
	}
	data.Report = s.FinalReport()
	prompt, err := render(evaluatePromptTmpl, data)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}
	out, err := e.Model.Generate(ctx, Request{Stage: EvaluatorName, Prompt: prompt, JSON: true})
	if err != nil {
		return nil, err
	}

	var v types.Verdict
	if err := decodeJSON(out, &v); err != nil {
		log.Warn("unreadable verdict", zap.Error(err))
		return nil, nil
	}
	v.Grade = types.Grade(strings.ToLower(strings.TrimSpace(string(v.Grade))))
	if v.Grade != types.GradePass && v.Grade != types.GradeFail {
		log.Warn("verdict has unknown grade", zap.String("grade", string(v.Grade)))
		return nil, nil
	}
	return evidence.Update{evidence.ResearchEvaluation: v}, nil
}

// analysisData fills the prompt fields shared by composition and evaluation.
func analysisData(s *evidence.Store) (promptData, error) {
	papers, err := yaml.Marshal(s.Papers())
	if err != nil {
		return promptData{}, fmt.Errorf("marshaling papers: %w", err)
	}
	contradictions, err := indentJSON(s.Contradictions())
	if err != nil {
		return promptData{}, err
	}
	return promptData{
		Query:          s.Query(),
		Papers:         string(papers),
		Contradictions: contradictions,
		Hypothesis:     s.Hypothesis(),
	}, nil
}

func indentJSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling prompt data: %w", err)
	}
	return string(b), nil
}
