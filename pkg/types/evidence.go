// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Contradiction is a disagreement between two or more retrieved papers as
// described by the contradiction stage.
type Contradiction struct {
	// TextSegment is the synthesized description of the disagreement.
	TextSegment string `json:"text_segment" yaml:"text_segment"`

	// PaperIDs lists the PDF file names of the papers involved.
	PaperIDs []string `json:"paper_ids" yaml:"paper_ids"`

	// Confidence is in [0,1] by contract of the producing stage. Not validated.
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Grade is the evaluator's decision on accumulated research.
type Grade string

const (
	GradePass Grade = "pass"
	GradeFail Grade = "fail"
)

// SearchQuery is one follow-up query proposed by the evaluator.
type SearchQuery struct {
	SearchQuery string `json:"search_query" yaml:"search_query"`
}

// Verdict is the research evaluation written to research_evaluation.
type Verdict struct {
	Grade           Grade         `json:"grade" yaml:"grade"`
	Comment         string        `json:"comment" yaml:"comment"`
	FollowUpQueries []SearchQuery `json:"follow_up_queries,omitempty" yaml:"follow_up_queries,omitempty"`
}

// Passed reports whether the research was judged sufficient.
func (v Verdict) Passed() bool {
	return v.Grade == GradePass
}

// Queries returns the non-empty follow-up query strings in order.
func (v Verdict) Queries() []string {
	var qs []string
	for _, q := range v.FollowUpQueries {
		if q.SearchQuery != "" {
			qs = append(qs, q.SearchQuery)
		}
	}
	return qs
}

// Session is a serialisable snapshot of one session's evidence store.
type Session struct {
	ID        string    `json:"id" yaml:"id"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`

	UserQuery      string `json:"user_query,omitempty" yaml:"user_query,omitempty"`
	ResearchPlan   string `json:"research_plan,omitempty" yaml:"research_plan,omitempty"`
	ReportSections string `json:"report_sections,omitempty" yaml:"report_sections,omitempty"`

	RetrievedPapers  *RetrievalResult `json:"retrieved_papers,omitempty" yaml:"retrieved_papers,omitempty"`
	Papers           map[string]Paper `json:"papers,omitempty" yaml:"papers,omitempty"`
	PaperIDToShortID map[string]string `json:"paper_id_to_short_id,omitempty" yaml:"paper_id_to_short_id,omitempty"`

	Contradictions []Contradiction `json:"contradictions,omitempty" yaml:"contradictions,omitempty"`
	Hypothesis     string          `json:"hypothesis,omitempty" yaml:"hypothesis,omitempty"`

	FinalReport              string `json:"final_report,omitempty" yaml:"final_report,omitempty"`
	FinalReportWithCitations string `json:"final_report_with_citations,omitempty" yaml:"final_report_with_citations,omitempty"`

	ResearchEvaluation *Verdict `json:"research_evaluation,omitempty" yaml:"research_evaluation,omitempty"`
}
