// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evidence

import (
	"fmt"

	"github.com/pdiddy/neuroloom/pkg/types"
)

// Channel names a slot on the blackboard. The names are the stable contract
// between stages.
type Channel string

const (
	UserQuery                Channel = "user_query"
	ResearchPlan             Channel = "research_plan"
	ReportSections           Channel = "report_sections"
	RetrievedPapers          Channel = "retrieved_papers"
	Papers                   Channel = "papers"
	PaperIDToShortID         Channel = "paper_id_to_short_id"
	Contradictions           Channel = "contradictions"
	Hypothesis               Channel = "hypothesis"
	FinalReport              Channel = "final_report"
	FinalReportWithCitations Channel = "final_report_with_citations"
	ResearchEvaluation       Channel = "research_evaluation"
)

// Channels lists every channel in pipeline order.
var Channels = []Channel{
	UserQuery,
	ResearchPlan,
	ReportSections,
	RetrievedPapers,
	Papers,
	PaperIDToShortID,
	Contradictions,
	Hypothesis,
	FinalReport,
	FinalReportWithCitations,
	ResearchEvaluation,
}

// additive reports whether writes to ch merge into the existing value
// instead of replacing it.
func (ch Channel) additive() bool {
	return ch == Papers || ch == PaperIDToShortID
}

// Update is a partial state update produced by a stage.
type Update map[Channel]any

// checkType validates that v has the Go type carried by ch.
func checkType(ch Channel, v any) error {
	ok := false
	switch ch {
	case UserQuery, ResearchPlan, ReportSections, Hypothesis, FinalReport, FinalReportWithCitations:
		_, ok = v.(string)
	case RetrievedPapers:
		_, ok = v.(types.RetrievalResult)
	case Papers:
		_, ok = v.(map[string]types.Paper)
	case PaperIDToShortID:
		_, ok = v.(map[string]string)
	case Contradictions:
		_, ok = v.([]types.Contradiction)
	case ResearchEvaluation:
		_, ok = v.(types.Verdict)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
	}
	if !ok {
		return fmt.Errorf("%w: channel %s does not accept %T", ErrType, ch, v)
	}
	return nil
}
