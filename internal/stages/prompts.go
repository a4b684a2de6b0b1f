// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stages

import (
	"bytes"
	"text/template"

	"github.com/pdiddy/neuroloom/internal/cite"
)

var planPromptTmpl = template.Must(template.New("plan").Parse(`You are the pipeline planner of a literature review system that looks for contradictions across research papers.
Write the plan that the downstream stages will follow for the research question below.

The plan must always contain these steps, in this order:
- [RESEARCH] Retrieve relevant open-access papers from Europe PMC.
- [DELIVERABLE] Extract contradictions across the retrieved papers.
- [DELIVERABLE] Generate explanatory hypotheses that could reconcile each contradiction.
- [DELIVERABLE] Compile a structured report with citations.

You may add steps marked [RESEARCH][NEW] or [DELIVERABLE][NEW], or [DELIVERABLE][IMPLIED] when a core step implies a useful extra deliverable such as a table or timeline.
Do not answer the question and do not summarize research content. Output only the plan.

Research question:
{{.Query}}
`))

var sectionsPromptTmpl = template.Must(template.New("sections").Parse(`You are a report architect. Design the outline of the final research report for the question and plan below.

These three sections are mandatory and must appear in this order:
1. # Retrieved Papers
2. # Contradictions & Gaps
3. # Proposed Hypotheses

Add 1 to 3 supplementary sections around them (for example an introduction and a conclusion) for 4 to 6 sections in total.
Ignore inline tags such as [MODIFIED], [NEW], [RESEARCH] and [DELIVERABLE] in the plan.
Do not include a References or Sources section.
For each section write the markdown heading followed by a one-sentence overview.

Research question:
{{.Query}}

Research plan:
{{.Plan}}
`))

var contradictionsPromptTmpl = template.Must(template.New("contradictions").Parse(`You are an expert clinical research analyst. Identify contradictions across the research papers below.

Treat each paper as an independent source: extract its key claims, compare them with the claims of every other paper, and report each case where two or more papers present conflicting findings on the same specific topic.
Base the analysis only on the texts provided. Do not use outside knowledge.

Respond with a single JSON object of this shape and nothing else:
{"contradictions": [{"text_segment": "summary of the conflicting claims", "paper_ids": ["first.pdf", "second.pdf"], "confidence": 0.9}]}
paper_ids are the file names given in the headers below. confidence is between 0 and 1.
Return {"contradictions": []} when there are none.

Research question:
{{.Query}}
{{range .Papers}}
=== {{.Name}} ===
{{.Text}}
{{end}}`))

var hypothesisPromptTmpl = template.Must(template.New("hypothesis").Parse(`You are an expert biomedical researcher. For each contradiction below propose 1 to 3 plausible hypotheses that could account for the discrepancy.

Each hypothesis must be clearly linked to its contradiction, concise, and scientifically plausible. Do not invent data.

Respond with a single JSON object of this shape:
{"hypotheses": [{"contradiction_id": 1, "text_segment": "original contradictory claim", "hypotheses": ["explanation one", "explanation two"]}]}

Research question:
{{.Query}}

Contradictions:
{{.Contradictions}}
`))

var composePromptTmpl = template.Must(template.New("compose").Funcs(template.FuncMap{"cite": cite.Tag}).Parse(`Assemble a complete, human-readable research report in Markdown from the pipeline outputs below.

Follow the report structure. Place the contradictions and hypotheses in their sections. Do not output JSON.
Cite a paper by writing the tag {{cite "SHORT_ID"}} right after the claim it supports, where SHORT_ID is the paper's key in the papers list (for example {{cite "paper-1"}}). Do not cite any other way and do not invent ids.

Research question:
{{.Query}}

Research plan:
{{.Plan}}

Report structure:
{{.Sections}}

Papers (keyed by short id):
{{.Papers}}
Contradictions:
{{.Contradictions}}

Hypotheses:
{{.Hypothesis}}
`))

var evaluatePromptTmpl = template.Must(template.New("evaluate").Parse(`You are a critical research reviewer. Decide whether the evidence gathered so far answers the research question well enough to write the final report.

Grade "pass" when enough relevant papers were found and the contradictions and hypotheses are grounded in them. Otherwise grade "fail" and propose up to 3 new literature search queries that would fill the gaps.

Respond with a single JSON object of this shape:
{"grade": "pass", "comment": "short justification", "follow_up_queries": [{"search_query": "query text"}]}

Research question:
{{.Query}}

Papers (keyed by short id):
{{.Papers}}
Contradictions:
{{.Contradictions}}

Hypotheses:
{{.Hypothesis}}
{{if .Report}}
Draft report:
{{.Report}}
{{end}}`))

// promptPaper is one PDF's text as shown to the model.
type promptPaper struct {
	Name string
	Text string
}

type promptData struct {
	Query          string
	Plan           string
	Sections       string
	Papers         any
	Contradictions string
	Hypothesis     string
	Report         string
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
