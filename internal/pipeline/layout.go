// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"reflect"

	"github.com/pdiddy/neuroloom/internal/evidence"
	"github.com/pdiddy/neuroloom/pkg/types"
)

// Stage is one step of the pipeline. Generate reads what it needs from the
// store and returns the channels it writes; the orchestrator applies them
// under the stage's name.
type Stage interface {
	Name() string
	Generate(ctx context.Context, s *evidence.Store) (evidence.Update, error)
}

// StageSet holds the stages available to a layout. Planner, Sections,
// Contradictions and Hypothesis are optional.
type StageSet struct {
	Planner        Stage
	Sections       Stage
	Retriever      Stage
	Contradictions Stage
	Hypothesis     Stage
	Composer       Stage
	Evaluator      Stage
}

// Layout splits the stages around the quality loop.
type Layout struct {
	Pre  []Stage
	Loop []Stage
	Post []Stage
}

// NewLayout arranges set for the given loop boundary. The loop always ends
// with the evaluator, and composition always follows the loop unless the
// boundary places it inside.
func NewLayout(b types.LoopBoundary, set StageSet) (Layout, error) {
	if isNil(set.Retriever) || isNil(set.Composer) || isNil(set.Evaluator) {
		return Layout{}, fmt.Errorf("layout requires retriever, composer and evaluator stages")
	}
	if b == "" {
		b = types.BoundaryAnalysis
	}

	pre := present(set.Planner, set.Sections)
	switch b {
	case types.BoundaryRetrieval:
		return Layout{
			Pre:  pre,
			Loop: present(set.Retriever, set.Evaluator),
			Post: present(set.Contradictions, set.Hypothesis, set.Composer),
		}, nil
	case types.BoundaryAnalysis:
		return Layout{
			Pre:  pre,
			Loop: present(set.Retriever, set.Contradictions, set.Hypothesis, set.Evaluator),
			Post: present(set.Composer),
		}, nil
	case types.BoundaryComposition:
		return Layout{
			Pre:  pre,
			Loop: present(set.Retriever, set.Contradictions, set.Hypothesis, set.Composer, set.Evaluator),
		}, nil
	default:
		return Layout{}, fmt.Errorf("unknown loop boundary %q", b)
	}
}

func present(in ...Stage) []Stage {
	out := make([]Stage, 0, len(in))
	for _, s := range in {
		if !isNil(s) {
			out = append(out, s)
		}
	}
	return out
}

// isNil reports whether s is nil or holds a nil pointer, such as a
// (*stages.Planner)(nil) assigned to an optional StageSet field.
func isNil(s Stage) bool {
	if s == nil {
		return true
	}
	v := reflect.ValueOf(s)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// Names lists stage names in order.
func Names(ss []Stage) []string {
	names := make([]string, len(ss))
	for i, s := range ss {
		names[i] = s.Name()
	}
	return names
}
