// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package loop runs the bounded refinement cycle: a body of stages runs
// repeatedly until the evaluator's verdict passes or the iteration cap is
// reached.
package loop

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/neuroloom/internal/evidence"
	"github.com/pdiddy/neuroloom/pkg/types"
)

// CheckerName is the author of every loop event.
const CheckerName = "quality_checker"

// ErrNoIterations is returned when the controller is configured with a
// non-positive iteration cap.
var ErrNoIterations = errors.New("max iterations must be at least 1")

// Outcome is how a loop ended.
type Outcome string

const (
	// Passed means the evaluator graded the research as pass.
	Passed Outcome = "passed"
	// Exhausted means the cap was reached without a passing verdict.
	Exhausted Outcome = "exhausted"
)

// Iteration describes one pass through the body.
type Iteration struct {
	// Number is 1-based.
	Number int
	// FollowUpQueries come from the verdict of the previous iteration.
	FollowUpQueries []string
}

// Event is emitted by the checker after every iteration.
type Event struct {
	Author    string
	Iteration int
	Escalate  bool
	// Verdict is nil when no verdict was written during the iteration.
	Verdict *types.Verdict
}

// Source exposes the verdict channel. *evidence.Store satisfies it.
type Source interface {
	Seq() int
	Version(ch evidence.Channel) int
	Evaluation() (types.Verdict, bool)
}

// Body runs the loop's stages once.
type Body func(ctx context.Context, it Iteration) error

// Controller drives the loop.
type Controller struct {
	MaxIterations int
	Body          Body
	Source        Source
	// OnEvent, when set, receives every checker event.
	OnEvent func(Event)
	Logger  *zap.Logger
}

// Run executes the body until a verdict passes or MaxIterations is reached.
// Exhaustion is an outcome, not an error.
func (c Controller) Run(ctx context.Context) (Outcome, error) {
	if c.MaxIterations <= 0 {
		return "", ErrNoIterations
	}
	if c.Body == nil || c.Source == nil {
		return "", fmt.Errorf("loop: body and source are required")
	}
	log := c.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var followUps []string
	for n := 1; n <= c.MaxIterations; n++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("iteration %d: %w", n, err)
		}

		mark := c.Source.Seq()
		if err := c.Body(ctx, Iteration{Number: n, FollowUpQueries: followUps}); err != nil {
			return "", fmt.Errorf("iteration %d: %w", n, err)
		}

		ev := c.check(n, mark)
		if c.OnEvent != nil {
			c.OnEvent(ev)
		}
		if ev.Escalate {
			log.Info("research passed", zap.Int("iteration", n))
			return Passed, nil
		}

		followUps = nil
		if ev.Verdict != nil {
			followUps = ev.Verdict.Queries()
			log.Info("research needs refinement",
				zap.Int("iteration", n),
				zap.String("comment", ev.Verdict.Comment),
				zap.Strings("follow_up_queries", followUps))
		} else {
			log.Warn("no verdict written this iteration", zap.Int("iteration", n))
		}
	}

	log.Info("iteration cap reached", zap.Int("max_iterations", c.MaxIterations))
	return Exhausted, nil
}

// check reads the verdict and decides whether to escalate. A verdict that
// was not rewritten after mark belongs to an earlier iteration and is
// treated as absent.
func (c Controller) check(n, mark int) Event {
	ev := Event{Author: CheckerName, Iteration: n}
	if c.Source.Version(evidence.ResearchEvaluation) <= mark {
		return ev
	}
	v, ok := c.Source.Evaluation()
	if !ok {
		return ev
	}
	ev.Verdict = &v
	ev.Escalate = v.Passed()
	return ev
}
