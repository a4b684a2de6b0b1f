// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs a research session: planning stages, the quality
// loop, report composition and citation resolution, in that order, over a
// single evidence store.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/neuroloom/internal/cite"
	"github.com/pdiddy/neuroloom/internal/evidence"
	"github.com/pdiddy/neuroloom/internal/loop"
)

const (
	// OrchestratorName owns the user_query channel.
	OrchestratorName = "pipeline"
	// CitationsName owns final_report_with_citations.
	CitationsName = "citation_resolver"
)

// Result summarizes a finished run.
type Result struct {
	Outcome loop.Outcome
	// Report is the final report with citations resolved.
	Report string
	// Cited lists the registered papers the report cites, in order of first use.
	Cited []string
	// Unresolved lists cited ids that matched no registered paper.
	Unresolved []string
	SessionID  string
}

// FollowUpSetter is implemented by loop stages that search the follow-up
// queries of the previous iteration's failing verdict. The orchestrator
// calls SetFollowUps before each run of the stage; an iteration without
// follow-ups passes nil.
type FollowUpSetter interface {
	SetFollowUps(queries []string)
}

// Orchestrator runs one session.
type Orchestrator struct {
	Layout        Layout
	MaxIterations int
	// Store receives the session state. A fresh store is created when nil.
	Store   *evidence.Store
	OnEvent func(loop.Event)
	Logger  *zap.Logger
}

// Run executes the session for query. A stage error aborts the run; an
// exhausted loop does not.
func (o *Orchestrator) Run(ctx context.Context, query string) (Result, error) {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(query) == "" {
		return Result{}, fmt.Errorf("empty research question")
	}
	s := o.Store
	if s == nil {
		s = evidence.New(evidence.WithLogger(log))
	}
	log = log.With(zap.String("session", s.ID()))
	log.Debug("stage layout",
		zap.Strings("pre", Names(o.Layout.Pre)),
		zap.Strings("loop", Names(o.Layout.Loop)),
		zap.Strings("post", Names(o.Layout.Post)))

	if err := s.Apply(OrchestratorName, evidence.Update{evidence.UserQuery: query}); err != nil {
		return Result{}, err
	}

	for _, st := range o.Layout.Pre {
		if err := runStage(ctx, log, s, st); err != nil {
			return Result{}, err
		}
	}

	ctrl := loop.Controller{
		MaxIterations: o.MaxIterations,
		Source:        s,
		OnEvent:       o.OnEvent,
		Logger:        log,
		Body: func(ctx context.Context, it loop.Iteration) error {
			log.Info("research iteration started",
				zap.Int("iteration", it.Number), zap.Strings("follow_up_queries", it.FollowUpQueries))
			for _, st := range o.Layout.Loop {
				if fs, ok := st.(FollowUpSetter); ok {
					fs.SetFollowUps(it.FollowUpQueries)
				}
				if err := runStage(ctx, log, s, st); err != nil {
					return err
				}
			}
			return nil
		},
	}
	outcome, err := ctrl.Run(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("quality loop: %w", err)
	}

	for _, st := range o.Layout.Post {
		if err := runStage(ctx, log, s, st); err != nil {
			return Result{}, err
		}
	}

	citations := &Citations{Resolver: cite.Resolver{Logger: log}, Logger: log}
	if err := runStage(ctx, log, s, citations); err != nil {
		return Result{}, err
	}

	res := Result{
		Outcome:    outcome,
		Report:     s.FinalReportWithCitations(),
		Cited:      cite.Cited(s.FinalReport(), s.Papers()),
		Unresolved: cite.Unresolved(s.FinalReport(), s.Papers()),
		SessionID:  s.ID(),
	}
	log.Info("session finished",
		zap.String("outcome", string(outcome)),
		zap.Int("papers", len(s.Papers())),
		zap.Int("cited", len(res.Cited)),
		zap.Int("unresolved_citations", len(res.Unresolved)))
	return res, nil
}

func runStage(ctx context.Context, log *zap.Logger, s *evidence.Store, st Stage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	u, err := st.Generate(ctx, s)
	if err != nil {
		return fmt.Errorf("stage %s: %w", st.Name(), err)
	}
	if err := s.Apply(st.Name(), u); err != nil {
		return fmt.Errorf("stage %s: %w", st.Name(), err)
	}
	log.Info("stage completed",
		zap.String("stage", st.Name()),
		zap.Int("channels", len(u)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Citations resolves the composed report's citation tags.
type Citations struct {
	Resolver cite.Resolver
	Logger   *zap.Logger
}

func (c *Citations) Name() string { return CitationsName }

func (c *Citations) Generate(_ context.Context, s *evidence.Store) (evidence.Update, error) {
	report := s.FinalReport()
	if report == "" && c.Logger != nil {
		c.Logger.Warn("no final report to resolve citations in")
	}
	return evidence.Update{
		evidence.FinalReportWithCitations: c.Resolver.Resolve(report, s.Papers()),
	}, nil
}
