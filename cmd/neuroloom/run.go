// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/neuroloom/internal/evidence"
	"github.com/pdiddy/neuroloom/internal/loop"
	"github.com/pdiddy/neuroloom/internal/pdftext"
	"github.com/pdiddy/neuroloom/internal/pipeline"
	"github.com/pdiddy/neuroloom/internal/stages"
)

// snapshotFile is the session snapshot name inside the artifact directory.
const snapshotFile = "session.yaml"

var runCmd = &cobra.Command{
	Use:   "run [question]",
	Short: "Run a full research session and print the cited report",
	Long: `Run plans the research, retrieves papers, finds contradictions,
proposes hypotheses and composes a Markdown report whose citations link
to the downloaded PDFs.

The session's channel writes are journaled to session.db in the papers
directory. Use --snapshot to also write the final state as session.yaml.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func init() {
	f := runCmd.Flags()
	f.Int("max-iterations", 0, "quality loop iteration cap (default 3)")
	f.String("boundary", "", "stages inside the loop: retrieval, analysis or composition (default analysis)")
	f.String("provider", "", "generation backend: gemini or claude (default gemini)")
	f.String("model", "", "model identifier")
	f.Bool("render", false, "render the report for the terminal")
	f.Bool("snapshot", false, "write session.yaml beside the PDFs")
	f.StringP("output", "o", "", "write the report to this file instead of stdout")

	for key, flag := range map[string]string{
		"loop.max_iterations": "max-iterations",
		"loop.boundary":       "boundary",
		"ai.provider":         "provider",
		"ai.model":            "model",
	} {
		if err := viper.BindPFlag(key, f.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(runCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	extractor := pdftext.NewPdftotext()
	if err := extractor.Check(); err != nil {
		return err
	}

	cfg := pipelineConfig(viper.GetViper(), loadedSecrets)
	query := strings.Join(args, " ")

	model, err := newModel(ctx, cfg.AI, logger)
	if err != nil {
		return err
	}

	set := pipeline.StageSet{
		Planner:  &stages.Planner{Model: model},
		Sections: &stages.SectionPlanner{Model: model},
		Retriever: &stages.Retriever{
			Engine:    newEngine(cfg.Retrieval, logger),
			MaxPapers: cfg.Retrieval.MaxPapers,
			MaxPages:  cfg.Retrieval.MaxPages,
			Logger:    logger,
		},
		Contradictions: &stages.ContradictionFinder{
			Model:     model,
			Extractor: extractor,
			Dir:       cfg.Retrieval.PapersDir,
			Logger:    logger,
		},
		Hypothesis: &stages.HypothesisGenerator{Model: model},
		Composer:   &stages.Composer{Model: model},
		Evaluator:  &stages.Evaluator{Model: model, Logger: logger},
	}
	layout, err := pipeline.NewLayout(cfg.Loop.Boundary, set)
	if err != nil {
		return err
	}

	journal, err := evidence.OpenJournal(cfg.Retrieval.PapersDir)
	if err != nil {
		return err
	}
	defer journal.Close()
	store := evidence.New(evidence.WithJournal(journal), evidence.WithLogger(logger))

	orch := &pipeline.Orchestrator{
		Layout:        layout,
		MaxIterations: cfg.Loop.MaxIterations,
		Store:         store,
		Logger:        logger,
		OnEvent: func(e loop.Event) {
			logger.Debug("loop event",
				zap.String("author", e.Author), zap.Int("iteration", e.Iteration), zap.Bool("escalate", e.Escalate))
		},
	}
	res, err := orch.Run(ctx, query)
	if err != nil {
		return err
	}

	if snap, _ := cmd.Flags().GetBool("snapshot"); snap {
		path := filepath.Join(cfg.Retrieval.PapersDir, snapshotFile)
		if err := store.WriteSnapshot(path); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Session snapshot:", path)
	}
	if res.Outcome == loop.Exhausted {
		fmt.Fprintf(os.Stderr, "Quality loop reached %d iterations without a passing verdict.\n", cfg.Loop.MaxIterations)
	}
	fmt.Fprintf(os.Stderr, "Cited %d of %d retrieved papers.\n", len(res.Cited), len(store.Papers()))
	if len(res.Unresolved) > 0 {
		fmt.Fprintf(os.Stderr, "Unresolved citations: %s\n", strings.Join(res.Unresolved, ", "))
	}

	render, _ := cmd.Flags().GetBool("render")
	output, _ := cmd.Flags().GetString("output")
	return writeReport(res.Report, output, render)
}

// writeReport prints report to stdout, or to path when set. Rendering only
// applies to terminal output.
func writeReport(report, path string, render bool) error {
	if path != "" {
		if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Fprintln(os.Stderr, "Report written to", path)
		return nil
	}
	if render {
		out, err := glamour.Render(report, "dark")
		if err != nil {
			return fmt.Errorf("rendering report: %w", err)
		}
		report = out
	}
	fmt.Println(report)
	return nil
}
