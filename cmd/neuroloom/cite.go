// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/neuroloom/internal/cite"
	"github.com/pdiddy/neuroloom/internal/registry"
	"github.com/pdiddy/neuroloom/pkg/types"
)

var citeCmd = &cobra.Command{
	Use:   "cite [report.md]",
	Short: "Resolve <cite source=\"paper-N\"/> tags in a report",
	Long: `Cite replaces citation tags in a Markdown report with references to
the papers listed in --papers. The papers file is YAML: either a map of
short id to paper (as in a session snapshot) or a list of papers, which
are numbered paper-1, paper-2, ... in order.

The report is read from the given file, or from stdin when omitted or "-".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCite,
}

func init() {
	citeCmd.Flags().String("papers", "", "YAML file describing the cited papers")
	_ = citeCmd.MarkFlagRequired("papers")

	rootCmd.AddCommand(citeCmd)
}

func runCite(cmd *cobra.Command, args []string) error {
	papersPath, _ := cmd.Flags().GetString("papers")
	papers, err := readPapers(papersPath)
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening report: %w", err)
		}
		defer f.Close()
		in = f
	}
	report, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("reading report: %w", err)
	}

	resolver := cite.Resolver{Logger: logger}
	fmt.Print(resolver.Resolve(string(report), papers))
	if missing := cite.Unresolved(string(report), papers); len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "Unresolved citations: %s\n", strings.Join(missing, ", "))
	}
	return nil
}

// readPapers loads a short id→paper map, or registers a list of papers in order.
func readPapers(path string) (map[string]types.Paper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading papers: %w", err)
	}

	var byID map[string]types.Paper
	if err := yaml.Unmarshal(data, &byID); err == nil {
		return byID, nil
	}

	var list []types.Paper
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing papers %s: expected a map or a list: %w", path, err)
	}
	reg := registry.New()
	reg.Merge(list)
	return reg.Papers(), nil
}
