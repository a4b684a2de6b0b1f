// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Search Europe PMC and download open-access PDFs",
	Long: `Retrieve runs one bounded retrieval: it pages through Europe PMC
results for the query and downloads open-access PDFs into the papers
directory until --max-papers downloads succeed or --max-pages pages have
been read. The result is printed as JSON.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRetrieve,
}

func init() {
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig(viper.GetViper(), loadedSecrets).Retrieval
	engine := newEngine(cfg, logger)

	res := engine.Retrieve(cmd.Context(), strings.Join(args, " "), cfg.MaxPapers, cfg.MaxPages)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if res.Failed() {
		return fmt.Errorf("retrieval failed: %s", res.Message)
	}
	fmt.Fprintf(os.Stderr, "%d paper(s) downloaded to %s\n", len(res.Papers), engine.Dir())
	return nil
}
