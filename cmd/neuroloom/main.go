// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the neuroloom CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/neuroloom/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds API keys loaded from .secrets/ at startup.
	loadedSecrets secrets.Set

	logger  *zap.Logger
	verbose bool
)

// rootCmd is the base command for the neuroloom CLI.
var rootCmd = &cobra.Command{
	Use:   "neuroloom",
	Short: "Literature review pipeline that finds contradictions across papers",
	Long: `neuroloom retrieves open-access papers from Europe PMC, looks for
contradictions between them, proposes hypotheses that could explain each
contradiction, and writes a cited Markdown report.

A bounded quality loop repeats retrieval and analysis until an evaluator
judges the evidence sufficient or the iteration cap is reached.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		s, err := secrets.Load(".secrets/", logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := s.Keys()
			sort.Strings(keys)
			logger.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./neuroloom.yaml or ~/.config/neuroloom/neuroloom.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	pf.String("papers-dir", "", "artifact directory for downloaded PDFs (default papers)")
	pf.Int("max-papers", 0, "maximum PDFs downloaded per retrieval run (default 5)")
	pf.Int("max-pages", 0, "maximum search pages per retrieval run (default 25)")
	pf.Int("concurrency", 0, "simultaneous downloads within a page (default 1)")

	bindFlag("retrieval.papers_dir", "papers-dir")
	bindFlag("retrieval.max_papers", "max-papers")
	bindFlag("retrieval.max_pages", "max-pages")
	bindFlag("retrieval.concurrency", "concurrency")
}

func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() {
	setDefaults(viper.GetViper())

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("neuroloom")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "neuroloom"))
		}
	}

	viper.SetEnvPrefix("NEUROLOOM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
