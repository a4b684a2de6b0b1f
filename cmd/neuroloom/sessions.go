// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/neuroloom/internal/evidence"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions [session-id]",
	Short: "List journaled sessions or show one session's channel writes",
	Long: `Sessions reads session.db in the papers directory. Without an
argument it lists the journaled session ids, most recent first. With a
session id it prints that session's channel writes in order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	dir := pipelineConfig(viper.GetViper(), loadedSecrets).Retrieval.PapersDir
	var id string
	if len(args) == 1 {
		id = args[0]
	}
	return showSessions(cmd.Context(), os.Stdout, dir, id)
}

// showSessions writes the session list, or the writes of sessionID when it
// is not empty.
func showSessions(ctx context.Context, w io.Writer, dir, sessionID string) error {
	journal, err := evidence.OpenJournal(dir)
	if err != nil {
		return err
	}
	defer journal.Close()

	if sessionID == "" {
		ids, err := journal.Sessions(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(w, id)
		}
		return nil
	}

	entries, err := journal.Entries(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no journaled writes for session %s", sessionID)
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%4d  %s  %-18s %s (%d bytes)\n",
			e.Seq, e.WrittenAt.Format(time.RFC3339), e.Stage, e.Channel, len(e.Payload))
	}
	return nil
}
