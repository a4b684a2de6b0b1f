// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/neuroloom/internal/pdftext"
)

func TestRunRequiresPdftotext(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	err := runResearch(cmd, []string{"melatonin"})
	assert.ErrorIs(t, err, pdftext.ErrNotInstalled)
}
