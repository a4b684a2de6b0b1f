//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Research runs a full session for $QUERY and writes the report to output/report.md.
func Research() error {
	mg.Deps(Build, Init)
	query := os.Getenv("QUERY")
	if query == "" {
		return fmt.Errorf("set QUERY to the research question")
	}
	return sh.RunV(filepath.Join(binDir, binName), "run", "--snapshot", "-o", filepath.Join("output", "report.md"), query)
}

// Retrieve downloads open-access papers for $QUERY into papers/.
func Retrieve() error {
	mg.Deps(Build, Init)
	query := os.Getenv("QUERY")
	if query == "" {
		return fmt.Errorf("set QUERY to the search query")
	}
	return sh.RunV(filepath.Join(binDir, binName), "retrieve", query)
}
