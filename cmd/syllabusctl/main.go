// Package main implements syllabusctl, a command-line companion for running the syllabus pipeline
// and related tooling against the configured services.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "syllabusctl",
		Short: "Run syllabus-sync operations from the command line",
		Long: `syllabusctl runs the syllabus extraction pipeline and related helpers using the same
environment variables as the API server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newExtractCmd())
	root.AddCommand(newParseDateCmd())
	root.AddCommand(newTokenCmd())
	return root
}
