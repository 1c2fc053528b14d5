// Package cmd wires the codelore CLI: the API server, one-shot indexing
// runs and database migrations.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "codelore",
	Short: "codelore - AI-assisted codebase knowledge base",
	Long: `codelore indexes Git repositories into searchable embeddings and
answers questions about the code, keeps an AI-summarized commit log, and
turns meeting recordings into topic summaries.

Run 'codelore serve' to start the HTTP API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
