package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var indexFresh bool

var indexCmd = &cobra.Command{
	Use:   "index <project-id>",
	Short: "Index a project's repository synchronously",
	Long: `Index runs one indexing pass for a project and waits for it to
finish. With --fresh, all existing embeddings for the project are deleted
first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndex(cmd.Context(), args[0], indexFresh)
	},
}

func init() {
	indexCmd.Flags().BoolVar(&indexFresh, "fresh", false, "delete existing embeddings before indexing")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(ctx context.Context, rawID string, fresh bool) error {
	projectID, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid project ID %q: %w", rawID, err)
	}

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	project, err := a.store.GetProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("resolving project: %w", err)
	}

	run := a.indexer.Run
	if fresh {
		run = a.indexer.Reindex
	}
	res, err := run(ctx, project.ID, project.RepoURL, project.AccessToken)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", project.RepoURL, err)
	}

	fmt.Printf("Indexed %s\n", project.RepoURL)
	fmt.Printf("  loaded:   %d\n", res.Loaded)
	fmt.Printf("  filtered: %d\n", res.Filtered)
	fmt.Printf("  embedded: %d\n", res.Embedded)
	fmt.Printf("  skipped:  %d\n", res.Skipped)
	return nil
}
