// Package indexer turns a repository into embedding records: load files,
// filter, summarize, embed, persist. One run per project at a time; runs are
// fire-and-forget background work whose outcome is observed through row
// counts, not return values.
package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/codelore/codelore/internal/gitsource"
	"github.com/codelore/codelore/internal/store"
)

// Loader fetches repository files. *gitsource.Client satisfies it.
type Loader interface {
	Load(ctx context.Context, repoURL, token string) ([]gitsource.File, error)
}

// Summarizer is the slice of the AI client the pipeline needs.
type Summarizer interface {
	SummarizeCode(ctx context.Context, fileName, source string) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Writer is the slice of the store the pipeline needs.
type Writer interface {
	InsertEmbedding(ctx context.Context, e store.Embedding) error
	DeleteEmbeddings(ctx context.Context, projectID uuid.UUID) (int64, error)
}

// Result reports what one indexing run did.
type Result struct {
	Loaded   int // files fetched from the repository
	Filtered int // files that passed the filter
	Embedded int // embedding records written
	Skipped  int // filtered-in files dropped by per-file failures
}

// Indexer is the embedding pipeline.
type Indexer struct {
	loader Loader
	ai     Summarizer
	writer Writer
	logger *slog.Logger
}

// New creates an Indexer.
func New(loader Loader, ai Summarizer, writer Writer, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{loader: loader, ai: ai, writer: writer, logger: logger}
}

// Run indexes a repository into embedding records. Files are processed
// strictly one at a time: the AI client's throttle is process-wide and
// parallel summarization would only queue behind it while holding memory.
//
// A loader failure aborts the run; a single file's summarize, embed or
// persist failure is logged, counted as skipped and does not touch its
// siblings. Run is idempotent at the project level when preceded by
// Reindex's delete.
func (ix *Indexer) Run(ctx context.Context, projectID uuid.UUID, repoURL, token string) (*Result, error) {
	files, err := ix.loader.Load(ctx, repoURL, token)
	if err != nil {
		return nil, fmt.Errorf("loading repository: %w", err)
	}

	res := &Result{Loaded: len(files)}

	for _, f := range files {
		if !ShouldProcess(f.Path, f.Content) {
			continue
		}
		res.Filtered++

		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("indexing run canceled: %w", err)
		}

		if err := ix.indexFile(ctx, projectID, f); err != nil {
			res.Skipped++
			ix.logger.Error("skipping file",
				"project_id", projectID, "file", f.Path, "error", err)
			continue
		}
		res.Embedded++
	}

	ix.logger.Info("indexing run finished",
		"project_id", projectID,
		"repo", repoURL,
		"loaded", res.Loaded,
		"filtered", res.Filtered,
		"embedded", res.Embedded,
		"skipped", res.Skipped,
	)
	return res, nil
}

// indexFile summarizes, embeds and persists a single file.
func (ix *Indexer) indexFile(ctx context.Context, projectID uuid.UUID, f gitsource.File) error {
	summary, err := ix.ai.SummarizeCode(ctx, f.Path, f.Content)
	if err != nil {
		return fmt.Errorf("summarizing: %w", err)
	}

	vec, err := ix.ai.Embed(ctx, summary)
	if err != nil {
		return fmt.Errorf("embedding summary: %w", err)
	}

	return ix.writer.InsertEmbedding(ctx, store.Embedding{
		ProjectID:  projectID,
		FileName:   f.Path,
		SourceCode: f.Content,
		Summary:    summary,
		Vector:     vec,
	})
}

// Reindex deletes all prior embedding records for the project, then runs a
// fresh indexing pass. The delete-first step is what keeps the live set equal
// to the currently-filtered-in files.
func (ix *Indexer) Reindex(ctx context.Context, projectID uuid.UUID, repoURL, token string) (*Result, error) {
	deleted, err := ix.writer.DeleteEmbeddings(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("clearing prior embeddings: %w", err)
	}
	ix.logger.Info("cleared prior embeddings", "project_id", projectID, "deleted", deleted)

	return ix.Run(ctx, projectID, repoURL, token)
}
