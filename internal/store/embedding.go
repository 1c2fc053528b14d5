package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// InsertEmbedding persists one embedding record. The metadata and the vector
// are written in a single statement: pgx binds pgvector values natively, so
// there is no half-written state to recover from. Transport failures are
// retried with backoff.
func (s *Store) InsertEmbedding(ctx context.Context, e Embedding) error {
	vec := pgvector.NewVector(e.Vector)

	err := s.withTransientRetry(ctx, "insert embedding", func(ctx context.Context) error {
		_, execErr := s.pool.Exec(ctx,
			`INSERT INTO source_code_embeddings (project_id, file_name, source_code, summary, summary_embedding)
			 VALUES ($1, $2, $3, $4, $5)`,
			e.ProjectID, e.FileName, e.SourceCode, e.Summary, vec)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("inserting embedding for %q: %w", e.FileName, err)
	}

	s.logger.Debug("inserted embedding", "project_id", e.ProjectID, "file", e.FileName)
	return nil
}

// DeleteEmbeddings removes all embedding records for a project. Called before
// re-indexing so no stale entries from a prior run survive.
func (s *Store) DeleteEmbeddings(ctx context.Context, projectID uuid.UUID) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM source_code_embeddings WHERE project_id = $1`, projectID)
	if err != nil {
		return 0, fmt.Errorf("deleting embeddings for project %s: %w", projectID, err)
	}

	s.logger.Debug("deleted embeddings", "project_id", projectID, "count", tag.RowsAffected())
	return tag.RowsAffected(), nil
}

// CountEmbeddings returns the number of live embedding records for a project.
// This is the indexed-file count surfaced to callers of fire-and-forget
// indexing runs.
func (s *Store) CountEmbeddings(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM source_code_embeddings WHERE project_id = $1`, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting embeddings for project %s: %w", projectID, err)
	}
	return count, nil
}

// ListEmbeddedFiles returns the file names with live embeddings for a project.
func (s *Store) ListEmbeddedFiles(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT file_name FROM source_code_embeddings WHERE project_id = $1 ORDER BY file_name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing embedded files for project %s: %w", projectID, err)
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning file name: %w", err)
		}
		files = append(files, name)
	}
	return files, rows.Err()
}

// SearchEmbeddings returns the top-limit embedding rows for a project ordered
// by descending cosine similarity to the query vector.
// Similarity is 1 - cosine_distance; storage order carries no meaning, so the
// ORDER BY is load-bearing.
func (s *Store) SearchEmbeddings(ctx context.Context, projectID uuid.UUID, queryVec []float32, limit int32) ([]EmbeddingMatch, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	vec := pgvector.NewVector(queryVec)
	rows, err := s.pool.Query(ctx,
		`SELECT file_name, source_code, summary,
		        1 - (summary_embedding <=> $1) AS similarity
		 FROM source_code_embeddings
		 WHERE project_id = $2
		 ORDER BY similarity DESC
		 LIMIT $3`,
		vec, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("searching embeddings for project %s: %w", projectID, err)
	}
	defer rows.Close()

	var matches []EmbeddingMatch
	for rows.Next() {
		var m EmbeddingMatch
		if err := rows.Scan(&m.FileName, &m.SourceCode, &m.Summary, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scanning embedding match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
