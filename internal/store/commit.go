package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ListCommitHashes returns the set of commit hashes already stored for a
// project. This backs the poller's set-difference dedup.
func (s *Store) ListCommitHashes(ctx context.Context, projectID uuid.UUID) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT commit_hash FROM commits WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing commit hashes for project %s: %w", projectID, err)
	}
	defer rows.Close()

	hashes := make(map[string]bool)
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scanning commit hash: %w", err)
		}
		hashes[h] = true
	}
	return hashes, rows.Err()
}

// InsertCommits persists a batch of commits inside one transaction,
// preserving the given order. ON CONFLICT DO NOTHING backs up the
// application-level dedup: concurrent pollers for the same project cannot
// double-insert. Returns the number of rows actually inserted.
func (s *Store) InsertCommits(ctx context.Context, commits []Commit) (int, error) {
	if len(commits) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning commit insert: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	inserted := 0
	for _, c := range commits {
		tag, err := tx.Exec(ctx,
			`INSERT INTO commits (project_id, commit_hash, message, author_name, author_avatar, commit_date, summary)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (project_id, commit_hash) DO NOTHING`,
			c.ProjectID, c.CommitHash, c.Message, c.AuthorName, c.AuthorAvatar, c.CommitDate, c.Summary)
		if err != nil {
			return 0, fmt.Errorf("inserting commit %s: %w", c.CommitHash, err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing commit insert: %w", err)
	}

	s.logger.Debug("inserted commits", "count", inserted, "batch", len(commits))
	return inserted, nil
}

// ListCommits returns stored commits for a project, newest first.
func (s *Store) ListCommits(ctx context.Context, projectID uuid.UUID) ([]*Commit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, commit_hash, message, author_name, author_avatar, commit_date, summary
		 FROM commits WHERE project_id = $1 ORDER BY commit_date DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing commits for project %s: %w", projectID, err)
	}
	defer rows.Close()

	var commits []*Commit
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning commit: %w", err)
		}
		commits = append(commits, c)
	}
	return commits, rows.Err()
}

func scanCommit(row pgx.Row) (*Commit, error) {
	var c Commit
	if err := row.Scan(&c.ID, &c.ProjectID, &c.CommitHash, &c.Message,
		&c.AuthorName, &c.AuthorAvatar, &c.CommitDate, &c.Summary); err != nil {
		return nil, err
	}
	return &c, nil
}
