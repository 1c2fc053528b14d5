package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const projectCols = `id, name, repo_url, COALESCE(access_token, ''), created_at, deleted_at`

// CreateProject inserts a new project and returns it with the generated ID.
func (s *Store) CreateProject(ctx context.Context, name, repoURL, accessToken string) (*Project, error) {
	var tokenPtr *string
	if accessToken != "" {
		tokenPtr = &accessToken
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO projects (name, repo_url, access_token)
		 VALUES ($1, $2, $3)
		 RETURNING `+projectCols,
		name, repoURL, tokenPtr)

	p, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}

	s.logger.Debug("created project", "id", p.ID, "repo_url", p.RepoURL)
	return p, nil
}

// GetProject returns a project by ID. Soft-deleted projects are not visible.
func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+projectCols+` FROM projects WHERE id = $1 AND deleted_at IS NULL`, id)

	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("getting project %s: %w", id, err)
	}
	return p, nil
}

// ListProjects returns all live projects ordered by creation time descending.
func (s *Store) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+projectCols+` FROM projects WHERE deleted_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// SoftDeleteProject marks a project deleted. Owned rows stay in place; the
// foreign keys cascade only on a hard delete.
func (s *Store) SoftDeleteProject(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft-deleting project %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}

	s.logger.Debug("soft-deleted project", "id", id)
	return nil
}

func scanProject(row pgx.Row) (*Project, error) {
	var p Project
	if err := row.Scan(&p.ID, &p.Name, &p.RepoURL, &p.AccessToken, &p.CreatedAt, &p.DeletedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
