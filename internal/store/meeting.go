package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateMeeting inserts a meeting in PROCESSING state.
func (s *Store) CreateMeeting(ctx context.Context, projectID uuid.UUID, meetingURL string) (*Meeting, error) {
	var m Meeting
	err := s.pool.QueryRow(ctx,
		`INSERT INTO meetings (project_id, meeting_url)
		 VALUES ($1, $2)
		 RETURNING id, project_id, name, meeting_url, status, created_at`,
		projectID, meetingURL).
		Scan(&m.ID, &m.ProjectID, &m.Name, &m.MeetingURL, &m.Status, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating meeting: %w", err)
	}

	s.logger.Debug("created meeting", "id", m.ID, "project_id", projectID)
	return &m, nil
}

// GetMeeting returns a meeting by ID.
func (s *Store) GetMeeting(ctx context.Context, id uuid.UUID) (*Meeting, error) {
	var m Meeting
	err := s.pool.QueryRow(ctx,
		`SELECT id, project_id, name, meeting_url, status, created_at
		 FROM meetings WHERE id = $1`, id).
		Scan(&m.ID, &m.ProjectID, &m.Name, &m.MeetingURL, &m.Status, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("meeting %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("getting meeting %s: %w", id, err)
	}
	return &m, nil
}

// CompleteMeeting transitions a meeting to COMPLETED and sets its name.
func (s *Store) CompleteMeeting(ctx context.Context, id uuid.UUID, name string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE meetings SET status = $1, name = $2 WHERE id = $3`,
		MeetingStatusCompleted, name, id)
	if err != nil {
		return fmt.Errorf("completing meeting %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("meeting %s: %w", id, ErrNotFound)
	}

	s.logger.Debug("completed meeting", "id", id, "name", name)
	return nil
}

// InsertMeetingIssues persists extracted topic segments in one transaction.
func (s *Store) InsertMeetingIssues(ctx context.Context, meetingID uuid.UUID, issues []MeetingIssue) error {
	if len(issues) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning issue insert: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, issue := range issues {
		_, err := tx.Exec(ctx,
			`INSERT INTO meeting_issues (meeting_id, headline, gist, summary, start_time, end_time)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			meetingID, issue.Headline, issue.Gist, issue.Summary, issue.Start, issue.End)
		if err != nil {
			return fmt.Errorf("inserting meeting issue: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing issue insert: %w", err)
	}

	s.logger.Debug("inserted meeting issues", "meeting_id", meetingID, "count", len(issues))
	return nil
}

// ListMeetingIssues returns extracted segments for a meeting in insertion
// order.
func (s *Store) ListMeetingIssues(ctx context.Context, meetingID uuid.UUID) ([]*MeetingIssue, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, meeting_id, headline, gist, summary, start_time, end_time
		 FROM meeting_issues WHERE meeting_id = $1 ORDER BY created_at`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("listing issues for meeting %s: %w", meetingID, err)
	}
	defer rows.Close()

	var issues []*MeetingIssue
	for rows.Next() {
		var i MeetingIssue
		if err := rows.Scan(&i.ID, &i.MeetingID, &i.Headline, &i.Gist, &i.Summary, &i.Start, &i.End); err != nil {
			return nil, fmt.Errorf("scanning meeting issue: %w", err)
		}
		issues = append(issues, &i)
	}
	return issues, rows.Err()
}
