package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// SaveQuestion persists one Q&A interaction with its file-reference
// snapshots. Questions are immutable once written.
func (s *Store) SaveQuestion(ctx context.Context, q Question) (uuid.UUID, error) {
	refs, err := json.Marshal(q.FileReferences)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshaling file references: %w", err)
	}

	var id uuid.UUID
	err = s.pool.QueryRow(ctx,
		`INSERT INTO questions (project_id, user_id, question, answer, file_references)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		q.ProjectID, q.UserID, q.Question, q.Answer, refs).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("saving question: %w", err)
	}

	s.logger.Debug("saved question", "id", id, "project_id", q.ProjectID)
	return id, nil
}

// ListQuestions returns saved questions for a project, newest first.
func (s *Store) ListQuestions(ctx context.Context, projectID uuid.UUID) ([]*Question, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, user_id, question, answer, file_references, created_at
		 FROM questions WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing questions for project %s: %w", projectID, err)
	}
	defer rows.Close()

	var questions []*Question
	for rows.Next() {
		var q Question
		var refs []byte
		if err := rows.Scan(&q.ID, &q.ProjectID, &q.UserID, &q.Question, &q.Answer, &refs, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning question: %w", err)
		}
		if err := json.Unmarshal(refs, &q.FileReferences); err != nil {
			s.logger.Warn("failed to parse file references", "question_id", q.ID, "error", err)
			q.FileReferences = nil
		}
		questions = append(questions, &q)
	}
	return questions, rows.Err()
}
