// Package qa answers questions about a project's codebase. It embeds the
// question, retrieves the most similar indexed files, and streams a grounded
// answer while exposing the matched files as structured references.
package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/codelore/codelore/internal/store"
)

// ErrInvalidRequest indicates a missing question or project id. Maps to a
// client error at the API boundary.
var ErrInvalidRequest = errors.New("invalid request")

const (
	// searchLimit is how many candidates the vector search returns.
	searchLimit = 10

	// similarityThreshold filters candidates. Deliberately low: embedding
	// similarity for short summaries clusters tightly.
	similarityThreshold = 0.12

	// fallbackLimit is used when no candidate passes the threshold but
	// candidates exist. A wrong-but-present reference beats silence.
	fallbackLimit = 5

	// maxExcerptChars bounds the source excerpt per context block.
	maxExcerptChars = 1500
)

// AI is the slice of the model client the service needs.
type AI interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Stream(ctx context.Context, system, prompt string, emit func(chunk string) error) error
}

// Searcher is the slice of the store the service needs.
type Searcher interface {
	SearchEmbeddings(ctx context.Context, projectID uuid.UUID, queryVec []float32, limit int32) ([]store.EmbeddingMatch, error)
	SaveQuestion(ctx context.Context, q store.Question) (uuid.UUID, error)
}

// Exchange is a prepared answer: the references are complete before any
// generated text exists, so callers can deliver them out-of-band ahead of
// the stream.
type Exchange struct {
	ProjectID  uuid.UUID
	Question   string
	References []store.FileReference

	prompt string
}

// Service answers questions against a project's embeddings.
type Service struct {
	ai     AI
	search Searcher
	logger *slog.Logger
}

// New creates a Service.
func New(ai AI, search Searcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ai: ai, search: search, logger: logger}
}

// Answer prepares an Exchange for a question: validate, embed, retrieve,
// assemble context. No generated text is produced yet; call Stream with the
// returned Exchange. Embedding or search failure is fatal for the request.
func (s *Service) Answer(ctx context.Context, projectID uuid.UUID, question string) (*Exchange, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidRequest)
	}
	if projectID == uuid.Nil {
		return nil, fmt.Errorf("%w: project id is required", ErrInvalidRequest)
	}

	queryVec, err := s.ai.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	candidates, err := s.search.SearchEmbeddings(ctx, projectID, queryVec, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("searching embeddings: %w", err)
	}

	matches := selectMatches(candidates)
	s.logger.Debug("retrieved context",
		"project_id", projectID,
		"candidates", len(candidates),
		"selected", len(matches),
	)

	refs := make([]store.FileReference, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, store.FileReference{
			FileName:   m.FileName,
			Summary:    m.Summary,
			Similarity: m.Similarity,
		})
	}

	return &Exchange{
		ProjectID:  projectID,
		Question:   question,
		References: refs,
		prompt:     userPrompt(buildContext(matches), question),
	}, nil
}

// selectMatches applies the threshold with a top-N fallback. Candidates
// arrive ordered by descending similarity and order is preserved.
func selectMatches(candidates []store.EmbeddingMatch) []store.EmbeddingMatch {
	var matches []store.EmbeddingMatch
	for _, c := range candidates {
		if c.Similarity > similarityThreshold {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 && len(candidates) > 0 {
		matches = candidates[:min(fallbackLimit, len(candidates))]
	}
	return matches
}

// buildContext assembles the bounded textual context for the model.
func buildContext(matches []store.EmbeddingMatch) string {
	if len(matches) == 0 {
		return "No relevant code found in the project."
	}

	var b strings.Builder
	for _, m := range matches {
		excerpt := m.SourceCode
		if len(excerpt) > maxExcerptChars {
			excerpt = excerpt[:maxExcerptChars]
		}
		fmt.Fprintf(&b, "### File: %s\n", m.FileName)
		fmt.Fprintf(&b, "**Summary:** %s\n", m.Summary)
		fmt.Fprintf(&b, "**Code:**\n```\n%s\n```\n\n", excerpt)
	}
	return b.String()
}

// Stream generates the answer for a prepared Exchange, forwarding chunks to
// emit in arrival order. A mid-stream failure terminates the stream; text
// already emitted stands.
func (s *Service) Stream(ctx context.Context, ex *Exchange, emit func(chunk string) error) error {
	return s.ai.Stream(ctx, systemPrompt, ex.prompt, emit)
}

// Save persists a completed Q&A interaction with its reference snapshots.
func (s *Service) Save(ctx context.Context, ex *Exchange, userID, answer string) (uuid.UUID, error) {
	return s.search.SaveQuestion(ctx, store.Question{
		ProjectID:      ex.ProjectID,
		UserID:         userID,
		Question:       ex.Question,
		Answer:         answer,
		FileReferences: ex.References,
	})
}
