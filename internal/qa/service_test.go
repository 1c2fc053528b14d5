package qa

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelore/codelore/internal/log"
	"github.com/codelore/codelore/internal/store"
)

type fakeAI struct {
	embedErr error
	chunks   []string
	streamFn func(system, prompt string, emit func(string) error) error
}

func (f *fakeAI) Embed(context.Context, string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return []float32{0.1, 0.2, 0.3, 0.4}, nil
}

func (f *fakeAI) Stream(_ context.Context, system, prompt string, emit func(string) error) error {
	if f.streamFn != nil {
		return f.streamFn(system, prompt, emit)
	}
	for _, ch := range f.chunks {
		if err := emit(ch); err != nil {
			return err
		}
	}
	return nil
}

type fakeSearcher struct {
	matches   []store.EmbeddingMatch
	searchErr error
	saved     []store.Question
}

func (f *fakeSearcher) SearchEmbeddings(context.Context, uuid.UUID, []float32, int32) ([]store.EmbeddingMatch, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.matches, nil
}

func (f *fakeSearcher) SaveQuestion(_ context.Context, q store.Question) (uuid.UUID, error) {
	f.saved = append(f.saved, q)
	return uuid.New(), nil
}

func match(file string, similarity float64) store.EmbeddingMatch {
	return store.EmbeddingMatch{
		FileName:   file,
		SourceCode: "source of " + file,
		Summary:    "summary of " + file,
		Similarity: similarity,
	}
}

func TestAnswerValidatesInput(t *testing.T) {
	s := New(&fakeAI{}, &fakeSearcher{}, log.NewNop())

	_, err := s.Answer(context.Background(), uuid.New(), "")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = s.Answer(context.Background(), uuid.New(), "   \n")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = s.Answer(context.Background(), uuid.Nil, "how does auth work?")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestAnswerFiltersByThreshold(t *testing.T) {
	search := &fakeSearcher{matches: []store.EmbeddingMatch{
		match("src/auth.ts", 0.45),
		match("src/utils.ts", 0.05),
	}}
	s := New(&fakeAI{}, search, log.NewNop())

	ex, err := s.Answer(context.Background(), uuid.New(), "how does auth work?")
	require.NoError(t, err)

	require.Len(t, ex.References, 1)
	assert.Equal(t, "src/auth.ts", ex.References[0].FileName)
	assert.InDelta(t, 0.45, ex.References[0].Similarity, 1e-9)
	assert.Contains(t, ex.prompt, "src/auth.ts")
	assert.NotContains(t, ex.prompt, "src/utils.ts")
}

func TestAnswerFallsBackToTopFive(t *testing.T) {
	var candidates []store.EmbeddingMatch
	for i, f := range []string{"a.go", "b.go", "c.go", "d.go", "e.go", "f.go", "g.go"} {
		candidates = append(candidates, match(f, 0.11-float64(i)*0.01))
	}
	s := New(&fakeAI{}, &fakeSearcher{matches: candidates}, log.NewNop())

	ex, err := s.Answer(context.Background(), uuid.New(), "what does this do?")
	require.NoError(t, err)

	require.Len(t, ex.References, 5, "no candidate passes the threshold, expect top-5 fallback")
	assert.Equal(t, "a.go", ex.References[0].FileName)
	assert.Equal(t, "e.go", ex.References[4].FileName)
}

func TestAnswerNoCandidates(t *testing.T) {
	s := New(&fakeAI{}, &fakeSearcher{}, log.NewNop())

	ex, err := s.Answer(context.Background(), uuid.New(), "anything indexed?")
	require.NoError(t, err)
	assert.Empty(t, ex.References)
	assert.Contains(t, ex.prompt, "No relevant code found")
}

func TestAnswerTruncatesExcerpts(t *testing.T) {
	long := match("big.go", 0.8)
	long.SourceCode = strings.Repeat("z", maxExcerptChars*2)
	s := New(&fakeAI{}, &fakeSearcher{matches: []store.EmbeddingMatch{long}}, log.NewNop())

	ex, err := s.Answer(context.Background(), uuid.New(), "what is in big.go?")
	require.NoError(t, err)
	assert.LessOrEqual(t, strings.Count(ex.prompt, "z"), maxExcerptChars)
}

func TestAnswerEmbedFailureIsFatal(t *testing.T) {
	boom := errors.New("embedding backend down")
	s := New(&fakeAI{embedErr: boom}, &fakeSearcher{}, log.NewNop())

	_, err := s.Answer(context.Background(), uuid.New(), "q")
	require.ErrorIs(t, err, boom)
}

func TestAnswerSearchFailureIsFatal(t *testing.T) {
	boom := errors.New("database down")
	s := New(&fakeAI{}, &fakeSearcher{searchErr: boom}, log.NewNop())

	_, err := s.Answer(context.Background(), uuid.New(), "q")
	require.ErrorIs(t, err, boom)
}

func TestStreamPreservesChunkOrder(t *testing.T) {
	chunks := []string{"Hello", " ", "world"}
	search := &fakeSearcher{matches: []store.EmbeddingMatch{match("a.go", 0.5)}}
	s := New(&fakeAI{chunks: chunks}, search, log.NewNop())

	ex, err := s.Answer(context.Background(), uuid.New(), "greet me")
	require.NoError(t, err)

	var got []string
	err = s.Stream(context.Background(), ex, func(chunk string) error {
		got = append(got, chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, chunks, got)
}

func TestStreamSendsContextAndQuestion(t *testing.T) {
	var system, prompt string
	ai := &fakeAI{streamFn: func(sys, p string, _ func(string) error) error {
		system, prompt = sys, p
		return nil
	}}
	search := &fakeSearcher{matches: []store.EmbeddingMatch{match("src/auth.ts", 0.45)}}
	s := New(ai, search, log.NewNop())

	ex, err := s.Answer(context.Background(), uuid.New(), "how does login work?")
	require.NoError(t, err)
	require.NoError(t, s.Stream(context.Background(), ex, func(string) error { return nil }))

	assert.Contains(t, system, "codebase")
	assert.Contains(t, prompt, "### File: src/auth.ts")
	assert.Contains(t, prompt, "summary of src/auth.ts")
	assert.Contains(t, prompt, "how does login work?")
}

func TestSavePersistsExchange(t *testing.T) {
	search := &fakeSearcher{matches: []store.EmbeddingMatch{match("a.go", 0.9)}}
	s := New(&fakeAI{}, search, log.NewNop())

	projectID := uuid.New()
	ex, err := s.Answer(context.Background(), projectID, "what is a.go?")
	require.NoError(t, err)

	_, err = s.Save(context.Background(), ex, "user-1", "a.go does things")
	require.NoError(t, err)

	require.Len(t, search.saved, 1)
	q := search.saved[0]
	assert.Equal(t, projectID, q.ProjectID)
	assert.Equal(t, "user-1", q.UserID)
	assert.Equal(t, "what is a.go?", q.Question)
	assert.Equal(t, "a.go does things", q.Answer)
	require.Len(t, q.FileReferences, 1)
	assert.Equal(t, "a.go", q.FileReferences[0].FileName)
}
