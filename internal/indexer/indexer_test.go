package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelore/codelore/internal/gitsource"
	"github.com/codelore/codelore/internal/log"
	"github.com/codelore/codelore/internal/store"
)

type fakeLoader struct {
	files []gitsource.File
	err   error
}

func (f *fakeLoader) Load(context.Context, string, string) ([]gitsource.File, error) {
	return f.files, f.err
}

type fakeAI struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	failOn      map[string]error
	summarized  []string
}

func (f *fakeAI) SummarizeCode(_ context.Context, fileName, _ string) (string, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if err := f.failOn[fileName]; err != nil {
		return "", err
	}
	f.mu.Lock()
	f.summarized = append(f.summarized, fileName)
	f.mu.Unlock()
	return "summary of " + fileName, nil
}

func (f *fakeAI) Embed(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 0, 0, 0}, nil
}

type fakeWriter struct {
	inserted  []store.Embedding
	deleted   int
	insertErr map[string]error
}

func (f *fakeWriter) InsertEmbedding(_ context.Context, e store.Embedding) error {
	if err := f.insertErr[e.FileName]; err != nil {
		return err
	}
	f.inserted = append(f.inserted, e)
	return nil
}

func (f *fakeWriter) DeleteEmbeddings(context.Context, uuid.UUID) (int64, error) {
	f.deleted++
	return int64(len(f.inserted)), nil
}

func goFile(path string, lines int) gitsource.File {
	var b strings.Builder
	b.WriteString("package example\n\n")
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&b, "func fn%d() int { return %d }\n", i, i)
	}
	return gitsource.File{Path: path, Content: b.String()}
}

func TestRunIndexesQualifyingFiles(t *testing.T) {
	loader := &fakeLoader{files: []gitsource.File{
		goFile("a.go", 10),
		goFile("b.go", 10),
		{Path: "README.md", Content: strings.Repeat("words ", 50)}, // filtered out
	}}
	ai := &fakeAI{}
	w := &fakeWriter{}
	ix := New(loader, ai, w, log.NewNop())

	res, err := ix.Run(context.Background(), uuid.New(), "https://github.com/o/r", "")
	require.NoError(t, err)

	assert.Equal(t, 3, res.Loaded)
	assert.Equal(t, 2, res.Filtered)
	assert.Equal(t, 2, res.Embedded)
	assert.Equal(t, 0, res.Skipped)
	require.Len(t, w.inserted, 2)
	assert.Equal(t, "a.go", w.inserted[0].FileName)
	assert.Equal(t, "summary of a.go", w.inserted[0].Summary)
	assert.NotEmpty(t, w.inserted[0].Vector)
}

func TestRunIsolatesPerFileFailure(t *testing.T) {
	loader := &fakeLoader{files: []gitsource.File{
		goFile("a.go", 10),
		goFile("b.go", 10),
		goFile("c.go", 10),
	}}
	ai := &fakeAI{failOn: map[string]error{"b.go": errors.New("model unavailable")}}
	w := &fakeWriter{}
	ix := New(loader, ai, w, log.NewNop())

	res, err := ix.Run(context.Background(), uuid.New(), "https://github.com/o/r", "")
	require.NoError(t, err, "one bad file must not abort the run")

	assert.Equal(t, 3, res.Filtered)
	assert.Equal(t, 2, res.Embedded)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, w.inserted, 2)
	assert.Equal(t, []string{"a.go", "c.go"},
		[]string{w.inserted[0].FileName, w.inserted[1].FileName})
}

func TestRunIsolatesPersistFailure(t *testing.T) {
	loader := &fakeLoader{files: []gitsource.File{
		goFile("a.go", 10),
		goFile("b.go", 10),
	}}
	w := &fakeWriter{insertErr: map[string]error{"a.go": errors.New("conn closed")}}
	ix := New(loader, &fakeAI{}, w, log.NewNop())

	res, err := ix.Run(context.Background(), uuid.New(), "https://github.com/o/r", "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Embedded)
	assert.Equal(t, 1, res.Skipped)
}

func TestRunAbortsOnLoaderFailure(t *testing.T) {
	loader := &fakeLoader{err: fmt.Errorf("%w: repo gone", gitsource.ErrRepositoryAccess)}
	ix := New(loader, &fakeAI{}, &fakeWriter{}, log.NewNop())

	res, err := ix.Run(context.Background(), uuid.New(), "https://github.com/o/r", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, gitsource.ErrRepositoryAccess)
	assert.Nil(t, res)
}

func TestRunProcessesSequentially(t *testing.T) {
	var files []gitsource.File
	for i := 0; i < 8; i++ {
		files = append(files, goFile(fmt.Sprintf("f%d.go", i), 10))
	}
	ai := &fakeAI{}
	ix := New(&fakeLoader{files: files}, ai, &fakeWriter{}, log.NewNop())

	_, err := ix.Run(context.Background(), uuid.New(), "https://github.com/o/r", "")
	require.NoError(t, err)
	assert.Equal(t, 1, ai.maxInFlight, "files must be processed one at a time")
}

func TestReindexDeletesBeforeRunning(t *testing.T) {
	loader := &fakeLoader{files: []gitsource.File{goFile("a.go", 10)}}
	w := &fakeWriter{}
	ix := New(loader, &fakeAI{}, w, log.NewNop())

	res, err := ix.Reindex(context.Background(), uuid.New(), "https://github.com/o/r", "")
	require.NoError(t, err)
	assert.Equal(t, 1, w.deleted)
	assert.Equal(t, 1, res.Embedded)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	loader := &fakeLoader{files: []gitsource.File{goFile("a.go", 10)}}
	ix := New(loader, &fakeAI{}, &fakeWriter{}, log.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ix.Run(ctx, uuid.New(), "https://github.com/o/r", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
