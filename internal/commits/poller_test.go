package commits

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelore/codelore/internal/gitsource"
	"github.com/codelore/codelore/internal/log"
	"github.com/codelore/codelore/internal/store"
)

type fakeGit struct {
	commits []gitsource.CommitInfo
	diffErr map[string]error
}

func (f *fakeGit) RecentCommits(context.Context, string, string, int) ([]gitsource.CommitInfo, error) {
	return f.commits, nil
}

func (f *fakeGit) CommitDiff(_ context.Context, _, _, sha string) (string, error) {
	if err := f.diffErr[sha]; err != nil {
		return "", err
	}
	return "diff of " + sha, nil
}

type fakeAI struct {
	mu     sync.Mutex
	calls  int
	failOn map[string]bool
}

func (f *fakeAI) SummarizeDiff(_ context.Context, diff string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.failOn[diff] {
		return "", errors.New("model unavailable")
	}
	return "summary: " + diff, nil
}

type fakeStore struct {
	project  *store.Project
	hashes   map[string]bool
	inserted [][]store.Commit
}

func (f *fakeStore) GetProject(context.Context, uuid.UUID) (*store.Project, error) {
	return f.project, nil
}

func (f *fakeStore) ListCommitHashes(context.Context, uuid.UUID) (map[string]bool, error) {
	if f.hashes == nil {
		return map[string]bool{}, nil
	}
	return f.hashes, nil
}

func (f *fakeStore) InsertCommits(_ context.Context, commits []store.Commit) (int, error) {
	f.inserted = append(f.inserted, commits)
	n := 0
	if f.hashes == nil {
		f.hashes = map[string]bool{}
	}
	for _, c := range commits {
		if !f.hashes[c.CommitHash] {
			f.hashes[c.CommitHash] = true
			n++
		}
	}
	return n, nil
}

func commitInfo(hash string, age time.Duration) gitsource.CommitInfo {
	return gitsource.CommitInfo{
		Hash:       hash,
		Message:    "commit " + hash,
		AuthorName: "dev",
		Date:       time.Now().Add(-age),
	}
}

func testProject() *store.Project {
	return &store.Project{ID: uuid.New(), RepoURL: "https://github.com/o/r"}
}

func TestPollNoRepoURLIsNoop(t *testing.T) {
	st := &fakeStore{project: &store.Project{ID: uuid.New()}}
	p := New(&fakeGit{}, &fakeAI{}, st, log.NewNop())

	n, err := p.Poll(context.Background(), st.project.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, st.inserted)
}

func TestPollStoresNewCommits(t *testing.T) {
	git := &fakeGit{commits: []gitsource.CommitInfo{
		commitInfo("aaa", time.Hour),
		commitInfo("bbb", 2*time.Hour),
	}}
	st := &fakeStore{project: testProject()}
	p := New(git, &fakeAI{}, st, log.NewNop())

	n, err := p.Poll(context.Background(), st.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, st.inserted, 1)
	batch := st.inserted[0]
	require.Len(t, batch, 2)
	assert.Equal(t, "aaa", batch[0].CommitHash)
	assert.Equal(t, "summary: diff of aaa", batch[0].Summary)
	assert.Equal(t, "bbb", batch[1].CommitHash)
}

func TestPollSkipsStoredHashes(t *testing.T) {
	git := &fakeGit{commits: []gitsource.CommitInfo{
		commitInfo("aaa", time.Hour),
		commitInfo("bbb", 2*time.Hour),
		commitInfo("ccc", 3*time.Hour),
	}}
	st := &fakeStore{
		project: testProject(),
		hashes:  map[string]bool{"aaa": true, "ccc": true},
	}
	ai := &fakeAI{}
	p := New(git, ai, st, log.NewNop())

	n, err := p.Poll(context.Background(), st.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, st.inserted, 1)
	require.Len(t, st.inserted[0], 1)
	assert.Equal(t, "bbb", st.inserted[0][0].CommitHash)
	assert.Equal(t, 1, ai.calls, "already-stored commits must not be summarized again")
}

func TestPollSecondRunIsNoop(t *testing.T) {
	git := &fakeGit{commits: []gitsource.CommitInfo{
		commitInfo("aaa", time.Hour),
		commitInfo("bbb", 2*time.Hour),
	}}
	st := &fakeStore{project: testProject()}
	p := New(git, &fakeAI{}, st, log.NewNop())

	first, err := p.Poll(context.Background(), st.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, first)

	second, err := p.Poll(context.Background(), st.project.ID)
	require.NoError(t, err)
	assert.Zero(t, second, "unchanged repository state must poll to zero")
}

func TestPollIsolatesSummaryFailure(t *testing.T) {
	git := &fakeGit{commits: []gitsource.CommitInfo{
		commitInfo("aaa", time.Hour),
		commitInfo("bbb", 2*time.Hour),
		commitInfo("ccc", 3*time.Hour),
	}}
	ai := &fakeAI{failOn: map[string]bool{"diff of bbb": true}}
	st := &fakeStore{project: testProject()}
	p := New(git, ai, st, log.NewNop())

	n, err := p.Poll(context.Background(), st.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "a failed summary must not drop the commit")

	batch := st.inserted[0]
	require.Len(t, batch, 3)
	assert.Equal(t, "summary: diff of aaa", batch[0].Summary)
	assert.Empty(t, batch[1].Summary, "failed summary is stored as empty string")
	assert.Equal(t, "summary: diff of ccc", batch[2].Summary)
}

func TestPollIsolatesDiffFailure(t *testing.T) {
	git := &fakeGit{
		commits: []gitsource.CommitInfo{commitInfo("aaa", time.Hour)},
		diffErr: map[string]error{"aaa": errors.New("diff too large")},
	}
	st := &fakeStore{project: testProject()}
	p := New(git, &fakeAI{}, st, log.NewNop())

	n, err := p.Poll(context.Background(), st.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, st.inserted[0][0].Summary)
}

func TestPollPreservesCommitOrder(t *testing.T) {
	var infos []gitsource.CommitInfo
	for i := 0; i < 10; i++ {
		infos = append(infos, commitInfo(fmt.Sprintf("h%d", i), time.Duration(i)*time.Hour))
	}
	st := &fakeStore{project: testProject()}
	p := New(&fakeGit{commits: infos}, &fakeAI{}, st, log.NewNop())

	_, err := p.Poll(context.Background(), st.project.ID)
	require.NoError(t, err)

	batch := st.inserted[0]
	require.Len(t, batch, 10)
	for i, c := range batch {
		assert.Equal(t, fmt.Sprintf("h%d", i), c.CommitHash)
		assert.Equal(t, fmt.Sprintf("summary: diff of h%d", i), c.Summary)
	}
}
