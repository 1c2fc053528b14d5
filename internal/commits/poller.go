// Package commits keeps a project's commit log summarized. Each poll fetches
// the newest commits from the repository host, summarizes the diffs of those
// not yet stored, and persists them in one batch.
package commits

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/codelore/codelore/internal/gitsource"
	"github.com/codelore/codelore/internal/store"
)

// pollLimit is how many recent commits one poll considers.
const pollLimit = 10

// GitHost is the slice of the repository client the poller needs.
type GitHost interface {
	RecentCommits(ctx context.Context, repoURL, token string, n int) ([]gitsource.CommitInfo, error)
	CommitDiff(ctx context.Context, repoURL, token, sha string) (string, error)
}

// AI is the slice of the model client the poller needs.
type AI interface {
	SummarizeDiff(ctx context.Context, diff string) (string, error)
}

// Store is the slice of persistence the poller needs.
type Store interface {
	GetProject(ctx context.Context, id uuid.UUID) (*store.Project, error)
	ListCommitHashes(ctx context.Context, projectID uuid.UUID) (map[string]bool, error)
	InsertCommits(ctx context.Context, commits []store.Commit) (int, error)
}

// Poller summarizes and stores new commits.
type Poller struct {
	git    GitHost
	ai     AI
	store  Store
	logger *slog.Logger
}

// New creates a Poller.
func New(git GitHost, ai AI, st Store, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{git: git, ai: ai, store: st, logger: logger}
}

// Poll processes new commits for a project and returns how many were stored.
// A project without a repository URL is a valid state and polls to zero.
// Re-invoking on unchanged repository state is a no-op: dedup is a set
// difference against stored hashes, backed by the store's unique constraint.
//
// Summarization fans out per commit; one failed summary yields an empty
// string for that commit and does not block its siblings. There is no
// poll-level retry, the AI client retries rate limits itself.
func (p *Poller) Poll(ctx context.Context, projectID uuid.UUID) (int, error) {
	project, err := p.store.GetProject(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("resolving project: %w", err)
	}
	if project.RepoURL == "" {
		return 0, nil
	}

	recent, err := p.git.RecentCommits(ctx, project.RepoURL, project.AccessToken, pollLimit)
	if err != nil {
		return 0, fmt.Errorf("fetching recent commits: %w", err)
	}

	seen, err := p.store.ListCommitHashes(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("listing stored hashes: %w", err)
	}

	var fresh []gitsource.CommitInfo
	for _, c := range recent {
		if !seen[c.Hash] {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		p.logger.Debug("no new commits", "project_id", projectID)
		return 0, nil
	}

	summaries := p.summarizeAll(ctx, project, fresh)

	batch := make([]store.Commit, len(fresh))
	for i, c := range fresh {
		batch[i] = store.Commit{
			ProjectID:    projectID,
			CommitHash:   c.Hash,
			Message:      c.Message,
			AuthorName:   c.AuthorName,
			AuthorAvatar: c.AuthorAvatar,
			CommitDate:   c.Date,
			Summary:      summaries[i],
		}
	}

	inserted, err := p.store.InsertCommits(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("inserting commits: %w", err)
	}

	p.logger.Info("polled commits",
		"project_id", projectID,
		"recent", len(recent),
		"new", len(fresh),
		"inserted", inserted,
	)
	return inserted, nil
}

// summarizeAll fetches and summarizes each commit's diff concurrently.
// Results land in a slice indexed to match fresh, preserving commit order.
// Failures leave an empty summary for that slot.
func (p *Poller) summarizeAll(ctx context.Context, project *store.Project, fresh []gitsource.CommitInfo) []string {
	summaries := make([]string, len(fresh))

	var wg sync.WaitGroup
	for i, c := range fresh {
		wg.Add(1)
		go func() {
			defer wg.Done()

			diff, err := p.git.CommitDiff(ctx, project.RepoURL, project.AccessToken, c.Hash)
			if err != nil {
				p.logger.Warn("fetching commit diff failed",
					"project_id", project.ID, "hash", c.Hash, "error", err)
				return
			}

			summary, err := p.ai.SummarizeDiff(ctx, diff)
			if err != nil {
				p.logger.Warn("summarizing commit failed",
					"project_id", project.ID, "hash", c.Hash, "error", err)
				return
			}
			summaries[i] = summary
		}()
	}
	wg.Wait()

	return summaries
}
