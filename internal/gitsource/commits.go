package gitsource

import (
	"context"
	"sort"
	"time"

	"github.com/google/go-github/v60/github"
)

// CommitInfo is one commit from the repository host's commit list.
type CommitInfo struct {
	Hash         string
	Message      string
	AuthorName   string
	AuthorAvatar string
	Date         time.Time
}

// RecentCommits returns the newest n commits of a repository, sorted by
// commit date descending.
func (c *Client) RecentCommits(ctx context.Context, repoURL, token string, n int) ([]CommitInfo, error) {
	repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	gh := c.api(token)

	commits, _, err := gh.Repositories.ListCommits(ctx, repo.Owner, repo.Name,
		&github.CommitsListOptions{ListOptions: github.ListOptions{PerPage: n}})
	if err != nil {
		return nil, accessError("listing commits", err)
	}

	infos := make([]CommitInfo, 0, len(commits))
	for _, rc := range commits {
		infos = append(infos, CommitInfo{
			Hash:         rc.GetSHA(),
			Message:      rc.GetCommit().GetMessage(),
			AuthorName:   rc.GetCommit().GetAuthor().GetName(),
			AuthorAvatar: rc.GetAuthor().GetAvatarURL(),
			Date:         rc.GetCommit().GetAuthor().GetDate().Time,
		})
	}

	// The API returns newest-first, but that is not contractual; sort
	// explicitly and trim.
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Date.After(infos[j].Date)
	})
	if len(infos) > n {
		infos = infos[:n]
	}
	return infos, nil
}

// CommitDiff fetches the unified diff of a single commit.
func (c *Client) CommitDiff(ctx context.Context, repoURL, token, sha string) (string, error) {
	repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return "", err
	}
	gh := c.api(token)

	diff, _, err := gh.Repositories.GetCommitRaw(ctx, repo.Owner, repo.Name, sha, rawOptsDiff)
	if err != nil {
		return "", accessError("fetching commit diff", err)
	}
	return diff, nil
}
