// Package gitsource fetches repository contents and commit history from
// GitHub. It is the single integration point with the repository host; the
// indexing pipeline and the commit poller both consume it.
package gitsource

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v60/github"
)

// ErrRepositoryAccess indicates the repository is unreachable or the token
// lacks permission. Callers treat this as fatal for the containing run.
var ErrRepositoryAccess = errors.New("repository access failed")

// Repo identifies a GitHub repository.
type Repo struct {
	Owner string
	Name  string
}

// ParseRepoURL extracts owner and repository name from a GitHub URL such as
// https://github.com/owner/repo or https://github.com/owner/repo.git.
func ParseRepoURL(repoURL string) (Repo, error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return Repo{}, fmt.Errorf("%w: invalid URL %q: %v", ErrRepositoryAccess, repoURL, err)
	}
	if u.Host != "github.com" && u.Host != "www.github.com" {
		return Repo{}, fmt.Errorf("%w: unsupported host %q", ErrRepositoryAccess, u.Host)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Repo{}, fmt.Errorf("%w: URL %q does not name owner/repo", ErrRepositoryAccess, repoURL)
	}

	return Repo{
		Owner: parts[0],
		Name:  strings.TrimSuffix(parts[1], ".git"),
	}, nil
}

// Client wraps the GitHub API for repository loading and commit polling.
type Client struct {
	fallbackToken string
	logger        *slog.Logger
}

// NewClient creates a gitsource client. fallbackToken is used for projects
// that carry no token of their own; it may be empty for public repositories.
func NewClient(fallbackToken string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{fallbackToken: fallbackToken, logger: logger}
}

// api builds a go-github client authenticated with the project token when
// present, falling back to the process-wide token.
func (c *Client) api(token string) *github.Client {
	gh := github.NewClient(nil)
	if token == "" {
		token = c.fallbackToken
	}
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	return gh
}

// accessError wraps GitHub responses that mean "you cannot see this
// repository" in ErrRepositoryAccess so callers can treat them uniformly.
func accessError(op string, err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return fmt.Errorf("%w: %s: %v", ErrRepositoryAccess, op, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
