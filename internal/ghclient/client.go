// Package ghclient implements interfaces.PlatformClient on top of
// go-github: it posts/edits result comments, sets commit statuses, and
// fetches pull request head/base descriptors.
package ghclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v75/github"
	"golang.org/x/time/rate"

	"github.com/aochagavia/ci-bench-runner/internal/common"
	"github.com/aochagavia/ci-bench-runner/internal/interfaces"
	"github.com/aochagavia/ci-bench-runner/internal/models"
)

const (
	// DefaultTimeout bounds a single outbound GitHub API call.
	DefaultTimeout = 30 * time.Second
	// DefaultRateLimit is the default number of outbound requests per second.
	DefaultRateLimit = 5
)

// Client implements interfaces.PlatformClient using go-github.
type Client struct {
	gh      *github.Client
	owner   string
	repo    string
	logger  *common.Logger
	limiter *rate.Limiter
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithRateLimit sets the outbound requests-per-second limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP client's timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.gh.Client().Timeout = timeout
	}
}

// WithBaseURL points the client at an alternate API base, e.g. for GitHub
// Enterprise or a test server.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		u, err := c.gh.BaseURL.Parse(baseURL)
		if err == nil {
			c.gh.BaseURL = u
		}
	}
}

// NewClient builds a Client authenticated with token, scoped to one
// owner/repo pair (the only repository this bench runner watches).
func NewClient(token, owner, repo string, opts ...ClientOption) *Client {
	httpClient := &http.Client{Timeout: DefaultTimeout}
	gh := github.NewClient(httpClient)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}

	c := &Client{
		gh:      gh,
		owner:   owner,
		repo:    repo,
		logger:  common.NewSilentLogger(),
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// CreateComment posts a new comment on the issue backing prNumber.
func (c *Client) CreateComment(ctx context.Context, prNumber int, body string) (int64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter: %w", err)
	}
	comment, _, err := c.gh.Issues.CreateComment(ctx, c.owner, c.repo, prNumber, &github.IssueComment{
		Body: github.Ptr(body),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create comment on PR #%d: %w", prNumber, err)
	}
	return comment.GetID(), nil
}

// UpdateComment edits an existing comment in place.
func (c *Client) UpdateComment(ctx context.Context, commentID int64, body string) error {
	if err := c.wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	_, _, err := c.gh.Issues.EditComment(ctx, c.owner, c.repo, commentID, &github.IssueComment{
		Body: github.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("failed to update comment %d: %w", commentID, err)
	}
	return nil
}

// UpdateCommitStatus sets the commit status for commitSHA. Failures are
// logged by the caller (§4.5 treats status updates as best-effort); this
// method still propagates the error so the caller can decide.
func (c *Client) UpdateCommitStatus(ctx context.Context, commitSHA string, state interfaces.CommitState) error {
	if err := c.wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	_, _, err := c.gh.Repositories.CreateStatus(ctx, c.owner, c.repo, commitSHA, &github.RepoStatus{
		State:   github.Ptr(string(state)),
		Context: github.Ptr("ci-bench-runner"),
	})
	if err != nil {
		return fmt.Errorf("failed to set commit status %s on %s: %w", state, commitSHA, err)
	}
	return nil
}

// GetPullRequest fetches a pull request's head/base descriptors.
func (c *Client) GetPullRequest(ctx context.Context, prNumber int) (*models.RevisionPair, error) {
	if err := c.wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	pr, _, err := c.gh.PullRequests.Get(ctx, c.owner, c.repo, prNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get PR #%d: %w", prNumber, err)
	}
	branches, ok := RevisionPairFromPullRequest(pr)
	if !ok {
		return nil, fmt.Errorf("PR #%d is missing head/base repo details", prNumber)
	}
	return branches, nil
}
