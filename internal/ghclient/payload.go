package ghclient

import (
	"encoding/json"
	"fmt"

	"github.com/google/go-github/v75/github"

	"github.com/aochagavia/ci-bench-runner/internal/models"
)

// DecodeIssueCommentEvent parses the raw body of an "issue_comment" webhook.
func DecodeIssueCommentEvent(payload []byte) (*github.IssueCommentEvent, error) {
	var event github.IssueCommentEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("invalid issue_comment payload: %w", err)
	}
	return &event, nil
}

// DecodePullRequestReviewEvent parses the raw body of a
// "pull_request_review" webhook.
func DecodePullRequestReviewEvent(payload []byte) (*github.PullRequestReviewEvent, error) {
	var event github.PullRequestReviewEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("invalid pull_request_review payload: %w", err)
	}
	return &event, nil
}

// DecodePullRequestEvent parses the raw body of a "pull_request" webhook.
func DecodePullRequestEvent(payload []byte) (*github.PullRequestEvent, error) {
	var event github.PullRequestEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("invalid pull_request payload: %w", err)
	}
	return &event, nil
}

// RevisionPairFromPullRequest extracts the (baseline, candidate) descriptors
// from a go-github PullRequest. Returns ok=false if either side is missing
// the repo details needed to build a clone URL.
func RevisionPairFromPullRequest(pr *github.PullRequest) (*models.RevisionPair, bool) {
	if pr == nil || pr.Head == nil || pr.Base == nil {
		return nil, false
	}
	candidate, ok := revisionFromBranch(pr.Head)
	if !ok {
		return nil, false
	}
	baseline, ok := revisionFromBranch(pr.Base)
	if !ok {
		return nil, false
	}
	return &models.RevisionPair{Baseline: baseline, Candidate: candidate}, true
}

func revisionFromBranch(branch *github.PullRequestBranch) (models.Revision, bool) {
	if branch == nil || branch.Repo == nil || branch.Repo.CloneURL == nil {
		return models.Revision{}, false
	}
	return models.Revision{
		Branch:    branch.GetRef(),
		CommitSHA: branch.GetSHA(),
		CloneURL:  branch.Repo.GetCloneURL(),
	}, true
}
