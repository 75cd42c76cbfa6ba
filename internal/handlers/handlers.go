// Package handlers implements the per-event-kind logic of §4.4: it decides
// whether a webhook constitutes a valid bench request from a trusted author,
// and if so delegates to the Bench Pipeline.
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/aochagavia/ci-bench-runner/internal/benchpipeline"
	"github.com/aochagavia/ci-bench-runner/internal/common"
	"github.com/aochagavia/ci-bench-runner/internal/ghclient"
	"github.com/aochagavia/ci-bench-runner/internal/interfaces"
	"github.com/aochagavia/ci-bench-runner/internal/models"
)

// allowedAuthorAssociations is the fixed trusted set: the owner of the
// repository, a member of the organization that owns it, or someone invited
// to collaborate on it.
var allowedAuthorAssociations = map[string]bool{
	"OWNER":        true,
	"MEMBER":       true,
	"COLLABORATOR": true,
}

// helpComment is posted when a comment addresses the bot with an
// unrecognized subcommand.
const helpComment = "Unrecognized command. Available commands are:\n" +
	"* `@%s bench`: runs the instruction count benchmarks and reports the results"

// Handlers holds the collaborators shared by the comment, review, and
// PR-update handlers.
type Handlers struct {
	platform interfaces.PlatformClient
	pipeline *benchpipeline.Pipeline
	config   *common.Config
	logger   *common.Logger
}

// New builds a Handlers bound to the given Bench Pipeline and platform
// client, using config for the repo owner/name and bot login.
func New(platform interfaces.PlatformClient, pipeline *benchpipeline.Pipeline, config *common.Config, logger *common.Logger) *Handlers {
	return &Handlers{platform: platform, pipeline: pipeline, config: config, logger: logger}
}

// isTrustedAuthor reports whether association is in the fixed trusted set.
func isTrustedAuthor(association string) bool {
	return allowedAuthorAssociations[association]
}

// HandleIssueComment applies when the payload is a comment on a pull
// request (not a plain issue) with action "created". Body matching
// "@<bot> bench" triggers the bench pipeline for the PR's head branch
// versus its base branch. Body containing "@<bot>" but no recognized
// subcommand triggers a help reply. Anything else is silently ignored.
func (h *Handlers) HandleIssueComment(ctx context.Context, event *models.QueuedEvent) error {
	logger := common.LoggerFromContext(ctx, h.logger)

	payload, err := ghclient.DecodeIssueCommentEvent(event.Payload)
	if err != nil {
		logger.Error().Err(err).Msg("invalid issue_comment payload, ignoring event")
		return nil
	}

	if payload.GetIssue().GetPullRequestLinks() == nil {
		logger.Trace().Msg("comment was on a plain issue, not a PR; ignoring")
		return nil
	}

	if payload.GetAction() != "created" {
		logger.Trace().Str("action", payload.GetAction()).Msg("ignoring issue_comment action")
		return nil
	}

	comment := payload.GetComment()
	if comment.GetUser().GetLogin() == h.config.BotLogin {
		logger.Trace().Msg("ignoring comment from the bot's own login")
		return nil
	}

	if !isTrustedAuthor(comment.GetAuthorAssociation()) {
		logger.Trace().Str("author_association", comment.GetAuthorAssociation()).Msg("ignoring comment from unauthorized user")
		return nil
	}

	prNumber := payload.GetIssue().GetNumber()
	body := comment.GetBody()
	mention := "@" + h.config.BotLogin
	benchCommand := mention + " bench"

	switch {
	case strings.Contains(body, benchCommand):
		return h.benchFromComment(ctx, prNumber, logger)
	case strings.Contains(body, mention):
		logger.Debug().Msg("comment addressed the bot with an unknown command")
		_, err := h.platform.CreateComment(ctx, prNumber, fmt.Sprintf(helpComment, h.config.BotLogin))
		return err
	default:
		logger.Trace().Msg("comment was not addressed at the bot")
		return nil
	}
}

// benchFromComment fetches the PR's current head/base and delegates to the
// pipeline, additionally gating on same-repo head/base (the conservative
// reading of the forked-PR Open Question: a maintainer commenting on a fork
// PR should not bench untrusted code any more than a synchronize event
// would).
func (h *Handlers) benchFromComment(ctx context.Context, prNumber int, logger *common.Logger) error {
	branches, err := h.platform.GetPullRequest(ctx, prNumber)
	if err != nil {
		return fmt.Errorf("unable to get PR details for #%d: %w", prNumber, err)
	}
	if branches.Baseline.CloneURL != branches.Candidate.CloneURL {
		logger.Trace().Int("pr", prNumber).Msg("ignoring bench comment for forked PR")
		return nil
	}
	return h.pipeline.BenchPR(ctx, prNumber, *branches)
}

// HandlePullRequestReview applies when the action is "submitted" and review
// state is "approved". The candidate commit is overridden to the commit_id
// recorded on the review itself, not the PR head, to avoid benchmarking a
// subsequent force-push.
func (h *Handlers) HandlePullRequestReview(ctx context.Context, event *models.QueuedEvent) error {
	logger := common.LoggerFromContext(ctx, h.logger)

	payload, err := ghclient.DecodePullRequestReviewEvent(event.Payload)
	if err != nil {
		logger.Error().Err(err).Msg("invalid pull_request_review payload, ignoring event")
		return nil
	}

	if payload.GetAction() != "submitted" {
		logger.Trace().Str("action", payload.GetAction()).Msg("ignoring pull_request_review action")
		return nil
	}

	review := payload.GetReview()
	if !isTrustedAuthor(review.GetAuthorAssociation()) {
		logger.Trace().Msg("ignoring review from untrusted author")
		return nil
	}
	if review.GetState() != "approved" {
		logger.Trace().Str("state", review.GetState()).Msg("ignoring non-approved review")
		return nil
	}

	branches, ok := ghclient.RevisionPairFromPullRequest(payload.PullRequest)
	if !ok {
		logger.Error().Msg("unable to obtain branches from pull_request_review payload, ignoring event")
		return nil
	}
	// Bench the commit that was actually reviewed, not whatever the PR head
	// has since moved to.
	branches.Candidate.CommitSHA = review.GetCommitID()

	return h.pipeline.BenchPR(ctx, payload.PullRequest.GetNumber(), *branches)
}

// HandlePullRequestUpdate applies when the action is "opened" or
// "synchronize". It additionally requires that the PR's head and base
// repositories share the same clone URL; pull requests from forks are
// rejected here to avoid executing untrusted code.
func (h *Handlers) HandlePullRequestUpdate(ctx context.Context, event *models.QueuedEvent) error {
	logger := common.LoggerFromContext(ctx, h.logger)

	payload, err := ghclient.DecodePullRequestEvent(event.Payload)
	if err != nil {
		logger.Error().Err(err).Msg("invalid pull_request payload, ignoring event")
		return nil
	}

	action := payload.GetAction()
	if action != "opened" && action != "synchronize" {
		logger.Trace().Str("action", action).Msg("ignoring pull_request action")
		return nil
	}

	branches, ok := ghclient.RevisionPairFromPullRequest(payload.PullRequest)
	if !ok {
		logger.Error().Msg("unable to obtain branches from pull_request payload, ignoring event")
		return nil
	}

	if branches.Baseline.CloneURL != branches.Candidate.CloneURL {
		logger.Trace().
			Str("base_repo", branches.Baseline.CloneURL).
			Str("head_repo", branches.Candidate.CloneURL).
			Msg("ignoring pull request update for forked repo")
		return nil
	}

	return h.pipeline.BenchPR(ctx, payload.GetNumber(), *branches)
}
