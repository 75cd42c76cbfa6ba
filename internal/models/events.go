package models

import "time"

// EventKind identifies the webhook shape a QueuedEvent carries.
type EventKind string

const (
	EventKindIssueComment      EventKind = "issue_comment"
	EventKindPullRequestReview EventKind = "pull_request_review"
	EventKindPullRequest       EventKind = "pull_request"
)

// QueuedEvent is a webhook persisted to the durable queue before
// acknowledgement. Creation timestamp is the sole ordering key; JobID is set
// once a Job has been bound to this event, and the event is deleted once its
// handler completes successfully.
type QueuedEvent struct {
	ID         string
	JobID      string // empty until a job is bound
	Kind       EventKind
	Payload    []byte
	CreatedUTC time.Time
}

// Job tracks the queued/started/finished lifecycle for one dispatched event.
// A Job exists iff the binding update on its event has committed; FinishedAt
// is the zero Time until job_finished is called.
type Job struct {
	ID            string
	EventQueuedAt time.Time
	CreatedAt     time.Time
	FinishedAt    time.Time // zero value means "not yet finished"
}

// Finished reports whether this job has been stamped complete.
func (j *Job) Finished() bool {
	return !j.FinishedAt.IsZero()
}
