package marketplace

import "context"

// Store persists Job aggregates as whole documents.
//
// SaveJob must be a compare-and-swap on Version: it succeeds only when the
// stored version equals job.Version, stores job with Version+1 and returns
// the stored copy. Otherwise it returns ErrStaleVersion (or ErrNotFound when
// the document is gone).
type Store interface {
	LoadJob(ctx context.Context, id string) (*Job, error)
	SaveJob(ctx context.Context, job *Job) (*Job, error)
	CreateJob(ctx context.Context, job *Job) (*Job, error)
	DeleteJob(ctx context.Context, id string) error
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)
}

// UserDirectory resolves identities to their display form.
type UserDirectory interface {
	LookupUser(ctx context.Context, id string) (*User, error)
}

// Publisher broadcasts domain events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Event types published after a successful save.
const (
	EventApplicationSubmitted = "EVENT_APPLICATION_SUBMITTED"
	EventApplicationAccepted  = "EVENT_APPLICATION_ACCEPTED"
	EventApplicationRejected  = "EVENT_APPLICATION_REJECTED"
	EventJobCompleted         = "EVENT_JOB_COMPLETED"
	EventCommentPosted        = "EVENT_COMMENT_POSTED"
	EventJobDeadlinePassed    = "EVENT_JOB_DEADLINE_PASSED"
)

// Event is the payload sent to subscribers.
type Event struct {
	Type        string `json:"type"`
	JobID       string `json:"jobId"`
	UserID      string `json:"userId,omitempty"`
	ApplicantID string `json:"applicantId,omitempty"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
