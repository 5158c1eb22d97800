package marketplace

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"jobmate/marketplace-service/internal/metrics"
	"jobmate/marketplace-service/internal/moderation"
)

const tracerName = "jobmate/marketplace-service"

// maxAttempts bounds how many times one action is re-evaluated after its
// save lost a version race.
const maxAttempts = 3

// ─── Service ─────────────────────────────────────────────────────────────────

// Service runs every workflow action as load → authorize → transition →
// save. It holds no per-job state; consistency comes from Store.SaveJob's
// version check.
type Service struct {
	store   Store
	users   UserDirectory
	events  Publisher
	filter  *moderation.Filter
	metrics *metrics.Recorder
	tracer  trace.Tracer
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithUserDirectory sets the directory used to resolve display names.
func WithUserDirectory(d UserDirectory) Option { return func(s *Service) { s.users = d } }

// WithPublisher sets the domain event publisher.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.events = p } }

// WithModeration rejects job text and comments containing blocked terms.
func WithModeration(f *moderation.Filter) Option { return func(s *Service) { s.filter = f } }

// WithMetrics records per-action metrics.
func WithMetrics(m *metrics.Recorder) Option { return func(s *Service) { s.metrics = m } }

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option { return func(s *Service) { s.tracer = t } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService returns a configured Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		events: nopPublisher{},
		tracer: otel.Tracer(tracerName),
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ─── Views ───────────────────────────────────────────────────────────────────

// JobView is a job with its owner resolved for display.
type JobView struct {
	*Job
	Owner *User `json:"owner,omitempty"`
}

// CommentView is a freshly posted comment with its author resolved.
type CommentView struct {
	Comment
	AuthorProfile *User `json:"authorProfile"`
}

// JobInput carries the fields of a new job.
type JobInput struct {
	Title       string
	Description string
	Budget      float64
	Deadline    time.Time
	Tags        []string
}

// JobPatch carries owner edits. Nil fields are left unchanged. Status is not
// editable; it only moves through workflow actions.
type JobPatch struct {
	Title       *string
	Description *string
	Budget      *float64
	Deadline    *time.Time
	Tags        *[]string
}

// ─── Workflow actions ────────────────────────────────────────────────────────

// Apply registers the freelancer as a pending applicant.
func (s *Service) Apply(ctx context.Context, jobID string, who Identity) (*Job, error) {
	job, err := s.run(ctx, ActionApply, jobID, who, func(j *Job) (*Job, error) {
		return Apply(j, who, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, Event{Type: EventApplicationSubmitted, JobID: job.ID, UserID: who.ID, ApplicantID: who.ID})
	return job, nil
}

// Accept engages one applicant and auto-rejects the remaining pending ones.
func (s *Service) Accept(ctx context.Context, jobID, applicantID string, who Identity) (*Job, error) {
	var before *Job
	job, err := s.run(ctx, ActionAccept, jobID, who, func(j *Job) (*Job, error) {
		before = j
		return Accept(j, applicantID)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, Event{
		Type: EventApplicationAccepted, JobID: job.ID, UserID: who.ID, ApplicantID: applicantID,
		From: string(before.Status), To: string(job.Status),
	})
	for i, a := range job.Applicants {
		if a.User != applicantID && a.Status == ApplicantRejected && before.Applicants[i].Status == ApplicantPending {
			s.publish(ctx, Event{Type: EventApplicationRejected, JobID: job.ID, UserID: who.ID, ApplicantID: a.User})
		}
	}
	return job, nil
}

// Reject declines a single pending applicant.
func (s *Service) Reject(ctx context.Context, jobID, applicantID string, who Identity) (*Job, error) {
	job, err := s.run(ctx, ActionReject, jobID, who, func(j *Job) (*Job, error) {
		return Reject(j, applicantID)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, Event{Type: EventApplicationRejected, JobID: job.ID, UserID: who.ID, ApplicantID: applicantID})
	return job, nil
}

// Complete closes an in-progress job.
func (s *Service) Complete(ctx context.Context, jobID string, who Identity) (*Job, error) {
	var from JobStatus
	job, err := s.run(ctx, ActionComplete, jobID, who, func(j *Job) (*Job, error) {
		from = j.Status
		return Complete(j)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, Event{Type: EventJobCompleted, JobID: job.ID, UserID: who.ID, From: string(from), To: string(job.Status)})
	return job, nil
}

// PostComment appends a comment and returns it with the author resolved.
func (s *Service) PostComment(ctx context.Context, jobID string, who Identity, text string) (*CommentView, error) {
	var created Comment
	job, err := s.run(ctx, ActionComment, jobID, who, func(j *Job) (*Job, error) {
		if term, ok := s.filter.Match(text); ok {
			return nil, newError(KindInvalidInput, "comment contains blocked term %q", term)
		}
		next, c, err := PostComment(j, who, text, s.now())
		if err != nil {
			return nil, err
		}
		created = c
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, Event{Type: EventCommentPosted, JobID: job.ID, UserID: who.ID})
	return &CommentView{Comment: created, AuthorProfile: s.resolveUser(ctx, created.Author)}, nil
}

// ─── CRUD ────────────────────────────────────────────────────────────────────

// CreateJob stores a new open job owned by the calling client.
func (s *Service) CreateJob(ctx context.Context, who Identity, in JobInput) (*Job, error) {
	if d := CanPerform(ActionCreate, nil, who); !d.Allowed {
		return nil, denialError(ActionCreate, d)
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Tags = cleanTags(in.Tags)
	if err := s.validateJobText(in.Title, in.Description, in.Tags); err != nil {
		return nil, err
	}
	if in.Budget < 0 {
		return nil, newError(KindInvalidInput, "budget must not be negative")
	}
	if in.Deadline.IsZero() {
		return nil, newError(KindInvalidInput, "deadline is required")
	}

	now := s.now()
	job := &Job{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Budget:      in.Budget,
		Deadline:    in.Deadline.UTC(),
		Tags:        in.Tags,
		Client:      who.ID,
		Status:      JobOpen,
		Applicants:  []Applicant{},
		Comments:    []Comment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := s.store.CreateJob(ctx, job)
	if err != nil {
		return nil, s.unavailable("create job", err)
	}
	return created, nil
}

// GetJob returns one job with its owner resolved.
func (s *Service) GetJob(ctx context.Context, jobID string) (*JobView, error) {
	var view *JobView
	err := s.observe(ctx, "get", jobID, Identity{}, func(ctx context.Context) error {
		if err := validateJobID(jobID); err != nil {
			return err
		}
		job, err := s.load(ctx, jobID)
		if err != nil {
			return err
		}
		view = &JobView{Job: job, Owner: s.resolveUser(ctx, job.Client)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ListJobs returns jobs matching filter exactly, newest first.
func (s *Service) ListJobs(ctx context.Context, filter JobFilter) ([]JobView, error) {
	if filter.Status != "" {
		if _, err := ParseJobStatus(string(filter.Status)); err != nil {
			return nil, newError(KindInvalidInput, "%s", err.Error())
		}
	}
	jobs, err := s.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, s.unavailable("list jobs", err)
	}
	views := make([]JobView, 0, len(jobs))
	owners := make(map[string]*User)
	for _, j := range jobs {
		owner, ok := owners[j.Client]
		if !ok {
			owner = s.resolveUser(ctx, j.Client)
			owners[j.Client] = owner
		}
		views = append(views, JobView{Job: j, Owner: owner})
	}
	return views, nil
}

// UpdateJob applies an owner's edits to the descriptive fields.
func (s *Service) UpdateJob(ctx context.Context, jobID string, who Identity, patch JobPatch) (*Job, error) {
	return s.run(ctx, ActionUpdate, jobID, who, func(j *Job) (*Job, error) {
		next := j.Clone()
		if patch.Title != nil {
			next.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			next.Description = *patch.Description
		}
		if patch.Budget != nil {
			if *patch.Budget < 0 {
				return nil, newError(KindInvalidInput, "budget must not be negative")
			}
			next.Budget = *patch.Budget
		}
		if patch.Deadline != nil {
			if patch.Deadline.IsZero() {
				return nil, newError(KindInvalidInput, "deadline is required")
			}
			next.Deadline = patch.Deadline.UTC()
		}
		if patch.Tags != nil {
			next.Tags = cleanTags(*patch.Tags)
		}
		if err := s.validateJobText(next.Title, next.Description, next.Tags); err != nil {
			return nil, err
		}
		return next, nil
	})
}

// DeleteJob removes a job owned by the caller.
func (s *Service) DeleteJob(ctx context.Context, jobID string, who Identity) error {
	return s.observe(ctx, string(ActionDelete), jobID, who, func(ctx context.Context) error {
		if err := validateJobID(jobID); err != nil {
			return err
		}
		job, err := s.load(ctx, jobID)
		if err != nil {
			return err
		}
		if d := CanPerform(ActionDelete, job, who); !d.Allowed {
			return denialError(ActionDelete, d)
		}
		if err := s.store.DeleteJob(ctx, jobID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return newError(KindNotFound, "job not found")
			}
			return s.unavailable("delete job", err)
		}
		return nil
	})
}

// OverdueJobs returns open or in-progress jobs whose deadline is before now.
// The deadline comparison runs in the store.
func (s *Service) OverdueJobs(ctx context.Context, now time.Time) ([]*Job, error) {
	var overdue []*Job
	for _, st := range []JobStatus{JobOpen, JobInProgress} {
		jobs, err := s.store.ListJobs(ctx, JobFilter{Status: st, DeadlineBefore: now})
		if err != nil {
			return nil, s.unavailable("list overdue jobs", err)
		}
		overdue = append(overdue, jobs...)
	}
	return overdue, nil
}

// NotifyDeadlinePassed publishes the deadline event for a job.
func (s *Service) NotifyDeadlinePassed(ctx context.Context, job *Job) {
	s.publish(ctx, Event{Type: EventJobDeadlinePassed, JobID: job.ID, UserID: job.Client, From: string(job.Status)})
}

// ─── Internals ───────────────────────────────────────────────────────────────

// observe wraps one operation in a span named marketplace.<op> and records
// its outcome and duration.
func (s *Service) observe(ctx context.Context, op, jobID string, who Identity, fn func(context.Context) error) (err error) {
	attrs := []attribute.KeyValue{attribute.String("marketplace.job.id", jobID)}
	if who.ID != "" {
		attrs = append(attrs,
			attribute.String("marketplace.user.id", who.ID),
			attribute.String("marketplace.user.role", string(who.Role)),
		)
	}
	ctx, span := s.tracer.Start(ctx, "marketplace."+op, trace.WithAttributes(attrs...))
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(KindOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		s.metrics.ObserveAction(op, outcome, time.Since(start))
		span.End()
	}()
	return fn(ctx)
}

// run executes one action against a single loaded snapshot. When the save
// loses a version race the action is re-evaluated from a fresh load, so a
// transition is only ever persisted on top of the state it was computed from.
func (s *Service) run(ctx context.Context, action Action, jobID string, who Identity, transition func(*Job) (*Job, error)) (*Job, error) {
	var saved *Job
	err := s.observe(ctx, string(action), jobID, who, func(ctx context.Context) error {
		if err := validateJobID(jobID); err != nil {
			return err
		}
		for attempt := 1; ; attempt++ {
			current, err := s.load(ctx, jobID)
			if err != nil {
				return err
			}
			if d := CanPerform(action, current, who); !d.Allowed {
				return denialError(action, d)
			}
			next, err := transition(current)
			if err != nil {
				return err
			}
			next.UpdatedAt = s.now()

			saved, err = s.store.SaveJob(ctx, next)
			switch {
			case err == nil:
				return nil
			case errors.Is(err, ErrStaleVersion):
				s.metrics.StaleWrite(string(action))
				s.logger.Debug("stale job version, re-evaluating", "action", action, "jobId", jobID, "attempt", attempt)
				if attempt < maxAttempts {
					continue
				}
				return &Error{Kind: KindConflict, Msg: "job was modified concurrently, reload and try again", Err: err}
			case errors.Is(err, ErrNotFound):
				return newError(KindNotFound, "job not found")
			default:
				return s.unavailable("save job", err)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *Service) load(ctx context.Context, jobID string) (*Job, error) {
	job, err := s.store.LoadJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(KindNotFound, "job not found")
		}
		return nil, s.unavailable("load job", err)
	}
	return job, nil
}

func (s *Service) publish(ctx context.Context, e Event) {
	err := s.events.Publish(ctx, e)
	s.metrics.EventPublished(e.Type, err)
	if err != nil {
		s.logger.Warn("publish event failed", "type", e.Type, "jobId", e.JobID, "err", err)
	}
}

// resolveUser never fails: an unknown or unreachable user is shown by id.
func (s *Service) resolveUser(ctx context.Context, id string) *User {
	if s.users == nil {
		return &User{ID: id}
	}
	u, err := s.users.LookupUser(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("lookup user failed", "userId", id, "err", err)
		}
		return &User{ID: id}
	}
	return u
}

func (s *Service) unavailable(op string, err error) error {
	s.logger.Error(op+" failed", "err", err)
	return &Error{Kind: KindUnavailable, Msg: "service unavailable", Err: err}
}

func (s *Service) validateJobText(title, description string, tags []string) error {
	if title == "" {
		return newError(KindInvalidInput, "title is required")
	}
	if strings.TrimSpace(description) == "" {
		return newError(KindInvalidInput, "description is required")
	}
	texts := append([]string{title, description}, tags...)
	if term, ok := s.filter.Match(texts...); ok {
		return newError(KindInvalidInput, "job contains blocked term %q", term)
	}
	return nil
}

func validateJobID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return newError(KindInvalidInput, "malformed job id %q", id)
	}
	return nil
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
