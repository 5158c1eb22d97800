package marketplace_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"jobmate/marketplace-service/internal/marketplace"
	"jobmate/marketplace-service/internal/metrics"
	"jobmate/marketplace-service/internal/moderation"
	"jobmate/marketplace-service/internal/store/memory"
)

// ── Test doubles ──────────────────────────────────────────────────────────

type recordingPublisher struct {
	mu     sync.Mutex
	events []marketplace.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e marketplace.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// staleStore fails the first n saves with ErrStaleVersion.
type staleStore struct {
	marketplace.Store
	mu    sync.Mutex
	n     int
	saves int
}

func (s *staleStore) SaveJob(ctx context.Context, job *marketplace.Job) (*marketplace.Job, error) {
	s.mu.Lock()
	s.saves++
	fail := s.saves <= s.n
	s.mu.Unlock()
	if fail {
		return nil, marketplace.ErrStaleVersion
	}
	return s.Store.SaveJob(ctx, job)
}

// brokenStore fails every read and write.
type brokenStore struct{ marketplace.Store }

var errDown = errors.New("connection refused")

func (brokenStore) LoadJob(context.Context, string) (*marketplace.Job, error) { return nil, errDown }
func (brokenStore) ListJobs(context.Context, marketplace.JobFilter) ([]*marketplace.Job, error) {
	return nil, errDown
}
func (brokenStore) CreateJob(context.Context, *marketplace.Job) (*marketplace.Job, error) {
	return nil, errDown
}

// failingSaveStore rejects every save with a non-version error.
type failingSaveStore struct{ marketplace.Store }

func (failingSaveStore) SaveJob(context.Context, *marketplace.Job) (*marketplace.Job, error) {
	return nil, errors.New("disk full")
}

// ── Helpers ───────────────────────────────────────────────────────────────

var quiet = marketplace.WithLogger(slog.New(slog.DiscardHandler))

func newService(t *testing.T, store marketplace.Store, opts ...marketplace.Option) *marketplace.Service {
	t.Helper()
	return marketplace.NewService(store, append([]marketplace.Option{quiet}, opts...)...)
}

func createJob(t *testing.T, svc *marketplace.Service) *marketplace.Job {
	t.Helper()
	job, err := svc.CreateJob(context.Background(), owner, marketplace.JobInput{
		Title:       "Logo design",
		Description: "Vector logo for a bakery",
		Budget:      250,
		Deadline:    time.Now().Add(48 * time.Hour),
		Tags:        []string{"design", " ", "branding"},
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return job
}

// ── CRUD ──────────────────────────────────────────────────────────────────

func TestCreateJob(t *testing.T) {
	svc := newService(t, memory.New())
	job := createJob(t, svc)

	if job.Status != marketplace.JobOpen || job.Client != owner.ID || job.Version != 1 {
		t.Errorf("job = %+v", job)
	}
	if len(job.Tags) != 2 {
		t.Errorf("tags = %v, blanks should be dropped", job.Tags)
	}

	_, err := svc.CreateJob(context.Background(), alice, marketplace.JobInput{Title: "x", Description: "y", Deadline: time.Now()})
	if !errors.Is(err, marketplace.ErrForbidden) {
		t.Errorf("freelancer CreateJob err = %v, want forbidden", err)
	}
}

func TestCreateJob_Validation(t *testing.T) {
	svc := newService(t, memory.New(), marketplace.WithModeration(moderation.New([]string{"crypto"})))
	deadline := time.Now().Add(time.Hour)
	inputs := []marketplace.JobInput{
		{Title: " ", Description: "d", Deadline: deadline},
		{Title: "t", Description: "", Deadline: deadline},
		{Title: "t", Description: "d", Budget: -1, Deadline: deadline},
		{Title: "t", Description: "d"},
		{Title: "Crypto wallet", Description: "d", Deadline: deadline},
	}
	for _, in := range inputs {
		if _, err := svc.CreateJob(context.Background(), owner, in); !errors.Is(err, marketplace.ErrInvalidInput) {
			t.Errorf("CreateJob(%+v) err = %v, want invalid input", in, err)
		}
	}
}

func TestGetJob_ResolvesOwner(t *testing.T) {
	store := memory.New()
	store.PutUser(marketplace.User{ID: owner.ID, Username: "ana", Email: "ana@example.com", Role: marketplace.RoleClient})
	svc := newService(t, store, marketplace.WithUserDirectory(store))
	job := createJob(t, svc)

	view, err := svc.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if view.Owner == nil || view.Owner.Username != "ana" {
		t.Errorf("owner = %+v", view.Owner)
	}

	if _, err := svc.GetJob(context.Background(), "not-a-uuid"); !errors.Is(err, marketplace.ErrInvalidInput) {
		t.Errorf("malformed id err = %v, want invalid input", err)
	}
	if _, err := svc.GetJob(context.Background(), "00000000-0000-0000-0000-000000000000"); !errors.Is(err, marketplace.ErrNotFound) {
		t.Errorf("missing id err = %v, want not found", err)
	}
}

func TestGetJob_UnknownOwnerFallsBackToID(t *testing.T) {
	store := memory.New()
	svc := newService(t, store, marketplace.WithUserDirectory(store))
	job := createJob(t, svc)

	view, err := svc.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if view.Owner == nil || view.Owner.ID != owner.ID {
		t.Errorf("owner = %+v, want id-only fallback", view.Owner)
	}
}

func TestListJobs_Filters(t *testing.T) {
	svc := newService(t, memory.New())
	ctx := context.Background()
	a := createJob(t, svc)
	createJob(t, svc)
	if _, err := svc.Apply(ctx, a.ID, alice); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Accept(ctx, a.ID, alice.ID, owner); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		filter marketplace.JobFilter
		want   int
	}{
		{marketplace.JobFilter{}, 2},
		{marketplace.JobFilter{Client: owner.ID}, 2},
		{marketplace.JobFilter{Client: "someone-else"}, 0},
		{marketplace.JobFilter{Status: marketplace.JobInProgress}, 1},
		{marketplace.JobFilter{Tag: "design"}, 2},
		{marketplace.JobFilter{Tag: "Design"}, 0},
	}
	for _, tt := range tests {
		jobs, err := svc.ListJobs(ctx, tt.filter)
		if err != nil {
			t.Fatalf("ListJobs(%+v): %v", tt.filter, err)
		}
		if len(jobs) != tt.want {
			t.Errorf("ListJobs(%+v) = %d jobs, want %d", tt.filter, len(jobs), tt.want)
		}
	}

	if _, err := svc.ListJobs(ctx, marketplace.JobFilter{Status: "archived"}); !errors.Is(err, marketplace.ErrInvalidInput) {
		t.Errorf("unknown status err = %v, want invalid input", err)
	}
}

func TestUpdateJob(t *testing.T) {
	svc := newService(t, memory.New())
	ctx := context.Background()
	job := createJob(t, svc)

	title, budget := "Logo and favicon", 400.0
	updated, err := svc.UpdateJob(ctx, job.ID, owner, marketplace.JobPatch{Title: &title, Budget: &budget})
	if err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	if updated.Title != title || updated.Budget != budget || updated.Description != job.Description {
		t.Errorf("updated = %+v", updated)
	}
	if updated.Version != job.Version+1 {
		t.Errorf("version = %d, want %d", updated.Version, job.Version+1)
	}

	if _, err := svc.UpdateJob(ctx, job.ID, alice, marketplace.JobPatch{Title: &title}); !errors.Is(err, marketplace.ErrForbidden) {
		t.Errorf("non-owner UpdateJob err = %v, want forbidden", err)
	}
	empty := ""
	if _, err := svc.UpdateJob(ctx, job.ID, owner, marketplace.JobPatch{Title: &empty}); !errors.Is(err, marketplace.ErrInvalidInput) {
		t.Errorf("empty title err = %v, want invalid input", err)
	}
}

func TestDeleteJob(t *testing.T) {
	svc := newService(t, memory.New())
	ctx := context.Background()
	job := createJob(t, svc)

	if err := svc.DeleteJob(ctx, job.ID, alice); !errors.Is(err, marketplace.ErrForbidden) {
		t.Errorf("non-owner DeleteJob err = %v, want forbidden", err)
	}
	if err := svc.DeleteJob(ctx, job.ID, owner); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if _, err := svc.GetJob(ctx, job.ID); !errors.Is(err, marketplace.ErrNotFound) {
		t.Errorf("GetJob after delete err = %v, want not found", err)
	}
}

// ── Workflow ──────────────────────────────────────────────────────────────

func TestWorkflow_EndToEnd(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newService(t, memory.New(), marketplace.WithPublisher(pub))
	ctx := context.Background()
	job := createJob(t, svc)

	for _, who := range []marketplace.Identity{alice, bob, carol} {
		if _, err := svc.Apply(ctx, job.ID, who); err != nil {
			t.Fatalf("Apply(%s): %v", who.ID, err)
		}
	}
	if _, err := svc.Reject(ctx, job.ID, carol.ID, owner); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	accepted, err := svc.Accept(ctx, job.ID, bob.ID, owner)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.Status != marketplace.JobInProgress {
		t.Errorf("status = %s, want in-progress", accepted.Status)
	}
	if _, err := svc.PostComment(ctx, job.ID, bob, "Starting today"); err != nil {
		t.Fatalf("PostComment: %v", err)
	}
	done, err := svc.Complete(ctx, job.ID, owner)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != marketplace.JobCompleted {
		t.Errorf("status = %s, want completed", done.Status)
	}

	want := []string{
		marketplace.EventApplicationSubmitted,
		marketplace.EventApplicationSubmitted,
		marketplace.EventApplicationSubmitted,
		marketplace.EventApplicationRejected, // carol, explicit
		marketplace.EventApplicationAccepted, // bob
		marketplace.EventApplicationRejected, // alice, automatic
		marketplace.EventCommentPosted,
		marketplace.EventJobCompleted,
	}
	got := pub.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if e := pub.events[5]; e.ApplicantID != alice.ID {
		t.Errorf("auto-reject event applicant = %s, want %s", e.ApplicantID, alice.ID)
	}
}

func TestWorkflow_Authorization(t *testing.T) {
	svc := newService(t, memory.New())
	ctx := context.Background()
	job := createJob(t, svc)
	if _, err := svc.Apply(ctx, job.ID, alice); err != nil {
		t.Fatal(err)
	}

	other := marketplace.Identity{ID: "client-2", Role: marketplace.RoleClient}
	if _, err := svc.Accept(ctx, job.ID, alice.ID, other); !errors.Is(err, marketplace.ErrForbidden) {
		t.Errorf("non-owner Accept err = %v, want forbidden", err)
	}
	if _, err := svc.Reject(ctx, job.ID, alice.ID, bob); !errors.Is(err, marketplace.ErrForbidden) {
		t.Errorf("freelancer Reject err = %v, want forbidden", err)
	}
	if _, err := svc.Complete(ctx, job.ID, other); !errors.Is(err, marketplace.ErrForbidden) {
		t.Errorf("non-owner Complete err = %v, want forbidden", err)
	}
	if _, err := svc.Apply(ctx, job.ID, marketplace.Identity{}); !errors.Is(err, marketplace.ErrUnauthenticated) {
		t.Errorf("anonymous Apply err = %v, want unauthenticated", err)
	}

	// Denied actions leave the job untouched.
	view, err := svc.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != marketplace.JobOpen || view.Applicants[0].Status != marketplace.ApplicantPending {
		t.Errorf("job changed by denied actions: %+v", view.Job)
	}
}

func TestPostComment_Moderation(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newService(t, memory.New(),
		marketplace.WithModeration(moderation.New([]string{"wire transfer"})),
		marketplace.WithPublisher(pub),
	)
	job := createJob(t, svc)

	_, err := svc.PostComment(context.Background(), job.ID, alice, "Pay me by Wire Transfer please")
	if !errors.Is(err, marketplace.ErrInvalidInput) {
		t.Errorf("err = %v, want invalid input", err)
	}
	if len(pub.types()) != 0 {
		t.Errorf("events = %v, want none for a rejected comment", pub.types())
	}
}

func TestPostComment_ResolvesAuthor(t *testing.T) {
	store := memory.New()
	store.PutUser(marketplace.User{ID: alice.ID, Username: "alice", Role: marketplace.RoleFreelancer})
	svc := newService(t, store, marketplace.WithUserDirectory(store))
	job := createJob(t, svc)

	c, err := svc.PostComment(context.Background(), job.ID, alice, "Hello")
	if err != nil {
		t.Fatalf("PostComment: %v", err)
	}
	if c.AuthorProfile == nil || c.AuthorProfile.Username != "alice" {
		t.Errorf("author = %+v", c.AuthorProfile)
	}
}

// ── Concurrency ───────────────────────────────────────────────────────────

func TestAccept_ConcurrentExactlyOneWins(t *testing.T) {
	svc := newService(t, memory.New())
	ctx := context.Background()
	job := createJob(t, svc)

	applicants := []marketplace.Identity{alice, bob, carol}
	for _, who := range applicants {
		if _, err := svc.Apply(ctx, job.ID, who); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, len(applicants))
	for i, who := range applicants {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Accept(ctx, job.ID, who.ID, owner)
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, marketplace.ErrConflict):
			t.Errorf("loser err = %v, want conflict", err)
		}
	}
	if wins != 1 {
		t.Fatalf("successful accepts = %d, want 1", wins)
	}

	view, err := svc.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	accepted := 0
	for _, a := range view.Applicants {
		switch a.Status {
		case marketplace.ApplicantAccepted:
			accepted++
		case marketplace.ApplicantPending:
			t.Errorf("applicant %s still pending after accept", a.User)
		}
	}
	if accepted != 1 || view.Status != marketplace.JobInProgress {
		t.Errorf("accepted = %d, status = %s", accepted, view.Status)
	}
}

func TestApply_ConcurrentBothRecorded(t *testing.T) {
	svc := newService(t, memory.New())
	ctx := context.Background()
	job := createJob(t, svc)

	var wg sync.WaitGroup
	for _, who := range []marketplace.Identity{alice, bob} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Apply(ctx, job.ID, who); err != nil {
				t.Errorf("Apply(%s): %v", who.ID, err)
			}
		}()
	}
	wg.Wait()

	view, err := svc.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Applicants) != 2 {
		t.Errorf("applicants = %d, want 2", len(view.Applicants))
	}
}

func TestRun_RetriesStaleSave(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := &staleStore{Store: memory.New(), n: 1}
	svc := newService(t, store, marketplace.WithMetrics(metrics.New(reg)))
	job := createJob(t, svc)

	if _, err := svc.Apply(context.Background(), job.ID, alice); err != nil {
		t.Fatalf("Apply after one stale save: %v", err)
	}
	if store.saves != 2 {
		t.Errorf("saves = %d, want 2", store.saves)
	}
	if n, err := testutil.GatherAndCount(reg, "marketplace_stale_writes_total"); err != nil || n != 1 {
		t.Errorf("stale_writes series = %d (%v), want 1", n, err)
	}
}

func TestRun_GivesUpAfterRepeatedStaleSaves(t *testing.T) {
	store := &staleStore{Store: memory.New(), n: 100}
	svc := newService(t, store)
	job := createJob(t, svc)

	_, err := svc.Apply(context.Background(), job.ID, alice)
	if !errors.Is(err, marketplace.ErrConflict) || !errors.Is(err, marketplace.ErrStaleVersion) {
		t.Errorf("err = %v, want conflict wrapping stale version", err)
	}
	if store.saves != 3 {
		t.Errorf("saves = %d, want 3", store.saves)
	}
}

// ── Failure modes ─────────────────────────────────────────────────────────

func TestStoreFailureIsUnavailable(t *testing.T) {
	svc := newService(t, brokenStore{})
	ctx := context.Background()
	id := "00000000-0000-0000-0000-000000000001"

	checks := map[string]error{}
	_, checks["apply"] = svc.Apply(ctx, id, alice)
	_, checks["get"] = svc.GetJob(ctx, id)
	_, checks["list"] = svc.ListJobs(ctx, marketplace.JobFilter{})
	_, checks["create"] = svc.CreateJob(ctx, owner, marketplace.JobInput{Title: "t", Description: "d", Deadline: time.Now()})
	for name, err := range checks {
		if marketplace.KindOf(err) != marketplace.KindUnavailable {
			t.Errorf("%s: kind = %s, want unavailable (err %v)", name, marketplace.KindOf(err), err)
		}
		if err != nil && err.Error() != "service unavailable" {
			t.Errorf("%s: message %q leaks store details", name, err.Error())
		}
	}
}

func TestPublishFailureDoesNotFailAction(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis down")}
	svc := newService(t, memory.New(), marketplace.WithPublisher(pub))
	job := createJob(t, svc)

	if _, err := svc.Apply(context.Background(), job.ID, alice); err != nil {
		t.Errorf("Apply with failing publisher: %v", err)
	}
}

// ── Deadlines ─────────────────────────────────────────────────────────────

func TestOverdueJobs(t *testing.T) {
	svc := newService(t, memory.New())
	ctx := context.Background()
	open := createJob(t, svc)
	started := createJob(t, svc)
	finished := createJob(t, svc)

	for _, id := range []string{started.ID, finished.ID} {
		if _, err := svc.Apply(ctx, id, alice); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.Accept(ctx, id, alice.ID, owner); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.Complete(ctx, finished.ID, owner); err != nil {
		t.Fatal(err)
	}

	overdue, err := svc.OverdueJobs(ctx, time.Now().Add(72*time.Hour))
	if err != nil {
		t.Fatalf("OverdueJobs: %v", err)
	}
	got := map[string]bool{}
	for _, j := range overdue {
		got[j.ID] = true
	}
	if len(got) != 2 || !got[open.ID] || !got[started.ID] {
		t.Errorf("overdue = %v, want open and in-progress jobs only", got)
	}

	none, err := svc.OverdueJobs(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("overdue before deadline = %d, want 0", len(none))
	}
}

func TestSaveFailureKeepsStoredState(t *testing.T) {
	backing := memory.New()
	svc := newService(t, failingSaveStore{Store: backing})
	job := createJob(t, svc)

	_, err := svc.Apply(context.Background(), job.ID, alice)
	if err == nil || marketplace.KindOf(err) != marketplace.KindUnavailable {
		t.Fatalf("kind = %s, want unavailable (err %v)", marketplace.KindOf(err), err)
	}
	if err.Error() != "service unavailable" {
		t.Errorf("message = %q, want %q", err.Error(), "service unavailable")
	}

	stored, err := newService(t, backing).GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if len(stored.Applicants) != 0 || stored.Version != 1 {
		t.Errorf("stored job changed: applicants = %d, version = %d", len(stored.Applicants), stored.Version)
	}
}

// ── Tracing ───────────────────────────────────────────────────────────────

func setupTestTracer() (*tracetest.SpanRecorder, marketplace.Option) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return sr, marketplace.WithTracer(tp.Tracer("test"))
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]string {
	out := make(map[attribute.Key]string)
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value.Emit()
	}
	return out
}

func TestTracing_AcceptSpan(t *testing.T) {
	sr, withTracer := setupTestTracer()
	svc := newService(t, memory.New(), withTracer)
	ctx := context.Background()
	job := createJob(t, svc)
	if _, err := svc.Apply(ctx, job.ID, alice); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Accept(ctx, job.ID, alice.ID, owner); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Accept(ctx, job.ID, alice.ID, owner); !errors.Is(err, marketplace.ErrConflict) {
		t.Fatalf("second Accept err = %v, want conflict", err)
	}

	spans := sr.Ended()
	var accepts []sdktrace.ReadOnlySpan
	for _, s := range spans {
		if s.Name() == "marketplace.accept" {
			accepts = append(accepts, s)
		}
	}
	if len(accepts) != 2 {
		t.Fatalf("accept spans = %d, want 2 (all spans: %d)", len(accepts), len(spans))
	}

	ok, failed := accepts[0], accepts[1]
	attrs := spanAttrs(ok)
	if attrs["marketplace.job.id"] != job.ID || attrs["marketplace.user.id"] != owner.ID || attrs["marketplace.user.role"] != "client" {
		t.Errorf("attributes = %v", attrs)
	}
	if ok.Status().Code != codes.Ok {
		t.Errorf("first accept status = %v, want Ok", ok.Status().Code)
	}
	if failed.Status().Code != codes.Error {
		t.Errorf("conflicting accept status = %v, want Error", failed.Status().Code)
	}
	if len(failed.Events()) == 0 || failed.Events()[0].Name != "exception" {
		t.Errorf("conflicting accept should record the error, events = %v", failed.Events())
	}
}

func TestTracing_GetAndDeleteAreObserved(t *testing.T) {
	sr, withTracer := setupTestTracer()
	reg := prometheus.NewRegistry()
	svc := newService(t, memory.New(), withTracer, marketplace.WithMetrics(metrics.New(reg)))
	ctx := context.Background()
	job := createJob(t, svc)

	if _, err := svc.GetJob(ctx, job.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteJob(ctx, job.ID, alice); !errors.Is(err, marketplace.ErrForbidden) {
		t.Fatalf("DeleteJob err = %v, want forbidden", err)
	}

	names := map[string]codes.Code{}
	for _, s := range sr.Ended() {
		names[s.Name()] = s.Status().Code
	}
	if code, ok := names["marketplace.get"]; !ok || code != codes.Ok {
		t.Errorf("get span = %v (present %v), want Ok", code, ok)
	}
	if code, ok := names["marketplace.delete"]; !ok || code != codes.Error {
		t.Errorf("delete span = %v (present %v), want Error", code, ok)
	}
	if n, err := testutil.GatherAndCount(reg, "marketplace_actions_total"); err != nil || n != 2 {
		t.Errorf("actions_total series = %d (%v), want 2", n, err)
	}
}
