// Package scheduler wires up the cron job that periodically looks for jobs
// whose deadline has passed while still open or in progress.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"jobmate/marketplace-service/internal/marketplace"
)

// DeadlineSource is the part of marketplace.Service the sweep needs.
type DeadlineSource interface {
	OverdueJobs(ctx context.Context, now time.Time) ([]*marketplace.Job, error)
	NotifyDeadlinePassed(ctx context.Context, job *marketplace.Job)
}

// Scheduler wraps robfig/cron and runs the deadline sweep.
type Scheduler struct {
	cron   *cron.Cron
	source DeadlineSource
	spec   string // cron spec, e.g. "@every 15m"
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	notified map[string]time.Time // job id → deadline already announced
}

// New creates a Scheduler that fires on spec.
func New(source DeadlineSource, spec string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		source:   source,
		spec:     spec,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		notified: make(map[string]time.Time),
	}
}

// Start registers the sweep and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc(%q): %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info("deadline sweep scheduled", "spec", s.spec)
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("deadline sweep stopped")
}

// Sweep publishes one deadline event per overdue job. A job is announced
// again only if its deadline was changed since the last announcement.
// It returns the number of events published.
func (s *Scheduler) Sweep(ctx context.Context) int {
	jobs, err := s.source.OverdueJobs(ctx, s.now())
	if err != nil {
		s.logger.Warn("deadline sweep failed", "err", err)
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sent := 0
	live := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		live[j.ID] = true
		if d, ok := s.notified[j.ID]; ok && d.Equal(j.Deadline) {
			continue
		}
		s.source.NotifyDeadlinePassed(ctx, j)
		s.notified[j.ID] = j.Deadline
		sent++
	}
	for id := range s.notified {
		if !live[id] {
			delete(s.notified, id)
		}
	}
	if sent > 0 {
		s.logger.Info("deadline sweep done", "overdue", len(jobs), "notified", sent)
	}
	return sent
}
