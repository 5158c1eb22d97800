// Package memory is an in-process implementation of marketplace.Store and
// marketplace.UserDirectory. Safe for concurrent access. Intended for tests
// and local development.
package memory

import (
	"context"
	"sort"
	"sync"

	"jobmate/marketplace-service/internal/marketplace"
)

var (
	_ marketplace.Store         = (*Store)(nil)
	_ marketplace.UserDirectory = (*Store)(nil)
)

// Store keeps deep copies of every job so callers never share state with it.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]*marketplace.Job
	users map[string]marketplace.User
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		jobs:  make(map[string]*marketplace.Job),
		users: make(map[string]marketplace.User),
	}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(context.Context) error { return nil }

// Ping always succeeds.
func (m *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *Store) Close() error { return nil }

// LoadJob returns a copy of the stored job.
func (m *Store) LoadJob(_ context.Context, id string) (*marketplace.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, marketplace.ErrNotFound
	}
	return j.Clone(), nil
}

// SaveJob replaces the job if its version still matches.
func (m *Store) SaveJob(_ context.Context, job *marketplace.Job) (*marketplace.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.jobs[job.ID]
	if !ok {
		return nil, marketplace.ErrNotFound
	}
	if cur.Version != job.Version {
		return nil, marketplace.ErrStaleVersion
	}
	stored := job.Clone()
	stored.Version++
	m.jobs[job.ID] = stored
	return stored.Clone(), nil
}

// CreateJob stores a new job at version 1.
func (m *Store) CreateJob(_ context.Context, job *marketplace.Job) (*marketplace.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := job.Clone()
	stored.Version = 1
	m.jobs[job.ID] = stored
	return stored.Clone(), nil
}

// DeleteJob removes a job.
func (m *Store) DeleteJob(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return marketplace.ErrNotFound
	}
	delete(m.jobs, id)
	return nil
}

// ListJobs returns matching jobs, newest first.
func (m *Store) ListJobs(_ context.Context, filter marketplace.JobFilter) ([]*marketplace.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*marketplace.Job, 0)
	for _, j := range m.jobs {
		if filter.Matches(j) {
			out = append(out, j.Clone())
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

// PutUser registers a user for LookupUser.
func (m *Store) PutUser(u marketplace.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// LookupUser resolves a registered user.
func (m *Store) LookupUser(_ context.Context, id string) (*marketplace.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, marketplace.ErrNotFound
	}
	return &u, nil
}
