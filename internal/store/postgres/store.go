// Package postgres stores Job aggregates as JSONB documents in PostgreSQL.
//
// Filterable fields are promoted to columns; the version column implements
// the compare-and-swap required by marketplace.Store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobmate/marketplace-service/internal/marketplace"
)

var (
	_ marketplace.Store         = (*Store)(nil)
	_ marketplace.UserDirectory = (*Store)(nil)
)

// Store implements marketplace.Store on a pgxpool. The caller owns the pool.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store backed by pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the jobs and users tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("marketplace/postgres: migrate: %w", err)
		}
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close is a no-op because the caller owns the pool.
func (s *Store) Close() error { return nil }

// LoadJob reads one job document.
func (s *Store) LoadJob(ctx context.Context, id string) (*marketplace.Job, error) {
	var (
		doc     []byte
		version int64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT document, version FROM jobs WHERE id = $1`, id,
	).Scan(&doc, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, marketplace.ErrNotFound
		}
		return nil, fmt.Errorf("marketplace/postgres: load job: %w", err)
	}
	return decode(doc, version)
}

// SaveJob writes the document only if the stored version is unchanged.
func (s *Store) SaveJob(ctx context.Context, job *marketplace.Job) (*marketplace.Job, error) {
	next := job.Clone()
	next.Version = job.Version + 1
	doc, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("marketplace/postgres: encode job: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs
		 SET document   = $1::jsonb,
		     status     = $2,
		     tags       = $3,
		     deadline   = $4,
		     updated_at = $5,
		     version    = version + 1
		 WHERE id = $6 AND version = $7`,
		string(doc), string(next.Status), next.Tags, next.Deadline, next.UpdatedAt,
		next.ID, job.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("marketplace/postgres: save job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, s.missOrStale(ctx, job.ID)
	}
	return next, nil
}

// CreateJob inserts a new job at version 1.
func (s *Store) CreateJob(ctx context.Context, job *marketplace.Job) (*marketplace.Job, error) {
	next := job.Clone()
	next.Version = 1
	doc, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("marketplace/postgres: encode job: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (id, client, status, tags, deadline, created_at, updated_at, version, document)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8::jsonb)`,
		next.ID, next.Client, string(next.Status), next.Tags, next.Deadline,
		next.CreatedAt, next.UpdatedAt, string(doc),
	)
	if err != nil {
		return nil, fmt.Errorf("marketplace/postgres: create job: %w", err)
	}
	return next, nil
}

// DeleteJob removes a job.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("marketplace/postgres: delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return marketplace.ErrNotFound
	}
	return nil
}

// ListJobs returns jobs matching filter, newest first.
func (s *Store) ListJobs(ctx context.Context, filter marketplace.JobFilter) ([]*marketplace.Job, error) {
	query, args := listQuery(filter)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("marketplace/postgres: list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*marketplace.Job, 0)
	for rows.Next() {
		var (
			doc     []byte
			version int64
		)
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, fmt.Errorf("marketplace/postgres: list jobs scan: %w", err)
		}
		j, err := decode(doc, version)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("marketplace/postgres: list jobs: %w", err)
	}
	return jobs, nil
}

// LookupUser reads the users table maintained by the auth service.
func (s *Store) LookupUser(ctx context.Context, id string) (*marketplace.User, error) {
	var (
		u    marketplace.User
		role string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, role FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.Email, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, marketplace.ErrNotFound
		}
		return nil, fmt.Errorf("marketplace/postgres: lookup user: %w", err)
	}
	u.Role = marketplace.Role(role)
	return &u, nil
}

func (s *Store) missOrStale(ctx context.Context, id string) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("marketplace/postgres: save job: %w", err)
	}
	if !exists {
		return marketplace.ErrNotFound
	}
	return marketplace.ErrStaleVersion
}

func listQuery(filter marketplace.JobFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if filter.Client != "" {
		args = append(args, filter.Client)
		where = append(where, fmt.Sprintf("client = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Tag != "" {
		args = append(args, filter.Tag)
		where = append(where, fmt.Sprintf("$%d = ANY(tags)", len(args)))
	}
	if !filter.DeadlineBefore.IsZero() {
		args = append(args, filter.DeadlineBefore)
		where = append(where, fmt.Sprintf("deadline < $%d", len(args)))
	}

	query := `SELECT document, version FROM jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	return query + ` ORDER BY created_at DESC`, args
}

func decode(doc []byte, version int64) (*marketplace.Job, error) {
	var j marketplace.Job
	if err := json.Unmarshal(doc, &j); err != nil {
		return nil, fmt.Errorf("marketplace/postgres: decode job: %w", err)
	}
	if err := j.CheckStatuses(); err != nil {
		return nil, fmt.Errorf("marketplace/postgres: decode job: %w", err)
	}
	j.Version = version
	return &j, nil
}
