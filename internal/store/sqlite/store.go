// Package sqlite is a single-file implementation of marketplace.Store for
// local runs and the CLI. Documents are stored as JSON text.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // register the sqlite3 driver

	"jobmate/marketplace-service/internal/marketplace"
)

var (
	_ marketplace.Store         = (*Store)(nil)
	_ marketplace.UserDirectory = (*Store)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id          TEXT PRIMARY KEY,
	client      TEXT    NOT NULL,
	status      TEXT    NOT NULL,
	tags        TEXT    NOT NULL DEFAULT '[]',
	deadline    TEXT    NOT NULL DEFAULT '',
	created_at  TEXT    NOT NULL,
	version     INTEGER NOT NULL DEFAULT 1,
	document    TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_client ON jobs (client);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status);
CREATE INDEX IF NOT EXISTS idx_jobs_deadline ON jobs (deadline);
CREATE TABLE IF NOT EXISTS users (
	id        TEXT PRIMARY KEY,
	username  TEXT NOT NULL,
	email     TEXT NOT NULL,
	role      TEXT NOT NULL
);`

// timeLayout is fixed-width UTC so that TEXT comparison orders timestamps.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func sortable(t time.Time) string { return t.UTC().Format(timeLayout) }

// Store implements marketplace.Store on a database/sql handle.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("marketplace/sqlite: open %s: %w", path, err)
	}
	// one writer keeps the version check and the write in a single
	// serialized statement stream
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Migrate creates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("marketplace/sqlite: migrate: %w", err)
	}
	return nil
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// LoadJob reads one job.
func (s *Store) LoadJob(ctx context.Context, id string) (*marketplace.Job, error) {
	var (
		doc     string
		version int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT document, version FROM jobs WHERE id = ?`, id).Scan(&doc, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, marketplace.ErrNotFound
		}
		return nil, fmt.Errorf("marketplace/sqlite: load job: %w", err)
	}
	return decode(doc, version)
}

// SaveJob updates the row only if the version is unchanged.
func (s *Store) SaveJob(ctx context.Context, job *marketplace.Job) (*marketplace.Job, error) {
	next := job.Clone()
	next.Version = job.Version + 1
	doc, tags, err := encode(next)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET document = ?, status = ?, tags = ?, deadline = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		doc, string(next.Status), tags, sortable(next.Deadline), next.ID, job.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("marketplace/sqlite: save job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("marketplace/sqlite: save job: %w", err)
	}
	if n == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE id = ?`, job.ID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("marketplace/sqlite: save job: %w", err)
		}
		if exists == 0 {
			return nil, marketplace.ErrNotFound
		}
		return nil, marketplace.ErrStaleVersion
	}
	return next, nil
}

// CreateJob inserts a job at version 1.
func (s *Store) CreateJob(ctx context.Context, job *marketplace.Job) (*marketplace.Job, error) {
	next := job.Clone()
	next.Version = 1
	doc, tags, err := encode(next)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, client, status, tags, deadline, created_at, version, document) VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
		next.ID, next.Client, string(next.Status), tags, sortable(next.Deadline), sortable(next.CreatedAt), doc,
	)
	if err != nil {
		return nil, fmt.Errorf("marketplace/sqlite: create job: %w", err)
	}
	return next, nil
}

// DeleteJob removes a job.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("marketplace/sqlite: delete job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return marketplace.ErrNotFound
	}
	return nil
}

// ListJobs returns jobs matching filter, newest first.
func (s *Store) ListJobs(ctx context.Context, filter marketplace.JobFilter) ([]*marketplace.Job, error) {
	var (
		where []string
		args  []any
	)
	if filter.Client != "" {
		where = append(where, "client = ?")
		args = append(args, filter.Client)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(jobs.tags) WHERE json_each.value = ?)")
		args = append(args, filter.Tag)
	}
	if !filter.DeadlineBefore.IsZero() {
		where = append(where, "deadline < ?")
		args = append(args, sortable(filter.DeadlineBefore))
	}
	query := `SELECT document, version FROM jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("marketplace/sqlite: list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*marketplace.Job, 0)
	for rows.Next() {
		var (
			doc     string
			version int64
		)
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, fmt.Errorf("marketplace/sqlite: list jobs scan: %w", err)
		}
		j, err := decode(doc, version)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// PutUser upserts a user row. Used to seed local databases.
func (s *Store) PutUser(ctx context.Context, u marketplace.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, role) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET username = excluded.username, email = excluded.email, role = excluded.role`,
		u.ID, u.Username, u.Email, string(u.Role),
	)
	if err != nil {
		return fmt.Errorf("marketplace/sqlite: put user: %w", err)
	}
	return nil
}

// LookupUser reads one user.
func (s *Store) LookupUser(ctx context.Context, id string) (*marketplace.User, error) {
	var (
		u    marketplace.User
		role string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, username, email, role FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.Email, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, marketplace.ErrNotFound
		}
		return nil, fmt.Errorf("marketplace/sqlite: lookup user: %w", err)
	}
	u.Role = marketplace.Role(role)
	return &u, nil
}

func encode(j *marketplace.Job) (doc, tags string, err error) {
	d, err := json.Marshal(j)
	if err != nil {
		return "", "", fmt.Errorf("marketplace/sqlite: encode job: %w", err)
	}
	t := j.Tags
	if t == nil {
		t = []string{}
	}
	tb, err := json.Marshal(t)
	if err != nil {
		return "", "", fmt.Errorf("marketplace/sqlite: encode tags: %w", err)
	}
	return string(d), string(tb), nil
}

func decode(doc string, version int64) (*marketplace.Job, error) {
	var j marketplace.Job
	if err := json.Unmarshal([]byte(doc), &j); err != nil {
		return nil, fmt.Errorf("marketplace/sqlite: decode job: %w", err)
	}
	if err := j.CheckStatuses(); err != nil {
		return nil, fmt.Errorf("marketplace/sqlite: decode job: %w", err)
	}
	j.Version = version
	return &j, nil
}
