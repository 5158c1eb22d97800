// Package mongo stores Job aggregates as MongoDB documents with embedded
// applicants and comments. Writes are conditioned on the document version.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"jobmate/marketplace-service/internal/marketplace"
)

// Collection name constants.
const (
	colJobs  = "jobs"
	colUsers = "users"
)

var (
	_ marketplace.Store         = (*Store)(nil)
	_ marketplace.UserDirectory = (*Store)(nil)
)

// Store implements marketplace.Store on a MongoDB database. The caller owns
// the client lifecycle.
type Store struct {
	db *mongod.Database
}

// New returns a Store on db.
func New(db *mongod.Database) *Store {
	return &Store{db: db}
}

// Migrate creates the indexes used by ListJobs.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.Collection(colJobs).Indexes().CreateMany(ctx, []mongod.IndexModel{
		{Keys: bson.D{{Key: "client", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "tags", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("marketplace/mongo: migrate %s indexes: %w", colJobs, err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close is a no-op because the caller owns the client.
func (s *Store) Close() error { return nil }

// LoadJob reads one job.
func (s *Store) LoadJob(ctx context.Context, id string) (*marketplace.Job, error) {
	var j marketplace.Job
	err := s.db.Collection(colJobs).FindOne(ctx, bson.M{"_id": id}).Decode(&j)
	if err != nil {
		if isNoDocuments(err) {
			return nil, marketplace.ErrNotFound
		}
		return nil, fmt.Errorf("marketplace/mongo: load job: %w", err)
	}
	if err := j.CheckStatuses(); err != nil {
		return nil, fmt.Errorf("marketplace/mongo: load job: %w", err)
	}
	return &j, nil
}

// SaveJob replaces the document when its version is unchanged.
func (s *Store) SaveJob(ctx context.Context, job *marketplace.Job) (*marketplace.Job, error) {
	next := job.Clone()
	next.Version = job.Version + 1

	col := s.db.Collection(colJobs)
	res, err := col.ReplaceOne(ctx, bson.M{"_id": job.ID, "version": job.Version}, next)
	if err != nil {
		return nil, fmt.Errorf("marketplace/mongo: save job: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := col.CountDocuments(ctx, bson.M{"_id": job.ID})
		if err != nil {
			return nil, fmt.Errorf("marketplace/mongo: save job: %w", err)
		}
		if n == 0 {
			return nil, marketplace.ErrNotFound
		}
		return nil, marketplace.ErrStaleVersion
	}
	return next, nil
}

// CreateJob inserts a new job at version 1.
func (s *Store) CreateJob(ctx context.Context, job *marketplace.Job) (*marketplace.Job, error) {
	next := job.Clone()
	next.Version = 1
	if _, err := s.db.Collection(colJobs).InsertOne(ctx, next); err != nil {
		return nil, fmt.Errorf("marketplace/mongo: create job: %w", err)
	}
	return next, nil
}

// DeleteJob removes a job.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	res, err := s.db.Collection(colJobs).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("marketplace/mongo: delete job: %w", err)
	}
	if res.DeletedCount == 0 {
		return marketplace.ErrNotFound
	}
	return nil
}

// ListJobs returns jobs matching filter, newest first.
func (s *Store) ListJobs(ctx context.Context, filter marketplace.JobFilter) ([]*marketplace.Job, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.db.Collection(colJobs).Find(ctx, filterDoc(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("marketplace/mongo: list jobs: %w", err)
	}
	defer cur.Close(ctx)

	jobs := make([]*marketplace.Job, 0)
	if err := cur.All(ctx, &jobs); err != nil {
		return nil, fmt.Errorf("marketplace/mongo: list jobs decode: %w", err)
	}
	for _, j := range jobs {
		if err := j.CheckStatuses(); err != nil {
			return nil, fmt.Errorf("marketplace/mongo: list jobs decode: %w", err)
		}
	}
	return jobs, nil
}

type userModel struct {
	ID       string `bson:"_id"`
	Username string `bson:"username"`
	Email    string `bson:"email"`
	Role     string `bson:"role"`
}

// LookupUser reads the users collection maintained by the auth service.
func (s *Store) LookupUser(ctx context.Context, id string) (*marketplace.User, error) {
	var m userModel
	err := s.db.Collection(colUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, marketplace.ErrNotFound
		}
		return nil, fmt.Errorf("marketplace/mongo: lookup user: %w", err)
	}
	return &marketplace.User{ID: m.ID, Username: m.Username, Email: m.Email, Role: marketplace.Role(m.Role)}, nil
}

func filterDoc(f marketplace.JobFilter) bson.M {
	doc := bson.M{}
	if f.Client != "" {
		doc["client"] = f.Client
	}
	if f.Status != "" {
		doc["status"] = string(f.Status)
	}
	if f.Tag != "" {
		doc["tags"] = f.Tag
	}
	if !f.DeadlineBefore.IsZero() {
		doc["deadline"] = bson.M{"$lt": f.DeadlineBefore}
	}
	return doc
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}
