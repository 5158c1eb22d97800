package marketplace

import (
	"fmt"
	"slices"
	"time"
)

// Identity is the authenticated caller forwarded by the gateway.
type Identity struct {
	ID   string
	Role Role
}

// Job is the aggregate root. Applicants and Comments are owned by it and are
// only ever appended to.
type Job struct {
	ID          string      `json:"id" bson:"_id"`
	Title       string      `json:"title" bson:"title"`
	Description string      `json:"description" bson:"description"`
	Budget      float64     `json:"budget" bson:"budget"`
	Deadline    time.Time   `json:"deadline" bson:"deadline"`
	Tags        []string    `json:"tags" bson:"tags"`
	Client      string      `json:"client" bson:"client"`
	Status      JobStatus   `json:"status" bson:"status"`
	Applicants  []Applicant `json:"applicants" bson:"applicants"`
	Comments    []Comment   `json:"comments" bson:"comments"`
	CreatedAt   time.Time   `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time   `json:"updatedAt" bson:"updated_at"`
	Version     int64       `json:"version" bson:"version"`
}

// Applicant is one freelancer's application to a job.
type Applicant struct {
	User      string          `json:"user" bson:"user"`
	Status    ApplicantStatus `json:"status" bson:"status"`
	AppliedAt time.Time       `json:"appliedAt" bson:"applied_at"`
}

// Comment is an immutable entry in a job's comment thread.
type Comment struct {
	ID        string    `json:"id" bson:"id"`
	Author    string    `json:"author" bson:"author"`
	Text      string    `json:"text" bson:"text"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// User is the display form of an identity, resolved through a UserDirectory.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// Clone returns a deep copy so transitions never touch the loaded snapshot.
func (j *Job) Clone() *Job {
	c := *j
	c.Tags = slices.Clone(j.Tags)
	c.Applicants = slices.Clone(j.Applicants)
	c.Comments = slices.Clone(j.Comments)
	return &c
}

// applicantIndex returns the index of the record for userID, or -1.
func (j *Job) applicantIndex(userID string) int {
	return slices.IndexFunc(j.Applicants, func(a Applicant) bool { return a.User == userID })
}

// CheckStatuses rejects a decoded job whose status or applicant statuses
// fall outside the known sets. Stores call it on every read.
func (j *Job) CheckStatuses() error {
	if _, err := ParseJobStatus(string(j.Status)); err != nil {
		return fmt.Errorf("job %s: %w", j.ID, err)
	}
	for _, a := range j.Applicants {
		if _, err := ParseApplicantStatus(string(a.Status)); err != nil {
			return fmt.Errorf("job %s applicant %s: %w", j.ID, a.User, err)
		}
	}
	return nil
}

// AcceptedApplicant returns the accepted applicant, if any.
func (j *Job) AcceptedApplicant() (Applicant, bool) {
	for _, a := range j.Applicants {
		if a.Status == ApplicantAccepted {
			return a, true
		}
	}
	return Applicant{}, false
}

// JobFilter holds criteria for ListJobs. Empty fields match all.
type JobFilter struct {
	Client string
	Status JobStatus
	Tag    string
	// DeadlineBefore keeps jobs whose deadline is strictly before it.
	DeadlineBefore time.Time
}

// Matches reports whether j satisfies every non-empty criterion.
func (f JobFilter) Matches(j *Job) bool {
	if f.Client != "" && j.Client != f.Client {
		return false
	}
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	if f.Tag != "" && !slices.Contains(j.Tags, f.Tag) {
		return false
	}
	if !f.DeadlineBefore.IsZero() && !j.Deadline.Before(f.DeadlineBefore) {
		return false
	}
	return true
}
