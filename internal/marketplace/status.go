// Package marketplace implements the job application lifecycle.
//
// Job status graph:
//
//	open ──► in-progress ──► completed
//	  │           │
//	  └───────────┴──► cancelled
//
// Applicant status graph:
//
//	pending ──► accepted
//	   │
//	   └──────► rejected
//
// completed, cancelled, accepted and rejected are terminal.
package marketplace

import "fmt"

// JobStatus values are stored verbatim in every backend.
type JobStatus string

const (
	JobOpen       JobStatus = "open"
	JobInProgress JobStatus = "in-progress"
	JobCompleted  JobStatus = "completed"
	JobCancelled  JobStatus = "cancelled"
)

// ApplicantStatus is the decision state of a single application.
type ApplicantStatus string

const (
	ApplicantPending  ApplicantStatus = "pending"
	ApplicantAccepted ApplicantStatus = "accepted"
	ApplicantRejected ApplicantStatus = "rejected"
)

// Role is the marketplace role carried by an authenticated identity.
type Role string

const (
	RoleClient     Role = "client"
	RoleFreelancer Role = "freelancer"
)

// validJobTransitions lists every allowed (from → to) pair.
var validJobTransitions = map[JobStatus][]JobStatus{
	JobOpen:       {JobInProgress, JobCancelled},
	JobInProgress: {JobCompleted, JobCancelled},
	// completed and cancelled are terminal
}

// ParseJobStatus converts a raw string to a JobStatus, returning an error
// for unknown values.
func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(s)
	switch st {
	case JobOpen, JobInProgress, JobCompleted, JobCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// ParseApplicantStatus converts a raw string to an ApplicantStatus.
func ParseApplicantStatus(s string) (ApplicantStatus, error) {
	st := ApplicantStatus(s)
	switch st {
	case ApplicantPending, ApplicantAccepted, ApplicantRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown applicant status %q", s)
}

// ParseRole converts a raw string to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	switch r {
	case RoleClient, RoleFreelancer:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// IsJobTransitionAllowed returns true when moving a job from → to is
// permitted by the state machine.
func IsJobTransitionAllowed(from, to JobStatus) bool {
	allowed, ok := validJobTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsDecided returns true when an applicant has reached a terminal status.
func IsDecided(s ApplicantStatus) bool {
	return s == ApplicantAccepted || s == ApplicantRejected
}
