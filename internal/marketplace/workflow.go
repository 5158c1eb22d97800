package marketplace

import "time"

// The functions in this file are pure: each takes a loaded snapshot and
// returns a new one, leaving the input untouched. Authorization is checked
// by the caller through CanPerform.

// Apply appends a pending applicant for the freelancer. A user may hold at
// most one record per job whatever its status, so re-application is always a
// conflict.
func Apply(job *Job, freelancer Identity, now time.Time) (*Job, error) {
	if freelancer.Role != RoleFreelancer {
		return nil, newError(KindForbidden, "only freelancers can apply to jobs")
	}
	if job.applicantIndex(freelancer.ID) >= 0 {
		return nil, newError(KindConflict, "you have already applied to this job")
	}
	if job.Status != JobOpen {
		return nil, newError(KindConflict, "job is %s and no longer accepts applications", job.Status)
	}

	next := job.Clone()
	next.Applicants = append(next.Applicants, Applicant{
		User:      freelancer.ID,
		Status:    ApplicantPending,
		AppliedAt: now,
	})
	return next, nil
}

// Accept marks the applicant accepted, rejects every other pending
// applicant and moves an open job to in-progress, as one transition.
func Accept(job *Job, applicantID string) (*Job, error) {
	idx, err := pendingApplicant(job, applicantID)
	if err != nil {
		return nil, err
	}

	next := job.Clone()
	for i := range next.Applicants {
		switch {
		case i == idx:
			next.Applicants[i].Status = ApplicantAccepted
		case next.Applicants[i].Status == ApplicantPending:
			next.Applicants[i].Status = ApplicantRejected
		}
	}
	if next.Status == JobOpen {
		next.Status = JobInProgress
	}
	return next, nil
}

// Reject marks a single pending applicant rejected.
func Reject(job *Job, applicantID string) (*Job, error) {
	idx, err := pendingApplicant(job, applicantID)
	if err != nil {
		return nil, err
	}

	next := job.Clone()
	next.Applicants[idx].Status = ApplicantRejected
	return next, nil
}

// Complete moves an in-progress job to completed. Completing an open job
// (nobody engaged) or re-completing a closed one is a conflict.
func Complete(job *Job) (*Job, error) {
	if !IsJobTransitionAllowed(job.Status, JobCompleted) {
		return nil, newError(KindConflict, "transition %s → %s is not allowed", job.Status, JobCompleted)
	}

	next := job.Clone()
	next.Status = JobCompleted
	return next, nil
}

func pendingApplicant(job *Job, applicantID string) (int, error) {
	idx := job.applicantIndex(applicantID)
	if idx < 0 {
		return -1, newError(KindNotFound, "applicant not found for this job")
	}
	if IsDecided(job.Applicants[idx].Status) {
		return -1, newError(KindConflict, "application is not pending (%s)", job.Applicants[idx].Status)
	}
	return idx, nil
}
