package engine

import (
	"errors"
	"fmt"
)

// Job names a scheduled job.
type Job string

const (
	// JobReconcile runs the note reconciliation pass.
	JobReconcile Job = "reconcile"

	// JobDailyBackup writes the daily lightweight backup.
	JobDailyBackup Job = "daily-backup"
)

// JobError is a failed scheduled job run.
type JobError struct {
	// Job identifies the job.
	Job Job

	// Message is a human-readable description.
	Message string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *JobError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Job, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Job, e.Message, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// IsJobError reports whether err is a failure of job.
// Uses errors.As to handle wrapped errors.
func IsJobError(err error, job Job) bool {
	var je *JobError
	if errors.As(err, &je) {
		return je.Job == job
	}
	return false
}

func newJobError(job Job, message string, err error) *JobError {
	return &JobError{Job: job, Message: message, Err: err}
}
