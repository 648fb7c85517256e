package models

import (
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle state of an async job.
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobError      JobStatus = "error"
)

// IsTerminal reports whether the status is final.
func (s JobStatus) IsTerminal() bool { return s == JobDone || s == JobError }

// Job types served by the tracker.
const (
	JobTypeFilter  = "filter"
	JobTypeTrend   = "trend"
	JobTypeHistory = "history"
)

// Job is the stored record of an async computation.
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Status      JobStatus       `json:"status"`
	Request     json.RawMessage `json:"request"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"timestamp"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// JobKey returns the store key of a job record.
func JobKey(jobType, jobID string) string { return jobType + "_job_" + jobID }

// JobEvent is published when a job reaches a terminal state.
type JobEvent struct {
	EventID   string    `json:"event_id"`
	JobID     string    `json:"job_id"`
	JobType   string    `json:"job_type"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// VerdictEvent is published for every passing filter verdict.
type VerdictEvent struct {
	EventID   string          `json:"event_id"`
	Symbol    string          `json:"symbol"`
	TimeFrame TimeFrame       `json:"time_frame"`
	Passed    bool            `json:"passed"`
	Criteria  map[string]bool `json:"criteria"`
	Timestamp time.Time       `json:"timestamp"`
}
