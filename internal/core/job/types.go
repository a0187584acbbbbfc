package job

import "time"

// Status of one fetcher run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

// Job is the ledger entry for one run of one source.
type Job struct {
	ID               string     `json:"id"`
	SourceID         string     `json:"sourceId"`
	Status           Status     `json:"status"`
	StartTime        *time.Time `json:"startTime,omitempty"`
	EndTime          *time.Time `json:"endTime,omitempty"`
	DurationMs       int64      `json:"durationMs,omitempty"`
	RecordsProcessed int        `json:"recordsProcessed"`
	Error            string     `json:"error,omitempty"`
}

func (j Job) Duration() time.Duration { return time.Duration(j.DurationMs) * time.Millisecond }

func (j Job) clone() Job {
	if j.StartTime != nil {
		t := *j.StartTime
		j.StartTime = &t
	}
	if j.EndTime != nil {
		t := *j.EndTime
		j.EndTime = &t
	}
	return j
}
