package domain

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusRetrying   Status = "retrying"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions can occur from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is the durable record of a submitted unit of work. The job store is the
// sole source of truth for its fields; the queue only ever carries an Envelope.
type Job struct {
	ID        string          `db:"job_id" json:"id"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	Status    Status          `db:"status" json:"status"`
	Attempts  int             `db:"attempts" json:"attempts"`
	Result    json.RawMessage `db:"result" json:"result,omitempty"`
	Error     string          `db:"error_message" json:"error,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}
