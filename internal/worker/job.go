package worker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fluxdbc/internal/exporter"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Job carries one export from submission to stored artifact.
type Job struct {
	ID     string
	Query  string
	Format string
	// Key is where the artifact lands in storage, set when processing
	// starts.
	Key string

	Status Status
	Err    error
	Stats  *exporter.Stats

	Submitted time.Time
	Started   time.Time
	Finished  time.Time

	// Ctx bounds the whole job; Cancel aborts it.
	Ctx    context.Context
	Cancel context.CancelFunc

	done chan struct{}
}

func NewJob(query, format string, timeout time.Duration) *Job {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return &Job{
		ID:        uuid.New().String(),
		Query:     query,
		Format:    format,
		Submitted: time.Now(),
		Status:    StatusPending,
		Ctx:       ctx,
		Cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Done is closed when the job reaches a terminal status.
func (j *Job) Done() <-chan struct{} { return j.done }
