// Package queue carries submission delivery jobs from the HTTP layer to the
// e-mail workers.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrClosed is returned when publishing to a closed queue
	ErrClosed = errors.New("queue closed")

	// ErrFull is returned when a bounded queue cannot take another job
	ErrFull = errors.New("queue is full")
)

// Job asks a worker to deliver one submission. It carries only identifiers;
// the worker loads the rest from the database.
type Job struct {
	SubmissionID int64     `json:"submission_id"`
	PublicID     string    `json:"public_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewJob creates a job stamped with the current time
func NewJob(submissionID int64, publicID string) *Job {
	return &Job{
		SubmissionID: submissionID,
		PublicID:     publicID,
		Timestamp:    time.Now(),
	}
}

// ToJSON converts the job to JSON bytes
func (j *Job) ToJSON() ([]byte, error) {
	return json.Marshal(j)
}

// JobFromJSON decodes a job
func JobFromJSON(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	if j.SubmissionID == 0 {
		return nil, errors.New("job without submission id")
	}
	return &j, nil
}

// Handler processes one job. A returned error means the job should be
// offered again when the queue supports redelivery.
type Handler func(ctx context.Context, job *Job) error

// Queue publishes and consumes jobs
type Queue interface {
	Publish(ctx context.Context, job *Job) error
	// Consume blocks, feeding jobs to h until ctx is done or the queue closes
	Consume(ctx context.Context, h Handler) error
	Close() error
}
