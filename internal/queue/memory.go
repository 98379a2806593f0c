package queue

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Memory is an in-process queue backed by a buffered channel. Jobs are lost
// on restart; workers re-enqueue unfinished submissions at startup.
type Memory struct {
	jobs   chan *Job
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

// NewMemory creates a queue holding up to buffer pending jobs
func NewMemory(buffer int, logger *zap.Logger) *Memory {
	if buffer < 1 {
		buffer = 1
	}
	return &Memory{
		jobs:   make(chan *Job, buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Publish never waits for buffer space; a full buffer yields ErrFull
func (q *Memory) Publish(ctx context.Context, job *Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrFull
	}
}

// Consume runs h for every job. Failed jobs are logged and dropped.
func (q *Memory) Consume(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.done:
			return ErrClosed
		case job := <-q.jobs:
			if err := h(ctx, job); err != nil {
				q.logger.Error("Failed to handle job",
					zap.Int64("submission_id", job.SubmissionID),
					zap.String("public_id", job.PublicID),
					zap.Error(err))
			}
		}
	}
}

// Len returns the number of buffered jobs
func (q *Memory) Len() int {
	return len(q.jobs)
}

// Close stops consumers and rejects further publishes
func (q *Memory) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}
