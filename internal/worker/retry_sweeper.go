package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/reembolso/internal/application/port"
	"github.com/garyjia/reembolso/internal/queue"
)

// RetrySweeper periodically re-enqueues submissions that are still PENDING
// after the retry delay. This covers failed attempts, jobs lost by the
// in-memory queue on restart and jobs that could not be published. Rows
// stuck in SENDING for longer than staleAfter are put back to PENDING first.
type RetrySweeper struct {
	repo      port.SubmissionRepository
	publisher port.JobPublisher
	logger    *zap.Logger

	retryDelay time.Duration
	staleAfter time.Duration
	batchSize  int

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}

	now func() time.Time
}

// NewRetrySweeper creates a sweeper running every retryDelay. staleAfter
// should exceed the longest a delivery attempt can take.
func NewRetrySweeper(
	repo port.SubmissionRepository,
	publisher port.JobPublisher,
	retryDelay time.Duration,
	staleAfter time.Duration,
	logger *zap.Logger,
) *RetrySweeper {
	if retryDelay < time.Second {
		retryDelay = time.Second
	}
	if staleAfter < retryDelay {
		staleAfter = retryDelay
	}
	return &RetrySweeper{
		repo:       repo,
		publisher:  publisher,
		logger:     logger,
		retryDelay: retryDelay,
		staleAfter: staleAfter,
		batchSize:  50,
		now:        time.Now,
	}
}

// Start requeues deliveries interrupted by a previous shutdown and begins
// sweeping.
func (r *RetrySweeper) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRunning {
		return fmt.Errorf("retry sweeper is already running")
	}

	n, err := r.repo.RequeueStale(ctx, r.now())
	if err != nil {
		return err
	}
	if n > 0 {
		r.logger.Info("Requeued interrupted deliveries", zap.Int64("count", n))
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	r.isRunning = true

	go r.loop(ctx)

	r.logger.Info("RetrySweeper started",
		zap.Duration("retry_delay", r.retryDelay),
		zap.Duration("stale_after", r.staleAfter))
	return nil
}

// Stop stops the sweep loop
func (r *RetrySweeper) Stop() {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return
	}
	r.isRunning = false
	r.cancel()
	done := r.done
	r.mu.Unlock()

	<-done
}

// Name returns the worker name for identification
func (r *RetrySweeper) Name() string {
	return "RetrySweeper"
}

func (r *RetrySweeper) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.retryDelay)
	defer ticker.Stop()

	r.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep requeues stale SENDING rows, then publishes a job for every PENDING
// submission idle for at least the retry delay. It returns how many jobs
// were published.
func (r *RetrySweeper) Sweep(ctx context.Context) int {
	now := r.now()

	if n, err := r.repo.RequeueStale(ctx, now.Add(-r.staleAfter)); err != nil {
		r.logger.Error("Failed to requeue stale deliveries", zap.Error(err))
	} else if n > 0 {
		r.logger.Info("Requeued stale deliveries", zap.Int64("count", n))
	}

	pending, err := r.repo.ListPending(ctx, now.Add(-r.retryDelay), r.batchSize)
	if err != nil {
		r.logger.Error("Failed to list pending submissions", zap.Error(err))
		return 0
	}

	published := 0
	for _, s := range pending {
		err := r.publisher.Publish(ctx, queue.NewJob(s.ID, s.PublicID))
		if errors.Is(err, queue.ErrFull) {
			r.logger.Info("Queue full, deferring requeue to the next sweep",
				zap.Int("remaining", len(pending)-published))
			break
		}
		if err != nil {
			r.logger.Error("Failed to requeue submission",
				zap.String("public_id", s.PublicID),
				zap.Error(err))
			continue
		}
		published++
	}

	if published > 0 {
		r.logger.Info("Requeued pending submissions", zap.Int("count", published))
	}
	return published
}
