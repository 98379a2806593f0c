package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/reembolso/internal/application/port"
	"github.com/garyjia/reembolso/internal/domain/entity"
	"github.com/garyjia/reembolso/internal/domain/workflow"
	"github.com/garyjia/reembolso/internal/email"
	"github.com/garyjia/reembolso/internal/queue"
)

const (
	recordAttempts = 3
	recordTimeout  = 10 * time.Second
)

// EmailWorkerConfig holds delivery settings
type EmailWorkerConfig struct {
	Concurrency int
	MaxAttempts int
	SendTimeout time.Duration
}

// EmailWorker consumes delivery jobs and e-mails the submissions
type EmailWorker struct {
	queue  queue.Queue
	repo   port.SubmissionRepository
	files  port.FileStorage
	sender port.MailSender
	cfg    EmailWorkerConfig
	logger *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	now           func() time.Time
	recordBackoff time.Duration
}

// NewEmailWorker creates a new e-mail worker
func NewEmailWorker(
	q queue.Queue,
	repo port.SubmissionRepository,
	files port.FileStorage,
	sender port.MailSender,
	cfg EmailWorkerConfig,
	logger *zap.Logger,
) *EmailWorker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = time.Minute
	}
	return &EmailWorker{
		queue:  q,
		repo:   repo,
		files:  files,
		sender: sender,
		cfg:    cfg,
		logger: logger,

		now:           time.Now,
		recordBackoff: 200 * time.Millisecond,
	}
}

// Start launches the consumers
func (w *EmailWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("email worker is already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true

	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go func(n int) {
			defer w.wg.Done()
			err := w.queue.Consume(ctx, w.Deliver)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, queue.ErrClosed) {
				w.logger.Error("Consumer stopped", zap.Int("consumer", n), zap.Error(err))
			}
		}(i)
	}

	w.logger.Info("EmailWorker started",
		zap.Int("concurrency", w.cfg.Concurrency),
		zap.Int("max_attempts", w.cfg.MaxAttempts))
	return nil
}

// Stop cancels the consumers and waits for in-flight deliveries
func (w *EmailWorker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	w.cancel()
	w.mu.Unlock()

	w.wg.Wait()
}

// Name returns the worker name for identification
func (w *EmailWorker) Name() string {
	return "EmailWorker"
}

// Deliver sends the submission named by job. Delivery failures are recorded
// on the submission and do not return an error; only storage problems do.
// Once a row is claimed, every exit path writes it back out of SENDING.
func (w *EmailWorker) Deliver(ctx context.Context, job *queue.Job) error {
	err := w.repo.Claim(ctx, job.SubmissionID)
	if errors.Is(err, entity.ErrSubmissionNotClaimable) || errors.Is(err, entity.ErrSubmissionNotFound) {
		w.logger.Debug("Skipping job",
			zap.Int64("submission_id", job.SubmissionID),
			zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}

	s, err := w.repo.GetByID(ctx, job.SubmissionID)
	if err != nil {
		return w.release(ctx, job.SubmissionID, err)
	}

	lifecycle := workflow.NewDeliveryMachine(workflow.StateSending, s.Attempts, w.cfg.MaxAttempts)

	sendErr := w.send(ctx, s)
	if sendErr == nil {
		if err := lifecycle.Fire(ctx, workflow.TriggerDeliver); err != nil {
			return w.release(ctx, s.ID, err)
		}
		w.logger.Info("Submission delivered",
			zap.String("public_id", s.PublicID),
			zap.Int("attempt", s.Attempts))
		sentAt := w.now()
		return w.record(ctx, s.ID, func(ctx context.Context) error {
			return w.repo.MarkSent(ctx, s.ID, sentAt)
		})
	}

	if err := lifecycle.Fire(ctx, workflow.TriggerFail); err != nil {
		return w.release(ctx, s.ID, err)
	}

	if lifecycle.State() == workflow.StateFailed {
		w.logger.Error("Submission delivery failed permanently",
			zap.String("public_id", s.PublicID),
			zap.Int("attempts", s.Attempts),
			zap.Error(sendErr))
		return w.record(ctx, s.ID, func(ctx context.Context) error {
			return w.repo.MarkFailed(ctx, s.ID, sendErr.Error())
		})
	}

	w.logger.Error("Submission delivery failed, will retry",
		zap.String("public_id", s.PublicID),
		zap.Int("attempt", s.Attempts),
		zap.Error(sendErr))
	return w.record(ctx, s.ID, func(ctx context.Context) error {
		return w.repo.MarkPending(ctx, s.ID, sendErr.Error())
	})
}

// release puts a claimed submission back to PENDING after a failure that
// happened before the outcome of the attempt was known, and returns cause.
func (w *EmailWorker) release(ctx context.Context, id int64, cause error) error {
	w.logger.Error("Releasing claimed submission",
		zap.Int64("submission_id", id),
		zap.Error(cause))
	err := w.record(ctx, id, func(ctx context.Context) error {
		return w.repo.MarkPending(ctx, id, cause.Error())
	})
	if err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// record runs write on a context detached from ctx's cancellation, so a
// shutdown in the middle of a send still stores its outcome. Rows it cannot
// write stay in SENDING until the sweeper finds them stale.
func (w *EmailWorker) record(ctx context.Context, id int64, write func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	var err error
	for attempt := 1; attempt <= recordAttempts; attempt++ {
		if err = write(ctx); err == nil {
			return nil
		}
		w.logger.Warn("Failed to record delivery outcome",
			zap.Int64("submission_id", id),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == recordAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt) * w.recordBackoff):
		}
	}
	return err
}

func (w *EmailWorker) send(ctx context.Context, s *entity.Submission) error {
	stored, err := w.repo.ListAttachments(ctx, s.ID)
	if err != nil {
		return err
	}

	msg := &email.Message{
		To:          s.To,
		Cc:          s.Cc,
		Subject:     s.Subject,
		Body:        s.Message,
		Attachments: make([]email.Attachment, 0, len(stored)),
	}
	for _, a := range stored {
		content, err := w.files.ReadFile(a.FilePath)
		if err != nil {
			return fmt.Errorf("attachment %s: %w", a.Filename, err)
		}
		msg.Attachments = append(msg.Attachments, email.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Content:     content,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	defer cancel()
	return w.sender.Send(ctx, msg)
}
