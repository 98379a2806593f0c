package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/reembolso/internal/domain/entity"
	"go.uber.org/zap"
)

var (
	// ErrSubmissionNotFound is returned when no submission matches the lookup
	ErrSubmissionNotFound = entity.ErrSubmissionNotFound

	// ErrNotClaimable is returned when a submission is not PENDING anymore
	ErrNotClaimable = entity.ErrSubmissionNotClaimable
)

const submissionColumns = `
	id, public_id, employee_name, recipients, cc, subject, message, total,
	request_json, status, attempts, error_message, attachment_count,
	sent_at, created_at, updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SubmissionRepository handles submission database operations
type SubmissionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(db *sql.DB, logger *zap.Logger) *SubmissionRepository {
	return &SubmissionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *SubmissionRepository) exec(tx *sql.Tx) execer {
	if tx != nil {
		return tx
	}
	return r.db
}

// Create inserts a new submission record
func (r *SubmissionRepository) Create(ctx context.Context, tx *sql.Tx, s *entity.Submission) error {
	query := `
		INSERT INTO submissions (
			public_id, employee_name, recipients, cc, subject, message, total,
			request_json, status, attachment_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if s.Status == "" {
		s.Status = entity.SubmissionStatusPending
	}

	result, err := r.exec(tx).ExecContext(ctx, query,
		s.PublicID,
		s.EmployeeName,
		strings.Join(s.To, ","),
		strings.Join(s.Cc, ","),
		s.Subject,
		s.Message,
		s.Total,
		s.RequestJSON,
		s.Status,
		s.AttachmentCount,
	)
	if err != nil {
		r.logger.Error("Failed to create submission", zap.Error(err))
		return fmt.Errorf("failed to create submission: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	s.ID = id
	return nil
}

// CreateAttachment inserts the metadata of a stored attachment
func (r *SubmissionRepository) CreateAttachment(ctx context.Context, tx *sql.Tx, a *entity.Attachment) error {
	query := `
		INSERT INTO submission_attachments (
			submission_id, position, filename, content_type, size, file_path, page_count
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.exec(tx).ExecContext(ctx, query,
		a.SubmissionID,
		a.Position,
		a.Filename,
		a.ContentType,
		a.Size,
		a.FilePath,
		a.PageCount,
	)
	if err != nil {
		r.logger.Error("Failed to create attachment",
			zap.Int64("submission_id", a.SubmissionID),
			zap.Error(err))
		return fmt.Errorf("failed to create attachment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	a.ID = id
	return nil
}

// CreateWithAttachments stores a submission and its attachments atomically
func (r *SubmissionRepository) CreateWithAttachments(ctx context.Context, s *entity.Submission, attachments []*entity.Attachment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.Create(ctx, tx, s); err != nil {
		return err
	}
	for _, a := range attachments {
		a.SubmissionID = s.ID
		if err := r.CreateAttachment(ctx, tx, a); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a submission by its database ID
func (r *SubmissionRepository) GetByID(ctx context.Context, id int64) (*entity.Submission, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+submissionColumns+" FROM submissions WHERE id = ?", id)
	return r.scan(row)
}

// GetByPublicID retrieves a submission by the ID handed out to clients
func (r *SubmissionRepository) GetByPublicID(ctx context.Context, publicID string) (*entity.Submission, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+submissionColumns+" FROM submissions WHERE public_id = ?", publicID)
	return r.scan(row)
}

// ListPending returns the oldest PENDING submissions last touched before the
// given instant.
func (r *SubmissionRepository) ListPending(ctx context.Context, before time.Time, limit int) ([]*entity.Submission, error) {
	query := "SELECT " + submissionColumns + `
		FROM submissions
		WHERE status = ? AND updated_at <= ?
		ORDER BY id ASC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, entity.SubmissionStatusPending, before.UTC(), limit)
	if err != nil {
		r.logger.Error("Failed to list pending submissions", zap.Error(err))
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var out []*entity.Submission
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListAttachments returns the attachments of a submission in send order
func (r *SubmissionRepository) ListAttachments(ctx context.Context, submissionID int64) ([]*entity.Attachment, error) {
	query := `
		SELECT id, submission_id, position, filename, content_type, size, file_path, page_count, created_at
		FROM submission_attachments
		WHERE submission_id = ?
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, submissionID)
	if err != nil {
		r.logger.Error("Failed to list attachments", zap.Int64("submission_id", submissionID), zap.Error(err))
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	var out []*entity.Attachment
	for rows.Next() {
		var a entity.Attachment
		if err := rows.Scan(
			&a.ID,
			&a.SubmissionID,
			&a.Position,
			&a.Filename,
			&a.ContentType,
			&a.Size,
			&a.FilePath,
			&a.PageCount,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// Claim moves a PENDING submission to SENDING and counts the attempt. Only
// one caller can claim a given attempt.
func (r *SubmissionRepository) Claim(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE submissions
		SET status = ?, attempts = attempts + 1, updated_at = ?
		WHERE id = ? AND status = ?`,
		entity.SubmissionStatusSending, time.Now().UTC(), id, entity.SubmissionStatusPending)
	if err != nil {
		r.logger.Error("Failed to claim submission", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to claim submission: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotClaimable
	}
	return nil
}

// RequeueStale returns submissions left in SENDING since before the given
// instant to PENDING. Passing the current time requeues every interrupted
// delivery.
func (r *SubmissionRepository) RequeueStale(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE submissions SET status = ?, updated_at = ? WHERE status = ? AND updated_at <= ?",
		entity.SubmissionStatusPending, time.Now().UTC(), entity.SubmissionStatusSending, before.UTC())
	if err != nil {
		r.logger.Error("Failed to requeue stale submissions", zap.Error(err))
		return 0, fmt.Errorf("failed to requeue submissions: %w", err)
	}
	return result.RowsAffected()
}

// MarkSent records a successful delivery
func (r *SubmissionRepository) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	return r.update(ctx, id,
		"status = ?, error_message = '', sent_at = ?, updated_at = ?",
		entity.SubmissionStatusSent, sentAt.UTC(), time.Now().UTC())
}

// MarkPending puts a submission back in line after a failed attempt
func (r *SubmissionRepository) MarkPending(ctx context.Context, id int64, errMsg string) error {
	return r.update(ctx, id,
		"status = ?, error_message = ?, updated_at = ?",
		entity.SubmissionStatusPending, errMsg, time.Now().UTC())
}

// MarkFailed records that delivery was given up
func (r *SubmissionRepository) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	return r.update(ctx, id,
		"status = ?, error_message = ?, updated_at = ?",
		entity.SubmissionStatusFailed, errMsg, time.Now().UTC())
}

func (r *SubmissionRepository) update(ctx context.Context, id int64, set string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, "UPDATE submissions SET "+set+" WHERE id = ?", append(args, id)...)
	if err != nil {
		r.logger.Error("Failed to update submission", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update submission: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func (r *SubmissionRepository) scan(row scanner) (*entity.Submission, error) {
	var (
		s          entity.Submission
		recipients string
		cc         string
		sentAt     sql.NullTime
	)

	err := row.Scan(
		&s.ID,
		&s.PublicID,
		&s.EmployeeName,
		&recipients,
		&cc,
		&s.Subject,
		&s.Message,
		&s.Total,
		&s.RequestJSON,
		&s.Status,
		&s.Attempts,
		&s.ErrorMessage,
		&s.AttachmentCount,
		&sentAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		r.logger.Error("Failed to scan submission", zap.Error(err))
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	s.To = splitList(recipients)
	s.Cc = splitList(cc)
	if sentAt.Valid {
		s.SentAt = &sentAt.Time
	}

	return &s, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
