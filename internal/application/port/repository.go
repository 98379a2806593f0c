package port

import (
	"context"
	"time"

	"github.com/garyjia/reembolso/internal/domain/entity"
)

// SubmissionRepository defines persistence operations for Submission
type SubmissionRepository interface {
	CreateWithAttachments(ctx context.Context, s *entity.Submission, attachments []*entity.Attachment) error
	GetByID(ctx context.Context, id int64) (*entity.Submission, error)
	GetByPublicID(ctx context.Context, publicID string) (*entity.Submission, error)
	ListAttachments(ctx context.Context, submissionID int64) ([]*entity.Attachment, error)
	ListPending(ctx context.Context, before time.Time, limit int) ([]*entity.Submission, error)
	Claim(ctx context.Context, id int64) error
	RequeueStale(ctx context.Context, before time.Time) (int64, error)
	MarkSent(ctx context.Context, id int64, sentAt time.Time) error
	MarkPending(ctx context.Context, id int64, errMsg string) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
}
