package port

import (
	"context"

	"github.com/garyjia/reembolso/internal/email"
	"github.com/garyjia/reembolso/internal/queue"
	"github.com/garyjia/reembolso/internal/receipt"
)

// MailSender delivers composed e-mails
type MailSender interface {
	Send(ctx context.Context, msg *email.Message) error
}

// JobPublisher hands delivery jobs to the workers
type JobPublisher interface {
	Publish(ctx context.Context, job *queue.Job) error
}

// ReceiptRenderer turns a receipt into a downloadable document
type ReceiptRenderer interface {
	Render(r *receipt.Receipt) ([]byte, error)
}

// PDFInspector checks that a PDF can be opened
type PDFInspector interface {
	Inspect(content []byte) (*receipt.PDFInfo, error)
}
