package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/garyjia/reembolso/internal/application/port"
	"github.com/garyjia/reembolso/internal/domain/entity"
	"github.com/garyjia/reembolso/internal/queue"
	"github.com/garyjia/reembolso/internal/receipt"
	"github.com/garyjia/reembolso/pkg/brl"
	"github.com/garyjia/reembolso/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

var (
	ErrNoRecipients        = errors.New("at least one recipient is required")
	ErrInvalidAddress      = errors.New("invalid e-mail address")
	ErrInvalidAttachment   = errors.New("invalid attachment")
	ErrAttachmentsTooLarge = errors.New("attachments exceed the size limit")
)

// Submission defaults
const (
	DefaultSubject = "Solicitação de Reembolso"
	DefaultMessage = "Prezados,\n\nSegue solicitação de reembolso com recibo em anexo.\n\nAtt."

	pdfContentType     = "application/pdf"
	genericContentType = "application/octet-stream"
)

// AddressList accepts either a JSON array of addresses or a single
// comma-separated string.
type AddressList []string

// UnmarshalJSON implements json.Unmarshaler
func (a *AddressList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*a = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("addresses must be a string or a list of strings")
	}
	*a = AddressList{single}
	return nil
}

// AttachmentInput is an attachment as posted by the form
type AttachmentInput struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

// SubmitInput is the body of a submission request
type SubmitInput struct {
	To             AddressList       `json:"to"`
	Cc             AddressList       `json:"cc"`
	Subject        string            `json:"subject"`
	Message        string            `json:"message"`
	Meta           entity.Request    `json:"meta"`
	Attachments    []AttachmentInput `json:"attachments"`
	IncludeReceipt *bool             `json:"includeReceipt,omitempty"`
}

// SubmitResult describes an accepted submission
type SubmitResult struct {
	ID             string  `json:"id"`
	Status         string  `json:"status"`
	Total          float64 `json:"total"`
	TotalFormatted string  `json:"total_formatted"`
	TotalInWords   string  `json:"total_in_words"`
	Attachments    int     `json:"attachments"`
}

// SubmissionConfig holds submission policy
type SubmissionConfig struct {
	// DefaultTo is used when a request names no recipient
	DefaultTo          []string
	MaxAttachmentBytes int64
	// IncludeReceipt renders a receipt when the request carries none
	IncludeReceipt bool
}

// SubmissionService accepts reimbursement requests for e-mail delivery
type SubmissionService interface {
	Submit(ctx context.Context, in *SubmitInput) (*SubmitResult, error)
	Get(ctx context.Context, publicID string) (*entity.Submission, error)
}

type submissionServiceImpl struct {
	repo      port.SubmissionRepository
	files     port.FileStorage
	folders   port.FolderManager
	publisher port.JobPublisher
	renderer  port.ReceiptRenderer
	inspector port.PDFInspector
	cfg       SubmissionConfig
	logger    Logger

	now   func() time.Time
	newID func() string
}

// NewSubmissionService creates a new SubmissionService
func NewSubmissionService(
	repo port.SubmissionRepository,
	files port.FileStorage,
	folders port.FolderManager,
	publisher port.JobPublisher,
	renderer port.ReceiptRenderer,
	inspector port.PDFInspector,
	cfg SubmissionConfig,
	logger Logger,
) SubmissionService {
	return &submissionServiceImpl{
		repo:      repo,
		files:     files,
		folders:   folders,
		publisher: publisher,
		renderer:  renderer,
		inspector: inspector,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Submit validates the request, stores it with its files and queues it for
// delivery. The returned ID identifies the submission to clients.
func (s *submissionServiceImpl) Submit(ctx context.Context, in *SubmitInput) (*SubmitResult, error) {
	to, cc, err := s.recipients(in)
	if err != nil {
		return nil, err
	}

	attachments, clientReceipt, err := s.decodeAttachments(in.Attachments)
	if err != nil {
		return nil, err
	}

	include := s.cfg.IncludeReceipt
	if in.IncludeReceipt != nil {
		include = *in.IncludeReceipt
	}
	if include && !clientReceipt {
		rendered, err := s.renderReceipt(&in.Meta)
		if err != nil {
			return nil, err
		}
		attachments = append([]*entity.Attachment{rendered}, attachments...)
	}

	requestJSON, err := json.Marshal(in.Meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	total := in.Meta.Total()
	publicID := s.newID()
	submission := &entity.Submission{
		PublicID:        publicID,
		EmployeeName:    strings.TrimSpace(in.Meta.Employee.Name),
		To:              to,
		Cc:              cc,
		Subject:         subject(in.Subject, in.Meta.Employee.Name),
		Message:         body(in.Message, &in.Meta),
		Total:           total,
		RequestJSON:     string(requestJSON),
		Status:          entity.SubmissionStatusPending,
		AttachmentCount: len(attachments),
	}

	for i, a := range attachments {
		a.Position = i
		a.FilePath = s.folders.AttachmentPath(publicID, i, a.Filename)
		if err := s.files.SaveFile(a.FilePath, a.Content); err != nil {
			s.cleanup(publicID)
			return nil, fmt.Errorf("failed to store attachment %s: %w", a.Filename, err)
		}
	}

	if err := s.repo.CreateWithAttachments(ctx, submission, attachments); err != nil {
		s.cleanup(publicID)
		return nil, fmt.Errorf("failed to save submission: %w", err)
	}

	s.logger.Info("Submission accepted",
		"public_id", publicID,
		"employee", submission.EmployeeName,
		"recipients", len(to),
		"attachments", len(attachments),
		"total", total)

	// A row left PENDING is picked up by the retry sweep
	err = s.publisher.Publish(ctx, queue.NewJob(submission.ID, publicID))
	switch {
	case errors.Is(err, queue.ErrFull):
		s.logger.Info("Queue full, submission left for the retry sweep", "public_id", publicID)
	case err != nil:
		s.logger.Error("Failed to enqueue submission", "public_id", publicID, "error", err)
	}

	return &SubmitResult{
		ID:             publicID,
		Status:         submission.Status,
		Total:          total,
		TotalFormatted: brl.Format(total),
		TotalInWords:   brl.AmountToWords(total),
		Attachments:    len(attachments),
	}, nil
}

// Get returns a submission by its public ID
func (s *submissionServiceImpl) Get(ctx context.Context, publicID string) (*entity.Submission, error) {
	return s.repo.GetByPublicID(ctx, publicID)
}

func (s *submissionServiceImpl) recipients(in *SubmitInput) (to, cc []string, err error) {
	to = utils.SplitAddresses(in.To...)
	if len(to) == 0 {
		to = utils.SplitAddresses(s.cfg.DefaultTo...)
	}
	if len(to) == 0 {
		return nil, nil, ErrNoRecipients
	}

	cc = utils.SplitAddresses(in.Cc...)
	if len(cc) == 0 {
		if email := strings.TrimSpace(in.Meta.Employee.Email); utils.ValidateEmail(email) == nil {
			cc = []string{email}
		}
	}

	for _, addr := range append(append([]string{}, to...), cc...) {
		if err := utils.ValidateEmail(addr); err != nil {
			return nil, nil, fmt.Errorf("%w: %s", ErrInvalidAddress, addr)
		}
	}

	return to, cc, nil
}

// decodeAttachments also reports whether one of the PDFs already is a
// reimbursement receipt, judged by its filename or its first page.
func (s *submissionServiceImpl) decodeAttachments(inputs []AttachmentInput) ([]*entity.Attachment, bool, error) {
	var (
		out           = make([]*entity.Attachment, 0, len(inputs)+1)
		total         int64
		clientReceipt bool
	)

	for i, in := range inputs {
		content, err := decodeContent(in.Content)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %s: %v", ErrInvalidAttachment, in.Filename, err)
		}
		if len(content) == 0 {
			return nil, false, fmt.Errorf("%w: %s: empty content", ErrInvalidAttachment, in.Filename)
		}

		total += int64(len(content))
		if total > s.cfg.MaxAttachmentBytes {
			return nil, false, fmt.Errorf("%w: more than %d bytes", ErrAttachmentsTooLarge, s.cfg.MaxAttachmentBytes)
		}

		name := strings.TrimSpace(utils.SanitizeHeader(in.Filename))
		if name == "" {
			name = fmt.Sprintf("anexo-%d", i+1)
		}

		a := &entity.Attachment{
			Filename:    name,
			ContentType: contentType(in.ContentType, content),
			Size:        int64(len(content)),
			Content:     content,
		}

		if isPDF(a.ContentType) {
			info, err := s.inspector.Inspect(content)
			if err != nil {
				return nil, false, fmt.Errorf("%w: %s: %v", ErrInvalidAttachment, name, err)
			}
			a.PageCount = info.Pages
			if isReceipt(name, info) {
				clientReceipt = true
			}
		}

		out = append(out, a)
	}

	return out, clientReceipt, nil
}

func (s *submissionServiceImpl) renderReceipt(req *entity.Request) (*entity.Attachment, error) {
	content, err := s.renderer.Render(receipt.Build(req))
	if err != nil {
		return nil, fmt.Errorf("failed to render receipt: %w", err)
	}

	return &entity.Attachment{
		Filename:    receipt.Filename(s.now()),
		ContentType: pdfContentType,
		Size:        int64(len(content)),
		Content:     content,
		PageCount:   1,
	}, nil
}

func (s *submissionServiceImpl) cleanup(publicID string) {
	if err := s.folders.DeleteSubmissionFolder(publicID); err != nil {
		s.logger.Error("Failed to clean up submission files", "public_id", publicID, "error", err)
	}
}

// decodeContent accepts plain base64 or a data URL
func decodeContent(content string) ([]byte, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "data:") {
		if i := strings.Index(content, ","); i >= 0 {
			content = content[i+1:]
		}
	}
	return base64.StdEncoding.DecodeString(content)
}

// contentType trusts the declared type unless it is missing or generic
func contentType(declared string, content []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != genericContentType {
		return declared
	}
	return mimetype.Detect(content).String()
}

func isPDF(ct string) bool {
	return strings.HasPrefix(strings.ToLower(ct), pdfContentType)
}

func isReceipt(filename string, info *receipt.PDFInfo) bool {
	if strings.HasPrefix(strings.ToLower(filename), "recibo") {
		return true
	}
	return strings.Contains(strings.ToUpper(info.FirstPageText), receipt.Title)
}

func subject(requested, employee string) string {
	if s := strings.TrimSpace(utils.SanitizeHeader(requested)); s != "" {
		return s
	}
	if employee = strings.TrimSpace(employee); employee != "" {
		return DefaultSubject + " - " + employee
	}
	return DefaultSubject
}

func body(message string, req *entity.Request) string {
	message = strings.TrimSpace(utils.SanitizeString(message))
	if message == "" {
		message = DefaultMessage
	}

	total := req.Total()
	var b strings.Builder
	b.WriteString(message)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Colaborador: %s\n", strings.TrimSpace(req.Employee.Name))
	fmt.Fprintf(&b, "Itens: %d\n", len(req.Items))
	fmt.Fprintf(&b, "Total: %s (%s)\n", brl.Format(total), brl.AmountToWords(total))
	return b.String()
}
