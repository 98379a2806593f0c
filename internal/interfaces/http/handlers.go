package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/reembolso/internal/application/port"
	"github.com/garyjia/reembolso/internal/application/service"
	"github.com/garyjia/reembolso/internal/domain/entity"
	"github.com/garyjia/reembolso/internal/form"
	"github.com/garyjia/reembolso/internal/receipt"
	"github.com/garyjia/reembolso/pkg/brl"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeJSON = "application/json; charset=utf-8"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	submissions service.SubmissionService
	renderers   Renderers
	logger      Logger

	now func() time.Time
}

// NewHandlers creates a new Handlers instance
func NewHandlers(submissions service.SubmissionService, renderers Renderers, logger Logger) *Handlers {
	return &Handlers{
		submissions: submissions,
		renderers:   renderers,
		logger:      logger,
		now:         time.Now,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// RequestView is a request together with its computed totals
type RequestView struct {
	Request        entity.Request `json:"request"`
	Total          float64        `json:"total"`
	TotalFormatted string         `json:"total_formatted"`
	TotalInWords   string         `json:"total_in_words"`
}

// SubmissionResponse is the public view of a submission
type SubmissionResponse struct {
	ID              string   `json:"id"`
	Status          string   `json:"status"`
	Attempts        int      `json:"attempts"`
	Error           string   `json:"error,omitempty"`
	To              []string `json:"to"`
	Cc              []string `json:"cc,omitempty"`
	Subject         string   `json:"subject"`
	Total           float64  `json:"total"`
	TotalFormatted  string   `json:"total_formatted"`
	AttachmentCount int      `json:"attachment_count"`
	CreatedAt       string   `json:"created_at"`
	SentAt          *string  `json:"sent_at,omitempty"`
}

// AmountRequest carries a raw value as typed in the form
type AmountRequest struct {
	Value any `json:"value"`
}

// AmountResponse shows how a raw value is read and displayed
type AmountResponse struct {
	Value      any     `json:"value"`
	Normalized float64 `json:"normalized"`
	Formatted  string  `json:"formatted"`
	Words      string  `json:"words,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: h.now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// Defaults handles GET /api/reimbursement/defaults
func (h *Handlers) Defaults(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    newRequestView(entity.DefaultRequest()),
	})
}

// Submit handles POST /api/reimbursement/submit
func (h *Handlers) Submit(c *gin.Context) {
	var in service.SubmitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.bindError(c, err)
		return
	}

	result, err := h.submissions.Submit(c.Request.Context(), &in)
	if err != nil {
		status := submitErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to submit reimbursement", "error", err)
			fail(c, status, "failed to submit reimbursement")
			return
		}
		fail(c, status, err.Error())
		return
	}

	c.JSON(http.StatusAccepted, Response{Success: true, Data: result})
}

func submitErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrNoRecipients),
		errors.Is(err, service.ErrInvalidAddress),
		errors.Is(err, service.ErrInvalidAttachment):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrAttachmentsTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// GetSubmission handles GET /api/reimbursement/submissions/:id
func (h *Handlers) GetSubmission(c *gin.Context) {
	id := c.Param("id")

	s, err := h.submissions.Get(c.Request.Context(), id)
	if errors.Is(err, entity.ErrSubmissionNotFound) {
		fail(c, http.StatusNotFound, "submission not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to get submission", "id", id, "error", err)
		fail(c, http.StatusInternalServerError, "failed to retrieve submission")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: toSubmissionResponse(s)})
}

// ReceiptPDF handles POST /api/reimbursement/receipt
func (h *Handlers) ReceiptPDF(c *gin.Context) {
	h.renderReceipt(c, h.renderers.PDF, contentTypePDF, receipt.Filename(h.now()))
}

// ReceiptXLSX handles POST /api/reimbursement/receipt.xlsx
func (h *Handlers) ReceiptXLSX(c *gin.Context) {
	name := strings.TrimSuffix(receipt.Filename(h.now()), ".pdf") + ".xlsx"
	h.renderReceipt(c, h.renderers.XLSX, contentTypeXLSX, name)
}

func (h *Handlers) renderReceipt(c *gin.Context, renderer port.ReceiptRenderer, contentType, filename string) {
	var req entity.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	out, err := renderer.Render(receipt.Build(&req))
	if err != nil {
		h.logger.Error("Failed to render receipt", "content_type", contentType, "error", err)
		fail(c, http.StatusInternalServerError, "failed to render receipt")
		return
	}

	attachment(c, filename)
	c.Data(http.StatusOK, contentType, out)
}

// Export handles POST /api/reimbursement/export
func (h *Handlers) Export(c *gin.Context) {
	var req entity.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	out, err := form.Export(&req, req.AttachmentsMeta)
	if err != nil {
		h.logger.Error("Failed to export request", "error", err)
		fail(c, http.StatusInternalServerError, "failed to export request")
		return
	}

	attachment(c, form.ExportFilename(h.now()))
	c.Data(http.StatusOK, contentTypeJSON, out)
}

// Import handles POST /api/reimbursement/import. The document is either the
// raw body or a multipart "file" field; it is merged over the defaults.
func (h *Handlers) Import(c *gin.Context) {
	var r io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			fail(c, http.StatusBadRequest, "missing file field")
			return
		}
		f, err := fh.Open()
		if err != nil {
			fail(c, http.StatusBadRequest, "unreadable file")
			return
		}
		defer f.Close()
		r = f
	}

	req := entity.DefaultRequest()
	if err := form.Import(r, &req); err != nil {
		if errors.Is(err, form.ErrInvalidDocument) {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		h.bindError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: newRequestView(req)})
}

// FormatAmount handles POST /api/brl/format
func (h *Handlers) FormatAmount(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: AmountResponse{
			Value:      req.Value,
			Normalized: brl.Normalize(req.Value),
			Formatted:  brl.Format(req.Value),
		},
	})
}

// AmountInWords handles POST /api/brl/words
func (h *Handlers) AmountInWords(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: AmountResponse{
			Value:      req.Value,
			Normalized: brl.Normalize(req.Value),
			Formatted:  brl.Format(req.Value),
			Words:      brl.AmountToWords(req.Value),
		},
	})
}

func (h *Handlers) bindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		fail(c, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	h.logger.Info("Invalid request body", "path", c.FullPath(), "error", err)
	fail(c, http.StatusBadRequest, "invalid request body")
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{Success: false, Error: msg})
}

func attachment(c *gin.Context, filename string) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}

func newRequestView(req entity.Request) RequestView {
	total := req.Total()
	return RequestView{
		Request:        req,
		Total:          total,
		TotalFormatted: brl.Format(total),
		TotalInWords:   brl.AmountToWords(total),
	}
}

func toSubmissionResponse(s *entity.Submission) SubmissionResponse {
	resp := SubmissionResponse{
		ID:              s.PublicID,
		Status:          s.Status,
		Attempts:        s.Attempts,
		Error:           s.ErrorMessage,
		To:              s.To,
		Cc:              s.Cc,
		Subject:         s.Subject,
		Total:           s.Total,
		TotalFormatted:  brl.Format(s.Total),
		AttachmentCount: s.AttachmentCount,
		CreatedAt:       s.CreatedAt.UTC().Format(time.RFC3339),
	}
	if s.SentAt != nil {
		sent := s.SentAt.UTC().Format(time.RFC3339)
		resp.SentAt = &sent
	}
	return resp
}
