package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/reembolso/internal/application/service"
	"github.com/garyjia/reembolso/internal/domain/entity"
	"github.com/garyjia/reembolso/internal/receipt"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type mockSubmissionService struct {
	lastInput *service.SubmitInput
	submitErr error
	stored    map[string]*entity.Submission
}

func (m *mockSubmissionService) Submit(ctx context.Context, in *service.SubmitInput) (*service.SubmitResult, error) {
	m.lastInput = in
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return &service.SubmitResult{ID: "pub-1", Status: entity.SubmissionStatusPending, Total: in.Meta.Total()}, nil
}

func (m *mockSubmissionService) Get(ctx context.Context, publicID string) (*entity.Submission, error) {
	if s, ok := m.stored[publicID]; ok {
		return s, nil
	}
	return nil, entity.ErrSubmissionNotFound
}

func newTestServer(t *testing.T, svc *mockSubmissionService, cfg ServerConfig) *Server {
	t.Helper()
	logger := zap.NewNop()
	s := NewServer(cfg, svc, Renderers{
		PDF:  receipt.NewPDFRenderer("reembolso-test", logger),
		XLSX: receipt.NewExcelRenderer(logger),
	}, nopLogger{})
	s.handlers.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s
}

func do(s *Server, method, path string, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) (Response, map[string]interface{}) {
	t.Helper()
	var raw struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
		Error   string                 `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	return Response{Success: raw.Success, Error: raw.Error}, raw.Data
}

func defaultBody(t *testing.T) string {
	t.Helper()
	out, err := json.Marshal(entity.DefaultRequest())
	require.NoError(t, err)
	return string(out)
}

func TestHealthAndDefaults(t *testing.T) {
	s := newTestServer(t, &mockSubmissionService{}, DefaultServerConfig())

	w := do(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	resp, data := decode(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "healthy", data["status"])

	w = do(s, http.MethodGet, "/api/reimbursement/defaults", "")
	assert.Equal(t, http.StatusOK, w.Code)
	_, data = decode(t, w)
	assert.Equal(t, 177.0, data["total"])
	assert.Equal(t, "cento e setenta e sete reais", data["total_in_words"])
}

func TestSubmit(t *testing.T) {
	svc := &mockSubmissionService{}
	s := newTestServer(t, svc, DefaultServerConfig())

	body := `{"to":"contaspagar@comber.com.br","cc":[],"subject":"","message":"Prezados",
		"meta":{"colab":{"nome":"ANTONIO"},"itens":[{"valor":"1.234,56"},{"valor":10}]},
		"attachments":[{"filename":"nota.png","content":"aGVsbG8=","contentType":"image/png"}]}`

	w := do(s, http.MethodPost, "/api/reimbursement/submit", body)
	assert.Equal(t, http.StatusAccepted, w.Code)
	resp, data := decode(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "pub-1", data["id"])
	assert.InDelta(t, 1244.56, data["total"], 1e-9)

	require.NotNil(t, svc.lastInput)
	assert.Equal(t, service.AddressList{"contaspagar@comber.com.br"}, svc.lastInput.To)
	assert.Equal(t, "ANTONIO", svc.lastInput.Meta.Employee.Name)
	require.Len(t, svc.lastInput.Attachments, 1)
	assert.Equal(t, "nota.png", svc.lastInput.Attachments[0].Filename)
}

func TestSubmit_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		body       string
		wantStatus int
		wantError  string
	}{
		{"malformed json", nil, `{"to":`, http.StatusBadRequest, "invalid request body"},
		{"no recipients", service.ErrNoRecipients, `{}`, http.StatusBadRequest, service.ErrNoRecipients.Error()},
		{"bad attachment", service.ErrInvalidAttachment, `{}`, http.StatusBadRequest, service.ErrInvalidAttachment.Error()},
		{"too large", service.ErrAttachmentsTooLarge, `{}`, http.StatusRequestEntityTooLarge, service.ErrAttachmentsTooLarge.Error()},
		{"internal", errors.New("database is locked"), `{}`, http.StatusInternalServerError, "failed to submit reimbursement"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &mockSubmissionService{submitErr: tt.err}, DefaultServerConfig())
			w := do(s, http.MethodPost, "/api/reimbursement/submit", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			resp, _ := decode(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantError, resp.Error)
		})
	}
}

func TestGetSubmission(t *testing.T) {
	sentAt := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	svc := &mockSubmissionService{stored: map[string]*entity.Submission{
		"pub-1": {
			PublicID:        "pub-1",
			Status:          entity.SubmissionStatusSent,
			Attempts:        1,
			To:              []string{"contaspagar@comber.com.br"},
			Total:           177,
			AttachmentCount: 2,
			SentAt:          &sentAt,
		},
	}}
	s := newTestServer(t, svc, DefaultServerConfig())

	w := do(s, http.MethodGet, "/api/reimbursement/submissions/pub-1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	_, data := decode(t, w)
	assert.Equal(t, "SENT", data["status"])
	assert.Equal(t, "2025-09-01T10:00:00Z", data["sent_at"])
	assert.True(t, strings.HasSuffix(data["total_formatted"].(string), "177,00"))

	w = do(s, http.MethodGet, "/api/reimbursement/submissions/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReceiptDownloads(t *testing.T) {
	s := newTestServer(t, &mockSubmissionService{}, DefaultServerConfig())

	t.Run("pdf", func(t *testing.T) {
		w := do(s, http.MethodPost, "/api/reimbursement/receipt", defaultBody(t))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, contentTypePDF, w.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="recibo-1700000000000.pdf"`, w.Header().Get("Content-Disposition"))
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
	})

	t.Run("xlsx", func(t *testing.T) {
		w := do(s, http.MethodPost, "/api/reimbursement/receipt.xlsx", defaultBody(t))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, contentTypeXLSX, w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "recibo-1700000000000.xlsx")
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
	})

	t.Run("invalid body", func(t *testing.T) {
		w := do(s, http.MethodPost, "/api/reimbursement/receipt", `[]`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestExportImport(t *testing.T) {
	s := newTestServer(t, &mockSubmissionService{}, DefaultServerConfig())

	w := do(s, http.MethodPost, "/api/reimbursement/export", defaultBody(t))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "solicitacao-reembolso-1700000000000.json")
	assert.Contains(t, w.Body.String(), `"anexosMeta": []`)

	t.Run("raw body", func(t *testing.T) {
		w := do(s, http.MethodPost, "/api/reimbursement/import", `{"colab":{"nome":"MARIA"},"itens":[{"valor":"10,50"}]}`)
		require.Equal(t, http.StatusOK, w.Code)
		_, data := decode(t, w)
		assert.Equal(t, 10.5, data["total"])
		req := data["request"].(map[string]interface{})
		assert.Equal(t, "MARIA", req["colab"].(map[string]interface{})["nome"])
		assert.Equal(t, "ALTO ARAGUAIA - MT", req["datas"].(map[string]interface{})["local"])
	})

	t.Run("multipart", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "solicitacao.json")
		require.NoError(t, err)
		_, err = fw.Write(w.Body.Bytes())
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/reimbursement/import", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		_, data := decode(t, rec)
		assert.Equal(t, 177.0, data["total"])
	})

	t.Run("invalid document", func(t *testing.T) {
		w := do(s, http.MethodPost, "/api/reimbursement/import", `not json`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAmountEndpoints(t *testing.T) {
	s := newTestServer(t, &mockSubmissionService{}, DefaultServerConfig())

	w := do(s, http.MethodPost, "/api/brl/format", `{"value":"R$ 1.234,56"}`)
	require.Equal(t, http.StatusOK, w.Code)
	_, data := decode(t, w)
	assert.Equal(t, 1234.56, data["normalized"])
	assert.True(t, strings.HasSuffix(data["formatted"].(string), "1.234,56"))
	assert.NotContains(t, data, "words")

	w = do(s, http.MethodPost, "/api/brl/words", `{"value":177}`)
	require.Equal(t, http.StatusOK, w.Code)
	_, data = decode(t, w)
	assert.Equal(t, "cento e setenta e sete reais", data["words"])

	w = do(s, http.MethodPost, "/api/brl/words", `{"value":{"amount":10}}`)
	require.Equal(t, http.StatusOK, w.Code)
	_, data = decode(t, w)
	assert.Equal(t, 0.0, data["normalized"])
	assert.Equal(t, "zero real", data["words"])
}

func TestMiddleware(t *testing.T) {
	t.Run("body limit", func(t *testing.T) {
		cfg := DefaultServerConfig()
		cfg.MaxBodyBytes = 16
		s := newTestServer(t, &mockSubmissionService{}, cfg)

		w := do(s, http.MethodPost, "/api/reimbursement/submit", `{"to":"`+strings.Repeat("a", 64)+`"}`)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("cors preflight", func(t *testing.T) {
		s := newTestServer(t, &mockSubmissionService{}, DefaultServerConfig())

		w := do(s, http.MethodOptions, "/api/reimbursement/submit", "",
			"Origin", "http://localhost:5173",
			"Access-Control-Request-Method", "POST")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("cors allow list", func(t *testing.T) {
		cfg := DefaultServerConfig()
		cfg.AllowedOrigins = []string{"https://reembolso.example.com"}
		s := newTestServer(t, &mockSubmissionService{}, cfg)

		w := do(s, http.MethodGet, "/health", "", "Origin", "https://evil.example.com")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
