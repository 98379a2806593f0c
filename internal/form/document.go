// Package form saves and loads reimbursement requests as JSON documents.
package form

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/garyjia/reembolso/internal/domain/entity"
)

// ErrInvalidDocument is returned when an uploaded document is not valid JSON
var ErrInvalidDocument = errors.New("invalid request document")

// document mirrors the saved file. Sections are raw so that Import can tell
// a missing section from an empty one.
type document struct {
	Company         json.RawMessage `json:"empresa,omitempty"`
	Employee        json.RawMessage `json:"colab,omitempty"`
	Dates           json.RawMessage `json:"datas,omitempty"`
	Items           json.RawMessage `json:"itens,omitempty"`
	AttachmentsMeta json.RawMessage `json:"anexosMeta,omitempty"`
}

type exported struct {
	Company         entity.Company          `json:"empresa"`
	Employee        entity.Employee         `json:"colab"`
	Dates           entity.Dates            `json:"datas"`
	Items           []entity.Item           `json:"itens"`
	AttachmentsMeta []entity.AttachmentMeta `json:"anexosMeta"`
}

// Export renders req as an indented document. The attachment list only
// carries metadata.
func Export(req *entity.Request, attachments []entity.AttachmentMeta) ([]byte, error) {
	items := req.Items
	if items == nil {
		items = []entity.Item{}
	}
	if attachments == nil {
		attachments = []entity.AttachmentMeta{}
	}

	out, err := json.MarshalIndent(exported{
		Company:         req.Company,
		Employee:        req.Employee,
		Dates:           req.Dates,
		Items:           items,
		AttachmentsMeta: attachments,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return out, nil
}

// ExportFilename names a saved document after the save time.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("solicitacao-reembolso-%d.json", now.UnixMilli())
}

// Import merges the sections present in the document into req. Objects
// replace empresa, colab and datas; an array replaces itens. Sections of the
// wrong shape are ignored.
func Import(r io.Reader, req *entity.Request) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	var (
		company  entity.Company
		employee entity.Employee
		dates    entity.Dates
		items    []entity.Item
	)

	if isObject(doc.Company) && json.Unmarshal(doc.Company, &company) == nil {
		req.Company = company
	}
	if isObject(doc.Employee) && json.Unmarshal(doc.Employee, &employee) == nil {
		req.Employee = employee
	}
	if isObject(doc.Dates) && json.Unmarshal(doc.Dates, &dates) == nil {
		req.Dates = dates
	}
	if isArray(doc.Items) && json.Unmarshal(doc.Items, &items) == nil {
		req.Items = items
	}

	return nil
}

func isObject(raw json.RawMessage) bool {
	return firstByte(raw) == '{'
}

func isArray(raw json.RawMessage) bool {
	return firstByte(raw) == '['
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
