package form

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/reembolso/internal/domain/entity"
)

func TestExport(t *testing.T) {
	req := entity.DefaultRequest()
	meta := []entity.AttachmentMeta{{Name: "nota.pdf", Size: 2048, Type: "application/pdf"}}

	out, err := Export(&req, meta)
	require.NoError(t, err)

	t.Run("uses saved-form keys", func(t *testing.T) {
		var generic map[string]any
		require.NoError(t, json.Unmarshal(out, &generic))
		for _, key := range []string{"empresa", "colab", "datas", "itens", "anexosMeta"} {
			assert.Contains(t, generic, key)
		}
		assert.Contains(t, string(out), "\n  \"empresa\"")
	})

	t.Run("round trips through Import", func(t *testing.T) {
		var loaded entity.Request
		require.NoError(t, Import(bytes.NewReader(out), &loaded))
		assert.Equal(t, req.Company, loaded.Company)
		assert.Equal(t, req.Employee, loaded.Employee)
		assert.Equal(t, req.Dates, loaded.Dates)
		assert.Equal(t, req.Total(), loaded.Total())
	})

	t.Run("empty request still has arrays", func(t *testing.T) {
		out, err := Export(&entity.Request{}, nil)
		require.NoError(t, err)
		assert.Contains(t, string(out), `"itens": []`)
		assert.Contains(t, string(out), `"anexosMeta": []`)
	})
}

func TestImport(t *testing.T) {
	t.Run("merges only present sections", func(t *testing.T) {
		req := entity.DefaultRequest()
		doc := `{"colab":{"nome":"MARIA","email":"maria@example.com"}}`

		require.NoError(t, Import(strings.NewReader(doc), &req))
		assert.Equal(t, "MARIA", req.Employee.Name)
		assert.Equal(t, "maria@example.com", req.Employee.Email)
		assert.Equal(t, entity.DefaultRequest().Company, req.Company)
		assert.Len(t, req.Items, 2)
	})

	t.Run("itens must be an array", func(t *testing.T) {
		req := entity.DefaultRequest()
		require.NoError(t, Import(strings.NewReader(`{"itens":{"valor":1}}`), &req))
		assert.Len(t, req.Items, 2)
	})

	t.Run("replaces items", func(t *testing.T) {
		req := entity.DefaultRequest()
		require.NoError(t, Import(strings.NewReader(`{"itens":[{"valor":"R$ 10,00"}]}`), &req))
		require.Len(t, req.Items, 1)
		assert.Equal(t, 10.0, req.Total())
	})

	t.Run("invalid json", func(t *testing.T) {
		req := entity.DefaultRequest()
		err := Import(strings.NewReader(`{not json`), &req)
		assert.ErrorIs(t, err, ErrInvalidDocument)
		assert.Equal(t, entity.DefaultRequest().Employee, req.Employee)
	})
}

func TestExportFilename(t *testing.T) {
	now := time.UnixMilli(1756684800123)
	assert.Equal(t, "solicitacao-reembolso-1756684800123.json", ExportFilename(now))
}
