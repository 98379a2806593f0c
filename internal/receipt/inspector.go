package receipt

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// PDFInfo summarizes a PDF document
type PDFInfo struct {
	Pages         int
	FirstPageText string
}

// Inspector opens PDF documents with mupdf to check they are readable
type Inspector struct {
	logger *zap.Logger
}

// NewInspector creates a new PDF inspector
func NewInspector(logger *zap.Logger) *Inspector {
	return &Inspector{logger: logger}
}

// Inspect opens content in memory and reports its page count and the text
// of the first page.
func (i *Inspector) Inspect(content []byte) (*PDFInfo, error) {
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadablePDF, err)
	}
	defer doc.Close()

	info := &PDFInfo{Pages: doc.NumPage()}
	if info.Pages == 0 {
		return nil, fmt.Errorf("%w: no pages", ErrUnreadablePDF)
	}

	text, err := doc.Text(0)
	if err != nil {
		i.logger.Debug("Failed to extract first page text", zap.Error(err))
	} else {
		info.FirstPageText = strings.TrimSpace(text)
	}

	return info, nil
}
