package receipt

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"
)

const (
	fontFamily = "Helvetica"
	margin     = 40.0
)

// PDFRenderer draws receipts on a single A4 portrait page
type PDFRenderer struct {
	creator string
	logger  *zap.Logger
}

// NewPDFRenderer creates a new PDF renderer
func NewPDFRenderer(creator string, logger *zap.Logger) *PDFRenderer {
	return &PDFRenderer{
		creator: creator,
		logger:  logger,
	}
}

// Render returns the receipt as PDF bytes
func (p *PDFRenderer) Render(r *Receipt) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle(Title, true)
	pdf.SetCreator(p.creator, true)

	// Core fonts are cp1252; accents and the bank line bullet need translating.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pageW, _ := pdf.GetPageSize()
	width := pageW - 2*margin

	p.drawHeader(pdf, r, width, tr)
	p.drawParties(pdf, r, width, tr)
	p.drawAmount(pdf, r, width, tr)
	p.drawItems(pdf, r, width, tr)
	p.drawSignatures(pdf, width, tr)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		p.logger.Error("Failed to render receipt PDF", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	p.logger.Debug("Receipt PDF rendered",
		zap.Int("items", len(r.Lines)),
		zap.Int("size", buf.Len()))

	return buf.Bytes(), nil
}

func (p *PDFRenderer) drawHeader(pdf *fpdf.Fpdf, r *Receipt, width float64, tr func(string) string) {
	half := width / 2
	top := pdf.GetY()

	pdf.SetFont(fontFamily, "B", 16)
	pdf.CellFormat(half, 20, tr(Title), "", 2, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 9)
	pdf.SetTextColor(100, 116, 139)
	pdf.CellFormat(half, 12, tr(Subtitle), "", 0, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)

	pdf.SetXY(margin+half, top)
	for _, row := range [][2]string{
		{"Local:", r.Place},
		{"Data:", r.IssueDate},
		{"Vencimento:", r.DueDate},
	} {
		pdf.SetX(margin + half)
		pdf.SetFont(fontFamily, "B", 9)
		label := tr(row[0]) + " "
		lw := pdf.GetStringWidth(label)
		pdf.SetFont(fontFamily, "", 9)
		vw := pdf.GetStringWidth(tr(row[1]))
		pdf.SetX(margin + width - lw - vw)
		pdf.SetFont(fontFamily, "B", 9)
		pdf.CellFormat(lw, 12, label, "", 0, "L", false, 0, "")
		pdf.SetFont(fontFamily, "", 9)
		pdf.CellFormat(vw, 12, tr(row[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(14)
}

func (p *PDFRenderer) drawParties(pdf *fpdf.Fpdf, r *Receipt, width float64, tr func(string) string) {
	left := width * 2 / 3
	right := width - left
	top := pdf.GetY()

	pdf.SetFont(fontFamily, "B", 10)
	pdf.CellFormat(left, 14, tr(PayerCaption), "", 2, "L", false, 0, "")
	for _, row := range [][2]string{
		{"Empresa: ", r.Company.Name},
		{"CNPJ: ", r.Company.CNPJ},
		{"Endereço: ", r.Company.Address},
	} {
		pdf.SetFont(fontFamily, "B", 9)
		lw := pdf.GetStringWidth(tr(row[0]))
		pdf.CellFormat(lw, 12, tr(row[0]), "", 0, "L", false, 0, "")
		pdf.SetFont(fontFamily, "", 9)
		pdf.CellFormat(left-lw, 12, tr(row[1]), "", 1, "L", false, 0, "")
	}
	bottom := pdf.GetY()

	pdf.SetXY(margin+left, top)
	pdf.SetFont(fontFamily, "B", 10)
	pdf.CellFormat(right, 14, tr(EmployeeCaption), "", 2, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 9)
	pdf.MultiCell(right, 12, tr(r.EmployeeName), "", "L", false)
	pdf.SetX(margin + left)
	pdf.SetFont(fontFamily, "", 7)
	pdf.MultiCell(right, 10, tr(r.BankLine), "", "L", false)
	if pdf.GetY() > bottom {
		bottom = pdf.GetY()
	}

	pdf.Rect(margin, top-4, width, bottom-top+8, "D")
	pdf.SetXY(margin, bottom+14)
}

func (p *PDFRenderer) drawAmount(pdf *fpdf.Fpdf, r *Receipt, width float64, tr func(string) string) {
	top := pdf.GetY()

	pdf.SetFont(fontFamily, "B", 10)
	pdf.CellFormat(width, 14, tr(AmountCaption), "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "B", 14)
	pdf.CellFormat(width, 18, tr(r.TotalFormatted), "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 8)
	pdf.MultiCell(width, 11, tr("("+r.TotalInWords+")"), "", "L", false)

	bottom := pdf.GetY()
	pdf.Rect(margin, top-4, width, bottom-top+8, "D")
	pdf.SetXY(margin, bottom+14)
}

func (p *PDFRenderer) drawItems(pdf *fpdf.Fpdf, r *Receipt, width float64, tr func(string) string) {
	cols := []float64{width * 0.14, width * 0.44, width * 0.24, width * 0.18}
	const rowH = 16.0

	pdf.SetFont(fontFamily, "B", 9)
	pdf.SetFillColor(241, 245, 249)
	for i, h := range []string{DateColumn, DescriptionColumn, CostCenterColumn, AmountColumn} {
		align := "L"
		if i == 3 {
			align = "R"
		}
		pdf.CellFormat(cols[i], rowH, tr(h), "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(fontFamily, "", 9)
	for _, l := range r.Lines {
		pdf.CellFormat(cols[0], rowH, tr(l.Date), "1", 0, "L", false, 0, "")
		pdf.CellFormat(cols[1], rowH, fit(pdf, tr(l.Description), cols[1]-4), "1", 0, "L", false, 0, "")
		pdf.CellFormat(cols[2], rowH, fit(pdf, tr(l.CostCenter), cols[2]-4), "1", 0, "L", false, 0, "")
		pdf.CellFormat(cols[3], rowH, tr(l.Amount), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont(fontFamily, "B", 9)
	pdf.CellFormat(cols[0]+cols[1]+cols[2], rowH, tr(TotalCaption), "1", 0, "R", false, 0, "")
	pdf.CellFormat(cols[3], rowH, tr(r.TotalFormatted), "1", 1, "R", false, 0, "")
}

func (p *PDFRenderer) drawSignatures(pdf *fpdf.Fpdf, width float64, tr func(string) string) {
	const gap = 24.0
	col := (width - gap) / 2

	pdf.Ln(56)
	y := pdf.GetY()
	pdf.Line(margin, y, margin+col, y)
	pdf.Line(margin+col+gap, y, margin+width, y)

	pdf.SetFont(fontFamily, "", 9)
	pdf.SetXY(margin, y+4)
	pdf.CellFormat(col, 12, tr(EmployeeSignature), "", 0, "C", false, 0, "")
	pdf.SetX(margin + col + gap)
	pdf.CellFormat(col, 12, tr(ManagerSignature), "", 1, "C", false, 0, "")
}

// fit shortens translated text until it fits in a cell of width w.
func fit(pdf *fpdf.Fpdf, s string, w float64) string {
	if pdf.GetStringWidth(s) <= w {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > w {
		s = s[:len(s)-1]
	}
	return s + "..."
}
