package receipt

import (
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// SheetName is the name of the only worksheet of an exported receipt.
const SheetName = "Recibo"

// first row of the item table (header row)
const itemsHeaderRow = 14

var brlNumFmt = `"R$" #,##0.00;-"R$" #,##0.00`

// ExcelRenderer exports receipts as XLSX workbooks
type ExcelRenderer struct {
	logger *zap.Logger
}

// NewExcelRenderer creates a new Excel renderer
func NewExcelRenderer(logger *zap.Logger) *ExcelRenderer {
	return &ExcelRenderer{logger: logger}
}

// Render returns the receipt as an XLSX workbook
func (e *ExcelRenderer) Render(r *Receipt) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	styles, err := e.newStyles(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	// Fill header block
	e.setCell(f, "A1", Title)
	e.setCell(f, "A2", Subtitle)
	e.setCell(f, "C1", "Local:")
	e.setCell(f, "D1", r.Place)
	e.setCell(f, "C2", "Data:")
	e.setCell(f, "D2", r.IssueDate)
	e.setCell(f, "C3", "Vencimento:")
	e.setCell(f, "D3", r.DueDate)

	// Fill parties
	e.setCell(f, "A5", PayerCaption)
	e.setCell(f, "A6", "Empresa:")
	e.setCell(f, "B6", r.Company.Name)
	e.setCell(f, "A7", "CNPJ:")
	e.setCell(f, "B7", r.Company.CNPJ)
	e.setCell(f, "A8", "Endereço:")
	e.setCell(f, "B8", r.Company.Address)
	e.setCell(f, "A9", EmployeeCaption)
	e.setCell(f, "B9", r.EmployeeName)
	e.setCell(f, "B10", r.BankLine)

	// Fill amount
	e.setCell(f, "A11", AmountCaption)
	e.setCell(f, "B11", r.Total)
	e.setCell(f, "B12", "("+r.TotalInWords+")")

	// Fill item table
	for i, h := range []string{DateColumn, DescriptionColumn, CostCenterColumn, AmountColumn} {
		cell, _ := excelize.CoordinatesToCellName(i+1, itemsHeaderRow)
		e.setCell(f, cell, h)
	}
	row := itemsHeaderRow + 1
	for _, l := range r.Lines {
		e.setCell(f, cellName(1, row), l.Date)
		e.setCell(f, cellName(2, row), l.Description)
		e.setCell(f, cellName(3, row), l.CostCenter)
		e.setCell(f, cellName(4, row), l.Value)
		row++
	}
	e.setCell(f, cellName(3, row), TotalCaption)
	e.setCell(f, cellName(4, row), r.Total)

	e.applyStyle(f, "A1", "A1", styles.title)
	e.applyStyle(f, "B11", "B11", styles.money)
	e.applyStyle(f, cellName(1, itemsHeaderRow), cellName(4, itemsHeaderRow), styles.header)
	e.applyStyle(f, cellName(4, itemsHeaderRow+1), cellName(4, row), styles.money)
	e.applyStyle(f, cellName(3, row), cellName(3, row), styles.bold)

	for col, width := range map[string]float64{"A": 14, "B": 48, "C": 24, "D": 18} {
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			e.logger.Warn("Failed to set column width", zap.String("col", col), zap.Error(err))
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		e.logger.Error("Failed to write receipt workbook", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	return buf.Bytes(), nil
}

type excelStyles struct {
	title, header, bold, money int
}

func (e *ExcelRenderer) newStyles(f *excelize.File) (excelStyles, error) {
	var s excelStyles
	var err error

	if s.title, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}); err != nil {
		return s, err
	}
	if s.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"F1F5F9"}},
	}); err != nil {
		return s, err
	}
	if s.bold, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return s, err
	}
	if s.money, err = f.NewStyle(&excelize.Style{CustomNumFmt: &brlNumFmt}); err != nil {
		return s, err
	}
	return s, nil
}

// setCell sets a cell value in the receipt sheet
func (e *ExcelRenderer) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(SheetName, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}

func (e *ExcelRenderer) applyStyle(f *excelize.File, from, to string, style int) {
	if err := f.SetCellStyle(SheetName, from, to, style); err != nil {
		e.logger.Warn("Failed to set cell style",
			zap.String("from", from),
			zap.String("to", to),
			zap.Error(err))
	}
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
