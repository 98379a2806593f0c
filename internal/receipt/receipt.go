// Package receipt builds the printable reimbursement receipt and renders it
// as PDF or XLSX.
package receipt

import (
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/reembolso/internal/domain/entity"
	"github.com/garyjia/reembolso/pkg/brl"
)

// Receipt labels
const (
	Title             = "RECIBO DE REEMBOLSO"
	Subtitle          = "Gerado automaticamente"
	PayerCaption      = "Recebi(emos) de"
	AmountCaption     = "A importância de"
	TotalCaption      = "Total Reembolso"
	EmployeeSignature = "Assinatura do Colaborador"
	ManagerSignature  = "Assinatura do Gestor Responsável"
	EmployeeCaption   = "Colaborador"
	DateColumn        = "Data"
	DescriptionColumn = "Descrição"
	CostCenterColumn  = "Centro de Custo"
	AmountColumn      = "Valor"
)

var (
	ErrRenderFailed  = errors.New("failed to render receipt")
	ErrUnreadablePDF = errors.New("unreadable PDF document")
)

// Line is one item row of the receipt table.
type Line struct {
	Date        string
	Description string
	CostCenter  string
	Value       float64
	Amount      string
}

// Receipt is the rendered view of a request, with every value already
// formatted for display.
type Receipt struct {
	Place     string
	IssueDate string
	DueDate   string

	Company      entity.Company
	EmployeeName string
	BankLine     string

	Total          float64
	TotalFormatted string
	TotalInWords   string

	Lines []Line
}

// Build turns a request into its receipt view.
func Build(req *entity.Request) *Receipt {
	total := req.Total()

	r := &Receipt{
		Place:          req.Dates.Place,
		IssueDate:      entity.FormatDate(req.Dates.IssueDate),
		DueDate:        entity.FormatDate(req.Dates.DueDate),
		Company:        req.Company,
		EmployeeName:   req.Employee.Name,
		BankLine:       BankLine(req.Employee),
		Total:          total,
		TotalFormatted: brl.Format(total),
		TotalInWords:   brl.AmountToWords(total),
		Lines:          make([]Line, 0, len(req.Items)),
	}

	for _, it := range req.Items {
		v := it.Amount()
		r.Lines = append(r.Lines, Line{
			Date:        entity.FormatDate(it.Date),
			Description: it.Description,
			CostCenter:  it.CostCenter,
			Value:       v,
			Amount:      brl.Format(v),
		})
	}

	return r
}

// BankLine renders the employee's account as shown under their name.
func BankLine(e entity.Employee) string {
	return fmt.Sprintf("%s • Ag. %s • Cc %s (%s)", e.Bank, e.Branch, e.Account, e.AccountType)
}

// Filename names a generated receipt PDF after the generation time.
func Filename(now time.Time) string {
	return fmt.Sprintf("recibo-%d.pdf", now.UnixMilli())
}
