package entity

import (
	"time"

	"github.com/garyjia/reembolso/pkg/brl"
)

// DateLayout is the wire format of every date in a request (HTML date inputs).
const DateLayout = "2006-01-02"

// Company is the paying company shown on the receipt.
type Company struct {
	Name    string `json:"nome"`
	CNPJ    string `json:"cnpj"`
	Address string `json:"endereco"`
}

// Employee is the person being reimbursed and the account to be credited.
type Employee struct {
	Name        string `json:"nome"`
	Email       string `json:"email"`
	Bank        string `json:"banco"`
	Branch      string `json:"agencia"`
	Account     string `json:"conta"`
	AccountType string `json:"tipoConta"`
}

// Dates holds receipt issue/due dates and the place of issue
type Dates struct {
	IssueDate string `json:"emissao"`
	DueDate   string `json:"vencimento"`
	Place     string `json:"local"`
}

// Item is a single reimbursable expense.
// Value keeps whatever the client sent; read it through Amount.
type Item struct {
	Date        string `json:"data"`
	Description string `json:"descricao"`
	CostCenter  string `json:"centro"`
	Value       any    `json:"valor"`
}

// Amount returns the normalized item value.
func (i Item) Amount() float64 {
	return brl.Normalize(i.Value)
}

// NewItem returns an empty item dated on the given day.
func NewItem(now time.Time) Item {
	return Item{Date: now.Format(DateLayout), Value: 0.0}
}

// AttachmentMeta describes an attachment without its content.
type AttachmentMeta struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Request is a complete reimbursement request as filled in the form.
type Request struct {
	Company         Company          `json:"empresa"`
	Employee        Employee         `json:"colab"`
	Dates           Dates            `json:"datas"`
	Items           []Item           `json:"itens"`
	AttachmentsMeta []AttachmentMeta `json:"anexosMeta,omitempty"`
}

// Total sums every item amount.
func (r *Request) Total() float64 {
	total := 0.0
	for _, it := range r.Items {
		total += it.Amount()
	}
	return total
}

// TotalInWords spells the total as reais and centavos.
func (r *Request) TotalInWords() string {
	return brl.AmountToWords(r.Total())
}

// AddItem appends an empty item dated now.
func (r *Request) AddItem(now time.Time) {
	r.Items = append(r.Items, NewItem(now))
}

// RemoveItem drops the item at idx. Out of range indexes are ignored.
func (r *Request) RemoveItem(idx int) {
	if idx < 0 || idx >= len(r.Items) {
		return
	}
	r.Items = append(r.Items[:idx], r.Items[idx+1:]...)
}

// DefaultRequest returns the request the form starts with.
func DefaultRequest() Request {
	return Request{
		Company: Company{
			Name:    "Companhia Brasileira de Energia Renovavel S/A",
			CNPJ:    "09.378.010/0005-63",
			Address: "Rod MT 100 - lado direito km 20 saindo de Alto Araguaia",
		},
		Employee: Employee{
			Name:        "ANTONIO MARCOS DA SILVA RIBEIRO",
			Bank:        "Banco do Brasil",
			Branch:      "0512-6",
			Account:     "20.948-1",
			AccountType: "Corrente",
		},
		Dates: Dates{
			IssueDate: "2025-08-31",
			DueDate:   "2025-09-09",
			Place:     "ALTO ARAGUAIA - MT",
		},
		Items: []Item{
			{Date: "2025-08-31", Description: "3 Almoços - Fazenda Graciosa", CostCenter: "Fazenda Graciosa", Value: 85.0},
			{Date: "2025-08-28", Description: "Selo mecânico 1 1/4\" - Fazenda Graciosa", CostCenter: "Fazenda Graciosa", Value: 92.0},
		},
	}
}

// FormatDate renders a YYYY-MM-DD date as dd/mm/yyyy. Unparsable input is
// returned unchanged.
func FormatDate(s string) string {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return s
	}
	return t.Format("02/01/2006")
}
