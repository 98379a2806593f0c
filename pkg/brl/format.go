package brl

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Symbol is the currency symbol every formatted amount carries.
const Symbol = "R$"

const nbsp = "\u00a0"

var (
	errNotLocalized = errors.New("brl: locale formatting unavailable")

	ptBR = message.NewPrinter(language.BrazilianPortuguese)

	// pt-BR digits: optional '.' grouping, ',' decimal, two fraction digits.
	localizedNumber = regexp.MustCompile(`^\d{1,3}(\.?\d{3})*,\d{2}$`)

	// localize is swapped in tests to exercise the manual path.
	localize = localizedFormat
)

// Format renders v as a pt-BR BRL string such as "R$ 1.234,56" (the
// separator after the symbol is a non-breaking space). Negative amounts are
// prefixed with '-' before the symbol. When locale data cannot produce a
// pt-BR rendering the manual form "R$ 1234,56" is used instead. The result
// always contains Symbol.
func Format(v any) string {
	n := Normalize(v)
	if s, err := localize(n); err == nil {
		return s
	}
	return formatManual(n)
}

func localizedFormat(n float64) (s string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errNotLocalized, r)
		}
	}()

	sym := strings.TrimSpace(ptBR.Sprint(currency.Symbol(currency.BRL)))
	if sym != Symbol {
		return "", errNotLocalized
	}

	digits := ptBR.Sprintf("%.2f", math.Abs(n))
	if !localizedNumber.MatchString(digits) {
		return "", errNotLocalized
	}

	return sign(n) + sym + nbsp + digits, nil
}

func formatManual(n float64) string {
	digits := strings.Replace(fmt.Sprintf("%.2f", math.Abs(n)), ".", ",", 1)
	return sign(n) + Symbol + " " + digits
}

// sign returns "-" for amounts that still read as negative at two decimals.
func sign(n float64) string {
	if n < 0 && math.Round(math.Abs(n)*100) > 0 {
		return "-"
	}
	return ""
}
