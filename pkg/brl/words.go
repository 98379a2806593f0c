package brl

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	units = [20]string{
		"", "um", "dois", "três", "quatro", "cinco", "seis", "sete", "oito", "nove",
		"dez", "onze", "doze", "treze", "catorze", "quinze", "dezesseis", "dezessete", "dezoito", "dezenove",
	}
	tens = [10]string{
		"", "dez", "vinte", "trinta", "quarenta", "cinquenta", "sessenta", "setenta", "oitenta", "noventa",
	}
	hundreds = [10]string{
		"", "cem", "duzentos", "trezentos", "quatrocentos", "quinhentos", "seiscentos", "setecentos", "oitocentos", "novecentos",
	}
)

type scale struct {
	singular, plural string
}

// Most significant first. The last entry is the plain units group.
var scales = [4]scale{
	{"bilhão", "bilhões"},
	{"milhão", "milhões"},
	{"mil", "mil"},
	{"", ""},
}

// NumberToWords spells n in Portuguese, e.g. 2000000 -> "dois milhões".
// Only the four lowest three-digit groups (up to the billions) are rendered.
func NumberToWords(n int64) string {
	if n == 0 {
		return "zero"
	}
	if n < 0 {
		// math.MinInt64 has no positive counterpart; its lowest groups are
		// what gets rendered anyway.
		if n == math.MinInt64 {
			n++
		}
		return "menos " + NumberToWords(-n)
	}

	var groups [4]int
	r := n
	for i := len(groups) - 1; i >= 0; i-- {
		groups[i] = int(r % 1000)
		r /= 1000
	}

	start := 0
	for start < len(groups)-1 && groups[start] == 0 {
		start++
	}

	parts := make([]string, 0, len(groups))
	for i := start; i < len(groups); i++ {
		g := groups[i]
		if g == 0 {
			continue
		}
		words := hundredsGroup(g)
		sc := scales[i]
		switch {
		case sc.singular == "":
			parts = append(parts, words)
		case g == 1:
			parts = append(parts, words+" "+sc.singular)
		default:
			parts = append(parts, words+" "+sc.plural)
		}
	}

	out := strings.Join(parts, " ")
	// "um mil" is written "mil"; "um milhão" keeps its article.
	if out == "um mil" || strings.HasPrefix(out, "um mil ") {
		out = strings.TrimPrefix(out, "um ")
	}
	return out
}

// hundredsGroup spells a value in [0,999]; 0 yields "".
func hundredsGroup(n int) string {
	if n == 0 {
		return ""
	}
	if n == 100 {
		return "cem"
	}
	c, d := n/100, n%100

	var head string
	switch {
	case c == 1:
		head = "cento"
	case c > 1:
		head = hundreds[c]
	}

	switch {
	case d == 0:
		return head
	case head == "":
		return tensGroup(d)
	default:
		return head + " e " + tensGroup(d)
	}
}

// tensGroup spells a value in [0,99].
func tensGroup(n int) string {
	if n < 20 {
		return units[n]
	}
	t, u := n/10, n%10
	if u == 0 {
		return tens[t]
	}
	return tens[t] + " e " + units[u]
}

// lowGroups bounds the part of the whole amount that gets spelled: the four
// lowest three-digit groups.
var lowGroups = decimal.New(1, 12)

// AmountToWords spells a monetary amount as reais and centavos, e.g.
// 1.01 -> "um real e um centavo". Zero yields "zero real".
func AmountToWords(v any) string {
	// Rounds the exact binary value to cents, half away from zero, so 1.005
	// (stored as 1.00499...) reads "um real".
	amount := decimal.NewFromFloatWithExponent(Normalize(v), -2)

	prefix := ""
	if amount.IsNegative() {
		prefix = "menos "
		amount = amount.Abs()
	}

	whole := amount.Truncate(0)
	cents := amount.Sub(whole).Shift(2).IntPart()

	var reaisText, centsText string
	if whole.IsPositive() {
		unit := "reais"
		if whole.Equal(decimal.NewFromInt(1)) {
			unit = "real"
		}
		reaisText = NumberToWords(whole.Mod(lowGroups).IntPart()) + " " + unit
	}
	if cents != 0 {
		centsText = NumberToWords(cents) + " " + pluralize(cents, "centavo", "centavos")
	}

	switch {
	case reaisText != "" && centsText != "":
		return prefix + reaisText + " e " + centsText
	case reaisText != "":
		return prefix + reaisText
	case centsText != "":
		return prefix + centsText
	default:
		return "zero real"
	}
}

func pluralize(n int64, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
