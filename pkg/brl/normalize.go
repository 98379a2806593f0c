// Package brl parses, formats and spells out Brazilian real amounts.
//
// Every function is pure and safe for concurrent use. Input coming from
// user-editable fields is treated as untrusted: anything that cannot be read
// as an amount degrades to zero instead of returning an error.
package brl

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// colorFunc matches CSS color functions that leak into numeric fields when
// styled text is pasted into the form.
var colorFunc = regexp.MustCompile(`(?i)oklch\s*\(`)

// Normalize converts an arbitrary value into a finite amount.
//
// Numbers are returned as-is when finite. Strings are read in pt-BR notation
// ("R$ 1.234,56"). Everything else, including nil, maps, slices and funcs,
// yields 0. Normalize never panics.
func Normalize(v any) (n float64) {
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()

	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case json.Number:
		f, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return 0
		}
		return finite(f)
	case string:
		return parseText(x)
	default:
		return 0
	}
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func parseText(s string) float64 {
	if colorFunc.MatchString(s) {
		return 0
	}
	if !strings.ContainsAny(s, "0123456789") {
		return 0
	}

	cleaned := keepAmountChars(s)
	cleaned = dropThousandsDots(cleaned)
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return finite(f)
}

// keepAmountChars strips everything except digits, separators and signs.
func keepAmountChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isDigit(c) || c == ',' || c == '.' || c == '+' || c == '-' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// dropThousandsDots removes every '.' followed by exactly three digits and
// then a non-digit or the end of input. The lookahead does not consume, so
// "1.234.567" loses both dots. A value such as "12.345" is read as 12345;
// that ambiguity is part of the accepted input grammar.
func dropThousandsDots(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '.' && groupFollows(s, i+1) {
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func groupFollows(s string, at int) bool {
	if at+3 > len(s) {
		return false
	}
	for j := at; j < at+3; j++ {
		if !isDigit(s[j]) {
			return false
		}
	}
	return at+3 == len(s) || !isDigit(s[at+3])
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
