package brl

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  float64
	}{
		{name: "finite float", input: 85.0, want: 85},
		{name: "negative float", input: -12.5, want: -12.5},
		{name: "int", input: 92, want: 92},
		{name: "uint8", input: uint8(7), want: 7},
		{name: "json number", input: json.Number("12.5"), want: 12.5},
		{name: "bad json number", input: json.Number("x"), want: 0},
		{name: "NaN", input: math.NaN(), want: 0},
		{name: "infinity", input: math.Inf(1), want: 0},
		{name: "nil", input: nil, want: 0},
		{name: "map", input: map[string]any{}, want: 0},
		{name: "slice", input: []any{1, 2}, want: 0},
		{name: "func", input: func() {}, want: 0},
		{name: "bool", input: true, want: 0},
		{name: "struct", input: struct{ V int }{V: 3}, want: 0},
		{name: "pt-BR with thousands", input: "1.234,56", want: 1234.56},
		{name: "nbsp after symbol", input: "R$\u00a01.234,56", want: 1234.56},
		{name: "simple with symbol", input: "R$ 12,34", want: 12.34},
		{name: "no digits", input: "abc", want: 0},
		{name: "empty string", input: "", want: 0},
		{name: "color function", input: "oklch(0.5 0.2 200)", want: 0},
		{name: "color function spaced upper", input: "OKLCH  (1 2 3)", want: 0},
		{name: "color function embedded", input: "12 oklch(1 2 3)", want: 0},
		{name: "several thousands groups", input: "1.234.567,89", want: 1234567.89},
		{name: "dot decimal kept", input: "12.5", want: 12.5},
		{name: "dot with four digits kept", input: "1.2345", want: 1.2345},
		{name: "three fraction digits read as thousands", input: "12.345", want: 12345},
		{name: "plus sign", input: "+10", want: 10},
		{name: "minus sign", input: "-R$ 5,00", want: -5},
		{name: "two decimal separators", input: "1,2,3", want: 0},
		{name: "sign in the middle", input: "1-2", want: 0},
		{name: "leading comma", input: ",5", want: 0.5},
		{name: "huge overflows", input: strings.Repeat("9", 400), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Normalize(tt.input), 1e-9)
		})
	}
}

func TestNormalize_FiniteNumbersAreIdentity(t *testing.T) {
	for _, n := range []float64{0, 1, -1, 0.01, 177, 1234.56, -98765.4321, math.MaxFloat64, math.SmallestNonzeroFloat64} {
		assert.Equal(t, n, Normalize(n))
	}
}

func TestFormat(t *testing.T) {
	t.Run("contains symbol and pt-BR digits", func(t *testing.T) {
		got := Format(123.45)
		assert.Contains(t, got, Symbol)
		assert.Contains(t, got, "123,45")
	})

	t.Run("garbage degrades to zero", func(t *testing.T) {
		got := Format("oklch(1 2 3)")
		assert.Contains(t, got, Symbol)
		assert.Contains(t, got, "0,00")
	})

	t.Run("string input", func(t *testing.T) {
		got := Format("R$ 1.234,56")
		assert.True(t, strings.HasPrefix(got, Symbol))
		assert.True(t, strings.HasSuffix(got, "234,56"))
	})

	t.Run("negative puts sign before symbol", func(t *testing.T) {
		got := Format(-12.34)
		assert.True(t, strings.HasPrefix(got, "-"+Symbol), got)
		assert.True(t, strings.HasSuffix(got, "12,34"), got)
	})

	t.Run("rounds to cents", func(t *testing.T) {
		assert.True(t, strings.HasSuffix(Format(177), "177,00"))
		assert.True(t, strings.HasSuffix(Format(0.005), "0,01") || strings.HasSuffix(Format(0.005), "0,00"))
	})

	t.Run("tiny negative has no sign", func(t *testing.T) {
		assert.False(t, strings.HasPrefix(Format(-0.001), "-"))
	})
}

func TestFormat_ManualFallback(t *testing.T) {
	original := localize
	localize = func(float64) (string, error) { return "", errors.New("no locale data") }
	t.Cleanup(func() { localize = original })

	assert.Equal(t, "R$ 123,45", Format(123.45))
	assert.Equal(t, "R$ 1234,56", Format("1.234,56"))
	assert.Equal(t, "R$ 0,00", Format(map[string]any{}))
	assert.Equal(t, "-R$ 12,34", Format(-12.34))
}

func TestLocalizedFormat(t *testing.T) {
	s, err := localizedFormat(1234.56)
	if err != nil {
		// Locale data missing is an accepted outcome; Format falls back.
		assert.ErrorIs(t, err, errNotLocalized)
		return
	}
	assert.True(t, strings.HasPrefix(s, Symbol+"\u00a0"), s)
	assert.True(t, strings.HasSuffix(s, "234,56"), s)
}

func TestNumberToWords(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "zero"},
		{1, "um"},
		{10, "dez"},
		{15, "quinze"},
		{20, "vinte"},
		{21, "vinte e um"},
		{99, "noventa e nove"},
		{100, "cem"},
		{101, "cento e um"},
		{110, "cento e dez"},
		{177, "cento e setenta e sete"},
		{200, "duzentos"},
		{999, "novecentos e noventa e nove"},
		{1000, "mil"},
		{1001, "mil um"},
		{1100, "mil cem"},
		{1234, "mil duzentos e trinta e quatro"},
		{2000, "dois mil"},
		{21000, "vinte e um mil"},
		{100000, "cem mil"},
		{1000000, "um milhão"},
		{1001000, "um milhão um mil"},
		{2000000, "dois milhões"},
		{1000000000, "um bilhão"},
		{3000000001, "três bilhões um"},
		{-5, "menos cinco"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, NumberToWords(tt.n))
		})
	}
}

func TestAmountToWords(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{name: "one real", input: 1, want: "um real"},
		{name: "two reais", input: 2, want: "dois reais"},
		{name: "one centavo", input: 0.01, want: "um centavo"},
		{name: "zero", input: 0, want: "zero real"},
		{name: "garbage", input: "abc", want: "zero real"},
		{name: "reais and centavos", input: 1.01, want: "um real e um centavo"},
		{name: "form total", input: 177, want: "cento e setenta e sete reais"},
		{name: "pt-BR string", input: "R$ 1.234,56", want: "mil duzentos e trinta e quatro reais e cinquenta e seis centavos"},
		{name: "0.995 is stored below the half cent", input: 0.995, want: "noventa e nove centavos"},
		{name: "1.005 is stored below the half cent", input: 1.005, want: "um real"},
		{name: "2.675 is stored below the half cent", input: 2.675, want: "dois reais e sessenta e sete centavos"},
		{name: "exact half cent rounds away from zero", input: 0.125, want: "treze centavos"},
		{name: "negative exact half cent", input: -0.125, want: "menos treze centavos"},
		{name: "cents only", input: 0.5, want: "cinquenta centavos"},
		{name: "negative", input: -2.5, want: "menos dois reais e cinquenta centavos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AmountToWords(tt.input))
		})
	}
}

func TestAmountToWords_HugeAmounts(t *testing.T) {
	t.Run("beyond int64 keeps its sign", func(t *testing.T) {
		// 1e19 is exactly 10^19, so its four lowest groups are all zero
		assert.Equal(t, "zero reais", AmountToWords(1e19))
	})

	t.Run("long string of nines", func(t *testing.T) {
		// parses to 1e20
		assert.Equal(t, "zero reais", AmountToWords("99999999999999999999"))
	})

	t.Run("lowest four groups only", func(t *testing.T) {
		assert.Equal(t, "um bilhão dois reais", AmountToWords(5e12+1e9+2))
		assert.Equal(t, "um reais", AmountToWords(1e12+1))
	})

	t.Run("largest floats", func(t *testing.T) {
		for _, v := range []float64{1e308, math.MaxFloat64} {
			got := AmountToWords(v)
			assert.False(t, strings.HasPrefix(got, "menos"), got)
			assert.True(t, strings.HasSuffix(got, " reais"), got)
		}
		assert.True(t, strings.HasPrefix(AmountToWords(-1e308), "menos "))
	})
}

func TestFormTotalScenario(t *testing.T) {
	total := Normalize(85) + Normalize(92)
	require.Equal(t, 177.0, total)
	assert.True(t, strings.HasSuffix(Format(total), "177,00"))
	assert.Equal(t, "cento e setenta e sete reais", AmountToWords(total))
}

func TestConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := float64(i) + 0.25
			assert.Equal(t, v, Normalize(v))
			assert.Contains(t, Format(v), Symbol)
			assert.NotEmpty(t, AmountToWords(v))
		}(i)
	}
	wg.Wait()
}
