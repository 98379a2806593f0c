package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
	headerBreaks = regexp.MustCompile(`[\r\n]+`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// SplitAddresses splits a comma separated recipient list, trimming entries
// and dropping blanks.
func SplitAddresses(list ...string) []string {
	var out []string
	for _, l := range list {
		for _, part := range strings.Split(l, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// ValidateCNPJ validates a Brazilian company registration number, with or
// without punctuation (09.378.010/0005-63).
func ValidateCNPJ(cnpj string) error {
	digits := make([]int, 0, 14)
	for _, r := range cnpj {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, int(r-'0'))
		case r == '.' || r == '/' || r == '-' || r == ' ':
		default:
			return fmt.Errorf("CNPJ contains invalid character %q: %s", r, cnpj)
		}
	}
	if len(digits) != 14 {
		return fmt.Errorf("CNPJ must have 14 digits: %s", cnpj)
	}

	allSame := true
	for _, d := range digits[1:] {
		if d != digits[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("CNPJ is not valid: %s", cnpj)
	}

	if cnpjCheckDigit(digits[:12]) != digits[12] || cnpjCheckDigit(digits[:13]) != digits[13] {
		return fmt.Errorf("CNPJ check digits do not match: %s", cnpj)
	}
	return nil
}

func cnpjCheckDigit(digits []int) int {
	sum := 0
	weight := len(digits) - 7
	for _, d := range digits {
		sum += d * weight
		weight--
		if weight < 2 {
			weight = 9
		}
	}
	if r := sum % 11; r >= 2 {
		return 11 - r
	}
	return 0
}

// SanitizeString removes control characters, keeping tabs and newlines
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}

// SanitizeHeader collapses line breaks so the value is safe for a single
// header line such as an e-mail subject.
func SanitizeHeader(s string) string {
	return strings.TrimSpace(headerBreaks.ReplaceAllString(SanitizeString(s), " "))
}
