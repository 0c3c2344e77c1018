package models

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts ledger text to a decimal amount. It accepts comma or
// dot as decimal separator, grouping with spaces, commas or dots, a leading
// or trailing sign, and parentheses for negatives. Anything it cannot read
// unambiguously becomes zero.
func ParseAmount(value string) decimal.Decimal {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, value)
	if cleaned == "" {
		return decimal.Zero
	}

	sign := ""
	if strings.HasPrefix(cleaned, "(") || strings.HasSuffix(cleaned, ")") {
		if !(strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")")) || len(cleaned) < 2 {
			return decimal.Zero
		}
		cleaned = cleaned[1 : len(cleaned)-1]
		if cleaned == "" {
			return decimal.Zero
		}
		sign = "-"
	}

	signCount := 0
	for i, r := range cleaned {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
		case r == '+' || r == '-':
			signCount++
			if signCount > 1 || (i != 0 && i != len(cleaned)-1) {
				return decimal.Zero
			}
		default:
			return decimal.Zero
		}
	}

	if c := cleaned[0]; c == '+' || c == '-' {
		sign, cleaned = string(c), cleaned[1:]
	} else if c := cleaned[len(cleaned)-1]; c == '+' || c == '-' {
		sign, cleaned = string(c), cleaned[:len(cleaned)-1]
	}
	if cleaned == "" {
		return decimal.Zero
	}

	commaPos := strings.LastIndex(cleaned, ",")
	dotPos := strings.LastIndex(cleaned, ".")
	commaCount := strings.Count(cleaned, ",")
	dotCount := strings.Count(cleaned, ".")

	decimalSep := ""
	switch {
	case commaCount > 0 && dotCount > 0:
		if commaPos > dotPos {
			decimalSep = ","
		} else {
			decimalSep = "."
		}
	case commaCount == 1 && dotCount == 0 && len(cleaned)-commaPos-1 <= 2:
		decimalSep = ","
	case dotCount == 1 && commaCount == 0:
		decimalSep = "."
	}

	var integerPart, fractionalPart string
	if decimalSep != "" {
		idx := strings.LastIndex(cleaned, decimalSep)
		integerPart, fractionalPart = cleaned[:idx], cleaned[idx+1:]
		thousandSep := ","
		if decimalSep == "," {
			thousandSep = "."
		}
		if strings.Contains(integerPart, thousandSep) && !validGrouping(integerPart, thousandSep) {
			return decimal.Zero
		}
	} else {
		integerPart = cleaned
		hasComma := strings.Contains(integerPart, ",")
		hasDot := strings.Contains(integerPart, ".")
		if hasComma && hasDot {
			return decimal.Zero
		}
		if hasComma && !validGrouping(integerPart, ",") {
			return decimal.Zero
		}
		if hasDot && !validGrouping(integerPart, ".") {
			return decimal.Zero
		}
	}

	strip := strings.NewReplacer(",", "", ".", "")
	integerDigits := strip.Replace(integerPart)
	fractionalDigits := strip.Replace(fractionalPart)
	if integerDigits == "" {
		integerDigits = "0"
	}

	normalized := integerDigits
	if fractionalDigits != "" {
		normalized += "." + fractionalDigits
	}
	if sign == "-" {
		normalized = "-" + normalized
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func validGrouping(text, separator string) bool {
	parts := strings.Split(text, separator)
	if len(parts) == 1 {
		return true
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
	}
	if len(parts[0]) > 3 {
		return false
	}
	for _, part := range parts[1:] {
		if len(part) != 3 {
			return false
		}
	}
	return true
}

var accountNumberPattern = regexp.MustCompile(`-?\d+`)

// ParseAccountCode extracts the first signed integer run from an account
// code. It returns nil when the code contains no digits.
func ParseAccountCode(code string) *int {
	match := accountNumberPattern.FindString(code)
	if match == "" {
		return nil
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}
	return &n
}

var dateFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02.01.2006",
	"02/01/2006",
	"2006/01/02",
}

// ParseDate parses a voucher date. It returns nil for blank or unreadable
// input so callers can sort undated vouchers last.
func ParseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, value); err == nil {
			return &t
		}
	}
	return nil
}
