package reporter

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Missing is rendered for amounts that have no value
const Missing = "—"

// RoundCommercial rounds v to whole units, halves away from zero
func RoundCommercial(v decimal.Decimal) decimal.Decimal {
	return v.Round(0)
}

// FormatCurrency renders v as whole units with a space as thousands
// separator. An invalid value renders as Missing.
func FormatCurrency(v decimal.NullDecimal) string {
	if !v.Valid {
		return Missing
	}
	return FormatAmount(v.Decimal)
}

// FormatAmount renders d as whole units with a space as thousands separator
func FormatAmount(d decimal.Decimal) string {
	return groupThousands(RoundCommercial(d).String())
}

func groupThousands(digits string) string {
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	if digits == "0" {
		sign = ""
	}
	if len(digits) <= 3 {
		return sign + digits
	}

	var b strings.Builder
	b.WriteString(sign)
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > len(sign) {
			b.WriteByte(' ')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
