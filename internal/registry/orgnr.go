package registry

import (
	"strings"

	"saft-reconciliation-service/pkg/errors"
)

// OrgNumberLength is the digit count of a Norwegian organization number
const OrgNumberLength = 9

// digitsOnly drops every character that is not an ASCII digit
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeOrgNumber strips non-digits and requires exactly nine digits to
// remain. "999 999 999" becomes "999999999".
func NormalizeOrgNumber(orgnr string) (string, error) {
	digits := digitsOnly(orgnr)
	if len(digits) != OrgNumberLength {
		return "", errors.ValidationError(errors.CodeInvalidOrgNumber, "orgnr", orgnr, nil)
	}
	return digits, nil
}
