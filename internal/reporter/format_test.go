package reporter

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"0", "0"},
		{"0.4", "0"},
		{"-0.4", "0"},
		{"0.5", "1"},
		{"-0.5", "-1"},
		{"2.5", "3"},
		{"-2.5", "-3"},
		{"999", "999"},
		{"1000", "1 000"},
		{"-1234", "-1 234"},
		{"100000", "100 000"},
		{"1234567.5", "1 234 568"},
		{"-123456", "-123 456"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := FormatAmount(decimal.RequireFromString(tt.input))
			if got != tt.expected {
				t.Errorf("FormatAmount(%s) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatCurrency(t *testing.T) {
	if got := FormatCurrency(decimal.NullDecimal{}); got != Missing {
		t.Errorf("missing value rendered as %q", got)
	}
	if got := FormatCurrency(decimal.NewNullDecimal(decimal.NewFromInt(25000))); got != "25 000" {
		t.Errorf("expected 25 000, got %q", got)
	}
}
