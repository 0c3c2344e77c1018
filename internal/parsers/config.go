package parsers

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"saft-reconciliation-service/internal/ledger"
)

// Supported input encodings
const (
	EncodingUTF8        = "utf-8"
	EncodingISO88591    = "iso-8859-1"
	EncodingWindows1252 = "windows-1252"
)

var encodingNames = map[string]string{
	"":             EncodingUTF8,
	"utf8":         EncodingUTF8,
	"utf-8":        EncodingUTF8,
	"latin1":       EncodingISO88591,
	"latin-1":      EncodingISO88591,
	"iso-8859-1":   EncodingISO88591,
	"iso8859-1":    EncodingISO88591,
	"cp1252":       EncodingWindows1252,
	"windows-1252": EncodingWindows1252,
}

// LookupEncoding resolves an encoding name. UTF-8 yields a nil
// encoding.Encoding since no decoding step is needed.
func LookupEncoding(name string) (encoding.Encoding, bool) {
	switch encodingNames[strings.ToLower(strings.TrimSpace(name))] {
	case EncodingUTF8:
		return nil, true
	case EncodingISO88591:
		return charmap.ISO8859_1, true
	case EncodingWindows1252:
		return charmap.Windows1252, true
	default:
		return nil, false
	}
}

// SupportedEncodings returns the canonical encoding names
func SupportedEncodings() []string {
	return []string{EncodingUTF8, EncodingISO88591, EncodingWindows1252}
}

// DetectDelimiter picks the most frequent of ';', ',' and tab on the first
// line, ignoring quoted text. Ties favour ';' then ','.
func DetectDelimiter(sample string) rune {
	if i := strings.IndexAny(sample, "\r\n"); i >= 0 {
		sample = sample[:i]
	}

	counts := map[rune]int{}
	inQuotes := false
	for _, r := range sample {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes && (r == ';' || r == ',' || r == '\t') {
			counts[r]++
		}
	}

	best, bestCount := ';', 0
	for _, r := range []rune{';', ',', '\t'} {
		if counts[r] > bestCount {
			best, bestCount = r, counts[r]
		}
	}
	return best
}

// NormalizeHeader lowercases a header and joins its words with underscores
func NormalizeHeader(header string) string {
	header = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
	fields := strings.FieldsFunc(strings.ToLower(header), func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_' || r == '.' || r == '/'
	})
	return strings.Join(fields, "_")
}

// CanonicalColumn maps a raw header to its canonical column name. Unknown
// headers are returned normalized.
func CanonicalColumn(header string, aliases map[string]string) string {
	normalized := NormalizeHeader(header)
	if canonical, ok := aliases[normalized]; ok {
		return canonical
	}
	return normalized
}

// TableKind identifies the ledger table a file holds
type TableKind string

const (
	KindTrialBalance TableKind = "trial_balance"
	KindVouchers     TableKind = "vouchers"
)

// TableConfig describes the columns of one ledger table
type TableConfig struct {
	Kind TableKind `json:"kind"`

	// Required columns must be present after alias mapping
	Required []string `json:"required"`

	// Aliases maps normalized header names to canonical columns
	Aliases map[string]string `json:"aliases,omitempty"`

	// AmountColumns are checked for unreadable amounts
	AmountColumns []string `json:"amount_columns"`
}

// Validate checks the table configuration
func (tc *TableConfig) Validate() error {
	if tc.Kind != KindTrialBalance && tc.Kind != KindVouchers {
		return fmt.Errorf("unknown table kind %q", tc.Kind)
	}
	if len(tc.Required) == 0 {
		return fmt.Errorf("table %s needs at least one required column", tc.Kind)
	}
	for _, col := range tc.Required {
		if strings.TrimSpace(col) == "" {
			return fmt.Errorf("required column name cannot be empty")
		}
	}
	for alias, canonical := range tc.Aliases {
		if alias != NormalizeHeader(alias) {
			return fmt.Errorf("alias %q is not normalized", alias)
		}
		if strings.TrimSpace(canonical) == "" {
			return fmt.Errorf("alias %q maps to an empty column", alias)
		}
	}
	return nil
}

// TrialBalanceConfig returns the column layout of a trial-balance export
func TrialBalanceConfig() *TableConfig {
	return &TableConfig{
		Kind:     KindTrialBalance,
		Required: []string{ledger.ColAccount},
		Aliases: map[string]string{
			"konto":                  ledger.ColAccount,
			"kontonr":                ledger.ColAccount,
			"kontonummer":            ledger.ColAccount,
			"account_id":             ledger.ColAccount,
			"accountid":              ledger.ColAccount,
			"kontonavn":              ledger.ColAccountName,
			"navn":                   ledger.ColAccountName,
			"name":                   ledger.ColAccountName,
			"description":            ledger.ColAccountName,
			"ib_debet":               ledger.ColOpeningDebit,
			"inngående_debet":        ledger.ColOpeningDebit,
			"opening_debit_balance":  ledger.ColOpeningDebit,
			"ib_kredit":              ledger.ColOpeningCredit,
			"inngående_kredit":       ledger.ColOpeningCredit,
			"opening_credit_balance": ledger.ColOpeningCredit,
			"ub_debet":               ledger.ColClosingDebit,
			"utgående_debet":         ledger.ColClosingDebit,
			"closing_debit_balance":  ledger.ColClosingDebit,
			"ub_kredit":              ledger.ColClosingCredit,
			"utgående_kredit":        ledger.ColClosingCredit,
			"closing_credit_balance": ledger.ColClosingCredit,
			"ib_netto":               ledger.ColOpeningNet,
			"ib":                     ledger.ColOpeningNet,
			"inngående_balanse":      ledger.ColOpeningNet,
			"ub_netto":               ledger.ColClosingNet,
			"ub":                     ledger.ColClosingNet,
			"utgående_balanse":       ledger.ColClosingNet,
			"forrige":                ledger.ColPrevious,
			"fjor":                   ledger.ColPrevious,
			"forrige_år":             ledger.ColPrevious,
			"previous_year":          ledger.ColPrevious,
		},
		AmountColumns: []string{
			ledger.ColOpeningDebit, ledger.ColOpeningCredit,
			ledger.ColClosingDebit, ledger.ColClosingCredit,
			ledger.ColOpeningNet, ledger.ColClosingNet, ledger.ColPrevious,
		},
	}
}

// VoucherConfig returns the column layout of a voucher-line export
func VoucherConfig() *TableConfig {
	return &TableConfig{
		Kind:     KindVouchers,
		Required: []string{ledger.ColAccount},
		Aliases: map[string]string{
			"bilag":                   ledger.ColVoucherID,
			"bilagsnr":                ledger.ColVoucherID,
			"bilagsnummer":            ledger.ColVoucherID,
			"transaction_id":          ledger.ColVoucherID,
			"transactionid":           ledger.ColVoucherID,
			"dokumentnr":              ledger.ColDocumentNumber,
			"fakturanr":               ledger.ColDocumentNumber,
			"source_document_id":      ledger.ColDocumentNumber,
			"dato":                    ledger.ColDate,
			"bilagsdato":              ledger.ColDate,
			"transaction_date":        ledger.ColDate,
			"leverandørnr":            ledger.ColSupplierID,
			"leverandør_id":           ledger.ColSupplierID,
			"supplierid":              ledger.ColSupplierID,
			"leverandør":              ledger.ColSupplierName,
			"leverandørnavn":          ledger.ColSupplierName,
			"bilagstekst":             ledger.ColVoucherDescription,
			"transaction_description": ledger.ColVoucherDescription,
			"konto":                   ledger.ColAccount,
			"kontonr":                 ledger.ColAccount,
			"account_id":              ledger.ColAccount,
			"accountid":               ledger.ColAccount,
			"kontonavn":               ledger.ColAccountName,
			"tekst":                   ledger.ColDescription,
			"beskrivelse":             ledger.ColDescription,
			"mva_kode":                ledger.ColVATCode,
			"mvakode":                 ledger.ColVATCode,
			"mva":                     ledger.ColVATCode,
			"tax_code":                ledger.ColVATCode,
			"debet":                   ledger.ColDebit,
			"debit_amount":            ledger.ColDebit,
			"kredit":                  ledger.ColCredit,
			"credit_amount":           ledger.ColCredit,
		},
		AmountColumns: []string{ledger.ColDebit, ledger.ColCredit},
	}
}
