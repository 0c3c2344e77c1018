package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Metric names a numeric column of a trial balance
type Metric string

const (
	// MetricOpeningNet is opening debit minus opening credit
	MetricOpeningNet Metric = "opening_net"
	// MetricClosingNet is closing debit minus closing credit
	MetricClosingNet Metric = "closing_net"
	// MetricChange is closing net minus opening net
	MetricChange Metric = "change"
	// MetricPrevious is the prior-year closing net
	MetricPrevious Metric = "previous"
)

// String returns the string representation of Metric
func (m Metric) String() string {
	return string(m)
}

// IsValid checks if the metric is one the trial balance can produce
func (m Metric) IsValid() bool {
	switch m {
	case MetricOpeningNet, MetricClosingNet, MetricChange, MetricPrevious:
		return true
	}
	return false
}

// LedgerAccount holds one general-ledger account's balances.
//
// Net figures are derived from the debit/credit pairs unless the export
// carried precomputed nets, in which case those win. Change is never
// stored; it is always closing net minus opening net.
type LedgerAccount struct {
	Code          string          `json:"code"`
	Number        *int            `json:"number,omitempty"`
	Name          string          `json:"name"`
	OpeningDebit  decimal.Decimal `json:"opening_debit"`
	OpeningCredit decimal.Decimal `json:"opening_credit"`
	ClosingDebit  decimal.Decimal `json:"closing_debit"`
	ClosingCredit decimal.Decimal `json:"closing_credit"`

	OpeningOverride decimal.NullDecimal `json:"-"`
	ClosingOverride decimal.NullDecimal `json:"-"`
	Previous        decimal.NullDecimal `json:"-"`
}

// NewLedgerAccount creates a LedgerAccount and parses its numeric code
func NewLedgerAccount(code, name string, openingDebit, openingCredit, closingDebit, closingCredit decimal.Decimal) *LedgerAccount {
	return &LedgerAccount{
		Code:          code,
		Number:        ParseAccountCode(code),
		Name:          name,
		OpeningDebit:  openingDebit,
		OpeningCredit: openingCredit,
		ClosingDebit:  closingDebit,
		ClosingCredit: closingCredit,
	}
}

// OpeningNet returns the opening balance as debit minus credit
func (a *LedgerAccount) OpeningNet() decimal.Decimal {
	if a.OpeningOverride.Valid {
		return a.OpeningOverride.Decimal
	}
	return a.OpeningDebit.Sub(a.OpeningCredit)
}

// ClosingNet returns the closing balance as debit minus credit
func (a *LedgerAccount) ClosingNet() decimal.Decimal {
	if a.ClosingOverride.Valid {
		return a.ClosingOverride.Decimal
	}
	return a.ClosingDebit.Sub(a.ClosingCredit)
}

// Change returns closing net minus opening net
func (a *LedgerAccount) Change() decimal.Decimal {
	return a.ClosingNet().Sub(a.OpeningNet())
}

// PreviousNet returns the prior-year closing net, falling back to opening net
func (a *LedgerAccount) PreviousNet() decimal.Decimal {
	if a.Previous.Valid {
		return a.Previous.Decimal
	}
	return a.OpeningNet()
}

// Value returns the figure for metric, or zero for an unknown metric
func (a *LedgerAccount) Value(metric Metric) decimal.Decimal {
	switch metric {
	case MetricOpeningNet:
		return a.OpeningNet()
	case MetricClosingNet:
		return a.ClosingNet()
	case MetricChange:
		return a.Change()
	case MetricPrevious:
		return a.PreviousNet()
	default:
		return decimal.Zero
	}
}

// TrimmedCode returns the account code without surrounding whitespace
func (a *LedgerAccount) TrimmedCode() string {
	return strings.TrimSpace(a.Code)
}

// String returns a string representation of the LedgerAccount
func (a *LedgerAccount) String() string {
	return fmt.Sprintf("LedgerAccount{Code: %s, Name: %s, Opening: %s, Closing: %s}",
		a.Code, a.Name, a.OpeningNet().String(), a.ClosingNet().String())
}

// MarshalJSON adds the derived net figures to the encoded account
func (a *LedgerAccount) MarshalJSON() ([]byte, error) {
	type Alias LedgerAccount
	return json.Marshal(&struct {
		OpeningNet string `json:"opening_net"`
		ClosingNet string `json:"closing_net"`
		Change     string `json:"change"`
		*Alias
	}{
		OpeningNet: a.OpeningNet().String(),
		ClosingNet: a.ClosingNet().String(),
		Change:     a.Change().String(),
		Alias:      (*Alias)(a),
	})
}

// TrialBalance is the ordered set of ledger accounts for one dataset.
// Derived indexes compare TrialBalance pointers, so a TrialBalance must not
// be mutated once handed to an aggregator.
type TrialBalance struct {
	Accounts []LedgerAccount `json:"accounts"`
}

// NewTrialBalance creates a TrialBalance owning accounts
func NewTrialBalance(accounts []LedgerAccount) *TrialBalance {
	return &TrialBalance{Accounts: accounts}
}

// Len returns the number of accounts
func (tb *TrialBalance) Len() int {
	if tb == nil {
		return 0
	}
	return len(tb.Accounts)
}

// Check returns the sum of all closing nets. A balanced trial balance
// returns zero.
func (tb *TrialBalance) Check() decimal.Decimal {
	total := decimal.Zero
	if tb == nil {
		return total
	}
	for i := range tb.Accounts {
		total = total.Add(tb.Accounts[i].ClosingNet())
	}
	return total
}

// IsBalanced reports whether Check returns zero
func (tb *TrialBalance) IsBalanced() bool {
	return tb.Check().IsZero()
}

// Filter returns the accounts whose trimmed code starts with any prefix
func (tb *TrialBalance) Filter(prefixes ...string) []LedgerAccount {
	var out []LedgerAccount
	if tb == nil {
		return out
	}
	for _, acct := range tb.Accounts {
		code := acct.TrimmedCode()
		for _, prefix := range prefixes {
			if prefix != "" && strings.HasPrefix(code, prefix) {
				out = append(out, acct)
				break
			}
		}
	}
	return out
}

// NamesByCode maps trimmed account codes to account names
func (tb *TrialBalance) NamesByCode() map[string]string {
	names := make(map[string]string)
	if tb == nil {
		return names
	}
	for _, acct := range tb.Accounts {
		if name := strings.TrimSpace(acct.Name); name != "" {
			names[acct.TrimmedCode()] = name
		}
	}
	return names
}

// VoucherLine is one posting within a CostVoucher
type VoucherLine struct {
	Account     string          `json:"account"`
	AccountName string          `json:"account_name,omitempty"`
	Description string          `json:"description,omitempty"`
	VATCode     string          `json:"vat_code,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// Net returns debit minus credit
func (l VoucherLine) Net() decimal.Decimal {
	return l.Debit.Sub(l.Credit)
}

// CostVoucher is one inbound invoice or bookkeeping document
type CostVoucher struct {
	ID             string          `json:"id"`
	DocumentNumber string          `json:"document_number,omitempty"`
	Date           *time.Time      `json:"date,omitempty"`
	SupplierID     string          `json:"supplier_id,omitempty"`
	SupplierName   string          `json:"supplier_name,omitempty"`
	Description    string          `json:"description,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Lines          []VoucherLine   `json:"lines"`
}

// Reference returns the document number, falling back to the voucher id
func (v *CostVoucher) Reference() string {
	if doc := strings.TrimSpace(v.DocumentNumber); doc != "" {
		return doc
	}
	return strings.TrimSpace(v.ID)
}

// Validate performs basic validation on the CostVoucher
func (v *CostVoucher) Validate() error {
	if strings.TrimSpace(v.ID) == "" && strings.TrimSpace(v.DocumentNumber) == "" {
		return fmt.Errorf("voucher must have an id or a document number")
	}
	for i, line := range v.Lines {
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("voucher %s line %d has a negative debit or credit", v.Reference(), i+1)
		}
	}
	return nil
}

// MarshalJSON encodes the date as YYYY-MM-DD
func (v *CostVoucher) MarshalJSON() ([]byte, error) {
	type Alias CostVoucher
	var date string
	if v.Date != nil {
		date = v.Date.Format("2006-01-02")
	}
	return json.Marshal(&struct {
		Date string `json:"date,omitempty"`
		*Alias
	}{
		Date:  date,
		Alias: (*Alias)(v),
	})
}
