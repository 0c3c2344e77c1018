// Package vat finds cost vouchers whose VAT treatment departs from the
// treatment an account normally gets.
package vat

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"saft-reconciliation-service/internal/models"
	"saft-reconciliation-service/pkg/logger"
)

const (
	// MissingCode labels lines posted without a VAT code
	MissingCode = "None"

	// MinimumObservationsFloor is the lowest accepted observation minimum.
	// Below two observations there is nothing to disagree with.
	MinimumObservationsFloor = 2

	unknownAccount  = "Unknown account"
	unknownSupplier = "Unknown supplier"
	noVoucherNumber = "No voucher number"
)

// Deviation is one voucher whose VAT treatment on an account differs from
// the account's dominant code
type Deviation struct {
	Account       string          `json:"account"`
	AccountName   string          `json:"account_name"`
	ExpectedCode  string          `json:"expected_code"`
	ObservedCode  string          `json:"observed_code"`
	VoucherNumber string          `json:"voucher_number"`
	Date          *time.Time      `json:"date,omitempty"`
	Supplier      string          `json:"supplier"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	ExpectedCount int             `json:"expected_count"`
	TotalCount    int             `json:"total_count"`
}

// AccountSummary aggregates the deviations of one account
type AccountSummary struct {
	Account         string          `json:"account"`
	AccountName     string          `json:"account_name"`
	ExpectedCode    string          `json:"expected_code"`
	DeviationCount  int             `json:"deviation_count"`
	DeviationAmount decimal.Decimal `json:"deviation_amount"`
	ExpectedCount   int             `json:"expected_count"`
	TotalCount      int             `json:"total_count"`
}

// observation is one (voucher, account) pair after netting its lines
type observation struct {
	account       string
	accountName   string
	code          string
	voucherNumber string
	date          *time.Time
	supplier      string
	amount        decimal.Decimal
	description   string
}

// Detector finds VAT deviations
type Detector struct {
	MinimumObservations int
	logger              logger.Logger
}

// NewDetector creates a Detector. minimum is clamped to
// MinimumObservationsFloor.
func NewDetector(minimum int, log logger.Logger) *Detector {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Detector{MinimumObservations: minimum, logger: log.WithComponent("vat")}
}

func (d *Detector) effectiveMinimum() int {
	if d.MinimumObservations < MinimumObservationsFloor {
		return MinimumObservationsFloor
	}
	return d.MinimumObservations
}

// Find returns the deviations across vouchers sorted by account, undated
// last, date and voucher number.
func (d *Detector) Find(vouchers []models.CostVoucher) []Deviation {
	minimum := d.effectiveMinimum()

	var accounts []string
	perAccount := make(map[string][]observation)
	for _, obs := range collect(vouchers) {
		if _, seen := perAccount[obs.account]; !seen {
			accounts = append(accounts, obs.account)
		}
		perAccount[obs.account] = append(perAccount[obs.account], obs)
	}

	var deviations []Deviation
	for _, account := range accounts {
		observations := perAccount[account]
		if len(observations) < minimum {
			continue
		}

		expected, expectedCount, ok := dominantCode(observations)
		if !ok {
			continue
		}

		for _, obs := range observations {
			if obs.code == expected {
				continue
			}
			deviations = append(deviations, Deviation{
				Account:       account,
				AccountName:   obs.accountName,
				ExpectedCode:  expected,
				ObservedCode:  obs.code,
				VoucherNumber: obs.voucherNumber,
				Date:          obs.date,
				Supplier:      obs.supplier,
				Amount:        obs.amount,
				Description:   obs.description,
				ExpectedCount: expectedCount,
				TotalCount:    len(observations),
			})
		}
	}

	sort.SliceStable(deviations, func(i, j int) bool {
		return lessByAccountDate(
			deviations[i].Account, deviations[i].Date, deviations[i].VoucherNumber,
			deviations[j].Account, deviations[j].Date, deviations[j].VoucherNumber,
		)
	})

	d.logger.WithFields(logger.Fields{
		"accounts":   len(accounts),
		"deviations": len(deviations),
		"minimum":    minimum,
	}).Debug("VAT deviation scan finished")

	return deviations
}

// dominantCode ranks codes by count descending then code ascending. The top
// code is dominant only with at least two distinct codes and a strict lead
// over the runner-up.
func dominantCode(observations []observation) (string, int, bool) {
	counts := make(map[string]int)
	for _, obs := range observations {
		counts[obs.code]++
	}
	if len(counts) < 2 {
		return "", 0, false
	}

	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if counts[codes[i]] != counts[codes[j]] {
			return counts[codes[i]] > counts[codes[j]]
		}
		return codes[i] < codes[j]
	})

	if counts[codes[0]] <= counts[codes[1]] {
		return "", 0, false
	}
	return codes[0], counts[codes[0]], true
}

// Summarize groups deviations per account and expected code, sorted by account
func Summarize(deviations []Deviation) []AccountSummary {
	type groupKey struct{ account, expected string }

	var order []groupKey
	groups := make(map[groupKey]*AccountSummary)
	for _, dev := range deviations {
		key := groupKey{dev.Account, dev.ExpectedCode}
		summary, ok := groups[key]
		if !ok {
			summary = &AccountSummary{
				Account:         dev.Account,
				AccountName:     dev.AccountName,
				ExpectedCode:    dev.ExpectedCode,
				DeviationAmount: decimal.Zero,
				ExpectedCount:   dev.ExpectedCount,
				TotalCount:      dev.TotalCount,
			}
			groups[key] = summary
			order = append(order, key)
		}
		summary.DeviationCount++
		summary.DeviationAmount = summary.DeviationAmount.Add(dev.Amount)
	}

	summaries := make([]AccountSummary, 0, len(order))
	for _, key := range order {
		summaries = append(summaries, *groups[key])
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Account < summaries[j].Account
	})
	return summaries
}

type accumulator struct {
	accountName string
	description string
	codes       map[string]bool
	amount      decimal.Decimal
}

func collect(vouchers []models.CostVoucher) []observation {
	var out []observation
	for i := range vouchers {
		voucher := &vouchers[i]

		var accounts []string
		perAccount := make(map[string]*accumulator)
		for _, line := range voucher.Lines {
			account := strings.TrimSpace(line.Account)
			if account == "" {
				continue
			}
			acc, ok := perAccount[account]
			if !ok {
				acc = &accumulator{codes: make(map[string]bool), amount: decimal.Zero}
				perAccount[account] = acc
				accounts = append(accounts, account)
			}
			if acc.accountName == "" {
				acc.accountName = strings.TrimSpace(line.AccountName)
			}
			if acc.description == "" {
				acc.description = strings.TrimSpace(line.Description)
			}
			for _, code := range NormalizeCodes(line.VATCode) {
				acc.codes[code] = true
			}
			acc.amount = acc.amount.Add(line.Net())
		}

		if len(accounts) == 0 {
			continue
		}

		number := firstNonBlank(voucher.DocumentNumber, voucher.ID, noVoucherNumber)
		supplier := firstNonBlank(voucher.SupplierName, voucher.SupplierID, unknownSupplier)
		voucherDescription := strings.TrimSpace(voucher.Description)

		for _, account := range accounts {
			acc := perAccount[account]
			out = append(out, observation{
				account:       account,
				accountName:   firstNonBlank(acc.accountName, unknownAccount),
				code:          label(acc.codes),
				voucherNumber: number,
				date:          voucher.Date,
				supplier:      supplier,
				amount:        acc.amount.Abs(),
				description:   firstNonBlank(voucherDescription, acc.description),
			})
		}
	}
	return out
}

// NormalizeCodes splits a raw VAT code cell on commas and trims the parts.
// A blank cell yields MissingCode.
func NormalizeCodes(raw string) []string {
	var parts []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return []string{MissingCode}
	}
	return parts
}

func label(codes map[string]bool) string {
	parts := make([]string, 0, len(codes))
	for code := range codes {
		parts = append(parts, code)
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// lessByAccountDate orders by account, then dated before undated, then date,
// then voucher number
func lessByAccountDate(accountA string, dateA *time.Time, numberA string, accountB string, dateB *time.Time, numberB string) bool {
	if accountA != accountB {
		return accountA < accountB
	}
	if (dateA == nil) != (dateB == nil) {
		return dateB == nil
	}
	if dateA != nil && !dateA.Equal(*dateB) {
		return dateA.Before(*dateB)
	}
	return numberA < numberB
}
