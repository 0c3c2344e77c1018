// Package assets classifies fixed-asset movements and flags large cost
// postings that may need capitalization.
package assets

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"saft-reconciliation-service/internal/models"
	"saft-reconciliation-service/pkg/logger"
)

// Placeholder is shown for text fields with no value
const Placeholder = "—"

var (
	// AssetPrefixes select land, buildings, machinery and vehicle accounts
	AssetPrefixes = []string{"11", "12"}

	// CapitalizationPrefix selects the small-equipment cost accounts
	CapitalizationPrefix = "65"

	// DefaultCapitalizationThreshold is the amount at which a cost posting
	// is surfaced for capitalization review
	DefaultCapitalizationThreshold = decimal.NewFromInt(30000)
)

// Movement describes an asset account's balance change over the period
type Movement struct {
	Account string          `json:"account"`
	Name    string          `json:"name"`
	Opening decimal.Decimal `json:"opening"`
	Closing decimal.Decimal `json:"closing"`
	Change  decimal.Decimal `json:"change"`
}

// Accession is a debit posting on an asset account
type Accession struct {
	Date        *time.Time      `json:"date,omitempty"`
	Supplier    string          `json:"supplier"`
	Document    string          `json:"document"`
	Account     string          `json:"account"`
	AccountName string          `json:"account_name,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

// AccessionSummary totals accessions per account
type AccessionSummary struct {
	Account     string          `json:"account"`
	AccountName string          `json:"account_name,omitempty"`
	Total       decimal.Decimal `json:"total"`
}

// CapitalizationCandidate is a cost posting large enough to review for
// capitalization
type CapitalizationCandidate struct {
	Date        *time.Time      `json:"date,omitempty"`
	Supplier    string          `json:"supplier"`
	Document    string          `json:"document"`
	Account     string          `json:"account"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// AccessionOptions tunes FindAccessions
type AccessionOptions struct {
	// NetReversals lets a credit posting on an asset account reduce the most
	// recent accession on that account within the same voucher, dropping it
	// at zero. Credits on other vouchers never touch an accession.
	NetReversals bool
	// AccountNames supplies names for lines that carry none
	AccountNames map[string]string
}

// CapitalizationOptions tunes FindCapitalizationCandidates
type CapitalizationOptions struct {
	// Threshold defaults to DefaultCapitalizationThreshold when not positive.
	// Callers that take it from user input must reject zero themselves.
	Threshold decimal.Decimal
	// PerVoucher compares the voucher's total on capitalization accounts
	// against the threshold and then reports every such line
	PerVoucher bool
}

// Analyzer runs the asset queries
type Analyzer struct {
	logger logger.Logger
}

// NewAnalyzer creates an Analyzer
func NewAnalyzer(log logger.Logger) *Analyzer {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Analyzer{logger: log.WithComponent("assets")}
}

// IsAssetAccount reports whether the trimmed account code is in the asset range
func IsAssetAccount(account string) bool {
	account = strings.TrimSpace(account)
	for _, prefix := range AssetPrefixes {
		if strings.HasPrefix(account, prefix) {
			return true
		}
	}
	return false
}

// movements lists the asset accounts of tb that keep accepts
func movements(tb *models.TrialBalance, keep func(opening, closing decimal.Decimal) bool) []Movement {
	accounts := tb.Filter(AssetPrefixes...)
	var out []Movement
	for i := range accounts {
		acct := &accounts[i]
		code := acct.TrimmedCode()
		opening, closing := acct.OpeningNet(), acct.ClosingNet()
		if !keep(opening, closing) {
			continue
		}
		out = append(out, Movement{
			Account: code,
			Name:    strings.TrimSpace(acct.Name),
			Opening: opening,
			Closing: closing,
			Change:  closing.Sub(opening),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}

// FindDisposals returns asset accounts with a non-zero opening balance and a
// zero closing balance, sorted by account.
func (a *Analyzer) FindDisposals(tb *models.TrialBalance) []Movement {
	if tb == nil {
		return nil
	}
	out := movements(tb, func(opening, closing decimal.Decimal) bool {
		return !opening.IsZero() && closing.IsZero()
	})
	a.logger.WithField("disposals", len(out)).Debug("Disposal scan finished")
	return out
}

// FindBalanceIncreases returns asset accounts whose closing balance exceeds
// the opening balance, sorted by account.
func (a *Analyzer) FindBalanceIncreases(tb *models.TrialBalance) []Movement {
	if tb == nil {
		return nil
	}
	return movements(tb, func(opening, closing decimal.Decimal) bool {
		return closing.GreaterThan(opening)
	})
}

// FindAccessions returns one Accession per debit line on an asset account,
// sorted by account, undated last, date and document.
func (a *Analyzer) FindAccessions(vouchers []models.CostVoucher, opts AccessionOptions) []Accession {
	var out []*Accession

	for i := range vouchers {
		voucher := &vouchers[i]
		outstanding := make(map[string][]*Accession)
		for _, line := range voucher.Lines {
			account := strings.TrimSpace(line.Account)
			if account == "" || !IsAssetAccount(account) {
				continue
			}

			if line.Debit.IsPositive() {
				name := strings.TrimSpace(line.AccountName)
				if name == "" {
					name = opts.AccountNames[account]
				}
				acc := &Accession{
					Date:        voucher.Date,
					Supplier:    orPlaceholder(voucher.SupplierName, voucher.SupplierID),
					Document:    orPlaceholder(voucher.DocumentNumber, voucher.ID),
					Account:     account,
					AccountName: name,
					Amount:      line.Debit,
					Description: strings.TrimSpace(line.Description),
				}
				out = append(out, acc)
				outstanding[account] = append(outstanding[account], acc)
			}

			if opts.NetReversals && line.Credit.IsPositive() {
				outstanding[account] = reverse(outstanding[account], line.Credit)
			}
		}
	}

	result := make([]Accession, 0, len(out))
	for _, acc := range out {
		if acc.Amount.IsPositive() {
			result = append(result, *acc)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		x, y := result[i], result[j]
		if x.Account != y.Account {
			return x.Account < y.Account
		}
		if (x.Date == nil) != (y.Date == nil) {
			return y.Date == nil
		}
		if x.Date != nil && !x.Date.Equal(*y.Date) {
			return x.Date.Before(*y.Date)
		}
		return x.Document < y.Document
	})

	a.logger.WithFields(logger.Fields{
		"accessions":    len(result),
		"net_reversals": opts.NetReversals,
	}).Debug("Accession scan finished")
	return result
}

// reverse reduces the newest outstanding accessions by credit and returns
// those still open
func reverse(open []*Accession, credit decimal.Decimal) []*Accession {
	remaining := credit
	for len(open) > 0 && remaining.IsPositive() {
		last := open[len(open)-1]
		if last.Amount.GreaterThan(remaining) {
			last.Amount = last.Amount.Sub(remaining)
			return open
		}
		remaining = remaining.Sub(last.Amount)
		last.Amount = decimal.Zero
		open = open[:len(open)-1]
	}
	return open
}

// SummarizeAccessions totals accessions per account, sorted by account. The
// first non-blank account name seen wins.
func SummarizeAccessions(accessions []Accession) []AccessionSummary {
	var order []string
	byAccount := make(map[string]*AccessionSummary)
	for _, acc := range accessions {
		summary, ok := byAccount[acc.Account]
		if !ok {
			summary = &AccessionSummary{Account: acc.Account, Total: decimal.Zero}
			byAccount[acc.Account] = summary
			order = append(order, acc.Account)
		}
		if summary.AccountName == "" {
			summary.AccountName = acc.AccountName
		}
		summary.Total = summary.Total.Add(acc.Amount)
	}

	sort.Strings(order)
	out := make([]AccessionSummary, 0, len(order))
	for _, account := range order {
		out = append(out, *byAccount[account])
	}
	return out
}

// FindCapitalizationCandidates returns lines on capitalization accounts
// whose debit minus credit reaches the threshold
func (a *Analyzer) FindCapitalizationCandidates(vouchers []models.CostVoucher, opts CapitalizationOptions) []CapitalizationCandidate {
	threshold := opts.Threshold
	if !threshold.IsPositive() {
		threshold = DefaultCapitalizationThreshold
	}

	var out []CapitalizationCandidate
	for i := range vouchers {
		voucher := &vouchers[i]

		var lines []models.VoucherLine
		total := decimal.Zero
		for _, line := range voucher.Lines {
			if !strings.HasPrefix(strings.TrimSpace(line.Account), CapitalizationPrefix) {
				continue
			}
			lines = append(lines, line)
			total = total.Add(line.Net())
		}
		if opts.PerVoucher && total.LessThan(threshold) {
			continue
		}

		for _, line := range lines {
			amount := line.Net()
			if !opts.PerVoucher && amount.LessThan(threshold) {
				continue
			}
			out = append(out, CapitalizationCandidate{
				Date:        voucher.Date,
				Supplier:    orPlaceholder(voucher.SupplierName, voucher.SupplierID),
				Document:    orPlaceholder(voucher.DocumentNumber, voucher.ID),
				Account:     orPlaceholder(line.Account),
				Amount:      amount,
				Description: orPlaceholder(line.Description),
			})
		}
	}

	a.logger.WithFields(logger.Fields{
		"candidates":  len(out),
		"threshold":   threshold.String(),
		"per_voucher": opts.PerVoucher,
	}).Debug("Capitalization scan finished")
	return out
}

func orPlaceholder(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return Placeholder
}
