package aggregate

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"saft-reconciliation-service/internal/models"
)

// PrefixSumHelper sums a metric over accounts whose trimmed code starts with
// any of a set of prefixes. Converted columns and prefix masks are cached
// per trial balance and dropped as soon as a different *TrialBalance is
// passed in.
//
// A PrefixSumHelper is not safe for concurrent use.
type PrefixSumHelper struct {
	tb          *models.TrialBalance
	codes       []string
	columns     map[models.Metric][]decimal.Decimal
	masks       map[string][]bool
	conversions int
	maskBuilds  int
}

// NewPrefixSumHelper creates an empty helper
func NewPrefixSumHelper() *PrefixSumHelper {
	return &PrefixSumHelper{}
}

// Sum returns the sum of metric over rows of tb matching any prefix.
// Prefixes are trimmed and blanks ignored; with none left the result is zero
// and the cache is not touched.
func (h *PrefixSumHelper) Sum(tb *models.TrialBalance, metric models.Metric, prefixes ...string) decimal.Decimal {
	key, cleaned := prefixKey(prefixes)
	if len(cleaned) == 0 {
		return decimal.Zero
	}

	h.bind(tb)

	column := h.column(metric)
	mask, ok := h.masks[key]
	if !ok {
		mask = make([]bool, len(h.codes))
		for i, code := range h.codes {
			for _, prefix := range cleaned {
				if strings.HasPrefix(code, prefix) {
					mask[i] = true
					break
				}
			}
		}
		h.masks[key] = mask
		h.maskBuilds++
	}

	total := decimal.Zero
	for i, hit := range mask {
		if hit {
			total = total.Add(column[i])
		}
	}
	return total
}

// Conversions returns how many metric columns have been materialized
func (h *PrefixSumHelper) Conversions() int {
	return h.conversions
}

// MaskBuilds returns how many prefix masks have been computed
func (h *PrefixSumHelper) MaskBuilds() int {
	return h.maskBuilds
}

func (h *PrefixSumHelper) bind(tb *models.TrialBalance) {
	if h.columns != nil && h.tb == tb {
		return
	}
	h.tb = tb
	h.columns = make(map[models.Metric][]decimal.Decimal)
	h.masks = make(map[string][]bool)
	h.codes = make([]string, tb.Len())
	for i := 0; i < tb.Len(); i++ {
		h.codes[i] = tb.Accounts[i].TrimmedCode()
	}
}

func (h *PrefixSumHelper) column(metric models.Metric) []decimal.Decimal {
	if column, ok := h.columns[metric]; ok {
		return column
	}
	column := make([]decimal.Decimal, h.tb.Len())
	for i := range column {
		column[i] = h.tb.Accounts[i].Value(metric)
	}
	h.columns[metric] = column
	h.conversions++
	return column
}

func prefixKey(prefixes []string) (string, []string) {
	seen := make(map[string]bool, len(prefixes))
	cleaned := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		cleaned = append(cleaned, p)
	}
	sort.Strings(cleaned)
	return strings.Join(cleaned, "\x00"), cleaned
}
