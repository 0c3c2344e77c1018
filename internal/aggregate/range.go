package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"saft-reconciliation-service/internal/models"
)

// indexedMetrics are the columns a RangeIndex keeps cumulative sums for
var indexedMetrics = []models.Metric{models.MetricChange, models.MetricClosingNet}

// RangeIndex answers inclusive account-number range sums in O(log n).
// Accounts without a parsable number are left out entirely.
type RangeIndex struct {
	tb     *models.TrialBalance
	codes  []int
	values map[models.Metric][]decimal.Decimal
	prefix map[models.Metric][]decimal.Decimal
}

// NewRangeIndex sorts the numbered accounts of tb and builds one cumulative
// sum array per indexed metric.
func NewRangeIndex(tb *models.TrialBalance) *RangeIndex {
	idx := &RangeIndex{
		tb:     tb,
		values: make(map[models.Metric][]decimal.Decimal, len(indexedMetrics)),
		prefix: make(map[models.Metric][]decimal.Decimal, len(indexedMetrics)),
	}

	var rows []*models.LedgerAccount
	if tb != nil {
		for i := range tb.Accounts {
			if tb.Accounts[i].Number != nil {
				rows = append(rows, &tb.Accounts[i])
			}
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return *rows[i].Number < *rows[j].Number
	})

	idx.codes = make([]int, len(rows))
	for i, acct := range rows {
		idx.codes[i] = *acct.Number
	}

	for _, metric := range indexedMetrics {
		values := make([]decimal.Decimal, len(rows))
		cumulative := make([]decimal.Decimal, len(rows))
		running := decimal.Zero
		for i, acct := range rows {
			values[i] = acct.Value(metric)
			running = running.Add(values[i])
			cumulative[i] = running
		}
		idx.values[metric] = values
		idx.prefix[metric] = cumulative
	}

	return idx
}

// TrialBalance returns the trial balance the index was built from
func (idx *RangeIndex) TrialBalance() *models.TrialBalance {
	return idx.tb
}

// Len returns the number of indexed accounts
func (idx *RangeIndex) Len() int {
	return len(idx.codes)
}

// bounds returns the inclusive slice positions covering [start, stop]
func (idx *RangeIndex) bounds(start, stop int) (int, int) {
	left := sort.SearchInts(idx.codes, start)
	right := sort.Search(len(idx.codes), func(i int) bool { return idx.codes[i] > stop }) - 1
	return left, right
}

// Sum returns the sum of metric over accounts numbered in [start, stop].
// An empty range or an unindexed metric yields zero.
func (idx *RangeIndex) Sum(metric models.Metric, start, stop int) decimal.Decimal {
	prefix, ok := idx.prefix[metric]
	if !ok {
		return decimal.Zero
	}
	left, right := idx.bounds(start, stop)
	if left > right {
		return decimal.Zero
	}
	total := prefix[right]
	if left > 0 {
		total = total.Sub(prefix[left-1])
	}
	return total
}

// Values returns the per-account values of metric in [start, stop] in
// account order.
func (idx *RangeIndex) Values(metric models.Metric, start, stop int) []decimal.Decimal {
	values, ok := idx.values[metric]
	if !ok {
		return nil
	}
	left, right := idx.bounds(start, stop)
	if left > right {
		return nil
	}
	return values[left : right+1]
}
