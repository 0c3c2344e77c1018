// Package suppliers totals the purchases booked against each supplier.
package suppliers

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"saft-reconciliation-service/internal/models"
	"saft-reconciliation-service/pkg/logger"
)

// CostClasses are the leading digits of the cost account classes
const CostClasses = "45678"

// Purchase is the net cost booked against one supplier
type Purchase struct {
	SupplierID   string          `json:"supplier_id"`
	SupplierName string          `json:"supplier_name,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Transactions int             `json:"transactions"`
}

// IsCostAccount reports whether account belongs to classes 4 to 8. Only the
// digits of the code count, unless it has none.
func IsCostAccount(account string) bool {
	normalized := strings.TrimSpace(account)
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, normalized)
	if digits != "" {
		normalized = digits
	}
	if normalized == "" {
		return false
	}
	return strings.ContainsRune(CostClasses, rune(normalized[0]))
}

// Analyzer totals supplier purchases
type Analyzer struct {
	logger logger.Logger
}

// NewAnalyzer creates an Analyzer
func NewAnalyzer(log logger.Logger) *Analyzer {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Analyzer{logger: log.WithComponent("suppliers")}
}

// key identifies the supplier of a voucher: the id, else the name
func key(v *models.CostVoucher) string {
	if id := strings.TrimSpace(v.SupplierID); id != "" {
		return id
	}
	return strings.TrimSpace(v.SupplierName)
}

// PurchasesPerSupplier sums debit minus credit on cost accounts per
// supplier. A voucher counts as one transaction when it has at least one
// cost line. Vouchers without a supplier are skipped. Amounts are rounded
// to two decimals and the result is sorted by amount, largest first.
func (a *Analyzer) PurchasesPerSupplier(vouchers []models.CostVoucher) []Purchase {
	var order []string
	bySupplier := make(map[string]*Purchase)

	skipped := 0
	for i := range vouchers {
		voucher := &vouchers[i]
		id := key(voucher)
		if id == "" {
			skipped++
			continue
		}

		total := decimal.Zero
		hasCost := false
		for _, line := range voucher.Lines {
			if !IsCostAccount(line.Account) {
				continue
			}
			hasCost = true
			total = total.Add(line.Net())
		}
		if !hasCost {
			continue
		}

		purchase, ok := bySupplier[id]
		if !ok {
			purchase = &Purchase{SupplierID: id, Amount: decimal.Zero}
			bySupplier[id] = purchase
			order = append(order, id)
		}
		if purchase.SupplierName == "" {
			purchase.SupplierName = strings.TrimSpace(voucher.SupplierName)
		}
		purchase.Amount = purchase.Amount.Add(total)
		purchase.Transactions++
	}

	out := make([]Purchase, 0, len(order))
	for _, id := range order {
		purchase := *bySupplier[id]
		purchase.Amount = purchase.Amount.Round(2)
		out = append(out, purchase)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.GreaterThan(out[j].Amount)
		}
		return out[i].SupplierID < out[j].SupplierID
	})

	a.logger.WithFields(logger.Fields{
		"suppliers": len(out),
		"skipped":   skipped,
	}).Debug("Supplier purchase totals finished")
	return out
}
