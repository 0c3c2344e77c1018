package aggregate

import (
	"github.com/shopspring/decimal"

	"saft-reconciliation-service/internal/models"
)

// Summary is the NS4102 key-figure set derived from a trial balance.
//
// Liabilities nets debit balances on 21xx-29xx against credit balances.
// The registry variants instead move those debit balances to assets, the
// way annual accounts filed with the registry present them.
type Summary struct {
	Revenue      decimal.Decimal `json:"revenue"`
	COGS         decimal.Decimal `json:"cogs"`
	Payroll      decimal.Decimal `json:"payroll"`
	Depreciation decimal.Decimal `json:"depreciation"`
	OtherOpex    decimal.Decimal `json:"other_opex"`
	EBITDA       decimal.Decimal `json:"ebitda"`
	EBIT         decimal.Decimal `json:"ebit"`
	NetFinancial decimal.Decimal `json:"net_financial"`
	Tax          decimal.Decimal `json:"tax"`
	EBT          decimal.Decimal `json:"ebt"`
	NetResult    decimal.Decimal `json:"net_result"`

	Assets      decimal.Decimal `json:"assets"`
	Equity      decimal.Decimal `json:"equity"`
	Liabilities decimal.Decimal `json:"liabilities"`
	BalanceDiff decimal.Decimal `json:"balance_diff"`

	AssetsRegistry      decimal.Decimal `json:"assets_registry"`
	LiabilitiesRegistry decimal.Decimal `json:"liabilities_registry"`
	BalanceDiffRegistry decimal.Decimal `json:"balance_diff_registry"`

	// ReclassifiedLiabilities is the debit part of 21xx-29xx closing nets
	ReclassifiedLiabilities decimal.Decimal `json:"reclassified_liabilities"`
}

// Summarize builds a RangeIndex over tb and derives its Summary
func Summarize(tb *models.TrialBalance) Summary {
	return NewRangeIndex(tb).Summary()
}

// Summary derives the NS4102 key figures from the index. With no numbered
// accounts every figure is zero.
func (idx *RangeIndex) Summary() Summary {
	change := func(start, stop int) decimal.Decimal {
		return idx.Sum(models.MetricChange, start, stop)
	}
	closing := func(start, stop int) decimal.Decimal {
		return idx.Sum(models.MetricClosingNet, start, stop)
	}

	var s Summary
	if idx.Len() == 0 {
		return s
	}

	s.Revenue = change(3000, 3999).Neg()
	s.COGS = change(4000, 4999)
	s.Payroll = change(5000, 5999)
	s.Depreciation = change(6000, 6099).Add(change(7800, 7899))
	s.OtherOpex = change(6100, 7999).Sub(change(7800, 7899))
	s.EBITDA = s.Revenue.Sub(s.COGS.Add(s.Payroll).Add(s.OtherOpex))
	s.EBIT = s.EBITDA.Sub(s.Depreciation)
	s.NetFinancial = change(8000, 8299).Add(change(8400, 8899)).Neg()
	s.Tax = change(8300, 8399)
	s.EBT = s.EBIT.Add(s.NetFinancial)
	s.NetResult = s.EBT.Sub(s.Tax)

	s.Assets = closing(1000, 1399).Add(closing(1400, 1999))
	s.Equity = closing(2000, 2099).Neg()

	credit, debit := decimal.Zero, decimal.Zero
	for _, v := range idx.Values(models.MetricClosingNet, 2100, 2999) {
		switch v.Sign() {
		case -1:
			credit = credit.Sub(v)
		case 1:
			debit = debit.Add(v)
		}
	}
	s.Liabilities = credit.Sub(debit)
	s.BalanceDiff = s.Assets.Sub(s.Equity.Add(s.Liabilities))

	s.AssetsRegistry = s.Assets.Add(debit)
	s.LiabilitiesRegistry = credit
	s.BalanceDiffRegistry = s.AssetsRegistry.Sub(s.Equity.Add(s.LiabilitiesRegistry))
	s.ReclassifiedLiabilities = debit

	return s
}
