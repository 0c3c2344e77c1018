package aggregate

import (
	"github.com/shopspring/decimal"

	"saft-reconciliation-service/internal/models"
)

// AnalysisRow is one line of the balance or result report. Headers carry
// no values.
type AnalysisRow struct {
	Label    string              `json:"label"`
	Current  decimal.NullDecimal `json:"current"`
	Previous decimal.NullDecimal `json:"previous"`
	Change   decimal.NullDecimal `json:"change"`
	IsHeader bool                `json:"is_header,omitempty"`
}

var negligible = decimal.New(1, -6)

// cleanValue rounds to whole units half away from zero and snaps values
// within 1e-6 of zero to zero.
func cleanValue(v decimal.Decimal) decimal.Decimal {
	if v.Abs().LessThan(negligible) {
		return decimal.Zero
	}
	rounded := v.Round(0)
	if rounded.IsZero() {
		return decimal.Zero
	}
	return rounded
}

func makeRow(label string, current, previous decimal.Decimal) AnalysisRow {
	cur := cleanValue(current)
	prev := cleanValue(previous)
	return AnalysisRow{
		Label:    label,
		Current:  decimal.NewNullDecimal(cur),
		Previous: decimal.NewNullDecimal(prev),
		Change:   decimal.NewNullDecimal(cleanValue(cur.Sub(prev))),
	}
}

func makeHeader(label string) AnalysisRow {
	return AnalysisRow{Label: label, IsHeader: true}
}

// Analyzer builds the prefix-based balance and result reports. It reuses one
// PrefixSumHelper so the dozens of lookups per report share conversions.
type Analyzer struct {
	helper *PrefixSumHelper
}

// NewAnalyzer creates an Analyzer backed by helper. A nil helper gets a
// private one.
func NewAnalyzer(helper *PrefixSumHelper) *Analyzer {
	if helper == nil {
		helper = NewPrefixSumHelper()
	}
	return &Analyzer{helper: helper}
}

type pair struct {
	cur, prev decimal.Decimal
}

func (p pair) add(o pair) pair { return pair{p.cur.Add(o.cur), p.prev.Add(o.prev)} }
func (p pair) sub(o pair) pair { return pair{p.cur.Sub(o.cur), p.prev.Sub(o.prev)} }
func (p pair) neg() pair       { return pair{p.cur.Neg(), p.prev.Neg()} }

func (a *Analyzer) closing(tb *models.TrialBalance, prefixes ...string) pair {
	return pair{
		cur:  a.helper.Sum(tb, models.MetricClosingNet, prefixes...),
		prev: a.helper.Sum(tb, models.MetricPrevious, prefixes...),
	}
}

// Balance returns the balance-sheet report rows with a closing control
// difference between assets and equity plus liabilities.
func (a *Analyzer) Balance(tb *models.TrialBalance) []AnalysisRow {
	rows := []AnalysisRow{makeHeader("Assets")}
	var assets pair

	addAsset := func(label string, v pair) {
		assets = assets.add(v)
		rows = append(rows, makeRow(label, v.cur, v.prev))
	}

	addAsset("Intangible assets", a.closing(tb, "10"))
	addAsset("Land, buildings and other real property", a.closing(tb, "11"))
	addAsset("Vehicles, fixtures, machinery and the like", a.closing(tb, "12"))
	addAsset("Financial fixed assets", a.closing(tb, "13"))
	addAsset("Inventory and supplier prepayments", a.closing(tb, "14"))

	customer := a.closing(tb, "1500").add(a.closing(tb, "1580"))
	addAsset("Customer receivables", customer)
	addAsset("Other short-term receivables", a.closing(tb, "15").sub(customer))
	addAsset("VAT, grants and the like", a.closing(tb, "16"))
	addAsset("Prepaid expenses and accrued income", a.closing(tb, "17"))
	addAsset("Short-term investments", a.closing(tb, "18"))
	addAsset("Cash and bank deposits", a.closing(tb, "19"))
	rows = append(rows, makeRow("Total assets", assets.cur, assets.prev))

	rows = append(rows, makeHeader("Equity and liabilities"))
	equity := a.closing(tb, "20").neg()
	rows = append(rows, makeRow("Equity", equity.cur, equity.prev))
	provisions := a.closing(tb, "21").neg()
	rows = append(rows, makeRow("Provisions for liabilities", provisions.cur, provisions.prev))

	rows = append(rows, makeHeader("Long-term liabilities"))
	longTerm := a.closing(tb, "22").neg()
	rows = append(rows, makeRow("Other long-term liabilities", longTerm.cur, longTerm.prev))
	rows = append(rows, makeRow("Total long-term liabilities", longTerm.cur, longTerm.prev))

	rows = append(rows, makeHeader("Short-term liabilities"))
	shortTermLines := []struct{ label, prefix string }{
		{"Overdraft and other", "23"},
		{"Trade creditors", "24"},
		{"Tax payable", "25"},
		{"Withholdings", "26"},
		{"Public duties payable", "27"},
		{"Dividends", "28"},
		{"Other short-term liabilities", "29"},
	}
	var shortTerm pair
	for _, line := range shortTermLines {
		v := a.closing(tb, line.prefix).neg()
		shortTerm = shortTerm.add(v)
		rows = append(rows, makeRow(line.label, v.cur, v.prev))
	}
	rows = append(rows, makeRow("Total short-term liabilities", shortTerm.cur, shortTerm.prev))

	totalEL := equity.add(provisions).add(longTerm).add(shortTerm)
	rows = append(rows, makeRow("Total equity and liabilities", totalEL.cur, totalEL.prev))

	control := assets.sub(totalEL)
	rows = append(rows, makeHeader("Control"), makeRow("Difference", control.cur, control.prev))

	return rows
}

// Result returns the income-statement report rows ending in result before tax
func (a *Analyzer) Result(tb *models.TrialBalance) []AnalysisRow {
	rows := []AnalysisRow{makeHeader("Result")}

	otherIncome := a.closing(tb, "38").add(a.closing(tb, "39")).neg()
	totalIncome := a.closing(tb, "3").neg()
	sales := totalIncome.sub(otherIncome)
	rows = append(rows,
		makeRow("Other income", otherIncome.cur, otherIncome.prev),
		makeRow("Sales revenue", sales.cur, sales.prev),
		makeRow("Total income", totalIncome.cur, totalIncome.prev),
	)

	cogs := a.closing(tb, "4")
	payroll := a.closing(tb, "5")
	depreciation := a.closing(tb, "60")
	otherOpex := a.closing(tb, "6").sub(depreciation)
	otherCost := a.closing(tb, "7")
	financeIncome := a.closing(tb, "80").neg()
	financeCost := a.closing(tb, "81")
	rows = append(rows,
		makeRow("Cost of goods sold", cogs.cur, cogs.prev),
		makeRow("Payroll expenses", payroll.cur, payroll.prev),
		makeRow("Depreciation and write-downs", depreciation.cur, depreciation.prev),
		makeRow("Other operating expenses", otherOpex.cur, otherOpex.prev),
		makeRow("Other expenses", otherCost.cur, otherCost.prev),
		makeRow("Financial income", financeIncome.cur, financeIncome.prev),
		makeRow("Financial expenses", financeCost.cur, financeCost.prev),
	)

	beforeTax := totalIncome.
		sub(cogs).sub(payroll).sub(depreciation).sub(otherOpex).sub(otherCost).
		add(financeIncome).sub(financeCost)
	rows = append(rows, makeRow("Result before tax", beforeTax.cur, beforeTax.prev))

	return rows
}
