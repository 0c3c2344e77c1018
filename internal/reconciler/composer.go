package reconciler

import (
	"github.com/shopspring/decimal"

	"saft-reconciliation-service/internal/aggregate"
	"saft-reconciliation-service/internal/registry"
)

// RowStatus is the verdict of a comparison row
type RowStatus string

const (
	StatusOK        RowStatus = "ok"
	StatusDeviation RowStatus = "deviation"
	StatusUnknown   RowStatus = "unknown"
)

// DefaultTolerance is the largest absolute difference still reported as OK
var DefaultTolerance = decimal.NewFromInt(2)

// ComparisonRow pairs an internally computed figure with the figure filed
// with the registry. Difference is internal minus external and has no value
// when either side is missing.
type ComparisonRow struct {
	Label      string              `json:"label"`
	Internal   decimal.NullDecimal `json:"internal"`
	External   decimal.NullDecimal `json:"external"`
	Difference decimal.NullDecimal `json:"difference"`
	Status     RowStatus           `json:"status"`
}

// Composer builds comparison rows
type Composer struct {
	Tolerance decimal.Decimal
}

// NewComposer creates a Composer. A negative tolerance uses DefaultTolerance.
func NewComposer(tolerance decimal.Decimal) *Composer {
	if tolerance.IsNegative() {
		tolerance = DefaultTolerance
	}
	return &Composer{Tolerance: tolerance}
}

// Compose returns the fixed comparison rows: revenue, EBIT, net result,
// assets, equity and liabilities. Assets and liabilities use the registry
// presentation of the summary.
func (c *Composer) Compose(summary *aggregate.Summary, metrics *registry.Metrics) []ComparisonRow {
	internal := func(get func(*aggregate.Summary) decimal.Decimal) decimal.NullDecimal {
		if summary == nil {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(get(summary))
	}
	external := func(get func(*registry.Metrics) decimal.NullDecimal) decimal.NullDecimal {
		if metrics == nil {
			return decimal.NullDecimal{}
		}
		return get(metrics)
	}

	return []ComparisonRow{
		c.Row("Revenue",
			internal(func(s *aggregate.Summary) decimal.Decimal { return s.Revenue }),
			external(func(m *registry.Metrics) decimal.NullDecimal { return m.Revenue })),
		c.Row("EBIT",
			internal(func(s *aggregate.Summary) decimal.Decimal { return s.EBIT }),
			external(func(m *registry.Metrics) decimal.NullDecimal { return m.EBIT })),
		c.Row("Net result",
			internal(func(s *aggregate.Summary) decimal.Decimal { return s.NetResult }),
			external(func(m *registry.Metrics) decimal.NullDecimal { return m.NetResult })),
		c.Row("Assets",
			internal(func(s *aggregate.Summary) decimal.Decimal { return s.AssetsRegistry }),
			external(func(m *registry.Metrics) decimal.NullDecimal { return m.Assets })),
		c.Row("Equity",
			internal(func(s *aggregate.Summary) decimal.Decimal { return s.Equity }),
			external(func(m *registry.Metrics) decimal.NullDecimal { return m.Equity })),
		c.Row("Liabilities",
			internal(func(s *aggregate.Summary) decimal.Decimal { return s.LiabilitiesRegistry }),
			external(func(m *registry.Metrics) decimal.NullDecimal { return m.Liabilities })),
	}
}

// Row builds one comparison row
func (c *Composer) Row(label string, internal, external decimal.NullDecimal) ComparisonRow {
	row := ComparisonRow{
		Label:    label,
		Internal: internal,
		External: external,
		Status:   StatusUnknown,
	}
	if !internal.Valid || !external.Valid {
		return row
	}

	diff := internal.Decimal.Sub(external.Decimal)
	row.Difference = decimal.NewNullDecimal(diff)
	if diff.Abs().LessThanOrEqual(c.Tolerance) {
		row.Status = StatusOK
	} else {
		row.Status = StatusDeviation
	}
	return row
}
