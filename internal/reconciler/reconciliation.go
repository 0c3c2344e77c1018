package reconciler

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"saft-reconciliation-service/internal/aggregate"
	"saft-reconciliation-service/internal/assets"
	"saft-reconciliation-service/internal/ledger"
	"saft-reconciliation-service/internal/registry"
	"saft-reconciliation-service/internal/suppliers"
	"saft-reconciliation-service/internal/vat"
)

// Config holds the tunables of an analysis run
type Config struct {
	// VAT deviation options
	MinimumObservations int

	// Asset options
	CapitalizationThreshold  decimal.Decimal
	PerVoucherCapitalization bool
	NetReversals             bool

	// Comparison options
	Tolerance decimal.Decimal
}

// DefaultConfig returns the default analysis configuration
func DefaultConfig() *Config {
	return &Config{
		MinimumObservations:     vat.MinimumObservationsFloor,
		CapitalizationThreshold: assets.DefaultCapitalizationThreshold,
		Tolerance:               DefaultTolerance,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.MinimumObservations < 0 {
		return fmt.Errorf("minimum observations must not be negative, got %d", c.MinimumObservations)
	}
	if !c.CapitalizationThreshold.IsPositive() {
		return fmt.Errorf("capitalization threshold must be positive, got %s", c.CapitalizationThreshold)
	}
	if c.Tolerance.IsNegative() {
		return fmt.Errorf("comparison tolerance must not be negative, got %s", c.Tolerance)
	}
	return nil
}

// Request describes one analysis run
type Request struct {
	// Source names the trial balance input, for logs and reports
	Source string

	TrialBalance ledger.Table
	// Vouchers is optional; without it the voucher-based checks are skipped
	Vouchers ledger.Table
	// OrgNumber is optional; without it no registry comparison is made
	OrgNumber string
}

// Validate validates the request
func (r *Request) Validate() error {
	if r.TrialBalance == nil {
		return fmt.Errorf("a trial balance table is required")
	}
	if r.OrgNumber != "" {
		if _, err := registry.NormalizeOrgNumber(r.OrgNumber); err != nil {
			return err
		}
	}
	return nil
}

// Result contains everything one analysis run produced
type Result struct {
	DatasetID   string    `json:"dataset_id"`
	Source      string    `json:"source,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`

	AccountCount int `json:"account_count"`
	VoucherCount int `json:"voucher_count"`

	// Control is the sum of all closing nets; zero when balanced
	Control  decimal.Decimal `json:"control"`
	Balanced bool            `json:"balanced"`

	Summary aggregate.Summary       `json:"summary"`
	Balance []aggregate.AnalysisRow `json:"balance"`
	Income  []aggregate.AnalysisRow `json:"income"`

	VATDeviations []vat.Deviation      `json:"vat_deviations,omitempty"`
	VATSummary    []vat.AccountSummary `json:"vat_summary,omitempty"`

	Disposals                []assets.Movement                `json:"disposals,omitempty"`
	BalanceIncreases         []assets.Movement                `json:"balance_increases,omitempty"`
	Accessions               []assets.Accession               `json:"accessions,omitempty"`
	AccessionSummary         []assets.AccessionSummary        `json:"accession_summary,omitempty"`
	CapitalizationCandidates []assets.CapitalizationCandidate `json:"capitalization_candidates,omitempty"`

	SupplierPurchases []suppliers.Purchase `json:"supplier_purchases,omitempty"`

	Comparison *Comparison `json:"comparison,omitempty"`

	Preprocessing *PreprocessingStats `json:"preprocessing,omitempty"`
	Warnings      []string            `json:"warnings,omitempty"`
}

// Comparison is the registry side of an analysis
type Comparison struct {
	OrgNumber string `json:"orgnr"`
	// Available is false when the registry could not supply the accounts
	Available bool   `json:"available"`
	Message   string `json:"message,omitempty"`
	FromCache bool   `json:"from_cache"`

	Rows    []ComparisonRow         `json:"rows,omitempty"`
	Metrics *registry.Metrics       `json:"metrics,omitempty"`
	Status  *registry.CompanyStatus `json:"status,omitempty"`
}

// AddWarning records a warning on the result
func (r *Result) AddWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
