// Package reporter renders analysis results.
//
// Supported output formats:
//   - Console: aligned text tables for terminal display
//   - JSON: the result structure for programmatic consumption
//   - CSV: one flat row per figure for spreadsheet applications
//
// Console amounts are rounded commercially to whole units with a space as
// thousands separator; a missing amount renders as "—".
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{
//		Format:        reporter.FormatJSON,
//		TableMaxWidth: 120,
//	})
//	err = generator.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"saft-reconciliation-service/internal/aggregate"
	"saft-reconciliation-service/internal/reconciler"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Section options
	IncludeBalance       bool `json:"include_balance"`
	IncludeIncome        bool `json:"include_income"`
	IncludeVAT           bool `json:"include_vat"`
	IncludeAssets        bool `json:"include_assets"`
	IncludeSuppliers     bool `json:"include_suppliers"`
	IncludeComparison    bool `json:"include_comparison"`
	IncludePreprocessing bool `json:"include_preprocessing"`

	// Console formatting options
	TableMaxWidth int `json:"table_max_width"`
	// MaxListItems caps console lists; zero lists everything
	MaxListItems int `json:"max_list_items"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:               FormatConsole,
		IncludeBalance:       true,
		IncludeIncome:        true,
		IncludeVAT:           true,
		IncludeAssets:        true,
		IncludeSuppliers:     true,
		IncludeComparison:    true,
		IncludePreprocessing: false,
		TableMaxWidth:        120,
		MaxListItems:         25,
		CSVDelimiter:         ',',
		CSVHeaders:           true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.TableMaxWidth < 50 {
		return fmt.Errorf("table max width must be at least 50 characters, got %d", c.TableMaxWidth)
	}

	if c.MaxListItems < 0 {
		return fmt.Errorf("max list items must not be negative, got %d", c.MaxListItems)
	}

	return nil
}

// ReportGenerator generates analysis reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// GenerateReport writes a report of result to writer
func (rg *ReportGenerator) GenerateReport(result *reconciler.Result, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("analysis result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// errWriter remembers the first write error so console output can be
// written without checking every Fprintf
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (rg *ReportGenerator) generateConsoleReport(result *reconciler.Result, writer io.Writer) error {
	w := &errWriter{w: writer}

	w.printf("TRIAL BALANCE ANALYSIS\n")
	if result.Source != "" {
		w.printf("Source:    %s\n", result.Source)
	}
	w.printf("Dataset:   %s\n", result.DatasetID)
	w.printf("Generated: %s\n", result.GeneratedAt.Format(time.RFC3339))
	w.printf("Accounts:  %d\n", result.AccountCount)
	w.printf("Vouchers:  %d\n\n", result.VoucherCount)

	w.printf("=== SUMMARY ===\n")
	rg.printSummary(result, w)
	w.printf("\n")

	if rg.config.IncludeBalance && len(result.Balance) > 0 {
		w.printf("=== BALANCE SHEET ===\n")
		rg.printAnalysisRows(result.Balance, w)
		w.printf("\n")
	}

	if rg.config.IncludeIncome && len(result.Income) > 0 {
		w.printf("=== INCOME STATEMENT ===\n")
		rg.printAnalysisRows(result.Income, w)
		w.printf("\n")
	}

	if rg.config.IncludeComparison && result.Comparison != nil {
		w.printf("=== REGISTRY COMPARISON ===\n")
		rg.printComparison(result.Comparison, w)
		w.printf("\n")
	}

	if rg.config.IncludeVAT && len(result.VATDeviations) > 0 {
		w.printf("=== VAT CODE DEVIATIONS ===\n")
		rg.printVAT(result, w)
		w.printf("\n")
	}

	if rg.config.IncludeAssets {
		rg.printAssets(result, w)
	}

	if rg.config.IncludeSuppliers && len(result.SupplierPurchases) > 0 {
		w.printf("=== PURCHASES PER SUPPLIER ===\n")
		rg.printList(len(result.SupplierPurchases), w, func(i int) string {
			p := result.SupplierPurchases[i]
			return fmt.Sprintf("%s %s: %s (%d transactions)", p.SupplierID, orMissing(p.SupplierName), FormatAmount(p.Amount), p.Transactions)
		})
		w.printf("\n")
	}

	if len(result.Warnings) > 0 {
		w.printf("=== WARNINGS ===\n")
		for _, warning := range result.Warnings {
			w.printf("  - %s\n", warning)
		}
		w.printf("\n")
	}

	if rg.config.IncludePreprocessing && result.Preprocessing != nil {
		w.printf("=== PREPROCESSING ===\n")
		rg.printPreprocessing(result.Preprocessing, w)
	}

	return w.err
}

func (rg *ReportGenerator) generateJSONReport(result *reconciler.Result, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(rg.filterResultForOutput(result))
}

// CSVHeaders lists the columns of the CSV report
var CSVHeaders = []string{
	"Section",
	"Label",
	"Account",
	"Current",
	"Previous",
	"Difference",
	"Status",
	"Notes",
}

func (rg *ReportGenerator) generateCSVReport(result *reconciler.Result, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	var records [][]string
	if rg.config.CSVHeaders {
		records = append(records, CSVHeaders)
	}

	for _, line := range summaryLines(&result.Summary) {
		records = append(records, []string{"summary", line.label, "", csvAmount(decimal.NewNullDecimal(line.value)), "", "", "", ""})
	}
	records = append(records, []string{"summary", "Control", "", csvAmount(decimal.NewNullDecimal(result.Control)), "", "", balanceStatus(result.Balanced), ""})

	if rg.config.IncludeBalance {
		records = append(records, analysisRecords("balance", result.Balance)...)
	}
	if rg.config.IncludeIncome {
		records = append(records, analysisRecords("income", result.Income)...)
	}

	if rg.config.IncludeComparison && result.Comparison != nil {
		for _, row := range result.Comparison.Rows {
			records = append(records, []string{
				"comparison", row.Label, "",
				csvAmount(row.Internal), csvAmount(row.External), csvAmount(row.Difference),
				string(row.Status), result.Comparison.Message,
			})
		}
	}

	if rg.config.IncludeVAT {
		for _, dev := range result.VATDeviations {
			records = append(records, []string{
				"vat_deviation", dev.VoucherNumber, dev.Account,
				csvAmount(decimal.NewNullDecimal(dev.Amount)), "", "",
				dev.ObservedCode,
				fmt.Sprintf("expected %s (%d of %d); %s", dev.ExpectedCode, dev.ExpectedCount, dev.TotalCount, dev.Supplier),
			})
		}
	}

	if rg.config.IncludeAssets {
		for _, m := range result.Disposals {
			records = append(records, []string{
				"disposal", m.Name, m.Account,
				csvAmount(decimal.NewNullDecimal(m.Closing)), csvAmount(decimal.NewNullDecimal(m.Opening)),
				csvAmount(decimal.NewNullDecimal(m.Change)), "", "",
			})
		}
		for _, a := range result.Accessions {
			records = append(records, []string{
				"accession", a.Document, a.Account,
				csvAmount(decimal.NewNullDecimal(a.Amount)), "", "", "",
				strings.TrimSpace(a.Supplier + " " + formatDate(a.Date)),
			})
		}
		for _, c := range result.CapitalizationCandidates {
			records = append(records, []string{
				"capitalization", c.Document, c.Account,
				csvAmount(decimal.NewNullDecimal(c.Amount)), "", "", "",
				strings.TrimSpace(c.Supplier + " " + formatDate(c.Date)),
			})
		}
	}

	if rg.config.IncludeSuppliers {
		for _, p := range result.SupplierPurchases {
			records = append(records, []string{
				"supplier_purchase", p.SupplierName, p.SupplierID,
				csvAmount(decimal.NewNullDecimal(p.Amount)), "", "", "",
				fmt.Sprintf("%d transactions", p.Transactions),
			})
		}
	}

	for _, warning := range result.Warnings {
		records = append(records, []string{"warning", "", "", "", "", "", "", warning})
	}

	if err := csvWriter.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write CSV report: %w", err)
	}
	return nil
}

type summaryLine struct {
	label string
	value decimal.Decimal
}

func summaryLines(s *aggregate.Summary) []summaryLine {
	return []summaryLine{
		{"Revenue", s.Revenue},
		{"Cost of goods sold", s.COGS},
		{"Payroll", s.Payroll},
		{"Depreciation", s.Depreciation},
		{"Other operating expenses", s.OtherOpex},
		{"EBITDA", s.EBITDA},
		{"EBIT", s.EBIT},
		{"Net financial items", s.NetFinancial},
		{"Result before tax", s.EBT},
		{"Tax", s.Tax},
		{"Net result", s.NetResult},
		{"Assets", s.Assets},
		{"Equity", s.Equity},
		{"Liabilities", s.Liabilities},
		{"Balance difference", s.BalanceDiff},
	}
}

func analysisRecords(section string, rows []aggregate.AnalysisRow) [][]string {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		if row.IsHeader {
			continue
		}
		records = append(records, []string{
			section, row.Label, "",
			csvAmount(row.Current), csvAmount(row.Previous), csvAmount(row.Change),
			"", "",
		})
	}
	return records
}

func csvAmount(v decimal.NullDecimal) string {
	if !v.Valid {
		return ""
	}
	return v.Decimal.StringFixed(2)
}

func balanceStatus(balanced bool) string {
	if balanced {
		return "balanced"
	}
	return "unbalanced"
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// Helper methods for console output formatting

func (rg *ReportGenerator) printSummary(result *reconciler.Result, w *errWriter) {
	for _, line := range summaryLines(&result.Summary) {
		w.printf("  %-28s %16s\n", line.label, FormatAmount(line.value))
	}
	w.printf("  %-28s %16s (%s)\n", "Control", FormatAmount(result.Control), balanceStatus(result.Balanced))
}

func (rg *ReportGenerator) printAnalysisRows(rows []aggregate.AnalysisRow, w *errWriter) {
	labelWidth := rg.labelWidth(3)
	w.printf("  %-*s %16s %16s %16s\n", labelWidth, "", "Current", "Previous", "Change")
	for _, row := range rows {
		if row.IsHeader {
			w.printf("  %s\n", row.Label)
			continue
		}
		w.printf("  %-*s %16s %16s %16s\n", labelWidth, truncate(row.Label, labelWidth),
			FormatCurrency(row.Current), FormatCurrency(row.Previous), FormatCurrency(row.Change))
	}
}

func (rg *ReportGenerator) printComparison(c *reconciler.Comparison, w *errWriter) {
	w.printf("Organization number: %s\n", c.OrgNumber)
	if c.Status != nil {
		w.printf("Bankrupt: %s  Liquidating: %s  VAT registered: %s\n",
			yesNo(c.Status.Bankrupt), yesNo(c.Status.Liquidating), yesNo(c.Status.VATRegistered))
	}
	if !c.Available {
		w.printf("%s\n", c.Message)
	}
	if c.FromCache {
		w.printf("(registry figures served from cache)\n")
	}

	labelWidth := rg.labelWidth(4)
	w.printf("  %-*s %16s %16s %16s  %s\n", labelWidth, "", "Ledger", "Registry", "Difference", "Status")
	for _, row := range c.Rows {
		w.printf("  %-*s %16s %16s %16s  %s\n", labelWidth, truncate(row.Label, labelWidth),
			FormatCurrency(row.Internal), FormatCurrency(row.External), FormatCurrency(row.Difference), row.Status)
	}
}

func (rg *ReportGenerator) printVAT(result *reconciler.Result, w *errWriter) {
	w.printf("Total deviations: %d\n\n", len(result.VATDeviations))
	for _, s := range result.VATSummary {
		w.printf("  %s %s: expected %s (%d of %d), %d deviating, %s\n",
			s.Account, s.AccountName, s.ExpectedCode, s.ExpectedCount, s.TotalCount,
			s.DeviationCount, FormatAmount(s.DeviationAmount))
	}
	w.printf("\n")

	rg.printList(len(result.VATDeviations), w, func(i int) string {
		dev := result.VATDeviations[i]
		return fmt.Sprintf("%s %s %s: code %s, expected %s, %s (%s)",
			orMissing(formatDate(dev.Date)), dev.VoucherNumber, dev.Account,
			dev.ObservedCode, dev.ExpectedCode, FormatAmount(dev.Amount), dev.Supplier)
	})
}

func (rg *ReportGenerator) printAssets(result *reconciler.Result, w *errWriter) {
	if len(result.Disposals) > 0 {
		w.printf("=== ASSET DISPOSALS ===\n")
		rg.printList(len(result.Disposals), w, func(i int) string {
			m := result.Disposals[i]
			return fmt.Sprintf("%s %s: opening %s, closing %s", m.Account, m.Name, FormatAmount(m.Opening), FormatAmount(m.Closing))
		})
		w.printf("\n")
	}

	if len(result.BalanceIncreases) > 0 {
		w.printf("=== ASSET BALANCE INCREASES ===\n")
		rg.printList(len(result.BalanceIncreases), w, func(i int) string {
			m := result.BalanceIncreases[i]
			return fmt.Sprintf("%s %s: %s -> %s (+%s)", m.Account, m.Name, FormatAmount(m.Opening), FormatAmount(m.Closing), FormatAmount(m.Change))
		})
		w.printf("\n")
	}

	if len(result.AccessionSummary) > 0 {
		w.printf("=== ASSET ACCESSIONS ===\n")
		for _, s := range result.AccessionSummary {
			w.printf("  %s %s: %s\n", s.Account, s.AccountName, FormatAmount(s.Total))
		}
		w.printf("\n")
		rg.printList(len(result.Accessions), w, func(i int) string {
			a := result.Accessions[i]
			return fmt.Sprintf("%s %s %s: %s (%s)", orMissing(formatDate(a.Date)), a.Document, a.Account, FormatAmount(a.Amount), a.Supplier)
		})
		w.printf("\n")
	}

	if len(result.CapitalizationCandidates) > 0 {
		w.printf("=== CAPITALIZATION CANDIDATES ===\n")
		rg.printList(len(result.CapitalizationCandidates), w, func(i int) string {
			c := result.CapitalizationCandidates[i]
			return fmt.Sprintf("%s %s %s: %s (%s) %s", orMissing(formatDate(c.Date)), c.Document, c.Account, FormatAmount(c.Amount), c.Supplier, c.Description)
		})
		w.printf("\n")
	}
}

func (rg *ReportGenerator) printPreprocessing(stats *reconciler.PreprocessingStats, w *errWriter) {
	w.printf("Accounts Processed:   %d\n", stats.AccountsProcessed)
	w.printf("Accounts Removed:     %d\n", stats.AccountsRemoved)
	w.printf("Vouchers Processed:   %d\n", stats.VouchersProcessed)
	w.printf("Vouchers Removed:     %d\n", stats.VouchersRemoved)
	w.printf("Lines Removed:        %d\n", stats.LinesRemoved)
	w.printf("Validation Errors:    %d\n", len(stats.ValidationErrors))
	w.printf("Processing Time:      %v\n", stats.ProcessingTime)
}

// printList prints numbered items, stopping after MaxListItems
func (rg *ReportGenerator) printList(n int, w *errWriter, item func(i int) string) {
	limit := rg.config.MaxListItems
	for i := 0; i < n; i++ {
		if limit > 0 && i >= limit {
			w.printf("  ... and %d more\n", n-limit)
			return
		}
		w.printf("  %d. %s\n", i+1, item(i))
	}
}

// labelWidth leaves room for columns amount columns of 17 characters
func (rg *ReportGenerator) labelWidth(columns int) int {
	width := rg.config.TableMaxWidth - 2 - columns*17 - 10
	if width < 20 {
		return 20
	}
	if width > 40 {
		return 40
	}
	return width
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}

func yesNo(b *bool) string {
	if b == nil {
		return "unknown"
	}
	if *b {
		return "yes"
	}
	return "no"
}

func orMissing(s string) string {
	if s == "" {
		return Missing
	}
	return s
}

func (rg *ReportGenerator) filterResultForOutput(result *reconciler.Result) map[string]interface{} {
	output := map[string]interface{}{
		"dataset_id":    result.DatasetID,
		"generated_at":  result.GeneratedAt,
		"account_count": result.AccountCount,
		"voucher_count": result.VoucherCount,
		"control":       result.Control,
		"balanced":      result.Balanced,
		"summary":       result.Summary,
	}
	if result.Source != "" {
		output["source"] = result.Source
	}

	if rg.config.IncludeBalance && result.Balance != nil {
		output["balance"] = result.Balance
	}

	if rg.config.IncludeIncome && result.Income != nil {
		output["income"] = result.Income
	}

	if rg.config.IncludeComparison && result.Comparison != nil {
		output["comparison"] = result.Comparison
	}

	if rg.config.IncludeVAT && result.VATDeviations != nil {
		output["vat_deviations"] = result.VATDeviations
		output["vat_summary"] = result.VATSummary
	}

	if rg.config.IncludeAssets {
		output["disposals"] = result.Disposals
		output["balance_increases"] = result.BalanceIncreases
		output["accessions"] = result.Accessions
		output["accession_summary"] = result.AccessionSummary
		output["capitalization_candidates"] = result.CapitalizationCandidates
	}

	if rg.config.IncludeSuppliers && result.SupplierPurchases != nil {
		output["supplier_purchases"] = result.SupplierPurchases
	}

	if len(result.Warnings) > 0 {
		output["warnings"] = result.Warnings
	}

	if rg.config.IncludePreprocessing && result.Preprocessing != nil {
		output["preprocessing"] = result.Preprocessing
	}

	return output
}
