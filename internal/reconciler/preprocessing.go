package reconciler

import (
	"fmt"
	"strings"
	"time"

	"saft-reconciliation-service/internal/models"
	"saft-reconciliation-service/pkg/logger"
)

// DataPreprocessor cleans a freshly built dataset before it is activated
type DataPreprocessor struct {
	config *PreprocessingConfig
	logger logger.Logger
}

// PreprocessingConfig contains configuration for dataset preprocessing
type PreprocessingConfig struct {
	// DropEmptyAccounts removes rows without an account code whose amounts
	// are all zero, such as blank separator lines in spreadsheet exports
	DropEmptyAccounts bool

	// DropEmptyLines removes voucher lines without an account and without
	// amounts
	DropEmptyLines bool

	// DropInvalidVouchers removes vouchers failing CostVoucher.Validate
	DropInvalidVouchers bool

	// RemoveDuplicateVouchers keeps the first of vouchers sharing a reference
	// and identical lines
	RemoveDuplicateVouchers bool
}

// DefaultPreprocessingConfig returns the default preprocessing configuration
func DefaultPreprocessingConfig() *PreprocessingConfig {
	return &PreprocessingConfig{
		DropEmptyAccounts:       true,
		DropEmptyLines:          true,
		DropInvalidVouchers:     false,
		RemoveDuplicateVouchers: false,
	}
}

// PreprocessingStats contains statistics about preprocessing operations
type PreprocessingStats struct {
	AccountsProcessed int           `json:"accounts_processed"`
	AccountsRemoved   int           `json:"accounts_removed"`
	VouchersProcessed int           `json:"vouchers_processed"`
	VouchersRemoved   int           `json:"vouchers_removed"`
	LinesRemoved      int           `json:"lines_removed"`
	ValidationErrors  []string      `json:"validation_errors,omitempty"`
	ProcessingTime    time.Duration `json:"processing_time"`
}

// Merge adds other to s and returns s
func (s *PreprocessingStats) Merge(other *PreprocessingStats) *PreprocessingStats {
	if other == nil {
		return s
	}
	s.AccountsProcessed += other.AccountsProcessed
	s.AccountsRemoved += other.AccountsRemoved
	s.VouchersProcessed += other.VouchersProcessed
	s.VouchersRemoved += other.VouchersRemoved
	s.LinesRemoved += other.LinesRemoved
	s.ValidationErrors = append(s.ValidationErrors, other.ValidationErrors...)
	s.ProcessingTime += other.ProcessingTime
	return s
}

// NewDataPreprocessor creates a new data preprocessor
func NewDataPreprocessor(config *PreprocessingConfig, log logger.Logger) *DataPreprocessor {
	if config == nil {
		config = DefaultPreprocessingConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &DataPreprocessor{
		config: config,
		logger: log.WithComponent("preprocessor"),
	}
}

// PreprocessTrialBalance returns a new TrialBalance without empty rows. The
// input is not modified.
func (dp *DataPreprocessor) PreprocessTrialBalance(tb *models.TrialBalance) (*models.TrialBalance, *PreprocessingStats) {
	start := time.Now()
	stats := &PreprocessingStats{AccountsProcessed: tb.Len()}
	if tb == nil {
		return models.NewTrialBalance(nil), stats
	}

	accounts := make([]models.LedgerAccount, 0, len(tb.Accounts))
	for _, acct := range tb.Accounts {
		if dp.config.DropEmptyAccounts && isEmptyAccount(&acct) {
			stats.AccountsRemoved++
			continue
		}
		accounts = append(accounts, acct)
	}

	stats.ProcessingTime = time.Since(start)
	if stats.AccountsRemoved > 0 {
		dp.logger.WithField("removed", stats.AccountsRemoved).Debug("Removed empty trial balance rows")
	}
	return models.NewTrialBalance(accounts), stats
}

func isEmptyAccount(acct *models.LedgerAccount) bool {
	if acct.TrimmedCode() != "" {
		return false
	}
	return acct.OpeningDebit.IsZero() && acct.OpeningCredit.IsZero() &&
		acct.ClosingDebit.IsZero() && acct.ClosingCredit.IsZero() &&
		acct.OpeningNet().IsZero() && acct.ClosingNet().IsZero()
}

// PreprocessVouchers normalizes vouchers and applies the configured
// cleaning steps. Validation failures are always recorded in the stats.
func (dp *DataPreprocessor) PreprocessVouchers(vouchers []models.CostVoucher) ([]models.CostVoucher, *PreprocessingStats) {
	start := time.Now()
	stats := &PreprocessingStats{VouchersProcessed: len(vouchers)}

	processed := make([]models.CostVoucher, 0, len(vouchers))
	seen := make(map[string]bool)
	for i := range vouchers {
		voucher := vouchers[i]
		voucher.Lines = dp.cleanLines(voucher.Lines, stats)

		if err := voucher.Validate(); err != nil {
			stats.ValidationErrors = append(stats.ValidationErrors, fmt.Sprintf("voucher %d: %v", i+1, err))
			if dp.config.DropInvalidVouchers {
				stats.VouchersRemoved++
				continue
			}
		}

		if dp.config.RemoveDuplicateVouchers {
			key := voucherKey(&voucher)
			if seen[key] {
				stats.VouchersRemoved++
				continue
			}
			seen[key] = true
		}

		processed = append(processed, voucher)
	}

	stats.ProcessingTime = time.Since(start)
	dp.logger.WithFields(logger.Fields{
		"vouchers":          len(processed),
		"removed":           stats.VouchersRemoved,
		"lines_removed":     stats.LinesRemoved,
		"validation_errors": len(stats.ValidationErrors),
	}).Debug("Preprocessed vouchers")
	return processed, stats
}

func (dp *DataPreprocessor) cleanLines(lines []models.VoucherLine, stats *PreprocessingStats) []models.VoucherLine {
	cleaned := make([]models.VoucherLine, 0, len(lines))
	for _, line := range lines {
		line.Account = strings.TrimSpace(line.Account)
		line.AccountName = strings.TrimSpace(line.AccountName)
		line.VATCode = strings.TrimSpace(line.VATCode)
		if dp.config.DropEmptyLines && line.Account == "" && line.Debit.IsZero() && line.Credit.IsZero() {
			stats.LinesRemoved++
			continue
		}
		cleaned = append(cleaned, line)
	}
	return cleaned
}

// voucherKey identifies a voucher by its reference, date and lines
func voucherKey(v *models.CostVoucher) string {
	var b strings.Builder
	b.WriteString(v.Reference())
	if v.Date != nil {
		b.WriteString("|" + v.Date.Format("2006-01-02"))
	}
	for _, line := range v.Lines {
		fmt.Fprintf(&b, "|%s:%s:%s", line.Account, line.Debit.String(), line.Credit.String())
	}
	return b.String()
}
