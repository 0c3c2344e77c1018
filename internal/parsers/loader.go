package parsers

import (
	"context"
	"fmt"
	"sync"

	"saft-reconciliation-service/internal/ledger"
	"saft-reconciliation-service/pkg/errors"
	"saft-reconciliation-service/pkg/logger"
)

// LoadResult holds the outcome of reading one table file
type LoadResult struct {
	Kind  TableKind
	Path  string
	Table *ledger.RecordTable
	Stats *ParseStats
	Error error
}

// LoadedDataset is a trial balance with its optional voucher lines
type LoadedDataset struct {
	TrialBalance      *ledger.RecordTable
	Vouchers          *ledger.RecordTable
	TrialBalanceStats *ParseStats
	VoucherStats      *ParseStats
}

// DatasetLoader reads the table files of one analysis concurrently
type DatasetLoader struct {
	config    *ParseConfig
	semaphore chan struct{}
	logger    logger.Logger
}

// NewDatasetLoader creates a loader running at most maxConcurrency parsers
// at once
func NewDatasetLoader(config *ParseConfig, maxConcurrency int, log logger.Logger) *DatasetLoader {
	if config == nil {
		config = DefaultParseConfig()
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 2
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &DatasetLoader{
		config:    config,
		semaphore: make(chan struct{}, maxConcurrency),
		logger:    log.WithComponent("dataset_loader"),
	}
}

// LoadConcurrently parses every file in files with the parser for its kind.
// The channel is closed once all files are done.
func (l *DatasetLoader) LoadConcurrently(ctx context.Context, files map[TableKind]string) <-chan *LoadResult {
	results := make(chan *LoadResult, len(files))

	var wg sync.WaitGroup
	for kind, path := range files {
		wg.Add(1)

		go func(kind TableKind, path string) {
			defer wg.Done()

			l.semaphore <- struct{}{}
			defer func() { <-l.semaphore }()

			result := &LoadResult{Kind: kind, Path: path}

			table := TrialBalanceConfig()
			if kind == KindVouchers {
				table = VoucherConfig()
			}
			parser, err := NewTableParser(table, l.config, l.logger)
			if err != nil {
				result.Error = err
				results <- result
				return
			}

			result.Table, result.Stats, result.Error = parser.ParseFile(ctx, path)
			results <- result
		}(kind, path)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// Load reads the trial balance at tbPath and, when voucherPath is not
// empty, the voucher lines. A trial-balance failure is reported before a
// voucher failure.
func (l *DatasetLoader) Load(ctx context.Context, tbPath, voucherPath string) (*LoadedDataset, error) {
	if tbPath == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, "trial_balance", nil, nil).
			WithSuggestion("Pass the trial balance file with --trial-balance")
	}

	files := map[TableKind]string{KindTrialBalance: tbPath}
	if voucherPath != "" {
		files[KindVouchers] = voucherPath
	}

	dataset := &LoadedDataset{}
	var tbErr, voucherErr error
	for result := range l.LoadConcurrently(ctx, files) {
		switch result.Kind {
		case KindTrialBalance:
			dataset.TrialBalance, dataset.TrialBalanceStats, tbErr = result.Table, result.Stats, result.Error
		case KindVouchers:
			dataset.Vouchers, dataset.VoucherStats, voucherErr = result.Table, result.Stats, result.Error
		}
	}

	if tbErr != nil {
		return nil, tbErr
	}
	if voucherErr != nil {
		return nil, voucherErr
	}

	l.logger.WithFields(logger.Fields{
		"trial_balance": describeStats(dataset.TrialBalanceStats),
		"vouchers":      describeStats(dataset.VoucherStats),
	}).Info("Dataset files loaded")
	return dataset, nil
}

// RowErrors returns the row errors of both tables
func (d *LoadedDataset) RowErrors() []*errors.RowError {
	var errs []*errors.RowError
	if d.TrialBalanceStats != nil {
		errs = append(errs, d.TrialBalanceStats.Errors...)
	}
	if d.VoucherStats != nil {
		errs = append(errs, d.VoucherStats.Errors...)
	}
	return errs
}

func describeStats(stats *ParseStats) string {
	if stats == nil {
		return "none"
	}
	return fmt.Sprintf("%s: %s", stats.File, stats.String())
}
