// Package reconciler runs trial-balance analyses.
//
// A Session holds the active dataset and the registry access. Analyze
// imports a trial balance with optional vouchers, summarizes it, runs the
// voucher checks and, when an organization number is given, compares the
// figures with the annual accounts filed in the public registry:
//
//	session, err := reconciler.OpenSession(nil, clientConfig, cacheOptions, log)
//	if err != nil {
//		return err
//	}
//	defer session.Close()
//
//	result, err := session.Analyze(ctx, &reconciler.Request{
//		Source:       "saldobalanse.csv",
//		TrialBalance: table,
//		OrgNumber:    "923609016",
//	}, func(percent int, message string) {
//		fmt.Printf("%3d%% %s\n", percent, message)
//	})
package reconciler

import (
	"context"
	stderrors "errors"
	"time"

	"saft-reconciliation-service/internal/aggregate"
	"saft-reconciliation-service/internal/assets"
	"saft-reconciliation-service/internal/registry"
	"saft-reconciliation-service/internal/suppliers"
	"saft-reconciliation-service/internal/vat"
	"saft-reconciliation-service/pkg/errors"
	"saft-reconciliation-service/pkg/logger"
)

// Analyze imports the request tables as the active dataset and runs every
// analysis that the supplied inputs allow. A registry failure never fails
// the analysis; it is reported on the Comparison instead.
func (s *Session) Analyze(ctx context.Context, req *Request, progress logger.ProgressFunc) (*Result, error) {
	tracker := logger.NewProgressTracker("analysis", s.logger, progress)
	opLogger := logger.NewOperationLogger("analysis", s.logger)

	tracker.Report(0, "Validating request")
	if req == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "request", nil, nil)
	}
	if err := req.Validate(); err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			return nil, appErr
		}
		return nil, errors.ValidationError(errors.CodeInvalidData, "request", req.Source, err).
			WithSuggestion("Provide a trial balance table and a nine digit organization number")
	}

	tracker.Report(10, "Importing dataset")
	dataset, stats, err := s.Import(req)
	if err != nil {
		opLogger.Error(err, "Dataset import failed")
		return nil, err
	}

	result := &Result{
		DatasetID:     dataset.ID,
		Source:        req.Source,
		GeneratedAt:   time.Now(),
		AccountCount:  dataset.TrialBalance.Len(),
		VoucherCount:  len(dataset.Vouchers),
		Preprocessing: stats,
	}
	for _, msg := range stats.ValidationErrors {
		result.AddWarning("%s", msg)
	}

	tracker.Report(25, "Summarizing trial balance")
	s.summarize(dataset, result)

	if err := ctx.Err(); err != nil {
		return nil, errors.AnalysisError(errors.CodeUnexpectedError, "analysis", err)
	}

	if len(dataset.Vouchers) > 0 {
		tracker.Report(45, "Checking VAT codes")
		s.checkVAT(dataset, result)

		tracker.Report(60, "Analyzing fixed assets")
		s.analyzeAssets(dataset, result)

		tracker.Report(70, "Totalling supplier purchases")
		result.SupplierPurchases = suppliers.NewAnalyzer(s.logger).PurchasesPerSupplier(dataset.Vouchers)
	} else {
		s.analyzeBalances(dataset, result)
	}

	if req.OrgNumber != "" {
		tracker.Report(75, "Comparing with registry")
		result.Comparison = s.Compare(ctx, req.OrgNumber, &result.Summary)
	}

	tracker.Complete("Analysis complete")
	opLogger.WithField("dataset_id", result.DatasetID).
		WithField("prefix_conversions", dataset.Prefix.Conversions()).
		WithField("prefix_masks", dataset.Prefix.MaskBuilds()).
		WithField("accounts", result.AccountCount).
		WithField("vouchers", result.VoucherCount).
		WithField("warnings", len(result.Warnings)).
		Success("Analysis finished")
	return result, nil
}

func (s *Session) summarize(dataset *Dataset, result *Result) {
	tb := dataset.TrialBalance
	result.Summary = dataset.Index.Summary()
	result.Control = tb.Check()
	result.Balanced = tb.IsBalanced()
	if !result.Balanced {
		unbalanced := errors.AnalysisError(errors.CodeUnbalanced, "summary", nil).
			WithContext("control", result.Control.StringFixed(2))
		result.AddWarning("trial balance does not balance: closing nets sum to %s", result.Control.StringFixed(2))
		s.logger.WithError(unbalanced).Warn("Trial balance is not balanced")
	}

	analyzer := aggregate.NewAnalyzer(dataset.Prefix)
	result.Balance = analyzer.Balance(tb)
	result.Income = analyzer.Result(tb)
}

func (s *Session) checkVAT(dataset *Dataset, result *Result) {
	detector := vat.NewDetector(s.config.MinimumObservations, s.logger)
	result.VATDeviations = detector.Find(dataset.Vouchers)
	result.VATSummary = vat.Summarize(result.VATDeviations)
}

func (s *Session) analyzeBalances(dataset *Dataset, result *Result) {
	analyzer := assets.NewAnalyzer(s.logger)
	result.Disposals = analyzer.FindDisposals(dataset.TrialBalance)
	result.BalanceIncreases = analyzer.FindBalanceIncreases(dataset.TrialBalance)
}

func (s *Session) analyzeAssets(dataset *Dataset, result *Result) {
	s.analyzeBalances(dataset, result)

	analyzer := assets.NewAnalyzer(s.logger)
	result.Accessions = analyzer.FindAccessions(dataset.Vouchers, assets.AccessionOptions{
		NetReversals: s.config.NetReversals,
		AccountNames: dataset.TrialBalance.NamesByCode(),
	})
	result.AccessionSummary = assets.SummarizeAccessions(result.Accessions)
	result.CapitalizationCandidates = analyzer.FindCapitalizationCandidates(dataset.Vouchers, assets.CapitalizationOptions{
		Threshold:  s.config.CapitalizationThreshold,
		PerVoucher: s.config.PerVoucherCapitalization,
	})
}

// Compare fetches the filed accounts and company status for orgnr and
// builds the comparison rows against summary. The returned Comparison is
// never nil; Available is false when the registry could not deliver.
func (s *Session) Compare(ctx context.Context, orgnr string, summary *aggregate.Summary) *Comparison {
	if normalized, err := registry.NormalizeOrgNumber(orgnr); err == nil {
		orgnr = normalized
	}
	comparison := &Comparison{OrgNumber: orgnr}
	log := s.logger.WithField("orgnr", orgnr)

	if s.lookup == nil {
		comparison.Message = "comparison unavailable: registry lookup is disabled"
		return comparison
	}

	composer := NewComposer(s.config.Tolerance)
	var unavailable error
	res, err := s.lookup.FetchAccounts(ctx, orgnr)
	switch {
	case err != nil:
		unavailable = err
	case !res.OK():
		unavailable = stderrors.New(res.ErrorMessage)
		comparison.FromCache = res.FromCache
	default:
		comparison.FromCache = res.FromCache
		metrics, mapErr := registry.MapMetrics(res.Data)
		if mapErr != nil {
			unavailable = mapErr
			break
		}
		comparison.Available = true
		comparison.Metrics = &metrics
		comparison.Rows = composer.Compose(summary, &metrics)
	}

	if unavailable != nil {
		comparison.Message = "comparison unavailable: " + unavailable.Error()
		comparison.Rows = composer.Compose(summary, nil)
		log.WithError(errors.AnalysisError(errors.CodeComparisonFailed, "registry comparison", unavailable)).
			Warn("Registry accounts unavailable")
	}

	status, err := s.lookup.CompanyStatus(ctx, orgnr)
	if err != nil {
		log.WithError(err).Warn("Company status lookup failed")
	} else if status.Source != "" {
		comparison.Status = &status
	}

	log.WithFields(logger.Fields{
		"available":  comparison.Available,
		"from_cache": comparison.FromCache,
	}).Info("Registry comparison finished")
	return comparison
}
