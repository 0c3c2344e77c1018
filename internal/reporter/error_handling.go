package reporter

import (
	"fmt"
	"io"
	"os"

	"saft-reconciliation-service/internal/reconciler"
	"saft-reconciliation-service/pkg/errors"
	"saft-reconciliation-service/pkg/logger"
)

// SafeReportGenerator checks a result before rendering it and turns write
// failures into application errors. A failed report is never replaced by
// another format, since JSON and CSV output is read by other programs.
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a SafeReportGenerator
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "report_config", config, err).
			WithSuggestion("Check the report configuration values")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// GenerateReportSafely validates result and writer and renders the report
func (srg *SafeReportGenerator) GenerateReportSafely(result *reconciler.Result, writer io.Writer) error {
	log := srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": describeWriter(writer),
	})
	log.Info("Starting report generation")

	if err := srg.validate(result, writer); err != nil {
		log.WithError(err).Error("Report generation failed: validation")
		return err
	}

	if err := srg.GenerateReport(result, writer); err != nil {
		wrapped := writeError(err, writer)
		log.WithError(wrapped).Error("Report generation failed")
		return wrapped
	}

	log.Info("Report generation completed successfully")
	return nil
}

func (srg *SafeReportGenerator) validate(result *reconciler.Result, writer io.Writer) error {
	if result == nil {
		return errors.ValidationError(errors.CodeMissingField, "result", nil, nil).
			WithSuggestion("Provide the result of an analysis run")
	}
	if writer == nil {
		return errors.ValidationError(errors.CodeMissingField, "writer", nil, nil).
			WithSuggestion("Provide a valid output writer")
	}

	switch srg.config.Format {
	case FormatJSON:
		if result.DatasetID == "" {
			return errors.ValidationError(errors.CodeMissingField, "dataset_id", nil, nil).
				WithSuggestion("Generate reports from the result of Session.Analyze")
		}
	case FormatCSV:
		if result.AccountCount == 0 {
			srg.logger.Warn("No accounts available for CSV output")
		}
	}
	return nil
}

// writeError classifies a rendering failure. Permission problems on a file
// destination become file errors; anything else is internal.
func writeError(err error, writer io.Writer) error {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}
	if file, ok := writer.(*os.File); ok && os.IsPermission(err) {
		return errors.FileError(errors.CodeFilePermission, file.Name(), err)
	}
	return errors.InternalError(errors.CodeUnexpectedError, "report_generation", err).
		WithSuggestion("Check the output destination and free disk space")
}

func describeWriter(writer io.Writer) string {
	if file, ok := writer.(*os.File); ok && file.Name() != "" {
		return fmt.Sprintf("file:%s", file.Name())
	}
	return fmt.Sprintf("writer:%T", writer)
}
