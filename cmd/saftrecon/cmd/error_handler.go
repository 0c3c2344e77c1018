package cmd

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/viper"

	"saft-reconciliation-service/pkg/errors"
	"saft-reconciliation-service/pkg/logger"
)

// CLIErrorHandler turns command errors into terminal output and exit codes
type CLIErrorHandler struct {
	logger  logger.Logger
	out     io.Writer
	verbose bool
}

// NewCLIErrorHandler creates a handler writing to stderr
func NewCLIErrorHandler() *CLIErrorHandler {
	return NewCLIErrorHandlerWithWriter(os.Stderr)
}

// NewCLIErrorHandlerWithWriter creates a handler writing to out
func NewCLIErrorHandlerWithWriter(out io.Writer) *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		out:     out,
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints err and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	if appErr, ok := errors.AsAppError(err); ok {
		return h.handleAppError(appErr)
	}

	var summary *errors.ErrorSummary
	if stderrors.As(err, &summary) {
		return h.handleSummary(summary)
	}

	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleAppError(err *errors.AppError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			if value := err.Context[key]; value != nil && value != "" {
				fmt.Fprintf(h.out, "  %s: %v\n", key, value)
			}
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	var summary *errors.ErrorSummary
	if stderrors.As(err.Cause, &summary) {
		h.printSummaryHints(summary)
	}

	fmt.Fprintf(h.out, "\n%s\n", getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		if path, ok := err.Context["file_path"].(string); ok && err.Code == errors.CodeFileNotFound {
			fmt.Fprintf(h.out, "\n%s", FormatFileError(path, err.Cause))
		} else {
			fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
		}
	}

	return err.GetExitCode()
}

// summaryCategories orders the help sections printed for a summary
var summaryCategories = []errors.ErrorCategory{
	errors.CategoryFile,
	errors.CategoryParse,
	errors.CategoryValidation,
	errors.CategoryConfiguration,
	errors.CategoryAnalysis,
	errors.CategoryNetwork,
	errors.CategoryInternal,
}

// handleSummary reports a bare summary of row errors
func (h *CLIErrorHandler) handleSummary(summary *errors.ErrorSummary) int {
	fmt.Fprintf(h.out, "Error: %s\n", summary.Error())
	h.printSummaryHints(summary)
	for _, category := range summaryCategories {
		if summary.HasCategory(category) {
			fmt.Fprintf(h.out, "\n%s\n", getCategoryHelp(category))
		}
	}
	return summary.GetExitCode()
}

func (h *CLIErrorHandler) printSummaryHints(summary *errors.ErrorSummary) {
	if summary.HasCode(errors.CodeInvalidAmount) {
		fmt.Fprintf(h.out, "\n%d amount cells could not be read; amounts may use comma or dot as decimal separator\n",
			summary.ByCode[errors.CodeInvalidAmount])
	}
	if summary.HasCode(errors.CodeEncodingError) {
		fmt.Fprintf(h.out, "\nSome rows are not valid UTF-8; use --encoding iso-8859-1 or windows-1252\n")
	}
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	switch {
	case isFileNotFoundError(err):
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	case isPermissionError(err):
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	case isDiskFullError(err):
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	if !h.verbose {
		fmt.Fprintf(h.out, "\nRun with --verbose for more details\n")
	}
	return 1
}

func getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Verify the file path is correct (use absolute paths if needed)
• Ensure you have proper permissions to access the file`

	case errors.CategoryParse:
		return `Parse error help:
• Export the trial balance with a header row (konto, navn, ib, ub, ...)
• Select the file encoding with --encoding for legacy exports
• Set the field separator with --delimiter if it is not detected
• Amounts may use comma or dot decimals and space grouping`

	case errors.CategoryValidation:
		return `Validation error help:
• Organization numbers have exactly nine digits
• Check that all required columns have values
• Check that all values are within acceptable ranges`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Check SAFTRECON_* environment variables
• Use 'saftrecon analyze --help' to see all available options`

	case errors.CategoryAnalysis:
		return `Analysis error help:
• Check that the trial balance contains account numbers
• Verify that the voucher file belongs to the same company and period
• Run with --verbose to see skipped rows`

	case errors.CategoryNetwork:
		return `Network error help:
• Check connectivity to data.brreg.no
• Increase registry.timeout or registry.retries
• Cached registry answers are used when available`

	default:
		return `For more help:
• Use 'saftrecon --help' for general help
• Use 'saftrecon analyze --help' for command-specific help`
	}
}

func isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || stderrors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isPermissionError(err error) bool {
	return os.IsPermission(err) || stderrors.Is(err, os.ErrPermission) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func isDiskFullError(err error) bool {
	if stderrors.Is(err, syscall.ENOSPC) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}

// FormatFileError formats a file error with similarly named files from the
// same directory
func FormatFileError(filePath string, err error) string {
	baseName := filepath.Base(filePath)
	dir := filepath.Dir(filePath)

	var message strings.Builder
	message.WriteString(fmt.Sprintf("Error with file '%s':\n", baseName))
	message.WriteString(fmt.Sprintf("  Path: %s\n", filePath))
	message.WriteString(fmt.Sprintf("  Error: %v\n", err))

	switch {
	case isFileNotFoundError(err):
		message.WriteString("  Suggestion: Check if the file exists in the specified location\n")

		prefix := strings.ToLower(baseName[:min(len(baseName), 3)])
		if entries, dirErr := os.ReadDir(dir); dirErr == nil {
			var similar []string
			for _, entry := range entries {
				if !entry.IsDir() && strings.Contains(strings.ToLower(entry.Name()), prefix) {
					similar = append(similar, entry.Name())
				}
			}
			if len(similar) > 0 {
				message.WriteString("  Similar files found:\n")
				for _, name := range similar[:min(len(similar), 3)] {
					message.WriteString(fmt.Sprintf("    - %s\n", name))
				}
			}
		}
	case isPermissionError(err):
		message.WriteString("  Suggestion: Check file permissions - you may need read access\n")
	}

	return message.String()
}
