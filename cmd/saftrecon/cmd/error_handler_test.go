package cmd

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/spf13/viper"

	"saft-reconciliation-service/pkg/errors"
	"saft-reconciliation-service/pkg/logger"
)

func newTestErrorHandler(t *testing.T, verbose bool) (*CLIErrorHandler, *bytes.Buffer) {
	t.Helper()
	viper.Reset()
	viper.Set("verbose", verbose)
	logger.SetGlobalLogger(logger.NewNop())
	t.Cleanup(viper.Reset)

	out := &bytes.Buffer{}
	return NewCLIErrorHandlerWithWriter(out), out
}

func TestHandleError_ExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		exitCode int
		contains []string
	}{
		{
			name:     "nil",
			err:      nil,
			exitCode: 0,
		},
		{
			name:     "file not found",
			err:      errors.FileError(errors.CodeFileNotFound, "/data/saldobalanse.csv", os.ErrNotExist),
			exitCode: 2,
			contains: []string{"file not found: /data/saldobalanse.csv", "Suggestion:", "File error help"},
		},
		{
			name:     "missing column",
			err:      fmt.Errorf("load: %w", errors.MissingColumnError("tb.csv", []string{"account"}, []string{"navn"})),
			exitCode: 3,
			contains: []string{"missing required columns: account", "Parse error help"},
		},
		{
			name:     "invalid organization number",
			err:      errors.ValidationError(errors.CodeInvalidOrgNumber, "orgnr", "123", nil),
			exitCode: 3,
			contains: []string{"9 digits", "Validation error help"},
		},
		{
			name:     "configuration",
			err:      errors.ConfigurationError(errors.CodeInvalidConfig, "registry.timeout", "0s", nil),
			exitCode: 4,
			contains: []string{"registry.timeout", "Configuration error help"},
		},
		{
			name:     "network",
			err:      errors.NetworkError(errors.CodeTimeout, "data.brreg.no", nil),
			exitCode: 6,
			contains: []string{"Network error help"},
		},
		{
			name: "bare summary",
			err: errors.NewErrorSummary([]*errors.AppError{
				errors.ParseError(errors.CodeInvalidData, "tb.csv", 4, "closing_debit", "x", nil),
			}),
			exitCode: 3,
			contains: []string{"Parse error help"},
		},
		{
			name:     "plain not exist",
			err:      fmt.Errorf("open: %w", os.ErrNotExist),
			exitCode: 2,
			contains: []string{"File not found"},
		},
		{
			name:     "plain permission",
			err:      fmt.Errorf("open: %w", os.ErrPermission),
			exitCode: 2,
			contains: []string{"Permission denied"},
		},
		{
			name:     "disk full",
			err:      fmt.Errorf("write: %w", syscall.ENOSPC),
			exitCode: 2,
			contains: []string{"Insufficient disk space"},
		},
		{
			name:     "generic",
			err:      stderrors.New("boom"),
			exitCode: 1,
			contains: []string{"Error: boom", "--verbose"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, out := newTestErrorHandler(t, false)

			code := handler.HandleError(tt.err)

			if code != tt.exitCode {
				t.Errorf("expected exit code %d, got %d", tt.exitCode, code)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out.String(), want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, out.String())
				}
			}
			if tt.err == nil && out.Len() != 0 {
				t.Errorf("expected no output for nil error, got %q", out.String())
			}
		})
	}
}

func TestHandleError_SummaryHints(t *testing.T) {
	collector := errors.NewRowErrorCollector(0)
	for line := 2; line <= 4; line++ {
		collector.Add(errors.InvalidAmountError("tb.csv", line, "closing_debit", "12.5.3"))
	}

	t.Run("wrapped in a parse error", func(t *testing.T) {
		handler, out := newTestErrorHandler(t, false)
		err := errors.ParseError(errors.CodeInvalidData, "tb.csv", 4, "", "", collector.Summary())

		if code := handler.HandleError(err); code != 3 {
			t.Errorf("expected exit code 3, got %d", code)
		}
		if !strings.Contains(out.String(), "3 amount cells could not be read") {
			t.Errorf("expected amount hint, got:\n%s", out.String())
		}
	})

	t.Run("bare summary lists every category", func(t *testing.T) {
		handler, out := newTestErrorHandler(t, false)
		summary := errors.NewErrorSummary([]*errors.AppError{
			errors.EncodingError("tb.csv", 9, stderrors.New("invalid UTF-8 sequence")).AppError,
			errors.ValidationError(errors.CodeInvalidOrgNumber, "orgnr", "123", nil),
		})

		handler.HandleError(summary)

		output := out.String()
		for _, want := range []string{"--encoding iso-8859-1", "Parse error help", "Validation error help"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, output)
			}
		}
		if strings.Contains(output, "Network error help") {
			t.Errorf("expected no help for absent categories, got:\n%s", output)
		}
	})
}

func TestHandleError_ContextIsSorted(t *testing.T) {
	handler, out := newTestErrorHandler(t, false)

	handler.HandleError(errors.ParseError(errors.CodeInvalidData, "tb.csv", 7, "closing_debit", "1,2,3", nil))

	output := out.String()
	column := strings.Index(output, "column:")
	line := strings.Index(output, "line:")
	if column < 0 || line < 0 {
		t.Fatalf("expected column and line context, got:\n%s", output)
	}
	if column > line {
		t.Errorf("expected context keys in sorted order, got:\n%s", output)
	}
}

func TestHandleError_VerboseShowsCause(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "saldobalanse_2024.csv"), []byte("konto\n"), 0644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	handler, out := newTestErrorHandler(t, true)
	missing := filepath.Join(tmpDir, "saldobalanse.csv")
	_, statErr := os.Stat(missing)

	handler.HandleError(errors.FileError(errors.CodeFileNotFound, missing, statErr))

	if !strings.Contains(out.String(), "Similar files found") {
		t.Errorf("expected similar file suggestions, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "saldobalanse_2024.csv") {
		t.Errorf("expected similar file name, got:\n%s", out.String())
	}

	out.Reset()
	handler.HandleError(errors.NetworkError(errors.CodeConnectionFailed, "data.brreg.no", stderrors.New("dial tcp: refused")))
	if !strings.Contains(out.String(), "Underlying error: dial tcp: refused") {
		t.Errorf("expected underlying error, got:\n%s", out.String())
	}
}

func TestFormatFileError(t *testing.T) {
	message := FormatFileError("/data/tb.csv", os.ErrPermission)

	if !strings.Contains(message, "Error with file 'tb.csv'") {
		t.Errorf("expected file name, got:\n%s", message)
	}
	if !strings.Contains(message, "Path: /data/tb.csv") {
		t.Errorf("expected path, got:\n%s", message)
	}
	if !strings.Contains(message, "read access") {
		t.Errorf("expected permission suggestion, got:\n%s", message)
	}
}
