package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppError(t *testing.T) {
	tests := []struct {
		name       string
		category   ErrorCategory
		code       ErrorCode
		message    string
		cause      error
		expectCode int
	}{
		{
			name:       "file error",
			category:   CategoryFile,
			code:       CodeFileNotFound,
			message:    "file not found",
			cause:      errors.New("no such file"),
			expectCode: 2,
		},
		{
			name:       "validation error",
			category:   CategoryValidation,
			code:       CodeInvalidOrgNumber,
			message:    "bad orgnr",
			expectCode: 3,
		},
		{
			name:       "network error",
			category:   CategoryNetwork,
			code:       CodeTimeout,
			message:    "timed out",
			cause:      errors.New("deadline exceeded"),
			expectCode: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err *AppError
			if tt.cause != nil {
				err = Wrap(tt.cause, tt.category, tt.code, tt.message)
			} else {
				err = New(tt.category, tt.code, tt.message)
			}

			if err.Category != tt.category {
				t.Errorf("expected category %s, got %s", tt.category, err.Category)
			}
			if err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, err.Code)
			}
			if err.GetExitCode() != tt.expectCode {
				t.Errorf("expected exit code %d, got %d", tt.expectCode, err.GetExitCode())
			}
			if err.Error() != tt.message {
				t.Errorf("expected error string %s, got %s", tt.message, err.Error())
			}
			if tt.cause != nil && err.Unwrap() != tt.cause {
				t.Errorf("expected to unwrap to %v, got %v", tt.cause, err.Unwrap())
			}
		})
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, CategoryInternal, CodeUnexpectedError, "x") != nil {
		t.Error("expected Wrap(nil) to return nil")
	}
}

func TestAppErrorWithContext(t *testing.T) {
	err := New(CategoryFile, CodeFileNotFound, "test error").
		WithContext("file", "/path/to/file").
		WithContext("line", 42).
		WithSuggestion("check file path")

	if err.Context["file"] != "/path/to/file" {
		t.Errorf("expected file context '/path/to/file', got %v", err.Context["file"])
	}
	if err.Context["line"] != 42 {
		t.Errorf("expected line context 42, got %v", err.Context["line"])
	}

	expected := "test error (suggestion: check file path)"
	if err.Error() != expected {
		t.Errorf("expected error string '%s', got '%s'", expected, err.Error())
	}
}

func TestConstructors(t *testing.T) {
	t.Run("ValidationError for org number", func(t *testing.T) {
		err := ValidationError(CodeInvalidOrgNumber, "orgnr", "12345", nil)

		if err.Category != CategoryValidation {
			t.Errorf("expected validation category, got %s", err.Category)
		}
		if !strings.Contains(err.Message, "9 digits") {
			t.Errorf("expected message to mention 9 digits, got %s", err.Message)
		}
		if err.Context["value"] != "12345" {
			t.Errorf("expected value context, got %v", err.Context["value"])
		}
	})

	t.Run("FileError", func(t *testing.T) {
		cause := errors.New("permission denied")
		err := FileError(CodeFilePermission, "/test/tb.csv", cause)

		if err.Context["file_path"] != "/test/tb.csv" {
			t.Errorf("expected file_path context, got %v", err.Context["file_path"])
		}
		if err.Cause != cause {
			t.Errorf("expected cause to be %v, got %v", cause, err.Cause)
		}
	})

	t.Run("AnalysisError", func(t *testing.T) {
		err := AnalysisError(CodeNoDataset, "vat review", nil)
		if err.GetExitCode() != 5 {
			t.Errorf("expected exit code 5, got %d", err.GetExitCode())
		}
		if err.Suggestion == "" {
			t.Error("expected suggestion to be set")
		}
	})

	t.Run("InternalError for cache", func(t *testing.T) {
		err := InternalError(CodeCacheFailure, "open cache", errors.New("disk full"))
		if err.Context["operation"] != "open cache" {
			t.Errorf("expected operation context, got %v", err.Context["operation"])
		}
	})
}

func TestErrorSummary(t *testing.T) {
	errs := []*AppError{
		New(CategoryFile, CodeFileNotFound, "error 1"),
		New(CategoryParse, CodeInvalidFormat, "error 2"),
		New(CategoryParse, CodeInvalidData, "error 3"),
		New(CategoryNetwork, CodeTimeout, "error 4"),
	}

	summary := NewErrorSummary(errs)

	if summary.Total != 4 {
		t.Errorf("expected total 4, got %d", summary.Total)
	}
	if summary.ByCategory[CategoryParse] != 2 {
		t.Errorf("expected 2 parse errors, got %d", summary.ByCategory[CategoryParse])
	}
	if !summary.HasCode(CodeTimeout) {
		t.Error("expected timeout code")
	}
	if summary.HasCategory(CategoryConfiguration) {
		t.Error("expected no configuration errors")
	}
	if summary.GetExitCode() != 6 {
		t.Errorf("expected highest exit code 6, got %d", summary.GetExitCode())
	}
	if want := "4 errors occurred (file: 1, network: 1, parse: 2)"; summary.Error() != want {
		t.Errorf("expected %q, got %q", want, summary.Error())
	}
}

func TestEmptyErrorSummary(t *testing.T) {
	summary := NewErrorSummary(nil)

	if summary.Total != 0 {
		t.Errorf("expected total 0, got %d", summary.Total)
	}
	if summary.Error() != "no errors" {
		t.Errorf("expected 'no errors', got '%s'", summary.Error())
	}
	if summary.GetExitCode() != 0 {
		t.Errorf("expected exit code 0, got %d", summary.GetExitCode())
	}
}

func TestAsAppError(t *testing.T) {
	appErr := New(CategoryFile, CodeFileNotFound, "test")
	wrapped := fmt.Errorf("outer: %w", appErr)

	if extracted, ok := AsAppError(wrapped); !ok || extracted != appErr {
		t.Error("expected AsAppError to find the wrapped AppError")
	}
	if _, ok := AsAppError(errors.New("generic")); ok {
		t.Error("expected AsAppError to return false for generic error")
	}
	if _, ok := AsAppError(nil); ok {
		t.Error("expected AsAppError to return false for nil")
	}
	if !IsCode(wrapped, CodeFileNotFound) {
		t.Error("expected IsCode to match through wrapping")
	}
}

func TestWrapIfNeeded(t *testing.T) {
	appErr := New(CategoryFile, CodeFileNotFound, "test")
	genericErr := errors.New("generic error")

	if WrapIfNeeded(appErr, CategoryParse, CodeInvalidFormat, "wrapped") != appErr {
		t.Error("expected WrapIfNeeded to return original AppError")
	}

	result := WrapIfNeeded(genericErr, CategoryParse, CodeInvalidFormat, "wrapped")
	if result.Cause != genericErr || result.Category != CategoryParse {
		t.Error("expected WrapIfNeeded to wrap generic error")
	}

	if WrapIfNeeded(nil, CategoryParse, CodeInvalidFormat, "wrapped") != nil {
		t.Error("expected WrapIfNeeded to return nil for nil input")
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		category     ErrorCategory
		expectedCode int
	}{
		{CategoryFile, 2},
		{CategoryParse, 3},
		{CategoryValidation, 3},
		{CategoryConfiguration, 4},
		{CategoryAnalysis, 5},
		{CategoryInternal, 5},
		{CategoryNetwork, 6},
		{ErrorCategory("other"), 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			err := New(tt.category, "test_code", "test message")
			if err.GetExitCode() != tt.expectedCode {
				t.Errorf("expected exit code %d for category %s, got %d",
					tt.expectedCode, tt.category, err.GetExitCode())
			}
		})
	}
}

func TestRowErrors(t *testing.T) {
	amountErr := InvalidAmountError("/data/tb.csv", 7, "closing_debit", "12,3,4")
	if !strings.Contains(amountErr.Error(), "tb.csv:7 column 'closing_debit'") {
		t.Errorf("unexpected error string %q", amountErr.Error())
	}
	if !amountErr.Recoverable {
		t.Error("expected invalid amount to be recoverable")
	}

	missing := MissingColumnError("tb.csv", []string{"account", "closing_debit"}, []string{"Account"})
	if !strings.Contains(missing.Message, "closing_debit") || strings.Contains(missing.Message, "account,") {
		t.Errorf("unexpected missing column message %q", missing.Message)
	}

	collector := NewRowErrorCollector(2)
	if !collector.Add(amountErr) {
		t.Error("expected collector to continue after a recoverable error")
	}
	if collector.Add(amountErr) {
		t.Error("expected collector to stop at the limit")
	}
	if collector.Summary().Total != 2 {
		t.Errorf("expected 2 collected errors, got %d", collector.Summary().Total)
	}

	collector = NewRowErrorCollector(0)
	if collector.Add(missing) {
		t.Error("expected collector to stop on an unrecoverable error")
	}

	var wrapped error = fmt.Errorf("load: %w", missing)
	if !IsCode(wrapped, CodeMissingColumn) {
		t.Error("expected row error code to be visible through the chain")
	}

	out := FormatRowErrors([]*RowError{amountErr, missing})
	if !strings.Contains(out, "Found 2 parse errors") || !strings.Contains(out, "File: tb.csv (2 errors)") {
		t.Errorf("unexpected formatted output:\n%s", out)
	}
}
