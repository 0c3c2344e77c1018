package errors

import (
	"fmt"
	"path/filepath"
	"strings"
)

// RowLocation points at a cell in an imported SAF-T table
type RowLocation struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   string `json:"column,omitempty"`
	Value    string `json:"value,omitempty"`
	Expected string `json:"expected,omitempty"`
}

// RowError is a parse problem tied to a single row of an import
type RowError struct {
	*AppError
	Location    *RowLocation `json:"location"`
	Recoverable bool         `json:"recoverable"`
	Examples    []string     `json:"examples,omitempty"`
}

// Error implements the error interface with the row location appended
func (e *RowError) Error() string {
	parts := []string{e.AppError.Error()}

	if e.Location != nil {
		location := fmt.Sprintf("at %s", filepath.Base(e.Location.File))
		if e.Location.Line > 0 {
			location += fmt.Sprintf(":%d", e.Location.Line)
		}
		if e.Location.Column != "" {
			location += fmt.Sprintf(" column '%s'", e.Location.Column)
		}
		parts = append(parts, location)
	}

	return strings.Join(parts, " ")
}

// Unwrap exposes the embedded AppError to errors.As
func (e *RowError) Unwrap() error {
	return e.AppError
}

// Detail returns a multi-line description for terminal output
func (e *RowError) Detail() string {
	lines := []string{fmt.Sprintf("ERROR: %s", e.Message)}

	if e.Location != nil {
		lines = append(lines, fmt.Sprintf("  → File: %s", e.Location.File))
		if e.Location.Line > 0 {
			lines = append(lines, fmt.Sprintf("  → Line: %d", e.Location.Line))
		}
		if e.Location.Column != "" {
			lines = append(lines, fmt.Sprintf("  → Column: %s", e.Location.Column))
		}
		if e.Location.Value != "" {
			lines = append(lines, fmt.Sprintf("  → Value: '%s'", e.Location.Value))
		}
		if e.Location.Expected != "" {
			lines = append(lines, fmt.Sprintf("  → Expected: %s", e.Location.Expected))
		}
	}

	if e.Suggestion != "" {
		lines = append(lines, fmt.Sprintf("  → Suggestion: %s", e.Suggestion))
	}

	if len(e.Examples) > 0 {
		lines = append(lines, fmt.Sprintf("  → Examples: %s", strings.Join(e.Examples, ", ")))
	}

	return strings.Join(lines, "\n")
}

func newRowError(code ErrorCode, loc *RowLocation, message string, cause error) *RowError {
	var base *AppError
	if cause != nil {
		base = Wrap(cause, CategoryParse, code, message)
	} else {
		base = New(CategoryParse, code, message)
	}

	if loc != nil {
		base.WithContext("file", loc.File).
			WithContext("line", loc.Line).
			WithContext("column", loc.Column).
			WithContext("value", loc.Value)
	}

	return &RowError{AppError: base, Location: loc, Recoverable: true}
}

// InvalidAmountError reports a debit, credit or net cell that is not numeric
func InvalidAmountError(file string, line int, column, value string) *RowError {
	err := newRowError(CodeInvalidAmount, &RowLocation{
		File:     file,
		Line:     line,
		Column:   column,
		Value:    value,
		Expected: "decimal amount",
	}, "invalid amount", nil)
	err.Examples = []string{"1234,50", "1 234.50", "(500)", "-500"}
	err.WithSuggestion("amounts may use comma or dot as decimal separator and spaces as grouping")
	return err
}

// MissingColumnError reports required headers absent from the header row
func MissingColumnError(file string, expected, actual []string) *RowError {
	missing := findMissingColumns(expected, actual)

	err := newRowError(CodeMissingColumn, &RowLocation{
		File:     file,
		Line:     1,
		Expected: fmt.Sprintf("columns: %s", strings.Join(expected, ", ")),
	}, fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")), nil)
	err.Recoverable = false
	err.WithSuggestion("export the table with headers or map the columns with aliases")
	return err
}

// EncodingError reports input that cannot be decoded with the chosen charset
func EncodingError(file string, line int, cause error) *RowError {
	err := newRowError(CodeEncodingError, &RowLocation{File: file, Line: line}, "file encoding error", cause)
	err.Recoverable = false
	err.WithSuggestion("use --encoding to select iso-8859-1 or windows-1252")
	return err
}

// RowErrorCollector gathers row errors until a limit is reached
type RowErrorCollector struct {
	errors    []*RowError
	maxErrors int
}

// NewRowErrorCollector creates a collector that stops accepting after maxErrors
func NewRowErrorCollector(maxErrors int) *RowErrorCollector {
	return &RowErrorCollector{maxErrors: maxErrors}
}

// Add records err and reports whether parsing may continue
func (c *RowErrorCollector) Add(err *RowError) bool {
	if err == nil {
		return true
	}

	c.errors = append(c.errors, err)
	if c.maxErrors > 0 && len(c.errors) >= c.maxErrors {
		return false
	}
	return err.Recoverable
}

// HasErrors returns true if any errors have been collected
func (c *RowErrorCollector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all collected errors
func (c *RowErrorCollector) Errors() []*RowError {
	return c.errors
}

// Summary returns an ErrorSummary over the collected errors
func (c *RowErrorCollector) Summary() *ErrorSummary {
	base := make([]*AppError, len(c.errors))
	for i, err := range c.errors {
		base[i] = err.AppError
	}
	return NewErrorSummary(base)
}

func findMissingColumns(expected, actual []string) []string {
	actualSet := make(map[string]bool)
	for _, col := range actual {
		actualSet[strings.ToLower(strings.TrimSpace(col))] = true
	}

	var missing []string
	for _, col := range expected {
		if !actualSet[strings.ToLower(strings.TrimSpace(col))] {
			missing = append(missing, col)
		}
	}

	return missing
}

// FormatRowErrors renders errors grouped by file for the CLI
func FormatRowErrors(errs []*RowError) string {
	if len(errs) == 0 {
		return "No parse errors"
	}

	if len(errs) == 1 {
		return errs[0].Detail()
	}

	lines := []string{fmt.Sprintf("Found %d parse errors:", len(errs))}

	var files []string
	byFile := make(map[string][]*RowError)
	for _, err := range errs {
		file := "unknown"
		if err.Location != nil {
			file = filepath.Base(err.Location.File)
		}
		if _, seen := byFile[file]; !seen {
			files = append(files, file)
		}
		byFile[file] = append(byFile[file], err)
	}

	const maxDetailed = 3
	for _, file := range files {
		fileErrors := byFile[file]
		lines = append(lines, "", fmt.Sprintf("File: %s (%d errors)", file, len(fileErrors)))
		for i, err := range fileErrors {
			if i == maxDetailed {
				lines = append(lines, "", fmt.Sprintf("... and %d more errors in this file", len(fileErrors)-maxDetailed))
				break
			}
			lines = append(lines, "", err.Detail())
		}
	}

	return strings.Join(lines, "\n")
}
