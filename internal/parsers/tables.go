package parsers

import (
	"context"
	"io"
	"strings"

	"saft-reconciliation-service/internal/ledger"
	"saft-reconciliation-service/internal/models"
	"saft-reconciliation-service/pkg/errors"
	"saft-reconciliation-service/pkg/logger"
)

// TableParser reads one ledger table into a RecordTable with canonical
// column names
type TableParser struct {
	*BaseParser
	table *TableConfig
}

// NewTableParser creates a parser for the given table layout
func NewTableParser(table *TableConfig, config *ParseConfig, log logger.Logger) (*TableParser, error) {
	if table == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "table", nil, nil)
	}
	if err := table.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "table", string(table.Kind), err)
	}
	if config == nil {
		config = DefaultParseConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	base := NewBaseParser(config, log)
	base.logger = log.WithComponent(string(table.Kind) + "_parser")
	return &TableParser{BaseParser: base, table: table}, nil
}

// Table returns the table layout
func (p *TableParser) Table() *TableConfig {
	return p.table
}

// ParseFile reads the table stored at path
func (p *TableParser) ParseFile(ctx context.Context, path string) (*ledger.RecordTable, *ParseStats, error) {
	file, err := p.OpenFile(path)
	if err != nil {
		return nil, NewParseStats(path), err
	}
	defer file.Close()

	return p.Parse(ctx, file, path)
}

// Parse reads a table from r. Unreadable amounts are collected as row
// errors in the stats; they become zero in the table, matching the
// builder's lenient amount handling. Parsing stops with an error once the
// configured error limit is reached.
func (p *TableParser) Parse(ctx context.Context, r io.Reader, name string) (*ledger.RecordTable, *ParseStats, error) {
	stats := NewParseStats(name)
	opLogger := logger.NewOperationLogger("parse_"+string(p.table.Kind), p.logger).
		WithField("file", name)

	reader, err := p.NewReader(r, name)
	if err != nil {
		opLogger.Error(err, "Could not prepare reader")
		return nil, stats, err
	}

	parseCtx := NewParseContext(ctx, name)
	if err := p.ReadHeaders(reader, parseCtx, p.table.Aliases, p.table.Required); err != nil {
		opLogger.Error(err, "Header validation failed")
		return nil, stats, err
	}
	stats.TotalLines = parseCtx.LineNumber

	type amountColumn struct {
		name  string
		index int
	}
	var amountCols []amountColumn
	for _, col := range p.table.AmountColumns {
		if idx := parseCtx.GetColumnIndex(col); idx >= 0 {
			amountCols = append(amountCols, amountColumn{col, idx})
		}
	}

	collector := errors.NewRowErrorCollector(p.config.MaxErrors)
	var records [][]string
	for {
		record, err := p.ReadRecord(reader, parseCtx)
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.TotalLines = parseCtx.LineNumber
			opLogger.Error(err, "Reading records failed")
			return nil, stats, err
		}
		stats.TotalLines = parseCtx.LineNumber

		if isSubtotalRow(record, parseCtx) {
			stats.RecordsSkipped++
			continue
		}

		trimmed := make([]string, len(record))
		for i, field := range record {
			trimmed[i] = strings.TrimSpace(field)
		}

		proceed := true
		for _, col := range amountCols {
			if col.index >= len(trimmed) || !unreadableAmount(trimmed[col.index]) {
				continue
			}
			stats.ErrorCount++
			if !collector.Add(errors.InvalidAmountError(name, parseCtx.LineNumber, col.name, trimmed[col.index])) {
				proceed = false
			}
		}
		records = append(records, trimmed)
		stats.RecordsParsed++

		if !proceed {
			stats.Errors = collector.Errors()
			err := errors.ParseError(errors.CodeInvalidData, name, parseCtx.LineNumber, "", "",
				collector.Summary()).
				WithSuggestion("Fix the reported amounts or raise the error limit")
			opLogger.Error(err, "Too many row errors")
			return nil, stats, err
		}
	}
	stats.Errors = collector.Errors()

	table := ledger.NewRecordTable(parseCtx.Headers, records)
	opLogger.WithField("records", stats.RecordsParsed).
		WithField("skipped", stats.RecordsSkipped).
		WithField("errors", stats.ErrorCount).
		Success("Parsed " + string(p.table.Kind))

	if stats.HasErrors() {
		opLogger.WithField("samples", stats.GetSampleErrors(3)).
			Warning("Some amounts could not be read and were set to zero")
	}
	return table, stats, nil
}

// unreadableAmount reports a non-blank cell that looks numeric but does not
// parse to a non-zero amount
func unreadableAmount(cell string) bool {
	if cell == "" || !models.ParseAmount(cell).IsZero() {
		return false
	}
	return strings.ContainsAny(cell, "123456789")
}

// isSubtotalRow reports summary lines such as "Sum" or "Totalt" that some
// systems append without an account number
func isSubtotalRow(record []string, parseCtx *ParseContext) bool {
	idx := parseCtx.GetColumnIndex(ledger.ColAccount)
	if idx < 0 || idx >= len(record) {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(record[idx])) {
	case "sum", "total", "totalt", "sum totalt":
		return true
	}
	return false
}
