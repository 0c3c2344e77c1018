// Package parsers reads SAF-T style ledger exports from CSV files.
//
// Accounting systems export trial balances and voucher lines with varying
// delimiters, header spellings and character sets. The parsers in this
// package normalize those differences and hand the builders in
// internal/ledger a RecordTable with canonical column names.
//
// Parser types:
//   - TableParser: trial-balance or voucher-line files
//   - DatasetLoader: reads a trial balance and its vouchers concurrently
//
// Example usage:
//
//	parser, err := NewTableParser(TrialBalanceConfig(), &ParseConfig{HasHeader: true, Encoding: "iso-8859-1"}, log)
//	table, stats, err := parser.ParseFile(ctx, "saldobalanse.csv")
//
// Handled variations:
//   - Semicolon, comma or tab delimiters (sniffed from the header line)
//   - Norwegian and English header names
//   - UTF-8 with or without BOM, ISO-8859-1 and Windows-1252
//   - Amounts with comma decimals and space grouping
package parsers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/transform"

	"saft-reconciliation-service/pkg/errors"
	"saft-reconciliation-service/pkg/logger"
)

// encodingCheckSize is how much of a UTF-8 file is checked before parsing
const encodingCheckSize = 64 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseConfig holds configuration for CSV parsing
type ParseConfig struct {
	HasHeader bool

	// Delimiter separates fields. Zero sniffs ';', ',' or tab from the
	// first line.
	Delimiter        rune
	Comment          rune
	TrimLeadingSpace bool
	SkipEmptyRows    bool
	MaxFieldSize     int

	// Encoding names the input charset: utf-8, iso-8859-1 or windows-1252
	Encoding string

	// MaxErrors stops parsing after this many row errors. Zero means no
	// limit.
	MaxErrors int
}

// DefaultParseConfig returns a configuration with sensible defaults
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		HasHeader:        true,
		Delimiter:        0,
		Comment:          0,
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		MaxFieldSize:     1000000,
		Encoding:         EncodingUTF8,
		MaxErrors:        100,
	}
}

// Validate checks the parse configuration
func (c *ParseConfig) Validate() error {
	if c.Delimiter != 0 && (c.Delimiter == '\r' || c.Delimiter == '\n' || c.Delimiter == '"' || c.Delimiter == utf8.RuneError) {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "delimiter", string(c.Delimiter), nil).
			WithSuggestion("Use ';', ',' or a tab as delimiter")
	}
	if c.Comment != 0 && c.Comment == c.Delimiter {
		return errors.ConfigurationError(errors.CodeConfigConflict, "comment", string(c.Comment),
			fmt.Errorf("comment character equals delimiter"))
	}
	if c.MaxFieldSize < 0 {
		return errors.ConfigurationError(errors.CodeOutOfRange, "max_field_size", c.MaxFieldSize, nil)
	}
	if c.MaxErrors < 0 {
		return errors.ConfigurationError(errors.CodeOutOfRange, "max_errors", c.MaxErrors, nil)
	}
	if _, ok := LookupEncoding(c.Encoding); !ok {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "encoding", c.Encoding, nil).
			WithSuggestion(fmt.Sprintf("Supported encodings: %s", strings.Join(SupportedEncodings(), ", ")))
	}
	return nil
}

// BaseParser provides common CSV parsing functionality
type BaseParser struct {
	config *ParseConfig
	logger logger.Logger
}

// NewBaseParser creates a new BaseParser with the given configuration
func NewBaseParser(config *ParseConfig, log logger.Logger) *BaseParser {
	if config == nil {
		config = DefaultParseConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	log = log.WithComponent("base_parser")
	log.WithFields(logger.Fields{
		"has_header":     config.HasHeader,
		"delimiter":      string(config.Delimiter),
		"encoding":       config.Encoding,
		"max_field_size": config.MaxFieldSize,
	}).Debug("Created base parser")

	return &BaseParser{
		config: config,
		logger: log,
	}
}

// Config returns the parser configuration
func (bp *BaseParser) Config() *ParseConfig {
	return bp.config
}

// ParseContext holds state during parsing operations
type ParseContext struct {
	File       string
	LineNumber int
	Headers    []string
	HeaderMap  map[string]int
	ctx        context.Context
}

// NewParseContext creates a new parsing context
func NewParseContext(ctx context.Context, file string) *ParseContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ParseContext{
		File:      file,
		Headers:   make([]string, 0),
		HeaderMap: make(map[string]int),
		ctx:       ctx,
	}
}

// IsCancelled checks if the parsing context has been cancelled
func (pc *ParseContext) IsCancelled() bool {
	select {
	case <-pc.ctx.Done():
		return true
	default:
		return false
	}
}

// GetColumnIndex returns the index of a canonical column, or -1
func (pc *ParseContext) GetColumnIndex(name string) int {
	if index, exists := pc.HeaderMap[name]; exists {
		return index
	}
	return -1
}

// OpenFile opens path for reading, mapping failures to file errors
func (bp *BaseParser) OpenFile(path string) (*os.File, error) {
	bp.logger.WithField("file_path", path).Debug("Opening CSV file")

	file, err := os.Open(path)
	if err != nil {
		bp.logger.WithError(err).WithField("file_path", path).Error("Failed to open CSV file")
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.FileError(errors.CodeDirectoryError, path, err)
	}

	info, err := file.Stat()
	if err == nil && info.IsDir() {
		file.Close()
		return nil, errors.FileError(errors.CodeDirectoryError, path, fmt.Errorf("%s is a directory", path))
	}
	return file, nil
}

// NewReader wraps r in a csv.Reader that decodes the configured charset.
// UTF-8 input has its BOM removed and is checked for invalid sequences
// before any record is read.
func (bp *BaseParser) NewReader(r io.Reader, name string) (*csv.Reader, error) {
	enc, ok := LookupEncoding(bp.config.Encoding)
	if !ok {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "encoding", bp.config.Encoding, nil)
	}

	buffered := bufio.NewReaderSize(r, encodingCheckSize)
	var decoded io.Reader = buffered
	if enc == nil {
		if err := bp.validateUTF8(buffered, name); err != nil {
			return nil, err
		}
	} else {
		decoded = transform.NewReader(buffered, enc.NewDecoder())
	}

	delimiter := bp.config.Delimiter
	if delimiter == 0 {
		sniffer := bufio.NewReader(decoded)
		line, _ := sniffer.Peek(sniffSize(sniffer))
		delimiter = DetectDelimiter(string(line))
		decoded = sniffer
		bp.logger.WithFields(logger.Fields{
			"file":      name,
			"delimiter": string(delimiter),
		}).Debug("Detected delimiter")
	}

	reader := csv.NewReader(decoded)
	reader.Comma = delimiter
	reader.Comment = bp.config.Comment
	reader.TrimLeadingSpace = bp.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader, nil
}

func sniffSize(r *bufio.Reader) int {
	if r.Size() < 4096 {
		return r.Size()
	}
	return 4096
}

// validateUTF8 skips a BOM and checks the buffered head of the input
func (bp *BaseParser) validateUTF8(r *bufio.Reader, name string) error {
	if head, err := r.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		if _, err := r.Discard(len(utf8BOM)); err != nil {
			return errors.FileError(errors.CodeFileCorrupted, name, err)
		}
	}

	head, err := r.Peek(encodingCheckSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return errors.FileError(errors.CodeFileCorrupted, name, err)
	}

	// A multi-byte rune may be cut at the end of the checked window
	if len(head) == encodingCheckSize {
		for i := 1; i <= utf8.UTFMax && i <= len(head); i++ {
			if utf8.RuneStart(head[len(head)-i]) {
				if !utf8.FullRune(head[len(head)-i:]) {
					head = head[:len(head)-i]
				}
				break
			}
		}
	}
	if utf8.Valid(head) {
		return nil
	}

	line := 1 + bytes.Count(head[:firstInvalid(head)], []byte("\n"))
	bp.logger.WithFields(logger.Fields{
		"file": name,
		"line": line,
	}).Error("File is not valid UTF-8")
	return errors.EncodingError(name, line, fmt.Errorf("invalid UTF-8 sequence"))
}

func firstInvalid(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(b)
}

// ReadHeaders reads the header row and maps it to canonical names through
// aliases. Without a header row, required is used in file order.
func (bp *BaseParser) ReadHeaders(reader *csv.Reader, parseCtx *ParseContext, aliases map[string]string, required []string) error {
	if !bp.config.HasHeader {
		parseCtx.Headers = append([]string(nil), required...)
		bp.buildHeaderMap(parseCtx)
		bp.logger.WithField("default_headers", parseCtx.Headers).Debug("Using default headers")
		return nil
	}

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			bp.logger.WithField("file", parseCtx.File).Error("File is empty or contains no data")
			return errors.ValidationError(errors.CodeMissingField, "file_content", "empty", nil).
				WithSuggestion("Ensure the file contains a header row")
		}
		bp.logger.WithError(err).Error("Failed to read header row")
		return errors.ParseError(errors.CodeInvalidFormat, parseCtx.File, 1, "headers", "", err).
			WithSuggestion("Check the file format and ensure it's a valid CSV")
	}

	parseCtx.LineNumber++
	parseCtx.Headers = make([]string, len(headers))
	for i, header := range headers {
		parseCtx.Headers[i] = CanonicalColumn(header, aliases)
	}
	bp.buildHeaderMap(parseCtx)

	bp.logger.WithFields(logger.Fields{
		"file":    parseCtx.File,
		"raw":     headers,
		"headers": parseCtx.Headers,
	}).Debug("Read headers")

	var missing []string
	for _, name := range required {
		if parseCtx.GetColumnIndex(name) == -1 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		bp.logger.WithFields(logger.Fields{
			"missing_headers":   missing,
			"available_headers": parseCtx.Headers,
		}).Error("Required headers are missing")
		return errors.MissingColumnError(parseCtx.File, required, parseCtx.Headers)
	}
	return nil
}

func (bp *BaseParser) buildHeaderMap(parseCtx *ParseContext) {
	parseCtx.HeaderMap = make(map[string]int, len(parseCtx.Headers))
	for i, header := range parseCtx.Headers {
		if _, exists := parseCtx.HeaderMap[header]; !exists {
			parseCtx.HeaderMap[header] = i
		}
	}
}

// ReadRecord reads the next non-empty record. It returns io.EOF at the end
// of input.
func (bp *BaseParser) ReadRecord(reader *csv.Reader, parseCtx *ParseContext) ([]string, error) {
	for {
		if parseCtx.IsCancelled() {
			bp.logger.Debug("Record reading cancelled by context")
			return nil, errors.InternalError(errors.CodeUnexpectedError, "csv_parsing", parseCtx.ctx.Err())
		}

		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				return nil, err
			}
			bp.logger.WithError(err).WithField("line_number", parseCtx.LineNumber+1).Warn("Failed to read CSV record")
			return nil, errors.ParseError(errors.CodeInvalidFormat, parseCtx.File, parseCtx.LineNumber+1, "", "", err)
		}

		line, _ := reader.FieldPos(0)
		parseCtx.LineNumber = line

		if bp.config.SkipEmptyRows && isEmptyRecord(record) {
			bp.logger.WithField("line_number", parseCtx.LineNumber).Debug("Skipping empty record")
			continue
		}

		if bp.config.MaxFieldSize > 0 {
			for i, field := range record {
				if len(field) <= bp.config.MaxFieldSize {
					continue
				}
				column := fmt.Sprintf("field_%d", i)
				if i < len(parseCtx.Headers) {
					column = parseCtx.Headers[i]
				}
				bp.logger.WithFields(logger.Fields{
					"line_number": parseCtx.LineNumber,
					"column":      column,
					"field_size":  len(field),
					"max_size":    bp.config.MaxFieldSize,
				}).Warn("Field exceeds maximum size limit")
				return nil, errors.ParseError(errors.CodeInvalidData, parseCtx.File, parseCtx.LineNumber, column,
					truncate(field, 50), fmt.Errorf("field size limit exceeded")).
					WithSuggestion(fmt.Sprintf("Reduce field size to under %d bytes", bp.config.MaxFieldSize))
			}
		}

		return record, nil
	}
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ParseStats holds statistics about a parsing operation
type ParseStats struct {
	File           string
	TotalLines     int
	RecordsParsed  int
	RecordsSkipped int
	ErrorCount     int
	Errors         []*errors.RowError
}

// NewParseStats creates a new ParseStats instance
func NewParseStats(file string) *ParseStats {
	return &ParseStats{File: file}
}

// HasErrors returns true if there were any row errors
func (ps *ParseStats) HasErrors() bool {
	return ps.ErrorCount > 0
}

// String returns a human-readable summary of parsing statistics
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Parsed %d lines, %d records (%d skipped), %d errors",
		ps.TotalLines, ps.RecordsParsed, ps.RecordsSkipped, ps.ErrorCount)
}

// GetSampleErrors returns up to maxSamples error messages
func (ps *ParseStats) GetSampleErrors(maxSamples int) []string {
	if len(ps.Errors) == 0 {
		return nil
	}

	limit := len(ps.Errors)
	if maxSamples > 0 && maxSamples < limit {
		limit = maxSamples
	}

	samples := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		samples = append(samples, ps.Errors[i].Error())
	}
	return samples
}
