package ledger

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Table is an ordered columnar container of raw ledger rows. Value reports
// false when the column does not exist, which lets builders default-fill.
type Table interface {
	Len() int
	Columns() []string
	Value(row int, column string) (string, bool)
}

// RecordTable is a Table over CSV-style records sharing one header row
type RecordTable struct {
	header  []string
	index   map[string]int
	records [][]string
}

// NewRecordTable creates a RecordTable. Header names are trimmed and the
// first occurrence of a duplicated name wins.
func NewRecordTable(header []string, records [][]string) *RecordTable {
	t := &RecordTable{
		header:  make([]string, len(header)),
		index:   make(map[string]int, len(header)),
		records: records,
	}
	for i, name := range header {
		name = strings.TrimSpace(name)
		t.header[i] = name
		if _, exists := t.index[name]; !exists {
			t.index[name] = i
		}
	}
	return t
}

// Len returns the number of records
func (t *RecordTable) Len() int {
	return len(t.records)
}

// Columns returns the header in file order
func (t *RecordTable) Columns() []string {
	return t.header
}

// Value returns the cell at row and column. Short records yield "" for the
// missing trailing cells.
func (t *RecordTable) Value(row int, column string) (string, bool) {
	idx, ok := t.index[column]
	if !ok {
		return "", false
	}
	if row < 0 || row >= len(t.records) {
		return "", true
	}
	record := t.records[row]
	if idx >= len(record) {
		return "", true
	}
	return record[idx], true
}

// MapTable is a Table over in-memory rows keyed by column name. Values may
// be strings, integers, floats or decimals.
type MapTable struct {
	columns []string
	known   map[string]bool
	rows    []map[string]interface{}
}

// NewMapTable creates a MapTable. The column list is the union of row keys
// in first-seen order unless columns is given explicitly.
func NewMapTable(rows []map[string]interface{}, columns ...string) *MapTable {
	t := &MapTable{known: make(map[string]bool), rows: rows}
	if len(columns) > 0 {
		for _, c := range columns {
			t.addColumn(c)
		}
		return t
	}
	for _, row := range rows {
		for _, c := range sortedKeys(row) {
			t.addColumn(c)
		}
	}
	return t
}

func (t *MapTable) addColumn(name string) {
	if !t.known[name] {
		t.known[name] = true
		t.columns = append(t.columns, name)
	}
}

// Len returns the number of rows
func (t *MapTable) Len() int {
	return len(t.rows)
}

// Columns returns the known columns
func (t *MapTable) Columns() []string {
	return t.columns
}

// Value renders the cell as text
func (t *MapTable) Value(row int, column string) (string, bool) {
	if !t.known[column] {
		return "", false
	}
	if row < 0 || row >= len(t.rows) {
		return "", true
	}
	v, ok := t.rows[row][column]
	if !ok || v == nil {
		return "", true
	}
	return formatCell(v), true
}

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case decimal.Decimal:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HasColumn reports whether table exposes column
func HasColumn(table Table, column string) bool {
	for _, c := range table.Columns() {
		if c == column {
			return true
		}
	}
	return false
}
