package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Options controls how tabular files are read.
type Options struct {
	// Delimiter for CSV. If 0, sniffed from the file extension (',' or '\t').
	Delimiter rune
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune // optional; if 0, auto-detect common separators (',' '.' space)
	// XLSX sheet selection. SheetName wins over SheetIndex; SheetIndex is 1-based.
	SheetName  string
	SheetIndex int
}

// DefaultOptions returns reasonable defaults for instrument exports and reference files.
func DefaultOptions() Options {
	return Options{SheetIndex: 1}
}

// ValueKind tells a measurement apart from free text and from a missing reading.
type ValueKind int

const (
	// KindEmpty is the "no reading" sentinel; it is distinct from a zero measurement.
	KindEmpty ValueKind = iota
	KindNumber
	KindText
)

// Value is a single cell. Text keeps the cell as it appeared in the file.
type Value struct {
	Kind ValueKind
	Num  float64
	Text string
}

// Empty returns the "no reading" sentinel.
func Empty() Value { return Value{Kind: KindEmpty} }

// Number wraps a numeric measurement.
func Number(f float64) Value {
	return Value{Kind: KindNumber, Num: f, Text: strconv.FormatFloat(f, 'f', -1, 64)}
}

// Text wraps a free-text cell.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// IsEmpty reports whether v carries no reading.
func (v Value) IsEmpty() bool { return v.Kind == KindEmpty }

// Float returns the numeric reading, if any.
func (v Value) Float() (float64, bool) {
	if v.Kind != KindNumber {
		return math.NaN(), false
	}
	return v.Num, true
}

// String renders the value as text; used when a column is coerced to text.
func (v Value) String() string {
	switch v.Kind {
	case KindEmpty:
		return ""
	case KindNumber:
		if v.Text != "" {
			return v.Text
		}
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	default:
		return v.Text
	}
}

// Row is one record in column order.
type Row []Value

// Get returns the cell at i, or the empty sentinel for short rows.
func (r Row) Get(i int) Value {
	if i < 0 || i >= len(r) {
		return Empty()
	}
	return r[i]
}

// Clone copies the row so partitions never share backing arrays.
func (r Row) Clone() Row {
	cp := make(Row, len(r))
	copy(cp, r)
	return cp
}

// Table is an in-memory dataset. The first two columns are identity columns
// (sequence marker and sample name), the rest are analyte measurements.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// ColumnIndex returns the index of the named column or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	want := strings.TrimSpace(name)
	for i, c := range t.Columns {
		if strings.EqualFold(strings.TrimSpace(c), want) {
			return i
		}
	}
	return -1
}

// AnalyteColumns returns the names of the measurement columns.
func (t *Table) AnalyteColumns() []string {
	if len(t.Columns) <= 2 {
		return nil
	}
	out := make([]string, len(t.Columns)-2)
	copy(out, t.Columns[2:])
	return out
}

// Empty returns a table with the same columns and no rows.
func (t *Table) Empty(name string) *Table {
	cols := make([]string, len(t.Columns))
	copy(cols, t.Columns)
	return &Table{Name: name, Columns: cols}
}

// SortByText sorts rows ascending by the text rendering of column col.
// The sort is stable so equal sample names keep their input order.
func (t *Table) SortByText(col int) {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return t.Rows[i].Get(col).String() < t.Rows[j].Get(col).String()
	})
}

// ParseValue classifies a raw cell string.
func ParseValue(s string, opt Options) Value {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Empty()
	}
	if x, ok := parseNumeric(raw, opt); ok {
		return Value{Kind: KindNumber, Num: x, Text: raw}
	}
	return Text(raw)
}

// ReadCSV reads a delimited file into a Table. The first record is the header.
func ReadCSV(path string, opt Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(path)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &Table{Name: filepath.Base(path)}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	t := &Table{Name: filepath.Base(path), Columns: cleanHeader(header)}
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read record: %w", err)
		}
		t.Rows = append(t.Rows, toRow(rec, len(t.Columns), opt))
	}
	return t, nil
}

func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		// pandas-style exports carry a BOM on the first header cell
		out[i] = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
	}
	return out
}

func toRow(rec []string, ncol int, opt Options) Row {
	row := make(Row, ncol)
	for j := 0; j < ncol; j++ {
		if j < len(rec) {
			row[j] = ParseValue(rec[j], opt)
		} else {
			row[j] = Empty()
		}
	}
	return row
}

func sniffDelimiter(path string) rune {
	name := strings.ToLower(path)
	if strings.HasSuffix(name, ".tsv") {
		return '\t'
	}
	return ','
}

func parseNumeric(s string, opt Options) (float64, bool) {
	raw := strings.ReplaceAll(s, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		if cpos >= 0 && dpos >= 0 {
			if cpos > dpos {
				dec = ','
				thou = '.'
			} else {
				dec = '.'
				thou = ','
			}
		} else if cpos >= 0 {
			dec = ','
		} else {
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	// "NaN"/"Inf" literals are not readings
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
