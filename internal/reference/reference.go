// Package reference loads the control and patient reference-range tables.
//
// Control reference (kontrollwerte.csv):
//
//	controls,limits,Ala,Arg,...
//	1,min,...
//	1,max,...
//	1,mean,...
//
// Patient reference (patienten_kontrollwerte.csv): an analyte header followed
// by a min row and a max row.
package reference

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/Blitzliner/aminos/internal/analysis"
)

var (
	// ErrMissingFile is returned when a reference file does not exist.
	ErrMissingFile = errors.New("reference file is missing")
	// ErrMissingColumn is returned when the control reference lacks the controls/limits columns.
	ErrMissingColumn = errors.New("reference column is missing")
	// ErrIncompleteControl is returned when an identifier has fewer rows than the scorer reads.
	ErrIncompleteControl = errors.New("incomplete control reference")
	// ErrEmpty is returned when a reference file holds no data rows.
	ErrEmpty = errors.New("reference table is empty")
)

const (
	ColumnControls = "controls"
	ColumnLimits   = "limits"

	LimitMin  = "min"
	LimitMean = "mean"
	LimitMax  = "max"
)

// meanRowIndex is the positional row of an identifier's block read as the mean.
const meanRowIndex = 2

// LimitRow is one row of a control's reference block.
type LimitRow struct {
	Limit  string    `json:"limit"`
	Values []float64 `json:"values"` // aligned with Controls.Analytes; NaN when blank
}

// Controls is the control reference table grouped by identifier.
type Controls struct {
	Analytes []string
	blocks   map[int][]LimitRow
}

// Range is the resolved reference for one control identifier.
type Range struct {
	ID       int
	Analytes []string
	Min      []float64
	Mean     []float64
	Max      []float64
}

// Patients is the patient reference table.
type Patients struct {
	Analytes []string
	Min      []float64
	Max      []float64
}

// LoadControls reads the control reference CSV.
func LoadControls(path string) (*Controls, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	return ControlsFromTable(t)
}

// ControlsFromTable groups a parsed control reference table by identifier,
// keeping the file order of rows within each identifier.
func ControlsFromTable(t *analysis.Table) (*Controls, error) {
	ci := t.ColumnIndex(ColumnControls)
	li := t.ColumnIndex(ColumnLimits)
	if ci < 0 || li < 0 {
		return nil, fmt.Errorf("%w: need %q and %q in %s", ErrMissingColumn, ColumnControls, ColumnLimits, t.Name)
	}
	var analyteIdx []int
	c := &Controls{blocks: map[int][]LimitRow{}}
	for i, name := range t.Columns {
		if i == ci || i == li {
			continue
		}
		analyteIdx = append(analyteIdx, i)
		c.Analytes = append(c.Analytes, name)
	}
	for n, row := range t.Rows {
		idv, ok := row.Get(ci).Float()
		if !ok {
			return nil, fmt.Errorf("%s row %d: non-numeric control identifier %q", t.Name, n+2, row.Get(ci).String())
		}
		lr := LimitRow{
			Limit:  strings.ToLower(strings.TrimSpace(row.Get(li).String())),
			Values: make([]float64, len(analyteIdx)),
		}
		for j, idx := range analyteIdx {
			lr.Values[j] = floatOrNaN(row.Get(idx))
		}
		id := int(idv)
		c.blocks[id] = append(c.blocks[id], lr)
	}
	if len(c.blocks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, t.Name)
	}
	return c, nil
}

// IDs returns the known control identifiers in ascending order.
func (c *Controls) IDs() []int {
	ids := make([]int, 0, len(c.blocks))
	for id := range c.blocks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Has reports whether id has any reference rows.
func (c *Controls) Has(id int) bool {
	return len(c.blocks[id]) > 0
}

// Range resolves min/mean/max for id. Min is the first row and mean the
// third row of the block. With maxFromMeanRow the max limits are read from
// that same third row, which is how the lab's sheets have always been
// evaluated; otherwise the row tagged "max" is used (second row if untagged).
func (c *Controls) Range(id int, maxFromMeanRow bool) (Range, error) {
	rows := c.blocks[id]
	if len(rows) <= meanRowIndex {
		return Range{}, fmt.Errorf("%w: control %d has %d rows, need %d", ErrIncompleteControl, id, len(rows), meanRowIndex+1)
	}
	r := Range{ID: id, Analytes: c.Analytes}
	r.Min = rowTagged(rows, LimitMin, 0).Values
	r.Mean = rows[meanRowIndex].Values
	if maxFromMeanRow {
		r.Max = rows[meanRowIndex].Values
	} else {
		r.Max = rowTagged(rows, LimitMax, 1).Values
	}
	return r, nil
}

func rowTagged(rows []LimitRow, tag string, fallback int) LimitRow {
	for _, r := range rows {
		if r.Limit == tag {
			return r
		}
	}
	return rows[fallback]
}

// LoadPatients reads the patient reference CSV (row 0 = min, row 1 = max).
func LoadPatients(path string) (*Patients, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	return PatientsFromTable(t)
}

// PatientsFromTable converts a parsed patient reference table.
func PatientsFromTable(t *analysis.Table) (*Patients, error) {
	if len(t.Rows) < 2 {
		return nil, fmt.Errorf("%w: %s needs a min and a max row, has %d", ErrEmpty, t.Name, len(t.Rows))
	}
	p := &Patients{
		Analytes: append([]string(nil), t.Columns...),
		Min:      make([]float64, len(t.Columns)),
		Max:      make([]float64, len(t.Columns)),
	}
	for i := range t.Columns {
		p.Min[i] = floatOrNaN(t.Rows[0].Get(i))
		p.Max[i] = floatOrNaN(t.Rows[1].Get(i))
	}
	return p, nil
}

// Limits returns min and max for the reference analyte matching a dataset column.
func (p *Patients) Limits(column string) (lo, hi float64, ok bool) {
	i := MatchIndex(p.Analytes, column)
	if i < 0 {
		return math.NaN(), math.NaN(), false
	}
	return p.Min[i], p.Max[i], true
}

// MatchIndex finds the reference analyte for a dataset column: an exact
// (trimmed, case-insensitive) name first, otherwise the longest reference
// name the column starts with, so "Leu" does not swallow "Leu-Ile".
func MatchIndex(refNames []string, column string) int {
	col := strings.ToLower(strings.TrimSpace(column))
	for i, n := range refNames {
		if strings.ToLower(strings.TrimSpace(n)) == col {
			return i
		}
	}
	best, bestLen := -1, 0
	for i, n := range refNames {
		ref := strings.ToLower(strings.TrimSpace(n))
		if ref == "" {
			continue
		}
		if strings.HasPrefix(col, ref) && len(ref) > bestLen {
			best, bestLen = i, len(ref)
		}
	}
	return best
}

func readTable(path string) (*analysis.Table, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, path)
		}
		return nil, fmt.Errorf("stat reference: %w", err)
	}
	t, err := analysis.ReadCSV(path, analysis.Options{DecimalSeparator: '.'})
	if err != nil {
		return nil, fmt.Errorf("read reference %s: %w", path, err)
	}
	return t, nil
}

func floatOrNaN(v analysis.Value) float64 {
	if f, ok := v.Float(); ok {
		return f
	}
	return math.NaN()
}
