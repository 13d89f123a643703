package qc

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Blitzliner/aminos/internal/analysis"
	"github.com/rs/zerolog"
)

// NoPeak is the instrument's marker for an analyte it could not detect.
const NoPeak = "No Peak"

// Partitioned holds the three disjoint subsets of an instrument export.
type Partitioned struct {
	SampleColumn int
	Patients     *analysis.Table
	Controls     *analysis.Table
	Calibration  *analysis.Table
}

// Partition drops calibration rows, separates control rows from patient rows,
// turns "No Peak" cells into the no-reading sentinel and sorts both partitions
// by sample name as text. Both patterns match at the start of the name only.
func Partition(raw *analysis.Table, sampleColumn string, calibration, control *regexp.Regexp, log zerolog.Logger) (*Partitioned, error) {
	col := raw.ColumnIndex(sampleColumn)
	if col < 0 {
		return nil, fmt.Errorf("%w: %q in %s", ErrMissingColumn, sampleColumn, raw.Name)
	}
	p := &Partitioned{
		SampleColumn: col,
		Patients:     raw.Empty("patients"),
		Controls:     raw.Empty("controls"),
		Calibration:  raw.Empty("calibration"),
	}
	for _, r := range raw.Rows {
		row := r.Clone()
		name := row.Get(col).String()
		// sample names are compared as text from here on
		if col < len(row) && !row[col].IsEmpty() {
			row[col] = analysis.Text(name)
		}
		switch {
		case matchesStart(calibration, name):
			log.Info().Str("sample", name).Msg("drop calibration sample")
			p.Calibration.Rows = append(p.Calibration.Rows, row)
		case matchesStart(control, name):
			p.Controls.Rows = append(p.Controls.Rows, clearNoPeak(row))
		default:
			p.Patients.Rows = append(p.Patients.Rows, clearNoPeak(row))
		}
	}
	p.Controls.SortByText(col)
	p.Patients.SortByText(col)
	log.Info().
		Int("patients", len(p.Patients.Rows)).
		Int("controls", len(p.Controls.Rows)).
		Int("calibration", len(p.Calibration.Rows)).
		Msg("split samples")
	return p, nil
}

// matchesStart reports whether re matches s beginning at offset 0. The
// leftmost match is reported first, so a match at 0 is always found.
func matchesStart(re *regexp.Regexp, s string) bool {
	if re == nil {
		return false
	}
	loc := re.FindStringIndex(s)
	return loc != nil && loc[0] == 0
}

func clearNoPeak(row analysis.Row) analysis.Row {
	for i, v := range row {
		if v.Kind == analysis.KindText && strings.TrimSpace(v.Text) == NoPeak {
			row[i] = analysis.Empty()
		}
	}
	return row
}
