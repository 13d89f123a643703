package qc

import (
	"github.com/Blitzliner/aminos/internal/analysis"
	"github.com/Blitzliner/aminos/internal/reference"
)

// PatientMask is the per-cell classification of the patient table.
type PatientMask struct {
	// Columns are the analyte columns of the patient table, in table order.
	Columns []string
	// Cells[i][j] classifies patient row i, analyte Columns[j].
	Cells [][]Status
	// Invalid lists the analytes no replicate of the chosen control could vouch for.
	Invalid []string
}

// At returns the status of patient row i for the named analyte.
func (m *PatientMask) At(i int, column string) Status {
	for j, c := range m.Columns {
		if c == column {
			return m.Cells[i][j]
		}
	}
	return Normal
}

// Replicates returns the ranked controls whose names equal the chosen
// control's name once the disambiguation suffix is stripped, i.e. the
// repeated measurements of the same control vial.
func Replicates(chosen ScoredControl, ranked []ScoredControl) []ScoredControl {
	base := StripSuffix(chosen.Name)
	var out []ScoredControl
	for _, c := range ranked {
		if StripSuffix(c.Name) == base {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		out = append(out, chosen)
	}
	return out
}

// InvalidAnalytes intersects the out-of-range analytes of every replicate of
// the chosen control. An analyte is invalid only when all replicates put it
// outside its reference range, so one noisy replicate does not discard it.
// The result keeps the chosen control's column order.
func InvalidAnalytes(chosen ScoredControl, ranked []ScoredControl) []string {
	reps := Replicates(chosen, ranked)
	var out []string
	for _, a := range chosen.Analytes {
		all := true
		for _, r := range reps {
			if !r.Result[a].OutOfRange() {
				all = false
				break
			}
		}
		if all {
			out = append(out, a)
		}
	}
	return out
}

// MarkPatients classifies every patient analyte against the patient reference
// range and overrides analytes invalidated by the chosen control with Invalid.
func MarkPatients(patients *analysis.Table, ref *reference.Patients, chosen ScoredControl, ranked []ScoredControl) *PatientMask {
	invalid := InvalidAnalytes(chosen, ranked)
	bad := make(map[string]bool, len(invalid))
	for _, a := range invalid {
		bad[a] = true
	}
	m := &PatientMask{Columns: patients.AnalyteColumns(), Invalid: invalid}
	type limits struct {
		lo, hi float64
		ok     bool
	}
	lims := make([]limits, len(m.Columns))
	for j, c := range m.Columns {
		if ref != nil {
			lo, hi, ok := ref.Limits(c)
			lims[j] = limits{lo: lo, hi: hi, ok: ok}
		}
	}
	m.Cells = make([][]Status, len(patients.Rows))
	for i, row := range patients.Rows {
		cells := make([]Status, len(m.Columns))
		for j, c := range m.Columns {
			switch {
			case bad[c]:
				cells[j] = Invalid
			case lims[j].ok:
				if x, ok := row.Get(j + 2).Float(); ok {
					cells[j] = classify(x, lims[j].lo, lims[j].hi)
				}
			}
		}
		m.Cells[i] = cells
	}
	return m
}
