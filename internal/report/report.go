// Package report writes the analysis workbook handed to the laboratory.
package report

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/Blitzliner/aminos/internal/analysis"
	"github.com/Blitzliner/aminos/internal/config"
	"github.com/Blitzliner/aminos/internal/qc"
	"github.com/Blitzliner/aminos/internal/reference"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the workbook, in order.
const (
	SheetRaw      = "Rohdaten"
	SheetControls = "Kontrollen"
	SheetPatients = "Patienten"
	SheetChosen   = "Gewählte Kontrolle"
)

// Input is everything the workbook shows.
type Input struct {
	Raw          *analysis.Table
	Patients     *analysis.Table
	SampleColumn int
	Ranked       []qc.ScoredControl
	Rejected     []qc.Rejection
	Chosen       qc.ScoredControl
	Mask         *qc.PatientMask
	PatientRef   *reference.Patients
}

type styles struct {
	heading, invalid, valid, high, low int
}

// Write renders the workbook to path.
func Write(path string, in Input, format config.Format) error {
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f, format)
	if err != nil {
		return err
	}
	if err := f.SetSheetName("Sheet1", SheetRaw); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetControls, SheetPatients, SheetChosen} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("add sheet %s: %w", name, err)
		}
	}

	w := &sheetWriter{f: f}
	writeRaw(w, in.Raw, st)
	writeControls(w, in, st)
	writePatients(w, in, st)
	writeChosen(w, in, st)
	if w.err != nil {
		return w.err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func newStyles(f *excelize.File, c config.Format) (styles, error) {
	var st styles
	var err error
	mk := func(s *excelize.Style) int {
		if err != nil {
			return 0
		}
		var id int
		id, err = f.NewStyle(s)
		return id
	}
	fill := func(color string) excelize.Fill {
		return excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}
	}
	st.heading = mk(&excelize.Style{Font: &excelize.Font{Bold: true}, Fill: fill(c.Heading)})
	st.invalid = mk(&excelize.Style{Font: &excelize.Font{Color: c.InvalidFont}, Fill: fill(c.Invalid)})
	st.valid = mk(&excelize.Style{Fill: fill(c.Valid)})
	st.high = mk(&excelize.Style{Fill: fill(c.High)})
	st.low = mk(&excelize.Style{Fill: fill(c.Low)})
	if err != nil {
		return styles{}, fmt.Errorf("create style: %w", err)
	}
	return st, nil
}

// sheetWriter keeps the first error so the sheet functions read top to bottom.
type sheetWriter struct {
	f   *excelize.File
	err error
}

// set writes v at 1-based (col, row) with an optional style (0 = none).
func (w *sheetWriter) set(sheet string, col, row int, v any, style int) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	if v != nil {
		if err := w.f.SetCellValue(sheet, cell, v); err != nil {
			w.err = fmt.Errorf("%s!%s: %w", sheet, cell, err)
			return
		}
	}
	if style != 0 {
		if err := w.f.SetCellStyle(sheet, cell, cell, style); err != nil {
			w.err = fmt.Errorf("%s!%s: %w", sheet, cell, err)
		}
	}
}

func (w *sheetWriter) header(sheet string, row int, names []string, style int) {
	for i, n := range names {
		w.set(sheet, i+1, row, n, style)
	}
}

func (w *sheetWriter) freezeTop(sheet string) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// cellValue converts a table cell; the no-reading sentinel stays blank.
func cellValue(v analysis.Value) any {
	switch v.Kind {
	case analysis.KindNumber:
		return v.Num
	case analysis.KindText:
		return v.Text
	default:
		return nil
	}
}

// score renders a fine score; Excel cells cannot hold NaN or infinities.
func score(x float64) any {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return x
}

func (st styles) status(s qc.Status) int {
	switch s {
	case qc.TooLow:
		return st.low
	case qc.TooHigh:
		return st.high
	case qc.Invalid:
		return st.invalid
	default:
		return 0
	}
}

func writeRaw(w *sheetWriter, t *analysis.Table, st styles) {
	if t == nil {
		return
	}
	w.header(SheetRaw, 1, t.Columns, st.heading)
	for i, r := range t.Rows {
		for j := range t.Columns {
			w.set(SheetRaw, j+1, i+2, cellValue(r.Get(j)), 0)
		}
	}
	w.freezeTop(SheetRaw)
}

func choiceLine(rank int, c qc.ScoredControl) string {
	return fmt.Sprintf("%d. Wahl: Kontrolle: %s Score: %d / %s", rank, c.Name, c.CoarseScore,
		strconv.FormatFloat(c.FineScore, 'f', -1, 64))
}

func writeControls(w *sheetWriter, in Input, st styles) {
	const s = SheetControls
	row := 1
	for i, c := range in.Ranked {
		if i == 2 {
			break
		}
		w.set(s, 1, row, choiceLine(i+1, c), st.heading)
		row++
	}
	row++

	w.header(s, row, []string{"Rang", "Kontrolle", "Referenz", "Score", "Feinscore", "Gewählt"}, st.heading)
	row++
	for i, c := range in.Ranked {
		w.set(s, 1, row, i+1, 0)
		w.set(s, 2, row, c.Name, 0)
		w.set(s, 3, row, c.ID, 0)
		w.set(s, 4, row, c.CoarseScore, 0)
		w.set(s, 5, row, score(c.FineScore), 0)
		if c.Name == in.Chosen.Name {
			w.set(s, 6, row, "x", st.valid)
		}
		row++
	}
	row++

	analytes := controlAnalytes(in.Ranked)
	w.set(s, 1, row, "Bereichsanalyse", st.heading)
	row++
	w.header(s, row, append([]string{"Kontrolle"}, analytes...), st.heading)
	row++
	for _, c := range in.Ranked {
		w.set(s, 1, row, c.Name, 0)
		for j, a := range analytes {
			status, ok := c.Result[a]
			if !ok {
				continue
			}
			style := st.status(status)
			if status == qc.Normal {
				style = st.valid
			}
			w.set(s, j+2, row, status.String(), style)
		}
		row++
	}

	if len(in.Rejected) > 0 {
		row++
		w.set(s, 1, row, "Abgelehnte Kontrollen", st.heading)
		row++
		for _, r := range in.Rejected {
			w.set(s, 1, row, r.Name, st.invalid)
			w.set(s, 2, row, r.Err.Error(), 0)
			row++
		}
	}
}

// controlAnalytes is the union of scored analytes in first-seen order.
func controlAnalytes(cs []qc.ScoredControl) []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range cs {
		for _, a := range c.Analytes {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	return out
}

// writePatients lays patients out as columns and analytes as rows, next to
// the patient reference range:
//
//	min | max | | Analyt | <patient 1> | <patient 2> ...
func writePatients(w *sheetWriter, in Input, st styles) {
	const s = SheetPatients
	w.set(s, 1, 1, "Messergebnisse des Aminosäure-Screenings", st.heading)
	w.set(s, 1, 2, fmt.Sprintf("Kontrolle: %s", in.Chosen.Name), 0)
	if in.Patients == nil || in.Mask == nil {
		return
	}

	const first = 5 // first patient column
	w.header(s, 4, []string{"min", "max", "", "Analyt"}, st.heading)
	for i, r := range in.Patients.Rows {
		w.set(s, first+i, 4, cellValue(r.Get(in.SampleColumn)), st.heading)
	}

	// mask positions sorted by analyte name; values and statuses are both
	// read by position so repeated column names stay paired
	order := make([]int, len(in.Mask.Columns))
	for j := range order {
		order[j] = j
	}
	sort.SliceStable(order, func(x, y int) bool {
		return in.Mask.Columns[order[x]] < in.Mask.Columns[order[y]]
	})
	for k, j := range order {
		row := 5 + k
		a := in.Mask.Columns[j]
		if in.PatientRef != nil {
			if lo, hi, ok := in.PatientRef.Limits(a); ok {
				w.set(s, 1, row, score(lo), 0)
				w.set(s, 2, row, score(hi), 0)
			}
		}
		w.set(s, 4, row, a, st.heading)
		for i, r := range in.Patients.Rows {
			w.set(s, first+i, row, cellValue(r.Get(j+2)), st.status(in.Mask.Cells[i][j]))
		}
	}

	if len(in.Mask.Invalid) > 0 {
		row := 6 + len(order)
		w.set(s, 1, row, "Ungültig", st.invalid)
		for i, a := range in.Mask.Invalid {
			w.set(s, 2+i, row, a, st.invalid)
		}
	}
}

func writeChosen(w *sheetWriter, in Input, st styles) {
	const s = SheetChosen
	if in.Raw == nil {
		return
	}
	w.header(s, 1, in.Raw.Columns, st.heading)
	for j, col := range in.Raw.Columns {
		w.set(s, j+1, 2, cellValue(in.Chosen.Raw.Get(j)), 0)
		if status, ok := in.Chosen.Result[col]; ok {
			w.set(s, j+1, 3, status.String(), st.status(status))
		}
	}
	w.set(s, 1, 4, "Score", st.heading)
	w.set(s, 2, 4, in.Chosen.CoarseScore, 0)
	w.set(s, 3, 4, score(in.Chosen.FineScore), 0)
	w.freezeTop(s)
}
