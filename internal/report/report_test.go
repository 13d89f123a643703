package report

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/Blitzliner/aminos/internal/analysis"
	"github.com/Blitzliner/aminos/internal/config"
	"github.com/Blitzliner/aminos/internal/qc"
	"github.com/Blitzliner/aminos/internal/reference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func fixture(t *testing.T) Input {
	t.Helper()
	cols := []string{"Seq", "Sample Name", "Gly", "Ala"}
	ctlRow := analysis.Row{analysis.Number(1), analysis.Text("Ko2"), analysis.Number(30), analysis.Number(25)}
	raw := &analysis.Table{Name: "run.xlsx", Columns: cols, Rows: []analysis.Row{
		ctlRow,
		{analysis.Number(2), analysis.Text("P1"), analysis.Number(500), analysis.Number(150)},
		{analysis.Number(3), analysis.Text("P2"), analysis.Text("No Peak"), analysis.Number(50)},
	}}
	patients := &analysis.Table{Name: "patients", Columns: cols, Rows: []analysis.Row{
		raw.Rows[1].Clone(),
		{analysis.Number(3), analysis.Text("P2"), analysis.Empty(), analysis.Number(50)},
	}}
	chosen := qc.ScoredControl{
		Name: "Ko2_1", BaseName: "Ko2", ID: 2, CoarseScore: 19, FineScore: 0.75,
		Result:   map[string]qc.Status{"Gly": qc.Normal, "Ala": qc.TooHigh},
		Analytes: []string{"Gly", "Ala"},
		Raw:      ctlRow,
	}
	other := qc.ScoredControl{
		Name: "Ko1_1", BaseName: "Ko1", ID: 1, CoarseScore: 10, FineScore: math.NaN(),
		Result:   map[string]qc.Status{"Gly": qc.TooLow, "Ala": qc.Normal},
		Analytes: []string{"Gly", "Ala"},
	}
	ref, err := reference.PatientsFromTable(&analysis.Table{
		Columns: []string{"Ala", "Gly"},
		Rows:    []analysis.Row{{analysis.Number(100), analysis.Number(200)}, {analysis.Number(300), analysis.Number(400)}},
	})
	require.NoError(t, err)
	ranked := []qc.ScoredControl{chosen, other}
	return Input{
		Raw:          raw,
		Patients:     patients,
		SampleColumn: 1,
		Ranked:       ranked,
		Rejected:     []qc.Rejection{{Name: "Ko9", Err: errors.New("no reference rows for control")}},
		Chosen:       chosen,
		Mask:         qc.MarkPatients(patients, ref, chosen, ranked),
		PatientRef:   ref,
	}
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "20240101_120000_Analyse.xlsx")
	require.NoError(t, Write(path, fixture(t), config.Default().Format))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetRaw, SheetControls, SheetPatients, SheetChosen}, f.GetSheetList())

	t.Run("raw", func(t *testing.T) {
		v, err := f.GetCellValue(SheetRaw, "B1")
		require.NoError(t, err)
		assert.Equal(t, "Sample Name", v)
		v, err = f.GetCellValue(SheetRaw, "C4")
		require.NoError(t, err)
		assert.Equal(t, "No Peak", v)
	})

	t.Run("controls", func(t *testing.T) {
		v, err := f.GetCellValue(SheetControls, "A1")
		require.NoError(t, err)
		assert.Equal(t, "1. Wahl: Kontrolle: Ko2_1 Score: 19 / 0.75", v)
		v, err = f.GetCellValue(SheetControls, "A2")
		require.NoError(t, err)
		assert.Equal(t, "2. Wahl: Kontrolle: Ko1_1 Score: 10 / NaN", v)
		// ranking table starts at row 4
		v, err = f.GetCellValue(SheetControls, "E6")
		require.NoError(t, err)
		assert.Equal(t, "NaN", v)
		v, err = f.GetCellValue(SheetControls, "F5")
		require.NoError(t, err)
		assert.Equal(t, "x", v)
		rows, err := f.GetRows(SheetControls)
		require.NoError(t, err)
		last := rows[len(rows)-1]
		assert.Equal(t, []string{"Ko9", "no reference rows for control"}, last)
	})

	t.Run("patients", func(t *testing.T) {
		// analytes sorted: Ala on row 5, Gly on row 6; patients from column E
		v, err := f.GetCellValue(SheetPatients, "D5")
		require.NoError(t, err)
		assert.Equal(t, "Ala", v)
		v, err = f.GetCellValue(SheetPatients, "E4")
		require.NoError(t, err)
		assert.Equal(t, "P1", v)
		v, err = f.GetCellValue(SheetPatients, "A6")
		require.NoError(t, err)
		assert.Equal(t, "200", v)

		invalidA, err := f.GetCellStyle(SheetPatients, "E5")
		require.NoError(t, err)
		invalidB, err := f.GetCellStyle(SheetPatients, "F5")
		require.NoError(t, err)
		high, err := f.GetCellStyle(SheetPatients, "E6")
		require.NoError(t, err)
		assert.Equal(t, invalidA, invalidB)
		assert.NotEqual(t, invalidA, high)
		assert.NotZero(t, high)

		v, err = f.GetCellValue(SheetPatients, "F6")
		require.NoError(t, err)
		assert.Equal(t, "", v)
	})

	t.Run("chosen", func(t *testing.T) {
		v, err := f.GetCellValue(SheetChosen, "D3")
		require.NoError(t, err)
		assert.Equal(t, "TOO_HIGH", v)
		v, err = f.GetCellValue(SheetChosen, "B2")
		require.NoError(t, err)
		assert.Equal(t, "Ko2", v)
	})
}

func TestWrite_RepeatedAnalyteColumns(t *testing.T) {
	cols := []string{"Seq", "Sample Name", "Ala", "Ala"}
	patients := &analysis.Table{Name: "patients", Columns: cols, Rows: []analysis.Row{
		{analysis.Number(1), analysis.Text("P1"), analysis.Number(50), analysis.Number(500)},
	}}
	ref, err := reference.PatientsFromTable(&analysis.Table{
		Columns: []string{"Ala"},
		Rows:    []analysis.Row{{analysis.Number(100)}, {analysis.Number(300)}},
	})
	require.NoError(t, err)
	chosen := qc.ScoredControl{
		Name: "Ko1_1", BaseName: "Ko1", ID: 1, CoarseScore: 20, FineScore: 1,
		Result:   map[string]qc.Status{"Ala": qc.Normal},
		Analytes: []string{"Ala"},
	}
	in := Input{
		Raw:          patients,
		Patients:     patients,
		SampleColumn: 1,
		Ranked:       []qc.ScoredControl{chosen},
		Chosen:       chosen,
		Mask:         qc.MarkPatients(patients, ref, chosen, nil),
		PatientRef:   ref,
	}
	path := filepath.Join(t.TempDir(), "dup.xlsx")
	require.NoError(t, Write(path, in, config.Default().Format))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	// each row pairs a column's value with that column's status
	low, err := f.GetCellStyle(SheetPatients, "E5")
	require.NoError(t, err)
	high, err := f.GetCellStyle(SheetPatients, "E6")
	require.NoError(t, err)
	v, err := f.GetCellValue(SheetPatients, "E5")
	require.NoError(t, err)
	assert.Equal(t, "50", v)
	v, err = f.GetCellValue(SheetPatients, "E6")
	require.NoError(t, err)
	assert.Equal(t, "500", v)
	assert.NotZero(t, low)
	assert.NotZero(t, high)
	assert.NotEqual(t, low, high)
}
