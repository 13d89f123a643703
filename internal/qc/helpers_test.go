package qc

import (
	"testing"

	"github.com/Blitzliner/aminos/internal/analysis"
	"github.com/Blitzliner/aminos/internal/reference"
	"github.com/stretchr/testify/require"
)

var testColumns = []string{"Seq", "Sample Name", "Ala", "Gly"}

func sample(name string, vals ...analysis.Value) analysis.Row {
	return append(analysis.Row{analysis.Number(1), analysis.Text(name)}, vals...)
}

func num(f float64) analysis.Value { return analysis.Number(f) }

// controlRef builds a reference with min 10/20, max 30/40 and mean 20/30 for
// identifiers 1 and 2. Rows are in file order min, max, mean.
func controlRef(t *testing.T) *reference.Controls {
	t.Helper()
	tab := &analysis.Table{
		Name:    "kontrollwerte.csv",
		Columns: []string{"controls", "limits", "Ala", "Gly"},
	}
	for _, id := range []float64{1, 2} {
		tab.Rows = append(tab.Rows,
			analysis.Row{num(id), analysis.Text("min"), num(10), num(20)},
			analysis.Row{num(id), analysis.Text("max"), num(30), num(40)},
			analysis.Row{num(id), analysis.Text("mean"), num(20), num(30)},
		)
	}
	ref, err := reference.ControlsFromTable(tab)
	require.NoError(t, err)
	return ref
}

func scored(name string, coarse int, fine float64) ScoredControl {
	return ScoredControl{Name: name, BaseName: StripSuffix(name), CoarseScore: coarse, FineScore: fine}
}
