package pipeline

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Blitzliner/aminos/internal/config"
	"github.com/Blitzliner/aminos/internal/parser"
	"github.com/Blitzliner/aminos/internal/qc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exportCSV = `Seq,Sample Name,Ala,Gly
1,Cal 1,1,1
2,Ko2,20,30
3,Patient A,350,150
4,Ko2,25,15
5,Ko1,No Peak,25
6,Patient B,200,No Peak
`

const controlsCSV = `controls,limits,Ala,Gly
1,min,10,20
1,max,30,40
1,mean,20,30
2,min,10,20
2,max,30,40
2,mean,20,30
`

const patientsCSV = `Ala,Gly
100,200
300,400
`

var stamp = time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

func setup(t *testing.T, export string) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}
	cfg := config.Default()
	cfg.ControlReferencePath = write("reference/kontrollwerte.csv", controlsCSV)
	cfg.PatientsReferencePath = write("reference/patienten_kontrollwerte.csv", patientsCSV)
	cfg.ExportDirectory = filepath.Join(dir, "analysed")
	return cfg, write("export.csv", export)
}

func TestRun_WritesWorkspace(t *testing.T) {
	cfg, input := setup(t, exportCSV)
	var console bytes.Buffer

	res, err := Run(cfg, Options{Input: input, Console: &console, Now: stamp})
	require.NoError(t, err)

	assert.Equal(t, []string{"Ko2_2", "Ko1_1", "Ko2_1"}, qc.Names(res.Ranked))
	assert.Equal(t, "Ko2_2", res.Chosen.Name)
	assert.Empty(t, res.Rejected)
	assert.Len(t, res.Partitioned.Calibration.Rows, 1)
	assert.Equal(t, qc.TooHigh, res.Mask.At(0, "Ala"))
	assert.Equal(t, qc.TooLow, res.Mask.At(0, "Gly"))
	assert.Equal(t, qc.Normal, res.Mask.At(1, "Gly"))

	dir := filepath.Join(cfg.ExportDirectory, "20240305_140709")
	require.NotNil(t, res.Workspace)
	assert.Equal(t, dir, res.Workspace.RootDir())
	for _, name := range []string{"20240305_140709_Rohdaten.csv", "20240305_140709_Analyse.xlsx", "run.json", "analysis.json", "run.log"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.Equal(t, filepath.Join(dir, "20240305_140709_Analyse.xlsx"), res.ReportPath)

	b, err := os.ReadFile(filepath.Join(dir, "analysis.json"))
	require.NoError(t, err)
	var s Summary
	require.NoError(t, json.Unmarshal(b, &s))
	assert.Equal(t, "Ko2_2", s.Chosen.Name)
	assert.Equal(t, res.Workspace.ID, s.RunID)
	require.Len(t, s.Patients, 2)
	assert.Equal(t, qc.TooHigh, s.Patients[0].Flags["Ala"])
	assert.Empty(t, s.Patients[1].Flags)

	logData, err := os.ReadFile(filepath.Join(dir, "run.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "drop calibration sample")
	assert.Contains(t, console.String(), "run complete")
}

func TestRun_PreferControl(t *testing.T) {
	cfg, input := setup(t, exportCSV)
	cfg.PreferControl = "Ko1_1"

	res, err := Run(cfg, Options{Input: input, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, "Ko1_1", res.Chosen.Name)
	assert.Nil(t, res.Workspace)
	_, err = os.Stat(cfg.ExportDirectory)
	assert.True(t, os.IsNotExist(err))

	// the option wins over the config
	res, err = Run(cfg, Options{Input: input, DryRun: true, PreferControl: "Ko2_1"})
	require.NoError(t, err)
	assert.Equal(t, "Ko2_1", res.Chosen.Name)

	var console bytes.Buffer
	res, err = Run(cfg, Options{Input: input, DryRun: true, PreferControl: "Ko5_1", Console: &console})
	require.NoError(t, err)
	assert.Equal(t, "Ko2_2", res.Chosen.Name)
	assert.Contains(t, console.String(), "preferred control not found")
}

func TestRun_NoControlsIsFatal(t *testing.T) {
	cfg, input := setup(t, "Seq,Sample Name,Ala,Gly\n1,Patient A,1,2\n2,Ko9,1,1\n")
	res, err := Run(cfg, Options{Input: input, DryRun: true})
	require.ErrorIs(t, err, qc.ErrNoControls)
	require.Len(t, res.Rejected, 1)
	assert.ErrorIs(t, res.Rejected[0].Err, qc.ErrNoReference)
	require.NotNil(t, res.ControlRef)
	assert.Equal(t, []int{1, 2}, res.ControlRef.IDs())
}

func TestRun_InputErrors(t *testing.T) {
	cfg, _ := setup(t, exportCSV)

	_, err := Run(cfg, Options{DryRun: true})
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = Run(cfg, Options{Input: "export.pdf", DryRun: true})
	assert.ErrorIs(t, err, parser.ErrUnsupported)

	_, err = Run(cfg, Options{Input: filepath.Join(t.TempDir(), "missing.csv"), DryRun: true})
	assert.ErrorIs(t, err, os.ErrNotExist)

	cfg.ControlName = "("
	_, err = Run(cfg, Options{Input: "x.csv", DryRun: true})
	assert.Error(t, err)
}

func TestResolveReference_SearchesAboveInput(t *testing.T) {
	root := t.TempDir()
	ref := filepath.Join(root, "reference", "kontrollwerte.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(ref), 0o755))
	require.NoError(t, os.WriteFile(ref, []byte(controlsCSV), 0o644))
	input := filepath.Join(root, "exports", "2024", "run.xlsx")
	require.NoError(t, os.MkdirAll(filepath.Dir(input), 0o755))

	assert.Equal(t, ref, resolveReference("./reference/kontrollwerte.csv", input))
	assert.Equal(t, "nope/x.csv", resolveReference("nope/x.csv", input))
}

func TestRawSuffix(t *testing.T) {
	assert.Equal(t, "_Rohdaten.csv", rawSuffix("_Rohdaten.xlsx", "/x/export.CSV"))
	assert.Equal(t, "_Rohdaten.xlsx", rawSuffix("_Rohdaten.xlsx", "export.xlsx"))
}

func TestSummarize_NonFiniteFineScore(t *testing.T) {
	c := qc.ScoredControl{Name: "Ko1_1", FineScore: math.NaN(), Result: map[string]qc.Status{"Ala": qc.Normal}}
	s := Summarize(&Result{Input: "x.csv", Ranked: []qc.ScoredControl{c}, Chosen: c})
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"fine_score":null`)
	assert.Contains(t, string(b), `"fine_score_text":"NaN"`)
	assert.Contains(t, string(b), `"Ala":"NORMAL"`)
}
