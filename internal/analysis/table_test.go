package analysis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestReadCSV_Basic(t *testing.T) {
	p := writeFile(t, "run.csv", "\uFEFFSeq, Sample Name ,Ala,Gly\n1,Ko2,20.5,No Peak\n2,Patient A,,30\n3,Short\n")
	tab, err := ReadCSV(p, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "run.csv", tab.Name)
	assert.Equal(t, []string{"Seq", "Sample Name", "Ala", "Gly"}, tab.Columns)
	require.Len(t, tab.Rows, 3)

	x, ok := tab.Rows[0].Get(2).Float()
	assert.True(t, ok)
	assert.Equal(t, 20.5, x)
	assert.Equal(t, KindText, tab.Rows[0].Get(3).Kind)
	assert.Equal(t, "No Peak", tab.Rows[0].Get(3).String())

	assert.True(t, tab.Rows[1].Get(2).IsEmpty())
	// short records are padded with the no-reading sentinel
	assert.Len(t, tab.Rows[2], 4)
	assert.True(t, tab.Rows[2].Get(3).IsEmpty())
}

func TestReadCSV_TSVAndLocale(t *testing.T) {
	p := writeFile(t, "run.tsv", "Seq\tSample Name\tAla\n1\tKo1\t1.234,5\n")
	tab, err := ReadCSV(p, Options{DecimalSeparator: ',', ThousandsSeparator: '.'})
	require.NoError(t, err)
	x, ok := tab.Rows[0].Get(2).Float()
	require.True(t, ok)
	assert.Equal(t, 1234.5, x)
}

func TestParseValue(t *testing.T) {
	cases := []struct {
		in   string
		kind ValueKind
		num  float64
	}{
		{"", KindEmpty, 0},
		{"  ", KindEmpty, 0},
		{"0", KindNumber, 0},
		{"12,5", KindNumber, 12.5},
		{"1,234.5", KindNumber, 1234.5},
		{"NaN", KindText, 0},
		{"Inf", KindText, 0},
		{"Ko III", KindText, 0},
	}
	for _, c := range cases {
		v := ParseValue(c.in, Options{})
		assert.Equal(t, c.kind, v.Kind, c.in)
		if c.kind == KindNumber {
			assert.Equal(t, c.num, v.Num, c.in)
		}
	}
}

func TestTable_Helpers(t *testing.T) {
	tab := &Table{
		Columns: []string{"Seq", "Sample Name", "Gly", "Ala"},
		Rows: []Row{
			{Number(1), Text("b"), Number(1), Number(2)},
			{Number(2), Text("a"), Number(3), Number(4)},
			{Number(3), Text("b"), Number(5), Number(6)},
		},
	}
	assert.Equal(t, 1, tab.ColumnIndex("sample name "))
	assert.Equal(t, -1, tab.ColumnIndex("Tau"))
	assert.Equal(t, []string{"Gly", "Ala"}, tab.AnalyteColumns())

	tab.SortByText(1)
	assert.Equal(t, "a", tab.Rows[0].Get(1).String())
	// stable: the two "b" rows keep their order
	assert.Equal(t, "1", tab.Rows[1].Get(0).String())
	assert.Equal(t, "3", tab.Rows[2].Get(0).String())

	e := tab.Empty("patients")
	assert.Equal(t, tab.Columns, e.Columns)
	assert.Empty(t, e.Rows)

	row := tab.Rows[0]
	cp := row.Clone()
	cp[0] = Text("x")
	assert.Equal(t, "2", row.Get(0).String())
	assert.True(t, row.Get(99).IsEmpty())
}
