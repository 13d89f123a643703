package parser_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Blitzliner/aminos/internal/analysis"
	"github.com/Blitzliner/aminos/internal/parser"
)

func TestReadFileCSV(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "run.csv")
	content := "Seq,Sample Name,Ala\n1,Ko2,20\n2,Patient A,No Peak\n"
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tab, err := parser.ReadFile(p, analysis.DefaultOptions())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(tab.Rows) != 2 || tab.Columns[1] != "Sample Name" {
		t.Fatalf("unexpected table: %+v", tab)
	}
}

func TestReadFileTSV(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "run.TSV")
	content := "Seq\tSample Name\tAla\n1\tKo2\t20,5\n"
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tab, err := parser.ReadFile(p, analysis.DefaultOptions())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if x, ok := tab.Rows[0].Get(2).Float(); !ok || x != 20.5 {
		t.Fatalf("expected 20.5, got %v (%v)", x, ok)
	}
}

func TestReadFileUnsupported(t *testing.T) {
	_, err := parser.ReadFile("export.docx", analysis.DefaultOptions())
	if !errors.Is(err, parser.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if parser.Supported("notes.txt") {
		t.Fatalf("txt must not be supported")
	}
	if !parser.Supported("RUN.XLSX") {
		t.Fatalf("xlsx must be supported")
	}
}
