package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Blitzliner/aminos/internal/analysis"
)

type xlsxReader struct{}

func (xlsxReader) CanRead(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".xlsx")
}

func (xlsxReader) Read(path string, opt analysis.Options) (*analysis.Table, error) {
	t, err := analysis.ReadXLSX(path, opt)
	if err != nil {
		return nil, err
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("workbook %s: first sheet has no header row", filepath.Base(path))
	}
	if opt.SheetName != "" {
		t.Name = fmt.Sprintf("%s (sheet: %s)", t.Name, opt.SheetName)
	}
	return t, nil
}
