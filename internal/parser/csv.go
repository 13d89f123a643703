package parser

import (
	"strings"

	"github.com/Blitzliner/aminos/internal/analysis"
)

type csvReader struct{}

func (csvReader) CanRead(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv")
}

func (csvReader) Read(path string, opt analysis.Options) (*analysis.Table, error) {
	return analysis.ReadCSV(path, opt)
}
