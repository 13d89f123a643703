// Package parser selects a table reader for an instrument export by its
// file extension.
package parser

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/Blitzliner/aminos/internal/analysis"
)

// Reader reads one kind of tabular file.
type Reader interface {
	CanRead(filename string) bool
	Read(path string, opt analysis.Options) (*analysis.Table, error)
}

var registry []Reader

// Register adds a reader to the registry. Later registrations are tried last.
func Register(r Reader) {
	registry = append(registry, r)
}

// ReadFile reads path with the first registered reader that accepts it.
func ReadFile(path string, opt analysis.Options) (*analysis.Table, error) {
	for _, r := range registry {
		if r.CanRead(path) {
			return r.Read(path, opt)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
}

// Supported reports whether any registered reader accepts filename.
func Supported(filename string) bool {
	for _, r := range registry {
		if r.CanRead(filename) {
			return true
		}
	}
	return false
}

func init() {
	Register(xlsxReader{})
	Register(csvReader{})
}

// ErrUnsupported indicates a format no reader handles.
var ErrUnsupported = errors.New("unsupported export format")
