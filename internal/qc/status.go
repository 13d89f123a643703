// Package qc implements quality-control evaluation of an amino-acid screening
// run: splitting the instrument export into patient and control samples,
// scoring each control against its reference ranges, ranking the controls,
// and deriving which patient analytes are unreliable for the chosen control.
package qc

import (
	"errors"
	"fmt"
)

// Status classifies a measurement against a reference range.
type Status int

const (
	Normal Status = iota
	TooLow
	TooHigh
	// Invalid marks a patient analyte whose control failed in every replicate.
	Invalid
)

var statusNames = [...]string{"NORMAL", "TOO_LOW", "TOO_HIGH", "INVALID"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// OutOfRange reports whether s is TOO_LOW or TOO_HIGH.
func (s Status) OutOfRange() bool { return s == TooLow || s == TooHigh }

// MarshalText renders the status by name in JSON summaries.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(b []byte) error {
	for i, n := range statusNames {
		if n == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", string(b))
}

// classify compares a reading to [lo, hi]. A missing reading or a missing
// limit compares as neither low nor high.
func classify(x, lo, hi float64) Status {
	switch {
	case x < lo:
		return TooLow
	case x > hi:
		return TooHigh
	default:
		return Normal
	}
}

var (
	// ErrMissingColumn is returned when the configured sample column is absent.
	ErrMissingColumn = errors.New("sample column not found")
	// ErrUnresolvedControl is returned when a control name carries neither 'I' tallies nor a digit.
	ErrUnresolvedControl = errors.New("control identifier cannot be resolved")
	// ErrNoReference is returned when the reference table has no rows for a control identifier.
	ErrNoReference = errors.New("no reference rows for control")
	// ErrNoControls is returned when there is nothing to select from.
	ErrNoControls = errors.New("no scored controls")
)
