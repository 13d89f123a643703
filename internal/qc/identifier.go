package qc

import (
	"fmt"
	"strings"
)

// ControlID derives the reference identifier from a control's sample name.
// Names written with roman numerals are read as a tally of 'I' characters
// ("Ko III" is 3, "QC I" is 1); all other names use their first decimal
// digit ("Ko2" is 2). Only uppercase 'I' counts and only a single digit is
// read, matching how the control vials are labelled.
func ControlID(name string) (int, error) {
	if n := strings.Count(name, "I"); n > 0 {
		return n, nil
	}
	for _, r := range name {
		if r >= '0' && r <= '9' {
			return int(r - '0'), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnresolvedControl, name)
}
