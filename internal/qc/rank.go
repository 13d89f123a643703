package qc

import (
	"fmt"
	"math"
	"regexp"
	"sort"

	"github.com/rs/zerolog"
)

// Disambiguate gives every control a unique name by appending "_<n>", where
// n counts down from the number of controls sharing that name: in input order
// the first "Ko2" of three becomes "Ko2_3" and the last "Ko2_1". Names that
// occur once become "<name>_1". The input slice is not modified.
func Disambiguate(scored []ScoredControl) []ScoredControl {
	remaining := make(map[string]int, len(scored))
	for _, c := range scored {
		remaining[c.BaseName]++
	}
	out := make([]ScoredControl, len(scored))
	for i, c := range scored {
		c.Name = fmt.Sprintf("%s_%d", c.BaseName, remaining[c.BaseName])
		remaining[c.BaseName]--
		out[i] = c
	}
	return out
}

var suffixRe = regexp.MustCompile(`_\d+$`)

// StripSuffix removes a trailing disambiguation suffix from a control name.
func StripSuffix(name string) string {
	return suffixRe.ReplaceAllString(name, "")
}

// Rank returns the controls ordered best first by coarse score, then fine
// score. A NaN fine score ranks below every number, -Inf included; equal
// controls keep their input order. The input slice is not modified.
func Rank(scored []ScoredControl) []ScoredControl {
	out := make([]ScoredControl, len(scored))
	copy(out, scored)
	sort.SliceStable(out, func(i, j int) bool {
		return better(out[i], out[j])
	})
	return out
}

func better(a, b ScoredControl) bool {
	if a.CoarseScore != b.CoarseScore {
		return a.CoarseScore > b.CoarseScore
	}
	if math.IsNaN(a.FineScore) {
		return false
	}
	if math.IsNaN(b.FineScore) {
		return true
	}
	return a.FineScore > b.FineScore
}

// Select picks the control that judges the patient samples. A non-empty
// preferred name that matches a ranked control exactly wins; otherwise the
// top-ranked control is chosen. ranked must already be ordered by Rank.
func Select(ranked []ScoredControl, preferred string, log zerolog.Logger) (ScoredControl, error) {
	if len(ranked) == 0 {
		return ScoredControl{}, ErrNoControls
	}
	if preferred != "" {
		for _, c := range ranked {
			if c.Name == preferred {
				log.Info().Str("control", c.Name).Msg("use preferred control")
				return c, nil
			}
		}
		log.Warn().
			Str("preferred", preferred).
			Str("fallback", ranked[0].Name).
			Msg("preferred control not found, using best ranked control")
	}
	best := ranked[0]
	log.Info().
		Str("control", best.Name).
		Int("coarse_score", best.CoarseScore).
		Float64("fine_score", best.FineScore).
		Msg("best control")
	return best, nil
}

// Names returns the control names in slice order.
func Names(cs []ScoredControl) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}
