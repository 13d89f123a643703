package qc

import (
	"fmt"
	"math"

	"github.com/Blitzliner/aminos/internal/analysis"
	"github.com/Blitzliner/aminos/internal/reference"
	"github.com/rs/zerolog"
)

// ScoredAnalytes is the number of analytes a complete control panel covers.
// The coarse score counts failures down from this value.
const ScoredAnalytes = 20

// ScoreOptions tunes how reference rows are read.
type ScoreOptions struct {
	// MaxFromMeanRow reads the upper limit from the mean row (the third row
	// of the identifier's block) instead of the row tagged "max".
	MaxFromMeanRow bool
}

// ScoredControl is the evaluation of a single control row.
type ScoredControl struct {
	// Name is the display name, suffixed with "_<n>" by Disambiguate.
	Name     string
	BaseName string
	ID       int
	// CoarseScore is ScoredAnalytes minus the analytes outside their range.
	CoarseScore int
	// FineScore is the mean of 1-|x-mean|/|mean-min| over analytes with a
	// reading, rounded to 3 decimals. It is -Inf or NaN when an analyte has a
	// zero-width reference range.
	FineScore float64
	Result    map[string]Status
	// Analytes lists the keys of Result in column order.
	Analytes []string
	Raw      analysis.Row
}

// OutOfRange returns the analytes flagged TOO_LOW or TOO_HIGH, in column order.
func (c ScoredControl) OutOfRange() []string {
	var out []string
	for _, a := range c.Analytes {
		if c.Result[a].OutOfRange() {
			out = append(out, a)
		}
	}
	return out
}

// Rejection records a control row that could not be scored.
type Rejection struct {
	Name string
	Err  error
}

// Score evaluates one control row against the control reference table.
// columns are the dataset column names; sampleCol indexes the sample name.
func Score(row analysis.Row, columns []string, sampleCol int, ref *reference.Controls, opt ScoreOptions) (ScoredControl, error) {
	name := row.Get(sampleCol).String()
	id, err := ControlID(name)
	if err != nil {
		return ScoredControl{}, err
	}
	if !ref.Has(id) {
		return ScoredControl{}, fmt.Errorf("control %q (reference %d): %w", name, id, ErrNoReference)
	}
	rng, err := ref.Range(id, opt.MaxFromMeanRow)
	if err != nil {
		return ScoredControl{}, fmt.Errorf("control %q: %w", name, err)
	}

	sc := ScoredControl{
		Name:     name,
		BaseName: name,
		ID:       id,
		Result:   map[string]Status{},
		Raw:      row,
	}
	var failed int
	var sum float64
	var n int
	for i, col := range columns {
		// identity columns are never scored
		if i < 2 || i == sampleCol {
			continue
		}
		ri := reference.MatchIndex(rng.Analytes, col)
		if ri < 0 {
			continue
		}
		if _, dup := sc.Result[col]; dup {
			continue
		}
		lo, mean, hi := rng.Min[ri], rng.Mean[ri], rng.Max[ri]
		x, ok := row.Get(i).Float()
		st := Normal
		if ok {
			st = classify(x, lo, hi)
		}
		sc.Result[col] = st
		sc.Analytes = append(sc.Analytes, col)
		if st.OutOfRange() {
			failed++
		}
		// deviation term; blank readings and blank reference cells are skipped,
		// a zero-width range is left to IEEE arithmetic
		if !ok || math.IsNaN(mean) || math.IsNaN(lo) {
			continue
		}
		sum += 1 - math.Abs(x-mean)/math.Abs(mean-lo)
		n++
	}

	sc.CoarseScore = ScoredAnalytes - failed
	if sc.CoarseScore < 0 {
		sc.CoarseScore = 0
	}
	if n == 0 {
		sc.FineScore = math.NaN()
	} else {
		sc.FineScore = round3(sum / float64(n))
	}
	return sc, nil
}

// ScoreAll scores every control row. Rows that cannot be scored are logged
// and returned as rejections; they never take part in ranking.
func ScoreAll(controls *analysis.Table, sampleCol int, ref *reference.Controls, opt ScoreOptions, log zerolog.Logger) ([]ScoredControl, []Rejection) {
	var scored []ScoredControl
	var rejected []Rejection
	for _, row := range controls.Rows {
		name := row.Get(sampleCol).String()
		sc, err := Score(row, controls.Columns, sampleCol, ref, opt)
		if err != nil {
			log.Error().Err(err).Str("control", name).Msg("control rejected")
			rejected = append(rejected, Rejection{Name: name, Err: err})
			continue
		}
		log.Info().
			Str("control", sc.Name).
			Int("reference", sc.ID).
			Int("coarse_score", sc.CoarseScore).
			Float64("fine_score", sc.FineScore).
			Msg("control scored")
		scored = append(scored, sc)
	}
	return scored, rejected
}

func round3(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return math.Round(x*1000) / 1000
}
