package pipeline

import (
	"math"
	"strconv"

	"github.com/Blitzliner/aminos/internal/qc"
)

// Summary is the JSON rendering of a run written to analysis.json.
type Summary struct {
	RunID           string             `json:"run_id,omitempty"`
	Input           string             `json:"input"`
	Chosen          ControlSummary     `json:"chosen"`
	Controls        []ControlSummary   `json:"controls"`
	Rejected        []RejectionSummary `json:"rejected,omitempty"`
	InvalidAnalytes []string           `json:"invalid_analytes"`
	Patients        []PatientSummary   `json:"patients"`
}

// ControlSummary describes one ranked control.
type ControlSummary struct {
	Name        string `json:"name"`
	Reference   int    `json:"reference"`
	CoarseScore int    `json:"coarse_score"`
	// FineScore is null when the score is not a finite number; FineScoreText
	// then carries "NaN", "+Inf" or "-Inf".
	FineScore     *float64             `json:"fine_score"`
	FineScoreText string               `json:"fine_score_text,omitempty"`
	OutOfRange    []string             `json:"out_of_range,omitempty"`
	Result        map[string]qc.Status `json:"result"`
}

// RejectionSummary is a control that took no part in ranking.
type RejectionSummary struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// PatientSummary lists the flagged analytes of one patient; normal analytes are omitted.
type PatientSummary struct {
	Sample string               `json:"sample"`
	Flags  map[string]qc.Status `json:"flags,omitempty"`
}

// Summarize converts a result into its JSON form.
func Summarize(res *Result) Summary {
	s := Summary{Input: res.Input, InvalidAnalytes: []string{}}
	if res.Workspace != nil {
		s.RunID = res.Workspace.ID
	}
	s.Chosen = controlSummary(res.Chosen)
	for _, c := range res.Ranked {
		s.Controls = append(s.Controls, controlSummary(c))
	}
	for _, r := range res.Rejected {
		s.Rejected = append(s.Rejected, RejectionSummary{Name: r.Name, Reason: r.Err.Error()})
	}
	if res.Mask == nil || res.Partitioned == nil {
		return s
	}
	s.InvalidAnalytes = append(s.InvalidAnalytes, res.Mask.Invalid...)
	for i, row := range res.Partitioned.Patients.Rows {
		p := PatientSummary{Sample: row.Get(res.Partitioned.SampleColumn).String()}
		for j, a := range res.Mask.Columns {
			if st := res.Mask.Cells[i][j]; st != qc.Normal {
				if p.Flags == nil {
					p.Flags = map[string]qc.Status{}
				}
				p.Flags[a] = st
			}
		}
		s.Patients = append(s.Patients, p)
	}
	return s
}

func controlSummary(c qc.ScoredControl) ControlSummary {
	cs := ControlSummary{
		Name:        c.Name,
		Reference:   c.ID,
		CoarseScore: c.CoarseScore,
		OutOfRange:  c.OutOfRange(),
		Result:      c.Result,
	}
	if math.IsNaN(c.FineScore) || math.IsInf(c.FineScore, 0) {
		cs.FineScoreText = strconv.FormatFloat(c.FineScore, 'f', -1, 64)
	} else {
		f := c.FineScore
		cs.FineScore = &f
	}
	return cs
}
