// Package pipeline runs one evaluation of an instrument export end to end:
// read, partition, score, rank, select, mark patients and write the results
// into a run workspace.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Blitzliner/aminos/internal/analysis"
	"github.com/Blitzliner/aminos/internal/config"
	"github.com/Blitzliner/aminos/internal/logging"
	"github.com/Blitzliner/aminos/internal/parser"
	"github.com/Blitzliner/aminos/internal/qc"
	"github.com/Blitzliner/aminos/internal/reference"
	"github.com/Blitzliner/aminos/internal/report"
	"github.com/Blitzliner/aminos/internal/run"
	"github.com/Blitzliner/aminos/internal/utils"
	"github.com/rs/zerolog"
)

// ErrNoInput is returned when neither the options nor the config name a file.
var ErrNoInput = errors.New("no input file")

// Options are per-invocation settings layered over the config.
type Options struct {
	// Input overrides file_to_analyze.
	Input string
	// PreferControl overrides prefer_control when non-empty.
	PreferControl string
	// Read selects the sheet and number locale of the export.
	Read analysis.Options
	// DryRun evaluates without creating a run workspace.
	DryRun bool
	// Console receives the log; nil discards it.
	Console io.Writer
	// Pretty renders console logs for humans instead of JSON lines.
	Pretty bool
	// Now stamps the workspace; zero means time.Now.
	Now time.Time
}

// Result is the outcome of a run.
type Result struct {
	Input       string
	Raw         *analysis.Table
	Partitioned *qc.Partitioned
	Ranked      []qc.ScoredControl
	Rejected    []qc.Rejection
	Chosen      qc.ScoredControl
	Mask        *qc.PatientMask
	ControlRef  *reference.Controls
	PatientRef  *reference.Patients
	// Workspace is nil for dry runs.
	Workspace  *run.Workspace
	ReportPath string
}

// Run evaluates the configured export.
func Run(cfg *config.Config, opts Options) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	pats, err := cfg.Compile()
	if err != nil {
		return nil, err
	}
	input := opts.Input
	if input == "" {
		input = cfg.FileToAnalyze
	}
	if input == "" {
		return nil, ErrNoInput
	}
	if !parser.Supported(input) {
		return nil, fmt.Errorf("%w: %s", parser.ErrUnsupported, filepath.Base(input))
	}
	if _, err := os.Stat(input); err != nil {
		return nil, fmt.Errorf("input file: %w", err)
	}
	console := opts.Console
	if console == nil {
		console = io.Discard
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	res := &Result{Input: input}
	log := logging.New(console, cfg.LogLevel, opts.Pretty)
	if !opts.DryRun {
		ws, err := run.New(cfg.ExportDirectory, input, now)
		if err != nil {
			return nil, err
		}
		f, err := ws.OpenLog()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		log = logging.Tee(console, f, cfg.LogLevel, opts.Pretty)
		res.Workspace = ws
		log.Info().Str("run", ws.ID).Str("dir", ws.RootDir()).Msg("start run")
	}

	if err := evaluate(cfg, pats, input, opts, res, log); err != nil {
		log.Error().Err(err).Msg("run failed")
		return res, err
	}
	if res.Workspace != nil {
		if err := persist(cfg, res, log); err != nil {
			log.Error().Err(err).Msg("write results")
			return res, err
		}
	}
	return res, nil
}

func evaluate(cfg *config.Config, pats *config.Patterns, input string, opts Options, res *Result, log zerolog.Logger) error {
	log.Info().Str("file", input).Msg("read raw data")
	raw, err := parser.ReadFile(input, opts.Read)
	if err != nil {
		return fmt.Errorf("read raw data: %w", err)
	}
	res.Raw = raw

	ctlPath := resolveReference(cfg.ControlReferencePath, input)
	patPath := resolveReference(cfg.PatientsReferencePath, input)
	log.Debug().Str("controls", ctlPath).Str("patients", patPath).Msg("load references")
	ctlRef, err := reference.LoadControls(ctlPath)
	if err != nil {
		return fmt.Errorf("load control reference: %w", err)
	}
	res.ControlRef = ctlRef
	patRef, err := reference.LoadPatients(patPath)
	if err != nil {
		return fmt.Errorf("load patient reference: %w", err)
	}

	part, err := qc.Partition(raw, cfg.Columns.SampleName, pats.Calibration, pats.Control, log)
	if err != nil {
		return err
	}
	res.Partitioned = part

	scoreOpt := qc.ScoreOptions{MaxFromMeanRow: cfg.Reference.MaxFromMeanRow}
	scored, rejected := qc.ScoreAll(part.Controls, part.SampleColumn, ctlRef, scoreOpt, log)
	res.Rejected = rejected
	if len(scored) == 0 {
		return fmt.Errorf("%w: %d control rows, %d rejected", qc.ErrNoControls, len(part.Controls.Rows), len(rejected))
	}
	res.Ranked = qc.Rank(qc.Disambiguate(scored))
	log.Debug().Strs("ranking", qc.Names(res.Ranked)).Msg("rank controls")

	preferred := cfg.PreferControl
	if opts.PreferControl != "" {
		preferred = opts.PreferControl
	}
	chosen, err := qc.Select(res.Ranked, preferred, log)
	if err != nil {
		return err
	}
	res.Chosen = chosen

	res.Mask = qc.MarkPatients(part.Patients, patRef, chosen, res.Ranked)
	if len(res.Mask.Invalid) > 0 {
		log.Warn().Strs("analytes", res.Mask.Invalid).Str("control", chosen.Name).Msg("analytes invalid for all replicates")
	}
	res.PatientRef = patRef
	return nil
}

func persist(cfg *config.Config, res *Result, log zerolog.Logger) error {
	ws := res.Workspace
	if err := ws.CopyRaw(rawSuffix(cfg.FileExtensionRawData, res.Input)); err != nil {
		return err
	}

	res.ReportPath = ws.StampedPath(cfg.FileExtensionReport)
	log.Info().Str("file", res.ReportPath).Msg("write report")
	err := report.Write(res.ReportPath, report.Input{
		Raw:          res.Raw,
		Patients:     res.Partitioned.Patients,
		SampleColumn: res.Partitioned.SampleColumn,
		Ranked:       res.Ranked,
		Rejected:     res.Rejected,
		Chosen:       res.Chosen,
		Mask:         res.Mask,
		PatientRef:   res.PatientRef,
	}, cfg.Format)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	ws.Report = filepath.Base(res.ReportPath)

	if err := ws.WriteJSON(run.AnalysisFileName, Summarize(res)); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	ws.Analysis = run.AnalysisFileName
	ws.Chosen = res.Chosen.Name
	if err := ws.Save(); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	log.Info().Str("dir", ws.RootDir()).Msg("run complete")
	return nil
}

// rawSuffix keeps the stem of the configured suffix and the input's extension,
// so a CSV export is copied as "<stamp>_Rohdaten.csv".
func rawSuffix(configured, input string) string {
	stem := strings.TrimSuffix(configured, filepath.Ext(configured))
	return stem + strings.ToLower(filepath.Ext(input))
}

// resolveReference returns path unchanged when it exists or is absolute.
// A relative path that is missing from the working directory is looked up in
// the directories above the input file.
func resolveReference(path, input string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	rel := filepath.Clean(path)
	dir, err := utils.FindUp(filepath.Dir(input), rel)
	if err != nil {
		return path
	}
	return filepath.Join(dir, rel)
}
