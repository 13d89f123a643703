// Package run manages the per-analysis workspace: a timestamped directory
// holding a copy of the raw export, the report, the analysis summary and the
// run log, described by a run.json manifest.
package run

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Blitzliner/aminos/internal/utils"
	"github.com/google/uuid"
)

const (
	// StampLayout names run directories and the files inside them.
	StampLayout = "20060102_150405"

	manifestFileName = "run.json"
	// AnalysisFileName holds the JSON summary of the evaluation.
	AnalysisFileName = "analysis.json"
	// LogFileName holds the JSON-lines log of the run.
	LogFileName = "run.log"
)

// Workspace is one analysis run persisted on disk.
type Workspace struct {
	ID        string    `json:"id"`
	Stamp     string    `json:"stamp"`
	Input     string    `json:"input"`
	RawCopy   string    `json:"raw_copy,omitempty"`
	Report    string    `json:"report,omitempty"`
	Analysis  string    `json:"analysis,omitempty"`
	Log       string    `json:"log,omitempty"`
	Chosen    string    `json:"chosen_control,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Not serialized: on-disk location of the run directory
	rootDir string `json:"-"`
}

// New creates the workspace directory <exportDir>/<stamp>. When a run with the
// same stamp already exists a numeric suffix is added to the directory name;
// file names keep the plain stamp.
func New(exportDir, input string, now time.Time) (*Workspace, error) {
	stamp := now.Format(StampLayout)
	dir := filepath.Join(exportDir, stamp)
	for n := 2; ; n++ {
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			break
		}
		dir = filepath.Join(exportDir, fmt.Sprintf("%s_%d", stamp, n))
	}
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	return &Workspace{
		ID:        uuid.NewString(),
		Stamp:     stamp,
		Input:     input,
		CreatedAt: now,
		UpdatedAt: now,
		rootDir:   dir,
	}, nil
}

// Load reads the manifest from dir.
func Load(dir string) (*Workspace, error) {
	path := filepath.Join(dir, manifestFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("run not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read run: %w", err)
	}
	var w Workspace
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("parse run: %w", err)
	}
	w.rootDir = dir
	return &w, nil
}

// List loads every run under exportDir, oldest first. Directories without a
// manifest are skipped; a missing exportDir yields no runs.
func List(exportDir string) ([]*Workspace, error) {
	entries, err := os.ReadDir(exportDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var out []*Workspace
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(exportDir, e.Name())
		if _, err := os.Stat(filepath.Join(dir, manifestFileName)); err != nil {
			continue
		}
		w, err := Load(dir)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// RootDir returns the run directory.
func (w *Workspace) RootDir() string { return w.rootDir }

// Path returns the path of a file inside the run directory.
func (w *Workspace) Path(name string) string { return filepath.Join(w.rootDir, name) }

// StampedPath returns the path of "<stamp><suffix>" inside the run directory,
// e.g. suffix "_Analyse.xlsx".
func (w *Workspace) StampedPath(suffix string) string {
	return w.Path(w.Stamp + suffix)
}

// CopyRaw stores a copy of the input export as "<stamp><suffix>".
func (w *Workspace) CopyRaw(suffix string) error {
	dst := w.StampedPath(suffix)
	if err := utils.CopyFile(w.Input, dst); err != nil {
		return fmt.Errorf("copy raw data: %w", err)
	}
	w.RawCopy = filepath.Base(dst)
	return nil
}

// OpenLog creates the run log file. The caller closes it.
func (w *Workspace) OpenLog() (*os.File, error) {
	f, err := os.OpenFile(w.Path(LogFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	w.Log = LogFileName
	return f, nil
}

// WriteJSON writes v as indented JSON to name inside the run directory.
func (w *Workspace) WriteJSON(name string, v any) error {
	data, err := utils.PrettyJSON(v)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(w.Path(name), data)
}

// Save writes run.json using atomic write.
func (w *Workspace) Save() error {
	if w.rootDir == "" {
		return errors.New("run directory not set")
	}
	w.UpdatedAt = time.Now()
	return w.WriteJSON(manifestFileName, w)
}
