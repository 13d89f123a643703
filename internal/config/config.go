package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = "aminos.yaml"

// Config is the configuration of one analysis run. It is loaded once and
// passed by value; nothing in the analysis mutates it.
type Config struct {
	FileToAnalyze        string `mapstructure:"file_to_analyze" yaml:"file_to_analyze"`
	ExportDirectory      string `mapstructure:"export_directory" yaml:"export_directory"`
	FileExtensionRawData string `mapstructure:"file_extension_raw_data" yaml:"file_extension_raw_data"`
	FileExtensionReport  string `mapstructure:"file_extension_analysis" yaml:"file_extension_analysis"`

	// Regular expressions matched at the start of the sample name.
	IgnoreCalibration string `mapstructure:"ignore_calibration" yaml:"ignore_calibration"`
	ControlName       string `mapstructure:"control_name" yaml:"control_name"`

	ControlReferencePath  string `mapstructure:"control_reference_file_path" yaml:"control_reference_file_path"`
	PatientsReferencePath string `mapstructure:"patients_reference_file_path" yaml:"patients_reference_file_path"`

	// PreferControl names a disambiguated control (e.g. "Ko2_1") to use instead of the best ranked one.
	PreferControl string `mapstructure:"prefer_control" yaml:"prefer_control"`

	Columns   Columns   `mapstructure:"columns" yaml:"columns"`
	Reference Reference `mapstructure:"reference" yaml:"reference"`
	Format    Format    `mapstructure:"format" yaml:"format"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Columns maps roles to column names of the instrument export.
type Columns struct {
	SampleName string `mapstructure:"sample_name" yaml:"sample_name"`
}

// Reference controls how reference tables are read.
type Reference struct {
	// MaxFromMeanRow reads a control's upper limits from its mean row.
	MaxFromMeanRow bool `mapstructure:"max_from_mean_row" yaml:"max_from_mean_row"`
}

// Format holds report colours as #rrggbb.
type Format struct {
	Heading     string `mapstructure:"heading" yaml:"heading"`
	Invalid     string `mapstructure:"invalid" yaml:"invalid"`
	InvalidFont string `mapstructure:"invalid_font" yaml:"invalid_font"`
	Valid       string `mapstructure:"valid" yaml:"valid"`
	High        string `mapstructure:"high" yaml:"high"`
	Low         string `mapstructure:"low" yaml:"low"`
}

// Patterns are the compiled sample-name expressions.
type Patterns struct {
	Calibration *regexp.Regexp
	Control     *regexp.Regexp
}

var defaults = map[string]any{
	"export_directory":             "./analysed",
	"file_extension_raw_data":      "_Rohdaten.xlsx",
	"file_extension_analysis":      "_Analyse.xlsx",
	"ignore_calibration":           `[KkCc]al\s?\d`,
	"control_name":                 `(([CckK][oO])|([qQ][cC]))\s?[I\d]`,
	"control_reference_file_path":  "./reference/kontrollwerte.csv",
	"patients_reference_file_path": "./reference/patienten_kontrollwerte.csv",
	"prefer_control":               "",
	"columns.sample_name":          "Sample Name",
	"reference.max_from_mean_row":  true,
	"format.heading":               "#f1f2f6",
	"format.invalid":               "#d1d8e0",
	"format.invalid_font":          "#636e72",
	"format.valid":                 "#2bcbba",
	"format.high":                  "#fc5c65",
	"format.low":                   "#45aaf2",
	"log_level":                    "info",
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	var c Config
	// defaults only; decoding a map of scalars cannot fail
	_ = v.Unmarshal(&c)
	return &c
}

// Load loads configuration from file, env, and defaults.
// Precedence: env (AMINOS_*) > config file > defaults. An empty cfgFile
// looks for aminos.yaml in the working directory; a missing file is fine,
// an explicitly named one is not.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AMINOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(strings.TrimSuffix(DefaultFileName, filepath.Ext(DefaultFileName)))
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Save writes the configuration as YAML. An empty cfgFile writes aminos.yaml
// in the working directory.
func Save(c *Config, cfgFile string) error {
	path := cfgFile
	if path == "" {
		path = DefaultFileName
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Compile compiles the calibration and control expressions.
func (c *Config) Compile() (*Patterns, error) {
	cal, err := regexp.Compile(c.IgnoreCalibration)
	if err != nil {
		return nil, fmt.Errorf("compile ignore_calibration: %w", err)
	}
	ctl, err := regexp.Compile(c.ControlName)
	if err != nil {
		return nil, fmt.Errorf("compile control_name: %w", err)
	}
	return &Patterns{Calibration: cal, Control: ctl}, nil
}

// Validate reports the first setting that makes a run impossible.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Columns.SampleName) == "":
		return fmt.Errorf("columns.sample_name must not be empty")
	case c.ControlReferencePath == "":
		return fmt.Errorf("control_reference_file_path must not be empty")
	case c.PatientsReferencePath == "":
		return fmt.Errorf("patients_reference_file_path must not be empty")
	case c.ExportDirectory == "":
		return fmt.Errorf("export_directory must not be empty")
	}
	_, err := c.Compile()
	return err
}
