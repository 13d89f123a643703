package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/Blitzliner/aminos/internal/analysis"
	cfgpkg "github.com/Blitzliner/aminos/internal/config"
	"github.com/Blitzliner/aminos/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	anaPrefer         string
	anaExportDir      string
	anaSampleColumn   string
	anaControlsRef    string
	anaPatientsRef    string
	anaMaxFromMeanRow bool
	anaSheetName      string
	anaSheetIndex     int
	anaDelimiter      string
	anaDecimal        string
	anaDryRun         bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Evaluate an instrument export and write the analysis workbook",
	Long: `Evaluate an instrument export (.xlsx, .csv or .tsv). Without a file argument
file_to_analyze from the config is used. Use --prefer-control with a name printed
by "aminos controls" to judge the patients with a different control.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := pipelineOptions(cmd, args)
		if err != nil {
			return err
		}
		opts.PreferControl = anaPrefer
		opts.DryRun = anaDryRun

		res, err := pipeline.Run(effectiveConfig(cmd), opts)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Analysed %s\n", res.Input)
		fmt.Fprintf(out, "  Kontrolle: %s (score %d / %s)\n", res.Chosen.Name, res.Chosen.CoarseScore, fineText(res.Chosen.FineScore))
		if len(res.Mask.Invalid) > 0 {
			fmt.Fprintf(out, "⚠ Warning: invalid analytes: %s\n", strings.Join(res.Mask.Invalid, ", "))
		}
		printRejections(out, res)
		if res.Workspace != nil {
			fmt.Fprintf(out, "  Report: %s\n", res.ReportPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&anaPrefer, "prefer-control", "", "judge patients with this control (e.g. Ko2_1) instead of the best ranked one")
	analyzeCmd.Flags().BoolVar(&anaDryRun, "dry-run", false, "evaluate without writing a run directory")
	analyzeCmd.Flags().StringVar(&anaExportDir, "export-dir", "", "directory for run output (overrides export_directory)")
	addReadFlags(analyzeCmd)
}

// addReadFlags registers the flags shared by analyze and controls.
func addReadFlags(c *cobra.Command) {
	c.Flags().StringVar(&anaSampleColumn, "sample-column", "", "name of the sample column (overrides columns.sample_name)")
	c.Flags().StringVar(&anaControlsRef, "controls-ref", "", "control reference CSV (overrides control_reference_file_path)")
	c.Flags().StringVar(&anaPatientsRef, "patients-ref", "", "patient reference CSV (overrides patients_reference_file_path)")
	c.Flags().BoolVar(&anaMaxFromMeanRow, "max-from-mean-row", true, "read control upper limits from the mean row")
	c.Flags().StringVar(&anaSheetName, "sheet-name", "", "XLSX: sheet name to read (default first sheet)")
	c.Flags().IntVar(&anaSheetIndex, "sheet-index", 0, "XLSX: 1-based sheet index (ignored if --sheet-name is set)")
	c.Flags().StringVar(&anaDelimiter, "delimiter", "", "CSV delimiter: ',', ';' or 'tab' (default by extension)")
	c.Flags().StringVar(&anaDecimal, "decimal", "", "decimal separator: '.' or ',' (default auto)")
}

// effectiveConfig applies the command's flags over the loaded config, or
// over the defaults when loading failed.
func effectiveConfig(cmd *cobra.Command) *cfgpkg.Config {
	c := *requireConfig()
	f := cmd.Flags()
	if anaExportDir != "" {
		c.ExportDirectory = anaExportDir
	}
	if anaSampleColumn != "" {
		c.Columns.SampleName = anaSampleColumn
	}
	if anaControlsRef != "" {
		c.ControlReferencePath = anaControlsRef
	}
	if anaPatientsRef != "" {
		c.PatientsReferencePath = anaPatientsRef
	}
	if f.Changed("max-from-mean-row") {
		c.Reference.MaxFromMeanRow = anaMaxFromMeanRow
	}
	// applied per run so a saved config never picks it up
	if debug {
		c.LogLevel = "debug"
	}
	return &c
}

func pipelineOptions(cmd *cobra.Command, args []string) (pipeline.Options, error) {
	opts := pipeline.Options{Console: os.Stderr, Pretty: !jsonLog}
	if len(args) == 1 {
		opts.Input = args[0]
	}
	read := analysis.DefaultOptions()
	read.SheetName = anaSheetName
	if anaSheetIndex > 0 {
		read.SheetIndex = anaSheetIndex
	}
	switch anaDelimiter {
	case "":
	case ",":
		read.Delimiter = ','
	case ";":
		read.Delimiter = ';'
	case "\t", "tab":
		read.Delimiter = '\t'
	default:
		return opts, fmt.Errorf("unsupported --delimiter: %s", anaDelimiter)
	}
	switch strings.ToLower(strings.TrimSpace(anaDecimal)) {
	case "":
	case ".", "dot":
		read.DecimalSeparator = '.'
	case ",", "comma":
		read.DecimalSeparator = ','
	default:
		return opts, fmt.Errorf("unsupported --decimal: %s", anaDecimal)
	}
	opts.Read = read
	return opts, nil
}
