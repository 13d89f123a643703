package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/Blitzliner/aminos/internal/run"
	"github.com/spf13/cobra"
)

var runsExportDir string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List previous analysis runs",
	Long:  `List the run directories under export_directory, oldest first, with the control each run chose.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := requireConfig().ExportDirectory
		if runsExportDir != "" {
			dir = runsExportDir
		}
		runs, err := run.List(dir)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "(no runs)")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "STAMP\tCONTROL\tINPUT\tREPORT\t")
		for _, w := range runs {
			report := "-"
			if w.Report != "" {
				report = w.Path(w.Report)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", w.Stamp, w.Chosen, w.Input, report)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().StringVar(&runsExportDir, "export-dir", "", "directory holding the runs (overrides export_directory)")
}
