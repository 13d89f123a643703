package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Blitzliner/aminos/internal/pipeline"
	"github.com/Blitzliner/aminos/internal/qc"
	"github.com/spf13/cobra"
)

var controlsCmd = &cobra.Command{
	Use:   "controls [file]",
	Short: "List the ranked controls of an export without writing output",
	Long: `Score and rank the controls of an export and print them best first. The
names can be passed to "aminos analyze --prefer-control".`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := pipelineOptions(cmd, args)
		if err != nil {
			return err
		}
		opts.DryRun = true

		res, err := pipeline.Run(effectiveConfig(cmd), opts)
		out := cmd.OutOrStdout()
		if err != nil {
			if errors.Is(err, qc.ErrNoControls) {
				printRejections(out, res)
			}
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RANK\tCONTROL\tREFERENCE\tSCORE\tFINE\tOUT OF RANGE\t")
		for i, c := range res.Ranked {
			mark := ""
			if c.Name == res.Chosen.Name {
				mark = " *"
			}
			fmt.Fprintf(tw, "%d%s\t%s\t%d\t%d\t%s\t%s\t\n", i+1, mark, c.Name, c.ID, c.CoarseScore,
				fineText(c.FineScore), strings.Join(c.OutOfRange(), ","))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		printRejections(out, res)
		return nil
	},
}

// printRejections warns about every rejected control. A control without
// reference rows is listed with the identifiers the reference does know.
func printRejections(out io.Writer, res *pipeline.Result) {
	if res == nil {
		return
	}
	for _, r := range res.Rejected {
		fmt.Fprintf(out, "⚠ Warning: control %s rejected: %v\n", r.Name, r.Err)
		if errors.Is(r.Err, qc.ErrNoReference) && res.ControlRef != nil {
			ids := res.ControlRef.IDs()
			known := make([]string, len(ids))
			for i, id := range ids {
				known[i] = strconv.Itoa(id)
			}
			fmt.Fprintf(out, "  known reference identifiers: %s\n", strings.Join(known, ", "))
		}
	}
}

func init() {
	rootCmd.AddCommand(controlsCmd)
	addReadFlags(controlsCmd)
}

func fineText(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
