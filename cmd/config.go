package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"

	cfgpkg "github.com/Blitzliner/aminos/internal/config"
	"github.com/Blitzliner/aminos/internal/logging"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set aminos configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := yaml.Marshal(requireConfig())
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		c := requireConfig()
		switch key {
		case "file_to_analyze":
			c.FileToAnalyze = val
		case "export_directory":
			c.ExportDirectory = val
		case "file_extension_raw_data":
			c.FileExtensionRawData = val
		case "file_extension_analysis":
			c.FileExtensionReport = val
		case "ignore_calibration", "control_name":
			if _, err := regexp.Compile(val); err != nil {
				return fmt.Errorf("invalid pattern for %s: %w", key, err)
			}
			if key == "control_name" {
				c.ControlName = val
			} else {
				c.IgnoreCalibration = val
			}
		case "control_reference_file_path":
			c.ControlReferencePath = val
		case "patients_reference_file_path":
			c.PatientsReferencePath = val
		case "prefer_control":
			c.PreferControl = val
		case "columns.sample_name":
			c.Columns.SampleName = val
		case "reference.max_from_mean_row":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("invalid bool for %s: %v", key, val)
			}
			c.Reference.MaxFromMeanRow = b
		case "format.heading":
			c.Format.Heading = val
		case "format.invalid":
			c.Format.Invalid = val
		case "format.invalid_font":
			c.Format.InvalidFont = val
		case "format.valid":
			c.Format.Valid = val
		case "format.high":
			c.Format.High = val
		case "format.low":
			c.Format.Low = val
		case "log_level":
			if _, err := logging.ParseLevel(val); err != nil {
				return err
			}
			c.LogLevel = val
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = cfgpkg.DefaultFileName
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat config: %w", err)
		}
		if err := cfgpkg.Save(cfgpkg.Default(), path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote default config to %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config file")
}
