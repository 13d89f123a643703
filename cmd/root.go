package cmd

import (
	"fmt"
	"os"

	cfgpkg "github.com/Blitzliner/aminos/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	jsonLog bool

	// Loaded configuration
	cfg *cfgpkg.Config
)

var rootCmd = &cobra.Command{
	Use:   "aminos",
	Short: "Quality control for amino-acid screening runs",
	Long: `aminos evaluates an amino-acid analyser export: it scores the control samples
against their reference ranges, picks the best control and marks which patient
values can be trusted. Results are written to a timestamped run directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./aminos.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "log JSON lines to stderr instead of console output")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands that need a config load the defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c
}

// requireConfig returns the loaded config, falling back to the defaults.
func requireConfig() *cfgpkg.Config {
	if cfg == nil {
		cfg = cfgpkg.Default()
	}
	return cfg
}
