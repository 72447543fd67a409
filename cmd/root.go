package cmd

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	sim "github.com/inference-sim/qjump-sim/sim"
)

const (
	outputText = "text"
	outputJSON = "json"
)

var (
	// Persistent flags
	logLevel      string // Log verbosity level
	constantsPath string // YAML constants table (empty = built-in defaults)
	outputFormat  string // text or json

	// constants is loaded once per invocation by the persistent pre-run hook.
	constants = sim.DefaultConstants()
)

// rootCmd is the base command for the CLI. Without a subcommand it runs the
// reference experiments: the rate limiter simulation with a known and an
// unknown traffic mix, then the network simulation.
var rootCmd = &cobra.Command{
	Use:               "qjump-sim",
	Short:             "Simulator for Qjump admission control over a two-tier datacenter fabric",
	PersistentPreRunE: setup,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runReferenceExperiments(cmd); err != nil {
			logrus.Fatalf("reference experiments failed: %v", err)
		}
	},
}

// setup configures logging and loads the constants table.
func setup(cmd *cobra.Command, _ []string) error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	logrus.SetLevel(level)

	if outputFormat != outputText && outputFormat != outputJSON {
		return fmt.Errorf("unknown output format %q", outputFormat)
	}

	constants = sim.DefaultConstants()
	if constantsPath != "" {
		c, err := sim.LoadConstants(constantsPath)
		if err != nil {
			return err
		}
		constants = c
	}
	logrus.Debugf("constants: epoch=%v budgets=%v", constants.EpochDuration(), constants.Budgets())
	return nil
}

// runReferenceExperiments reproduces the default experiment set.
func runReferenceExperiments(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	for _, name := range []string{"base", "uniform"} {
		cfg := sim.DefaultRateSimConfig(constants)
		d, err := constants.Distribution(name)
		if err != nil {
			return err
		}
		cfg.Distribution = d
		logrus.Infof("rate limiter simulation with %s distribution %v", name, d)
		if err := runRateSimulation(out, cfg); err != nil {
			return err
		}
	}
	return runNetworkSimulation(cmd.Context(), out, sim.DefaultNetworkConfig(constants), networkExtras{})
}

// report renders a result in the selected output format.
func report(w io.Writer, text func(io.Writer), json func(io.Writer) error) error {
	if outputFormat == outputJSON {
		return json(w)
	}
	text(w)
	return nil
}

// Execute runs the CLI root command
func Execute() {
	// Fatal logs run atexit handlers (trace flushes) before exiting.
	logrus.StandardLogger().ExitFunc = atexit.Exit
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&constantsPath, "config", "", "YAML constants table (bandwidth, packet size, level multipliers, distributions)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", outputText, "Report format (text, json)")

	rootCmd.AddCommand(netCmd)
	rootCmd.AddCommand(rateCmd)
}
