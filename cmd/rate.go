package cmd

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/inference-sim/qjump-sim/sim"
)

var (
	// CLI flags for the offline rate limiter simulation
	rateEpochs           int64     // Number of epochs to simulate
	rateDistribution     []float64 // Explicit cumulative thresholds (3 or 4 values)
	rateDistributionName string    // Named distribution from the constants table
	ratePacketsPerEpoch  float64   // Mean packets generated per epoch
	rateSeed             int64     // Seed for packet generation
)

// rateCmd runs the single-threaded rate limiter simulation
var rateCmd = &cobra.Command{
	Use:   "rate",
	Short: "Run the deterministic rate limiter simulation for a single host",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := rateConfigFromFlags()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := runRateSimulation(cmd.OutOrStdout(), cfg); err != nil {
			logrus.Fatalf("rate limiter simulation failed: %v", err)
		}
	},
}

func rateConfigFromFlags() (sim.RateSimConfig, error) {
	cfg := sim.DefaultRateSimConfig(constants)
	cfg.Epochs = rateEpochs
	cfg.MeanPacketsPerEpoch = ratePacketsPerEpoch
	cfg.Seed = rateSeed
	d, err := resolveDistribution(rateDistribution, rateDistributionName)
	if err != nil {
		return cfg, err
	}
	cfg.Distribution = d
	return cfg, cfg.Validate()
}

func runRateSimulation(w io.Writer, cfg sim.RateSimConfig) error {
	res, err := sim.RunRateSim(cfg)
	if err != nil {
		return err
	}
	return report(w, res.Print, res.WriteJSON)
}

func init() {
	rateCmd.Flags().Int64Var(&rateEpochs, "epochs", 100_000, "Number of epochs to simulate")
	rateCmd.Flags().Float64SliceVar(&rateDistribution, "distribution", nil, "Cumulative priority thresholds d1,d2,d3[,1.0] (overrides --distribution-name)")
	rateCmd.Flags().StringVar(&rateDistributionName, "distribution-name", "base", "Named distribution from the constants table")
	rateCmd.Flags().Float64Var(&ratePacketsPerEpoch, "packets-per-epoch", 5, "Mean packets generated per epoch")
	rateCmd.Flags().Int64Var(&rateSeed, "seed", 42, "Seed for packet generation")
}
