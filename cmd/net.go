package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/inference-sim/qjump-sim/sim"
	"github.com/inference-sim/qjump-sim/sim/telemetry"
	"github.com/inference-sim/qjump-sim/sim/trace"
)

var (
	// CLI flags for the network simulation
	netEpochs           int64     // Number of epochs to simulate
	netDistribution     []float64 // Explicit cumulative thresholds (3 or 4 values)
	netDistributionName string    // Named distribution from the constants table
	netPTx              float64   // Per-host, per-epoch transmission probability
	netHosts            int       // Host count (0 = constants table)
	netHostsPerRack     int       // Hosts per rack (0 = constants table)
	netSeed             int64     // Seed for trials and packet draws
	netWorkers          int       // Admission worker pool size (0 = 2 per host)
	netTimeDilation     float64   // Multiplier applied to the epoch duration
	netRouting          string    // Routing mode
	netMaxHops          int       // Switch hop limit (0 = default)
	netTraceLevel       string    // Trace level (none, decisions)
	netTraceDB          string    // SQLite trace output path
	netMetricsAddr      string    // Address serving Prometheus metrics during the run
)

// networkExtras carries the optional instrumentation of a network run.
type networkExtras struct {
	traceLevel  string
	traceDB     string
	metricsAddr string
}

// netCmd runs the live network simulation using parameters from CLI flags
var netCmd = &cobra.Command{
	Use:   "net",
	Short: "Run the concurrent network simulation (hosts, ToR and aggregation switches)",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := networkConfigFromFlags()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		extras := networkExtras{traceLevel: netTraceLevel, traceDB: netTraceDB, metricsAddr: netMetricsAddr}
		if err := runNetworkSimulation(cmd.Context(), cmd.OutOrStdout(), cfg, extras); err != nil {
			logrus.Fatalf("network simulation failed: %v", err)
		}
	},
}

// networkConfigFromFlags merges flags over the constants table.
func networkConfigFromFlags() (sim.NetworkConfig, error) {
	cfg := sim.DefaultNetworkConfig(constants)
	cfg.Epochs = netEpochs
	cfg.PTx = netPTx
	cfg.Seed = netSeed
	cfg.Workers = netWorkers
	cfg.Routing = netRouting
	cfg.MaxHops = netMaxHops
	if netHosts != 0 {
		cfg.Hosts = netHosts
	}
	if netHostsPerRack != 0 {
		cfg.HostsPerRack = netHostsPerRack
	}
	d, err := resolveDistribution(netDistribution, netDistributionName)
	if err != nil {
		return cfg, err
	}
	cfg.Distribution = d
	if !(netTimeDilation > 0) {
		return cfg, fmt.Errorf("%w: time dilation must be positive, got %g", sim.ErrInvalidConfig, netTimeDilation)
	}
	cfg.EpochDuration = time.Duration(float64(constants.EpochDuration()) * netTimeDilation)
	return cfg, cfg.Validate()
}

// resolveDistribution prefers explicit thresholds over a named distribution.
func resolveDistribution(values []float64, name string) (sim.Distribution, error) {
	if len(values) > 0 {
		return sim.ParseDistribution(values)
	}
	return constants.Distribution(name)
}

// runNetworkSimulation runs one engine with the requested instrumentation
// and reports its metrics.
func runNetworkSimulation(ctx context.Context, w io.Writer, cfg sim.NetworkConfig, extras networkExtras) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !trace.IsValidTraceLevel(extras.traceLevel) {
		return fmt.Errorf("unknown trace level %q", extras.traceLevel)
	}

	var opts []sim.Option
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevel(extras.traceLevel)})
	if obs := sim.NewTraceObserver(st); obs != nil {
		opts = append(opts, sim.WithObserver(obs))
	}
	if extras.metricsAddr != "" {
		prom := telemetry.NewPrometheus()
		opts = append(opts, sim.WithObserver(prom))
		srv := serveMetrics(extras.metricsAddr, prom.Registry)
		defer shutdownMetrics(srv)
	}

	engine, err := sim.NewEngine(cfg, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	startTime := time.Now()
	metrics, runErr := engine.Run(ctx)
	logrus.Infof("network simulation %s took %v", engine.RunID(), time.Since(startTime))

	if err := report(w, metrics.Print, metrics.WriteJSON); err != nil {
		return err
	}
	if st.Config.Enabled() {
		if err := writeTrace(w, st, extras.traceDB); err != nil {
			return err
		}
	}
	return runErr
}

// writeTrace prints the trace summary and persists the records to SQLite.
func writeTrace(w io.Writer, st *trace.SimulationTrace, path string) error {
	summary := trace.Summarize(st)
	if outputFormat == outputText {
		fmt.Fprintf(w, "Trace: %d admission attempts (%d rejected), %d deliveries, %d drops, mean latency %v\n",
			summary.TotalDecisions, summary.RejectedCount, summary.DeliveredCount, summary.DroppedCount, summary.MeanLatency)
	}
	writer := trace.NewSQLiteWriter(path)
	if err := writer.Init(); err != nil {
		return err
	}
	defer func() {
		if err := writer.Close(); err != nil {
			logrus.Errorf("closing trace database: %v", err)
		}
	}()
	if err := writer.WriteTrace(st); err != nil {
		return err
	}
	logrus.Infof("trace written to %s", writer.Path())
	return nil
}

func init() {
	netCmd.Flags().Int64Var(&netEpochs, "epochs", 10_000_000, "Number of epochs to simulate")
	netCmd.Flags().Float64SliceVar(&netDistribution, "distribution", nil, "Cumulative priority thresholds d1,d2,d3[,1.0] (overrides --distribution-name)")
	netCmd.Flags().StringVar(&netDistributionName, "distribution-name", "base", "Named distribution from the constants table")
	netCmd.Flags().Float64Var(&netPTx, "p-tx", 0.00001, "Per-host, per-epoch transmission probability")
	netCmd.Flags().IntVar(&netHosts, "hosts", 0, "Number of hosts (0 = constants table)")
	netCmd.Flags().IntVar(&netHostsPerRack, "hosts-per-rack", 0, "Hosts per ToR switch (0 = constants table)")
	netCmd.Flags().Int64Var(&netSeed, "seed", 42, "Seed for transmission trials and packet generation")
	netCmd.Flags().IntVar(&netWorkers, "workers", 0, "Admission worker pool size (0 = 2 per host)")
	netCmd.Flags().Float64Var(&netTimeDilation, "time-dilation", 1.0, "Multiplier applied to the epoch duration")
	netCmd.Flags().StringVar(&netRouting, "routing", sim.RoutingRack, "Routing mode (rack, reference)")
	netCmd.Flags().IntVar(&netMaxHops, "max-hops", 0, "Switch stages before a packet is dropped (0 = default)")
	netCmd.Flags().StringVar(&netTraceLevel, "trace-level", string(trace.TraceLevelNone), "Trace level (none, decisions)")
	netCmd.Flags().StringVar(&netTraceDB, "trace-db", "", "SQLite file for the trace (empty = generated name)")
	netCmd.Flags().StringVar(&netMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")
}
