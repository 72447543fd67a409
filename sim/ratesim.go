package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"
)

// RateSimConfig configures the offline rate limiter simulation.
type RateSimConfig struct {
	Epochs              int64        // epochs to generate and process (must be > 0)
	Distribution        Distribution // cumulative priority distribution
	MeanPacketsPerEpoch float64      // mean of the per-epoch packet count (must be > 0)
	Budgets             Budgets      // per-level byte capacity per epoch
	Seed                int64
}

// DefaultRateSimConfig mirrors the reference experiment: 100,000 epochs at
// 5 packets per epoch with the base distribution.
func DefaultRateSimConfig(c *Constants) RateSimConfig {
	return RateSimConfig{
		Epochs:              100_000,
		Distribution:        c.Distributions["base"],
		MeanPacketsPerEpoch: 5,
		Budgets:             c.Budgets(),
		Seed:                42,
	}
}

// Validate checks every field, returning an error wrapping ErrInvalidConfig.
func (c RateSimConfig) Validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("%w: epochs must be positive, got %d", ErrInvalidConfig, c.Epochs)
	}
	if err := c.Distribution.Validate(); err != nil {
		return err
	}
	if !(c.MeanPacketsPerEpoch > 0) {
		return fmt.Errorf("%w: mean packets per epoch must be positive, got %g", ErrInvalidConfig, c.MeanPacketsPerEpoch)
	}
	return c.Budgets.Validate()
}

// RateSimResult summarizes an offline run. Every generated packet is
// processed in its own epoch, so Sent + Rejected == Total.
type RateSimResult struct {
	Epochs         int64   `json:"epochs"`
	Total          int64   `json:"total"`
	Sent           int64   `json:"sent"`
	Rejected       int64   `json:"rejected"` // ENOBUFS results, reported as retransmissions
	RejectionRatio float64 `json:"rejection_ratio"`
	StrictRejected int64   `json:"strict_rejected"` // rejections at StrictestLevel

	GeneratedByPriority [NumLevels]int64 `json:"generated_by_priority"`
	RejectedByPriority  [NumLevels]int64 `json:"rejected_by_priority"`
}

// StrictShareOfRejections is the fraction of rejections at the strictest level.
func (r *RateSimResult) StrictShareOfRejections() float64 {
	if r.Rejected == 0 {
		return 0
	}
	return float64(r.StrictRejected) / float64(r.Rejected)
}

// StrictShareOfTraffic is the fraction of generated packets at the strictest level.
func (r *RateSimResult) StrictShareOfTraffic() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.GeneratedByPriority[StrictestLevel]) / float64(r.Total)
}

// Print writes the human-readable report.
func (r *RateSimResult) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Rate Limiter Simulation ===")
	fmt.Fprintf(w, "Packets successfully sent           : %d\n", r.Sent)
	fmt.Fprintf(w, "Packets that caused ENOBUFS         : %d\n", r.Rejected)
	fmt.Fprintf(w, "Ratio of rejections / total packets : %.6f\n", r.RejectionRatio)
	fmt.Fprintf(w, "Rejections at level %d (lowest latency): %d\n", StrictestLevel, r.StrictRejected)
	fmt.Fprintf(w, "Level %d share of rejections/traffic : %.4f / %.4f\n",
		StrictestLevel, r.StrictShareOfRejections(), r.StrictShareOfTraffic())
}

// WriteJSON writes the result as indented JSON.
func (r *RateSimResult) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// generateRatePackets builds the time-sorted packet list: each epoch gets
// floor(Normal(mean, 1)) packets, at least one.
func generateRatePackets(cfg RateSimConfig) []Packet {
	rng := NewPartitionedRNG(NewSimulationKey(cfg.Seed))
	gen := NewGenerator(cfg.Distribution, rng.ForSubsystem(SubsystemTraffic))
	arrivals := rng.ForSubsystem(SubsystemArrivals)

	packets := make([]Packet, 0, int(float64(cfg.Epochs)*cfg.MeanPacketsPerEpoch))
	for epoch := int64(0); epoch < cfg.Epochs; epoch++ {
		n := int(math.Floor(arrivals.NormFloat64() + cfg.MeanPacketsPerEpoch))
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			packets = append(packets, gen.Generate(epoch, 0, 0, 0))
		}
	}
	return packets
}

// RunRateSim runs the single-threaded rate limiter simulation. Each epoch
// refills the buckets and offers every packet generated in that epoch once;
// rejected packets are counted, not retried.
func RunRateSim(cfg RateSimConfig) (*RateSimResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	packets := generateRatePackets(cfg)
	return simulateRateLimiter(packets, cfg.Epochs, cfg.Budgets), nil
}

// simulateRateLimiter steps epochs over a packet list sorted by Epoch.
func simulateRateLimiter(packets []Packet, epochs int64, budgets Budgets) *RateSimResult {
	res := &RateSimResult{Epochs: epochs}
	buckets := NewTokenBuckets(budgets)
	next := 0
	for epoch := int64(0); epoch < epochs; epoch++ {
		buckets.refill(epoch)
		for ; next < len(packets); next++ {
			p := packets[next]
			if p.Epoch > epoch {
				break
			}
			res.Total++
			res.GeneratedByPriority[p.Priority]++
			if err := buckets.Consume(p.Priority, p.Length, epoch); err != nil {
				res.Rejected++
				res.RejectedByPriority[p.Priority]++
				continue
			}
			res.Sent++
		}
	}
	res.StrictRejected = res.RejectedByPriority[StrictestLevel]
	if res.Total > 0 {
		res.RejectionRatio = float64(res.Rejected) / float64(res.Total)
	}
	logrus.Debugf("rate sim: %d epochs, %d packets, %d rejected", epochs, res.Total, res.Rejected)
	return res
}
