package sim

import (
	"fmt"
	"math"
	"time"
)

// NetworkConfig configures a live network simulation.
type NetworkConfig struct {
	Epochs        int64         // number of epochs to simulate (must be > 0)
	Distribution  Distribution  // cumulative priority distribution
	PTx           float64       // per-host, per-epoch probability of generating a packet
	Hosts         int           // number of hosts (must be > 0)
	HostsPerRack  int           // hosts per ToR switch (must be > 0)
	Budgets       Budgets       // per-level byte capacity per epoch
	EpochDuration time.Duration // wall-clock length of one epoch (must be > 0)
	Seed          int64         // seed for transmission trials and packet draws

	Workers         int    // admission worker pool size (0 = 2*Hosts)
	PendingAttempts int    // admission queue capacity before shedding (0 = 64*Hosts)
	Routing         string // "rack" (default) or "reference"
	MaxHops         int    // switch stages before a packet is dropped (0 = DefaultMaxHops)
}

// DefaultNetworkConfig builds a config from the constants table with the
// base distribution and the reference model's transmission probability.
func DefaultNetworkConfig(c *Constants) NetworkConfig {
	return NetworkConfig{
		Epochs:        10_000_000,
		Distribution:  c.Distributions["base"],
		PTx:           0.00001,
		Hosts:         c.Hosts,
		HostsPerRack:  c.HostsPerRack,
		Budgets:       c.Budgets(),
		EpochDuration: c.EpochDuration(),
		Seed:          42,
		Routing:       RoutingRack,
	}
}

// Validate checks every field, returning an error wrapping ErrInvalidConfig.
func (c NetworkConfig) Validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("%w: epochs must be positive, got %d", ErrInvalidConfig, c.Epochs)
	}
	if err := c.Distribution.Validate(); err != nil {
		return err
	}
	if c.PTx < 0 || c.PTx > 1 {
		return fmt.Errorf("%w: transmission probability must be within [0, 1], got %g", ErrInvalidConfig, c.PTx)
	}
	if c.Hosts <= 0 {
		return fmt.Errorf("%w: host count must be positive, got %d", ErrInvalidConfig, c.Hosts)
	}
	if c.HostsPerRack <= 0 {
		return fmt.Errorf("%w: hosts per rack must be positive, got %d", ErrInvalidConfig, c.HostsPerRack)
	}
	if err := c.Budgets.Validate(); err != nil {
		return err
	}
	if c.EpochDuration <= 0 {
		return fmt.Errorf("%w: epoch duration must be positive, got %v", ErrInvalidConfig, c.EpochDuration)
	}
	if c.Epochs > math.MaxInt64/int64(c.EpochDuration) {
		return fmt.Errorf("%w: %d epochs of %v exceed the longest representable run", ErrInvalidConfig, c.Epochs, c.EpochDuration)
	}
	if c.Workers < 0 || c.PendingAttempts < 0 || c.MaxHops < 0 {
		return fmt.Errorf("%w: workers, pending attempts and max hops must be non-negative", ErrInvalidConfig)
	}
	if !ValidRoutingModes[c.Routing] {
		return fmt.Errorf("%w: unknown routing mode %q", ErrInvalidConfig, c.Routing)
	}
	return nil
}

// Horizon is the simulated run length, Epochs * EpochDuration.
func (c NetworkConfig) Horizon() time.Duration {
	return time.Duration(c.Epochs) * c.EpochDuration
}

// Racks is the number of ToR switches needed for Hosts.
func (c NetworkConfig) Racks() int {
	return (c.Hosts + c.HostsPerRack - 1) / c.HostsPerRack
}

func (c NetworkConfig) withDefaults() NetworkConfig {
	if c.Workers == 0 {
		c.Workers = 2 * c.Hosts
	}
	if c.PendingAttempts == 0 {
		c.PendingAttempts = 64 * c.Hosts
	}
	if c.MaxHops == 0 {
		c.MaxHops = DefaultMaxHops
	}
	if c.Routing == "" {
		c.Routing = RoutingRack
	}
	return c
}
