package sim

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// NumLevels is the number of Qjump priority levels.
const NumLevels = 4

// StrictestLevel is the level with the smallest budget (lowest tolerable queuing latency).
const StrictestLevel = NumLevels - 1

// Constants is the numeric table the simulation derives its epoch length and
// per-level byte budgets from. Field names follow the Qjump paper's P, N, R.
type Constants struct {
	BandwidthBps     float64                 `yaml:"bandwidth_bps"`     // R: link rate
	PacketSize       int                     `yaml:"packet_size"`       // P: nominal packet size in bytes
	Hosts            int                     `yaml:"hosts"`             // N: hosts sharing the fabric
	HostsPerRack     int                     `yaml:"hosts_per_rack"`    // hosts attached to one ToR switch
	EpsilonSeconds   float64                 `yaml:"epsilon_seconds"`   // slack added to every epoch
	LevelMultipliers [NumLevels]int          `yaml:"level_multipliers"` // budget of level l is LevelMultipliers[l] * P
	Distributions    map[string]Distribution `yaml:"distributions"`     // named cumulative priority distributions
}

// DefaultConstants returns the reference configuration: 10Gb links, 12 hosts
// in racks of 4, and budgets of 12P, 6P, 3P and P.
func DefaultConstants() *Constants {
	return &Constants{
		BandwidthBps:     10_000_000_000,
		PacketSize:       256,
		Hosts:            12,
		HostsPerRack:     4,
		EpsilonSeconds:   0.000001,
		LevelMultipliers: [NumLevels]int{12, 6, 3, 1},
		Distributions: map[string]Distribution{
			"base":    {6.0 / 12, 9.0 / 12, 11.0 / 12, 1.0},
			"uniform": {0.25, 0.5, 0.75, 1.0},
		},
	}
}

// LoadConstants reads a YAML constants file. Fields absent from the file keep
// their DefaultConstants values; unknown fields are an error.
func LoadConstants(path string) (*Constants, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading constants: %w", err)
	}
	c := DefaultConstants()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		return nil, fmt.Errorf("parsing constants: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that the table yields a positive epoch and positive budgets.
func (c *Constants) Validate() error {
	if c.BandwidthBps <= 0 {
		return fmt.Errorf("%w: bandwidth_bps must be positive, got %g", ErrInvalidConfig, c.BandwidthBps)
	}
	if c.PacketSize <= 0 {
		return fmt.Errorf("%w: packet_size must be positive, got %d", ErrInvalidConfig, c.PacketSize)
	}
	if c.Hosts <= 0 {
		return fmt.Errorf("%w: hosts must be positive, got %d", ErrInvalidConfig, c.Hosts)
	}
	if c.HostsPerRack <= 0 {
		return fmt.Errorf("%w: hosts_per_rack must be positive, got %d", ErrInvalidConfig, c.HostsPerRack)
	}
	if c.EpsilonSeconds < 0 {
		return fmt.Errorf("%w: epsilon_seconds must be non-negative, got %g", ErrInvalidConfig, c.EpsilonSeconds)
	}
	for l, m := range c.LevelMultipliers {
		if m <= 0 {
			return fmt.Errorf("%w: level %d multiplier must be positive, got %d", ErrInvalidConfig, l, m)
		}
	}
	for name, d := range c.Distributions {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("distribution %q: %w", name, err)
		}
	}
	return nil
}

// EpochDuration is 2*N*(P/R) + epsilon, rounded to the nearest nanosecond.
func (c *Constants) EpochDuration() time.Duration {
	seconds := 2*float64(c.Hosts)*(float64(c.PacketSize)/c.BandwidthBps) + c.EpsilonSeconds
	return time.Duration(math.Round(seconds * float64(time.Second)))
}

// Budgets returns the per-epoch byte capacity of each level.
func (c *Constants) Budgets() Budgets {
	var b Budgets
	for l, m := range c.LevelMultipliers {
		b[l] = m * c.PacketSize
	}
	return b
}

// Distribution returns the named distribution.
func (c *Constants) Distribution(name string) (Distribution, error) {
	d, ok := c.Distributions[name]
	if !ok {
		return Distribution{}, fmt.Errorf("%w: unknown distribution %q", ErrInvalidConfig, name)
	}
	return d, nil
}
