package sim

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Packet length model: 30-50% of datacenter packets are under 256 bytes, so
// lengths follow a normal distribution around 256 bounded to [1, 1000].
const (
	PacketLengthMean   = 256.0
	PacketLengthStdDev = 75.0
	MinPacketLength    = 1
	MaxPacketLength    = 1000
)

// Distribution is a cumulative distribution over priority levels: level l is
// chosen for a uniform draw u when l is the smallest index with u < d[l].
type Distribution [NumLevels]float64

// Validate checks the thresholds are within [0, 1], non-decreasing and end at 1.0.
func (d Distribution) Validate() error {
	prev := 0.0
	for l, v := range d {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: distribution threshold %d = %g outside [0, 1]", ErrInvalidConfig, l, v)
		}
		if v < prev {
			return fmt.Errorf("%w: distribution threshold %d = %g decreases from %g", ErrInvalidConfig, l, v, prev)
		}
		prev = v
	}
	if d[NumLevels-1] != 1.0 {
		return fmt.Errorf("%w: last distribution threshold must be 1.0, got %g", ErrInvalidConfig, d[NumLevels-1])
	}
	return nil
}

// Level maps a uniform draw u in [0, 1) to a priority level.
func (d Distribution) Level(u float64) int {
	for l, threshold := range d {
		if u < threshold {
			return l
		}
	}
	return NumLevels - 1
}

// Share returns the probability mass of level l.
func (d Distribution) Share(l int) float64 {
	if l == 0 {
		return d[0]
	}
	return d[l] - d[l-1]
}

// ParseDistribution accepts three thresholds (1.0 is appended) or four.
func ParseDistribution(values []float64) (Distribution, error) {
	var d Distribution
	switch len(values) {
	case NumLevels - 1:
		copy(d[:], values)
		d[NumLevels-1] = 1.0
	case NumLevels:
		copy(d[:], values)
	default:
		return d, fmt.Errorf("%w: distribution needs %d or %d thresholds, got %d",
			ErrInvalidConfig, NumLevels-1, NumLevels, len(values))
	}
	return d, d.Validate()
}

// SampleLength draws a packet length from the clamped normal length model.
func SampleLength(rng *rand.Rand) int {
	val := rng.NormFloat64()*PacketLengthStdDev + PacketLengthMean
	clamped := math.Min(MaxPacketLength, math.Max(MinPacketLength, val))
	return int(math.Round(clamped))
}

// Generator produces packets with a priority drawn from a Distribution and a
// length from SampleLength. IDs are sequential per Generator.
type Generator struct {
	dist   Distribution
	rng    *rand.Rand
	nextID uint64
}

// NewGenerator creates a Generator. dist must already be validated.
func NewGenerator(dist Distribution, rng *rand.Rand) *Generator {
	return &Generator{dist: dist, rng: rng}
}

// Generate creates the next packet from src to dst, stamped with the epoch
// and elapsed time of its generation.
func (g *Generator) Generate(epoch int64, at time.Duration, src, dst int) Packet {
	priority := g.dist.Level(g.rng.Float64())
	p := Packet{
		ID:        g.nextID,
		Priority:  priority,
		Length:    SampleLength(g.rng),
		Src:       src,
		Dst:       dst,
		Epoch:     epoch,
		CreatedAt: at,
	}
	g.nextID++
	return p
}

// Count returns how many packets have been generated.
func (g *Generator) Count() uint64 {
	return g.nextID
}
