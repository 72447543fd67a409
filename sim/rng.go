package sim

import (
	"hash/fnv"
	"math/rand"
)

// SimulationKey identifies a reproducible run. Two runs of the offline
// simulator with the same key and configuration produce identical results;
// the live engine reproduces its generated packet sequence (not its timing).
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

const (
	// SubsystemTraffic drives packet priority and length draws.
	// Uses the master seed directly.
	SubsystemTraffic = "traffic"

	// SubsystemTransmit drives the per-host Bernoulli trials and destination choice.
	SubsystemTransmit = "transmit"

	// SubsystemArrivals drives the offline simulator's packets-per-epoch draws.
	SubsystemArrivals = "arrivals"
)

// PartitionedRNG hands out an isolated, deterministically seeded *rand.Rand
// per subsystem, so adding draws in one subsystem never shifts another.
//
// Derivation:
//   - SubsystemTraffic: masterSeed
//   - any other name: masterSeed XOR fnv1a64(name)
//
// Not thread-safe; the engine only draws from its clock goroutine.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the cached RNG for name, creating it on first use.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	derivedSeed := int64(p.key)
	if name != SubsystemTraffic {
		derivedSeed ^= fnv1a64(name)
	}
	rng := rand.New(rand.NewSource(derivedSeed))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
