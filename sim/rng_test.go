package sim

import "testing"

func TestPartitionedRNG_Deterministic(t *testing.T) {
	a := NewPartitionedRNG(NewSimulationKey(42))
	b := NewPartitionedRNG(NewSimulationKey(42))
	for _, name := range []string{SubsystemTraffic, SubsystemTransmit, SubsystemArrivals} {
		for i := 0; i < 10; i++ {
			if x, y := a.ForSubsystem(name).Int63(), b.ForSubsystem(name).Int63(); x != y {
				t.Fatalf("%s draw %d: %d != %d", name, i, x, y)
			}
		}
	}
}

func TestPartitionedRNG_SubsystemsIsolated(t *testing.T) {
	// Draining one subsystem must not shift another.
	a := NewPartitionedRNG(NewSimulationKey(7))
	b := NewPartitionedRNG(NewSimulationKey(7))
	for i := 0; i < 100; i++ {
		a.ForSubsystem(SubsystemTransmit).Float64()
	}
	if a.ForSubsystem(SubsystemTraffic).Int63() != b.ForSubsystem(SubsystemTraffic).Int63() {
		t.Error("traffic stream shifted by transmit draws")
	}
	if a.ForSubsystem(SubsystemTransmit).Int63() == a.ForSubsystem(SubsystemArrivals).Int63() {
		t.Error("transmit and arrivals streams should differ")
	}
}

func TestPartitionedRNG_CachesInstance(t *testing.T) {
	p := NewPartitionedRNG(NewSimulationKey(1))
	if p.ForSubsystem(SubsystemTraffic) != p.ForSubsystem(SubsystemTraffic) {
		t.Error("ForSubsystem should return the same *rand.Rand for a name")
	}
	if p.Key() != 1 {
		t.Errorf("Key() = %d, want 1", p.Key())
	}
}
