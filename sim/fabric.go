package sim

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultMaxHops bounds switch stages per packet. A consistent two-tier route
// needs at most three (source ToR, aggregation, destination ToR).
const DefaultMaxHops = 8

// Fabric is the two-tier switch tree: one queue and ToR stage per rack and a
// single aggregation queue and stage. Delivered packets land in the
// collector; packets over the hop limit are dropped as misrouted.
type Fabric struct {
	router      Router
	racks       []*PacketQueue
	aggregation *PacketQueue
	maxHops     int
	now         func() time.Duration
	observer    Observer

	mu        sync.Mutex
	delivered []Packet
	misrouted []Packet
}

// NewFabric creates a fabric with the given number of racks. now supplies
// the elapsed simulation time used to stamp deliveries.
func NewFabric(racks int, router Router, maxHops int, now func() time.Duration, observer Observer) *Fabric {
	if racks < 1 {
		panic("NewFabric: racks must be >= 1")
	}
	if observer == nil {
		observer = NopObserver{}
	}
	f := &Fabric{
		router:      router,
		racks:       make([]*PacketQueue, racks),
		aggregation: NewPacketQueue(),
		maxHops:     maxHops,
		now:         now,
		observer:    observer,
	}
	for i := range f.racks {
		f.racks[i] = NewPacketQueue()
	}
	return f
}

// Racks returns the number of ToR switches.
func (f *Fabric) Racks() int {
	return len(f.racks)
}

// Queue returns the ToR queue of rack, or the aggregation queue when rack is
// outside the fabric.
func (f *Fabric) Queue(rack int) *PacketQueue {
	if rack < 0 || rack >= len(f.racks) {
		return f.aggregation
	}
	return f.racks[rack]
}

// Aggregation returns the aggregation switch queue.
func (f *Fabric) Aggregation() *PacketQueue {
	return f.aggregation
}

// hop counts a switch traversal, dropping the packet when over the limit.
func (f *Fabric) hop(p *Packet, aggregation bool) bool {
	if p.traverse(aggregation) <= f.maxHops {
		return true
	}
	f.mu.Lock()
	f.misrouted = append(f.misrouted, *p)
	f.mu.Unlock()
	f.observer.OnMisrouted(*p)
	return false
}

// RunToR drives the ToR switch of rack until ctx is done.
func (f *Fabric) RunToR(ctx context.Context, rack int) error {
	logrus.Debugf("tor %d: started", rack)
	defer logrus.Debugf("tor %d: stopped", rack)
	in := f.racks[rack]
	for {
		p, ok := in.Pop(ctx)
		if !ok {
			return nil
		}
		if !f.hop(&p, false) {
			continue
		}
		if !f.router.IsLocal(rack, p.Dst) {
			f.aggregation.Push(p)
			continue
		}
		p.Deliver(f.now(), rack)
		f.mu.Lock()
		f.delivered = append(f.delivered, p)
		f.mu.Unlock()
		f.observer.OnDelivered(p)
	}
}

// RunAggregation drives the aggregation switch until ctx is done.
func (f *Fabric) RunAggregation(ctx context.Context) error {
	logrus.Debugf("aggregation: started")
	defer logrus.Debugf("aggregation: stopped")
	for {
		p, ok := f.aggregation.Pop(ctx)
		if !ok {
			return nil
		}
		if !f.hop(&p, true) {
			continue
		}
		f.Queue(f.router.DownlinkRack(p.Dst)).Push(p)
	}
}

// Delivered returns a copy of the packets delivered so far.
func (f *Fabric) Delivered() []Packet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Packet(nil), f.delivered...)
}

// Misrouted returns a copy of the packets dropped over the hop limit.
func (f *Fabric) Misrouted() []Packet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Packet(nil), f.misrouted...)
}

// Queued returns the number of packets sitting in switch queues.
func (f *Fabric) Queued() int {
	n := f.aggregation.Len()
	for _, q := range f.racks {
		n += q.Len()
	}
	return n
}
