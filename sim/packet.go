// Defines the Packet value type that moves through the host buffers and switch queues.

package sim

import (
	"fmt"
	"time"
)

// Packet is one unit of traffic. It is passed by value between stages, so
// whichever queue holds a copy owns it. After generation it changes only
// through traverse (switch bookkeeping) and Deliver.
type Packet struct {
	ID       uint64 // unique within a run
	Priority int    // Qjump level, 0 (largest budget) .. 3 (strictest)
	Length   int    // bytes, 1..MaxPacketLength
	Src      int    // source host index
	Dst      int    // destination host index

	Epoch     int64         // epoch in which the packet was generated
	CreatedAt time.Duration // elapsed simulation time at generation

	Hops           int  // switch stages traversed
	ViaAggregation bool // passed through the aggregation switch

	delivered   bool
	DeliveredAt time.Duration // elapsed simulation time at delivery, valid once Delivered()
	DeliveredBy int           // rack whose ToR delivered the packet
}

// Deliver stamps the delivery time and rack. Panics if called twice or with a
// time earlier than the packet's creation.
func (p *Packet) Deliver(at time.Duration, rack int) {
	if p.delivered {
		panic(fmt.Sprintf("packet %d delivered twice", p.ID))
	}
	if at < p.CreatedAt {
		panic(fmt.Sprintf("packet %d delivered at %v before creation at %v", p.ID, at, p.CreatedAt))
	}
	p.delivered = true
	p.DeliveredAt = at
	p.DeliveredBy = rack
}

// traverse records one switch stage and returns the hop count so far.
func (p *Packet) traverse(aggregation bool) int {
	p.Hops++
	if aggregation {
		p.ViaAggregation = true
	}
	return p.Hops
}

// Delivered reports whether Deliver has been called.
func (p Packet) Delivered() bool {
	return p.delivered
}

// Latency is the generation-to-delivery time, zero while undelivered.
func (p Packet) Latency() time.Duration {
	if !p.delivered {
		return 0
	}
	return p.DeliveredAt - p.CreatedAt
}

func (p Packet) String() string {
	return fmt.Sprintf("Packet: (ID: %d, Priority: %d, Length: %d, Src: %d, Dst: %d, Epoch: %d)",
		p.ID, p.Priority, p.Length, p.Src, p.Dst, p.Epoch)
}
