// Package trace provides admission and delivery trace recording for Qjump runs.
// It has no dependency on sim/ and only stores plain data types.
package trace

import "time"

// AdmissionRecord captures a single rate limiter decision.
type AdmissionRecord struct {
	PacketID uint64
	Host     int
	Epoch    int64 // epoch the attempt was made in
	Priority int
	Length   int
	Admitted bool
	Reason   string
}

// DeliveryRecord captures a packet handed to its destination host.
type DeliveryRecord struct {
	PacketID       uint64
	Src            int
	Dst            int
	Priority       int
	Length         int
	Epoch          int64 // generation epoch
	CreatedAt      time.Duration
	DeliveredAt    time.Duration
	Rack           int // delivering ToR
	Hops           int
	ViaAggregation bool
}

// Latency is the generation-to-delivery time.
func (r DeliveryRecord) Latency() time.Duration {
	return r.DeliveredAt - r.CreatedAt
}

// DropRecord captures a packet removed from the fabric without delivery.
type DropRecord struct {
	PacketID uint64
	Dst      int
	Priority int
	Hops     int
	Reason   string
}
