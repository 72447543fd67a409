package sim

import "github.com/inference-sim/qjump-sim/sim/trace"

// Observer receives pipeline events. Methods are called concurrently from
// the clock, admission workers and switch stages and must be goroutine-safe.
type Observer interface {
	OnGenerated(p Packet)
	OnAdmitted(p Packet, epoch int64)
	OnRejected(p Packet, epoch int64)
	OnAbandoned(p Packet)
	OnDelivered(p Packet)
	OnMisrouted(p Packet)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) OnGenerated(Packet)       {}
func (NopObserver) OnAdmitted(Packet, int64) {}
func (NopObserver) OnRejected(Packet, int64) {}
func (NopObserver) OnAbandoned(Packet)       {}
func (NopObserver) OnDelivered(Packet)       {}
func (NopObserver) OnMisrouted(Packet)       {}

// MultiObserver fans every event out to each observer in order.
type MultiObserver []Observer

func (m MultiObserver) OnGenerated(p Packet) {
	for _, o := range m {
		o.OnGenerated(p)
	}
}

func (m MultiObserver) OnAdmitted(p Packet, epoch int64) {
	for _, o := range m {
		o.OnAdmitted(p, epoch)
	}
}

func (m MultiObserver) OnRejected(p Packet, epoch int64) {
	for _, o := range m {
		o.OnRejected(p, epoch)
	}
}

func (m MultiObserver) OnAbandoned(p Packet) {
	for _, o := range m {
		o.OnAbandoned(p)
	}
}

func (m MultiObserver) OnDelivered(p Packet) {
	for _, o := range m {
		o.OnDelivered(p)
	}
}

func (m MultiObserver) OnMisrouted(p Packet) {
	for _, o := range m {
		o.OnMisrouted(p)
	}
}

// TraceObserver records admission attempts, deliveries and drops into a
// trace.SimulationTrace.
type TraceObserver struct {
	NopObserver
	Trace *trace.SimulationTrace
}

// NewTraceObserver creates a TraceObserver. Returns nil when the trace level
// disables recording, so callers can skip registering it.
func NewTraceObserver(st *trace.SimulationTrace) *TraceObserver {
	if st == nil || !st.Config.Enabled() {
		return nil
	}
	return &TraceObserver{Trace: st}
}

func (o *TraceObserver) OnAdmitted(p Packet, epoch int64) {
	o.Trace.RecordAdmission(admissionRecord(p, epoch, true, ""))
}

func (o *TraceObserver) OnRejected(p Packet, epoch int64) {
	o.Trace.RecordAdmission(admissionRecord(p, epoch, false, ErrNoBuffers.Error()))
}

func (o *TraceObserver) OnAbandoned(p Packet) {
	o.Trace.RecordDrop(trace.DropRecord{PacketID: p.ID, Dst: p.Dst, Priority: p.Priority, Reason: "abandoned at end of simulation"})
}

func (o *TraceObserver) OnDelivered(p Packet) {
	o.Trace.RecordDelivery(trace.DeliveryRecord{
		PacketID:       p.ID,
		Src:            p.Src,
		Dst:            p.Dst,
		Priority:       p.Priority,
		Length:         p.Length,
		Epoch:          p.Epoch,
		CreatedAt:      p.CreatedAt,
		DeliveredAt:    p.DeliveredAt,
		Rack:           p.DeliveredBy,
		Hops:           p.Hops,
		ViaAggregation: p.ViaAggregation,
	})
}

func (o *TraceObserver) OnMisrouted(p Packet) {
	o.Trace.RecordDrop(trace.DropRecord{PacketID: p.ID, Dst: p.Dst, Priority: p.Priority, Hops: p.Hops, Reason: "hop limit exceeded"})
}

func admissionRecord(p Packet, epoch int64, admitted bool, reason string) trace.AdmissionRecord {
	return trace.AdmissionRecord{
		PacketID: p.ID,
		Host:     p.Src,
		Epoch:    epoch,
		Priority: p.Priority,
		Length:   p.Length,
		Admitted: admitted,
		Reason:   reason,
	}
}
