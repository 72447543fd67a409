// Package telemetry exports simulation events as Prometheus metrics.
package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/inference-sim/qjump-sim/sim"
)

// Prometheus is a sim.Observer that counts pipeline events per priority
// level on its own registry.
type Prometheus struct {
	Registry *prometheus.Registry

	generated  *prometheus.CounterVec
	admitted   *prometheus.CounterVec
	rejections *prometheus.CounterVec
	abandoned  *prometheus.CounterVec
	delivered  *prometheus.CounterVec
	misrouted  *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewPrometheus creates the collectors and registers them on a fresh registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		Registry: prometheus.NewRegistry(),
		generated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qjump_packets_generated_total",
			Help: "Packets generated by transmission trials",
		}, []string{"priority"}),
		admitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qjump_packets_admitted_total",
			Help: "Packets admitted by host rate limiters",
		}, []string{"priority"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qjump_admission_rejections_total",
			Help: "ENOBUFS admission attempts",
		}, []string{"priority"}),
		abandoned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qjump_packets_abandoned_total",
			Help: "Packets never admitted before the end of the simulation",
		}, []string{"priority"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qjump_packets_delivered_total",
			Help: "Packets delivered to their destination host",
		}, []string{"priority"}),
		misrouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qjump_packets_misrouted_total",
			Help: "Packets dropped at the switch hop limit",
		}, []string{"priority"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qjump_delivery_latency_seconds",
			Help:    "Generation-to-delivery latency",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"priority"}),
	}
	p.Registry.MustRegister(
		p.generated,
		p.admitted,
		p.rejections,
		p.abandoned,
		p.delivered,
		p.misrouted,
		p.latency,
	)
	return p
}

var _ sim.Observer = (*Prometheus)(nil)

func level(p sim.Packet) string {
	return strconv.Itoa(p.Priority)
}

func (p *Prometheus) OnGenerated(pkt sim.Packet) {
	p.generated.WithLabelValues(level(pkt)).Inc()
}

func (p *Prometheus) OnAdmitted(pkt sim.Packet, _ int64) {
	p.admitted.WithLabelValues(level(pkt)).Inc()
}

func (p *Prometheus) OnRejected(pkt sim.Packet, _ int64) {
	p.rejections.WithLabelValues(level(pkt)).Inc()
}

func (p *Prometheus) OnAbandoned(pkt sim.Packet) {
	p.abandoned.WithLabelValues(level(pkt)).Inc()
}

func (p *Prometheus) OnDelivered(pkt sim.Packet) {
	p.delivered.WithLabelValues(level(pkt)).Inc()
	p.latency.WithLabelValues(level(pkt)).Observe(pkt.Latency().Seconds())
}

func (p *Prometheus) OnMisrouted(pkt sim.Packet) {
	p.misrouted.WithLabelValues(level(pkt)).Inc()
}

// Delivered returns the delivered counter of a level.
func (p *Prometheus) Delivered(priority int) float64 {
	return counterValue(p.delivered, priority)
}

// Generated returns the generated counter of a level.
func (p *Prometheus) Generated(priority int) float64 {
	return counterValue(p.generated, priority)
}

// Rejections returns the rejection counter of a level.
func (p *Prometheus) Rejections(priority int) float64 {
	return counterValue(p.rejections, priority)
}

func counterValue(vec *prometheus.CounterVec, priority int) float64 {
	var m dto.Metric
	if err := vec.WithLabelValues(strconv.Itoa(priority)).Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
