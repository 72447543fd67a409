// Tracks run-wide packet accounting and delivery latency for final reporting.

package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Metrics aggregates the outcome of a live network simulation.
//
// After Run the counters satisfy
//
//	Generated == Admitted + Abandoned + Shed
//	Admitted  == Delivered + Misrouted + Stranded
//
// so every packet that is not delivered is accounted for by exactly one cause.
type Metrics struct {
	Generated  int64 `json:"generated"`  // packets created by successful transmission trials
	Admitted   int64 `json:"admitted"`   // packets accepted by their host's rate limiter
	Delivered  int64 `json:"delivered"`  // packets handed to the destination host
	Rejections int64 `json:"rejections"` // ENOBUFS attempts, counted per attempt
	Abandoned  int64 `json:"abandoned"`  // packets never admitted before the deadline
	Shed       int64 `json:"shed"`       // packets dropped because the admission pool was saturated
	Misrouted  int64 `json:"misrouted"`  // packets dropped at the hop limit
	Stranded   int64 `json:"stranded"`   // admitted packets still in host buffers or switch queues at the deadline

	GeneratedByPriority  [NumLevels]int64 `json:"generated_by_priority"`
	DeliveredByPriority  [NumLevels]int64 `json:"delivered_by_priority"`
	RejectionsByPriority [NumLevels]int64 `json:"rejections_by_priority"`

	EpochsElapsed int64         `json:"epochs_elapsed"` // epochs whose transmission trials ran
	WallTime      time.Duration `json:"wall_time_ns"`

	MeanLatencyUs float64 `json:"mean_latency_us"`
	P50LatencyUs  float64 `json:"p50_latency_us"`
	P99LatencyUs  float64 `json:"p99_latency_us"`
}

// Discrepancy is the number of generated packets that were not delivered.
func (m *Metrics) Discrepancy() int64 {
	return m.Generated - m.Delivered
}

// DeliveryRatio is Delivered / Generated, 0 when nothing was generated.
func (m *Metrics) DeliveryRatio() float64 {
	if m.Generated == 0 {
		return 0
	}
	return float64(m.Delivered) / float64(m.Generated)
}

// recordLatencies fills the latency summary from delivered packets.
func (m *Metrics) recordLatencies(delivered []Packet) {
	if len(delivered) == 0 {
		return
	}
	us := make([]float64, len(delivered))
	for i, p := range delivered {
		us[i] = float64(p.Latency()) / float64(time.Microsecond)
	}
	sort.Float64s(us)
	m.MeanLatencyUs = stat.Mean(us, nil)
	m.P50LatencyUs = stat.Quantile(0.5, stat.Empirical, us, nil)
	m.P99LatencyUs = stat.Quantile(0.99, stat.Empirical, us, nil)
}

// Print writes the human-readable report.
func (m *Metrics) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Network Simulation Metrics ===")
	fmt.Fprintf(w, "Packets generated            : %d\n", m.Generated)
	fmt.Fprintf(w, "Packets delivered            : %d\n", m.Delivered)
	fmt.Fprintf(w, "Discrepancy                  : %d (admitted %d, abandoned %d, shed %d, misrouted %d, stranded %d)\n",
		m.Discrepancy(), m.Admitted, m.Abandoned, m.Shed, m.Misrouted, m.Stranded)
	fmt.Fprintf(w, "ENOBUFS rejections           : %d\n", m.Rejections)
	for l := 0; l < NumLevels; l++ {
		fmt.Fprintf(w, "Priority %d packets delivered : %d (generated %d, rejections %d)\n",
			l, m.DeliveredByPriority[l], m.GeneratedByPriority[l], m.RejectionsByPriority[l])
	}
	if m.Delivered > 0 {
		fmt.Fprintf(w, "Latency mean/p50/p99         : %.2f / %.2f / %.2f us\n", m.MeanLatencyUs, m.P50LatencyUs, m.P99LatencyUs)
	}
	fmt.Fprintf(w, "Epochs elapsed               : %d in %v\n", m.EpochsElapsed, m.WallTime)
}

// WriteJSON writes the metrics as indented JSON.
func (m *Metrics) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}
