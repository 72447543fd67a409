package trace

import "time"

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDecisions     int
	AdmittedCount      int
	RejectedCount      int
	RejectedByPriority map[int]int
	DeliveredCount     int
	DroppedCount       int
	MeanLatency        time.Duration
	MaxLatency         time.Duration
	RackDistribution   map[int]int // delivering rack → count of packets delivered
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		RejectedByPriority: make(map[int]int),
		RackDistribution:   make(map[int]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalDecisions = len(st.Admissions)
	for _, a := range st.Admissions {
		if a.Admitted {
			summary.AdmittedCount++
		} else {
			summary.RejectedCount++
			summary.RejectedByPriority[a.Priority]++
		}
	}

	summary.DeliveredCount = len(st.Deliveries)
	if len(st.Deliveries) > 0 {
		var total time.Duration
		for _, d := range st.Deliveries {
			summary.RackDistribution[d.Rack]++
			latency := d.Latency()
			total += latency
			if latency > summary.MaxLatency {
				summary.MaxLatency = latency
			}
		}
		summary.MeanLatency = total / time.Duration(len(st.Deliveries))
	}

	summary.DroppedCount = len(st.Drops)
	return summary
}
