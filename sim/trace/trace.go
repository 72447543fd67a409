package trace

import "sync"

// TraceLevel controls the verbosity of tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every admission attempt, delivery and drop.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// Enabled reports whether records should be collected at all.
func (c TraceConfig) Enabled() bool {
	return c.Level == TraceLevelDecisions
}

// SimulationTrace collects records during a simulation. Record methods may
// be called from any goroutine; read the slices only after the run ends.
type SimulationTrace struct {
	Config     TraceConfig
	Admissions []AdmissionRecord
	Deliveries []DeliveryRecord
	Drops      []DropRecord

	mu sync.Mutex
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:     config,
		Admissions: make([]AdmissionRecord, 0),
		Deliveries: make([]DeliveryRecord, 0),
		Drops:      make([]DropRecord, 0),
	}
}

// RecordAdmission appends an admission decision record.
func (st *SimulationTrace) RecordAdmission(record AdmissionRecord) {
	st.mu.Lock()
	st.Admissions = append(st.Admissions, record)
	st.mu.Unlock()
}

// RecordDelivery appends a delivery record.
func (st *SimulationTrace) RecordDelivery(record DeliveryRecord) {
	st.mu.Lock()
	st.Deliveries = append(st.Deliveries, record)
	st.mu.Unlock()
}

// RecordDrop appends a drop record.
func (st *SimulationTrace) RecordDrop(record DropRecord) {
	st.mu.Lock()
	st.Drops = append(st.Drops, record)
	st.mu.Unlock()
}
