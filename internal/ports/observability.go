package ports

// Log levels carried by LogSink messages.
const (
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// LogSink receives operator-facing status lines from the supervisor and
// orchestrator.
type LogSink interface {
	Log(message, level string)
}

// NopLogSink drops every message.
type NopLogSink struct{}

func (NopLogSink) Log(string, string) {}

// StatusSink receives the per-device connection status map whenever it
// changes.
type StatusSink interface {
	NotifyStatus(status map[string]string)
}

// Observability is the metrics surface. Implementations register their
// series lazily keyed by name.
type Observability interface {
	IncCounter(name string, v float64)
	SetGauge(name string, v float64)
}

// NopObservability discards all metrics.
type NopObservability struct{}

func (NopObservability) IncCounter(string, float64) {}
func (NopObservability) SetGauge(string, float64)   {}
