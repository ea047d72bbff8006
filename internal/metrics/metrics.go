// Package metrics is the narrow instrumentation seam used by the import
// pipeline. Core code calls the package-level helpers; a command decides at
// startup which Backend (if any) receives the samples.
package metrics

import "sync"

// Labels are the dimensions attached to one sample.
type Labels map[string]string

// Backend receives counter increments and histogram observations.
// Implementations must be safe for concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer samples.
type Flusher interface {
	Flush() error
}

// Metric names emitted by the pipeline.
const (
	StepTotal           = "dmd_step_total"
	StepDurationSeconds = "dmd_step_duration_seconds"
	RecordsTotal        = "dmd_records_total"
	AnomaliesTotal      = "dmd_anomalies_total"
	HTTPRequestsTotal   = "dmd_http_requests_total"
	HTTPDurationSeconds = "dmd_http_request_duration_seconds"
)

type nop struct{}

func (nop) IncCounter(string, float64, Labels)       {}
func (nop) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nop{}
)

// SetBackend installs b as the process-wide backend. A nil b restores the
// no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nop{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter forwards to the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram forwards to the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush flushes the installed backend when it buffers; otherwise it is a no-op.
func Flush() error {
	if f, ok := current().(Flusher); ok {
		return f.Flush()
	}
	return nil
}
