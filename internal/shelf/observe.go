package shelf

import "time"

// Logger receives the engine's structured log output. args alternate keys
// and values, as with slog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger discards everything.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}

// Metrics receives engine and worker measurements.
type Metrics interface {
	ObserveOperation(op string, err error, d time.Duration)
	RecordQuotaRejection()
	ObserveNearDuplicateQuery(candidates, matches int)
	RecordPendingDeletion(outcome string)
	ObserveJob(jobType string, err error, d time.Duration)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) ObserveOperation(string, error, time.Duration) {}
func (NopMetrics) RecordQuotaRejection()                         {}
func (NopMetrics) ObserveNearDuplicateQuery(int, int)            {}
func (NopMetrics) RecordPendingDeletion(string)                  {}
func (NopMetrics) ObserveJob(string, error, time.Duration)       {}
