// Package logger defines the structured logging contract the engine emits
// through. Confirmation waits are minutes long, so call sites report
// progress as discrete events with explicit fields (hop, ledger, elapsed,
// observed balance) rather than formatted strings.
package logger

// Logger receives leveled events from the flow orchestrator, the poll loop
// and the balance readers.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// NoopLogger discards everything; the default for embedders that bring
// their own logging.
type NoopLogger struct{}

func (NoopLogger) Debug(string, map[string]any) {}
func (NoopLogger) Info(string, map[string]any)  {}
func (NoopLogger) Warn(string, map[string]any)  {}
func (NoopLogger) Error(string, map[string]any) {}
