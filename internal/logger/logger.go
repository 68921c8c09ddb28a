package logger

// Log levels used across the node.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Output encodings.
const (
	ConsoleFormat = "console"
	JSONFormat    = "json"
)

// New builds the process logger. Unknown levels fall back to debug and
// unknown formats to console.
func New(level, format string) *Logger {
	return newZapLogger(level, format)
}

// Nop returns a logger that discards everything; used by tests and optional wiring.
func Nop() *Logger {
	return nopLogger()
}
