package log

var (
	_ Logger = (*NoopLogger)(nil)
	_ Logger = (*ZerologAdapter)(nil)
)

// NoopLogger discards everything. It is the default when no logger is supplied.
type NoopLogger struct{}

// NewNoopLogger creates a new no-op logger.
func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

func (NoopLogger) Debug(msg string, fields ...Field) {}
func (NoopLogger) Info(msg string, fields ...Field)  {}
func (NoopLogger) Warn(msg string, fields ...Field)  {}
func (NoopLogger) Error(msg string, fields ...Field) {}
