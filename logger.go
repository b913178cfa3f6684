// SPDX-License-Identifier: Apache-2.0

package keyrecon

// Field is a structured key/value pair attached to a log event.
type Field struct {
	Key   string
	Value any
}

// F builds a [Field].
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logger receives change and failure events. Implementations adapt it to a
// concrete sink; see the logging package for zerolog and zap adapters.
type Logger interface {
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Log field names.
const (
	FieldDiffID = "diff_id"
	FieldKey    = "key"
	FieldOld    = "old"
	FieldNew    = "new"
	FieldBranch = "branch"
	FieldError  = "error"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...Field)  {}
func (nopLogger) Warn(string, ...Field)  {}
func (nopLogger) Error(string, ...Field) {}

// NopLogger returns a [Logger] that discards everything.
func NopLogger() Logger { return nopLogger{} }
