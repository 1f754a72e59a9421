package logger

import "codeberg.org/mutker/fleetinv/internal/errors"

// Logger defines the interface for logging operations.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	ErrorWithCode(err errors.Error) *LogEvent
	FatalWithCode(err errors.Error) *LogEvent
}

type packageLogger struct{}

func (packageLogger) Debug() *LogEvent { return Debug() }
func (packageLogger) Info() *LogEvent  { return Info() }
func (packageLogger) Warn() *LogEvent  { return Warn() }
func (packageLogger) Error() *LogEvent { return Error() }

func (packageLogger) ErrorWithCode(err errors.Error) *LogEvent { return ErrorWithCode(err) }
func (packageLogger) FatalWithCode(err errors.Error) *LogEvent { return FatalWithCode(err) }

// Default returns a Logger backed by the package-level logger.
func Default() Logger {
	return packageLogger{}
}
