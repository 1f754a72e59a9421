package errors

// ErrorCode identifies one failure class. Codes are stable machine-readable
// strings: run reports tally errors by code and log lines carry them
// verbatim.
type ErrorCode string

// Error is a coded error. Implementations are immutable; the With* methods
// derive copies, so an Error may be shared across goroutines and rendered
// repeatedly without synchronization.
type Error interface {
	error
	Code() ErrorCode
	WithMessage(msg string) Error
	WithData(data any) Error
	Data() any
	Unwrap() error
}

// Factory builds coded errors.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
