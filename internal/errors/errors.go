package errors

import (
	"errors"
	"fmt"
)

// Standard library checks, re-exported so callers need a single errors import.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

// codedError implements Error. Immutable: the With* methods derive copies
// and Error() never mutates state.
type codedError struct {
	code    ErrorCode
	message string
	err     error
	data    any
}

func (e *codedError) Error() string {
	msg := e.message
	if msg == "" {
		msg = GetErrorMessage(e.code)
	}

	switch {
	case e.err != nil && e.data != nil:
		return fmt.Sprintf("%s: %v (%+v)", msg, e.err, e.data)
	case e.err != nil:
		return fmt.Sprintf("%s: %v", msg, e.err)
	case e.data != nil:
		return fmt.Sprintf("%s: %+v", msg, e.data)
	default:
		return msg
	}
}

func (e *codedError) Code() ErrorCode {
	return e.code
}

func (e *codedError) WithMessage(msg string) Error {
	c := *e
	c.message = msg

	return &c
}

func (e *codedError) WithData(data any) Error {
	c := *e
	c.data = data

	return &c
}

func (e *codedError) Data() any {
	return e.data
}

func (e *codedError) Unwrap() error {
	return e.err
}

type factory struct{}

// New creates a Factory instance for error creation
func New() Factory {
	return factory{}
}

func (factory) New(code ErrorCode) Error {
	return &codedError{code: code}
}

func (factory) Wrap(code ErrorCode, err error) Error {
	return &codedError{code: code, err: err}
}

func (factory) WithMessage(code ErrorCode, msg string) Error {
	return &codedError{code: code, message: msg}
}

func (factory) WithData(code ErrorCode, data any) Error {
	return &codedError{code: code, data: data}
}

// CodeOf returns the error code carried by err, or ErrInternal when err
// does not originate from this package.
func CodeOf(err error) ErrorCode {
	var coded Error
	if As(err, &coded) {
		return coded.Code()
	}

	return ErrInternal
}
