package clierr

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	CodeFindings = 1
	CodeBlocked  = 2
	CodeUsage    = 2
	CodeFatal    = 3
)

type ExitCoder interface {
	error
	ExitCode() int
}

// ExitError is an error that carries an explicit process exit code.
// It supports wrapping via Unwrap so errors.Is/As work as expected.
type ExitError struct {
	code     int
	msg      string
	cause    error
	reported bool
}

func (e *ExitError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	if e.msg == "" {
		return e.cause.Error()
	}
	return fmt.Sprintf("%s: %v", e.msg, e.cause)
}

func (e *ExitError) ExitCode() int { return e.code }

func (e *ExitError) Unwrap() error { return e.cause }

// New creates an ExitError with a message.
func New(code int, msg string) error {
	return &ExitError{code: normalize(code), msg: msg}
}

// Wrap creates an ExitError that wraps an underlying cause. An empty msg
// keeps the cause's text unchanged.
func Wrap(code int, msg string, cause error) error {
	if cause == nil {
		return New(code, msg)
	}
	return &ExitError{code: normalize(code), msg: msg, cause: cause}
}

// Newf is a formatted variant.
func Newf(code int, format string, args ...any) error {
	return &ExitError{code: normalize(code), msg: fmt.Sprintf(format, args...)}
}

// Reported is an exit status whose output the command already printed.
// main exits with code without printing anything else.
func Reported(code int) error {
	return &ExitError{code: normalize(code), msg: fmt.Sprintf("exit status %d", code), reported: true}
}

// IsReported reports whether err's output has already been printed.
func IsReported(err error) bool {
	var e *ExitError
	return errors.As(err, &e) && e.reported
}

// ExitCodeOf extracts an exit code from any error. Errors without a code
// are fatal.
func ExitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var ec ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return CodeFatal
}

func normalize(code int) int {
	// Exit code 0 means success; errors should never be 0.
	if code <= 0 {
		return 1
	}
	return code
}
