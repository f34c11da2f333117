package executor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	apperrors "github.com/kbukum/streamfetch/errors"
	"github.com/kbukum/streamfetch/resilience"
)

// ErrorCode classifies executor errors.
type ErrorCode int

const (
	// ErrCodeTimeout indicates a connect, write or read timeout.
	ErrCodeTimeout ErrorCode = iota
	// ErrCodeConnection indicates a transport failure (refused, DNS, reset).
	ErrCodeConnection
	// ErrCodeValidation indicates the request could not be built.
	ErrCodeValidation
	// ErrCodeCanceled indicates the caller or the bridge canceled the request.
	ErrCodeCanceled
	// ErrCodeCircuitOpen indicates the circuit breaker rejected the request.
	ErrCodeCircuitOpen
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeTimeout:
		return "timeout"
	case ErrCodeConnection:
		return "connection"
	case ErrCodeValidation:
		return "validation"
	case ErrCodeCanceled:
		return "canceled"
	case ErrCodeCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Request phases a timeout can fire in.
const (
	PhaseConnect = "connect"
	PhaseWrite   = "write"
	PhaseRead    = "read"
)

// Error is a classified executor failure.
type Error struct {
	Code ErrorCode
	// Phase is set for timeouts.
	Phase     string
	Message   string
	Retryable bool
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("executor: %s (%s): %s", e.Code, e.Phase, e.Message)
	}
	return fmt.Sprintf("executor: %s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// AppError converts e for callers that speak the application error type.
func (e *Error) AppError() *apperrors.AppError {
	switch e.Code {
	case ErrCodeTimeout:
		return apperrors.Timeout(e.Phase, e)
	case ErrCodeValidation:
		return apperrors.InvalidInput("", e.Message).WithCause(e)
	case ErrCodeCircuitOpen:
		return apperrors.ServiceUnavailable("upstream").WithCause(e)
	default:
		return apperrors.RequestFailed(e)
	}
}

// NewTimeoutError creates a timeout error for phase.
func NewTimeoutError(phase string, err error) *Error {
	return &Error{Code: ErrCodeTimeout, Phase: phase, Message: phase + " timed out", Retryable: phase == PhaseConnect, Err: err}
}

// NewConnectionError creates a connection error.
func NewConnectionError(err error) *Error {
	return &Error{Code: ErrCodeConnection, Message: err.Error(), Retryable: true, Err: err}
}

// NewValidationError creates a validation error.
func NewValidationError(msg string) *Error {
	return &Error{Code: ErrCodeValidation, Message: msg}
}

// NewCanceledError wraps the context error that stopped a request.
func NewCanceledError(err error) *Error {
	return &Error{Code: ErrCodeCanceled, Message: "request canceled", Err: err}
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeTimeout
}

// IsCanceled checks if an error is a cancellation.
func IsCanceled(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeCanceled
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}

// phaseError tags a raw connection error with the phase it happened in.
type phaseError struct {
	phase string
	err   error
}

func (e *phaseError) Error() string   { return e.phase + ": " + e.err.Error() }
func (e *phaseError) Unwrap() error   { return e.err }
func (e *phaseError) Timeout() bool   { return isNetTimeout(e.err) }
func (e *phaseError) Temporary() bool { return false }

func isNetTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// classify turns a transport error into an *Error. ctx is the request
// context; fallback is the phase assumed for untagged timeouts.
func classify(ctx context.Context, err error, fallback string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !isNetTimeout(err) {
		return NewCanceledError(ctxErr)
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return &Error{Code: ErrCodeCircuitOpen, Message: err.Error(), Err: err}
	}

	var pe *phaseError
	if errors.As(err, &pe) && pe.Timeout() {
		return NewTimeoutError(pe.phase, err)
	}
	var op *net.OpError
	if errors.As(err, &op) && op.Op == "dial" {
		if op.Timeout() {
			return NewTimeoutError(PhaseConnect, err)
		}
		return NewConnectionError(err)
	}
	if isNetTimeout(err) {
		return NewTimeoutError(fallback, err)
	}
	return NewConnectionError(err)
}
