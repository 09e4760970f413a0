package axe

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidConfiguration is returned when a Builder argument is invalid.
	// It is reported before any page interaction.
	ErrInvalidConfiguration = errors.New("axe: invalid configuration")

	// ErrTimeout matches every *TimeoutError.
	ErrTimeout = errors.New("axe: audit timeout")

	// ErrMalformedReport matches every *MalformedReportError.
	ErrMalformedReport = errors.New("axe: malformed report")

	// ErrScriptRuntime matches every *RuntimeError.
	ErrScriptRuntime = errors.New("axe: script runtime error")

	// ErrScriptUnavailable is returned when the script source cannot be
	// loaded or does not define the entry point once injected.
	ErrScriptUnavailable = errors.New("axe: script unavailable")
)

// TimeoutError reports that the page-side call did not resolve before the
// configured deadline. The page script is not aborted.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("axe: script did not complete within %d seconds", int64(e.Timeout/time.Second))
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// MalformedReportError reports a resolved call whose JSON does not have the
// expected shape, usually a script/engine version mismatch.
type MalformedReportError struct {
	Reason string
	Err    error
}

func (e *MalformedReportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("axe: malformed report: %s: %v", e.Reason, e.Err)
	}
	return "axe: malformed report: " + e.Reason
}

func (e *MalformedReportError) Unwrap() error { return e.Err }

func (e *MalformedReportError) Is(target error) bool { return target == ErrMalformedReport }

// RuntimeError carries an error raised by the injected script. Error
// returns the script's message unmodified.
type RuntimeError struct {
	Message string
}

func (e *RuntimeError) Error() string { return e.Message }

func (e *RuntimeError) Is(target error) bool { return target == ErrScriptRuntime }

// IsTimeout reports whether err is or wraps a *TimeoutError.
func IsTimeout(err error) bool {
	return err != nil && errors.Is(err, ErrTimeout)
}

// IsRuntime reports whether err is or wraps a *RuntimeError.
func IsRuntime(err error) bool {
	return err != nil && errors.Is(err, ErrScriptRuntime)
}

// IsMalformed reports whether err is or wraps a *MalformedReportError.
func IsMalformed(err error) bool {
	return err != nil && errors.Is(err, ErrMalformedReport)
}

func malformed(reason string, err error) error {
	return &MalformedReportError{Reason: reason, Err: err}
}
