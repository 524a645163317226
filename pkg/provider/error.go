package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error wraps provider failures with status metadata so callers can branch
// on the structured code instead of matching error strings.
type Error struct {
	Status    int
	Temporary bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("provider error (status=%d)", e.Status)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Status
	}
	return 0
}

// IsTransient reports whether an error is safe to retry on a future
// request. Races never retry internally; the front door uses this to shape
// client-facing statuses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var perr *Error
	if errors.As(err, &perr) {
		if perr.Temporary {
			return true
		}
		if perr.Status == 429 || (perr.Status >= 500 && perr.Status <= 599) {
			return true
		}
	}
	return false
}
