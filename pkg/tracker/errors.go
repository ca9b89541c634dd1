package tracker

import (
	"errors"
	"fmt"
)

// ErrFallbackFailed matches any delivery failure on the Fallback transport,
// after which no transport is left to try.
var ErrFallbackFailed = errors.New("fallback transport failed")

// DeliveryError describes a failed send on one transport.
type DeliveryError struct {
	Transport  Transport
	StatusCode int
	Message    string
	Err        error
}

func (e *DeliveryError) Error() string {
	msg := fmt.Sprintf("%s delivery failed", e.Transport)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" with status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Is reports ErrFallbackFailed for failures on the Fallback transport.
func (e *DeliveryError) Is(target error) bool {
	return target == ErrFallbackFailed && e.Transport == TransportFallback
}
