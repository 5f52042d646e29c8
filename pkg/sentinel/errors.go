// errors.go defines the error taxonomy of the capture pipeline.

package sentinel

import (
	"errors"
	"fmt"
)

// ErrMisuse is matched (via errors.Is) by every lifecycle violation.
var ErrMisuse = errors.New("sentinel: invalid catcher state")

var (
	// ErrNotInitialized is returned when reporting before Initialize.
	ErrNotInitialized = fmt.Errorf("%w: not initialized", ErrMisuse)

	// ErrShutDown is returned when reporting after Shutdown.
	ErrShutDown = fmt.Errorf("%w: shut down", ErrMisuse)

	// ErrNilError is returned when Report is called with a nil error.
	ErrNilError = errors.New("sentinel: nil error reported")

	// ErrRateLimited marks a report dropped by the capture rate limiter.
	ErrRateLimited = errors.New("sentinel: report rate limit exceeded")

	// ErrCircuitOpen marks a delivery refused because the endpoint's circuit
	// breaker is open.
	ErrCircuitOpen = errors.New("sentinel: circuit breaker open")
)

// ConfigErrorType classifies configuration failures.
type ConfigErrorType string

const (
	// ErrParsing indicates environment values could not be parsed.
	ErrParsing ConfigErrorType = "parsing"

	// ErrValidation indicates the configuration failed validation.
	ErrValidation ConfigErrorType = "validation"
)

// ConfigError is returned when a Config cannot be used to build a Catcher.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sentinel config [%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("sentinel config [%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// DeliveryError describes a failed delivery attempt.
type DeliveryError struct {
	// StatusCode is the HTTP status of the response, 0 when none was received.
	StatusCode int

	// Retryable reports whether the failure is transient.
	Retryable bool

	Err error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("sentinel delivery failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("sentinel delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
