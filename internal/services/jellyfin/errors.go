package jellyfin

import (
	"context"
	"errors"
	"fmt"
	"net"

	"jellywatch/internal/services"
)

var (
	// ErrNoUsers is returned by Libraries when the server reports no users.
	ErrNoUsers = errors.New("jellyfin returned no users")
	// ErrCircuitOpen is returned while the breaker rejects requests.
	ErrCircuitOpen = errors.New("jellyfin circuit breaker open")
	// ErrNotConfigured is returned when the client has no base URL or key.
	ErrNotConfigured = errors.New("jellyfin url and api key are required")
)

// StatusError reports a response other than 200 OK.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("jellyfin %s: status %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("jellyfin %s: status %d: %s", e.Path, e.StatusCode, e.Body)
}

// Is classifies the error as an external service failure.
func (e *StatusError) Is(target error) bool {
	return target == services.ErrExternal
}

// TransportError reports a request that never produced a response.
type TransportError struct {
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("jellyfin %s: %v", e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is classifies the error as transient, or as a timeout when the deadline hit.
func (e *TransportError) Is(target error) bool {
	switch target {
	case services.ErrTransient:
		return true
	case services.ErrTimeout:
		return isTimeout(e.Err)
	}
	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// DecodeError reports a 200 response whose body could not be decoded.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("jellyfin %s: decode response: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool {
	return target == services.ErrExternal
}
