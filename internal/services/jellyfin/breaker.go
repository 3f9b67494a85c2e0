package jellyfin

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"jellywatch/internal/logging"
	"jellywatch/internal/metrics"
)

// Breaker guards Jellyfin requests with a circuit breaker. One Breaker is
// shared by every client the daemon builds so state survives settings changes.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker[[]byte]
	name   string
	logger *slog.Logger
}

// BreakerSettings tunes when the breaker opens and how long it stays open.
type BreakerSettings struct {
	Name             string
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// NewBreaker returns a breaker that opens after FailureThreshold consecutive
// failures. A zero threshold returns nil, which disables the wrapper.
func NewBreaker(settings BreakerSettings, logger *slog.Logger, m *metrics.Metrics) *Breaker {
	if settings.FailureThreshold == 0 {
		return nil
	}
	name := settings.Name
	if name == "" {
		name = "jellyfin"
	}
	logger = logging.NewComponentLogger(logger, "jellyfin-breaker")
	m.BreakerTransition(name, gobreaker.StateClosed.String(), gobreaker.StateClosed.String())

	threshold := settings.FailureThreshold
	b := &Breaker{name: name, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: countsAsSuccess,
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
				logging.String(logging.FieldEventType, "breaker_transition"),
			)
			m.BreakerTransition(name, from.String(), to.String())
		},
	})
	return b
}

// State reports closed, half-open or open.
func (b *Breaker) State() string {
	if b == nil {
		return gobreaker.StateClosed.String()
	}
	return b.cb.State().String()
}

func (b *Breaker) execute(fn func() ([]byte, error)) ([]byte, error) {
	if b == nil {
		return fn()
	}
	body, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	return body, err
}

// Client errors and caller cancellations say nothing about server health.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode < 500
	}
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}
