package mail

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/otoshimono/internal/metrics"
)

const (
	breakerTripAfter = 5
	breakerTimeout   = time.Minute
	breakerInterval  = 5 * time.Minute
)

// BreakerMailer stops calling a failing mail server for a while after
// breakerTripAfter consecutive delivery failures. Invalid recipient addresses
// do not count as failures.
type BreakerMailer struct {
	next   Mailer
	cb     *gobreaker.CircuitBreaker[struct{}]
	name   string
	logger *zap.Logger
}

// NewBreakerMailer wraps next with a circuit breaker named name.
func NewBreakerMailer(next Mailer, name string, logger *zap.Logger) *BreakerMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	m := &BreakerMailer{next: next, name: name, logger: logger}
	m.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    breakerInterval,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripAfter
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrInvalidAddress) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("mail circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
	return m
}

// SendMatchEmail delivers through the wrapped Mailer unless the breaker is open,
// in which case it fails fast with gobreaker.ErrOpenState.
func (m *BreakerMailer) SendMatchEmail(ctx context.Context, email, itemType, itemTitle string, matchPercentage int) error {
	_, err := m.cb.Execute(func() (struct{}, error) {
		return struct{}{}, m.next.SendMatchEmail(ctx, email, itemType, itemTitle, matchPercentage)
	})
	return err
}

// State returns the breaker state.
func (m *BreakerMailer) State() gobreaker.State {
	return m.cb.State()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
