package redis

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/pior/redis/resp"
)

// NewCircuitBreakerSettings returns breaker settings that trip once at least
// 3 requests were seen in the interval and 60% of them failed.
func NewCircuitBreakerSettings(maxRequests uint32, interval, timeout time.Duration) *gobreaker.Settings {
	return &gobreaker.Settings{
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	}
}

func newCircuitBreaker(addr string, settings gobreaker.Settings, logger logrus.FieldLogger) *gobreaker.CircuitBreaker[[]resp.Frame] {
	if settings.Name == "" {
		settings.Name = addr
	}
	if settings.IsSuccessful == nil {
		settings.IsSuccessful = breakerSuccess
	}
	if settings.OnStateChange == nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("redis: circuit breaker state changed")
		}
	}
	return gobreaker.NewCircuitBreaker[[]resp.Frame](settings)
}

// breakerSuccess counts only failures of the server or of the stream against
// the breaker. Error replies, the state of the local pool and cancellation by
// the caller say nothing about the server's health.
func breakerSuccess(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrPoolExhausted), errors.Is(err, ErrPoolClosed), errors.Is(err, context.Canceled):
		return true
	default:
		return !resp.ShouldCloseConnection(err)
	}
}
