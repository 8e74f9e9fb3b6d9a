package embeddings

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerProvider wraps a Provider with a circuit breaker so a failing
// embedding endpoint is not hammered by every query variation.
type BreakerProvider struct {
	next Provider
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerProvider wraps next. The breaker opens after three requests with
// a failure ratio of at least 60% and probes again after 30 seconds.
func NewBreakerProvider(next Provider, logger *slog.Logger) *BreakerProvider {
	st := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("embedding circuit breaker state changed",
				slog.String("provider", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}
	return &BreakerProvider{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(st),
	}
}

// Name implements Provider.
func (b *BreakerProvider) Name() string {
	return b.next.Name()
}

// Dimensions implements Provider.
func (b *BreakerProvider) Dimensions() int {
	return b.next.Dimensions()
}

// Embed implements Provider.
func (b *BreakerProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Embed(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return resp.([][]float32), nil
}

// State reports the breaker state.
func (b *BreakerProvider) State() gobreaker.State {
	return b.cb.State()
}
