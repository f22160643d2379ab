package searx

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sony/gobreaker/v2"

	"webscout/internal/domain"
	"webscout/internal/infra/config"
)

// BreakerBackend wraps a Backend with circuit breaker protection. When the
// search backend fails repeatedly, the circuit opens and subsequent calls
// fail fast as ErrBackendUnavailable without reaching the network.
type BreakerBackend struct {
	inner   Backend
	breaker *gobreaker.CircuitBreaker[*domain.SearchResponse]
	logger  *slog.Logger
}

// NewBreakerBackend wraps inner with a circuit breaker configured by cfg.
func NewBreakerBackend(inner Backend, cfg config.BreakerConfig, logger *slog.Logger) *BreakerBackend {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	cb := gobreaker.NewCircuitBreaker[*domain.SearchResponse](gobreaker.Settings{
		Name:        "search:" + inner.Name(),
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			// Validation failures and malformed responses are not backend
			// health signals; only availability errors count against it.
			return err == nil || !errors.Is(err, domain.ErrBackendUnavailable)
		},
	})

	return &BreakerBackend{inner: inner, breaker: cb, logger: logger}
}

func (b *BreakerBackend) Name() string { return b.inner.Name() }

func (b *BreakerBackend) Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchResponse, error) {
	resp, err := b.breaker.Execute(func() (*domain.SearchResponse, error) {
		return b.inner.Search(ctx, q)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, domain.NewDomainError("searx.Breaker", domain.ErrBackendUnavailable, "circuit open")
		}
		return nil, err
	}
	return resp, nil
}
