package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker rejects calls after repeated
// backend failures.
var ErrCircuitOpen = errors.New("llm circuit breaker is open")

// BreakerConfig controls when the breaker trips and how long it stays open.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a trial call is let through.
	Timeout time.Duration
}

// DefaultBreakerConfig trips after 3 consecutive failures and re-probes after 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxFailures: 3, Timeout: 30 * time.Second}
}

// BreakerGenerator guards another Generator with a circuit breaker. A call
// is attempted at most once; an open circuit fails fast.
type BreakerGenerator struct {
	next    Generator
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerGenerator wraps next.
func NewBreakerGenerator(next Generator, cfg BreakerConfig, logger *slog.Logger) *BreakerGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = DefaultBreakerConfig().MaxFailures
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultBreakerConfig().Timeout
	}
	maxFailures := cfg.MaxFailures
	settings := gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// A caller giving up is not a backend failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerGenerator{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Generate forwards to the wrapped generator unless the circuit is open.
func (b *BreakerGenerator) Generate(ctx context.Context, req Request) (string, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.Generate(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return "", err
	}
	return out.(string), nil
}

// State reports the breaker state: "closed", "open" or "half-open".
func (b *BreakerGenerator) State() string {
	return b.breaker.State().String()
}
