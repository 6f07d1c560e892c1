package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/lendflow/internal/logging"
	"github.com/aretw0/lendflow/pkg/ports"
	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// Defaults for the external classifier guard.
const (
	DefaultTimeout         = 2 * time.Second
	DefaultRetries         = 1
	DefaultBreakerFailures = 3
	DefaultBreakerCooldown = 30 * time.Second
)

// ErrUnavailable wraps every failure of the primary classifier.
var ErrUnavailable = errors.New("classifier unavailable")

// Resilient guards a slow or unreliable classifier. Each Analyze call gets a total time
// budget, at most Retries extra attempts, and runs through a circuit breaker. When the
// primary fails and a fallback is configured, the fallback answers instead.
type Resilient struct {
	primary  ports.Classifier
	fallback ports.Classifier
	timeout  time.Duration
	retries  uint64
	initial  time.Duration
	breaker  *gobreaker.CircuitBreaker
	logger   *slog.Logger
}

// Option configures a Resilient classifier.
type Option func(*resilientConfig)

type resilientConfig struct {
	fallback ports.Classifier
	timeout  time.Duration
	retries  uint64
	initial  time.Duration
	failures uint32
	cooldown time.Duration
	logger   *slog.Logger
}

// WithFallback sets the classifier used when the primary fails.
func WithFallback(c ports.Classifier) Option {
	return func(cfg *resilientConfig) { cfg.fallback = c }
}

// WithTimeout sets the total time budget of one Analyze call.
func WithTimeout(d time.Duration) Option {
	return func(cfg *resilientConfig) {
		if d > 0 {
			cfg.timeout = d
		}
	}
}

// WithRetries sets how many times a failed call is retried.
func WithRetries(n uint64) Option {
	return func(cfg *resilientConfig) { cfg.retries = n }
}

// WithRetryInterval sets the wait before the first retry.
func WithRetryInterval(d time.Duration) Option {
	return func(cfg *resilientConfig) { cfg.initial = d }
}

// WithBreaker sets the consecutive failures that open the breaker and how long it stays open.
func WithBreaker(failures uint32, cooldown time.Duration) Option {
	return func(cfg *resilientConfig) {
		cfg.failures = failures
		cfg.cooldown = cooldown
	}
}

// WithLogger configures a logger.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *resilientConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// NewResilient wraps primary.
func NewResilient(primary ports.Classifier, opts ...Option) *Resilient {
	cfg := resilientConfig{
		timeout:  DefaultTimeout,
		retries:  DefaultRetries,
		initial:  100 * time.Millisecond,
		failures: DefaultBreakerFailures,
		cooldown: DefaultBreakerCooldown,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Resilient{
		primary:  primary,
		fallback: cfg.fallback,
		timeout:  cfg.timeout,
		retries:  cfg.retries,
		initial:  cfg.initial,
		logger:   cfg.logger,
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "classifier",
		MaxRequests: 1,
		Timeout:     cfg.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("classifier breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return r
}

// State reports the breaker state ("closed", "half-open" or "open").
func (r *Resilient) State() string {
	return r.breaker.State().String()
}

// Analyze implements ports.Classifier.
func (r *Resilient) Analyze(ctx context.Context, message string, cc ports.ClassifierContext) (ports.RoutingHint, error) {
	hint, err := r.analyzePrimary(ctx, message, cc)
	if err == nil {
		return hint, nil
	}

	if r.fallback == nil {
		return ports.RoutingHint{}, err
	}
	r.logger.Warn("classifier failed, using fallback", "conversation_id", cc.ConversationID, "err", err)
	return r.fallback.Analyze(ctx, message, cc)
}

func (r *Resilient) analyzePrimary(ctx context.Context, message string, cc ports.ClassifierContext) (ports.RoutingHint, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.breaker.Execute(func() (any, error) {
		var hint ports.RoutingHint
		op := func() error {
			h, err := r.primary.Analyze(ctx, message, cc)
			if err != nil {
				if ctx.Err() != nil {
					return backoff.Permanent(ctx.Err())
				}
				return err
			}
			hint = h
			return nil
		}

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = r.initial
		err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, r.retries), ctx))
		return hint, err
	})
	if err != nil {
		return ports.RoutingHint{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return out.(ports.RoutingHint), nil
}
