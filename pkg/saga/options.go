package saga

import (
	"log/slog"
	"time"

	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/ports"
	"go.opentelemetry.io/otel/trace"
)

// DefaultBaseDelay is the first retry backoff.
const DefaultBaseDelay = 100 * time.Millisecond

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithBaseDelay sets the first retry backoff. Attempt n waits base * 2^(n-1).
func WithBaseDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		c.baseDelay = d
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithHooks registers lifecycle callbacks for step state changes.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Coordinator) {
		c.hooks = hooks
	}
}

// WithStore persists the ledger after every state change.
func WithStore(store ports.LedgerStore) Option {
	return func(c *Coordinator) {
		c.store = store
	}
}

// WithAlerter notifies operators when compensation fails.
func WithAlerter(alerter ports.Alerter) Option {
	return func(c *Coordinator) {
		c.alerter = alerter
	}
}

// WithTracer overrides the OpenTelemetry tracer used for step spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = tracer
	}
}
