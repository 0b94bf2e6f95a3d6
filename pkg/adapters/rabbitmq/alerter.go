// Package rabbitmq publishes saga alerts and outcomes to a RabbitMQ queue.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ravituringworks/agency/internal/logging"
	"github.com/ravituringworks/agency/pkg/domain"
)

// DefaultQueue receives alerts when no queue is configured.
const DefaultQueue = "agency.saga.alerts"

// Message types set on published deliveries.
const (
	TypeCompensationFailed = "saga.compensation_failed"
	TypeSagaFinished       = "saga.finished"
)

// Publisher is the part of *amqp.Channel the Alerter needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Config describes the broker connection.
type Config struct {
	URL     string
	Queue   string
	Durable bool
}

// Alerter implements ports.Alerter over a RabbitMQ queue.
type Alerter struct {
	pub    Publisher
	queue  string
	logger *slog.Logger
	close  func() error
}

// Option configures the Alerter.
type Option func(*Alerter)

// WithLogger configures the logger used by Hooks.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Alerter) {
		a.logger = logger
	}
}

// New creates an Alerter publishing to queue on the default exchange.
func New(pub Publisher, queue string, opts ...Option) *Alerter {
	if queue == "" {
		queue = DefaultQueue
	}
	a := &Alerter{pub: pub, queue: queue, close: func() error { return nil }}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logging.NewNop()
	}
	return a
}

// Dial connects to the broker and declares the queue.
func Dial(cfg Config, opts ...Option) (*Alerter, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, cfg.Durable, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	a := New(ch, queue, opts...)
	a.close = func() error {
		_ = ch.Close()
		return conn.Close()
	}
	return a, nil
}

// Alert publishes a compensation failure.
func (a *Alerter) Alert(ctx context.Context, alert domain.SagaAlert) error {
	return a.publish(ctx, TypeCompensationFailed, alert.LedgerID, alert.Timestamp, alert)
}

// Hooks publishes every finished saga. Publish failures are logged.
func (a *Alerter) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSagaFinished: func(ctx context.Context, e *domain.SagaEvent) {
			if err := a.publish(ctx, TypeSagaFinished, e.LedgerID, e.Timestamp, e); err != nil {
				a.logger.WarnContext(ctx, "failed to publish saga outcome", "ledger_id", e.LedgerID, "err", err)
			}
		},
	}
}

// Close releases the broker connection, if the Alerter owns one.
func (a *Alerter) Close() error {
	return a.close()
}

func (a *Alerter) publish(ctx context.Context, msgType, id string, ts time.Time, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", msgType, err)
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	err = a.pub.PublishWithContext(ctx, "", a.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		Type:         msgType,
		Timestamp:    ts,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", msgType, err)
	}
	return nil
}
