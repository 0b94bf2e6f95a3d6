package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/ports"
)

type loggingMiddleware struct {
	next   ports.LedgerStore
	logger *slog.Logger
}

// NewLoggingMiddleware logs every store call at debug level and failures at warn.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ports.LedgerStore) ports.LedgerStore {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

func (m *loggingMiddleware) log(op, id string, start time.Time, err error) {
	if err != nil {
		m.logger.Warn("ledger store call failed", "op", op, "ledger_id", id, "err", err)
		return
	}
	m.logger.Debug("ledger store call", "op", op, "ledger_id", id, "duration", time.Since(start))
}

func (m *loggingMiddleware) Save(ctx context.Context, ledger *domain.TransactionLedger) error {
	start := time.Now()
	err := m.next.Save(ctx, ledger)
	m.log("save", ledger.ID, start, err)
	return err
}

func (m *loggingMiddleware) Load(ctx context.Context, id string) (*domain.TransactionLedger, error) {
	start := time.Now()
	ledger, err := m.next.Load(ctx, id)
	m.log("load", id, start, err)
	return ledger, err
}

func (m *loggingMiddleware) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := m.next.Delete(ctx, id)
	m.log("delete", id, start, err)
	return err
}

func (m *loggingMiddleware) List(ctx context.Context) ([]string, error) {
	start := time.Now()
	ids, err := m.next.List(ctx)
	m.log("list", "", start, err)
	return ids, err
}
