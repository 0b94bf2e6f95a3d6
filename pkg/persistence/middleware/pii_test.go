package middleware_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/ravituringworks/agency/internal/logging"
	"github.com/ravituringworks/agency/pkg/adapters/memory"
	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewLedgerStore()
	mw, err := middleware.NewPIIMiddleware([]string{"password", "ssn"})
	require.NoError(t, err)
	store := mw(underlying)
	ctx := context.Background()

	ledger := domain.NewTransactionLedger("pii", "signup", nil)
	ledger.Context.SetMeta("user_password", "secret123")
	ledger.Context.SetMeta("username", "jdoe")
	ledger.StepResults["create"] = map[string]any{
		"user": "jdoe",
		"details": map[string]any{
			"address":    "123 St",
			"ssn_number": "999-99-9999",
		},
		"items": []any{map[string]any{"password": "x"}},
	}

	require.NoError(t, store.Save(ctx, ledger))

	assert.Equal(t, "secret123", ledger.Context.Metadata["user_password"], "caller's ledger is untouched")

	stored, err := underlying.Load(ctx, "pii")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, stored.Context.Metadata["user_password"])
	assert.Equal(t, "jdoe", stored.Context.Metadata["username"])

	result := stored.StepResults["create"].(map[string]any)
	assert.Equal(t, "jdoe", result["user"])
	details := result["details"].(map[string]any)
	assert.Equal(t, middleware.Mask, details["ssn_number"])
	assert.Equal(t, "123 St", details["address"])
	items := result["items"].([]any)
	assert.Equal(t, middleware.Mask, items[0].(map[string]any)["password"])
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain_LoggingOutermost(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWith(&buf, slog.LevelDebug, logging.FormatText)
	pii, err := middleware.NewPIIMiddleware([]string{"token"})
	require.NoError(t, err)

	store := middleware.Chain(memory.NewLedgerStore(), middleware.NewLoggingMiddleware(logger), pii)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewTransactionLedger("c1", "chain", nil)))
	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrLedgerNotFound)

	out := buf.String()
	assert.Contains(t, out, "op=save")
	assert.Contains(t, out, "ledger_id=c1")
	assert.Contains(t, out, "ledger store call failed")
}

type cardPayment struct {
	Card   string `json:"card"`
	Amount int    `json:"amount"`
}

func TestPIIMiddleware_MasksTypedResults(t *testing.T) {
	underlying := memory.NewLedgerStore()
	mw, err := middleware.NewPIIMiddleware([]string{"card"})
	require.NoError(t, err)
	store := mw(underlying)
	ctx := context.Background()

	ledger := domain.NewTransactionLedger("typed", "checkout", nil)
	ledger.StepResults["hold"] = map[string]string{"card": "4111-1111", "note": "ok"}
	ledger.StepResults["charge"] = cardPayment{Card: "4111-2222", Amount: 5}
	ledger.StepResults["receipt"] = &cardPayment{Card: "4111-3333", Amount: 7}

	require.NoError(t, store.Save(ctx, ledger))

	stored, err := underlying.Load(ctx, "typed")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"card": middleware.Mask, "note": "ok"}, stored.StepResults["hold"])
	assert.Equal(t, map[string]any{"card": middleware.Mask, "amount": float64(5)}, stored.StepResults["charge"])
	assert.Equal(t, map[string]any{"card": middleware.Mask, "amount": float64(7)}, stored.StepResults["receipt"])

	assert.Equal(t, cardPayment{Card: "4111-2222", Amount: 5}, ledger.StepResults["charge"], "caller's ledger is untouched")
}

func TestPIIMiddleware_RejectsUnencodableResult(t *testing.T) {
	mw, err := middleware.NewPIIMiddleware([]string{"card"})
	require.NoError(t, err)
	store := mw(memory.NewLedgerStore())

	ledger := domain.NewTransactionLedger("bad", "checkout", nil)
	ledger.StepResults["step"] = make(chan int)

	assert.Error(t, store.Save(context.Background(), ledger))
}
