package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/ravituringworks/agency/pkg/adapters/memory"
	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/persistence/middleware"
	"github.com/ravituringworks/agency/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func encrypted(t *testing.T, store ports.LedgerStore, active []byte, fallback ...[]byte) ports.LedgerStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    active,
		FallbackKeys: fallback,
	})
	require.NoError(t, err)
	return mw(store)
}

func secretLedger(id string) *domain.TransactionLedger {
	ec := domain.NewExecutionContext(5)
	ec.AddMessage(domain.UserMessage("my card is 4111"))
	l := domain.NewTransactionLedger(id, "payment", ec)
	l.Steps = []domain.StepRef{{ID: "charge", Name: "charge"}}
	l.StepStates["charge"] = domain.StepState{Phase: domain.PhaseCompleted}
	l.StepResults["charge"] = map[string]any{"token": "tok_secret"}
	return l
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunLedgerStoreContract(t, encrypted(t, memory.NewLedgerStore(), generateKey(t)))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewLedgerStore()
	store := encrypted(t, underlying, generateKey(t))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, secretLedger("l1")))

	raw, err := underlying.Load(ctx, "l1")
	require.NoError(t, err)
	assert.Nil(t, raw.Context, "context must not be stored in the clear")
	assert.Contains(t, raw.StepResults, middleware.EnvelopeKey)
	assert.NotContains(t, raw.StepResults, "charge")
	assert.Equal(t, domain.PhaseCompleted, raw.State("charge").Phase, "phases stay readable")

	loaded, err := store.Load(ctx, "l1")
	require.NoError(t, err)
	require.NotNil(t, loaded.Context)
	assert.Equal(t, "my card is 4111", loaded.Context.Messages[0].Content)
	assert.Equal(t, map[string]any{"token": "tok_secret"}, loaded.StepResults["charge"])
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewLedgerStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	oldStore := encrypted(t, underlying, oldKey)
	require.NoError(t, oldStore.Save(ctx, secretLedger("rot")))

	newStore := encrypted(t, underlying, newKey, oldKey)
	loaded, err := newStore.Load(ctx, "rot")
	require.NoError(t, err, "fallback key decrypts old data")

	require.NoError(t, newStore.Save(ctx, loaded))
	_, err = oldStore.Load(ctx, "rot")
	assert.ErrorContains(t, err, "failed to decrypt ledger")
}

func TestEncryptionMiddleware_RejectsPlainLedger(t *testing.T) {
	underlying := memory.NewLedgerStore()
	ctx := context.Background()
	require.NoError(t, underlying.Save(ctx, secretLedger("plain")))

	_, err := encrypted(t, underlying, generateKey(t)).Load(ctx, "plain")
	assert.ErrorIs(t, err, middleware.ErrMissingEnvelope)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.Error(t, err)
}
