package ports

import (
	"context"
	"testing"
	"time"

	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractLedger(id string) *domain.TransactionLedger {
	ec := domain.NewExecutionContext(5)
	ec.AddMessage(domain.UserMessage("book a trip"))
	ec.SetMeta("foo", "bar")

	l := domain.NewTransactionLedger(id, "contract-saga", ec)
	l.Steps = []domain.StepRef{{ID: "s1", Name: "reserve"}}
	l.StepStates["s1"] = domain.StepState{Phase: domain.PhaseCompleted}
	l.StepResults["s1"] = map[string]any{"booking": "B-1"}
	l.RetryCounts["s1"] = 2
	return l
}

// RunLedgerStoreContract runs a suite of tests to verify that a LedgerStore
// implementation adheres to the interface contract.
func RunLedgerStoreContract(t *testing.T, store LedgerStore) {
	ctx := context.Background()
	ledgerID := "contract-ledger-" + time.Now().Format("20060102150405.000000000")

	t.Run("Save and Load", func(t *testing.T) {
		ledger := contractLedger(ledgerID)

		err := store.Save(ctx, ledger)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, ledgerID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, ledger.Name, loaded.Name)
		assert.Equal(t, domain.PhaseCompleted, loaded.State("s1").Phase)
		assert.Equal(t, 2, loaded.RetryCounts["s1"])
		require.NotNil(t, loaded.Context)
		assert.Equal(t, "bar", loaded.Context.Metadata["foo"])
		assert.Equal(t, "book a trip", loaded.Context.Messages[0].Content)
		// JSON-backed stores return generic maps, so only check presence.
		assert.NotNil(t, loaded.StepResults["s1"])
	})

	t.Run("Loaded copy is isolated", func(t *testing.T) {
		loaded, err := store.Load(ctx, ledgerID)
		require.NoError(t, err)
		loaded.RetryCounts["s1"] = 99

		again, err := store.Load(ctx, ledgerID)
		require.NoError(t, err)
		assert.Equal(t, 2, again.RetryCounts["s1"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+ledgerID)
		assert.ErrorIs(t, err, domain.ErrLedgerNotFound)
	})

	t.Run("List", func(t *testing.T) {
		id1 := ledgerID + "-1"
		id2 := ledgerID + "-2"
		require.NoError(t, store.Save(ctx, contractLedger(id1)))
		require.NoError(t, store.Save(ctx, contractLedger(id2)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Delete(ctx, ledgerID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, ledgerID)
		assert.ErrorIs(t, err, domain.ErrLedgerNotFound, "Load after Delete should return ErrLedgerNotFound")

		assert.NoError(t, store.Delete(ctx, ledgerID), "deleting twice is fine")
	})
}

// RunConversationStoreContract verifies a ConversationStore implementation.
func RunConversationStoreContract(t *testing.T, store ConversationStore) {
	ctx := context.Background()
	sessionID := "contract-session-" + time.Now().Format("20060102150405.000000000")

	t.Run("Save and Load", func(t *testing.T) {
		history := []domain.Message{domain.SystemMessage("sys"), domain.UserMessage("hi")}
		require.NoError(t, store.Save(ctx, sessionID, history))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, history, loaded)

		loaded[0].Content = "changed"
		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "sys", again[0].Content)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("List and Delete", func(t *testing.T) {
		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, sessionID)

		require.NoError(t, store.Delete(ctx, sessionID))
		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})
}
