package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ravituringworks/agency/internal/adapters/file"
	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.LedgerStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	ports.RunLedgerStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	l := domain.NewTransactionLedger("atomic", "order", nil)
	require.NoError(t, store.Save(ctx, l))
	require.NoError(t, store.Save(ctx, l), "overwrite in place")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "atomic.json", entries[0].Name())
}

func TestFileStore_RejectsPathTraversal(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	err := store.Save(ctx, domain.NewTransactionLedger("../escape", "x", nil))
	assert.Error(t, err)

	_, err = store.Load(ctx, "")
	assert.Error(t, err)
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "never-created"))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

var _ ports.ConversationStore = (*file.ConversationStore)(nil)

func TestConversationStore_Contract(t *testing.T) {
	ports.RunConversationStoreContract(t, file.NewConversationStore(t.TempDir()))
}
