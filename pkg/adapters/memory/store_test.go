package memory_test

import (
	"testing"

	"github.com/ravituringworks/agency/pkg/adapters/memory"
	"github.com/ravituringworks/agency/pkg/ports"
)

func TestLedgerStore_Contract(t *testing.T) {
	ports.RunLedgerStoreContract(t, memory.NewLedgerStore())
}

func TestConversationStore_Contract(t *testing.T) {
	ports.RunConversationStoreContract(t, memory.NewConversationStore())
}
