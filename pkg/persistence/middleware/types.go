package middleware

import "github.com/ravituringworks/agency/pkg/ports"

// Middleware wraps a LedgerStore to add behavior.
type Middleware func(ports.LedgerStore) ports.LedgerStore

// Chain applies middlewares so the first one is outermost.
func Chain(store ports.LedgerStore, mws ...Middleware) ports.LedgerStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
