package domain

import "errors"

// ErrJumpUnsupported is returned when a step requests a non-linear transition.
var ErrJumpUnsupported = errors.New("step jumping not implemented")

// ErrInvalidMaxSteps is returned when a run is started with a round budget below one.
var ErrInvalidMaxSteps = errors.New("max steps must be at least 1")

// ErrNilContext is returned when a run is started without an execution context.
var ErrNilContext = errors.New("execution context is nil")

// ErrLedgerNotFound is returned when a ledger ID cannot be found in the store.
var ErrLedgerNotFound = errors.New("ledger not found")

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrUnknownTool is returned when a tool call names a tool nobody provides.
var ErrUnknownTool = errors.New("unknown tool")

// ErrToolDenied is returned when an interceptor refuses a tool call.
var ErrToolDenied = errors.New("tool call denied")
