package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/ports"
)

// Mask replaces values whose key matches a PII pattern.
const Mask = "***"

type piiMiddleware struct {
	next     ports.LedgerStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware masks context metadata and step result fields whose keys
// match any of the patterns before they reach the store.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		patterns[i] = re
	}
	return func(next ports.LedgerStore) ports.LedgerStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, ledger *domain.TransactionLedger) error {
	// The coordinator keeps using its ledger, so mask a copy.
	masked := ledger.Clone()
	for id, v := range masked.StepResults {
		generic, err := toGeneric(v)
		if err != nil {
			return fmt.Errorf("failed to mask result of step %s: %w", id, err)
		}
		masked.StepResults[id] = m.maskValue(generic)
	}
	if masked.Context != nil {
		for k := range masked.Context.Metadata {
			if m.matches(k) {
				masked.Context.Metadata[k] = Mask
			}
		}
	}
	return m.next.Save(ctx, masked)
}

func (m *piiMiddleware) Load(ctx context.Context, id string) (*domain.TransactionLedger, error) {
	return m.next.Load(ctx, id)
}

func (m *piiMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

// maskValue returns a copy of v with matching map keys masked, recursing
// into nested maps and slices.
func (m *piiMiddleware) maskValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if m.matches(k) {
				out[k] = Mask
				continue
			}
			out[k] = m.maskValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = m.maskValue(val)
		}
		return out
	default:
		return v
	}
}

// toGeneric converts typed step results (structs, typed maps and slices) into
// the map[string]any and []any shape they take once stored as JSON, so their
// fields can be matched by key.
func toGeneric(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, float64, int, int64:
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
