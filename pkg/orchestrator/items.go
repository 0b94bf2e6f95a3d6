package orchestrator

import (
	"context"
	"fmt"

	"github.com/Jeffail/gabs/v2"
	"github.com/ravituringworks/agency/pkg/domain"
)

// ItemsFunc extracts the items a ForEach step iterates over.
type ItemsFunc func(ctx context.Context, ec *domain.ExecutionContext) ([]string, error)

// StaticItems iterates over a fixed list.
func StaticItems(items ...string) ItemsFunc {
	return func(context.Context, *domain.ExecutionContext) ([]string, error) {
		return items, nil
	}
}

// JSONItems reads a JSON document from metadata[key] and iterates over the
// array found at the dotted path. An empty path means the document itself.
// String elements are yielded as-is, everything else as compact JSON.
// A missing key yields no items.
func JSONItems(key, path string) ItemsFunc {
	return func(_ context.Context, ec *domain.ExecutionContext) ([]string, error) {
		raw, ok := ec.Metadata[key]
		if !ok || raw == "" {
			return nil, nil
		}
		doc, err := gabs.ParseJSON([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("metadata %q is not valid JSON: %w", key, err)
		}
		if path != "" {
			if !doc.ExistsP(path) {
				return nil, nil
			}
			doc = doc.Path(path)
		}
		if _, isArray := doc.Data().([]any); !isArray {
			return nil, fmt.Errorf("metadata %q at %q is not an array", key, path)
		}
		children := doc.Children()
		items := make([]string, 0, len(children))
		for _, child := range children {
			if s, ok := child.Data().(string); ok {
				items = append(items, s)
				continue
			}
			items = append(items, child.String())
		}
		return items, nil
	}
}
