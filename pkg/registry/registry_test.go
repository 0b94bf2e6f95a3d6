package registry_test

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"strings"
	"testing"

	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SystemInfo(t *testing.T) {
	r := registry.NewBuiltin()
	ctx := context.Background()

	tools, err := r.Tools(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{registry.SystemInfoTool}, tools)

	res, err := r.Execute(ctx, domain.ToolCall{ID: "c1", Name: registry.SystemInfoTool})
	require.NoError(t, err)
	assert.Equal(t, "c1", res.ID)
	assert.False(t, res.IsError)

	text := res.Text()
	require.True(t, strings.HasPrefix(text, "System Info: "), text)

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(text, "System Info: ")), &info))
	assert.Equal(t, runtime.GOOS, info["os"])
	assert.Equal(t, runtime.GOARCH, info["arch"])
	assert.NotEmpty(t, info["family"])
}

func TestRegistry_UnknownTool(t *testing.T) {
	_, err := registry.NewRegistry().Execute(context.Background(), domain.ToolCall{ID: "x", Name: "nope"})
	assert.ErrorIs(t, err, domain.ErrUnknownTool)
}

func TestRegistry_ToolErrorBecomesErrorResult(t *testing.T) {
	r := registry.NewRegistry()
	r.Register(domain.Tool{Name: "fail"}, func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("disk full")
	})

	res, err := r.Execute(context.Background(), domain.ToolCall{ID: "1", Name: "fail"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "disk full", res.Text())
}

type addArgs struct {
	A int `json:"a"`
	B int `json:"b"`
}

func TestTyped_DecodesArgs(t *testing.T) {
	r := registry.NewRegistry()
	r.Register(domain.Tool{Name: "add", Description: "adds"}, registry.Typed(func(_ context.Context, args addArgs) (any, error) {
		return map[string]int{"sum": args.A + args.B}, nil
	}))
	ctx := context.Background()

	res, err := r.Execute(ctx, domain.ToolCall{ID: "1", Name: "add", Args: map[string]any{"a": 2, "b": "3"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"sum":5}`, res.Text())

	res, err = r.Execute(ctx, domain.ToolCall{ID: "2", Name: "add", Args: map[string]any{"c": 1}})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), "invalid arguments")

	assert.Equal(t, []domain.Tool{{Name: "add", Description: "adds"}}, r.Describe())
}

func TestChain_RoutesToFirstOwner(t *testing.T) {
	first := registry.NewRegistry()
	first.Register(domain.Tool{Name: "echo"}, func(context.Context, map[string]any) (any, error) { return "first", nil })
	second := registry.NewRegistry()
	second.Register(domain.Tool{Name: "echo"}, func(context.Context, map[string]any) (any, error) { return "second", nil })
	second.Register(domain.Tool{Name: "other"}, func(context.Context, map[string]any) (any, error) { return "other", nil })

	chain := registry.NewChain(first, second)
	ctx := context.Background()

	names, err := chain.Tools(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", "other"}, names)

	res, err := chain.Execute(ctx, domain.ToolCall{ID: "1", Name: "echo"})
	require.NoError(t, err)
	assert.Equal(t, "first", res.Text())

	res, err = chain.Execute(ctx, domain.ToolCall{ID: "2", Name: "other"})
	require.NoError(t, err)
	assert.Equal(t, "other", res.Text())

	_, err = chain.Execute(ctx, domain.ToolCall{ID: "3", Name: "missing"})
	assert.ErrorIs(t, err, domain.ErrUnknownTool)
}

func TestToResult_PassesThroughToolResult(t *testing.T) {
	res, err := registry.ToResult("new", domain.ToolResult{ID: "old", IsError: true})
	require.NoError(t, err)
	assert.Equal(t, "new", res.ID)
	assert.True(t, res.IsError)
}
