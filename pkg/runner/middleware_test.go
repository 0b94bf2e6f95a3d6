package runner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestMultiInterceptor_FirstDenialWins(t *testing.T) {
	called := false
	last := func(context.Context, domain.ToolCall) (bool, domain.ToolResult, error) {
		called = true
		return true, domain.ToolResult{}, nil
	}
	mw := runner.MultiInterceptor(
		runner.AutoApproveMiddleware(),
		runner.AllowListMiddleware("calc"),
		last,
	)

	ok, res, err := mw(context.Background(), domain.ToolCall{ID: "1", Name: "shell"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, res.IsError)
	assert.Equal(t, "1", res.ID)
	assert.False(t, called)

	ok, _, err = mw(context.Background(), domain.ToolCall{ID: "2", Name: "calc"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, called)
}

func TestConfirmationMiddleware(t *testing.T) {
	boom := errors.New("tty closed")
	answers := map[string]error{"yes": nil, "no": nil, "err": boom}

	mw := runner.ConfirmationMiddleware(func(_ context.Context, call domain.ToolCall) (bool, error) {
		return call.Name == "yes", answers[call.Name]
	})

	ok, _, err := mw(context.Background(), domain.ToolCall{Name: "yes"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, res, err := mw(context.Background(), domain.ToolCall{Name: "no"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "User denied execution by policy", res.Text())

	_, _, err = mw(context.Background(), domain.ToolCall{Name: "err"})
	assert.ErrorIs(t, err, boom)
}

func TestRateLimitMiddleware(t *testing.T) {
	mw := runner.RateLimitMiddleware(rate.NewLimiter(rate.Every(time.Hour), 1))

	ok, _, err := mw(context.Background(), domain.ToolCall{Name: "a"})
	require.NoError(t, err)
	assert.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err = mw(ctx, domain.ToolCall{Name: "b"})
	assert.ErrorContains(t, err, "tool rate limit")
}
