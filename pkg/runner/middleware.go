package runner

import (
	"context"
	"fmt"
	"slices"

	"github.com/ravituringworks/agency/pkg/domain"
	"golang.org/x/time/rate"
)

// ToolInterceptor is a middleware that can inspect or block a tool call.
// It returns true if execution should proceed. A blocked call should come
// with a ToolResult describing the denial, which is recorded in its place.
type ToolInterceptor func(ctx context.Context, call domain.ToolCall) (bool, domain.ToolResult, error)

// Denied builds the result recorded for a blocked call.
func Denied(call domain.ToolCall, reason string) domain.ToolResult {
	return domain.ToolResult{
		ID:      call.ID,
		Content: []domain.ToolContent{domain.TextContent(reason)},
		IsError: true,
	}
}

// MultiInterceptor chains interceptors. The first denial or error wins.
func MultiInterceptor(interceptors ...ToolInterceptor) ToolInterceptor {
	return func(ctx context.Context, call domain.ToolCall) (bool, domain.ToolResult, error) {
		for _, interceptor := range interceptors {
			allowed, result, err := interceptor(ctx, call)
			if err != nil {
				return false, domain.ToolResult{}, err
			}
			if !allowed {
				return false, result, nil
			}
		}
		return true, domain.ToolResult{}, nil
	}
}

// AutoApproveMiddleware allows everything.
func AutoApproveMiddleware() ToolInterceptor {
	return func(context.Context, domain.ToolCall) (bool, domain.ToolResult, error) {
		return true, domain.ToolResult{}, nil
	}
}

// AllowListMiddleware only lets the named tools run.
func AllowListMiddleware(names ...string) ToolInterceptor {
	return func(_ context.Context, call domain.ToolCall) (bool, domain.ToolResult, error) {
		if slices.Contains(names, call.Name) {
			return true, domain.ToolResult{}, nil
		}
		return false, Denied(call, fmt.Sprintf("tool %q is not allowed", call.Name)), nil
	}
}

// ConfirmFunc asks a human whether a call may run.
type ConfirmFunc func(ctx context.Context, call domain.ToolCall) (bool, error)

// ConfirmationMiddleware asks confirm before each call.
func ConfirmationMiddleware(confirm ConfirmFunc) ToolInterceptor {
	return func(ctx context.Context, call domain.ToolCall) (bool, domain.ToolResult, error) {
		ok, err := confirm(ctx, call)
		if err != nil {
			return false, domain.ToolResult{}, err
		}
		if !ok {
			return false, Denied(call, "User denied execution by policy"), nil
		}
		return true, domain.ToolResult{}, nil
	}
}

// RateLimitMiddleware waits for a token from limiter before each call.
// A canceled wait is returned as an error.
func RateLimitMiddleware(limiter *rate.Limiter) ToolInterceptor {
	return func(ctx context.Context, _ domain.ToolCall) (bool, domain.ToolResult, error) {
		if err := limiter.Wait(ctx); err != nil {
			return false, domain.ToolResult{}, fmt.Errorf("tool rate limit: %w", err)
		}
		return true, domain.ToolResult{}, nil
	}
}
