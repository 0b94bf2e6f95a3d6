package orchestrator

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/ravituringworks/agency/pkg/domain"
)

// Condition decides a branch or loop exit from the current context.
type Condition func(ctx context.Context, ec *domain.ExecutionContext) (bool, error)

// MetaEquals is a Condition that holds when metadata[key] == value.
func MetaEquals(key, value string) Condition {
	return func(_ context.Context, ec *domain.ExecutionContext) (bool, error) {
		return ec.Metadata[key] == value, nil
	}
}

// ExprCondition compiles an expr-lang expression into a Condition.
//
// The expression sees: metadata (map of string), step_count, max_steps,
// tool_results, memories and messages (counts) and last_user_message.
//
//	orchestrator.ExprCondition(`metadata.approved == "true" && step_count < 3`)
func ExprCondition(expression string) (Condition, error) {
	program, err := expr.Compile(expression,
		expr.Env(conditionEnv(domain.NewExecutionContext(1))),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid condition %q: %w", expression, err)
	}
	return func(_ context.Context, ec *domain.ExecutionContext) (bool, error) {
		return evalCondition(program, ec)
	}, nil
}

func evalCondition(program *vm.Program, ec *domain.ExecutionContext) (bool, error) {
	out, err := expr.Run(program, conditionEnv(ec))
	if err != nil {
		return false, fmt.Errorf("condition evaluation failed: %w", err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition returned %T, want bool", out)
	}
	return b, nil
}

func conditionEnv(ec *domain.ExecutionContext) map[string]any {
	last, _ := ec.LastUserMessage()
	metadata := ec.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	return map[string]any{
		"metadata":          metadata,
		"step_count":        ec.StepCount,
		"max_steps":         ec.MaxSteps,
		"tool_results":      len(ec.ToolResults),
		"memories":          len(ec.Memories),
		"messages":          len(ec.Messages),
		"last_user_message": last,
	}
}
