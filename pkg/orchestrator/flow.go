package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Jeffail/gabs/v2"
	"github.com/ravituringworks/agency/pkg/domain"
)

// MaxLoopIterations bounds a Loop step regardless of its condition.
const MaxLoopIterations = 1000

// LoopKind selects how a Loop step evaluates its condition.
type LoopKind int

const (
	// DoWhile runs the body, then repeats while the condition holds.
	DoWhile LoopKind = iota
	// DoUntil runs the body, then repeats until the condition holds.
	DoUntil
)

func (k LoopKind) String() string {
	if k == DoUntil {
		return "do_until"
	}
	return "do_while"
}

// BranchStep runs Then when the condition holds and Else (if any) otherwise.
type BranchStep struct {
	name string
	cond Condition
	then Step
	els  Step
}

// Branch builds a conditional step. els may be nil.
func Branch(name string, cond Condition, then, els Step) *BranchStep {
	return &BranchStep{name: name, cond: cond, then: then, els: els}
}

func (s *BranchStep) Name() string { return s.name }

// Children returns the nested steps, for rendering.
func (s *BranchStep) Children() []Step {
	if s.els == nil {
		return []Step{s.then}
	}
	return []Step{s.then, s.els}
}

func (s *BranchStep) Execute(ctx context.Context, ec *domain.ExecutionContext) (domain.StepDecision, error) {
	ok, err := s.cond(ctx, ec)
	if err != nil {
		return domain.StepDecision{}, fmt.Errorf("branch %q: %w", s.name, err)
	}
	if ok {
		return s.then.Execute(ctx, ec)
	}
	if s.els != nil {
		return s.els.Execute(ctx, ec)
	}
	return domain.Continue(), nil
}

// LoopStep repeats a body step. The body runs at least once.
type LoopStep struct {
	name string
	body Step
	cond Condition
	kind LoopKind
}

// Loop builds a repeating step capped at MaxLoopIterations.
func Loop(name string, body Step, cond Condition, kind LoopKind) *LoopStep {
	return &LoopStep{name: name, body: body, cond: cond, kind: kind}
}

func (s *LoopStep) Name() string { return s.name }

// Children returns the loop body, for rendering.
func (s *LoopStep) Children() []Step { return []Step{s.body} }

func (s *LoopStep) Execute(ctx context.Context, ec *domain.ExecutionContext) (domain.StepDecision, error) {
	for i := 0; i < MaxLoopIterations; i++ {
		decision, err := s.body.Execute(ctx, ec)
		if err != nil {
			return domain.StepDecision{}, err
		}
		if !decision.IsContinue() {
			return decision, nil
		}

		ok, err := s.cond(ctx, ec)
		if err != nil {
			return domain.StepDecision{}, fmt.Errorf("loop %q: %w", s.name, err)
		}
		if (s.kind == DoWhile && !ok) || (s.kind == DoUntil && ok) {
			return domain.Continue(), nil
		}
	}
	return domain.Continue(), nil
}

// ForEachStep runs a body step once per item, exposing the item and its
// index through metadata. The keys are removed once every item is processed.
type ForEachStep struct {
	name  string
	body  Step
	items ItemsFunc
}

// ForEach builds an iterating step.
func ForEach(name string, items ItemsFunc, body Step) *ForEachStep {
	return &ForEachStep{name: name, body: body, items: items}
}

func (s *ForEachStep) Name() string { return s.name }

// Children returns the loop body, for rendering.
func (s *ForEachStep) Children() []Step { return []Step{s.body} }

func (s *ForEachStep) Execute(ctx context.Context, ec *domain.ExecutionContext) (domain.StepDecision, error) {
	items, err := s.items(ctx, ec)
	if err != nil {
		return domain.StepDecision{}, fmt.Errorf("foreach %q: %w", s.name, err)
	}
	for i, item := range items {
		ec.SetMeta(domain.MetaForEachItem, item)
		ec.SetMeta(domain.MetaForEachIndex, strconv.Itoa(i))

		decision, err := s.body.Execute(ctx, ec)
		if err != nil {
			return domain.StepDecision{}, err
		}
		if !decision.IsContinue() {
			return decision, nil
		}
	}
	delete(ec.Metadata, domain.MetaForEachItem)
	delete(ec.Metadata, domain.MetaForEachIndex)
	return domain.Continue(), nil
}

// MapFunc transforms the previous mapping result into a new one.
type MapFunc func(ec *domain.ExecutionContext, in *gabs.Container) (*gabs.Container, error)

// MapStep threads a JSON document through metadata["last_result"].
// A missing or unparsable previous result is treated as an empty object.
type MapStep struct {
	name string
	fn   MapFunc
}

// Map builds a data mapping step.
func Map(name string, fn MapFunc) *MapStep {
	return &MapStep{name: name, fn: fn}
}

func (s *MapStep) Name() string { return s.name }

func (s *MapStep) Execute(_ context.Context, ec *domain.ExecutionContext) (domain.StepDecision, error) {
	in, err := gabs.ParseJSON([]byte(ec.Metadata[domain.MetaLastResult]))
	if err != nil {
		in = gabs.New()
	}
	out, err := s.fn(ec, in)
	if err != nil {
		return domain.StepDecision{}, fmt.Errorf("map %q: %w", s.name, err)
	}
	if out == nil {
		out = gabs.New()
	}
	encoded, err := json.Marshal(out.Data())
	if err != nil {
		return domain.StepDecision{}, fmt.Errorf("map %q: encode result: %w", s.name, err)
	}
	ec.SetMeta(domain.MetaLastResult, string(encoded))
	return domain.Continue(), nil
}

// ParallelStep groups steps that are independent of each other. Each one
// runs against its own copy of the context, one after another; the first
// decision other than Continue is returned and context changes are discarded.
type ParallelStep struct {
	name  string
	steps []Step
}

// Parallel builds a group of independent steps.
func Parallel(name string, steps ...Step) *ParallelStep {
	return &ParallelStep{name: name, steps: steps}
}

func (s *ParallelStep) Name() string { return s.name }

// Children returns the grouped steps, for rendering.
func (s *ParallelStep) Children() []Step { return append([]Step(nil), s.steps...) }

func (s *ParallelStep) Execute(ctx context.Context, ec *domain.ExecutionContext) (domain.StepDecision, error) {
	for _, step := range s.steps {
		decision, err := step.Execute(ctx, ec.Clone())
		if err != nil {
			return domain.StepDecision{}, fmt.Errorf("parallel %q: step %q: %w", s.name, step.Name(), err)
		}
		if !decision.IsContinue() {
			return decision, nil
		}
	}
	return domain.Continue(), nil
}
