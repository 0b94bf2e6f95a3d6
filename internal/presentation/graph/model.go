// Package graph renders orchestrator pipelines and sagas as Mermaid or
// Graphviz DOT diagrams.
package graph

import (
	"fmt"

	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/orchestrator"
	"github.com/ravituringworks/agency/pkg/saga"
)

// Kind selects the node shape.
type Kind int

const (
	KindStep Kind = iota
	KindTerminal
	KindBranch
	KindLoop
	KindParallel
	KindSaga
	KindSagaStep
)

// Node is a rendered step.
type Node struct {
	ID    string
	Label string
	Kind  Kind
}

// Edge connects two nodes. Dashed edges are loops and compensations.
type Edge struct {
	From   string
	To     string
	Label  string
	Dashed bool
}

// Graph is a renderer-independent diagram.
type Graph struct {
	Nodes []Node
	Edges []Edge
}

func (g *Graph) node(id, label string, kind Kind) string {
	g.Nodes = append(g.Nodes, Node{ID: id, Label: label, Kind: kind})
	return id
}

func (g *Graph) edge(from, to, label string, dashed bool) {
	g.Edges = append(g.Edges, Edge{From: from, To: to, Label: label, Dashed: dashed})
}

// FromSteps lays out an orchestrator pipeline: start, the steps of a round
// in order, then end. Composite steps expand into their children.
func FromSteps(steps []orchestrator.Step) Graph {
	var g Graph
	prev := g.node("start", "start", KindTerminal)
	for i, s := range steps {
		id := g.addStep(fmt.Sprintf("step_%d", i), s)
		g.edge(prev, id, "", false)
		prev = id
	}
	g.edge(prev, g.node("end", "end", KindTerminal), "", false)
	return g
}

// FromSaga lays out a saga: steps run forward, compensations walk back.
func FromSaga(c *saga.Coordinator) Graph {
	var g Graph
	start := g.node("start", c.Name(), KindSaga)
	g.addSagaSteps(start, "saga", c.Steps())
	return g
}

func (g *Graph) addStep(id string, s orchestrator.Step) string {
	switch step := s.(type) {
	case *orchestrator.BranchStep:
		g.node(id, step.Name(), KindBranch)
		labels := []string{"then", "else"}
		for i, child := range step.Children() {
			g.edge(id, g.addStep(fmt.Sprintf("%s_%d", id, i), child), labels[i], false)
		}
	case *orchestrator.LoopStep, *orchestrator.ForEachStep:
		g.node(id, s.Name(), KindLoop)
		body := s.(interface{ Children() []orchestrator.Step }).Children()[0]
		bodyID := g.addStep(id+"_0", body)
		g.edge(id, bodyID, "body", false)
		g.edge(bodyID, id, "repeat", true)
	case *orchestrator.ParallelStep:
		g.node(id, step.Name(), KindParallel)
		for i, child := range step.Children() {
			g.edge(id, g.addStep(fmt.Sprintf("%s_%d", id, i), child), "", false)
		}
	case *saga.StepAdapter:
		g.node(id, step.Name(), KindSaga)
		g.addSagaSteps(id, id, step.Coordinator().Steps())
	default:
		g.node(id, s.Name(), KindStep)
	}
	return id
}

func (g *Graph) addSagaSteps(parent, prefix string, steps []saga.TransactionStep) {
	prev := parent
	ids := make([]string, len(steps))
	for i, ts := range steps {
		ids[i] = g.node(fmt.Sprintf("%s_tx_%d", prefix, i), ts.Name, KindSagaStep)
		g.edge(prev, ids[i], "", false)
		prev = ids[i]
	}
	for i := len(ids) - 1; i > 0; i-- {
		g.edge(ids[i], ids[i-1], "compensate", true)
	}
}

// Overlay colors saga steps by the phase recorded in a ledger.
type Overlay struct {
	Phases map[string]domain.StepPhase
}

// LedgerOverlay maps the ledger's step names to their phases.
func LedgerOverlay(ledger *domain.TransactionLedger) *Overlay {
	o := &Overlay{Phases: make(map[string]domain.StepPhase)}
	for _, ref := range ledger.Steps {
		o.Phases[ref.Name] = ledger.State(ref.ID).Phase
	}
	return o
}

func (o *Overlay) class(n Node) string {
	if o == nil || n.Kind != KindSagaStep {
		return ""
	}
	switch o.Phases[n.Label] {
	case domain.PhaseCompleted:
		return "completed"
	case domain.PhaseCompensated:
		return "compensated"
	case domain.PhaseFailed, domain.PhaseCompensationFailed:
		return "failed"
	}
	return ""
}
