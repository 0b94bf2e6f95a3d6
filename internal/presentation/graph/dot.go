package graph

import (
	"strconv"

	"github.com/awalterschulze/gographviz"
)

var dotShapes = map[Kind]string{
	KindStep:     "box",
	KindTerminal: "circle",
	KindBranch:   "diamond",
	KindLoop:     "parallelogram",
	KindParallel: "box3d",
	KindSaga:     "component",
	KindSagaStep: "box",
}

var dotColors = map[string]string{
	"completed":   "palegreen",
	"compensated": "khaki",
	"failed":      "salmon",
}

// DOT renders g in Graphviz syntax.
func DOT(name string, g Graph, overlay *Overlay) (string, error) {
	out := gographviz.NewGraph()
	if err := out.SetName(strconv.Quote(name)); err != nil {
		return "", err
	}
	if err := out.SetDir(true); err != nil {
		return "", err
	}
	if err := out.AddAttr(out.Name, "rankdir", "TB"); err != nil {
		return "", err
	}

	for _, n := range g.Nodes {
		attrs := map[string]string{
			"label": strconv.Quote(n.Label),
			"shape": dotShapes[n.Kind],
		}
		if n.Kind == KindSagaStep {
			attrs["style"] = "rounded"
		}
		if color, ok := dotColors[overlay.class(n)]; ok {
			attrs["style"] = strconv.Quote("rounded,filled")
			attrs["fillcolor"] = color
		}
		if err := out.AddNode(out.Name, n.ID, attrs); err != nil {
			return "", err
		}
	}

	for _, e := range g.Edges {
		attrs := map[string]string{}
		if e.Label != "" {
			attrs["label"] = strconv.Quote(e.Label)
		}
		if e.Dashed {
			attrs["style"] = "dashed"
		}
		if err := out.AddEdge(e.From, e.To, true, attrs); err != nil {
			return "", err
		}
	}
	return out.String(), nil
}
