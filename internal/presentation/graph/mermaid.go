package graph

import (
	"fmt"
	"strings"
)

// Mermaid renders g as a Mermaid flowchart, coloring saga steps by overlay.
func Mermaid(g Graph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, n := range g.Nodes {
		opener, closer := "[", "]"
		switch n.Kind {
		case KindTerminal:
			opener, closer = "((", "))"
		case KindBranch:
			opener, closer = "{", "}"
		case KindLoop:
			opener, closer = "[/", "/]"
		case KindParallel, KindSaga:
			opener, closer = "[[", "]]"
		case KindSagaStep:
			opener, closer = "(", ")"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", n.ID, opener, escapeLabel(n.Label), closer)
	}

	for _, e := range g.Edges {
		arrow := "-->"
		if e.Dashed {
			arrow = "-.->"
		}
		if e.Label != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", escapeLabel(e.Label))
			if e.Dashed {
				arrow = fmt.Sprintf("-. \"%s\" .->", escapeLabel(e.Label))
			}
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", e.From, arrow, e.To)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Ledger phases\n")
		sb.WriteString("    classDef completed fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef compensated fill:#fff8e1,stroke:#f9a825,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffebee,stroke:#c62828,stroke-width:4px,color:#000;\n")
		for _, n := range g.Nodes {
			if class := overlay.class(n); class != "" {
				fmt.Fprintf(&sb, "    class %s %s;\n", n.ID, class)
			}
		}
	}
	return sb.String()
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
