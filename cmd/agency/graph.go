package main

import (
	"fmt"

	"github.com/ravituringworks/agency/internal/presentation/graph"
	"github.com/ravituringworks/agency/pkg/orchestrator"
	"github.com/ravituringworks/agency/pkg/saga"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the step pipeline as a diagram",
	Long: `Prints the default orchestrator pipeline, or with --saga the demo booking saga,
as a Mermaid flowchart or a Graphviz DOT digraph.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		withSaga, _ := cmd.Flags().GetBool("saga")

		name := "pipeline"
		g := graph.FromSteps(orchestrator.DefaultSteps())
		if withSaga {
			name = "booking"
			g = graph.FromSaga(saga.NewCoordinator(name, bookingSteps(bookingFaults{})))
		}

		out := cmd.OutOrStdout()
		switch format {
		case "mermaid":
			fmt.Fprint(out, graph.Mermaid(g, nil))
		case "dot":
			dot, err := graph.DOT(name, g, nil)
			if err != nil {
				return err
			}
			fmt.Fprint(out, dot)
		default:
			return fmt.Errorf("unknown format %q: supported mermaid, dot", format)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)

	graphCmd.Flags().StringP("format", "f", "mermaid", "Output format: mermaid or dot")
	graphCmd.Flags().Bool("saga", false, "Render the demo booking saga instead of the pipeline")
}
