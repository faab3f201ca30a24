package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/flowsim/flowsim/sim/config"
	"github.com/flowsim/flowsim/sim/network"
)

var validateModelPath string

// validateCmd checks a model file and prints its topology
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a model file and print its topology",
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateModel(cmd.OutOrStdout(), validateModelPath)
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateModelPath, "model", "", "Path to the YAML model file")
	_ = validateCmd.MarkFlagRequired("model")
}

func validateModel(w io.Writer, path string) error {
	spec, err := config.LoadModelSpec(path)
	if err != nil {
		return err
	}
	m, err := config.Build(spec)
	if err != nil {
		return fmt.Errorf("invalid model %s:\n%w", path, err)
	}
	writeTopology(w, spec.Name, m)
	fmt.Fprintln(w, "ok")
	return nil
}

// writeTopology prints every node with its capability and edges in
// connection order.
func writeTopology(w io.Writer, name string, m *network.Model) {
	nodes, edges := m.Nodes(), m.Edges()
	fmt.Fprintf(w, "model %q: %d nodes, %d edges\n", name, len(nodes), len(edges))
	for _, n := range nodes {
		fmt.Fprintf(w, "  %s %s %s\n", n.Role(), n.ID(), n.Capability())
		for _, e := range n.InEdges() {
			fmt.Fprintf(w, "    in:  %s <- %s\n", e.ID(), e.Source().ID())
		}
		for _, e := range n.OutEdges() {
			fmt.Fprintf(w, "    out: %s -> %s (capacity %d)\n", e.ID(), e.Destination().ID(), e.Capacity())
		}
	}
}
