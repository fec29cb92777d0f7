package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/unbound-force/testsmell/internal/flow"
	"github.com/unbound-force/testsmell/internal/il"
	"github.com/unbound-force/testsmell/internal/loader"
)

var (
	pathHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	provenanceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// pathsParams holds the parsed flags for the paths command.
type pathsParams struct {
	listing string
	method  string
	stdout  io.Writer
}

// runPaths is the extracted, testable body of the paths command. It
// prints every instruction path of one method and, for each call on the
// path, where the call's arguments came from.
func runPaths(p pathsParams) error {
	if p.method == "" {
		return fmt.Errorf("--method is required")
	}
	asm, err := loader.Load(p.listing)
	if err != nil {
		return err
	}
	found := asm.Lookup(p.method)
	switch len(found) {
	case 0:
		return fmt.Errorf("method %q not found in %s", p.method, asm.Name)
	case 1:
	default:
		return fmt.Errorf("method %q is ambiguous in %s: %d matches", p.method, asm.Name, len(found))
	}
	m := found[0]

	tracker, err := flow.NewMethodValueTracker(m)
	if err != nil {
		return fmt.Errorf("tracking %s: %w", m.FullName(), err)
	}
	logger.Debug("replayed paths", "method", m.FullName(), "paths", len(tracker.ValueGraphs()))

	fmt.Fprintln(p.stdout, pathHeaderStyle.Render(m.String()))
	graphs := tracker.ValueGraphs()
	for i, vg := range graphs {
		if err := writePath(p.stdout, tracker, vg, i+1, len(graphs)); err != nil {
			return err
		}
	}
	return nil
}

func writePath(w io.Writer, tracker *flow.MethodValueTracker, vg *flow.ValueGraph, n, total int) error {
	path := vg.Path()
	labels := make([]string, len(path))
	for i, ins := range path {
		labels[i] = ins.Label()
	}
	header := fmt.Sprintf("path %d/%d: %s", n, total, strings.Join(labels, " -> "))
	if flow.ContainsLoop(path) {
		header += " (loop)"
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, pathHeaderStyle.Render(header))

	seen := make(map[*il.Instruction]bool)
	for _, ins := range path {
		if seen[ins] {
			continue
		}
		seen[ins] = true
		if _, ok := ins.Method(); !ok {
			continue
		}
		fmt.Fprintf(w, "  %s\n", ins)
		args, err := tracker.GetConsumedValues(vg, ins)
		if err != nil {
			return err
		}
		for i, v := range args {
			var chain []string
			for _, src := range tracker.Provenance(v) {
				chain = append(chain, src.String())
			}
			fmt.Fprintf(w, "    arg %d: %s\n", i, provenanceStyle.Render(strings.Join(chain, " <- ")))
		}
	}
	return nil
}

func newPathsCmd() *cobra.Command {
	var method string

	cmd := &cobra.Command{
		Use:   "paths [listing.yaml]",
		Short: "Show instruction paths and argument provenance of a method",
		Long: `Print every entry-to-exit instruction path of one method in the
listing. For each call on a path, the arguments it consumes are traced
back to the instructions that produced them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPaths(pathsParams{
				listing: args[0],
				method:  method,
				stdout:  os.Stdout,
			})
		},
	}

	cmd.Flags().StringVarP(&method, "method", "m", "",
		"method to trace, by name or Type::Method")

	return cmd
}
