// Package flow builds control-flow and data-flow views of a method body.
//
// InstructionGraph is the control-flow graph over instructions and
// enumerates every entry-to-return instruction path. MethodValueTracker
// replays each path against an abstract operand stack and records, per
// path, where every value came from and which instruction consumed it.
package flow

import (
	"errors"
	"fmt"

	"github.com/unbound-force/testsmell/internal/graph"
	"github.com/unbound-force/testsmell/internal/il"
)

// Sentinel errors for flow analysis.
var (
	// ErrUnsupportedInstruction is returned when an instruction's flow
	// control category cannot be classified. Analysis stops rather than
	// simulating a wrong control-flow graph.
	ErrUnsupportedInstruction = errors.New("unsupported instruction")

	// ErrInvalidArgument is returned when a required method, graph or
	// instruction is missing.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStackImbalance reports a replay that popped from an empty stack
	// or ended a path with values still on the stack. It indicates a bug
	// or an inconsistent listing, never a property of the test.
	ErrStackImbalance = errors.New("operand stack imbalance")
)

// InstructionGraph is the control-flow graph of one method body, rooted
// at its first instruction.
type InstructionGraph struct {
	*graph.Graph[*il.Instruction]
	method *il.Method
}

// NewInstructionGraph builds the control-flow graph of m.
func NewInstructionGraph(m *il.Method) (*InstructionGraph, error) {
	if m == nil {
		return nil, fmt.Errorf("instruction graph: nil method: %w", ErrInvalidArgument)
	}
	entry := m.Entry()
	if entry == nil {
		return nil, fmt.Errorf("instruction graph for %s: empty body: %w",
			m.FullName(), ErrInvalidArgument)
	}

	g, err := graph.BuildE(entry, successors)
	if err != nil {
		return nil, fmt.Errorf("instruction graph for %s: %w", m.FullName(), err)
	}
	return &InstructionGraph{Graph: g, method: m}, nil
}

// Method returns the method the graph was built from.
func (g *InstructionGraph) Method() *il.Method {
	return g.method
}

// successors dispatches on the flow-control category of ins.
func successors(ins *il.Instruction) ([]*il.Instruction, error) {
	switch ins.OpCode.Flow {
	case il.FlowNext, il.FlowCall, il.FlowMeta, il.FlowBreak:
		return nonNil(ins.Next), nil
	case il.FlowReturn, il.FlowThrow:
		return nil, nil
	case il.FlowBranch:
		return ins.BranchTargets(), nil
	case il.FlowCondBranch:
		return append(nonNil(ins.Next), ins.BranchTargets()...), nil
	default:
		return nil, fmt.Errorf("%s (flow %s): %w", ins, ins.OpCode.Flow, ErrUnsupportedInstruction)
	}
}

func nonNil(ins *il.Instruction) []*il.Instruction {
	if ins == nil {
		return nil
	}
	return []*il.Instruction{ins}
}

// Returns lists the reachable return instructions in discovery order.
func (g *InstructionGraph) Returns() []*il.Instruction {
	var rets []*il.Instruction
	for _, ins := range g.Nodes() {
		if ins.OpCode.Flow == il.FlowReturn {
			rets = append(rets, ins)
		}
	}
	return rets
}

// FindInstructionPaths returns every path from the entry instruction to a
// reachable return instruction. Paths ending in throw are not included.
func (g *InstructionGraph) FindInstructionPaths() ([][]*il.Instruction, error) {
	var paths [][]*il.Instruction
	for _, ret := range g.Returns() {
		found, err := g.FindPaths(g.Root(), ret)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	return paths, nil
}

// ContainsLoop reports whether path visits any instruction twice.
func ContainsLoop(path []*il.Instruction) bool {
	seen := make(map[*il.Instruction]bool, len(path))
	for _, ins := range path {
		if seen[ins] {
			return true
		}
		seen[ins] = true
	}
	return false
}
