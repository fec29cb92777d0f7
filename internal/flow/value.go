package flow

import (
	"fmt"

	"github.com/unbound-force/testsmell/internal/graph"
	"github.com/unbound-force/testsmell/internal/il"
)

// ValueID indexes a Value inside its ValueGraph. ID 0 is the synthetic
// super-root.
type ValueID int32

const superRoot ValueID = 0

// Value is one datum flowing through a single instruction path.
type Value struct {
	id    ValueID
	owner *ValueGraph

	// Producer pushed the value; nil only for the super-root.
	Producer *il.Instruction

	// Consumer popped the value; nil if it was never consumed or was
	// passed to an out parameter.
	Consumer *il.Instruction

	parents  []ValueID
	receiver bool
}

// ID returns the value's index within its graph.
func (v *Value) ID() ValueID {
	return v.id
}

// Graph returns the ValueGraph that owns the value.
func (v *Value) Graph() *ValueGraph {
	return v.owner
}

// Parents returns the values consumed to produce v, in stack order.
func (v *Value) Parents() []*Value {
	out := make([]*Value, len(v.parents))
	for i, p := range v.parents {
		out[i] = v.owner.Value(p)
	}
	return out
}

// IsSource reports whether v has no parents, i.e. it originates at its
// producer (a constant, an unwritten slot, a field read without inputs).
func (v *Value) IsSource() bool {
	return len(v.parents) == 0
}

// IsReceiver reports whether v was popped as the implicit receiver of an
// instance call.
func (v *Value) IsReceiver() bool {
	return v.receiver
}

func (v *Value) String() string {
	if v.Producer == nil {
		return fmt.Sprintf("v%d <root>", v.id)
	}
	return fmt.Sprintf("v%d <%s>", v.id, v.Producer)
}

// ValueGraph is the provenance graph of one instruction path. Edges lead
// from a value to its parents, so walking from the super-root moves from
// path-terminal values back toward their sources.
type ValueGraph struct {
	path   []*il.Instruction
	onPath map[*il.Instruction]bool
	values []Value
	graph  *graph.Graph[ValueID]
}

// Path returns the instruction path the graph was replayed from.
func (vg *ValueGraph) Path() []*il.Instruction {
	return vg.path
}

// Graph returns the underlying graph over value IDs.
func (vg *ValueGraph) Graph() *graph.Graph[ValueID] {
	return vg.graph
}

// Root returns the synthetic super-root.
func (vg *ValueGraph) Root() *Value {
	return &vg.values[superRoot]
}

// Value returns the value with the given ID, or nil.
func (vg *ValueGraph) Value(id ValueID) *Value {
	if id < 0 || int(id) >= len(vg.values) {
		return nil
	}
	return &vg.values[id]
}

// Values returns every value except the super-root, in creation order.
func (vg *ValueGraph) Values() []*Value {
	out := make([]*Value, 0, len(vg.values)-1)
	for i := 1; i < len(vg.values); i++ {
		out = append(out, &vg.values[i])
	}
	return out
}

// Contains reports whether ins lies on the graph's path.
func (vg *ValueGraph) Contains(ins *il.Instruction) bool {
	return vg.onPath[ins]
}
