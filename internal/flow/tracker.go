package flow

import (
	"fmt"

	"github.com/unbound-force/testsmell/internal/graph"
	"github.com/unbound-force/testsmell/internal/il"
)

// MethodValueTracker holds one ValueGraph per entry-to-return path of a
// method and answers provenance queries over them. All graphs are built
// by NewMethodValueTracker; the tracker is read-only afterwards.
type MethodValueTracker struct {
	method *il.Method
	cfg    *InstructionGraph
	graphs []*ValueGraph
}

// NewMethodValueTracker builds the control-flow graph of m and replays
// every instruction path.
func NewMethodValueTracker(m *il.Method) (*MethodValueTracker, error) {
	if m == nil {
		return nil, fmt.Errorf("value tracker: nil method: %w", ErrInvalidArgument)
	}
	cfg, err := NewInstructionGraph(m)
	if err != nil {
		return nil, err
	}
	return NewMethodValueTrackerFromGraph(cfg)
}

// NewMethodValueTrackerFromGraph replays the paths of an existing
// control-flow graph.
func NewMethodValueTrackerFromGraph(cfg *InstructionGraph) (*MethodValueTracker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("value tracker: nil instruction graph: %w", ErrInvalidArgument)
	}
	paths, err := cfg.FindInstructionPaths()
	if err != nil {
		return nil, err
	}

	t := &MethodValueTracker{method: cfg.Method(), cfg: cfg}
	for i, path := range paths {
		vg, err := replay(t.method, path)
		if err != nil {
			return nil, fmt.Errorf("%s path %d: %w", t.method.FullName(), i, err)
		}
		t.graphs = append(t.graphs, vg)
	}
	return t, nil
}

// Method returns the tracked method.
func (t *MethodValueTracker) Method() *il.Method {
	return t.method
}

// InstructionGraph returns the control-flow graph the paths came from.
func (t *MethodValueTracker) InstructionGraph() *InstructionGraph {
	return t.cfg
}

// ValueGraphs returns one provenance graph per instruction path, in path
// order.
func (t *MethodValueTracker) ValueGraphs() []*ValueGraph {
	return t.graphs
}

// GetConsumedValues returns the values in vg popped by ins, first argument
// first. The implicit receiver of an instance call is left out. The
// result is empty when ins is not on vg's path.
func (t *MethodValueTracker) GetConsumedValues(vg *ValueGraph, ins *il.Instruction) ([]*Value, error) {
	if vg == nil {
		return nil, fmt.Errorf("consumed values: nil value graph: %w", ErrInvalidArgument)
	}
	if ins == nil {
		return nil, fmt.Errorf("consumed values: nil instruction: %w", ErrInvalidArgument)
	}
	if !vg.Contains(ins) {
		return nil, nil
	}

	var out []*Value
	for _, v := range vg.Values() {
		if v.Consumer == ins && !v.receiver {
			out = append(out, v)
		}
	}
	return out, nil
}

// FindSourceValues returns the ultimate sources of v: every value
// reachable through parent links that has no parents itself, in
// depth-first order. It returns nil for values the tracker does not own.
func (t *MethodValueTracker) FindSourceValues(v *Value) []*Value {
	if v == nil || !t.owns(v.owner) {
		return nil
	}
	var sources []*Value
	for id := range v.owner.graph.WalkFrom(v.id) {
		if id == superRoot {
			continue
		}
		if sv := v.owner.Value(id); sv.IsSource() {
			sources = append(sources, sv)
		}
	}
	return sources
}

// Provenance returns v followed by every value it was derived from, in
// depth-first order. It returns nil for values the tracker does not own.
func (t *MethodValueTracker) Provenance(v *Value) []*Value {
	if v == nil || !t.owns(v.owner) {
		return nil
	}
	var out []*Value
	for id := range v.owner.graph.WalkFrom(v.id) {
		if id != superRoot {
			out = append(out, v.owner.Value(id))
		}
	}
	return out
}

func (t *MethodValueTracker) owns(vg *ValueGraph) bool {
	for _, g := range t.graphs {
		if g == vg {
			return true
		}
	}
	return false
}

// replayer is the abstract machine state for one path. Slots hold value
// IDs; superRoot doubles as "never written".
type replayer struct {
	method *il.Method
	values []Value
	stack  []ValueID
	locals []ValueID
	args   []ValueID
}

// replay runs path against an empty operand stack and freezes the result
// into a ValueGraph.
func replay(m *il.Method, path []*il.Instruction) (*ValueGraph, error) {
	r := &replayer{
		method: m,
		values: []Value{{id: superRoot}},
		locals: make([]ValueID, m.Locals),
		args:   make([]ValueID, m.ArgSlots()),
	}
	for _, ins := range path {
		if err := r.step(ins); err != nil {
			return nil, fmt.Errorf("%s: %w", ins, err)
		}
	}
	if len(r.stack) != 0 {
		return nil, fmt.Errorf("%d value(s) left on the stack at path end: %w",
			len(r.stack), ErrStackImbalance)
	}
	return r.freeze(path), nil
}

func (r *replayer) newValue(producer *il.Instruction, parents []ValueID) ValueID {
	id := ValueID(len(r.values))
	r.values = append(r.values, Value{id: id, Producer: producer, parents: parents})
	return id
}

func (r *replayer) step(ins *il.Instruction) error {
	callee, _ := ins.Method()
	if ins.OpCode.Flow == il.FlowCall && callee == nil {
		return fmt.Errorf("call without a method operand: %w", ErrInvalidArgument)
	}
	pop, push := r.stackEffect(ins, callee)

	if len(r.stack) < pop {
		return fmt.Errorf("pops %d with %d on the stack: %w", pop, len(r.stack), ErrStackImbalance)
	}
	// inputs[0] is the deepest operand, i.e. the first argument.
	inputs := make([]ValueID, pop)
	copy(inputs, r.stack[len(r.stack)-pop:])
	r.stack = r.stack[:len(r.stack)-pop]

	receiver := 0
	if callee != nil && callee.HasThis && !ins.OpCode.IsNewObj() {
		receiver = 1
	}

	var consumed []ValueID
	for i, id := range inputs {
		if callee != nil && i >= receiver && callee.Parameters[i-receiver].Kind == il.ParamOut {
			continue
		}
		r.values[id].Consumer = ins
		if i < receiver {
			r.values[id].receiver = true
		}
		consumed = append(consumed, id)
	}

	if ins.OpCode.StoresSlot() {
		if err := r.store(ins, inputs[0]); err != nil {
			return err
		}
	}

	for range push {
		var parents []ValueID
		if ins.OpCode.LoadsSlot() {
			cur, err := r.load(ins)
			if err != nil {
				return err
			}
			if cur != superRoot {
				parents = []ValueID{cur}
			}
		} else {
			parents = append([]ValueID(nil), consumed...)
		}
		r.stack = append(r.stack, r.newValue(ins, parents))
	}

	if callee != nil {
		r.writeBack(ins, callee, inputs[receiver:], consumed)
	}
	return nil
}

// stackEffect resolves the pop and push counts of ins.
func (r *replayer) stackEffect(ins *il.Instruction, callee *il.MethodRef) (pop, push int) {
	pop, push = ins.OpCode.Pop, ins.OpCode.Push
	if callee != nil {
		if pop == il.VarStack {
			pop = len(callee.Parameters)
			if callee.HasThis && !ins.OpCode.IsNewObj() {
				pop++
			}
		}
		if push == il.VarStack {
			push = 0
			if ins.OpCode.IsNewObj() || !callee.ReturnsVoid() {
				push = 1
			}
		}
	}
	if ins.OpCode == il.Ret {
		pop = 0
		if !r.method.ReturnsVoid() {
			pop = 1
		}
	}
	return max(pop, 0), max(push, 0)
}

// writeBack models ref and out arguments: the callee produces a new value
// from its non-out inputs and stores it into the slot whose address was
// passed, replacing whatever the slot held.
func (r *replayer) writeBack(ins *il.Instruction, callee *il.MethodRef, args, consumed []ValueID) {
	for i, p := range callee.Parameters {
		if !p.ByRef() {
			continue
		}
		id := r.newValue(ins, append([]ValueID(nil), consumed...))
		addr := r.values[args[i]].Producer
		if addr == nil || !addr.OpCode.LoadsSlot() {
			continue
		}
		idx, ok := addr.SlotIndex()
		if !ok {
			continue
		}
		slots := r.slotsFor(addr.OpCode.Slot)
		if idx < len(slots) {
			slots[idx] = id
		}
	}
}

func (r *replayer) slotsFor(access il.SlotAccess) []ValueID {
	if access == il.SlotLoadArg || access == il.SlotStoreArg {
		return r.args
	}
	return r.locals
}

func (r *replayer) slotIndex(ins *il.Instruction) (int, []ValueID, error) {
	idx, ok := ins.SlotIndex()
	slots := r.slotsFor(ins.OpCode.Slot)
	if !ok || idx < 0 || idx >= len(slots) {
		return 0, nil, fmt.Errorf("slot %d out of range (%d slots): %w",
			idx, len(slots), ErrInvalidArgument)
	}
	return idx, slots, nil
}

func (r *replayer) load(ins *il.Instruction) (ValueID, error) {
	idx, slots, err := r.slotIndex(ins)
	if err != nil {
		return superRoot, err
	}
	return slots[idx], nil
}

func (r *replayer) store(ins *il.Instruction, id ValueID) error {
	idx, slots, err := r.slotIndex(ins)
	if err != nil {
		return err
	}
	slots[idx] = id
	return nil
}

// freeze attaches path-terminal values to the super-root and builds the
// provenance graph.
func (r *replayer) freeze(path []*il.Instruction) *ValueGraph {
	isParent := make([]bool, len(r.values))
	for i := 1; i < len(r.values); i++ {
		for _, p := range r.values[i].parents {
			isParent[p] = true
		}
	}
	var terminal []ValueID
	for i := 1; i < len(r.values); i++ {
		if !isParent[i] {
			terminal = append(terminal, ValueID(i))
		}
	}
	r.values[superRoot].parents = terminal

	vg := &ValueGraph{
		path:   path,
		onPath: make(map[*il.Instruction]bool, len(path)),
		values: r.values,
	}
	for _, ins := range path {
		vg.onPath[ins] = true
	}
	for i := range vg.values {
		vg.values[i].owner = vg
	}
	vg.graph = graph.Build(superRoot, func(id ValueID) []ValueID {
		return vg.values[id].parents
	})
	return vg
}
