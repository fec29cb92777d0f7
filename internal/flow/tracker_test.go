package flow_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/unbound-force/testsmell/internal/flow"
	"github.com/unbound-force/testsmell/internal/il"
)

func newTracker(t *testing.T, m *il.Method) *flow.MethodValueTracker {
	t.Helper()
	tr, err := flow.NewMethodValueTracker(m)
	if err != nil {
		t.Fatalf("NewMethodValueTracker: %v", err)
	}
	return tr
}

// onlyGraph returns the single value graph of a straight-line method.
func onlyGraph(t *testing.T, tr *flow.MethodValueTracker) *flow.ValueGraph {
	t.Helper()
	graphs := tr.ValueGraphs()
	if len(graphs) != 1 {
		t.Fatalf("got %d value graphs, want 1", len(graphs))
	}
	return graphs[0]
}

func producers(values []*flow.Value) []*il.Instruction {
	out := make([]*il.Instruction, len(values))
	for i, v := range values {
		out[i] = v.Producer
	}
	return out
}

func TestTracker_NilMethod(t *testing.T) {
	if _, err := flow.NewMethodValueTracker(nil); !errors.Is(err, flow.ErrInvalidArgument) {
		t.Errorf("error = %v, want ErrInvalidArgument", err)
	}
	if _, err := flow.NewMethodValueTrackerFromGraph(nil); !errors.Is(err, flow.ErrInvalidArgument) {
		t.Errorf("error = %v, want ErrInvalidArgument", err)
	}
}

func TestTracker_OneGraphPerPath(t *testing.T) {
	m := newMethod(t, "void Calc::Maybe(bool)", 0, ifBranch)
	tr := newTracker(t, m)

	if len(tr.ValueGraphs()) != 2 {
		t.Fatalf("got %d value graphs, want 2", len(tr.ValueGraphs()))
	}
	call := at(t, m, 0x04)
	onPath := 0
	for _, vg := range tr.ValueGraphs() {
		if vg.Contains(call) {
			onPath++
		}
	}
	if onPath != 1 {
		t.Errorf("call lies on %d paths, want 1", onPath)
	}
}

func TestGetConsumedValues_ConstantArgument(t *testing.T) {
	m := newMethod(t, "void Tests::UsesConstant()", 0, `
		IL_0000: ldc.i4.s 42
		IL_0002: call void Sink::Take(int32)
		IL_0007: ret
	`)
	tr := newTracker(t, m)
	vg := onlyGraph(t, tr)

	consumed, err := tr.GetConsumedValues(vg, at(t, m, 0x02))
	if err != nil {
		t.Fatal(err)
	}
	if len(consumed) != 1 {
		t.Fatalf("got %d consumed values, want 1", len(consumed))
	}
	if consumed[0].Producer != at(t, m, 0x00) {
		t.Errorf("producer = %s, want the constant load", consumed[0].Producer)
	}
	if !consumed[0].IsSource() {
		t.Error("a constant should be a source value")
	}
}

func TestGetConsumedValues_ExcludesReceiver(t *testing.T) {
	m := newMethod(t, "instance void Tests::PushesFive()", 0, `
		IL_0000: ldarg.0
		IL_0001: ldc.i4.5
		IL_0002: callvirt instance void Tests::Push(int32)
		IL_0007: ret
	`)
	tr := newTracker(t, m)
	vg := onlyGraph(t, tr)
	call := at(t, m, 0x02)

	consumed, err := tr.GetConsumedValues(vg, call)
	if err != nil {
		t.Fatal(err)
	}
	got := producers(consumed)
	want := []*il.Instruction{at(t, m, 0x01)}
	if !slices.Equal(got, want) {
		t.Errorf("consumed producers = %v, want %v", got, want)
	}

	// The receiver is still consumed, just not reported.
	receivers := 0
	for _, v := range vg.Values() {
		if v.Consumer == call && v.IsReceiver() {
			receivers++
		}
	}
	if receivers != 1 {
		t.Errorf("found %d receiver values, want 1", receivers)
	}
}

func TestGetConsumedValues_ArgumentOrder(t *testing.T) {
	m := newMethod(t, "void Tests::Compares()", 0, `
		IL_0000: ldc.i4.1
		IL_0001: ldc.i4.2
		IL_0002: call void Assert::AreEqual(int32, int32)
		IL_0007: ret
	`)
	tr := newTracker(t, m)
	vg := onlyGraph(t, tr)

	consumed, err := tr.GetConsumedValues(vg, at(t, m, 0x02))
	if err != nil {
		t.Fatal(err)
	}
	got := producers(consumed)
	want := []*il.Instruction{at(t, m, 0x00), at(t, m, 0x01)}
	if !slices.Equal(got, want) {
		t.Errorf("consumed producers = %v, want %v", got, want)
	}
}

func TestGetConsumedValues_InvalidArguments(t *testing.T) {
	m := newMethod(t, "int32 Calc::Add(int32, int32)", 0, arithmetic)
	tr := newTracker(t, m)
	vg := onlyGraph(t, tr)

	if _, err := tr.GetConsumedValues(nil, m.Entry()); !errors.Is(err, flow.ErrInvalidArgument) {
		t.Errorf("nil graph: error = %v, want ErrInvalidArgument", err)
	}
	if _, err := tr.GetConsumedValues(vg, nil); !errors.Is(err, flow.ErrInvalidArgument) {
		t.Errorf("nil instruction: error = %v, want ErrInvalidArgument", err)
	}

	stranger := &il.Instruction{OpCode: il.Nop}
	consumed, err := tr.GetConsumedValues(vg, stranger)
	if err != nil {
		t.Fatal(err)
	}
	if len(consumed) != 0 {
		t.Errorf("instruction off the path: got %d values, want none", len(consumed))
	}
}

func TestGetConsumedValues_InstructionOnOtherPath(t *testing.T) {
	m := newMethod(t, "void Calc::Maybe(bool)", 0, ifBranch)
	tr := newTracker(t, m)
	call := at(t, m, 0x04)

	total := 0
	for _, vg := range tr.ValueGraphs() {
		consumed, err := tr.GetConsumedValues(vg, call)
		if err != nil {
			t.Fatal(err)
		}
		if !vg.Contains(call) && len(consumed) != 0 {
			t.Errorf("path without the call reports %d consumed values", len(consumed))
		}
		total += len(consumed)
	}
	if total != 1 {
		t.Errorf("call consumes %d values across paths, want 1", total)
	}
}

func TestFindSourceValues_SecondOutWriteSupersedesFirst(t *testing.T) {
	m := newMethod(t, "void Tests::Overwrites()", 1, `
		IL_0000: ldc.i4.1
		IL_0001: ldloca.s 0
		IL_0003: call void Factory::Make(int32, out int32&)
		IL_0008: ldc.i4.2
		IL_0009: ldloca.s 0
		IL_000b: call void Factory::Make(int32, out int32&)
		IL_0010: ldloc.0
		IL_0011: call void Sink::Take(int32)
		IL_0016: ret
	`)
	tr := newTracker(t, m)
	vg := onlyGraph(t, tr)

	consumed, err := tr.GetConsumedValues(vg, at(t, m, 0x11))
	if err != nil {
		t.Fatal(err)
	}
	if len(consumed) != 1 {
		t.Fatalf("got %d consumed values, want 1", len(consumed))
	}

	sources := tr.FindSourceValues(consumed[0])
	got := producers(sources)
	want := []*il.Instruction{at(t, m, 0x08)}
	if !slices.Equal(got, want) {
		t.Errorf("sources = %v, want only the second call's input %v", got, want)
	}
}

func TestOutArgumentIsNotConsumed(t *testing.T) {
	m := newMethod(t, "void Tests::Parses()", 1, `
		IL_0000: ldstr "42"
		IL_0005: ldloca.s 0
		IL_0007: call bool System.Int32::TryParse(string, out int32&)
		IL_000c: pop
		IL_000d: ret
	`)
	tr := newTracker(t, m)
	vg := onlyGraph(t, tr)
	call := at(t, m, 0x07)

	consumed, err := tr.GetConsumedValues(vg, call)
	if err != nil {
		t.Fatal(err)
	}
	got := producers(consumed)
	want := []*il.Instruction{at(t, m, 0x00)}
	if !slices.Equal(got, want) {
		t.Errorf("consumed producers = %v, want only the string %v", got, want)
	}

	for _, v := range vg.Values() {
		if v.Producer == call && len(v.Parents()) != 1 {
			t.Errorf("value %s has %d parents, want 1 (out slot excluded)", v, len(v.Parents()))
		}
	}
}

func TestRefArgumentChainsPreviousValue(t *testing.T) {
	m := newMethod(t, "void Tests::Bumps()", 1, `
		IL_0000: ldc.i4.7
		IL_0001: stloc.0
		IL_0002: ldloca.s 0
		IL_0004: call void Counter::Bump(int32&)
		IL_0009: ldloc.0
		IL_000a: call void Sink::Take(int32)
		IL_000f: ret
	`)
	tr := newTracker(t, m)
	vg := onlyGraph(t, tr)

	consumed, err := tr.GetConsumedValues(vg, at(t, m, 0x0a))
	if err != nil {
		t.Fatal(err)
	}
	if len(consumed) != 1 {
		t.Fatalf("got %d consumed values, want 1", len(consumed))
	}
	sources := producers(tr.FindSourceValues(consumed[0]))
	want := []*il.Instruction{at(t, m, 0x00)}
	if !slices.Equal(sources, want) {
		t.Errorf("sources = %v, want %v", sources, want)
	}
}

func TestFindSourceValues_ThroughArithmetic(t *testing.T) {
	m := newMethod(t, "void Tests::Computes()", 1, `
		IL_0000: ldc.i4.2
		IL_0001: ldc.i4.3
		IL_0002: mul
		IL_0003: stloc.0
		IL_0004: ldc.i4.6
		IL_0005: ldloc.0
		IL_0006: call void Assert::AreEqual(int32, int32)
		IL_000b: ret
	`)
	tr := newTracker(t, m)
	vg := onlyGraph(t, tr)

	consumed, err := tr.GetConsumedValues(vg, at(t, m, 0x06))
	if err != nil {
		t.Fatal(err)
	}
	if len(consumed) != 2 {
		t.Fatalf("got %d consumed values, want 2", len(consumed))
	}

	expected := producers(tr.FindSourceValues(consumed[0]))
	if !slices.Equal(expected, []*il.Instruction{at(t, m, 0x04)}) {
		t.Errorf("expected-side sources = %v", expected)
	}
	actual := producers(tr.FindSourceValues(consumed[1]))
	if !slices.Equal(actual, []*il.Instruction{at(t, m, 0x00), at(t, m, 0x01)}) {
		t.Errorf("actual-side sources = %v", actual)
	}
}

func TestFindSourceValues_UnknownValue(t *testing.T) {
	m := newMethod(t, "int32 Calc::Add(int32, int32)", 0, arithmetic)
	tr := newTracker(t, m)
	other := newTracker(t, newMethod(t, "int32 Calc::Add(int32, int32)", 0, arithmetic))

	foreign := onlyGraph(t, other).Values()[0]
	if got := tr.FindSourceValues(foreign); got != nil {
		t.Errorf("FindSourceValues(foreign) = %v, want nil", got)
	}
	if got := tr.FindSourceValues(nil); got != nil {
		t.Errorf("FindSourceValues(nil) = %v, want nil", got)
	}
}

func TestValueGraph_RootHoldsTerminalValues(t *testing.T) {
	m := newMethod(t, "int32 Calc::Add(int32, int32)", 0, arithmetic)
	vg := onlyGraph(t, newTracker(t, m))

	root := vg.Root()
	if root.Producer != nil {
		t.Errorf("super-root producer = %s, want nil", root.Producer)
	}
	terminal := root.Parents()
	if len(terminal) != 1 || terminal[0].Producer != at(t, m, 0x02) {
		t.Fatalf("terminal values = %v, want the add result", terminal)
	}
	if terminal[0].Consumer != at(t, m, 0x03) {
		t.Errorf("add result consumer = %s, want ret", terminal[0].Consumer)
	}

	walked := 0
	for range vg.Graph().Walk() {
		walked++
	}
	if walked != len(vg.Values())+1 {
		t.Errorf("walk visited %d values, want %d", walked, len(vg.Values())+1)
	}
}

func TestDupProducesTwoValues(t *testing.T) {
	m := newMethod(t, "void Tests::Dups()", 0, `
		IL_0000: ldc.i4.1
		IL_0001: dup
		IL_0002: call void Assert::AreEqual(int32, int32)
		IL_0007: ret
	`)
	tr := newTracker(t, m)
	vg := onlyGraph(t, tr)

	consumed, err := tr.GetConsumedValues(vg, at(t, m, 0x02))
	if err != nil {
		t.Fatal(err)
	}
	if len(consumed) != 2 {
		t.Fatalf("got %d consumed values, want 2", len(consumed))
	}
	for _, v := range consumed {
		if v.Producer != at(t, m, 0x01) {
			t.Errorf("producer = %s, want dup", v.Producer)
		}
		src := producers(tr.FindSourceValues(v))
		if !slices.Equal(src, []*il.Instruction{at(t, m, 0x00)}) {
			t.Errorf("sources = %v, want the constant", src)
		}
	}
}

func TestTracker_StackImbalance(t *testing.T) {
	tests := []struct {
		name string
		sig  string
		body string
	}{
		{"leftover value", "void Calc::Leaks()", "IL_0000: ldc.i4.1\nIL_0001: ret"},
		{"pop from empty stack", "int32 Calc::Underflows()", "IL_0000: add\nIL_0001: ret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := flow.NewMethodValueTracker(newMethod(t, tt.sig, 0, tt.body))
			if !errors.Is(err, flow.ErrStackImbalance) {
				t.Errorf("error = %v, want ErrStackImbalance", err)
			}
		})
	}
}

func TestTracker_NewObjCreatesReceiver(t *testing.T) {
	m := newMethod(t, "void Tests::Builds()", 1, `
		IL_0000: ldc.i4.3
		IL_0001: newobj instance void Calc::.ctor(int32)
		IL_0006: stloc.0
		IL_0007: ldloc.0
		IL_0008: callvirt instance int32 Calc::Total()
		IL_000d: pop
		IL_000e: ret
	`)
	tr := newTracker(t, m)
	vg := onlyGraph(t, tr)

	consumed, err := tr.GetConsumedValues(vg, at(t, m, 0x01))
	if err != nil {
		t.Fatal(err)
	}
	if len(consumed) != 1 || consumed[0].Producer != at(t, m, 0x00) {
		t.Errorf("newobj consumed %v, want the constructor argument", producers(consumed))
	}

	total, err := tr.GetConsumedValues(vg, at(t, m, 0x08))
	if err != nil {
		t.Fatal(err)
	}
	if len(total) != 0 {
		t.Errorf("parameterless instance call reports %d consumed values, want 0", len(total))
	}
}

func TestProvenance_IncludesIntermediateValues(t *testing.T) {
	m := newMethod(t, "void Tests::Derives()", 0, `
		IL_0000: ldc.i4.2
		IL_0001: call int32 Calc::Double(int32)
		IL_0006: call void Sink::Take(int32)
		IL_000b: ret
	`)
	tr := newTracker(t, m)
	vg := onlyGraph(t, tr)

	consumed, err := tr.GetConsumedValues(vg, at(t, m, 0x06))
	if err != nil {
		t.Fatal(err)
	}
	if len(consumed) != 1 {
		t.Fatalf("got %d consumed values, want 1", len(consumed))
	}
	got := producers(tr.Provenance(consumed[0]))
	want := []*il.Instruction{at(t, m, 0x01), at(t, m, 0x00)}
	if !slices.Equal(got, want) {
		t.Errorf("provenance = %v, want %v", got, want)
	}
	if tr.Provenance(nil) != nil {
		t.Error("Provenance(nil) should be nil")
	}
}
