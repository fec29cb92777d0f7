// Package testcase bundles everything the rules need to know about one
// test method: its control-flow graph, the call graph of the assembly
// methods it reaches, which of those methods assert, and a lazily built
// value tracker.
package testcase

import (
	"fmt"

	"github.com/unbound-force/testsmell/internal/flow"
	"github.com/unbound-force/testsmell/internal/framework"
	"github.com/unbound-force/testsmell/internal/graph"
	"github.com/unbound-force/testsmell/internal/il"
	"github.com/unbound-force/testsmell/internal/loader"
	"github.com/unbound-force/testsmell/internal/taxonomy"
)

// TestCase is one test method prepared for analysis. It is not safe for
// concurrent use; the analysis gives each goroutine its own TestCase.
type TestCase struct {
	Method    *il.Method
	Framework *framework.Framework
	Assembly  *loader.Assembly

	cfg       *flow.InstructionGraph
	calls     *graph.Graph[*il.Method]
	registry  *framework.Registry
	asserting map[*il.Method]bool

	paths   [][]*il.Instruction
	tracker *flow.MethodValueTracker
}

// Discover returns the test methods of asm recognised by reg whose
// qualified name passes include, in listing order. A nil include keeps
// every test.
func Discover(asm *loader.Assembly, reg *framework.Registry, include func(string) bool) []*il.Method {
	var tests []*il.Method
	for _, m := range asm.Methods {
		if reg.TestFramework(m) == nil {
			continue
		}
		if include != nil && !include(m.FullName()) {
			continue
		}
		tests = append(tests, m)
	}
	return tests
}

// New builds the control-flow graph and call graph of m.
func New(asm *loader.Assembly, m *il.Method, reg *framework.Registry) (*TestCase, error) {
	cfg, err := flow.NewInstructionGraph(m)
	if err != nil {
		return nil, err
	}
	tc := &TestCase{
		Method:    m,
		Framework: reg.TestFramework(m),
		Assembly:  asm,
		cfg:       cfg,
		registry:  reg,
	}
	tc.calls = graph.Build(m, tc.callees)
	if err := tc.findAsserting(); err != nil {
		return nil, fmt.Errorf("%s: %w", m.FullName(), err)
	}
	return tc, nil
}

// callees lists the distinct assembly methods m calls, in body order.
func (tc *TestCase) callees(m *il.Method) []*il.Method {
	var out []*il.Method
	seen := make(map[*il.Method]bool)
	for _, ins := range m.Body {
		ref, ok := ins.Method()
		if !ok {
			continue
		}
		if callee := tc.Assembly.Resolve(ref); callee != nil && !seen[callee] {
			seen[callee] = true
			out = append(out, callee)
		}
	}
	return out
}

// findAsserting marks every method in the call graph that calls an
// assertion directly, then every caller of a marked method.
func (tc *TestCase) findAsserting() error {
	tc.asserting = make(map[*il.Method]bool)
	var work []*il.Method
	for _, m := range tc.calls.Nodes() {
		if tc.callsAssertion(m) {
			tc.asserting[m] = true
			work = append(work, m)
		}
	}
	for len(work) > 0 {
		m := work[len(work)-1]
		work = work[:len(work)-1]
		callers, err := tc.calls.TailsFor(m)
		if err != nil {
			return err
		}
		for _, c := range callers {
			if !tc.asserting[c] {
				tc.asserting[c] = true
				work = append(work, c)
			}
		}
	}
	return nil
}

func (tc *TestCase) callsAssertion(m *il.Method) bool {
	for _, ins := range m.Body {
		if ref, ok := ins.Method(); ok && tc.registry.IsAssertion(ref) {
			return true
		}
	}
	return false
}

// InstructionGraph returns the test method's control-flow graph.
func (tc *TestCase) InstructionGraph() *flow.InstructionGraph {
	return tc.cfg
}

// CallGraph returns the graph of assembly methods reachable from the
// test through calls, rooted at the test method.
func (tc *TestCase) CallGraph() *graph.Graph[*il.Method] {
	return tc.calls
}

// IsAsserting reports whether m asserts, directly or through helpers.
func (tc *TestCase) IsAsserting(m *il.Method) bool {
	return tc.asserting[m]
}

// AssertingMethods returns the asserting methods of the call graph in
// discovery order. The test method itself is included when it asserts.
func (tc *TestCase) AssertingMethods() []*il.Method {
	var out []*il.Method
	for _, m := range tc.calls.Nodes() {
		if tc.asserting[m] {
			out = append(out, m)
		}
	}
	return out
}

// IsAssertionCall reports whether ins calls an assertion or an assembly
// method that asserts.
func (tc *TestCase) IsAssertionCall(ins *il.Instruction) bool {
	ref, ok := ins.Method()
	if !ok {
		return false
	}
	if tc.registry.IsAssertion(ref) {
		return true
	}
	callee := tc.Assembly.Resolve(ref)
	return callee != nil && tc.asserting[callee]
}

// ExpectsFirst reports whether ref is an assertion whose first argument
// is the expected value.
func (tc *TestCase) ExpectsFirst(ref *il.MethodRef) bool {
	return ref != nil && tc.registry.ExpectsFirst(ref)
}

// AssertionSites returns the assertion calls in the test body, in body
// order, whether or not they are reachable.
func (tc *TestCase) AssertionSites() []*il.Instruction {
	var out []*il.Instruction
	for _, ins := range tc.Method.Body {
		if tc.IsAssertionCall(ins) {
			out = append(out, ins)
		}
	}
	return out
}

// Paths returns the entry-to-return instruction paths, computed once.
func (tc *TestCase) Paths() ([][]*il.Instruction, error) {
	if tc.paths == nil {
		paths, err := tc.cfg.FindInstructionPaths()
		if err != nil {
			return nil, err
		}
		tc.paths = paths
	}
	return tc.paths, nil
}

// Tracker returns the value tracker of the test method, built on first
// use.
func (tc *TestCase) Tracker() (*flow.MethodValueTracker, error) {
	if tc.tracker == nil {
		t, err := flow.NewMethodValueTrackerFromGraph(tc.cfg)
		if err != nil {
			return nil, err
		}
		tc.tracker = t
	}
	return tc.tracker, nil
}

// Location returns the source position of ins when the listing carries
// line information, else its IL label.
func Location(ins *il.Instruction) string {
	for p := ins; p != nil; p = p.Previous {
		if p.SequencePoint != nil {
			return p.SequencePoint.String()
		}
	}
	return ins.Label()
}

// Target describes the test for reports.
func (tc *TestCase) Target() taxonomy.TestTarget {
	return TargetOf(tc.Assembly, tc.Method)
}

// TargetOf describes m for reports without building a TestCase, so
// methods that fail to load can still be attributed.
func TargetOf(asm *loader.Assembly, m *il.Method) taxonomy.TestTarget {
	tt := taxonomy.TestTarget{
		Assembly:  asm.Name,
		Type:      m.DeclaringType,
		Method:    m.Name,
		Signature: m.MethodRef.String(),
	}
	for _, ins := range m.Body {
		if ins.SequencePoint != nil {
			tt.Location = ins.SequencePoint.String()
			break
		}
	}
	return tt
}
