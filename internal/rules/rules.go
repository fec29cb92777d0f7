// Package rules implements the test smell rules. Each rule inspects one
// prepared test case through its control-flow paths, call graph and
// value provenance and reports findings anchored at an instruction.
package rules

import (
	"fmt"

	"github.com/unbound-force/testsmell/internal/flow"
	"github.com/unbound-force/testsmell/internal/il"
	"github.com/unbound-force/testsmell/internal/taxonomy"
	"github.com/unbound-force/testsmell/internal/testcase"
)

// Finding is one rule hit inside a test method.
type Finding struct {
	Rule    taxonomy.RuleID
	At      *il.Instruction
	Message string
}

// Rule checks a test case.
type Rule interface {
	ID() taxonomy.RuleID
	Check(tc *testcase.TestCase) ([]Finding, error)
}

// Options configures New.
type Options struct {
	// Enabled filters the rule set; nil enables every rule.
	Enabled func(taxonomy.RuleID) bool

	// MaxAsserts is the per-path assertion limit of MultipleAsserts.
	// Values below one mean one.
	MaxAsserts int
}

// New returns the enabled rules in taxonomy.AllRules order.
func New(opts Options) []Rule {
	all := []Rule{
		NoAsserts{},
		MultipleAsserts{Max: max(opts.MaxAsserts, 1)},
		ConditionalLogic{},
		ComputedExpected{},
	}
	var out []Rule
	for _, r := range all {
		if opts.Enabled == nil || opts.Enabled(r.ID()) {
			out = append(out, r)
		}
	}
	return out
}

// NoAsserts fires when the test body calls no assertion, directly or
// through an assembly helper.
type NoAsserts struct{}

func (NoAsserts) ID() taxonomy.RuleID { return taxonomy.NoAsserts }

func (NoAsserts) Check(tc *testcase.TestCase) ([]Finding, error) {
	if len(tc.AssertionSites()) > 0 {
		return nil, nil
	}
	return []Finding{{
		Rule:    taxonomy.NoAsserts,
		At:      tc.Method.Entry(),
		Message: "test makes no assertion",
	}}, nil
}

// MultipleAsserts fires when some execution path reaches more than Max
// distinct assertion calls. The finding points at the first assertion
// past the limit on the worst path.
type MultipleAsserts struct {
	Max int
}

func (MultipleAsserts) ID() taxonomy.RuleID { return taxonomy.MultipleAsserts }

func (r MultipleAsserts) Check(tc *testcase.TestCase) ([]Finding, error) {
	paths, err := tc.Paths()
	if err != nil {
		return nil, err
	}
	var worst []*il.Instruction
	for _, p := range paths {
		var sites []*il.Instruction
		seen := make(map[*il.Instruction]bool)
		for _, ins := range p {
			if !seen[ins] && tc.IsAssertionCall(ins) {
				seen[ins] = true
				sites = append(sites, ins)
			}
		}
		if len(sites) > len(worst) {
			worst = sites
		}
	}
	if len(worst) <= r.Max {
		return nil, nil
	}
	return []Finding{{
		Rule:    taxonomy.MultipleAsserts,
		At:      worst[r.Max],
		Message: fmt.Sprintf("%d assertions on one path (limit %d)", len(worst), r.Max),
	}}, nil
}

// ConditionalLogic fires when the test body has more than one path from
// entry to return, or a path that loops.
type ConditionalLogic struct{}

func (ConditionalLogic) ID() taxonomy.RuleID { return taxonomy.ConditionalLogic }

func (ConditionalLogic) Check(tc *testcase.TestCase) ([]Finding, error) {
	paths, err := tc.Paths()
	if err != nil {
		return nil, err
	}
	loops := 0
	for _, p := range paths {
		if flow.ContainsLoop(p) {
			loops++
		}
	}
	if len(paths) <= 1 && loops == 0 {
		return nil, nil
	}

	msg := fmt.Sprintf("test has %d execution paths", len(paths))
	if loops > 0 {
		msg += " and contains a loop"
	}
	return []Finding{{
		Rule:    taxonomy.ConditionalLogic,
		At:      firstBranch(tc.Method),
		Message: msg,
	}}, nil
}

func firstBranch(m *il.Method) *il.Instruction {
	for _, ins := range m.Body {
		if ins.OpCode.Flow == il.FlowCondBranch {
			return ins
		}
	}
	return m.Entry()
}

// ComputedExpected fires when the expected argument of an equality
// assertion is derived from the result of a call, so the test repeats
// the computation it is meant to check.
type ComputedExpected struct{}

func (ComputedExpected) ID() taxonomy.RuleID { return taxonomy.ComputedExpected }

func (ComputedExpected) Check(tc *testcase.TestCase) ([]Finding, error) {
	var sites []*il.Instruction
	for _, ins := range tc.AssertionSites() {
		if ref, _ := ins.Method(); tc.ExpectsFirst(ref) {
			sites = append(sites, ins)
		}
	}
	if len(sites) == 0 {
		return nil, nil
	}

	tracker, err := tc.Tracker()
	if err != nil {
		return nil, err
	}

	var findings []Finding
	reported := make(map[*il.Instruction]bool)
	for _, vg := range tracker.ValueGraphs() {
		for _, site := range sites {
			if reported[site] {
				continue
			}
			consumed, err := tracker.GetConsumedValues(vg, site)
			if err != nil {
				return nil, err
			}
			if len(consumed) == 0 {
				continue
			}
			if call := computingCall(tracker, consumed[0]); call != nil {
				reported[site] = true
				findings = append(findings, Finding{
					Rule:    taxonomy.ComputedExpected,
					At:      site,
					Message: fmt.Sprintf("expected value is computed by %s", call.FullName()),
				})
			}
		}
	}
	return findings, nil
}

// computingCall returns the first call in the provenance of v, or nil.
// Constructor calls build values rather than compute them and are skipped.
func computingCall(t *flow.MethodValueTracker, v *flow.Value) *il.MethodRef {
	for _, p := range t.Provenance(v) {
		op := p.Producer.OpCode
		if op.Flow != il.FlowCall || op.IsNewObj() {
			continue
		}
		if ref, ok := p.Producer.Method(); ok {
			return ref
		}
	}
	return nil
}
