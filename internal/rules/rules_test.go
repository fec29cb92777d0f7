package rules_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/unbound-force/testsmell/internal/framework"
	"github.com/unbound-force/testsmell/internal/loader"
	"github.com/unbound-force/testsmell/internal/rules"
	"github.com/unbound-force/testsmell/internal/taxonomy"
	"github.com/unbound-force/testsmell/internal/testcase"
)

func loadCalc(t *testing.T) *loader.Assembly {
	t.Helper()
	asm, err := loader.Load(filepath.Join("..", "loader", "testdata", "calc.yaml"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	return asm
}

func prepare(t *testing.T, asm *loader.Assembly, name string) *testcase.TestCase {
	t.Helper()
	found := asm.Lookup(name)
	if len(found) != 1 {
		t.Fatalf("Lookup(%q) returned %d methods", name, len(found))
	}
	tc, err := testcase.New(asm, found[0], framework.Default())
	if err != nil {
		t.Fatalf("testcase.New(%s): %v", name, err)
	}
	return tc
}

func checkAll(t *testing.T, tc *testcase.TestCase, rs []rules.Rule) []rules.Finding {
	t.Helper()
	var all []rules.Finding
	for _, r := range rs {
		found, err := r.Check(tc)
		if err != nil {
			t.Fatalf("%s.Check: %v", r.ID(), err)
		}
		all = append(all, found...)
	}
	return all
}

func TestRules_CalcListing(t *testing.T) {
	asm := loadCalc(t)
	rs := rules.New(rules.Options{})

	tests := []struct {
		method  string
		rule    taxonomy.RuleID
		at      string
		message string
	}{
		{"Adds", "", "", ""},
		{"UsesHelper", "", "", ""},
		{"Subtracts", "", "", ""},
		{"DoesNothing", taxonomy.NoAsserts, "IL_0000", "no assertion"},
		{"ChecksTwice", taxonomy.MultipleAsserts, "IL_0008", "2 assertions on one path (limit 1)"},
		{"BranchesOnFlag", taxonomy.ConditionalLogic, "IL_0001", "2 execution paths"},
		{"ComputesExpected", taxonomy.ComputedExpected, "IL_0018", "computed by Calc.Calculator::Add"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			findings := checkAll(t, prepare(t, asm, tt.method), rs)
			if tt.rule == "" {
				if len(findings) != 0 {
					t.Errorf("expected no findings, got %+v", findings)
				}
				return
			}
			if len(findings) != 1 {
				t.Fatalf("got %d findings, want 1: %+v", len(findings), findings)
			}
			f := findings[0]
			if f.Rule != tt.rule {
				t.Errorf("rule = %s, want %s", f.Rule, tt.rule)
			}
			if f.At.Label() != tt.at {
				t.Errorf("at = %s, want %s", f.At.Label(), tt.at)
			}
			if !strings.Contains(f.Message, tt.message) {
				t.Errorf("message %q does not contain %q", f.Message, tt.message)
			}
		})
	}
}

func TestMultipleAsserts_RaisedLimit(t *testing.T) {
	tc := prepare(t, loadCalc(t), "ChecksTwice")
	found, err := rules.MultipleAsserts{Max: 2}.Check(tc)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 0 {
		t.Errorf("limit 2 should allow two assertions, got %+v", found)
	}
}

func TestConditionalLogic_Loop(t *testing.T) {
	asm, err := loader.Parse([]byte(`
assembly: Loops
methods:
  - signature: instance void Loops.LoopTests::Counts()
    attributes: [Xunit.FactAttribute]
    locals: 1
    body: |
      IL_0000: ldc.i4.0
      IL_0001: stloc.0
      IL_0002: ldloc.0
      IL_0003: ldc.i4.1
      IL_0004: add
      IL_0005: stloc.0
      IL_0006: ldloc.0
      IL_0007: ldc.i4.3
      IL_0008: blt.s IL_0002
      IL_000a: ldc.i4.3
      IL_000b: ldloc.0
      IL_000c: call void Xunit.Assert::Equal(int32, int32)
      IL_0011: ret
`))
	if err != nil {
		t.Fatal(err)
	}
	tc := prepare(t, asm, "Counts")
	found, err := rules.ConditionalLogic{}.Check(tc)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 {
		t.Fatalf("got %d findings, want 1", len(found))
	}
	if !strings.Contains(found[0].Message, "contains a loop") {
		t.Errorf("message = %q, want a loop mention", found[0].Message)
	}
	if found[0].At.Label() != "IL_0008" {
		t.Errorf("at = %s, want IL_0008", found[0].At.Label())
	}
}

func TestComputedExpected_ConstructorIsNotComputation(t *testing.T) {
	asm, err := loader.Parse([]byte(`
assembly: Money
methods:
  - signature: instance void Money.MoneyTests::Equals()
    attributes: [NUnit.Framework.TestAttribute]
    body: |
      IL_0000: ldc.i4.5
      IL_0001: newobj instance void Money.Amount::.ctor(int32)
      IL_0006: ldc.i4.5
      IL_0007: newobj instance void Money.Amount::.ctor(int32)
      IL_000c: call void NUnit.Framework.Assert::AreEqual(object, object)
      IL_0011: ret
`))
	if err != nil {
		t.Fatal(err)
	}
	found, err := rules.ComputedExpected{}.Check(prepare(t, asm, "Equals"))
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 0 {
		t.Errorf("constructed expected value flagged: %+v", found)
	}
}

func TestNew_Filters(t *testing.T) {
	rs := rules.New(rules.Options{
		Enabled: func(id taxonomy.RuleID) bool { return id != taxonomy.ConditionalLogic },
	})
	if len(rs) != 3 {
		t.Fatalf("got %d rules, want 3", len(rs))
	}
	for _, r := range rs {
		if r.ID() == taxonomy.ConditionalLogic {
			t.Error("disabled rule returned")
		}
	}

	all := rules.New(rules.Options{})
	for i, r := range all {
		if r.ID() != taxonomy.AllRules[i] {
			t.Errorf("rule %d = %s, want %s", i, r.ID(), taxonomy.AllRules[i])
		}
	}
}
