package loader_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/unbound-force/testsmell/internal/il"
	"github.com/unbound-force/testsmell/internal/loader"
)

func loadCalc(t *testing.T) *loader.Assembly {
	t.Helper()
	asm, err := loader.Load(filepath.Join("testdata", "calc.yaml"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	return asm
}

func TestLoad_ValidListing(t *testing.T) {
	asm := loadCalc(t)
	if asm.Name != "Calc.Tests" {
		t.Errorf("Name = %q, want Calc.Tests", asm.Name)
	}
	if asm.Path == "" {
		t.Error("expected Path to be set")
	}
	if len(asm.Methods) != 11 {
		t.Errorf("got %d methods, want 11", len(asm.Methods))
	}

	adds := asm.Lookup("Calc.Tests.CalculatorTests::Adds")
	if len(adds) != 1 {
		t.Fatalf("Lookup(Adds) returned %d methods", len(adds))
	}
	m := adds[0]
	if !m.HasThis || m.Locals != 1 || len(m.Body) != 9 {
		t.Errorf("Adds: HasThis=%v Locals=%d body=%d", m.HasThis, m.Locals, len(m.Body))
	}
	if !m.HasAttribute("Test") {
		t.Error("Adds should carry the Test attribute")
	}
	if sp := m.Body[0].SequencePoint; sp == nil || sp.String() != "CalculatorTests.cs:12" {
		t.Errorf("first sequence point = %v", sp)
	}
}

func TestLoad_FieldForm(t *testing.T) {
	asm := loadCalc(t)
	found := asm.Lookup("CheckFive")
	if len(found) != 1 {
		t.Fatalf("Lookup(CheckFive) returned %d methods", len(found))
	}
	m := found[0]
	if m.HasThis {
		t.Error("CheckFive is static")
	}
	if got := m.MethodRef.String(); got != "void Calc.Tests.CalculatorTests::CheckFive(int32)" {
		t.Errorf("signature = %q", got)
	}
}

func TestAssembly_Resolve(t *testing.T) {
	asm := loadCalc(t)

	ref, err := il.ParseMethodRef("instance int32 Calc.Calculator::Add(int32, int32)")
	if err != nil {
		t.Fatal(err)
	}
	m := asm.Resolve(ref)
	if m == nil || m.FullName() != "Calc.Calculator::Add" {
		t.Errorf("Resolve(Add) = %v", m)
	}

	external, _ := il.ParseMethodRef("void NUnit.Framework.Assert::IsTrue(bool)")
	if asm.Resolve(external) != nil {
		t.Error("external method should not resolve")
	}
	if asm.Resolve(nil) != nil {
		t.Error("Resolve(nil) should be nil")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		want    string
		invalid bool
	}{
		{"missing assembly", "methods: []\n", "missing assembly name", true},
		{"no signature", "assembly: A\nmethods:\n  - body: 'IL_0000: ret'\n", "signature or a type and name", true},
		{"bad param kind", "assembly: A\nmethods:\n  - type: T\n    name: M\n    params: [{type: int32, kind: inout}]\n    body: 'IL_0000: ret'\n", `unknown parameter kind "inout"`, true},
		{"negative locals", "assembly: A\nmethods:\n  - signature: void T::M()\n    locals: -1\n    body: 'IL_0000: ret'\n", "negative local count", true},
		{"duplicate", "assembly: A\nmethods:\n  - signature: void T::M()\n    body: 'IL_0000: ret'\n  - signature: void T::M()\n    body: 'IL_0000: ret'\n", "defined twice", true},
		{"bad opcode", "assembly: A\nmethods:\n  - signature: void T::M()\n    body: 'IL_0000: frobnicate'\n", "unknown opcode", false},
		{"bad yaml", "assembly: [", "decoding listing", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
			if got := errors.Is(err, loader.ErrInvalidListing); got != tt.invalid {
				t.Errorf("errors.Is(ErrInvalidListing) = %v, want %v", got, tt.invalid)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := loader.Load(filepath.Join("testdata", "absent.yaml"))
	if err == nil || !strings.Contains(err.Error(), "reading listing") {
		t.Errorf("error = %v, want a reading error", err)
	}
}
