package framework_test

import (
	"testing"

	"github.com/unbound-force/testsmell/internal/framework"
	"github.com/unbound-force/testsmell/internal/il"
)

func mustRef(t *testing.T, sig string) *il.MethodRef {
	t.Helper()
	ref, err := il.ParseMethodRef(sig)
	if err != nil {
		t.Fatalf("ParseMethodRef(%q): %v", sig, err)
	}
	return ref
}

func TestRegistry_TestFramework(t *testing.T) {
	reg := framework.Default()
	tests := []struct {
		attrs []string
		want  *framework.Framework
	}{
		{[]string{"NUnit.Framework.TestAttribute"}, framework.NUnit},
		{[]string{"NUnit.Framework.TestCaseAttribute"}, framework.NUnit},
		{[]string{"Xunit.FactAttribute"}, framework.XUnit},
		{[]string{"Microsoft.VisualStudio.TestTools.UnitTesting.TestMethodAttribute"}, framework.MSTest},
		{[]string{"System.ObsoleteAttribute"}, nil},
		{nil, nil},
	}
	for _, tt := range tests {
		m := &il.Method{MethodRef: mustRef(t, "void T::M()"), Attributes: tt.attrs}
		if got := reg.TestFramework(m); got != tt.want {
			t.Errorf("TestFramework(%v) = %v, want %v", tt.attrs, got, tt.want)
		}
	}
}

func TestRegistry_Assertions(t *testing.T) {
	reg := framework.Default()

	areEqual := mustRef(t, "void NUnit.Framework.Assert::AreEqual(int32, int32)")
	if !reg.IsAssertion(areEqual) {
		t.Error("Assert.AreEqual should be an assertion")
	}
	if !reg.ExpectsFirst(areEqual) {
		t.Error("Assert.AreEqual compares an expected first argument")
	}

	isTrue := mustRef(t, "void NUnit.Framework.Assert::IsTrue(bool)")
	if !reg.IsAssertion(isTrue) || reg.ExpectsFirst(isTrue) {
		t.Error("Assert.IsTrue is an assertion without an expected argument")
	}

	xEqual := mustRef(t, "void Xunit.Assert::Equal(string, string)")
	if !reg.ExpectsFirst(xEqual) {
		t.Error("xunit Assert.Equal compares an expected first argument")
	}

	helper := mustRef(t, "void Calc.Tests.Helpers::Check(int32)")
	if reg.IsAssertion(helper) {
		t.Error("helper should not be an assertion by itself")
	}
}

func TestRegistry_Select(t *testing.T) {
	reg, unknown := framework.Default().Select([]string{"xunit", "NUnit", "jest"})
	if len(unknown) != 1 || unknown[0] != "jest" {
		t.Errorf("unknown = %v, want [jest]", unknown)
	}
	fws := reg.Frameworks()
	if len(fws) != 2 || fws[0] != framework.XUnit || fws[1] != framework.NUnit {
		t.Errorf("Select kept %v", fws)
	}
}

func TestRegistry_WithAssertionTypes(t *testing.T) {
	base := framework.Default()
	reg := base.WithAssertionTypes([]string{"FluentAssertions.AssertionExtensions"})

	ref := mustRef(t, "void FluentAssertions.AssertionExtensions::Should(object)")
	if !reg.IsAssertion(ref) {
		t.Error("custom assertion type not recognised")
	}
	if base.IsAssertion(ref) {
		t.Error("WithAssertionTypes modified the receiver")
	}
	if base.WithAssertionTypes(nil) != base {
		t.Error("no extra types should return the registry unchanged")
	}
}
