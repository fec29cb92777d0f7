// Package framework recognises unit-test frameworks: which attributes
// mark a test method, which types hold assertions, and which assertion
// methods compare an expected value against an actual one.
package framework

import (
	"slices"
	"strings"

	"github.com/unbound-force/testsmell/internal/il"
)

// Framework describes one unit-test framework.
type Framework struct {
	// Name is the short name used in configuration ("nunit").
	Name string

	// TestAttributes are the attribute names that mark a test method.
	// Short names match full names ("Test" matches
	// "NUnit.Framework.TestAttribute").
	TestAttributes []string

	// AssertionTypes are the fully qualified types whose static methods
	// are assertions.
	AssertionTypes []string

	// ExpectedFirst names the assertion methods whose first argument is
	// the expected value.
	ExpectedFirst []string
}

// IsTest reports whether m carries one of the framework's test
// attributes.
func (f *Framework) IsTest(m *il.Method) bool {
	for _, a := range f.TestAttributes {
		if m.HasAttribute(a) {
			return true
		}
	}
	return false
}

// IsAssertion reports whether ref is a method of an assertion type.
func (f *Framework) IsAssertion(ref *il.MethodRef) bool {
	return slices.Contains(f.AssertionTypes, ref.DeclaringType)
}

// Built-in frameworks.
var (
	NUnit = &Framework{
		Name:           "nunit",
		TestAttributes: []string{"NUnit.Framework.Test", "NUnit.Framework.TestCase", "NUnit.Framework.TestCaseSource"},
		AssertionTypes: []string{
			"NUnit.Framework.Assert",
			"NUnit.Framework.StringAssert",
			"NUnit.Framework.CollectionAssert",
			"NUnit.Framework.FileAssert",
			"NUnit.Framework.DirectoryAssert",
		},
		ExpectedFirst: []string{"AreEqual", "AreNotEqual", "AreSame", "AreNotSame"},
	}

	XUnit = &Framework{
		Name:           "xunit",
		TestAttributes: []string{"Xunit.Fact", "Xunit.Theory"},
		AssertionTypes: []string{"Xunit.Assert"},
		ExpectedFirst:  []string{"Equal", "NotEqual", "Same", "NotSame", "StrictEqual"},
	}

	MSTest = &Framework{
		Name:           "mstest",
		TestAttributes: []string{"Microsoft.VisualStudio.TestTools.UnitTesting.TestMethod", "Microsoft.VisualStudio.TestTools.UnitTesting.DataTestMethod"},
		AssertionTypes: []string{
			"Microsoft.VisualStudio.TestTools.UnitTesting.Assert",
			"Microsoft.VisualStudio.TestTools.UnitTesting.StringAssert",
			"Microsoft.VisualStudio.TestTools.UnitTesting.CollectionAssert",
		},
		ExpectedFirst: []string{"AreEqual", "AreNotEqual", "AreSame", "AreNotSame"},
	}
)

// Registry is an ordered set of frameworks. It is built once at startup
// and passed to the analysis; there is no global instance.
type Registry struct {
	frameworks []*Framework
}

// NewRegistry returns a registry holding the given frameworks in order.
func NewRegistry(fws ...*Framework) *Registry {
	return &Registry{frameworks: fws}
}

// Default returns a registry with NUnit, xUnit and MSTest.
func Default() *Registry {
	return NewRegistry(NUnit, XUnit, MSTest)
}

// Frameworks returns the registered frameworks.
func (r *Registry) Frameworks() []*Framework {
	return r.frameworks
}

// Add registers an additional framework.
func (r *Registry) Add(f *Framework) {
	r.frameworks = append(r.frameworks, f)
}

// Select returns a registry restricted to the named frameworks, in the
// order given. Unknown names are returned separately.
func (r *Registry) Select(names []string) (*Registry, []string) {
	out := &Registry{}
	var unknown []string
	for _, n := range names {
		f := r.find(n)
		if f == nil {
			unknown = append(unknown, n)
			continue
		}
		out.frameworks = append(out.frameworks, f)
	}
	return out, unknown
}

func (r *Registry) find(name string) *Framework {
	for _, f := range r.frameworks {
		if strings.EqualFold(f.Name, name) {
			return f
		}
	}
	return nil
}

// TestFramework returns the framework whose test attribute m carries, or
// nil when m is not a test.
func (r *Registry) TestFramework(m *il.Method) *Framework {
	for _, f := range r.frameworks {
		if f.IsTest(m) {
			return f
		}
	}
	return nil
}

// IsAssertion reports whether any framework treats ref as an assertion.
func (r *Registry) IsAssertion(ref *il.MethodRef) bool {
	for _, f := range r.frameworks {
		if f.IsAssertion(ref) {
			return true
		}
	}
	return false
}

// ExpectsFirst reports whether ref is an assertion comparing its first
// argument, the expected value, against a later one.
func (r *Registry) ExpectsFirst(ref *il.MethodRef) bool {
	if len(ref.Parameters) < 2 {
		return false
	}
	for _, f := range r.frameworks {
		if f.IsAssertion(ref) && slices.Contains(f.ExpectedFirst, ref.Name) {
			return true
		}
	}
	return false
}

// WithAssertionTypes returns a copy of r with an extra "custom"
// framework holding the given assertion types.
func (r *Registry) WithAssertionTypes(types []string) *Registry {
	if len(types) == 0 {
		return r
	}
	out := &Registry{frameworks: slices.Clone(r.frameworks)}
	out.Add(&Framework{Name: "custom", AssertionTypes: slices.Clone(types)})
	return out
}
