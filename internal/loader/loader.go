// Package loader reads YAML assembly listings into method bodies ready
// for control-flow and data-flow analysis.
//
// A listing names an assembly and its methods. Each method carries a
// signature in call-operand syntax, its custom attributes, the number of
// local slots, and an ILDasm-style body:
//
//	assembly: Calc.Tests
//	methods:
//	  - signature: instance void Calc.Tests.CalcTests::Adds()
//	    attributes: [NUnit.Framework.TestAttribute]
//	    locals: 1
//	    body: |
//	      IL_0000: ldc.i4.2
//	      ...
//
// A method may spell its signature out field by field (type, name,
// static, returns, params) instead of giving a signature string.
package loader

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/unbound-force/testsmell/internal/il"
)

// ErrInvalidListing is returned when a listing is structurally invalid.
var ErrInvalidListing = errors.New("invalid listing")

// Assembly is a loaded listing.
type Assembly struct {
	// Name is the assembly name.
	Name string

	// Path is the file the listing was loaded from, if any.
	Path string

	// Methods are in listing order.
	Methods []*il.Method

	bySignature map[string]*il.Method
}

// Resolve returns the method defined in the assembly that ref calls, or
// nil when the callee is external.
func (a *Assembly) Resolve(ref *il.MethodRef) *il.Method {
	if ref == nil {
		return nil
	}
	return a.bySignature[ref.String()]
}

// Lookup returns the methods whose "Type::Name" or bare name equals name.
func (a *Assembly) Lookup(name string) []*il.Method {
	var out []*il.Method
	for _, m := range a.Methods {
		if m.FullName() == name || m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

type listing struct {
	Assembly string          `yaml:"assembly"`
	Methods  []methodListing `yaml:"methods"`
}

type methodListing struct {
	Signature  string         `yaml:"signature"`
	Type       string         `yaml:"type"`
	Name       string         `yaml:"name"`
	Static     bool           `yaml:"static"`
	Returns    string         `yaml:"returns"`
	Params     []paramListing `yaml:"params"`
	Attributes []string       `yaml:"attributes"`
	Locals     int            `yaml:"locals"`
	Body       string         `yaml:"body"`
}

type paramListing struct {
	Type string `yaml:"type"`
	Kind string `yaml:"kind"`
}

// Load reads and parses the listing at path.
func Load(path string) (*Assembly, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading listing %q: %w", path, err)
	}
	asm, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading listing %q: %w", path, err)
	}
	asm.Path = path
	return asm, nil
}

// Parse decodes a listing document.
func Parse(data []byte) (*Assembly, error) {
	var l listing
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decoding listing: %w", err)
	}
	if l.Assembly == "" {
		return nil, fmt.Errorf("missing assembly name: %w", ErrInvalidListing)
	}

	asm := &Assembly{Name: l.Assembly, bySignature: make(map[string]*il.Method)}
	for i, ml := range l.Methods {
		m, err := ml.method()
		if err != nil {
			return nil, fmt.Errorf("method %d: %w", i, err)
		}
		key := m.MethodRef.String()
		if _, dup := asm.bySignature[key]; dup {
			return nil, fmt.Errorf("method %s defined twice: %w", key, ErrInvalidListing)
		}
		asm.bySignature[key] = m
		asm.Methods = append(asm.Methods, m)
	}
	return asm, nil
}

func (ml methodListing) method() (*il.Method, error) {
	ref, err := ml.ref()
	if err != nil {
		return nil, err
	}
	if ml.Locals < 0 {
		return nil, fmt.Errorf("%s: negative local count: %w", ref.FullName(), ErrInvalidListing)
	}
	body, err := il.ParseBody(ml.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref.FullName(), err)
	}
	return &il.Method{
		MethodRef:  ref,
		Attributes: ml.Attributes,
		Locals:     ml.Locals,
		Body:       body,
	}, nil
}

func (ml methodListing) ref() (*il.MethodRef, error) {
	if ml.Signature != "" {
		return il.ParseMethodRef(ml.Signature)
	}
	if ml.Type == "" || ml.Name == "" {
		return nil, fmt.Errorf("method needs a signature or a type and name: %w", ErrInvalidListing)
	}
	ref := &il.MethodRef{
		DeclaringType: ml.Type,
		Name:          ml.Name,
		HasThis:       !ml.Static,
		ReturnType:    ml.Returns,
	}
	for _, p := range ml.Params {
		kind, err := paramKind(p.Kind)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ref.FullName(), err)
		}
		ref.Parameters = append(ref.Parameters, il.Parameter{
			Type: strings.TrimSuffix(p.Type, "&"),
			Kind: kind,
		})
	}
	return ref, nil
}

func paramKind(s string) (il.ParamKind, error) {
	switch strings.ToLower(s) {
	case "", "in":
		return il.ParamIn, nil
	case "ref":
		return il.ParamRef, nil
	case "out":
		return il.ParamOut, nil
	}
	return il.ParamIn, fmt.Errorf("unknown parameter kind %q: %w", s, ErrInvalidListing)
}
