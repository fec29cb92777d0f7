package il

import (
	"fmt"
	"strconv"
	"strings"
)

// SequencePoint maps an instruction back to a source location.
type SequencePoint struct {
	File string
	Line int
}

func (sp SequencePoint) String() string {
	return fmt.Sprintf("%s:%d", sp.File, sp.Line)
}

// Instruction is one decoded bytecode instruction inside a method body.
//
// Operand holds, depending on OpCode.Operand: *Instruction for branches,
// []*Instruction for switch, *MethodRef for calls, int for slot indexes,
// int64 or float64 for numeric constants, and string for ldstr, field and
// type tokens.
type Instruction struct {
	Offset        int
	OpCode        *OpCode
	Operand       any
	Next          *Instruction
	Previous      *Instruction
	SequencePoint *SequencePoint
}

// Label returns the conventional IL_xxxx label of the instruction.
func (ins *Instruction) Label() string {
	return fmt.Sprintf("IL_%04x", ins.Offset)
}

// SlotIndex returns the argument or local slot the instruction accesses.
func (ins *Instruction) SlotIndex() (int, bool) {
	if ins.OpCode.Slot == SlotNone {
		return 0, false
	}
	if ins.OpCode.ImplicitSlot >= 0 {
		return ins.OpCode.ImplicitSlot, true
	}
	idx, ok := ins.Operand.(int)
	return idx, ok
}

// Method returns the called method for call, callvirt and newobj.
func (ins *Instruction) Method() (*MethodRef, bool) {
	m, ok := ins.Operand.(*MethodRef)
	return m, ok && m != nil
}

// BranchTargets returns the explicit targets of a branch or switch.
func (ins *Instruction) BranchTargets() []*Instruction {
	switch op := ins.Operand.(type) {
	case *Instruction:
		if op != nil {
			return []*Instruction{op}
		}
	case []*Instruction:
		return op
	}
	return nil
}

// Constant returns the literal a constant-load instruction pushes, as
// written in source form.
func (ins *Instruction) Constant() (string, bool) {
	if !ins.OpCode.IsConstantLoad() {
		return "", false
	}
	if v, ok := shortConstants[ins.OpCode.Name]; ok {
		return strconv.FormatInt(v, 10), true
	}
	switch v := ins.Operand.(type) {
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), true
	case string:
		return strconv.Quote(v), true
	}
	return "null", true
}

func (ins *Instruction) String() string {
	var b strings.Builder
	b.WriteString(ins.Label())
	b.WriteString(": ")
	b.WriteString(ins.OpCode.Name)
	switch op := ins.Operand.(type) {
	case nil:
	case *Instruction:
		b.WriteString(" " + op.Label())
	case []*Instruction:
		labels := make([]string, len(op))
		for i, t := range op {
			labels[i] = t.Label()
		}
		b.WriteString(" (" + strings.Join(labels, ", ") + ")")
	case *MethodRef:
		b.WriteString(" " + op.String())
	case string:
		if ins.OpCode.Operand == InlineString {
			b.WriteString(" " + strconv.Quote(op))
		} else {
			b.WriteString(" " + op)
		}
	default:
		fmt.Fprintf(&b, " %v", op)
	}
	return b.String()
}

// ParamKind distinguishes by-value, ref and out parameters.
type ParamKind int

// Parameter kinds.
const (
	ParamIn ParamKind = iota
	ParamRef
	ParamOut
)

// Parameter is one formal parameter of a method reference.
type Parameter struct {
	Type string
	Kind ParamKind
}

// ByRef reports whether the argument is passed by reference, so the
// callee can write through it.
func (p Parameter) ByRef() bool {
	return p.Kind == ParamRef || p.Kind == ParamOut
}

// MethodRef identifies a callee and carries what call-site simulation
// needs: the parameter list, whether an implicit receiver is passed, and
// whether a value is returned.
type MethodRef struct {
	DeclaringType string
	Name          string
	HasThis       bool
	ReturnType    string
	Parameters    []Parameter
}

// FullName returns "Namespace.Type::Name".
func (m *MethodRef) FullName() string {
	return m.DeclaringType + "::" + m.Name
}

// ReturnsVoid reports whether the method leaves nothing on the stack.
func (m *MethodRef) ReturnsVoid() bool {
	return m.ReturnType == "" || m.ReturnType == "void"
}

// IsConstructor reports whether the method is an instance constructor.
func (m *MethodRef) IsConstructor() bool {
	return m.Name == ".ctor"
}

func (m *MethodRef) String() string {
	var b strings.Builder
	if m.HasThis {
		b.WriteString("instance ")
	}
	ret := m.ReturnType
	if ret == "" {
		ret = "void"
	}
	b.WriteString(ret + " " + m.FullName() + "(")
	for i, p := range m.Parameters {
		if i > 0 {
			b.WriteString(", ")
		}
		switch p.Kind {
		case ParamOut:
			b.WriteString("out " + p.Type + "&")
		case ParamRef:
			b.WriteString(p.Type + "&")
		default:
			b.WriteString(p.Type)
		}
	}
	b.WriteString(")")
	return b.String()
}

// Method is a method definition with a body.
type Method struct {
	*MethodRef

	// Attributes are the custom attribute type names applied to the
	// method, e.g. "NUnit.Framework.TestAttribute".
	Attributes []string

	// Locals is the number of local variable slots.
	Locals int

	// Body is the instruction sequence, linked through Next/Previous.
	Body []*Instruction
}

// Entry returns the first instruction of the body, or nil.
func (m *Method) Entry() *Instruction {
	if len(m.Body) == 0 {
		return nil
	}
	return m.Body[0]
}

// ArgSlots returns the number of argument slots, counting the receiver.
func (m *Method) ArgSlots() int {
	n := len(m.Parameters)
	if m.HasThis {
		n++
	}
	return n
}

// HasAttribute reports whether an attribute with the given full or short
// name is applied. "Test" matches "NUnit.Framework.TestAttribute".
func (m *Method) HasAttribute(name string) bool {
	for _, a := range m.Attributes {
		if a == name || a == name+"Attribute" ||
			strings.HasSuffix(a, "."+name) || strings.HasSuffix(a, "."+name+"Attribute") {
			return true
		}
	}
	return false
}

// Link sets the Next and Previous pointers of a body in order.
func Link(body []*Instruction) {
	for i, ins := range body {
		ins.Previous, ins.Next = nil, nil
		if i > 0 {
			ins.Previous = body[i-1]
		}
		if i+1 < len(body) {
			ins.Next = body[i+1]
		}
	}
}
