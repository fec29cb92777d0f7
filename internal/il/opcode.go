// Package il models the subset of CIL bytecode testsmell understands:
// opcodes with their flow-control category and stack behaviour,
// instructions linked into method bodies, and method references carrying
// the parameter information call-site simulation needs.
package il

// FlowControl classifies how an instruction transfers control.
type FlowControl int

// Flow-control categories.
const (
	FlowUnknown FlowControl = iota
	FlowNext
	FlowCall
	FlowReturn
	FlowBranch
	FlowCondBranch
	FlowThrow
	FlowMeta
	FlowBreak
)

var flowNames = map[FlowControl]string{
	FlowUnknown:    "unknown",
	FlowNext:       "next",
	FlowCall:       "call",
	FlowReturn:     "return",
	FlowBranch:     "branch",
	FlowCondBranch: "cond_branch",
	FlowThrow:      "throw",
	FlowMeta:       "meta",
	FlowBreak:      "break",
}

func (f FlowControl) String() string {
	if s, ok := flowNames[f]; ok {
		return s
	}
	return "invalid"
}

// VarStack marks a pop or push count that depends on the call site.
const VarStack = -1

// OperandKind describes the inline operand an opcode carries.
type OperandKind int

// Operand kinds.
const (
	InlineNone OperandKind = iota
	InlineBrTarget
	InlineSwitch
	InlineMethod
	InlineLocal
	InlineArg
	InlineI
	InlineI8
	InlineR
	InlineString
	InlineField
	InlineType
)

// SlotAccess describes how an instruction touches an argument or local
// variable slot.
type SlotAccess int

// Slot access kinds.
const (
	SlotNone SlotAccess = iota
	SlotLoadLocal
	SlotStoreLocal
	SlotLoadArg
	SlotStoreArg
)

// OpCode is the static description of one instruction kind.
type OpCode struct {
	Name    string
	Flow    FlowControl
	Pop     int // VarStack when call-dependent
	Push    int // VarStack when call-dependent
	Operand OperandKind
	Slot    SlotAccess

	// ImplicitSlot is the slot index encoded in short forms such as
	// ldloc.2, or -1.
	ImplicitSlot int

	// Address is set for ldloca and ldarga, which push a managed
	// pointer to the slot instead of its value.
	Address bool
}

func (op *OpCode) String() string {
	return op.Name
}

// IsNewObj reports whether op constructs an object; the constructor's
// receiver is created by the instruction, not popped from the stack.
func (op *OpCode) IsNewObj() bool {
	return op == NewObj
}

// LoadsSlot reports whether op pushes a slot's value or address.
func (op *OpCode) LoadsSlot() bool {
	return op.Slot == SlotLoadLocal || op.Slot == SlotLoadArg
}

// StoresSlot reports whether op pops a value into a slot.
func (op *OpCode) StoresSlot() bool {
	return op.Slot == SlotStoreLocal || op.Slot == SlotStoreArg
}

func simple(name string, flow FlowControl, pop, push int) *OpCode {
	return &OpCode{Name: name, Flow: flow, Pop: pop, Push: push, ImplicitSlot: -1}
}

func withOperand(name string, flow FlowControl, pop, push int, kind OperandKind) *OpCode {
	op := simple(name, flow, pop, push)
	op.Operand = kind
	return op
}

func slot(name string, access SlotAccess, index int, kind OperandKind) *OpCode {
	op := simple(name, FlowNext, 0, 1)
	op.Slot = access
	op.ImplicitSlot = index
	op.Operand = kind
	if access == SlotStoreLocal || access == SlotStoreArg {
		op.Pop, op.Push = 1, 0
	}
	return op
}

func address(name string, access SlotAccess, kind OperandKind) *OpCode {
	op := slot(name, access, -1, kind)
	op.Address = true
	return op
}

// Opcodes referenced directly by the analysis.
var (
	Nop      = simple("nop", FlowNext, 0, 0)
	Ret      = simple("ret", FlowReturn, VarStack, 0)
	Call     = withOperand("call", FlowCall, VarStack, VarStack, InlineMethod)
	CallVirt = withOperand("callvirt", FlowCall, VarStack, VarStack, InlineMethod)
	NewObj   = withOperand("newobj", FlowCall, VarStack, VarStack, InlineMethod)
	Br       = withOperand("br", FlowBranch, 0, 0, InlineBrTarget)
	Switch   = withOperand("switch", FlowCondBranch, 1, 0, InlineSwitch)
	Throw    = simple("throw", FlowThrow, 1, 0)
)

var opcodes = map[string]*OpCode{}

func register(ops ...*OpCode) {
	for _, op := range ops {
		opcodes[op.Name] = op
	}
}

func init() {
	register(Nop, Ret, Call, CallVirt, NewObj, Br, Switch, Throw)
	register(
		simple("break", FlowBreak, 0, 0),
		simple("dup", FlowNext, 1, 2),
		simple("pop", FlowNext, 1, 0),
		simple("ldnull", FlowNext, 0, 1),
		simple("ldlen", FlowNext, 1, 1),
		simple("rethrow", FlowThrow, 0, 0),
		simple("endfinally", FlowReturn, 0, 0),
		withOperand("ldstr", FlowNext, 0, 1, InlineString),
		withOperand("ldc.i4", FlowNext, 0, 1, InlineI),
		withOperand("ldc.i4.s", FlowNext, 0, 1, InlineI),
		withOperand("ldc.i8", FlowNext, 0, 1, InlineI8),
		withOperand("ldc.r4", FlowNext, 0, 1, InlineR),
		withOperand("ldc.r8", FlowNext, 0, 1, InlineR),
		withOperand("ldfld", FlowNext, 1, 1, InlineField),
		withOperand("ldflda", FlowNext, 1, 1, InlineField),
		withOperand("stfld", FlowNext, 2, 0, InlineField),
		withOperand("ldsfld", FlowNext, 0, 1, InlineField),
		withOperand("ldsflda", FlowNext, 0, 1, InlineField),
		withOperand("stsfld", FlowNext, 1, 0, InlineField),
		withOperand("box", FlowNext, 1, 1, InlineType),
		withOperand("unbox.any", FlowNext, 1, 1, InlineType),
		withOperand("castclass", FlowNext, 1, 1, InlineType),
		withOperand("isinst", FlowNext, 1, 1, InlineType),
		withOperand("newarr", FlowNext, 1, 1, InlineType),
		withOperand("ldelem", FlowNext, 2, 1, InlineType),
		withOperand("stelem", FlowNext, 3, 0, InlineType),
		withOperand("initobj", FlowNext, 1, 0, InlineType),
		withOperand("ldtoken", FlowNext, 0, 1, InlineType),
		withOperand("leave", FlowBranch, 0, 0, InlineBrTarget),
		withOperand("leave.s", FlowBranch, 0, 0, InlineBrTarget),
		withOperand("br.s", FlowBranch, 0, 0, InlineBrTarget),
		withOperand("tail.", FlowMeta, 0, 0, InlineNone),
		withOperand("constrained.", FlowMeta, 0, 0, InlineType),
		withOperand("volatile.", FlowMeta, 0, 0, InlineNone),

		// Method-pointer transfers are not modelled.
		withOperand("jmp", FlowUnknown, 0, 0, InlineMethod),
		withOperand("calli", FlowUnknown, VarStack, VarStack, InlineType),
	)

	for _, name := range []string{
		"ldelem.i4", "ldelem.i8", "ldelem.r8", "ldelem.ref",
	} {
		register(simple(name, FlowNext, 2, 1))
	}
	for _, name := range []string{
		"stelem.i4", "stelem.i8", "stelem.r8", "stelem.ref",
	} {
		register(simple(name, FlowNext, 3, 0))
	}

	// Constants with the value encoded in the opcode.
	for i, name := range []string{
		"ldc.i4.m1", "ldc.i4.0", "ldc.i4.1", "ldc.i4.2", "ldc.i4.3",
		"ldc.i4.4", "ldc.i4.5", "ldc.i4.6", "ldc.i4.7", "ldc.i4.8",
	} {
		shortConstants[name] = int64(i - 1)
		register(simple(name, FlowNext, 0, 1))
	}

	// Binary and unary arithmetic, comparisons and conversions.
	for _, name := range []string{
		"add", "sub", "mul", "div", "div.un", "rem", "rem.un",
		"and", "or", "xor", "shl", "shr", "shr.un",
		"add.ovf", "sub.ovf", "mul.ovf",
		"ceq", "cgt", "cgt.un", "clt", "clt.un",
	} {
		register(simple(name, FlowNext, 2, 1))
	}
	for _, name := range []string{
		"neg", "not",
		"conv.i", "conv.i1", "conv.i2", "conv.i4", "conv.i8",
		"conv.u", "conv.u1", "conv.u2", "conv.u4", "conv.u8",
		"conv.r4", "conv.r8", "conv.r.un",
	} {
		register(simple(name, FlowNext, 1, 1))
	}

	// Conditional branches, long and short forms.
	for _, name := range []string{"brtrue", "brfalse"} {
		register(
			withOperand(name, FlowCondBranch, 1, 0, InlineBrTarget),
			withOperand(name+".s", FlowCondBranch, 1, 0, InlineBrTarget),
		)
	}
	for _, name := range []string{
		"beq", "bne.un", "bge", "bge.un", "bgt", "bgt.un",
		"ble", "ble.un", "blt", "blt.un",
	} {
		register(
			withOperand(name, FlowCondBranch, 2, 0, InlineBrTarget),
			withOperand(name+".s", FlowCondBranch, 2, 0, InlineBrTarget),
		)
	}

	// Slot access: short forms with implicit index, then .s and long
	// forms with an inline index.
	for i := range 4 {
		n := string(rune('0' + i))
		register(
			slot("ldloc."+n, SlotLoadLocal, i, InlineNone),
			slot("stloc."+n, SlotStoreLocal, i, InlineNone),
			slot("ldarg."+n, SlotLoadArg, i, InlineNone),
		)
	}
	for _, suffix := range []string{"", ".s"} {
		register(
			slot("ldloc"+suffix, SlotLoadLocal, -1, InlineLocal),
			slot("stloc"+suffix, SlotStoreLocal, -1, InlineLocal),
			slot("ldarg"+suffix, SlotLoadArg, -1, InlineArg),
			slot("starg"+suffix, SlotStoreArg, -1, InlineArg),
			address("ldloca"+suffix, SlotLoadLocal, InlineLocal),
			address("ldarga"+suffix, SlotLoadArg, InlineArg),
		)
	}
}

// shortConstants maps ldc.i4.N opcodes to the constant they push.
var shortConstants = map[string]int64{}

// Lookup returns the opcode with the given mnemonic.
func Lookup(name string) (*OpCode, bool) {
	op, ok := opcodes[name]
	return op, ok
}

// IsConstantLoad reports whether op pushes a literal (numeric, string or
// null) without consuming anything.
func (op *OpCode) IsConstantLoad() bool {
	if _, ok := shortConstants[op.Name]; ok {
		return true
	}
	switch op.Operand {
	case InlineI, InlineI8, InlineR, InlineString:
		return op.Pop == 0
	}
	return op.Name == "ldnull"
}
