package il

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSyntax is returned for listings that cannot be decoded.
var ErrSyntax = errors.New("il syntax error")

// ParseBody decodes an ILDasm-style listing into a linked instruction
// sequence. Each non-empty line holds one instruction:
//
//	IL_0000: ldc.i4.1
//	IL_0001: call void Calc::Check(int32, out int32&)
//	IL_0006: brtrue.s IL_0000
//
// A line of the form ".line 12 'CalcTests.cs'" attaches a sequence point
// to the next instruction. Text after "//" is ignored.
func ParseBody(src string) ([]*Instruction, error) {
	var (
		body     []*Instruction
		labels   = make(map[string]*Instruction)
		pending  *SequencePoint
		fixups   []fixup
		nextAuto int
	)

	for i, raw := range strings.Split(src, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(stripComment(raw))
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".line") {
			sp, err := parseSequencePoint(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			pending = sp
			continue
		}

		ins := &Instruction{Offset: nextAuto, SequencePoint: pending}
		pending = nil

		if label, rest, ok := strings.Cut(line, ":"); ok && isLabel(label) {
			off, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(label), "IL_"), 16, 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad label %q: %w", lineNo, label, ErrSyntax)
			}
			ins.Offset = int(off)
			line = strings.TrimSpace(rest)
		}
		key := ins.Label()
		if _, dup := labels[key]; dup {
			return nil, fmt.Errorf("line %d: duplicate label %s: %w", lineNo, key, ErrSyntax)
		}
		labels[key] = ins
		nextAuto = ins.Offset + 1

		mnemonic, operand, _ := strings.Cut(line, " ")
		op, ok := Lookup(mnemonic)
		if !ok {
			return nil, fmt.Errorf("line %d: unknown opcode %q: %w", lineNo, mnemonic, ErrSyntax)
		}
		ins.OpCode = op

		refs, err := parseOperand(ins, strings.TrimSpace(operand))
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", lineNo, mnemonic, err)
		}
		if len(refs) > 0 {
			fixups = append(fixups, fixup{ins: ins, line: lineNo, labels: refs})
		}
		body = append(body, ins)
	}

	for _, f := range fixups {
		targets := make([]*Instruction, len(f.labels))
		for i, l := range f.labels {
			t, ok := labels[normalizeLabel(l)]
			if !ok {
				return nil, fmt.Errorf("line %d: undefined label %s: %w", f.line, l, ErrSyntax)
			}
			targets[i] = t
		}
		if f.ins.OpCode.Operand == InlineSwitch {
			f.ins.Operand = targets
		} else {
			f.ins.Operand = targets[0]
		}
	}

	Link(body)
	return body, nil
}

type fixup struct {
	ins    *Instruction
	line   int
	labels []string
}

// parseOperand decodes the inline operand of ins. Branch labels are
// returned for later resolution.
func parseOperand(ins *Instruction, s string) ([]string, error) {
	kind := ins.OpCode.Operand
	if kind == InlineNone {
		if s != "" {
			return nil, fmt.Errorf("unexpected operand %q: %w", s, ErrSyntax)
		}
		return nil, nil
	}
	if s == "" {
		return nil, fmt.Errorf("missing operand: %w", ErrSyntax)
	}

	switch kind {
	case InlineBrTarget:
		return []string{s}, nil
	case InlineSwitch:
		inner := strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
		var refs []string
		for _, l := range strings.Split(inner, ",") {
			if l = strings.TrimSpace(l); l != "" {
				refs = append(refs, l)
			}
		}
		if len(refs) == 0 {
			return nil, fmt.Errorf("empty switch table: %w", ErrSyntax)
		}
		return refs, nil
	case InlineMethod:
		m, err := ParseMethodRef(s)
		if err != nil {
			return nil, err
		}
		ins.Operand = m
	case InlineLocal, InlineArg:
		n, err := strconv.Atoi(strings.TrimPrefix(s, "V_"))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("bad slot index %q: %w", s, ErrSyntax)
		}
		ins.Operand = n
	case InlineI, InlineI8:
		n, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("bad integer %q: %w", s, ErrSyntax)
		}
		ins.Operand = n
	case InlineR:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("bad float %q: %w", s, ErrSyntax)
		}
		ins.Operand = f
	case InlineString:
		str, err := strconv.Unquote(s)
		if err != nil {
			return nil, fmt.Errorf("bad string literal %s: %w", s, ErrSyntax)
		}
		ins.Operand = str
	default:
		ins.Operand = s
	}
	return nil, nil
}

// ParseMethodRef decodes a call operand or signature such as
//
//	instance bool Ns.Type::TryGet(string, out int32&)
func ParseMethodRef(s string) (*MethodRef, error) {
	s = strings.TrimSpace(s)
	head, tail, ok := strings.Cut(s, "::")
	if !ok {
		return nil, fmt.Errorf("method reference %q lacks '::': %w", s, ErrSyntax)
	}
	open := strings.Index(tail, "(")
	if open < 0 || !strings.HasSuffix(tail, ")") {
		return nil, fmt.Errorf("method reference %q lacks a parameter list: %w", s, ErrSyntax)
	}

	m := &MethodRef{Name: strings.TrimSpace(tail[:open])}
	if m.Name == "" {
		return nil, fmt.Errorf("method reference %q has no name: %w", s, ErrSyntax)
	}

	fields := strings.Fields(head)
	if len(fields) > 0 && fields[0] == "instance" {
		m.HasThis = true
		fields = fields[1:]
	}
	if len(fields) < 2 {
		return nil, fmt.Errorf("method reference %q needs a return type and declaring type: %w", s, ErrSyntax)
	}
	m.DeclaringType = fields[len(fields)-1]
	m.ReturnType = strings.Join(fields[:len(fields)-1], " ")

	for _, p := range splitParams(tail[open+1 : len(tail)-1]) {
		m.Parameters = append(m.Parameters, parseParam(p))
	}
	return m, nil
}

func parseParam(p string) Parameter {
	switch {
	case strings.HasPrefix(p, "out "), strings.HasPrefix(p, "[out] "):
		_, t, _ := strings.Cut(p, " ")
		return Parameter{Type: strings.TrimSuffix(strings.TrimSpace(t), "&"), Kind: ParamOut}
	case strings.HasPrefix(p, "ref "):
		return Parameter{Type: strings.TrimSuffix(strings.TrimSpace(p[4:]), "&"), Kind: ParamRef}
	case strings.HasSuffix(p, "&"):
		return Parameter{Type: strings.TrimSuffix(p, "&"), Kind: ParamRef}
	}
	return Parameter{Type: p, Kind: ParamIn}
}

// splitParams splits a parameter list on commas outside generic brackets.
func splitParams(s string) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i, r := range s {
		switch r {
		case '<', '[':
			depth++
		case '>', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if last := strings.TrimSpace(s[start:]); last != "" {
		out = append(out, last)
	}
	return out
}

func parseSequencePoint(line string) (*SequencePoint, error) {
	fields := strings.Fields(strings.TrimPrefix(line, ".line"))
	if len(fields) == 0 {
		return nil, fmt.Errorf(".line without a line number: %w", ErrSyntax)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("bad .line number %q: %w", fields[0], ErrSyntax)
	}
	sp := &SequencePoint{Line: n}
	if len(fields) > 1 {
		sp.File = strings.Trim(strings.Join(fields[1:], " "), `'"`)
	}
	return sp, nil
}

func isLabel(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "IL_") && !strings.ContainsAny(s, " \t")
}

func normalizeLabel(l string) string {
	off, err := strconv.ParseInt(strings.TrimPrefix(l, "IL_"), 16, 32)
	if err != nil {
		return l
	}
	return fmt.Sprintf("IL_%04x", off)
}

// stripComment drops a trailing // comment that is not inside a string.
func stripComment(line string) string {
	inString := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if inString {
				i++
			}
		case '"':
			inString = !inString
		case '/':
			if !inString && i+1 < len(line) && line[i+1] == '/' {
				return line[:i]
			}
		}
	}
	return line
}
