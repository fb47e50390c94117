package ir

import (
	"fmt"
	"strings"
)

// String renders the class as OLLIR text
func (c *ClassUnit) String() string {
	var sb strings.Builder
	for _, imp := range c.Imports {
		fmt.Fprintf(&sb, "import %s;\n", imp)
	}
	sb.WriteString("public " + c.Name)
	if c.Super != "" {
		sb.WriteString(" extends " + c.Super)
	}
	sb.WriteString(" {\n")
	for _, f := range c.Fields {
		fmt.Fprintf(&sb, "\t.field private %s.%s;\n", f.Name, f.Type)
	}
	for _, m := range c.Methods {
		sb.WriteString("\n")
		m.write(&sb)
	}
	sb.WriteString("}\n")
	return sb.String()
}

func (m *Method) String() string {
	var sb strings.Builder
	m.write(&sb)
	return sb.String()
}

func (m *Method) write(sb *strings.Builder) {
	sb.WriteString("\t.method public ")
	if m.IsStatic {
		sb.WriteString("static ")
	}
	params := make([]string, len(m.Params))
	for i, p := range m.Params {
		params[i] = p.Name + "." + p.Type.String()
	}
	fmt.Fprintf(sb, "%s(%s).%s {\n", m.Name, strings.Join(params, ", "), m.ReturnType)
	for i, inst := range m.Instructions {
		for _, l := range m.LabelsAt(i) {
			fmt.Fprintf(sb, "\t%s:\n", l)
		}
		fmt.Fprintf(sb, "\t\t%s;\n", Format(inst))
	}
	sb.WriteString("\t}\n")
}

// Format renders one instruction without the trailing semicolon
func Format(inst Instruction) string {
	switch i := inst.(type) {
	case *Assign:
		return fmt.Sprintf("%s :=.%s %s", FormatElement(i.Dest), i.Type, Format(i.RHS))
	case *Call:
		return formatCall(i)
	case *Goto:
		return "goto " + i.Label
	case *CondBranch:
		return fmt.Sprintf("if (%s) goto %s", Format(i.Cond), i.Label)
	case *Return:
		if i.Value == nil {
			return "ret.V"
		}
		return fmt.Sprintf("ret.%s %s", i.Type, FormatElement(i.Value))
	case *PutField:
		return fmt.Sprintf("putfield(%s, %s, %s).V",
			FormatElement(i.Object), FormatElement(i.Field), FormatElement(i.Value))
	case *GetField:
		return fmt.Sprintf("getfield(%s, %s).%s", FormatElement(i.Object), FormatElement(i.Field), i.Field.Type)
	case *UnaryOp:
		return fmt.Sprintf("%s.%s %s", i.Op, i.Type, FormatElement(i.Operand))
	case *BinaryOp:
		return fmt.Sprintf("%s %s.%s %s", FormatElement(i.Left), i.Op, i.Type, FormatElement(i.Right))
	case *SingleOp:
		return FormatElement(i.Operand)
	}
	return fmt.Sprintf("<%T>", inst)
}

func formatCall(c *Call) string {
	var args []string
	switch c.Kind {
	case InvokeStatic:
		args = append(args, c.Class, quote(c.Method))
	case InvokeVirtual, InvokeSpecial:
		args = append(args, FormatElement(c.Target), quote(c.Method))
	case New:
		args = append(args, c.Class)
	case NewArray:
		args = append(args, "array")
	case ArrayLength:
		args = append(args, FormatElement(c.Target))
	}
	for _, a := range c.Args {
		args = append(args, FormatElement(a))
	}
	return fmt.Sprintf("%s(%s).%s", c.Kind, strings.Join(args, ", "), c.Return)
}

func quote(s string) string { return `"` + s + `"` }

// FormatElement renders an element with its type suffix
func FormatElement(e Element) string {
	switch e := e.(type) {
	case *Literal:
		return e.Value + "." + e.Type.String()
	case *Operand:
		if e.Type.Kind == This {
			return "this"
		}
		return operandName(e) + "." + e.Type.String()
	case *ArrayOperand:
		return fmt.Sprintf("%s[%s].%s", operandName(&e.Operand), FormatElement(e.Index), e.Type)
	}
	return "?"
}

func operandName(o *Operand) string {
	if o.Param > 0 {
		return fmt.Sprintf("$%d.%s", o.Param, o.Name)
	}
	return o.Name
}
