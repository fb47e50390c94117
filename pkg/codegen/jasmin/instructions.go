// Package jasmin - OLLIR instruction templates
package jasmin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JoaoAMarinho/FEUP-COMP/pkg/ir"
)

// methodEmitter holds the state of one method; nothing is shared between
// methods
type methodEmitter struct {
	class    *ir.ClassUnit
	names    classNames
	super    string
	m        *ir.Method
	lines    []string
	stack    *stackTracker
	labelID  int
	returned bool
}

func newMethodEmitter(class *ir.ClassUnit, names classNames, super string, m *ir.Method) *methodEmitter {
	return &methodEmitter{
		class: class,
		names: names,
		super: super,
		m:     m,
		stack: newStackTracker(),
	}
}

func (e *methodEmitter) emitBody() error {
	for i, inst := range e.m.Instructions {
		for _, l := range e.m.LabelsAt(i) {
			e.label(l)
		}
		if err := e.instruction(inst); err != nil {
			return fmt.Errorf("%s: %w", ir.Format(inst), err)
		}
	}
	for _, l := range e.m.Labels {
		if l.At >= len(e.m.Instructions) {
			e.label(l.Name)
		}
	}
	if !e.returned {
		e.op("return")
		e.stack.exit()
	}
	return nil
}

func (e *methodEmitter) op(format string, args ...any) {
	e.lines = append(e.lines, "\t"+fmt.Sprintf(format, args...))
}

func (e *methodEmitter) label(name string) {
	e.stack.mark(name)
	e.lines = append(e.lines, name+":")
}

func (e *methodEmitter) nextLabel() int {
	e.labelID++
	return e.labelID
}

func (e *methodEmitter) instruction(inst ir.Instruction) error {
	switch i := inst.(type) {
	case *ir.Assign:
		return e.assign(i)

	case *ir.Call:
		pushed, err := e.call(i)
		if err != nil {
			return err
		}
		if pushed {
			e.op("pop")
			e.stack.pop(1)
		}
		return nil

	case *ir.Goto:
		e.op("goto %s", i.Label)
		e.stack.jump(i.Label)
		return nil

	case *ir.CondBranch:
		return e.condBranch(i)

	case *ir.Return:
		return e.ret(i)

	case *ir.PutField:
		if err := e.load(i.Object); err != nil {
			return err
		}
		if err := e.load(i.Value); err != nil {
			return err
		}
		ref, err := e.fieldRef(i.Object, i.Field)
		if err != nil {
			return err
		}
		e.op("putfield %s", ref)
		e.stack.pop(2)
		return nil

	case *ir.GetField, *ir.UnaryOp, *ir.BinaryOp, *ir.SingleOp:
		if err := e.value(inst); err != nil {
			return err
		}
		e.op("pop")
		e.stack.pop(1)
		return nil
	}
	return fmt.Errorf("%w: instruction %T", ErrUnsupported, inst)
}

func (e *methodEmitter) assign(a *ir.Assign) error {
	switch dest := a.Dest.(type) {
	case *ir.ArrayOperand:
		reg, err := e.register(dest.Name)
		if err != nil {
			return err
		}
		e.op("aload%s", regSuffix(reg))
		e.stack.push(1)
		if err := e.load(dest.Index); err != nil {
			return err
		}
		if err := e.value(a.RHS); err != nil {
			return err
		}
		if isIntFamily(dest.Type) {
			e.op("iastore")
		} else {
			e.op("aastore")
		}
		e.stack.pop(3)
		return nil

	case *ir.Operand:
		reg, err := e.register(dest.Name)
		if err != nil {
			return err
		}
		if c, ok := increment(dest, a.RHS); ok {
			e.op("iinc %d %d", reg, c)
			return nil
		}
		if err := e.value(a.RHS); err != nil {
			return err
		}
		prefix, err := typePrefix(dest.Type)
		if err != nil {
			return err
		}
		e.op("%sstore%s", prefix, regSuffix(reg))
		e.stack.pop(1)
		return nil
	}
	return fmt.Errorf("%w: assignment destination %T", ErrUnsupported, a.Dest)
}

// increment matches x = x + c, x = c + x and x = x - c with c a byte
func increment(dest *ir.Operand, rhs ir.Instruction) (int64, bool) {
	bin, ok := rhs.(*ir.BinaryOp)
	if !ok || dest.Type.Kind != ir.Int32 {
		return 0, false
	}
	var c int64
	switch {
	case bin.Op == ir.OpAdd && sameVar(bin.Left, dest.Name):
		c, ok = intLiteral(bin.Right)
	case bin.Op == ir.OpAdd && sameVar(bin.Right, dest.Name):
		c, ok = intLiteral(bin.Left)
	case bin.Op == ir.OpSub && sameVar(bin.Left, dest.Name):
		c, ok = intLiteral(bin.Right)
		c = -c
	default:
		return 0, false
	}
	if !ok || c < -128 || c > 127 {
		return 0, false
	}
	return c, true
}

func sameVar(el ir.Element, name string) bool {
	op, ok := el.(*ir.Operand)
	return ok && op.Name == name
}

func intLiteral(el ir.Element) (int64, bool) {
	lit, ok := el.(*ir.Literal)
	if !ok || lit.Type.Kind != ir.Int32 {
		return 0, false
	}
	v, err := strconv.ParseInt(lit.Value, 10, 32)
	return v, err == nil
}

// value emits code leaving exactly one value on the stack
func (e *methodEmitter) value(inst ir.Instruction) error {
	switch v := inst.(type) {
	case *ir.SingleOp:
		return e.load(v.Operand)

	case *ir.BinaryOp:
		return e.binary(v)

	case *ir.UnaryOp:
		if v.Op != ir.OpNot {
			return fmt.Errorf("%w: unary operator %s", ErrUnsupported, v.Op)
		}
		if err := e.load(v.Operand); err != nil {
			return err
		}
		e.op("iconst_1")
		e.op("ixor")
		e.stack.push(1)
		e.stack.pop(1)
		return nil

	case *ir.Call:
		pushed, err := e.call(v)
		if err != nil {
			return err
		}
		if !pushed {
			return fmt.Errorf("%w: void call %s used as a value", ErrUnsupported, v.Method)
		}
		return nil

	case *ir.GetField:
		if err := e.load(v.Object); err != nil {
			return err
		}
		ref, err := e.fieldRef(v.Object, v.Field)
		if err != nil {
			return err
		}
		e.op("getfield %s", ref)
		return nil
	}
	return fmt.Errorf("%w: value %T", ErrUnsupported, inst)
}

var arithmetic = map[ir.Operation]string{
	ir.OpAdd: "iadd",
	ir.OpSub: "isub",
	ir.OpMul: "imul",
	ir.OpDiv: "idiv",
}

func (e *methodEmitter) binary(b *ir.BinaryOp) error {
	if opcode, ok := arithmetic[b.Op]; ok {
		if err := e.load(b.Left); err != nil {
			return err
		}
		if err := e.load(b.Right); err != nil {
			return err
		}
		e.op("%s", opcode)
		e.stack.pop(1)
		return nil
	}

	n := e.nextLabel()
	yes, no, end := fmt.Sprintf("CmpTrue%d", n), fmt.Sprintf("CmpFalse%d", n), fmt.Sprintf("CmpEnd%d", n)
	switch b.Op {
	case ir.OpLt:
		if err := e.compare(b.Left, b.Right, yes); err != nil {
			return err
		}
		e.materialize(yes, end, "iconst_0", "iconst_1")
	case ir.OpAnd:
		if err := e.test(b.Left, "ifeq", no); err != nil {
			return err
		}
		if err := e.test(b.Right, "ifeq", no); err != nil {
			return err
		}
		e.materialize(no, end, "iconst_1", "iconst_0")
	case ir.OpOr:
		if err := e.test(b.Left, "ifne", yes); err != nil {
			return err
		}
		if err := e.test(b.Right, "ifne", yes); err != nil {
			return err
		}
		e.materialize(yes, end, "iconst_0", "iconst_1")
	default:
		return fmt.Errorf("%w: binary operator %s", ErrUnsupported, b.Op)
	}
	return nil
}

// materialize pushes direct when control falls through and taken at the
// branch target
func (e *methodEmitter) materialize(target, end, direct, taken string) {
	e.op("%s", direct)
	e.stack.push(1)
	e.op("goto %s", end)
	e.stack.jump(end)
	e.label(target)
	e.op("%s", taken)
	e.stack.push(1)
	e.label(end)
}

// compare branches to label when l < r, using the one-operand forms
// against a literal zero
func (e *methodEmitter) compare(l, r ir.Element, label string) error {
	switch {
	case isZero(r):
		return e.test(l, "iflt", label)
	case isZero(l):
		return e.test(r, "ifgt", label)
	}
	if err := e.load(l); err != nil {
		return err
	}
	if err := e.load(r); err != nil {
		return err
	}
	e.op("if_icmplt %s", label)
	e.stack.pop(2)
	e.stack.branch(label)
	return nil
}

// test loads one operand and branches on it
func (e *methodEmitter) test(el ir.Element, opcode, label string) error {
	if err := e.load(el); err != nil {
		return err
	}
	e.op("%s %s", opcode, label)
	e.stack.pop(1)
	e.stack.branch(label)
	return nil
}

func isZero(el ir.Element) bool {
	v, ok := intLiteral(el)
	return ok && v == 0
}

func (e *methodEmitter) condBranch(cb *ir.CondBranch) error {
	switch c := cb.Cond.(type) {
	case *ir.BinaryOp:
		switch c.Op {
		case ir.OpLt:
			return e.compare(c.Left, c.Right, cb.Label)
		case ir.OpAnd:
			skip := fmt.Sprintf("CmpEnd%d", e.nextLabel())
			if err := e.test(c.Left, "ifeq", skip); err != nil {
				return err
			}
			if err := e.test(c.Right, "ifne", cb.Label); err != nil {
				return err
			}
			e.label(skip)
			return nil
		case ir.OpOr:
			if err := e.test(c.Left, "ifne", cb.Label); err != nil {
				return err
			}
			return e.test(c.Right, "ifne", cb.Label)
		}

	case *ir.UnaryOp:
		if c.Op == ir.OpNot {
			return e.test(c.Operand, "ifeq", cb.Label)
		}

	case *ir.SingleOp:
		if lit, ok := c.Operand.(*ir.Literal); ok && lit.Type.Kind == ir.Boolean {
			if lit.Value != "0" {
				e.op("goto %s", cb.Label)
				e.stack.jump(cb.Label)
			}
			return nil
		}
		return e.test(c.Operand, "ifne", cb.Label)
	}

	if err := e.value(cb.Cond); err != nil {
		return err
	}
	e.op("ifne %s", cb.Label)
	e.stack.pop(1)
	e.stack.branch(cb.Label)
	return nil
}

func (e *methodEmitter) ret(r *ir.Return) error {
	e.returned = true
	if r.Value == nil {
		e.op("return")
		e.stack.exit()
		return nil
	}
	if err := e.load(r.Value); err != nil {
		return err
	}
	typ := r.Type
	if typ.Kind == ir.Void {
		typ = ir.TypeOf(r.Value)
	}
	prefix, err := typePrefix(typ)
	if err != nil {
		return err
	}
	e.op("%sreturn", prefix)
	e.stack.exit()
	return nil
}

// call emits an invocation and reports whether it left a value
func (e *methodEmitter) call(c *ir.Call) (bool, error) {
	switch c.Kind {
	case ir.InvokeVirtual, ir.InvokeSpecial:
		if c.Target == nil {
			return false, fmt.Errorf("%w: %s without a receiver", ErrUnsupported, c.Kind)
		}
		if err := e.load(c.Target); err != nil {
			return false, err
		}
		owner, err := e.owner(ir.TypeOf(c.Target))
		if err != nil {
			return false, err
		}
		if c.Kind == ir.InvokeSpecial && ir.TypeOf(c.Target).Kind == ir.This {
			owner = e.super
		}
		return e.invoke(c.Kind.String(), owner, c, 1)

	case ir.InvokeStatic:
		owner := e.class.Name
		if c.Class != "" {
			owner = e.names.qualify(c.Class)
		}
		return e.invoke("invokestatic", owner, c, 0)

	case ir.New:
		class := c.Class
		if class == "" {
			class = c.Return.Class
		}
		if class == "" {
			return false, fmt.Errorf("%w: new without a class", ErrUnsupported)
		}
		e.op("new %s", e.names.qualify(class))
		e.stack.push(1)
		return true, nil

	case ir.NewArray:
		if len(c.Args) != 1 {
			return false, fmt.Errorf("%w: new array with %d dimensions", ErrUnsupported, len(c.Args))
		}
		if err := e.load(c.Args[0]); err != nil {
			return false, err
		}
		switch c.Return.Elem {
		case ir.Int32:
			e.op("newarray int")
		case ir.Boolean:
			e.op("newarray boolean")
		case ir.String:
			e.op("anewarray java/lang/String")
		default:
			return false, fmt.Errorf("%w: array of %s", ErrUnsupported, c.Return.ElemType())
		}
		return true, nil

	case ir.ArrayLength:
		if c.Target == nil {
			return false, fmt.Errorf("%w: arraylength without an array", ErrUnsupported)
		}
		if err := e.load(c.Target); err != nil {
			return false, err
		}
		e.op("arraylength")
		return true, nil
	}
	return false, fmt.Errorf("%w: call kind %s", ErrUnsupported, c.Kind)
}

func (e *methodEmitter) invoke(opcode, owner string, c *ir.Call, receivers int) (bool, error) {
	types := make([]ir.Type, len(c.Args))
	for i, arg := range c.Args {
		if err := e.load(arg); err != nil {
			return false, err
		}
		types[i] = ir.TypeOf(arg)
	}
	desc, err := e.names.methodDescriptor(types, c.Return)
	if err != nil {
		return false, err
	}
	e.op("%s %s/%s%s", opcode, owner, c.Method, desc)
	e.stack.pop(receivers + len(c.Args))
	if c.Return.Kind == ir.Void {
		return false, nil
	}
	e.stack.push(1)
	return true, nil
}

// owner returns the internal name of the class a receiver belongs to
func (e *methodEmitter) owner(t ir.Type) (string, error) {
	switch t.Kind {
	case ir.This:
		return e.class.Name, nil
	case ir.Class:
		if t.Class != "" {
			return e.names.qualify(t.Class), nil
		}
	case ir.String:
		return "java/lang/String", nil
	}
	return "", fmt.Errorf("%w: receiver of type %s", ErrUnsupported, t)
}

func (e *methodEmitter) fieldRef(object ir.Element, field *ir.Operand) (string, error) {
	owner, err := e.owner(ir.TypeOf(object))
	if err != nil {
		return "", err
	}
	desc, err := e.names.descriptor(field.Type)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s %s", owner, field.Name, desc), nil
}

// load pushes an element
func (e *methodEmitter) load(el ir.Element) error {
	switch v := el.(type) {
	case *ir.Literal:
		return e.literal(v)

	case *ir.ArrayOperand:
		reg, err := e.register(v.Name)
		if err != nil {
			return err
		}
		e.op("aload%s", regSuffix(reg))
		e.stack.push(1)
		if err := e.load(v.Index); err != nil {
			return err
		}
		if isIntFamily(v.Type) {
			e.op("iaload")
		} else {
			e.op("aaload")
		}
		e.stack.pop(1)
		return nil

	case *ir.Operand:
		if v.Type.Kind == ir.This {
			if e.m.IsStatic {
				return fmt.Errorf("%w: this in static method", ErrUnsupported)
			}
			e.op("aload_0")
			e.stack.push(1)
			return nil
		}
		reg, err := e.register(v.Name)
		if err != nil {
			return err
		}
		prefix, err := typePrefix(v.Type)
		if err != nil {
			return err
		}
		e.op("%sload%s", prefix, regSuffix(reg))
		e.stack.push(1)
		return nil
	}
	return fmt.Errorf("%w: element %T", ErrUnsupported, el)
}

func (e *methodEmitter) literal(l *ir.Literal) error {
	if l.Value == "null" {
		e.op("aconst_null")
		e.stack.push(1)
		return nil
	}
	switch l.Type.Kind {
	case ir.Int32, ir.Boolean:
		v, err := strconv.ParseInt(l.Value, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: literal %q", ErrUnsupported, l.Value)
		}
		e.op("%s", pushInt(v))
	case ir.String:
		s := l.Value
		if !strings.HasPrefix(s, `"`) {
			s = strconv.Quote(s)
		}
		e.op("ldc %s", s)
	default:
		return fmt.Errorf("%w: literal of type %s", ErrUnsupported, l.Type)
	}
	e.stack.push(1)
	return nil
}

// pushInt picks the shortest instruction that pushes v
func pushInt(v int64) string {
	switch {
	case v == -1:
		return "iconst_m1"
	case v >= 0 && v <= 5:
		return fmt.Sprintf("iconst_%d", v)
	case v >= -128 && v <= 127:
		return fmt.Sprintf("bipush %d", v)
	case v >= -32768 && v <= 32767:
		return fmt.Sprintf("sipush %d", v)
	}
	return fmt.Sprintf("ldc %d", v)
}

func (e *methodEmitter) register(name string) (int, error) {
	d, ok := e.m.VarTable[name]
	if !ok || d.Scope == ir.ScopeField {
		return 0, fmt.Errorf("%w: variable %s has no register", ErrUnsupported, name)
	}
	return d.Register, nil
}

// regSuffix uses the short form for registers 0..3
func regSuffix(reg int) string {
	if reg <= 3 {
		return fmt.Sprintf("_%d", reg)
	}
	return fmt.Sprintf(" %d", reg)
}

func isIntFamily(t ir.Type) bool {
	return t.Kind == ir.Int32 || t.Kind == ir.Boolean
}

func typePrefix(t ir.Type) (string, error) {
	switch {
	case isIntFamily(t):
		return "i", nil
	case t.IsReference():
		return "a", nil
	}
	return "", fmt.Errorf("%w: value of type %s", ErrUnsupported, t)
}
