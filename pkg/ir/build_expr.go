package ir

import (
	"fmt"

	"github.com/JoaoAMarinho/FEUP-COMP/pkg/frontend"
)

// expr lowers an expression to the instructions that must run first and the
// value instruction. hint is the type the use site expects; it types calls
// to methods outside this class.
func (b *Builder) expr(id frontend.NodeID, hint Type) ([]Instruction, Instruction, error) {
	t := b.tree
	switch t.Kind(id) {
	case frontend.KindTerminal:
		lit, err := b.terminal(id)
		if err != nil {
			return nil, nil, err
		}
		return nil, &SingleOp{Operand: lit}, nil

	case frontend.KindIdentifier:
		name := t.Get(id, frontend.AttrName)
		v, field, err := b.variable(name)
		if err != nil {
			return nil, nil, err
		}
		if field != nil {
			return nil, &GetField{Object: b.this(), Field: field}, nil
		}
		return nil, &SingleOp{Operand: v}, nil

	case frontend.KindBinOp:
		return b.binary(id)

	case frontend.KindUnaryOp:
		return b.unary(id)

	case frontend.KindMemberCall:
		return b.call(id, hint)
	}
	return nil, nil, b.unsupported(id, "expression")
}

// operand lowers an expression to a literal or plain operand, spilling
// anything else into a temporary
func (b *Builder) operand(id frontend.NodeID, hint Type) ([]Instruction, Element, error) {
	pre, val, err := b.expr(id, hint)
	if err != nil {
		return nil, nil, err
	}
	if single, ok := val.(*SingleOp); ok {
		switch single.Operand.(type) {
		case *Literal, *Operand:
			return pre, single.Operand, nil
		}
	}
	more, tmp := b.materialize(val)
	return append(pre, more...), tmp, nil
}

// materialize stores a value in a fresh temporary. Objects are initialised
// right away; a void call used as a value is typed int.
func (b *Builder) materialize(val Instruction) ([]Instruction, *Operand) {
	typ := ValueType(val)
	if call, ok := val.(*Call); ok && typ.Kind == Void {
		call.Return = TypeInt
		typ = TypeInt
	}
	tmp := b.newTemp(typ)
	out := []Instruction{&Assign{Dest: tmp, Type: typ, RHS: val}}
	if call, ok := val.(*Call); ok && call.Kind == New {
		out = append(out, initCall(tmp))
	}
	return out, tmp
}

// asOperand turns a literal into a temporary
func (b *Builder) asOperand(el Element) (*Operand, []Instruction) {
	if op, ok := el.(*Operand); ok {
		return op, nil
	}
	pre, tmp := b.materialize(&SingleOp{Operand: el})
	return tmp, pre
}

func (b *Builder) terminal(id frontend.NodeID) (Element, error) {
	t := b.tree
	if t.Get(id, frontend.AttrImage) == "this" {
		if b.fn.sym.IsStatic {
			return nil, b.unsupported(id, "this in static method")
		}
		return b.this(), nil
	}
	switch t.Get(id, frontend.AttrType) {
	case frontend.TypeInt:
		v, err := t.Int32(id)
		if err != nil {
			return nil, b.unsupported(id, "int literal")
		}
		return &Literal{Value: fmt.Sprint(v), Type: TypeInt}, nil
	case frontend.TypeBoolean:
		if t.Get(id, frontend.AttrImage) == "true" {
			return &Literal{Value: "1", Type: TypeBool}, nil
		}
		return &Literal{Value: "0", Type: TypeBool}, nil
	}
	return nil, b.unsupported(id, "literal")
}

func (b *Builder) this() *Operand {
	return &Operand{Name: "this", Type: Type{Kind: This, Class: b.class.Name}}
}

// variable resolves a name to a local/parameter operand or a field
func (b *Builder) variable(name string) (local, field *Operand, err error) {
	sym, scope, idx := b.symbols.Resolve(b.fn.sym, name)
	typ := convertType(sym.Type)
	switch scope {
	case frontend.ScopeLocal:
		return &Operand{Name: name, Type: typ}, nil, nil
	case frontend.ScopeParam:
		return &Operand{Name: name, Type: typ, Param: idx}, nil, nil
	case frontend.ScopeField:
		return nil, &Operand{Name: name, Type: typ}, nil
	}
	return nil, nil, fmt.Errorf("%w: undefined identifier %q in %s", ErrUnsupported, name, b.fn.sym.Name)
}

// arrayRef lowers an array-valued expression to a plain operand
func (b *Builder) arrayRef(id frontend.NodeID) ([]Instruction, *Operand, error) {
	pre, el, err := b.operand(id, TypeIntList)
	if err != nil {
		return nil, nil, err
	}
	op, ok := el.(*Operand)
	if !ok || op.Type.Kind != Array {
		return nil, nil, b.unsupported(id, "array reference")
	}
	return pre, op, nil
}

var binaryOps = map[string]Operation{
	frontend.OpAnd: OpAnd,
	frontend.OpLt:  OpLt,
	frontend.OpAdd: OpAdd,
	frontend.OpSub: OpSub,
	frontend.OpMul: OpMul,
	frontend.OpDiv: OpDiv,
}

func (b *Builder) binary(id frontend.NodeID) ([]Instruction, Instruction, error) {
	t := b.tree
	opName := t.Get(id, frontend.AttrOp)

	if opName == frontend.OpAccess {
		preArr, arr, err := b.arrayRef(t.Child(id, 0))
		if err != nil {
			return nil, nil, err
		}
		preIdx, idx, err := b.operand(t.Child(id, 1), TypeInt)
		if err != nil {
			return nil, nil, err
		}
		idxOp, preTmp := b.asOperand(idx)
		pre := append(append(preArr, preIdx...), preTmp...)
		elem := &ArrayOperand{Operand: Operand{Name: arr.Name, Type: arr.Type.ElemType(), Param: arr.Param}, Index: idxOp}
		return pre, &SingleOp{Operand: elem}, nil
	}

	op, ok := binaryOps[opName]
	if !ok {
		return nil, nil, b.unsupported(id, "operator "+opName)
	}
	operandType, result := TypeInt, TypeInt
	switch op {
	case OpAnd:
		operandType, result = TypeBool, TypeBool
	case OpLt:
		result = TypeBool
	}

	preL, l, err := b.operand(t.Child(id, 0), operandType)
	if err != nil {
		return nil, nil, err
	}
	preR, r, err := b.operand(t.Child(id, 1), operandType)
	if err != nil {
		return nil, nil, err
	}
	return append(preL, preR...), &BinaryOp{Op: op, Left: l, Right: r, Type: result}, nil
}

func (b *Builder) unary(id frontend.NodeID) ([]Instruction, Instruction, error) {
	t := b.tree
	switch op := t.Get(id, frontend.AttrOp); op {
	case frontend.OpNot:
		pre, x, err := b.operand(t.Child(id, 0), TypeBool)
		if err != nil {
			return nil, nil, err
		}
		return pre, &UnaryOp{Op: OpNot, Operand: x, Type: TypeBool}, nil

	case frontend.OpLength:
		pre, arr, err := b.arrayRef(t.Child(id, 0))
		if err != nil {
			return nil, nil, err
		}
		return pre, &Call{Kind: ArrayLength, Target: arr, Return: TypeInt}, nil

	case frontend.OpArrayInit:
		pre, size, err := b.operand(t.Child(id, 0), TypeInt)
		if err != nil {
			return nil, nil, err
		}
		sizeOp, more := b.asOperand(size)
		return append(pre, more...), &Call{Kind: NewArray, Args: []Element{sizeOp}, Return: TypeIntList}, nil

	case frontend.OpObjInit:
		class := t.Get(t.Child(id, 0), frontend.AttrName)
		return nil, &Call{Kind: New, Class: class, Return: ClassType(class)}, nil

	default:
		return nil, nil, b.unsupported(id, "operator "+op)
	}
}

func (b *Builder) call(id frontend.NodeID, hint Type) ([]Instruction, Instruction, error) {
	t := b.tree
	name := t.Get(id, frontend.AttrName)
	target := t.Child(id, 0)

	var pre []Instruction
	c := &Call{Method: name}

	if t.Is(target, frontend.KindIdentifier) && b.isClassName(t.Get(target, frontend.AttrName)) {
		c.Kind = InvokeStatic
		c.Class = t.Get(target, frontend.AttrName)
	} else {
		preT, recv, err := b.operand(target, TypeVoid)
		if err != nil {
			return nil, nil, err
		}
		pre = preT
		c.Kind = InvokeVirtual
		c.Target = recv
	}

	// methods of this class have known signatures
	var sig *frontend.MethodSymbol
	if c.Kind == InvokeVirtual {
		if typ := TypeOf(c.Target); typ.Class == b.class.Name {
			sig, _ = b.symbols.Method(name)
		}
	}

	for i, arg := range t.Children(id)[1:] {
		argHint := TypeVoid
		if sig != nil && i < len(sig.Params) {
			argHint = convertType(sig.Params[i].Type)
		}
		preA, a, err := b.operand(arg, argHint)
		if err != nil {
			return nil, nil, err
		}
		pre = append(pre, preA...)
		c.Args = append(c.Args, a)
	}

	switch {
	case sig != nil:
		c.Return = convertType(sig.ReturnType)
	case t.Get(id, frontend.AttrType) != "":
		// a type pinned on the call wins over the use site
		c.Return = convertType(frontend.Type{Name: t.Get(id, frontend.AttrType), IsArray: t.Flag(id, frontend.AttrIsArray)})
	default:
		c.Return = hint
	}
	return pre, c, nil
}

// isClassName reports whether a call target names an imported class (or this
// class) rather than a variable
func (b *Builder) isClassName(name string) bool {
	if _, scope, _ := b.symbols.Resolve(b.fn.sym, name); scope != frontend.ScopeNone {
		return false
	}
	return b.symbols.HasImport(name) || name == b.class.Name
}

func (b *Builder) unsupported(id frontend.NodeID, what string) error {
	line, col := b.tree.Position(id)
	return fmt.Errorf("%w: %s (%s) at %d:%d", ErrUnsupported, what, b.tree.Kind(id), line, col)
}
