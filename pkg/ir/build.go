// Package ir - syntax tree to OLLIR lowering
// Design: single pass per method, explicit labels, typed temporaries
package ir

import (
	"fmt"

	"github.com/JoaoAMarinho/FEUP-COMP/pkg/frontend"
	"github.com/JoaoAMarinho/FEUP-COMP/pkg/logger"
)

type Builder struct {
	symbols *frontend.SymbolTable
	tree    *frontend.Tree
	class   *ClassUnit
	fn      *methodContext
}

// methodContext is reset at the start of every method, so temp and label
// numbering never leaks between methods or compilations.
type methodContext struct {
	sym      *frontend.MethodSymbol
	method   *Method
	tempID   int
	labelID  int
	pending  []string
	reserved map[string]bool
}

func NewBuilder(symbols *frontend.SymbolTable) *Builder {
	return &Builder{symbols: symbols}
}

func (b *Builder) Build(t *frontend.Tree) (*ClassUnit, error) {
	b.tree = t
	b.class = &ClassUnit{
		Imports: append([]string(nil), b.symbols.Imports...),
		Name:    b.symbols.ClassName,
		Super:   b.symbols.Super,
	}
	for _, f := range b.symbols.Fields {
		b.class.Fields = append(b.class.Fields, &Field{Name: f.Name, Type: convertType(f.Type)})
	}

	logger.Debug("Building IR from syntax tree", "class", b.class.Name)
	if t.Root != frontend.NoNode {
		for _, decl := range t.Find(t.Root, frontend.KindMethodDeclaration) {
			name := t.Get(decl, frontend.AttrName)
			if err := b.buildMethod(decl); err != nil {
				logger.Error("Failed to build method", "name", name, "error", err)
				return nil, fmt.Errorf("method %s: %w", name, err)
			}
		}
	}
	logger.Info("IR build complete", "class", b.class.Name, "methods", len(b.class.Methods))
	return b.class, nil
}

func (b *Builder) buildMethod(decl frontend.NodeID) error {
	name := b.tree.Get(decl, frontend.AttrName)
	sym, ok := b.symbols.Method(name)
	if !ok {
		return fmt.Errorf("%w: method %q missing from symbol table", ErrUnsupported, name)
	}

	m := &Method{
		Name:       sym.Name,
		IsStatic:   sym.IsStatic,
		ReturnType: convertType(sym.ReturnType),
	}
	for i, p := range sym.Params {
		m.Params = append(m.Params, &Operand{Name: p.Name, Type: convertType(p.Type), Param: i + 1})
	}

	b.fn = &methodContext{sym: sym, method: m, tempID: 1, labelID: 1, reserved: b.declaredNames(sym)}
	for _, stmt := range frontend.MethodBody(b.tree, decl) {
		if err := b.buildStatement(stmt); err != nil {
			return err
		}
	}
	b.finishMethod()

	b.class.Methods = append(b.class.Methods, m)
	logger.LogLowering(m.Name, len(m.Instructions), b.fn.tempID-1)
	return nil
}

func (b *Builder) declaredNames(sym *frontend.MethodSymbol) map[string]bool {
	names := map[string]bool{"this": true}
	for _, s := range sym.Params {
		names[s.Name] = true
	}
	for _, s := range sym.Locals {
		names[s.Name] = true
	}
	for _, s := range b.symbols.Fields {
		names[s.Name] = true
	}
	return names
}

// finishMethod appends a return when control can fall off the end
func (b *Builder) finishMethod() {
	m := b.fn.method
	if n := len(m.Instructions); n > 0 && len(b.fn.pending) == 0 {
		if _, ok := m.Instructions[n-1].(*Return); ok {
			return
		}
	}
	ret := &Return{Type: m.ReturnType}
	if m.ReturnType.Kind != Void {
		ret.Value = zeroValue(m.ReturnType)
	}
	b.emit(ret)
}

func zeroValue(t Type) *Literal {
	if t.IsReference() {
		return &Literal{Value: "null", Type: t}
	}
	return &Literal{Value: "0", Type: t}
}

func (b *Builder) emit(insts ...Instruction) {
	m := b.fn.method
	for _, inst := range insts {
		for _, l := range b.fn.pending {
			m.Labels = append(m.Labels, Label{Name: l, At: len(m.Instructions)})
		}
		b.fn.pending = b.fn.pending[:0]
		m.Instructions = append(m.Instructions, inst)
	}
}

func (b *Builder) label(name string) {
	b.fn.pending = append(b.fn.pending, name)
}

func (b *Builder) nextLabel() int {
	n := b.fn.labelID
	b.fn.labelID++
	return n
}

func (b *Builder) newTemp(typ Type) *Operand {
	for {
		name := fmt.Sprintf("t%d", b.fn.tempID)
		b.fn.tempID++
		if !b.fn.reserved[name] {
			return &Operand{Name: name, Type: typ}
		}
	}
}

func (b *Builder) buildStatement(stmt frontend.NodeID) error {
	t := b.tree
	switch t.Kind(stmt) {
	case frontend.KindEnclosedStatement, frontend.KindThenStatement,
		frontend.KindElseStatement, frontend.KindDoStatement:
		for _, child := range t.Children(stmt) {
			if err := b.buildStatement(child); err != nil {
				return err
			}
		}
		return nil

	case frontend.KindAssignStatement:
		return b.buildAssign(stmt)

	case frontend.KindArrayAssignStatement:
		return b.buildArrayAssign(stmt)

	case frontend.KindExpressionStatement:
		pre, val, err := b.expr(t.Child(stmt, 0), TypeVoid)
		if err != nil {
			return err
		}
		b.emit(pre...)
		// only calls have effects worth keeping
		if call, ok := val.(*Call); ok {
			if call.Kind == New {
				ctor, _ := b.materialize(call)
				b.emit(ctor...)
			} else {
				b.emit(call)
			}
		}
		return nil

	case frontend.KindReturnStatement:
		ret := b.fn.method.ReturnType
		pre, el, err := b.operand(t.Child(stmt, 0), ret)
		if err != nil {
			return err
		}
		b.emit(pre...)
		b.emit(&Return{Value: el, Type: ret})
		return nil

	case frontend.KindReturnVoid:
		b.emit(&Return{Type: TypeVoid})
		return nil

	case frontend.KindIfStatement:
		return b.buildIf(stmt)

	case frontend.KindLoopStatement:
		return b.buildLoop(stmt)
	}
	line, col := t.Position(stmt)
	return fmt.Errorf("%w: statement %s at %d:%d", ErrUnsupported, t.Kind(stmt), line, col)
}

func (b *Builder) buildAssign(stmt frontend.NodeID) error {
	t := b.tree
	name := t.Get(t.Child(stmt, 0), frontend.AttrName)
	dest, field, err := b.variable(name)
	if err != nil {
		return err
	}

	if field != nil {
		pre, val, err := b.operand(t.Child(stmt, 1), field.Type)
		if err != nil {
			return err
		}
		b.emit(pre...)
		b.emit(&PutField{Object: b.this(), Field: field, Value: val})
		return nil
	}

	pre, val, err := b.expr(t.Child(stmt, 1), dest.Type)
	if err != nil {
		return err
	}
	b.emit(pre...)
	if call, ok := val.(*Call); ok && call.Return.Kind == Void {
		call.Return = dest.Type
	}
	b.emit(&Assign{Dest: dest, Type: dest.Type, RHS: val})
	if call, ok := val.(*Call); ok && call.Kind == New {
		b.emit(initCall(dest))
	}
	return nil
}

func initCall(obj *Operand) *Call {
	return &Call{Kind: InvokeSpecial, Target: obj, Method: "<init>", Return: TypeVoid}
}

func (b *Builder) buildArrayAssign(stmt frontend.NodeID) error {
	t := b.tree
	preArr, arr, err := b.arrayRef(t.Child(stmt, 0))
	if err != nil {
		return err
	}
	preIdx, idx, err := b.operand(t.Child(stmt, 1), TypeInt)
	if err != nil {
		return err
	}
	idxOp, preIdxTmp := b.asOperand(idx)
	elem := arr.Type.ElemType()
	preVal, val, err := b.operand(t.Child(stmt, 2), elem)
	if err != nil {
		return err
	}

	b.emit(preArr...)
	b.emit(preIdx...)
	b.emit(preIdxTmp...)
	b.emit(preVal...)
	dest := &ArrayOperand{Operand: Operand{Name: arr.Name, Type: elem, Param: arr.Param}, Index: idxOp}
	b.emit(&Assign{Dest: dest, Type: elem, RHS: &SingleOp{Operand: val}})
	return nil
}

func (b *Builder) buildIf(stmt frontend.NodeID) error {
	t := b.tree
	pre, cond, err := b.condition(t.Child(stmt, 0))
	if err != nil {
		return err
	}
	n := b.nextLabel()
	then, endif := fmt.Sprintf("Then%d", n), fmt.Sprintf("Endif%d", n)

	b.emit(pre...)
	b.emit(&CondBranch{Cond: cond, Label: then})
	if err := b.buildStatement(t.Child(stmt, 2)); err != nil {
		return err
	}
	b.emit(&Goto{Label: endif})
	b.label(then)
	if err := b.buildStatement(t.Child(stmt, 1)); err != nil {
		return err
	}
	b.label(endif)
	return nil
}

func (b *Builder) buildLoop(stmt frontend.NodeID) error {
	t := b.tree
	n := b.nextLabel()
	loop := fmt.Sprintf("Loop%d", n)

	if t.Flag(stmt, frontend.AttrDoWhile) {
		b.label(loop)
		if err := b.buildStatement(t.Child(stmt, 1)); err != nil {
			return err
		}
		pre, cond, err := b.condition(t.Child(stmt, 0))
		if err != nil {
			return err
		}
		b.emit(pre...)
		b.emit(&CondBranch{Cond: cond, Label: loop})
		return nil
	}

	body, end := fmt.Sprintf("Body%d", n), fmt.Sprintf("EndLoop%d", n)
	pre, cond, err := b.condition(t.Child(stmt, 0))
	if err != nil {
		return err
	}
	b.label(loop)
	b.emit(pre...)
	b.emit(&CondBranch{Cond: cond, Label: body})
	b.emit(&Goto{Label: end})
	b.label(body)
	if err := b.buildStatement(t.Child(stmt, 1)); err != nil {
		return err
	}
	b.emit(&Goto{Label: loop})
	b.label(end)
	return nil
}

// condition lowers a branch condition, keeping a top-level operator so the
// emitter can compare and branch directly
func (b *Builder) condition(id frontend.NodeID) ([]Instruction, Instruction, error) {
	pre, val, err := b.expr(id, TypeBool)
	if err != nil {
		return nil, nil, err
	}
	switch val.(type) {
	case *SingleOp, *UnaryOp, *BinaryOp:
		return pre, val, nil
	}
	more, tmp := b.materialize(val)
	return append(pre, more...), &SingleOp{Operand: tmp}, nil
}

func convertType(t frontend.Type) Type {
	kind := scalarKind(t.Name)
	if t.IsArray {
		return Type{Kind: Array, Elem: kind}
	}
	if kind == Class {
		return ClassType(t.Name)
	}
	return Type{Kind: kind}
}

func scalarKind(name string) TypeKind {
	switch name {
	case frontend.TypeInt:
		return Int32
	case frontend.TypeBoolean:
		return Boolean
	case frontend.TypeVoid:
		return Void
	case frontend.TypeString:
		return String
	}
	return Class
}
