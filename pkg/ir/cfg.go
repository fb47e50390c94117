package ir

import "fmt"

// BuildCFG numbers the instructions 1..n and fills in their successors
func BuildCFG(m *Method) error {
	targets := make(map[string]int, len(m.Labels))
	for _, l := range m.Labels {
		if _, dup := targets[l.Name]; dup {
			return fmt.Errorf("%w: %s: duplicate label %s", ErrMalformedIR, m.Name, l.Name)
		}
		if l.At < 0 || l.At >= len(m.Instructions) {
			return fmt.Errorf("%w: %s: label %s marks no instruction", ErrMalformedIR, m.Name, l.Name)
		}
		targets[l.Name] = l.At + 1
	}

	lookup := func(label string) (int, error) {
		id, ok := targets[label]
		if !ok {
			return 0, fmt.Errorf("%w: %s: undefined label %s", ErrMalformedIR, m.Name, label)
		}
		return id, nil
	}

	n := len(m.Instructions)
	for i, inst := range m.Instructions {
		node := inst.node()
		node.ID = i + 1
		node.Succ = node.Succ[:0]
		next := i + 2

		switch inst := inst.(type) {
		case *Goto:
			id, err := lookup(inst.Label)
			if err != nil {
				return err
			}
			node.Succ = append(node.Succ, id)
		case *CondBranch:
			id, err := lookup(inst.Label)
			if err != nil {
				return err
			}
			if next <= n {
				node.Succ = append(node.Succ, next)
			}
			if id != next {
				node.Succ = append(node.Succ, id)
			}
		case *Return:
		default:
			if next <= n {
				node.Succ = append(node.Succ, next)
			}
		}
	}
	return nil
}

// BuildVarTable assigns a register to every variable the method touches: this
// first for instance methods, then parameters, then referenced fields, then
// locals and temporaries in order of first appearance.
func BuildVarTable(m *Method) {
	m.VarTable = make(map[string]*Descriptor)
	m.VarOrder = m.VarOrder[:0]
	add := func(name string, scope Scope, typ Type) {
		if _, ok := m.VarTable[name]; ok {
			return
		}
		m.VarTable[name] = &Descriptor{Scope: scope, Register: len(m.VarOrder), Type: typ}
		m.VarOrder = append(m.VarOrder, name)
	}

	var fields, locals []*Operand
	var visit func(e Element)
	visit = func(e Element) {
		switch e := e.(type) {
		case *Operand:
			if e.Param == 0 && e.Type.Kind != This {
				locals = append(locals, e)
			}
		case *ArrayOperand:
			if e.Param == 0 {
				locals = append(locals, &Operand{Name: e.Name, Type: Type{Kind: Array, Elem: e.Type.Kind}})
			}
			visit(e.Index)
		}
	}
	for _, inst := range m.Instructions {
		Walk(inst, func(e Element, field bool) {
			if field {
				fields = append(fields, e.(*Operand))
				return
			}
			visit(e)
		})
	}

	if !m.IsStatic {
		add("this", ScopeThis, Type{Kind: This})
	}
	for _, p := range m.Params {
		add(p.Name, ScopeParameter, p.Type)
	}
	localNames := make(map[string]bool, len(locals))
	for _, l := range locals {
		localNames[l.Name] = true
	}
	for _, f := range fields {
		// a local of the same name shadows the field
		if !localNames[f.Name] {
			add(f.Name, ScopeField, f.Type)
		}
	}
	for _, l := range locals {
		add(l.Name, ScopeLocal, l.Type)
	}
}

// Walk calls fn for every element an instruction mentions, nested value
// instructions included. field is set for the field operand of getfield and
// putfield.
func Walk(inst Instruction, fn func(e Element, field bool)) {
	each := func(es ...Element) {
		for _, e := range es {
			if e != nil {
				fn(e, false)
			}
		}
	}
	switch i := inst.(type) {
	case *Assign:
		each(i.Dest)
		Walk(i.RHS, fn)
	case *Call:
		each(i.Target)
		each(i.Args...)
	case *CondBranch:
		Walk(i.Cond, fn)
	case *Return:
		each(i.Value)
	case *PutField:
		each(i.Object)
		fn(i.Field, true)
		each(i.Value)
	case *GetField:
		each(i.Object)
		fn(i.Field, true)
	case *UnaryOp:
		each(i.Operand)
	case *BinaryOp:
		each(i.Left, i.Right)
	case *SingleOp:
		each(i.Operand)
	}
}
