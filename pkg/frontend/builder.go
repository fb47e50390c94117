package frontend

import "strconv"

// Node constructors. They produce the same shapes the parser hands over:
//
//	AssignStatement       [Identifier, expr]
//	ArrayAssignStatement  [Identifier, index, value]
//	IfStatement           [cond, ThenStatement, ElseStatement]
//	LoopStatement         [cond, DoStatement]
//	MemberCall(name)      [target, args...]
//	UnaryOp(OBJ_INIT)     [Identifier(class)]

// Int creates an int literal
func (t *Tree) Int(v int32) NodeID {
	return t.New(KindTerminal, AttrType, TypeInt, AttrImage, strconv.FormatInt(int64(v), 10))
}

// Bool creates a boolean literal
func (t *Tree) Bool(v bool) NodeID {
	return t.New(KindTerminal, AttrType, TypeBoolean, AttrImage, strconv.FormatBool(v))
}

// This creates the receiver terminal
func (t *Tree) This() NodeID {
	return t.New(KindTerminal, AttrImage, "this")
}

// Ident creates a name reference
func (t *Tree) Ident(name string) NodeID {
	return t.New(KindIdentifier, AttrName, name)
}

// Bin creates a binary operation
func (t *Tree) Bin(op string, left, right NodeID) NodeID {
	id := t.New(KindBinOp, AttrOp, op)
	t.Append(id, left, right)
	return id
}

// Unary creates a unary operation
func (t *Tree) Unary(op string, operand NodeID) NodeID {
	id := t.New(KindUnaryOp, AttrOp, op)
	t.Append(id, operand)
	return id
}

// NewObject creates `new class()`
func (t *Tree) NewObject(class string) NodeID {
	return t.Unary(OpObjInit, t.Ident(class))
}

// NewArray creates `new int[size]`
func (t *Tree) NewArray(size NodeID) NodeID {
	return t.Unary(OpArrayInit, size)
}

// Call creates target.method(args...)
func (t *Tree) Call(target NodeID, method string, args ...NodeID) NodeID {
	id := t.New(KindMemberCall, AttrName, method)
	t.Append(id, target)
	t.Append(id, args...)
	return id
}

// Assign creates name = value;
func (t *Tree) Assign(name string, value NodeID) NodeID {
	id := t.New(KindAssignStatement)
	t.Append(id, t.Ident(name), value)
	return id
}

// ArrayAssign creates name[index] = value;
func (t *Tree) ArrayAssign(name string, index, value NodeID) NodeID {
	id := t.New(KindArrayAssignStatement)
	t.Append(id, t.Ident(name), index, value)
	return id
}

// ExprStmt creates an expression statement
func (t *Tree) ExprStmt(expr NodeID) NodeID {
	id := t.New(KindExpressionStatement)
	t.Append(id, expr)
	return id
}

// Return creates return expr;
func (t *Tree) Return(expr NodeID) NodeID {
	id := t.New(KindReturnStatement)
	t.Append(id, expr)
	return id
}

// ReturnVoid creates return;
func (t *Tree) ReturnVoid() NodeID {
	return t.New(KindReturnVoid)
}

// Block creates { stmts... }
func (t *Tree) Block(stmts ...NodeID) NodeID {
	id := t.New(KindEnclosedStatement)
	t.Append(id, stmts...)
	return id
}

// If creates if (cond) then else els
func (t *Tree) If(cond NodeID, then, els []NodeID) NodeID {
	id := t.New(KindIfStatement)
	th := t.New(KindThenStatement)
	t.Append(th, then...)
	el := t.New(KindElseStatement)
	t.Append(el, els...)
	t.Append(id, cond, th, el)
	return id
}

// While creates while (cond) body
func (t *Tree) While(cond NodeID, body ...NodeID) NodeID {
	id := t.New(KindLoopStatement)
	do := t.New(KindDoStatement)
	t.Append(do, body...)
	t.Append(id, cond, do)
	return id
}

// TypeNode creates a Type node
func (t *Tree) TypeNode(typ Type) NodeID {
	id := t.New(KindType, AttrName, typ.Name)
	if typ.IsArray {
		t.Put(id, AttrIsArray, "true")
	}
	return id
}

func (t *Tree) decl(kind Kind, sym Symbol) NodeID {
	id := t.New(kind, AttrName, sym.Name)
	t.Append(id, t.TypeNode(sym.Type))
	return id
}

// VarDecl creates a field or local declaration
func (t *Tree) VarDecl(sym Symbol) NodeID { return t.decl(KindVarDeclaration, sym) }

// Method creates a method declaration with its signature, locals and body
func (t *Tree) Method(m MethodSymbol, body ...NodeID) NodeID {
	id := t.New(KindMethodDeclaration, AttrName, m.Name)
	if m.IsStatic {
		t.Put(id, AttrIsStatic, "true")
	}
	t.Append(id, t.TypeNode(m.ReturnType))
	for _, p := range m.Params {
		t.Append(id, t.decl(KindParam, p))
	}
	for _, l := range m.Locals {
		t.Append(id, t.VarDecl(l))
	}
	t.Append(id, body...)
	return id
}

// Program creates the Start node holding imports and one class, and makes it
// the root
func (t *Tree) Program(imports []string, class, super string, fields []Symbol, methods ...NodeID) NodeID {
	root := t.New(KindStart)
	for _, imp := range imports {
		t.Append(root, t.New(KindImportDeclaration, AttrName, imp))
	}
	c := t.New(KindClassDeclaration, AttrName, class)
	if super != "" {
		t.Put(c, AttrSuper, super)
	}
	for _, f := range fields {
		t.Append(c, t.VarDecl(f))
	}
	t.Append(c, methods...)
	t.Append(root, c)
	t.Root = root
	return root
}

// Int32 parses the image of an int literal
func (t *Tree) Int32(id NodeID) (int32, error) {
	v, err := strconv.ParseInt(t.Get(id, AttrImage), 10, 32)
	return int32(v), err
}
