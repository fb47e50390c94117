package optimizer

import (
	"github.com/JoaoAMarinho/FEUP-COMP/pkg/frontend"
	"github.com/JoaoAMarinho/FEUP-COMP/pkg/logger"
)

// liveness of a variable over a stretch of statements
type status int

const (
	notSeen status = iota
	used           // read before any write
	killed         // overwritten, or the method returns, before any read
)

// EliminateDeadCode simplifies constant guards and removes dead scalar
// assignments in one method declaration.
func EliminateDeadCode(t *frontend.Tree, st *frontend.SymbolTable, method frontend.NodeID) int {
	c := newCycle(t, st)
	c.method, _ = st.Method(t.Get(method, frontend.AttrName))
	c.eliminateMethod(method)
	return c.Eliminated + c.Guards
}

func (c *cycle) eliminateMethod(decl frontend.NodeID) {
	c.simplifyGuards(decl)

	t := c.tree
	for _, assign := range t.Find(decl, frontend.KindAssignStatement) {
		if !c.isDead(assign) {
			continue
		}
		rhs := t.Child(assign, 1)
		name := target(t, assign)
		if t.Is(rhs, frontend.KindMemberCall) {
			c.keepCallType(rhs, name)
			t.Remove(rhs)
			t.Replace(assign, t.ExprStmt(rhs))
		} else {
			t.Remove(assign)
		}
		c.Eliminated++
		logger.Debug("Removed dead assignment", "method", c.method.Name, "variable", name)
	}
}

// keepCallType records the assigned variable's type on a call that loses its
// assignment, so the call keeps the descriptor it was lowered with
func (c *cycle) keepCallType(call frontend.NodeID, name string) {
	t := c.tree
	if _, ok := t.Lookup(call, frontend.AttrType); ok {
		return
	}
	sym, scope, _ := c.symbols.Resolve(c.method, name)
	if scope == frontend.ScopeNone {
		return
	}
	t.Put(call, frontend.AttrType, sym.Type.Name)
	if sym.Type.IsArray {
		t.Put(call, frontend.AttrIsArray, "true")
	}
}

// isDead reports whether an assignment's value can never be read
func (c *cycle) isDead(assign frontend.NodeID) bool {
	t := c.tree
	if !c.scalar(target(t, assign), false) {
		return false
	}
	if rhs := t.Child(assign, 1); !t.Is(rhs, frontend.KindMemberCall) && hasEffects(t, rhs) {
		return false
	}

	name := target(t, assign)
	stmt := assign
	for {
		holder := t.Parent(stmt)
		if holder == frontend.NoNode {
			return false
		}
		switch t.Kind(holder) {
		case frontend.KindDoStatement:
			return false
		case frontend.KindMethodDeclaration:
			return c.scan(siblingsAfter(t, stmt), name) != used
		}
		switch c.scan(siblingsAfter(t, stmt), name) {
		case used:
			return false
		case killed:
			return true
		}
		// then/else bodies continue after their if statement
		if k := t.Kind(holder); k == frontend.KindThenStatement || k == frontend.KindElseStatement {
			holder = t.Parent(holder)
		}
		stmt = holder
	}
}

// hasEffects reports whether evaluating expr can call out or fault
func hasEffects(t *frontend.Tree, expr frontend.NodeID) bool {
	effects := false
	t.Walk(expr, func(id frontend.NodeID) bool {
		switch t.Kind(id) {
		case frontend.KindMemberCall:
			effects = true
		case frontend.KindUnaryOp:
			op := t.Get(id, frontend.AttrOp)
			effects = effects || op == frontend.OpObjInit || op == frontend.OpArrayInit || op == frontend.OpLength
		case frontend.KindBinOp:
			op := t.Get(id, frontend.AttrOp)
			effects = effects || op == frontend.OpAccess || op == frontend.OpDiv
		}
		return !effects
	})
	return effects
}

func siblingsAfter(t *frontend.Tree, stmt frontend.NodeID) []frontend.NodeID {
	idx := t.IndexOf(stmt)
	return append([]frontend.NodeID(nil), t.Children(t.Parent(stmt))[idx+1:]...)
}

func (c *cycle) scan(stmts []frontend.NodeID, name string) status {
	for _, s := range stmts {
		if st := c.scanStmt(s, name); st != notSeen {
			return st
		}
	}
	return notSeen
}

func (c *cycle) scanStmt(stmt frontend.NodeID, name string) status {
	t := c.tree
	switch t.Kind(stmt) {
	case frontend.KindAssignStatement:
		if reads(t, t.Child(stmt, 1), name) {
			return used
		}
		if target(t, stmt) == name {
			return killed
		}
	case frontend.KindArrayAssignStatement, frontend.KindExpressionStatement:
		if reads(t, stmt, name) {
			return used
		}
	case frontend.KindReturnStatement:
		if reads(t, stmt, name) {
			return used
		}
		return killed
	case frontend.KindReturnVoid:
		return killed
	case frontend.KindEnclosedStatement:
		return c.scan(t.Children(stmt), name)
	case frontend.KindIfStatement:
		if reads(t, t.Child(stmt, 0), name) {
			return used
		}
		then := c.scan(t.Children(t.Child(stmt, 1)), name)
		els := c.scan(t.Children(t.Child(stmt, 2)), name)
		switch {
		case then == used || els == used:
			return used
		case then == killed && els == killed:
			return killed
		}
	case frontend.KindLoopStatement:
		cond, body := t.Child(stmt, 0), t.Children(t.Child(stmt, 1))
		if t.Flag(stmt, frontend.AttrDoWhile) {
			if st := c.scan(body, name); st != notSeen {
				return st
			}
			if reads(t, cond, name) {
				return used
			}
			return notSeen
		}
		if reads(t, cond, name) || c.scan(body, name) == used {
			return used
		}
	}
	return notSeen
}

// reads reports whether name is read anywhere below id
func reads(t *frontend.Tree, id frontend.NodeID, name string) bool {
	found := false
	t.Walk(id, func(n frontend.NodeID) bool {
		if found {
			return false
		}
		if t.Is(n, frontend.KindIdentifier) && t.Get(n, frontend.AttrName) == name && !isClassRef(t, n) {
			// the written name of a plain assignment is not a read
			if p := t.Parent(n); !(t.Is(p, frontend.KindAssignStatement) && t.Child(p, 0) == n) {
				found = true
			}
		}
		return !found
	})
	return found
}
