package optimizer

import (
	"github.com/JoaoAMarinho/FEUP-COMP/pkg/frontend"
)

// constant is a literal value known for a variable
type constant struct {
	typ, image string
}

type env map[string]constant

func (e env) clone() env {
	out := make(env, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

func (e env) without(names map[string]bool) env {
	out := make(env, len(e))
	for k, v := range e {
		if !names[k] {
			out[k] = v
		}
	}
	return out
}

// PropagateConstants substitutes known literal values of scalar locals and
// parameters into later reads within one method declaration.
func PropagateConstants(t *frontend.Tree, st *frontend.SymbolTable, method frontend.NodeID) int {
	c := newCycle(t, st)
	c.method, _ = st.Method(t.Get(method, frontend.AttrName))
	c.propagateMethod(method)
	return c.Propagated
}

func (c *cycle) propagateMethod(decl frontend.NodeID) {
	c.propagateList(decl, env{})
}

// propagateList walks a straight-line statement list, updating e as
// assignments are seen
func (c *cycle) propagateList(holder frontend.NodeID, e env) {
	for _, stmt := range statements(c.tree, holder) {
		c.propagateStmt(stmt, e)
	}
}

func (c *cycle) propagateStmt(stmt frontend.NodeID, e env) {
	t := c.tree
	switch t.Kind(stmt) {
	case frontend.KindAssignStatement:
		c.substitute(t.Child(stmt, 1), e)
		name := target(t, stmt)
		if !c.scalar(name, true) {
			return
		}
		if rhs := t.Child(stmt, 1); t.IsLiteral(rhs) {
			e[name] = constant{typ: t.Get(rhs, frontend.AttrType), image: t.Get(rhs, frontend.AttrImage)}
		} else {
			delete(e, name)
		}

	case frontend.KindArrayAssignStatement:
		c.substitute(t.Child(stmt, 1), e)
		c.substitute(t.Child(stmt, 2), e)

	case frontend.KindExpressionStatement, frontend.KindReturnStatement:
		c.substitute(t.Child(stmt, 0), e)

	case frontend.KindEnclosedStatement:
		c.propagateList(stmt, e)

	case frontend.KindIfStatement:
		c.substitute(t.Child(stmt, 0), e)
		c.propagateList(t.Child(stmt, 1), e.clone())
		c.propagateList(t.Child(stmt, 2), e.clone())
		for name := range assigned(t, stmt) {
			delete(e, name)
		}

	case frontend.KindLoopStatement:
		written := assigned(t, stmt)
		inner := e.without(written)
		c.substitute(t.Child(stmt, 0), inner)
		c.propagateList(t.Child(stmt, 1), inner)
		for name := range written {
			delete(e, name)
		}
	}
}

// substitute replaces reads of known names below expr with literals
func (c *cycle) substitute(expr frontend.NodeID, e env) {
	if expr == frontend.NoNode || len(e) == 0 {
		return
	}
	t := c.tree
	var reads []frontend.NodeID
	t.Walk(expr, func(id frontend.NodeID) bool {
		if t.Is(id, frontend.KindIdentifier) && !isClassRef(t, id) {
			if _, ok := e[t.Get(id, frontend.AttrName)]; ok {
				reads = append(reads, id)
			}
		}
		return true
	})
	for _, id := range reads {
		k := e[t.Get(id, frontend.AttrName)]
		t.Replace(id, c.literal(id, k.typ, k.image))
		c.Propagated++
	}
}
