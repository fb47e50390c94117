// Constant guards - if/while statements whose condition is a literal
package optimizer

import (
	"github.com/JoaoAMarinho/FEUP-COMP/pkg/frontend"
	"github.com/JoaoAMarinho/FEUP-COMP/pkg/logger"
)

// simplifyGuards resolves every if and while with a boolean literal condition
// below decl
func (c *cycle) simplifyGuards(decl frontend.NodeID) {
	t := c.tree
	for _, id := range t.Find(decl, frontend.KindIfStatement) {
		if !isAttached(t, id, decl) {
			continue
		}
		if v, ok := c.guard(t.Child(id, 0)); ok {
			c.resolveIf(id, v)
		}
	}

	for _, id := range t.Find(decl, frontend.KindLoopStatement) {
		if !isAttached(t, id, decl) {
			continue
		}
		v, ok := c.guard(t.Child(id, 0))
		if !ok {
			continue
		}
		switch {
		case !v && !t.Flag(id, frontend.AttrDoWhile):
			t.Remove(id)
			c.Guards++
			logger.Debug("Removed loop with false guard", "method", c.method.Name)
		case v && !t.Flag(id, frontend.AttrDoWhile):
			t.Put(id, frontend.AttrDoWhile, "true")
			c.Guards++
		}
	}
}

func (c *cycle) guard(cond frontend.NodeID) (value, ok bool) {
	if !c.tree.IsLiteral(cond) || c.tree.Get(cond, frontend.AttrType) != frontend.TypeBoolean {
		return false, false
	}
	v, err := c.boolean(cond)
	return v, err == nil
}

// resolveIf replaces an if statement with the branch its guard selects
func (c *cycle) resolveIf(id frontend.NodeID, taken bool) {
	t := c.tree
	branch := t.Child(id, 2)
	if taken {
		branch = t.Child(id, 1)
	}

	body := append([]frontend.NodeID(nil), t.Children(branch)...)
	switch len(body) {
	case 0:
		t.Remove(id)
	case 1:
		t.Replace(id, body[0])
	default:
		block := t.New(frontend.KindEnclosedStatement)
		t.Append(block, body...)
		t.Replace(id, block)
	}
	c.Guards++
}

// isAttached reports whether id is still reachable from root
func isAttached(t *frontend.Tree, id, root frontend.NodeID) bool {
	for n := id; n != frontend.NoNode; n = t.Parent(n) {
		if n == root {
			return true
		}
	}
	return false
}
