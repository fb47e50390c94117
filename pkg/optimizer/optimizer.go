// Package optimizer - syntax tree optimizations
// Design: three in-place rewrite passes run in cycles until a cycle changes nothing
package optimizer

import (
	"errors"
	"fmt"

	"github.com/JoaoAMarinho/FEUP-COMP/pkg/frontend"
	"github.com/JoaoAMarinho/FEUP-COMP/pkg/logger"
)

var (
	ErrDivisionByZero    = errors.New("division by zero")
	ErrInvalidOperand    = errors.New("invalid operand")
	ErrNegativeArraySize = errors.New("negative array size")
	ErrNoFixpoint        = errors.New("optimizer did not reach a fixpoint")
)

// MaxCycles bounds the fixpoint loop
const MaxCycles = 256

// Stats counts rewrites over a whole Optimize call
type Stats struct {
	Cycles     int
	Propagated int
	Eliminated int
	Guards     int
	Folded     int
}

// Changes is the total number of rewrites
func (s Stats) Changes() int {
	return s.Propagated + s.Eliminated + s.Guards + s.Folded
}

func (s *Stats) add(o Stats) {
	s.Propagated += o.Propagated
	s.Eliminated += o.Eliminated
	s.Guards += o.Guards
	s.Folded += o.Folded
}

// cycle is the state of one optimization cycle. Counters start at zero for
// every cycle.
type cycle struct {
	tree    *frontend.Tree
	symbols *frontend.SymbolTable
	method  *frontend.MethodSymbol
	Stats
}

func newCycle(t *frontend.Tree, st *frontend.SymbolTable) *cycle {
	return &cycle{tree: t, symbols: st}
}

// Optimize runs constant propagation, dead-code elimination and constant
// folding over every method until a full cycle makes no change.
func Optimize(t *frontend.Tree, st *frontend.SymbolTable) (Stats, error) {
	logger.LogPhase("optimize")
	var total Stats
	methods, err := methodsOf(t, st)
	if err != nil {
		return total, err
	}

	for {
		if total.Cycles >= MaxCycles {
			return total, fmt.Errorf("%w after %d cycles", ErrNoFixpoint, total.Cycles)
		}
		c := newCycle(t, st)
		for _, m := range methods {
			c.method = m.sym
			c.propagateMethod(m.decl)
		}
		logger.LogOptimization("propagation", c.Propagated)

		for _, m := range methods {
			c.method = m.sym
			c.eliminateMethod(m.decl)
		}
		logger.LogOptimization("dead-code", c.Eliminated+c.Guards)

		if err := c.fold(t.Root); err != nil {
			return total, err
		}
		logger.LogOptimization("folding", c.Folded)

		total.Cycles++
		total.add(c.Stats)
		if c.Changes() == 0 {
			break
		}
	}

	logger.Info("Optimization complete", "cycles", total.Cycles, "changes", total.Changes())
	logger.LogPhaseComplete("optimize")
	return total, nil
}

type methodDecl struct {
	decl frontend.NodeID
	sym  *frontend.MethodSymbol
}

func methodsOf(t *frontend.Tree, st *frontend.SymbolTable) ([]methodDecl, error) {
	if t.Root == frontend.NoNode {
		return nil, nil
	}
	var out []methodDecl
	for _, decl := range t.Find(t.Root, frontend.KindMethodDeclaration) {
		name := t.Get(decl, frontend.AttrName)
		sym, ok := st.Method(name)
		if !ok {
			return nil, fmt.Errorf("optimizer: method %q missing from symbol table", name)
		}
		out = append(out, methodDecl{decl: decl, sym: sym})
	}
	return out, nil
}

// scalar reports whether name resolves to an int/boolean local (or parameter,
// when withParams is set) of the current method
func (c *cycle) scalar(name string, withParams bool) bool {
	sym, scope, _ := c.symbols.Resolve(c.method, name)
	if !sym.Type.IsScalar() {
		return false
	}
	return scope == frontend.ScopeLocal || (withParams && scope == frontend.ScopeParam)
}

// statements returns a snapshot of the statements held by id
func statements(t *frontend.Tree, id frontend.NodeID) []frontend.NodeID {
	if t.Is(id, frontend.KindMethodDeclaration) {
		return frontend.MethodBody(t, id)
	}
	return append([]frontend.NodeID(nil), t.Children(id)...)
}

// target returns the identifier name written by an assignment
func target(t *frontend.Tree, assign frontend.NodeID) string {
	return t.Get(t.Child(assign, 0), frontend.AttrName)
}

// assigned collects the names written by assignments below id
func assigned(t *frontend.Tree, id frontend.NodeID) map[string]bool {
	names := make(map[string]bool)
	t.Walk(id, func(n frontend.NodeID) bool {
		if t.Is(n, frontend.KindAssignStatement) {
			names[target(t, n)] = true
		}
		return true
	})
	return names
}

// isClassRef reports whether an identifier names a class rather than a value
func isClassRef(t *frontend.Tree, id frontend.NodeID) bool {
	parent := t.Parent(id)
	return t.Is(parent, frontend.KindUnaryOp) && t.Get(parent, frontend.AttrOp) == frontend.OpObjInit
}
