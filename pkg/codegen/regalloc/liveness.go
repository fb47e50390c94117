package regalloc

import (
	"fmt"

	"github.com/JoaoAMarinho/FEUP-COMP/pkg/ir"
)

// Set is a set of variable names
type Set map[string]bool

func (s Set) addAll(o Set) {
	for v := range o {
		s[v] = true
	}
}

// Liveness holds per-instruction dataflow sets keyed by instruction id
type Liveness struct {
	Def    map[int]string
	Use    map[int]Set
	In     map[int]Set
	Out    map[int]Set
	Sweeps int
}

// Analyze computes live-in and live-out sets with backward sweeps until no
// set grows. The method needs its CFG and var table.
func Analyze(m *ir.Method) (*Liveness, error) {
	lv := &Liveness{
		Def: make(map[int]string),
		Use: make(map[int]Set),
		In:  make(map[int]Set),
		Out: make(map[int]Set),
	}
	for i, inst := range m.Instructions {
		id := ir.ID(inst)
		if id != i+1 {
			return nil, fmt.Errorf("%w: %s: instruction %d not numbered", ir.ErrMalformedIR, m.Name, i)
		}
		def, use := defUse(m, inst)
		if def != "" {
			lv.Def[id] = def
		}
		lv.Use[id] = use
		lv.In[id] = Set{}
		lv.Out[id] = Set{}
	}

	for changed := true; changed; {
		changed = false
		lv.Sweeps++
		for i := len(m.Instructions) - 1; i >= 0; i-- {
			inst := m.Instructions[i]
			id := ir.ID(inst)
			in, out := lv.In[id], lv.Out[id]
			before := len(in) + len(out)

			for _, s := range ir.Successors(inst) {
				out.addAll(lv.In[s])
			}
			in.addAll(lv.Use[id])
			for v := range out {
				if v != lv.Def[id] {
					in[v] = true
				}
			}

			if len(in)+len(out) != before {
				changed = true
			}
		}
	}
	return lv, nil
}

// defUse returns the variable an instruction writes and the ones it reads,
// restricted to the var table
func defUse(m *ir.Method, inst ir.Instruction) (string, Set) {
	use := Set{}
	add := func(e ir.Element, field bool) {
		if field {
			return
		}
		for _, name := range names(e) {
			if _, ok := m.VarTable[name]; ok {
				use[name] = true
			}
		}
	}

	if assign, ok := inst.(*ir.Assign); ok {
		ir.Walk(assign.RHS, add)
		switch dest := assign.Dest.(type) {
		case *ir.Operand:
			if _, ok := m.VarTable[dest.Name]; ok {
				return dest.Name, use
			}
		case *ir.ArrayOperand:
			add(dest, false)
		}
		return "", use
	}
	ir.Walk(inst, add)
	return "", use
}

func names(e ir.Element) []string {
	switch e := e.(type) {
	case *ir.Operand:
		return []string{e.Name}
	case *ir.ArrayOperand:
		return append([]string{e.Name}, names(e.Index)...)
	}
	return nil
}
