// Package regalloc maps OLLIR variables onto JVM local variable slots.
//
// Design: backward liveness over instruction ids, half-open live ranges, and
// graph coloring of the locals above a reserved floor holding this, the
// parameters and the fields. There is no spilling: a fixed register count
// that cannot be met leaves the method unallocated.
package regalloc

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/JoaoAMarinho/FEUP-COMP/pkg/ir"
	"github.com/JoaoAMarinho/FEUP-COMP/pkg/logger"
)

var ErrInvalidCount = errors.New("invalid register count")

// Interval is a half-open range [Start, End) of instruction ids
type Interval struct {
	Start int
	End   int
}

// Overlaps reports whether two ranges share an id. Touching ranges do not.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// LiveRanges returns the ranges of every variable with a live point. A point
// is an id where the variable is live-out or defined; consecutive points merge.
func LiveRanges(m *ir.Method, lv *Liveness) map[string][]Interval {
	ranges := make(map[string][]Interval)
	for i := range m.Instructions {
		id := i + 1
		points := make(map[string]bool, len(lv.Out[id])+1)
		for v := range lv.Out[id] {
			points[v] = true
		}
		if d, ok := lv.Def[id]; ok {
			points[d] = true
		}

		for v := range points {
			rs := ranges[v]
			if n := len(rs); n > 0 && rs[n-1].End == id {
				rs[n-1].End = id + 1
				continue
			}
			ranges[v] = append(rs, Interval{Start: id, End: id + 1})
		}
	}
	return ranges
}

// Result describes the allocation of one method
type Result struct {
	Method    string
	Allocated bool
	Colors    int // registers given to locals
	Registers int // slots used by the whole var table
	Sweeps    int
}

// AllocateMethod colors the locals of a method whose CFG and var table are
// built. k == 0 searches for the smallest count that works; k > 0 uses
// exactly k registers and reports Allocated false when that is impossible.
func AllocateMethod(m *ir.Method, k int) (Result, error) {
	res := Result{Method: m.Name}
	if k < 0 {
		return res, fmt.Errorf("%w: %d", ErrInvalidCount, k)
	}
	if m.VarTable == nil {
		return res, fmt.Errorf("%w: %s: var table not built", ir.ErrMalformedIR, m.Name)
	}

	lv, err := Analyze(m)
	if err != nil {
		return res, err
	}
	res.Sweeps = lv.Sweeps

	floor := 0
	for _, name := range m.VarOrder {
		if m.VarTable[name].Scope != ir.ScopeLocal {
			floor++
		}
	}

	g := NewInterferenceGraph(m, LiveRanges(m, lv))
	colors, ok := g.Color(k, floor)
	if k == 0 {
		// len(g.order) colors always suffice
		for !ok {
			k++
			colors, ok = g.Color(k, floor)
		}
	}
	if !ok {
		logger.Warn("Register allocation failed",
			"method", m.Name,
			"registers", k,
			"locals", len(g.order))
		res.Registers = registerCount(m)
		return res, nil
	}

	reserved := 0
	for _, name := range m.VarOrder {
		d := m.VarTable[name]
		if d.Scope == ir.ScopeLocal {
			d.Register = colors[name]
			continue
		}
		d.Register = reserved
		reserved++
	}

	res.Allocated = true
	res.Colors = k
	res.Registers = registerCount(m)
	logger.LogAllocation(m.Name, k, res.Registers)
	return res, nil
}

func registerCount(m *ir.Method) int {
	n := 0
	for _, d := range m.VarTable {
		if d.Register+1 > n {
			n = d.Register + 1
		}
	}
	return n
}

// AllocateClass builds the CFG and var table of every method, then allocates
// the methods concurrently. Results come back in method order.
func AllocateClass(ctx context.Context, class *ir.ClassUnit, k int) ([]Result, error) {
	for _, m := range class.Methods {
		if err := ir.BuildCFG(m); err != nil {
			return nil, fmt.Errorf("class %s: %w", class.Name, err)
		}
		ir.BuildVarTable(m)
	}

	results := make([]Result, len(class.Methods))
	g, ctx := errgroup.WithContext(ctx)
	for i, m := range class.Methods {
		i, m := i, m
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := AllocateMethod(m, k)
			if err != nil {
				return fmt.Errorf("method %s: %w", m.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Debug("Register allocation complete", "class", class.Name, "methods", len(results))
	return results, nil
}
