// Package compiler drives a typed syntax tree through optimization, lowering,
// register allocation and Jasmin emission.
package compiler

import (
	"context"
	"fmt"
	"time"

	"github.com/JoaoAMarinho/FEUP-COMP/pkg/codegen/jasmin"
	"github.com/JoaoAMarinho/FEUP-COMP/pkg/codegen/regalloc"
	"github.com/JoaoAMarinho/FEUP-COMP/pkg/frontend"
	"github.com/JoaoAMarinho/FEUP-COMP/pkg/ir"
	"github.com/JoaoAMarinho/FEUP-COMP/pkg/logger"
	"github.com/JoaoAMarinho/FEUP-COMP/pkg/optimizer"
)

// Result holds every artifact of one compilation
type Result struct {
	Class      *ir.ClassUnit
	OLLIR      string
	Jasmin     string
	Stats      optimizer.Stats
	Allocation []regalloc.Result
	Duration   time.Duration
}

// Compile runs the whole back end over one class. The tree is rewritten in
// place when optimization is on.
func Compile(ctx context.Context, tree *frontend.Tree, st *frontend.SymbolTable, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	res := &Result{}

	if cfg.Optimize {
		stats, err := optimizer.Optimize(tree, st)
		if err != nil {
			return nil, fail("optimize", st.ClassName, err)
		}
		res.Stats = stats
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.LogPhase("lower")
	class, err := ir.NewBuilder(st).Build(tree)
	if err != nil {
		return nil, fail("lower", st.ClassName, err)
	}
	res.Class = class
	res.OLLIR = class.String()
	logger.LogPhaseComplete("lower")
	if cfg.Debug {
		logger.Debug("OLLIR", "class", class.Name, "text", res.OLLIR)
	}

	logger.LogPhase("allocate")
	if cfg.RegisterAllocation >= 0 {
		res.Allocation, err = regalloc.AllocateClass(ctx, class, cfg.RegisterAllocation)
		if err != nil {
			return nil, fail("allocate", class.Name, err)
		}
	} else {
		for _, m := range class.Methods {
			if err := ir.BuildCFG(m); err != nil {
				return nil, fail("allocate", class.Name, fmt.Errorf("method %s: %w", m.Name, err))
			}
			ir.BuildVarTable(m)
		}
	}
	logger.LogPhaseComplete("allocate")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.LogPhase("codegen")
	gen := jasmin.NewGenerator(jasmin.Config{Target: cfg.Target, Peephole: cfg.Optimize})
	res.Jasmin, err = gen.GenerateWithValidation(class)
	if err != nil {
		return nil, fail("codegen", class.Name, err)
	}
	logger.LogPhaseComplete("codegen")

	res.Duration = time.Since(start)
	return res, nil
}

func fail(phase, class string, err error) error {
	logger.LogError(phase, class, err)
	return fmt.Errorf("%s: %w", phase, err)
}

// CompileUnit compiles a decoded input unit
func CompileUnit(ctx context.Context, u *frontend.Unit, cfg Config) (*Result, error) {
	return Compile(ctx, u.Tree, u.Symbols, cfg)
}
