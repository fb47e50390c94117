package compiler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/JoaoAMarinho/FEUP-COMP/pkg/frontend"
	"github.com/JoaoAMarinho/FEUP-COMP/pkg/optimizer"
)

var (
	intT  = frontend.Type{Name: frontend.TypeInt}
	boolT = frontend.Type{Name: frontend.TypeBoolean}
)

// program builds class Test with a single instance method run(int p)
func program(t *testing.T, ret frontend.Type, locals []frontend.Symbol, body func(tr *frontend.Tree) []frontend.NodeID) (*frontend.Tree, *frontend.SymbolTable) {
	t.Helper()
	tr := frontend.NewTree()
	decl := tr.Method(frontend.MethodSymbol{
		Name:       "run",
		ReturnType: ret,
		Params:     []frontend.Symbol{{Name: "p", Type: intT}},
		Locals:     locals,
	}, body(tr)...)
	tr.Program([]string{"io"}, "Test", "", nil, decl)
	st, err := frontend.BuildSymbolTable(tr)
	if err != nil {
		t.Fatalf("BuildSymbolTable: %v", err)
	}
	return tr, st
}

func compile(t *testing.T, cfg Config, ret frontend.Type, locals []frontend.Symbol, body func(tr *frontend.Tree) []frontend.NodeID) *Result {
	t.Helper()
	tr, st := program(t, ret, locals, body)
	res, err := Compile(context.Background(), tr, st, cfg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return res
}

func optimized() Config {
	cfg := DefaultConfig()
	cfg.Optimize = true
	return cfg
}

func TestOptimizedPrograms(t *testing.T) {
	tests := []struct {
		name       string
		ret        frontend.Type
		locals     []frontend.Symbol
		body       func(tr *frontend.Tree) []frontend.NodeID
		wantOLLIR  []string
		avoidOLLIR []string
		wantJasmin string
	}{
		{
			name: "folded addition",
			ret:  intT,
			body: func(tr *frontend.Tree) []frontend.NodeID {
				return []frontend.NodeID{tr.Return(tr.Bin(frontend.OpAdd, tr.Int(2), tr.Int(3)))}
			},
			wantOLLIR:  []string{"ret.i32 5.i32;"},
			avoidOLLIR: []string{"+.i32"},
			wantJasmin: "\ticonst_5\n\tireturn\n",
		},
		{
			name:   "propagated and eliminated local",
			ret:    intT,
			locals: []frontend.Symbol{{Name: "a", Type: intT}},
			body: func(tr *frontend.Tree) []frontend.NodeID {
				return []frontend.NodeID{
					tr.Assign("a", tr.Int(10)),
					tr.Return(tr.Ident("a")),
				}
			},
			wantOLLIR:  []string{"ret.i32 10.i32;"},
			avoidOLLIR: []string{"a.i32 :=.i32"},
			wantJasmin: "\tbipush 10\n\tireturn\n",
		},
		{
			name: "folded conjunction",
			ret:  boolT,
			body: func(tr *frontend.Tree) []frontend.NodeID {
				return []frontend.NodeID{tr.Return(tr.Bin(frontend.OpAnd, tr.Bool(true), tr.Bool(false)))}
			},
			wantOLLIR:  []string{"ret.bool 0.bool;"},
			avoidOLLIR: []string{"&&"},
			wantJasmin: "\ticonst_0\n\tireturn\n",
		},
		{
			name: "loop that never runs",
			ret:  intT,
			body: func(tr *frontend.Tree) []frontend.NodeID {
				return []frontend.NodeID{
					tr.While(tr.Bool(false), tr.Assign("p", tr.Bin(frontend.OpAdd, tr.Ident("p"), tr.Int(1)))),
					tr.Return(tr.Ident("p")),
				}
			},
			wantOLLIR:  []string{"ret.i32 $1.p.i32;"},
			avoidOLLIR: []string{"Loop", "goto"},
			wantJasmin: "\tiload_1\n\tireturn\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := compile(t, optimized(), tt.ret, tt.locals, tt.body)
			for _, w := range tt.wantOLLIR {
				if !strings.Contains(res.OLLIR, w) {
					t.Errorf("expected %q in OLLIR:\n%s", w, res.OLLIR)
				}
			}
			for _, w := range tt.avoidOLLIR {
				if strings.Contains(res.OLLIR, w) {
					t.Errorf("unexpected %q in OLLIR:\n%s", w, res.OLLIR)
				}
			}
			if !strings.Contains(res.Jasmin, tt.wantJasmin) {
				t.Errorf("expected %q in Jasmin:\n%s", tt.wantJasmin, res.Jasmin)
			}
			if res.Stats.Changes() == 0 {
				t.Error("expected the optimizer to report changes")
			}
		})
	}
}

func TestWithoutOptimization(t *testing.T) {
	res := compile(t, DefaultConfig(), intT, nil, func(tr *frontend.Tree) []frontend.NodeID {
		return []frontend.NodeID{tr.Return(tr.Bin(frontend.OpAdd, tr.Int(2), tr.Int(3)))}
	})
	if !strings.Contains(res.OLLIR, "2.i32 +.i32 3.i32") {
		t.Errorf("expected the addition to survive:\n%s", res.OLLIR)
	}
	if res.Stats.Changes() != 0 {
		t.Errorf("optimizer ran with optimization off: %+v", res.Stats)
	}
	if res.Allocation != nil {
		t.Error("allocation ran with registerAllocation -1")
	}
	for _, w := range []string{".class public Test", ".method public run(I)I", "iadd", ".method public <init>()V"} {
		if !strings.Contains(res.Jasmin, w) {
			t.Errorf("expected %q in:\n%s", w, res.Jasmin)
		}
	}
}

// chain assigns three locals whose live ranges only touch
func chain(tr *frontend.Tree) []frontend.NodeID {
	return []frontend.NodeID{
		tr.Assign("a", tr.Bin(frontend.OpAdd, tr.Ident("p"), tr.Int(1))),
		tr.Assign("b", tr.Bin(frontend.OpAdd, tr.Ident("a"), tr.Int(2))),
		tr.Assign("c", tr.Bin(frontend.OpAdd, tr.Ident("b"), tr.Int(3))),
		tr.Return(tr.Ident("c")),
	}
}

var chainLocals = []frontend.Symbol{{Name: "a", Type: intT}, {Name: "b", Type: intT}, {Name: "c", Type: intT}}

func TestRegisterAllocation(t *testing.T) {
	tests := []struct {
		name       string
		count      int
		allocated  bool
		wantLocals string
	}{
		{"off", -1, false, ".limit locals 5"},
		{"minimum", 0, true, ".limit locals 3"},
		{"fixed", 2, true, ".limit locals 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.RegisterAllocation = tt.count
			res := compile(t, cfg, intT, chainLocals, chain)

			if !strings.Contains(res.Jasmin, tt.wantLocals) {
				t.Errorf("expected %q in:\n%s", tt.wantLocals, res.Jasmin)
			}
			if tt.count < 0 {
				return
			}
			if len(res.Allocation) != 1 {
				t.Fatalf("expected one allocation result, got %d", len(res.Allocation))
			}
			if res.Allocation[0].Allocated != tt.allocated {
				t.Errorf("Allocated = %v, want %v", res.Allocation[0].Allocated, tt.allocated)
			}
		})
	}
}

func TestAllocationMinimumUsesOneColor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RegisterAllocation = 0
	res := compile(t, cfg, intT, chainLocals, chain)
	if got := res.Allocation[0].Colors; got != 1 {
		t.Errorf("Colors = %d, want 1", got)
	}
}

func TestCompileErrors(t *testing.T) {
	t.Run("division by zero", func(t *testing.T) {
		tr, st := program(t, intT, nil, func(tr *frontend.Tree) []frontend.NodeID {
			return []frontend.NodeID{tr.Return(tr.Bin(frontend.OpDiv, tr.Int(1), tr.Int(0)))}
		})
		_, err := Compile(context.Background(), tr, st, optimized())
		if !errors.Is(err, optimizer.ErrDivisionByZero) {
			t.Fatalf("expected ErrDivisionByZero, got %v", err)
		}
	})

	t.Run("invalid register count", func(t *testing.T) {
		tr, st := program(t, intT, nil, func(tr *frontend.Tree) []frontend.NodeID {
			return []frontend.NodeID{tr.Return(tr.Int(0))}
		})
		cfg := DefaultConfig()
		cfg.RegisterAllocation = -2
		if _, err := Compile(context.Background(), tr, st, cfg); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("canceled", func(t *testing.T) {
		tr, st := program(t, intT, nil, func(tr *frontend.Tree) []frontend.NodeID {
			return []frontend.NodeID{tr.Return(tr.Int(0))}
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := Compile(ctx, tr, st, DefaultConfig()); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("bad target", func(t *testing.T) {
		tr, st := program(t, intT, nil, func(tr *frontend.Tree) []frontend.NodeID {
			return []frontend.NodeID{tr.Return(tr.Int(0))}
		})
		cfg := DefaultConfig()
		cfg.Target = "ancient"
		if _, err := Compile(context.Background(), tr, st, cfg); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestTarget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Target = "8"
	res := compile(t, cfg, intT, nil, func(tr *frontend.Tree) []frontend.NodeID {
		return []frontend.NodeID{tr.Return(tr.Int(0))}
	})
	if !strings.HasPrefix(res.Jasmin, ".bytecode 52.0\n.class public Test\n") {
		t.Errorf("unexpected header:\n%s", res.Jasmin)
	}
}

func TestConcurrentCompilations(t *testing.T) {
	cfg := optimized()
	cfg.RegisterAllocation = 0
	want := compile(t, cfg, intT, chainLocals, chain).Jasmin

	var wg sync.WaitGroup
	outputs := make([]string, 8)
	errs := make([]error, 8)
	for i := range outputs {
		i := i
		tr, st := program(t, intT, chainLocals, chain)
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := Compile(context.Background(), tr, st, cfg)
			if err != nil {
				errs[i] = err
				return
			}
			outputs[i] = res.Jasmin
		}()
	}
	wg.Wait()

	for i := range outputs {
		if errs[i] != nil {
			t.Fatalf("compilation %d: %v", i, errs[i])
		}
		if outputs[i] != want {
			t.Errorf("compilation %d differs:\n%s\nwant:\n%s", i, outputs[i], want)
		}
	}
}

func TestCompileUnit(t *testing.T) {
	src := `{"tree": {"kind": "Start", "children": [
		{"kind": "ClassDeclaration", "attrs": {"name": "Main"}, "children": [
			{"kind": "MethodDeclaration", "attrs": {"name": "two"}, "children": [
				{"kind": "Type", "attrs": {"name": "int"}},
				{"kind": "ReturnStatement", "children": [
					{"kind": "Terminal", "attrs": {"type": "int", "image": "2"}}
				]}
			]}
		]}
	]}}`
	u, err := frontend.Decode(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	res, err := CompileUnit(context.Background(), u, DefaultConfig())
	if err != nil {
		t.Fatalf("CompileUnit: %v", err)
	}
	if !strings.Contains(res.Jasmin, ".method public two()I\n\t.limit stack 1\n\t.limit locals 1\n\ticonst_2\n\tireturn\n") {
		t.Errorf("unexpected output:\n%s", res.Jasmin)
	}
}

func TestDeadCallKeepsDescriptor(t *testing.T) {
	tests := []struct {
		name  string
		local frontend.Type
		want  string
	}{
		{"int", intT, "invokestatic io/read()I"},
		{"boolean", boolT, "invokestatic io/read()Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := func(tr *frontend.Tree) []frontend.NodeID {
				return []frontend.NodeID{
					tr.Assign("a", tr.Call(tr.Ident("io"), "read")),
					tr.Return(tr.Int(0)),
				}
			}
			locals := []frontend.Symbol{{Name: "a", Type: tt.local}}

			plain := compile(t, DefaultConfig(), intT, locals, body)
			opt := compile(t, optimized(), intT, locals, body)

			if strings.Contains(opt.OLLIR, ":=") {
				t.Errorf("assignment to a should be eliminated:\n%s", opt.OLLIR)
			}
			for name, res := range map[string]*Result{"plain": plain, "optimized": opt} {
				if !strings.Contains(res.Jasmin, tt.want+"\n") {
					t.Errorf("%s: expected %q in:\n%s", name, tt.want, res.Jasmin)
				}
			}
			if !strings.Contains(opt.Jasmin, tt.want+"\n\tpop\n") {
				t.Errorf("unused result should be popped:\n%s", opt.Jasmin)
			}
		})
	}
}
