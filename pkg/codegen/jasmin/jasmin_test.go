// Package jasmin - Unit tests for Jasmin generation
package jasmin

import (
	"errors"
	"strings"
	"testing"

	"github.com/JoaoAMarinho/FEUP-COMP/pkg/ir"
)

func intLit(v string) *ir.Literal { return &ir.Literal{Value: v, Type: ir.TypeInt} }

func boolLit(v string) *ir.Literal { return &ir.Literal{Value: v, Type: ir.TypeBool} }

func param(name string, typ ir.Type, pos int) *ir.Operand {
	return &ir.Operand{Name: name, Type: typ, Param: pos}
}

func local(name string, typ ir.Type) *ir.Operand { return &ir.Operand{Name: name, Type: typ} }

func this() *ir.Operand { return &ir.Operand{Name: "this", Type: ir.Type{Kind: ir.This, Class: "Test"}} }

func testClass(methods ...*ir.Method) *ir.ClassUnit {
	return &ir.ClassUnit{
		Imports: []string{"io", "util.pkg.Helper"},
		Name:    "Test",
		Fields:  []*ir.Field{{Name: "f", Type: ir.TypeInt}},
		Methods: methods,
	}
}

// generate emits the class and checks it with the stack simulator
func generate(t *testing.T, class *ir.ClassUnit) string {
	t.Helper()
	g := NewGenerator(Config{Peephole: true})
	out, err := g.GenerateWithValidation(class)
	if err != nil {
		t.Fatalf("GenerateWithValidation: %v\n%s", err, out)
	}
	for _, r := range g.validator.Reports() {
		if r.MaxStack != r.LimitStack {
			t.Errorf("%s: .limit stack %d, simulated %d", r.Name, r.LimitStack, r.MaxStack)
		}
	}
	return out
}

func wantAll(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("expected %q in:\n%s", w, out)
		}
	}
}

func TestPushInt(t *testing.T) {
	tests := []struct {
		value int64
		want  string
	}{
		{-1, "iconst_m1"},
		{0, "iconst_0"},
		{5, "iconst_5"},
		{6, "bipush 6"},
		{-2, "bipush -2"},
		{127, "bipush 127"},
		{128, "sipush 128"},
		{-129, "sipush -129"},
		{32767, "sipush 32767"},
		{32768, "ldc 32768"},
		{-40000, "ldc -40000"},
	}
	for _, tt := range tests {
		if got := pushInt(tt.value); got != tt.want {
			t.Errorf("pushInt(%d) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestGenerateClass(t *testing.T) {
	p := param("p", ir.TypeInt, 1)
	a := local("a", ir.TypeInt)
	run := &ir.Method{
		Name:       "run",
		Params:     []*ir.Operand{p},
		ReturnType: ir.TypeInt,
		Instructions: []ir.Instruction{
			&ir.Assign{Dest: a, Type: ir.TypeInt, RHS: &ir.BinaryOp{Op: ir.OpMul, Left: p, Right: intLit("7"), Type: ir.TypeInt}},
			&ir.Return{Value: a, Type: ir.TypeInt},
		},
	}
	main := &ir.Method{
		Name:       "main",
		IsStatic:   true,
		Params:     []*ir.Operand{param("args", ir.Type{Kind: ir.Array, Elem: ir.String}, 1)},
		ReturnType: ir.TypeVoid,
		Instructions: []ir.Instruction{
			&ir.Call{Kind: ir.InvokeStatic, Class: "io", Method: "println", Args: []ir.Element{intLit("1")}, Return: ir.TypeVoid},
		},
	}

	out := generate(t, testClass(run, main))
	wantAll(t, out,
		".class public Test\n.super java/lang/Object\n",
		".field private f I",
		".method public run(I)I\n\t.limit stack 2\n\t.limit locals 3\n",
		"\tiload_1\n\tbipush 7\n\timul\n\tistore_2\n\tiload_2\n\tireturn\n",
		".method public static main([Ljava/lang/String;)V",
		"\ticonst_1\n\tinvokestatic io/println(I)V\n\treturn\n",
		".method public <init>()V",
		"invokespecial java/lang/Object/<init>()V",
	)
	if strings.Count(out, "<init>()V\n") != 2 {
		t.Errorf("default constructor must be emitted once:\n%s", out)
	}
}

func TestRegisterForms(t *testing.T) {
	var insts []ir.Instruction
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		insts = append(insts, &ir.Assign{Dest: local(name, ir.TypeInt), Type: ir.TypeInt,
			RHS: &ir.SingleOp{Operand: intLit("2")}})
	}
	insts = append(insts, &ir.Return{Value: local("e", ir.TypeInt), Type: ir.TypeInt})
	m := &ir.Method{Name: "regs", IsStatic: true, ReturnType: ir.TypeInt, Instructions: insts}

	out := generate(t, testClass(m))
	wantAll(t, out, "istore_0", "istore_3", "istore 4", "iload 4", ".limit locals 5")
}

func TestIncrement(t *testing.T) {
	tests := []struct {
		name string
		rhs  func(p *ir.Operand) ir.Instruction
		want string
	}{
		{"x + c", func(p *ir.Operand) ir.Instruction {
			return &ir.BinaryOp{Op: ir.OpAdd, Left: p, Right: intLit("1"), Type: ir.TypeInt}
		}, "iinc 1 1"},
		{"c + x", func(p *ir.Operand) ir.Instruction {
			return &ir.BinaryOp{Op: ir.OpAdd, Left: intLit("100"), Right: p, Type: ir.TypeInt}
		}, "iinc 1 100"},
		{"x - c", func(p *ir.Operand) ir.Instruction {
			return &ir.BinaryOp{Op: ir.OpSub, Left: p, Right: intLit("3"), Type: ir.TypeInt}
		}, "iinc 1 -3"},
		{"out of range", func(p *ir.Operand) ir.Instruction {
			return &ir.BinaryOp{Op: ir.OpAdd, Left: p, Right: intLit("200"), Type: ir.TypeInt}
		}, "sipush 200\n\tiadd\n\tistore_1"},
		{"c - x is not an increment", func(p *ir.Operand) ir.Instruction {
			return &ir.BinaryOp{Op: ir.OpSub, Left: intLit("3"), Right: p, Type: ir.TypeInt}
		}, "iconst_3\n\tiload_1\n\tisub"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := param("p", ir.TypeInt, 1)
			m := &ir.Method{
				Name:       "inc",
				Params:     []*ir.Operand{p},
				ReturnType: ir.TypeInt,
				Instructions: []ir.Instruction{
					&ir.Assign{Dest: p, Type: ir.TypeInt, RHS: tt.rhs(p)},
					&ir.Return{Value: p, Type: ir.TypeInt},
				},
			}
			wantAll(t, generate(t, testClass(m)), tt.want)
		})
	}
}

func TestIncrementByZeroIsDropped(t *testing.T) {
	p := param("p", ir.TypeInt, 1)
	m := &ir.Method{
		Name:       "same",
		Params:     []*ir.Operand{p},
		ReturnType: ir.TypeInt,
		Instructions: []ir.Instruction{
			&ir.Assign{Dest: p, Type: ir.TypeInt, RHS: &ir.BinaryOp{Op: ir.OpAdd, Left: p, Right: intLit("0"), Type: ir.TypeInt}},
			&ir.Return{Value: p, Type: ir.TypeInt},
		},
	}
	if out := generate(t, testClass(m)); strings.Contains(out, "iinc") {
		t.Errorf("iinc by zero should be removed:\n%s", out)
	}
}

// branchMethod returns 1 when cond holds, else 0
func branchMethod(params []*ir.Operand, cond ir.Instruction) *ir.Method {
	return &ir.Method{
		Name:       "test",
		Params:     params,
		ReturnType: ir.TypeInt,
		Instructions: []ir.Instruction{
			&ir.CondBranch{Cond: cond, Label: "Then1"},
			&ir.Return{Value: intLit("0"), Type: ir.TypeInt},
			&ir.Return{Value: intLit("1"), Type: ir.TypeInt},
		},
		Labels: []ir.Label{{Name: "Then1", At: 2}},
	}
}

func TestConditionalBranches(t *testing.T) {
	p, q := param("p", ir.TypeInt, 1), param("q", ir.TypeInt, 2)
	x, y := param("x", ir.TypeBool, 1), param("y", ir.TypeBool, 2)
	ints, bools := []*ir.Operand{p, q}, []*ir.Operand{x, y}

	tests := []struct {
		name   string
		params []*ir.Operand
		cond   ir.Instruction
		want   string
	}{
		{"less than", ints, &ir.BinaryOp{Op: ir.OpLt, Left: p, Right: q, Type: ir.TypeBool},
			"\tiload_1\n\tiload_2\n\tif_icmplt Then1\n"},
		{"less than zero", ints, &ir.BinaryOp{Op: ir.OpLt, Left: p, Right: intLit("0"), Type: ir.TypeBool},
			"\tiload_1\n\tiflt Then1\n"},
		{"zero less than", ints, &ir.BinaryOp{Op: ir.OpLt, Left: intLit("0"), Right: q, Type: ir.TypeBool},
			"\tiload_2\n\tifgt Then1\n"},
		{"and", bools, &ir.BinaryOp{Op: ir.OpAnd, Left: x, Right: y, Type: ir.TypeBool},
			"\tiload_1\n\tifeq CmpEnd1\n\tiload_2\n\tifne Then1\nCmpEnd1:\n"},
		{"or", bools, &ir.BinaryOp{Op: ir.OpOr, Left: x, Right: y, Type: ir.TypeBool},
			"\tiload_1\n\tifne Then1\n\tiload_2\n\tifne Then1\n"},
		{"not", bools, &ir.UnaryOp{Op: ir.OpNot, Operand: x, Type: ir.TypeBool},
			"\tiload_1\n\tifeq Then1\n"},
		{"single operand", bools, &ir.SingleOp{Operand: y},
			"\tiload_2\n\tifne Then1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := generate(t, testClass(branchMethod(tt.params, tt.cond)))
			wantAll(t, out, tt.want, "Then1:\n\ticonst_1\n\tireturn")
		})
	}
}

func TestConstantCondition(t *testing.T) {
	p := param("p", ir.TypeInt, 1)
	m := &ir.Method{
		Name:       "spin",
		Params:     []*ir.Operand{p},
		ReturnType: ir.TypeVoid,
		Instructions: []ir.Instruction{
			&ir.Assign{Dest: p, Type: ir.TypeInt, RHS: &ir.BinaryOp{Op: ir.OpAdd, Left: p, Right: intLit("1"), Type: ir.TypeInt}},
			&ir.CondBranch{Cond: &ir.SingleOp{Operand: boolLit("1")}, Label: "Loop1"},
			&ir.Return{Type: ir.TypeVoid},
		},
		Labels: []ir.Label{{Name: "Loop1", At: 0}},
	}
	out := generate(t, testClass(m))
	wantAll(t, out, "Loop1:\n\tiinc 1 1\n\tgoto Loop1\n")
	if strings.Contains(out, "ifne") {
		t.Errorf("a constant condition needs no test:\n%s", out)
	}
}

func TestBooleanValues(t *testing.T) {
	p, q := param("p", ir.TypeInt, 1), param("q", ir.TypeInt, 2)
	b := local("b", ir.TypeBool)
	tests := []struct {
		name string
		rhs  ir.Instruction
		want string
	}{
		{"less than", &ir.BinaryOp{Op: ir.OpLt, Left: p, Right: q, Type: ir.TypeBool},
			"\tif_icmplt CmpTrue1\n\ticonst_0\n\tgoto CmpEnd1\nCmpTrue1:\n\ticonst_1\nCmpEnd1:\n\tistore_3\n"},
		{"and", &ir.BinaryOp{Op: ir.OpAnd, Left: boolLit("1"), Right: boolLit("0"), Type: ir.TypeBool},
			"\tifeq CmpFalse1\n\ticonst_1\n\tgoto CmpEnd1\nCmpFalse1:\n\ticonst_0\nCmpEnd1:\n"},
		{"not", &ir.UnaryOp{Op: ir.OpNot, Operand: boolLit("0"), Type: ir.TypeBool},
			"\ticonst_0\n\ticonst_1\n\tixor\n\tistore_3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &ir.Method{
				Name:       "cmp",
				Params:     []*ir.Operand{p, q},
				ReturnType: ir.TypeBool,
				Instructions: []ir.Instruction{
					&ir.Assign{Dest: b, Type: ir.TypeBool, RHS: tt.rhs},
					&ir.Return{Value: b, Type: ir.TypeBool},
				},
			}
			wantAll(t, generate(t, testClass(m)), tt.want)
		})
	}
}

func TestObjectsArraysAndFields(t *testing.T) {
	obj := local("obj", ir.ClassType("Test"))
	arr := local("arr", ir.TypeIntList)
	i := local("i", ir.TypeInt)
	elem := &ir.ArrayOperand{Operand: ir.Operand{Name: "arr", Type: ir.TypeInt}, Index: i}
	r := local("r", ir.TypeInt)
	h := local("h", ir.ClassType("Helper"))

	m := &ir.Method{
		Name:       "work",
		ReturnType: ir.TypeInt,
		Instructions: []ir.Instruction{
			&ir.Assign{Dest: obj, Type: obj.Type, RHS: &ir.Call{Kind: ir.New, Class: "Test", Return: obj.Type}},
			&ir.Call{Kind: ir.InvokeSpecial, Target: obj, Method: "<init>", Return: ir.TypeVoid},
			&ir.Assign{Dest: arr, Type: arr.Type, RHS: &ir.Call{Kind: ir.NewArray, Args: []ir.Element{intLit("4")}, Return: ir.TypeIntList}},
			&ir.Assign{Dest: i, Type: ir.TypeInt, RHS: &ir.SingleOp{Operand: intLit("0")}},
			&ir.Assign{Dest: elem, Type: ir.TypeInt, RHS: &ir.SingleOp{Operand: intLit("9")}},
			&ir.PutField{Object: this(), Field: local("f", ir.TypeInt), Value: intLit("5")},
			&ir.Assign{Dest: r, Type: ir.TypeInt, RHS: &ir.GetField{Object: this(), Field: local("f", ir.TypeInt)}},
			&ir.Assign{Dest: h, Type: h.Type, RHS: &ir.Call{Kind: ir.New, Class: "Helper", Return: h.Type}},
			&ir.Call{Kind: ir.InvokeSpecial, Target: h, Method: "<init>", Return: ir.TypeVoid},
			&ir.Call{Kind: ir.InvokeVirtual, Target: obj, Method: "work", Return: ir.TypeInt},
			&ir.Assign{Dest: r, Type: ir.TypeInt, RHS: &ir.Call{Kind: ir.ArrayLength, Target: arr, Return: ir.TypeInt}},
			&ir.Return{Value: elem, Type: ir.TypeInt},
		},
	}

	out := generate(t, testClass(m))
	wantAll(t, out,
		"\tnew Test\n\tastore_2\n\taload_2\n\tinvokespecial Test/<init>()V\n",
		"\ticonst_4\n\tnewarray int\n",
		"\taload_3\n\tiload 4\n\tbipush 9\n\tiastore\n",
		"\taload_0\n\ticonst_5\n\tputfield Test/f I\n",
		"\taload_0\n\tgetfield Test/f I\n",
		"\tnew util/pkg/Helper\n",
		"invokespecial util/pkg/Helper/<init>()V",
		"\tinvokevirtual Test/work()I\n\tpop\n",
		"\tarraylength\n",
		"\tiaload\n\tireturn\n",
		".limit stack 3",
	)
}

func TestSuperAndTarget(t *testing.T) {
	class := testClass(&ir.Method{Name: "noop", ReturnType: ir.TypeVoid})
	class.Imports = append(class.Imports, "base.Base")
	class.Super = "Base"

	g := NewGenerator(Config{Target: "1.8"})
	out, err := g.Generate(class)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	wantAll(t, out,
		".bytecode 52.0\n.class public Test\n.super base/Base\n",
		"invokespecial base/Base/<init>()V",
		".method public noop()V\n\t.limit stack 0\n\t.limit locals 1\n\treturn\n.end method",
	)
}

func TestClassFileVersion(t *testing.T) {
	tests := []struct {
		target  string
		want    string
		wantErr bool
	}{
		{"1.8", "52.0", false},
		{"8", "52.0", false},
		{"11", "55.0", false},
		{"17.0.2", "61.0", false},
		{"1.4", "", true},
		{"latest", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			got, err := ClassFileVersion(tt.target)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ClassFileVersion(%q) error = %v", tt.target, err)
			}
			if got != tt.want {
				t.Errorf("ClassFileVersion(%q) = %q, want %q", tt.target, got, tt.want)
			}
		})
	}
}

func TestUnsupported(t *testing.T) {
	p := param("p", ir.TypeInt, 1)
	tests := []struct {
		name string
		inst ir.Instruction
	}{
		{"not as a binary operator", &ir.Assign{Dest: p, Type: ir.TypeInt,
			RHS: &ir.BinaryOp{Op: ir.OpNot, Left: p, Right: p, Type: ir.TypeInt}}},
		{"void call used as a value", &ir.Assign{Dest: p, Type: ir.TypeInt,
			RHS: &ir.Call{Kind: ir.InvokeStatic, Class: "io", Method: "read", Return: ir.TypeVoid}}},
		{"unknown variable", &ir.Return{Value: local("ghost", ir.TypeInt), Type: ir.TypeInt}},
		{"array of arrays", &ir.Assign{Dest: local("m", ir.Type{Kind: ir.Array, Elem: ir.Array}), Type: ir.TypeIntList,
			RHS: &ir.Call{Kind: ir.NewArray, Args: []ir.Element{intLit("2")}, Return: ir.Type{Kind: ir.Array, Elem: ir.Array}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &ir.Method{
				Name:         "bad",
				Params:       []*ir.Operand{p},
				ReturnType:   ir.TypeInt,
				Instructions: []ir.Instruction{tt.inst, &ir.Return{Value: p, Type: ir.TypeInt}},
			}
			ir.BuildVarTable(m)
			delete(m.VarTable, "ghost")
			_, err := NewGenerator(Config{}).Generate(testClass(m))
			if !errors.Is(err, ErrUnsupported) {
				t.Errorf("expected ErrUnsupported, got %v", err)
			}
		})
	}
}

func TestTrailingReturn(t *testing.T) {
	m := &ir.Method{
		Name:       "effects",
		IsStatic:   true,
		ReturnType: ir.TypeVoid,
		Instructions: []ir.Instruction{
			&ir.Call{Kind: ir.InvokeStatic, Class: "io", Method: "read", Return: ir.TypeInt},
		},
	}
	out := generate(t, testClass(m))
	wantAll(t, out, "\tinvokestatic io/read()I\n\tpop\n\treturn\n.end method")
}
