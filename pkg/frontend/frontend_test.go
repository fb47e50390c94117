package frontend

import (
	"bytes"
	"strings"
	"testing"
)

func sampleProgram(t *Tree) {
	main := t.Method(MethodSymbol{
		Name:       "main",
		ReturnType: Type{Name: TypeVoid},
		IsStatic:   true,
		Params:     []Symbol{{Name: "args", Type: Type{Name: TypeString, IsArray: true}}},
		Locals:     []Symbol{{Name: "a", Type: Type{Name: TypeInt}}},
	},
		t.Assign("a", t.Bin(OpAdd, t.Int(2), t.Int(3))),
		t.ExprStmt(t.Call(t.Ident("io"), "println", t.Ident("a"))),
	)
	get := t.Method(MethodSymbol{
		Name:       "get",
		ReturnType: Type{Name: TypeInt},
	}, t.Return(t.Ident("count")))
	t.Program([]string{"java.io", "io"}, "Sample", "Base",
		[]Symbol{{Name: "count", Type: Type{Name: TypeInt}}}, main, get)
}

func TestTreeRemoveReplace(t *testing.T) {
	tr := NewTree()
	block := tr.Block(tr.ReturnVoid(), tr.ReturnVoid(), tr.ReturnVoid())
	mid := tr.Child(block, 1)

	if idx := tr.Remove(mid); idx != 1 {
		t.Fatalf("Remove returned %d, want 1", idx)
	}
	if tr.Parent(mid) != NoNode {
		t.Errorf("removed node still has a parent")
	}
	if idx := tr.Remove(mid); idx != -1 {
		t.Errorf("removing a detached node returned %d, want -1", idx)
	}
	if tr.NumChildren(block) != 2 {
		t.Fatalf("expected 2 children, got %d", tr.NumChildren(block))
	}

	first := tr.Child(block, 0)
	repl := tr.Int(7)
	if idx := tr.Replace(first, repl); idx != 0 {
		t.Errorf("Replace returned %d, want 0", idx)
	}
	if tr.Child(block, 0) != repl || tr.Parent(repl) != block {
		t.Errorf("replacement not spliced at index 0")
	}
	if tr.Parent(first) != NoNode {
		t.Errorf("replaced node still attached")
	}
}

func TestTreeInsertMovesAttachedChild(t *testing.T) {
	tr := NewTree()
	a := tr.Block()
	b := tr.Block()
	x := tr.ReturnVoid()
	tr.Append(a, x)
	tr.Insert(b, x, 0)

	if tr.NumChildren(a) != 0 {
		t.Errorf("child was not detached from its old parent")
	}
	if tr.Parent(x) != b || tr.Child(b, 0) != x {
		t.Errorf("child not attached to new parent")
	}
}

func TestIsLiteral(t *testing.T) {
	tr := NewTree()
	tests := []struct {
		name string
		node NodeID
		want bool
	}{
		{"int", tr.Int(3), true},
		{"bool", tr.Bool(false), true},
		{"this", tr.This(), false},
		{"identifier", tr.Ident("x"), false},
		{"binop", tr.Bin(OpAdd, tr.Int(1), tr.Int(2)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tr.IsLiteral(tt.node); got != tt.want {
				t.Errorf("IsLiteral = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildSymbolTable(t *testing.T) {
	tr := NewTree()
	sampleProgram(tr)

	st, err := BuildSymbolTable(tr)
	if err != nil {
		t.Fatalf("BuildSymbolTable: %v", err)
	}
	if st.ClassName != "Sample" || st.Super != "Base" {
		t.Errorf("class = %s extends %s", st.ClassName, st.Super)
	}
	if len(st.Fields) != 1 || st.Fields[0].Name != "count" {
		t.Errorf("fields = %+v", st.Fields)
	}
	main, ok := st.Method("main")
	if !ok {
		t.Fatal("main not found")
	}
	if !main.IsStatic || len(main.Params) != 1 || len(main.Locals) != 1 {
		t.Errorf("main = %+v", main)
	}
	if !st.HasImport("io") {
		t.Errorf("expected io to be imported")
	}
	if path, _ := st.ImportPath("io"); path != "java/io" {
		t.Errorf("ImportPath(io) = %q", path)
	}

	if _, scope, _ := st.Resolve(main, "count"); scope != ScopeNone {
		t.Errorf("fields must not resolve from a static method, got %v", scope)
	}
	get, _ := st.Method("get")
	if _, scope, _ := st.Resolve(get, "count"); scope != ScopeField {
		t.Errorf("count resolved to %v, want field", scope)
	}
	if _, scope, idx := st.Resolve(main, "args"); scope != ScopeParam || idx != 1 {
		t.Errorf("args resolved to %v/%d", scope, idx)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	tr := NewTree()
	sampleProgram(tr)

	var buf bytes.Buffer
	if err := Encode(&buf, &Unit{Tree: tr}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	unit, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got, want := unit.Tree.Dump(unit.Tree.Root), tr.Dump(tr.Root); got != want {
		t.Errorf("tree changed across encode/decode:\n%s\nwant:\n%s", got, want)
	}
	if unit.Symbols == nil || unit.Symbols.ClassName != "Sample" {
		t.Errorf("symbol table not rebuilt: %+v", unit.Symbols)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"missing tree", `{}`, "missing tree"},
		{"kindless node", `{"tree":{"attrs":{}}}`, "without kind"},
		{"unknown field", `{"tree":{"kind":"Start"},"extra":1}`, "unknown field"},
		{"no class", `{"tree":{"kind":"Start"}}`, "expected one class"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Decode error = %v, want containing %q", err, tt.want)
			}
		})
	}
}
