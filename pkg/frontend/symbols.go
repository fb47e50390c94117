package frontend

import (
	"fmt"
	"strings"
)

// Type is a source-level type: a name plus an array flag
type Type struct {
	Name    string `json:"name"`
	IsArray bool   `json:"isArray,omitempty"`
}

// Well known type names
const (
	TypeInt     = "int"
	TypeBoolean = "boolean"
	TypeVoid    = "void"
	TypeString  = "String"
)

// IsScalar reports whether the type is a non-array int or boolean
func (t Type) IsScalar() bool {
	return !t.IsArray && (t.Name == TypeInt || t.Name == TypeBoolean)
}

func (t Type) String() string {
	if t.IsArray {
		return t.Name + "[]"
	}
	return t.Name
}

// Symbol is a named, typed declaration
type Symbol struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// MethodSymbol records one method signature
type MethodSymbol struct {
	Name       string   `json:"name"`
	ReturnType Type     `json:"returnType"`
	Params     []Symbol `json:"params"`
	Locals     []Symbol `json:"locals"`
	IsStatic   bool     `json:"isStatic,omitempty"`
}

// SymbolTable is the read-only view of a class the back end works from
type SymbolTable struct {
	Imports   []string        `json:"imports"`
	ClassName string          `json:"className"`
	Super     string          `json:"super,omitempty"`
	Fields    []Symbol        `json:"fields"`
	Methods   []*MethodSymbol `json:"methods"`
}

// Method finds a method by name
func (st *SymbolTable) Method(name string) (*MethodSymbol, bool) {
	for _, m := range st.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// Field finds a class field by name
func (st *SymbolTable) Field(name string) (Symbol, bool) {
	for _, f := range st.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Symbol{}, false
}

// HasImport reports whether name is the last segment of an import
func (st *SymbolTable) HasImport(name string) bool {
	_, ok := st.ImportPath(name)
	return ok
}

// ImportPath maps a simple class name to its slash-separated qualified name
func (st *SymbolTable) ImportPath(name string) (string, bool) {
	for _, imp := range st.Imports {
		parts := strings.Split(imp, ".")
		if parts[len(parts)-1] == name {
			return strings.Join(parts, "/"), true
		}
	}
	return "", false
}

// Scope says where a name was resolved
type Scope int

const (
	ScopeNone Scope = iota
	ScopeLocal
	ScopeParam
	ScopeField
)

// Resolve looks a name up in the order locals, parameters, fields. Fields
// are not visible from static methods. index is the 1-based parameter
// position for ScopeParam.
func (st *SymbolTable) Resolve(method *MethodSymbol, name string) (sym Symbol, scope Scope, index int) {
	if method != nil {
		for _, l := range method.Locals {
			if l.Name == name {
				return l, ScopeLocal, 0
			}
		}
		for i, p := range method.Params {
			if p.Name == name {
				return p, ScopeParam, i + 1
			}
		}
		if method.IsStatic {
			return Symbol{}, ScopeNone, 0
		}
	}
	if f, ok := st.Field(name); ok {
		return f, ScopeField, 0
	}
	return Symbol{}, ScopeNone, 0
}

// BuildSymbolTable collects imports, class, fields and method signatures
// from the declaration nodes of a tree.
func BuildSymbolTable(t *Tree) (*SymbolTable, error) {
	if t.Root == NoNode {
		return nil, fmt.Errorf("symbol table: empty tree")
	}
	st := &SymbolTable{}
	for _, imp := range t.Find(t.Root, KindImportDeclaration) {
		st.Imports = append(st.Imports, importName(t, imp))
	}

	classes := t.Find(t.Root, KindClassDeclaration)
	if len(classes) != 1 {
		return nil, fmt.Errorf("symbol table: expected one class declaration, found %d", len(classes))
	}
	class := classes[0]
	st.ClassName = t.Get(class, AttrName)
	st.Super = t.Get(class, AttrSuper)

	for _, child := range t.Children(class) {
		switch t.Kind(child) {
		case KindVarDeclaration:
			st.Fields = append(st.Fields, declSymbol(t, child))
		case KindMethodDeclaration:
			name := t.Get(child, AttrName)
			if _, dup := st.Method(name); dup {
				return nil, fmt.Errorf("symbol table: duplicated method %q", name)
			}
			st.Methods = append(st.Methods, methodSymbol(t, child))
		}
	}
	return st, nil
}

func importName(t *Tree, imp NodeID) string {
	if name := t.Get(imp, AttrName); name != "" {
		return name
	}
	parts := make([]string, 0, t.NumChildren(imp))
	for _, id := range t.Children(imp) {
		parts = append(parts, t.Get(id, AttrName))
	}
	return strings.Join(parts, ".")
}

func methodSymbol(t *Tree, decl NodeID) *MethodSymbol {
	m := &MethodSymbol{
		Name:     t.Get(decl, AttrName),
		IsStatic: t.Flag(decl, AttrIsStatic),
	}
	for _, child := range t.Children(decl) {
		switch t.Kind(child) {
		case KindType:
			m.ReturnType = TypeOf(t, child)
		case KindParam:
			m.Params = append(m.Params, declSymbol(t, child))
		case KindVarDeclaration:
			m.Locals = append(m.Locals, declSymbol(t, child))
		}
	}
	return m
}

func declSymbol(t *Tree, decl NodeID) Symbol {
	sym := Symbol{Name: t.Get(decl, AttrName)}
	if typ := t.Child(decl, 0); t.Is(typ, KindType) {
		sym.Type = TypeOf(t, typ)
	}
	return sym
}

// TypeOf reads a Type node
func TypeOf(t *Tree, typ NodeID) Type {
	return Type{Name: t.Get(typ, AttrName), IsArray: t.Flag(typ, AttrIsArray)}
}

// IsStatement reports whether a method body child is a statement rather than
// a signature node
func IsStatement(k Kind) bool {
	switch k {
	case KindType, KindParam, KindVarDeclaration:
		return false
	}
	return true
}

// MethodBody returns the statements of a method declaration
func MethodBody(t *Tree, decl NodeID) []NodeID {
	var body []NodeID
	for _, child := range t.Children(decl) {
		if IsStatement(t.Kind(child)) {
			body = append(body, child)
		}
	}
	return body
}
