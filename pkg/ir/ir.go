// Package ir implements the OLLIR intermediate representation.
//
// Design: three-address code over typed elements, flat instruction lists with
// labels, and a closed set of instruction types. Every top-level instruction
// gets a sequence id and successor list from BuildCFG; those ids key the
// dataflow analyses in regalloc.
package ir

import "errors"

var (
	ErrMalformedIR = errors.New("malformed IR")
	ErrUnsupported = errors.New("unsupported construct")
)

// ClassUnit is one lowered class
type ClassUnit struct {
	Imports []string
	Name    string
	Super   string
	Fields  []*Field
	Methods []*Method
}

// Method finds a method by name
func (c *ClassUnit) Method(name string) *Method {
	for _, m := range c.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

type Field struct {
	Name string
	Type Type
}

// Method is a lowered method body plus the tables later stages fill in
type Method struct {
	Name         string
	IsStatic     bool
	Params       []*Operand
	ReturnType   Type
	Instructions []Instruction
	Labels       []Label

	// Set by BuildVarTable
	VarTable map[string]*Descriptor
	VarOrder []string
}

// Label marks the instruction at index At
type Label struct {
	Name string
	At   int
}

// LabelsAt returns the labels placed before instruction index i
func (m *Method) LabelsAt(i int) []string {
	var out []string
	for _, l := range m.Labels {
		if l.At == i {
			out = append(out, l.Name)
		}
	}
	return out
}

// Instruction is one of Assign, Call, Goto, CondBranch, Return, PutField,
// GetField, UnaryOp, BinaryOp or SingleOp. The last five also appear nested
// as the right-hand side of an Assign or the condition of a CondBranch.
type Instruction interface {
	node() *Node
}

// Node carries the CFG data of a top-level instruction
type Node struct {
	ID   int
	Succ []int
}

func (n *Node) node() *Node { return n }

// ID returns the sequence id given by BuildCFG, 0 for nested instructions
func ID(inst Instruction) int { return inst.node().ID }

// Successors returns the CFG successor ids
func Successors(inst Instruction) []int { return inst.node().Succ }

type Assign struct {
	Node
	Dest Element // *Operand or *ArrayOperand
	Type Type
	RHS  Instruction
}

// CallKind selects the invocation form
type CallKind int

const (
	InvokeVirtual CallKind = iota
	InvokeStatic
	InvokeSpecial
	New
	NewArray
	ArrayLength
)

func (k CallKind) String() string {
	switch k {
	case InvokeVirtual:
		return "invokevirtual"
	case InvokeStatic:
		return "invokestatic"
	case InvokeSpecial:
		return "invokespecial"
	case New, NewArray:
		return "new"
	case ArrayLength:
		return "arraylength"
	}
	return "call"
}

type Call struct {
	Node
	Kind   CallKind
	Target Element // receiver, array; nil for static calls and new
	Class  string  // static call owner or allocated class
	Method string
	Args   []Element
	Return Type
}

type Goto struct {
	Node
	Label string
}

type CondBranch struct {
	Node
	Cond  Instruction // *SingleOp, *UnaryOp or *BinaryOp
	Label string
}

type Return struct {
	Node
	Value Element // nil for void
	Type  Type
}

type PutField struct {
	Node
	Object Element
	Field  *Operand
	Value  Element
}

type GetField struct {
	Node
	Object Element
	Field  *Operand
}

type UnaryOp struct {
	Node
	Op      Operation
	Operand Element
	Type    Type
}

type BinaryOp struct {
	Node
	Op          Operation
	Left, Right Element
	Type        Type
}

type SingleOp struct {
	Node
	Operand Element
}

// Operation is an arithmetic or boolean operator
type Operation int

const (
	OpAdd Operation = iota
	OpSub
	OpMul
	OpDiv
	OpLt
	OpAnd
	OpOr
	OpNot
)

var opText = map[Operation]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/",
	OpLt: "<", OpAnd: "&&", OpOr: "||", OpNot: "!",
}

func (o Operation) String() string { return opText[o] }

// IsBoolean reports whether the operator yields a boolean
func (o Operation) IsBoolean() bool {
	return o == OpLt || o == OpAnd || o == OpOr || o == OpNot
}

// Element is a *Literal, *Operand or *ArrayOperand
type Element interface {
	element()
}

// Literal is a typed constant. Booleans are 0/1.
type Literal struct {
	Value string
	Type  Type
}

// Operand names a variable. Param is the 1-based parameter position, 0 for
// anything else.
type Operand struct {
	Name  string
	Type  Type
	Param int
}

// ArrayOperand is name[index]; Type is the element type
type ArrayOperand struct {
	Operand
	Index Element
}

func (*Literal) element()      {}
func (*Operand) element()      {}
func (*ArrayOperand) element() {}

// TypeOf returns the type of an element
func TypeOf(e Element) Type {
	switch e := e.(type) {
	case *Literal:
		return e.Type
	case *Operand:
		return e.Type
	case *ArrayOperand:
		return e.Type
	}
	return Type{}
}

// ValueType returns the type produced by a value instruction
func ValueType(inst Instruction) Type {
	switch v := inst.(type) {
	case *SingleOp:
		return TypeOf(v.Operand)
	case *UnaryOp:
		return v.Type
	case *BinaryOp:
		return v.Type
	case *Call:
		return v.Return
	case *GetField:
		return v.Field.Type
	}
	return Type{}
}

// TypeKind enumerates OLLIR types
type TypeKind int

const (
	Void TypeKind = iota
	Int32
	Boolean
	String
	Class
	Array
	This
)

// Type is an OLLIR type. Class names the class for Class and This; Elem is the
// element kind of a one-dimensional Array.
type Type struct {
	Kind  TypeKind
	Class string
	Elem  TypeKind
}

var (
	TypeVoid    = Type{Kind: Void}
	TypeInt     = Type{Kind: Int32}
	TypeBool    = Type{Kind: Boolean}
	TypeString  = Type{Kind: String}
	TypeIntList = Type{Kind: Array, Elem: Int32}
)

// ClassType names an object type
func ClassType(name string) Type { return Type{Kind: Class, Class: name} }

// ElemType returns the element type of an array type
func (t Type) ElemType() Type { return Type{Kind: t.Elem} }

// IsReference reports whether values of the type live in reference registers
func (t Type) IsReference() bool {
	switch t.Kind {
	case String, Class, Array, This:
		return true
	}
	return false
}

// String renders the dotted OLLIR suffix without the leading dot
func (t Type) String() string {
	switch t.Kind {
	case Int32:
		return "i32"
	case Boolean:
		return "bool"
	case String:
		return "String"
	case Class, This:
		return t.Class
	case Array:
		return "array." + t.ElemType().String()
	}
	return "V"
}

// Scope tells where a variable lives
type Scope int

const (
	ScopeLocal Scope = iota
	ScopeParameter
	ScopeField
	ScopeThis
)

func (s Scope) String() string {
	return [...]string{"LOCAL", "PARAMETER", "FIELD", "THIS"}[s]
}

// Descriptor is a var table entry
type Descriptor struct {
	Scope    Scope
	Register int
	Type     Type
}
