// Package frontend holds what the front end hands to the back end: a typed
// syntax tree and the symbol table built from it.
//
// Design: the tree is an arena. Nodes are addressed by NodeID and keep their
// parent's ID, so optimizer passes can detach and splice nodes in place
// without dangling pointers.
package frontend

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind tags a syntax tree node
type Kind string

const (
	KindStart                Kind = "Start"
	KindImportDeclaration    Kind = "ImportDeclaration"
	KindClassDeclaration     Kind = "ClassDeclaration"
	KindVarDeclaration       Kind = "VarDeclaration"
	KindMethodDeclaration    Kind = "MethodDeclaration"
	KindParam                Kind = "Param"
	KindType                 Kind = "Type"
	KindEnclosedStatement    Kind = "EnclosedStatement"
	KindIfStatement          Kind = "IfStatement"
	KindThenStatement        Kind = "ThenStatement"
	KindElseStatement        Kind = "ElseStatement"
	KindLoopStatement        Kind = "LoopStatement"
	KindDoStatement          Kind = "DoStatement"
	KindAssignStatement      Kind = "AssignStatement"
	KindArrayAssignStatement Kind = "ArrayAssignStatement"
	KindExpressionStatement  Kind = "ExpressionStatement"
	KindReturnStatement      Kind = "ReturnStatement"
	KindReturnVoid           Kind = "ReturnVoid"
	KindBinOp                Kind = "BinOp"
	KindUnaryOp              Kind = "UnaryOp"
	KindTerminal             Kind = "Terminal"
	KindIdentifier           Kind = "Identifier"
	KindMemberCall           Kind = "MemberCall"
)

// Attribute keys
const (
	AttrName     = "name"
	AttrType     = "type"
	AttrOp       = "op"
	AttrImage    = "image"
	AttrLine     = "line"
	AttrCol      = "col"
	AttrIsArray  = "isArray"
	AttrIsStatic = "isStatic"
	AttrDoWhile  = "doWhile"
	AttrSuper    = "super"
)

// Operators carried in the "op" attribute
const (
	OpAnd       = "AND"
	OpLt        = "LT"
	OpAdd       = "ADD"
	OpSub       = "SUB"
	OpMul       = "MUL"
	OpDiv       = "DIV"
	OpAccess    = "ACCESS"
	OpNot       = "NOT"
	OpLength    = "LENGTH"
	OpArrayInit = "ARRAY_INIT"
	OpObjInit   = "OBJ_INIT"
)

// NodeID addresses a node inside its Tree
type NodeID int32

// NoNode is the parent of the root and of detached nodes
const NoNode NodeID = -1

// Node is one arena slot
type Node struct {
	Kind     Kind
	Children []NodeID
	Parent   NodeID
	Attrs    map[string]string
}

// Tree is an arena of syntax nodes
type Tree struct {
	nodes []Node
	Root  NodeID
}

// NewTree creates an empty tree
func NewTree() *Tree {
	return &Tree{Root: NoNode}
}

// New allocates a detached node. attrs are key/value pairs.
func (t *Tree) New(kind Kind, attrs ...string) NodeID {
	n := Node{
		Kind:   kind,
		Parent: NoNode,
		Attrs:  make(map[string]string, len(attrs)/2),
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attrs[attrs[i]] = attrs[i+1]
	}
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}

// Len returns the number of allocated nodes, attached or not
func (t *Tree) Len() int { return len(t.nodes) }

func (t *Tree) node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		panic(fmt.Sprintf("frontend: node %d out of range", id))
	}
	return &t.nodes[id]
}

// Kind returns the kind of a node
func (t *Tree) Kind(id NodeID) Kind { return t.node(id).Kind }

// Is reports whether id is a node of the given kind
func (t *Tree) Is(id NodeID, kind Kind) bool {
	return id != NoNode && t.node(id).Kind == kind
}

// Get returns an attribute, or "" when unset
func (t *Tree) Get(id NodeID, key string) string { return t.node(id).Attrs[key] }

// Lookup returns an attribute and whether it is set
func (t *Tree) Lookup(id NodeID, key string) (string, bool) {
	v, ok := t.node(id).Attrs[key]
	return v, ok
}

// Put sets an attribute
func (t *Tree) Put(id NodeID, key, value string) { t.node(id).Attrs[key] = value }

// Flag reports whether a boolean attribute is set to "true"
func (t *Tree) Flag(id NodeID, key string) bool {
	v, ok := t.Lookup(id, key)
	return ok && v == "true"
}

// Parent returns the parent of a node, NoNode for roots and detached nodes
func (t *Tree) Parent(id NodeID) NodeID { return t.node(id).Parent }

// Children returns the ordered children. The slice must not be modified.
func (t *Tree) Children(id NodeID) []NodeID { return t.node(id).Children }

// NumChildren returns the child count
func (t *Tree) NumChildren(id NodeID) int { return len(t.node(id).Children) }

// Child returns the i-th child or NoNode when out of range
func (t *Tree) Child(id NodeID, i int) NodeID {
	ch := t.node(id).Children
	if i < 0 || i >= len(ch) {
		return NoNode
	}
	return ch[i]
}

// Append attaches child as the last child of parent
func (t *Tree) Append(parent NodeID, children ...NodeID) {
	for _, c := range children {
		t.Insert(parent, c, t.NumChildren(parent))
	}
}

// Insert attaches child at index. A child that is still attached elsewhere is
// detached first.
func (t *Tree) Insert(parent, child NodeID, index int) {
	if t.node(child).Parent != NoNode {
		t.Remove(child)
	}
	p := t.node(parent)
	if index < 0 || index > len(p.Children) {
		index = len(p.Children)
	}
	p.Children = append(p.Children, NoNode)
	copy(p.Children[index+1:], p.Children[index:])
	p.Children[index] = child
	t.node(child).Parent = parent
}

// IndexOf returns the position of child within its parent, or -1
func (t *Tree) IndexOf(child NodeID) int {
	parent := t.node(child).Parent
	if parent == NoNode {
		return -1
	}
	for i, c := range t.node(parent).Children {
		if c == child {
			return i
		}
	}
	return -1
}

// Remove detaches a node from its parent and returns its former index, or -1
// when it was not attached.
func (t *Tree) Remove(child NodeID) int {
	idx := t.IndexOf(child)
	if idx < 0 {
		return -1
	}
	p := t.node(t.node(child).Parent)
	p.Children = append(p.Children[:idx], p.Children[idx+1:]...)
	t.node(child).Parent = NoNode
	return idx
}

// Replace puts repl where old was and returns the index, or -1 when old was
// detached. old ends up detached.
func (t *Tree) Replace(old, repl NodeID) int {
	parent := t.node(old).Parent
	idx := t.Remove(old)
	if idx < 0 {
		return -1
	}
	t.Insert(parent, repl, idx)
	return idx
}

// Walk visits id and its descendants in pre-order. Returning false from fn
// skips the node's children.
func (t *Tree) Walk(id NodeID, fn func(NodeID) bool) {
	if !fn(id) {
		return
	}
	for _, c := range append([]NodeID(nil), t.Children(id)...) {
		t.Walk(c, fn)
	}
}

// Find returns the nodes of a kind below id, in pre-order
func (t *Tree) Find(id NodeID, kind Kind) []NodeID {
	var out []NodeID
	t.Walk(id, func(n NodeID) bool {
		if t.Kind(n) == kind {
			out = append(out, n)
		}
		return true
	})
	return out
}

// IsLiteral reports whether id is a typed literal terminal (not "this")
func (t *Tree) IsLiteral(id NodeID) bool {
	if !t.Is(id, KindTerminal) {
		return false
	}
	typ, ok := t.Lookup(id, AttrType)
	return ok && typ != "" && t.Get(id, AttrImage) != "this"
}

// Position returns the line/col attributes, zero when absent
func (t *Tree) Position(id NodeID) (line, col int) {
	line, _ = strconv.Atoi(t.Get(id, AttrLine))
	col, _ = strconv.Atoi(t.Get(id, AttrCol))
	return line, col
}

// Dump renders the subtree rooted at id, one node per line
func (t *Tree) Dump(id NodeID) string {
	var sb strings.Builder
	t.dump(&sb, id, 0)
	return sb.String()
}

func (t *Tree) dump(sb *strings.Builder, id NodeID, depth int) {
	n := t.node(id)
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(string(n.Kind))
	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		if k == AttrLine || k == AttrCol {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) > 0 {
		sort.Strings(keys)
		sb.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k + "=" + n.Attrs[k])
		}
		sb.WriteString(")")
	}
	sb.WriteString("\n")
	for _, c := range n.Children {
		t.dump(sb, c, depth+1)
	}
}
