package frontend

import (
	"encoding/json"
	"fmt"
	"io"
)

// jsonNode is the wire shape of one node
type jsonNode struct {
	Kind     Kind              `json:"kind"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []jsonNode        `json:"children,omitempty"`
}

// Unit is a compilation unit as produced by the front end
type Unit struct {
	Tree    *Tree
	Symbols *SymbolTable
}

type jsonUnit struct {
	Tree    *jsonNode    `json:"tree"`
	Symbols *SymbolTable `json:"symbols,omitempty"`
}

// Decode reads {"tree": node, "symbols": table}. A missing symbol table is
// rebuilt from the tree's declarations.
func Decode(r io.Reader) (*Unit, error) {
	var in jsonUnit
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("decode unit: %w", err)
	}
	if in.Tree == nil {
		return nil, fmt.Errorf("decode unit: missing tree")
	}

	t := NewTree()
	root, err := t.load(in.Tree)
	if err != nil {
		return nil, err
	}
	t.Root = root

	st := in.Symbols
	if st == nil {
		if st, err = BuildSymbolTable(t); err != nil {
			return nil, err
		}
	}
	return &Unit{Tree: t, Symbols: st}, nil
}

func (t *Tree) load(n *jsonNode) (NodeID, error) {
	if n.Kind == "" {
		return NoNode, fmt.Errorf("decode unit: node without kind")
	}
	id := t.New(n.Kind)
	for k, v := range n.Attrs {
		t.Put(id, k, v)
	}
	for i := range n.Children {
		c, err := t.load(&n.Children[i])
		if err != nil {
			return NoNode, err
		}
		t.Append(id, c)
	}
	return id, nil
}

// Encode writes a unit in the shape Decode reads
func Encode(w io.Writer, u *Unit) error {
	out := jsonUnit{Symbols: u.Symbols}
	if u.Tree.Root != NoNode {
		n := u.Tree.export(u.Tree.Root)
		out.Tree = &n
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (t *Tree) export(id NodeID) jsonNode {
	n := t.node(id)
	out := jsonNode{Kind: n.Kind}
	if len(n.Attrs) > 0 {
		out.Attrs = make(map[string]string, len(n.Attrs))
		for k, v := range n.Attrs {
			out.Attrs[k] = v
		}
	}
	for _, c := range n.Children {
		out.Children = append(out.Children, t.export(c))
	}
	return out
}
