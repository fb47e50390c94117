// Package regalloc - Graph coloring register allocation
// Design: Chaitin-style simplify/select over JVM local slots, no spilling
package regalloc

import (
	"github.com/JoaoAMarinho/FEUP-COMP/pkg/ir"
	"github.com/JoaoAMarinho/FEUP-COMP/pkg/logger"
)

// InterferenceGraph represents local variable interference
type InterferenceGraph struct {
	order []string
	nodes map[string]*IGNode
}

// IGNode represents a node in the interference graph
type IGNode struct {
	name      string
	neighbors map[string]bool
	degree    int
	color     int // Register (-1 if uncolored)
}

// NewInterferenceGraph adds a node for every local of the var table and an
// edge between two locals whose live ranges overlap
func NewInterferenceGraph(m *ir.Method, ranges map[string][]Interval) *InterferenceGraph {
	ig := newInterferenceGraph()
	for _, name := range m.VarOrder {
		if m.VarTable[name].Scope == ir.ScopeLocal {
			ig.addNode(name)
		}
	}

	for i, a := range ig.order {
		for _, b := range ig.order[i+1:] {
			if overlapping(ranges[a], ranges[b]) {
				ig.addEdge(a, b)
			}
		}
	}

	logger.Debug("Built interference graph",
		"method", m.Name,
		"nodes", len(ig.nodes),
		"edges", ig.edgeCount())
	return ig
}

func overlapping(as, bs []Interval) bool {
	for _, a := range as {
		for _, b := range bs {
			if a.Overlaps(b) {
				return true
			}
		}
	}
	return false
}

// Color tries to color the graph with registers floor..floor+k-1. On success
// every node's register is returned by name.
func (ig *InterferenceGraph) Color(k, floor int) (map[string]int, bool) {
	stack, ok := ig.simplify(k)
	if !ok {
		return nil, false
	}
	return ig.selectColors(stack, k, floor)
}

// simplify repeatedly removes a node with fewer than k remaining neighbors.
// It fails when every remaining node is too constrained, since there is no
// spill fallback.
func (ig *InterferenceGraph) simplify(k int) ([]string, bool) {
	stack := make([]string, 0, len(ig.order))
	remaining := make(map[string]bool, len(ig.order))
	degree := make(map[string]int, len(ig.order))
	for _, name := range ig.order {
		remaining[name] = true
		degree[name] = ig.nodes[name].degree
	}

	for len(remaining) > 0 {
		toRemove := ""
		for _, name := range ig.order {
			if remaining[name] && degree[name] < k {
				toRemove = name
				break
			}
		}
		if toRemove == "" {
			return nil, false
		}

		stack = append(stack, toRemove)
		delete(remaining, toRemove)
		for neighbor := range ig.nodes[toRemove].neighbors {
			if remaining[neighbor] {
				degree[neighbor]--
			}
		}
	}
	return stack, true
}

// selectColors pops the stack and gives each node the lowest register its
// colored neighbors leave free
func (ig *InterferenceGraph) selectColors(stack []string, k, floor int) (map[string]int, bool) {
	for _, n := range ig.nodes {
		n.color = -1
	}

	colors := make(map[string]int, len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		node := ig.nodes[stack[i]]

		used := make(map[int]bool)
		for neighbor := range node.neighbors {
			if c := ig.nodes[neighbor].color; c >= 0 {
				used[c] = true
			}
		}

		for reg := floor; reg < floor+k; reg++ {
			if !used[reg] {
				node.color = reg
				break
			}
		}
		if node.color < 0 {
			return nil, false
		}
		colors[node.name] = node.color
	}
	return colors, true
}

// Interferes reports whether two locals may not share a register
func (ig *InterferenceGraph) Interferes(a, b string) bool {
	n, ok := ig.nodes[a]
	return ok && n.neighbors[b]
}

func newInterferenceGraph() *InterferenceGraph {
	return &InterferenceGraph{nodes: make(map[string]*IGNode)}
}

func (ig *InterferenceGraph) addNode(name string) {
	if _, exists := ig.nodes[name]; !exists {
		ig.nodes[name] = &IGNode{
			name:      name,
			neighbors: make(map[string]bool),
			color:     -1,
		}
		ig.order = append(ig.order, name)
	}
}

func (ig *InterferenceGraph) addEdge(a, b string) {
	ig.addNode(a)
	ig.addNode(b)

	if !ig.nodes[a].neighbors[b] {
		ig.nodes[a].neighbors[b] = true
		ig.nodes[b].neighbors[a] = true
		ig.nodes[a].degree++
		ig.nodes[b].degree++
	}
}

func (ig *InterferenceGraph) edgeCount() int {
	count := 0
	for _, n := range ig.nodes {
		count += n.degree
	}
	return count / 2 // Each edge counted twice
}
