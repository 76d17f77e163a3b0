package model

import (
	"maps"
	"slices"
)

// Graph maps ids to nodes and edges. Insertion order is irrelevant.
type Graph struct {
	Nodes map[string]Node `json:"nodes"`
	Edges map[string]Edge `json:"edges"`
}

// NewGraph builds a graph from the given nodes and edges.
// Later entries with a duplicate id replace earlier ones.
func NewGraph(nodes []Node, edges []Edge) Graph {
	g := Graph{
		Nodes: make(map[string]Node, len(nodes)),
		Edges: make(map[string]Edge, len(edges)),
	}
	for _, n := range nodes {
		g.Nodes[n.ID] = n
	}
	for _, e := range edges {
		g.Edges[e.ID] = e
	}
	return g
}

// Node returns the node with the given id.
func (g Graph) Node(id string) (Node, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// PutNode adds or replaces a node.
func (g *Graph) PutNode(n Node) {
	if g.Nodes == nil {
		g.Nodes = make(map[string]Node)
	}
	g.Nodes[n.ID] = n
}

// PutEdge adds or replaces an edge.
func (g *Graph) PutEdge(e Edge) {
	if g.Edges == nil {
		g.Edges = make(map[string]Edge)
	}
	g.Edges[e.ID] = e
}

// IncomingEdges returns the edges whose target is id, sorted by edge id.
func (g Graph) IncomingEdges(id string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Target == id {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b Edge) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// NodeIDs returns all node ids in sorted order.
func (g Graph) NodeIDs() []string {
	return slices.Sorted(maps.Keys(g.Nodes))
}

// SortedNodes returns the nodes ordered by id.
func (g Graph) SortedNodes() []Node {
	ids := g.NodeIDs()
	out := make([]Node, len(ids))
	for i, id := range ids {
		out[i] = g.Nodes[id]
	}
	return out
}

// SortedEdges returns the edges ordered by id.
func (g Graph) SortedEdges() []Edge {
	ids := slices.Sorted(maps.Keys(g.Edges))
	out := make([]Edge, len(ids))
	for i, id := range ids {
		out[i] = g.Edges[id]
	}
	return out
}

// Dependents returns the sorted, de-duplicated source ids of edges targeting id.
func (g Graph) Dependents(id string) []string {
	seen := make(map[string]struct{})
	for _, e := range g.Edges {
		if e.Target == id {
			seen[e.Source] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}
