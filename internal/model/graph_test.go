package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGraphIncomingEdgesAndDependents(t *testing.T) {
	a := Node{ID: "a", Content: Claim{Statement: "a"}}
	b := Node{ID: "b", Content: Evidence{Content: "b"}}
	c := Node{ID: "c", Content: Evidence{Content: "c"}}
	g := NewGraph([]Node{a, b, c}, []Edge{
		{ID: "e2", Source: "c", Target: "a", Relation: RelEvidenceFor},
		{ID: "e1", Source: "b", Target: "a", Relation: RelEvidenceFor},
		{ID: "e3", Source: "b", Target: "a", Relation: RelRelatesTo},
		{ID: "e4", Source: "a", Target: "c", Relation: RelRelatesTo},
	})

	in := g.IncomingEdges("a")
	assert.Len(t, in, 3)
	assert.Equal(t, "e1", in[0].ID)
	assert.Equal(t, "e2", in[1].ID)
	assert.Equal(t, "e3", in[2].ID)

	assert.Equal(t, []string{"b", "c"}, g.Dependents("a"))
	assert.Empty(t, g.Dependents("b"))
	assert.Empty(t, g.IncomingEdges("b"))
}

func TestGraphSortedAccessors(t *testing.T) {
	var g Graph
	g.PutNode(Node{ID: "z", Content: Note{Content: "z"}})
	g.PutNode(Node{ID: "m", Content: Note{Content: "m"}})
	g.PutEdge(Edge{ID: "e9", Source: "z", Target: "m"})
	g.PutEdge(Edge{ID: "e0", Source: "m", Target: "z"})

	assert.Equal(t, []string{"m", "z"}, g.NodeIDs())
	nodes := g.SortedNodes()
	assert.Equal(t, "m", nodes[0].ID)
	edges := g.SortedEdges()
	assert.Equal(t, "e0", edges[0].ID)

	n, ok := g.Node("z")
	assert.True(t, ok)
	assert.Equal(t, "z", n.Text())
	_, ok = g.Node("missing")
	assert.False(t, ok)
}
