package store

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/canon/internal/model"
	tu "github.com/roach88/canon/internal/testutil"
)

func TestReads_EmptyStore(t *testing.T) {
	f := createTestStore(t)
	ctx := context.Background()

	nodes, err := f.store.ListNodes(ctx)
	require.NoError(t, err)
	assert.NotNil(t, nodes)
	assert.Empty(t, nodes)

	edges, err := f.store.ListEdges(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, edges)
	assert.Empty(t, edges)

	_, err = f.store.GetNode(ctx, tu.ID(1))
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = f.store.GetEdge(ctx, tu.ID(1))
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = f.store.History(ctx, tu.ID(1))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListEdges_FilterAndOrder(t *testing.T) {
	f := createTestStore(t)
	ctx := context.Background()
	a, b, c := f.claim(t, 1, "a"), f.claim(t, 2, "b"), f.claim(t, 3, "c")
	for _, n := range []model.Node{c, a, b} {
		require.NoError(t, f.store.PutNode(ctx, n))
	}
	ab := f.edge(t, 52, a.ID, b.ID, model.RelRelatesTo)
	bc := f.edge(t, 51, b.ID, c.ID, model.RelBlocks)
	ca := f.edge(t, 50, c.ID, a.ID, model.RelPartOf)
	for _, e := range []model.Edge{ab, bc, ca} {
		require.NoError(t, f.store.PutEdge(ctx, e))
	}

	all, err := f.store.ListEdges(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []model.Edge{ca, bc, ab}, all)

	touchingA, err := f.store.ListEdges(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Edge{ca, ab}, touchingA)

	nodes, err := f.store.ListNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Node{a, b, c}, nodes)
}

func TestLoadGraph(t *testing.T) {
	f := createTestStore(t)
	ctx := context.Background()
	a, b := f.claim(t, 1, "a"), f.claim(t, 2, "b")
	require.NoError(t, f.store.PutNode(ctx, a))
	require.NoError(t, f.store.PutNode(ctx, b))
	e := f.edge(t, 50, b.ID, a.ID, model.RelEvidenceFor)
	require.NoError(t, f.store.PutEdge(ctx, e))

	g, err := f.store.LoadGraph(ctx)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
	assert.Len(t, g.Edges, 1)
	assert.Equal(t, []string{b.ID}, g.Dependents(a.ID))
}
