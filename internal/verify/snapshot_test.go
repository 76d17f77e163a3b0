package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/canon/internal/ir"
	"github.com/roach88/canon/internal/model"
	tu "github.com/roach88/canon/internal/testutil"
)

func TestSnapshotKey(t *testing.T) {
	nodes, edges := branch(t)

	key, err := SnapshotKey(nodes, edges)
	require.NoError(t, err)
	assert.True(t, ir.IsHash(key))

	reordered, err := SnapshotKey([]model.Node{nodes[1], nodes[0]}, edges)
	require.NoError(t, err)
	assert.Equal(t, key, reordered, "order of input must not matter")

	withoutEdges, err := SnapshotKey(nodes, nil)
	require.NoError(t, err)
	assert.NotEqual(t, key, withoutEdges)

	empty, err := SnapshotKey(nodes, []model.Edge{})
	require.NoError(t, err)
	assert.Equal(t, withoutEdges, empty)

	// An unstamped content edit still changes the key.
	edited := append([]model.Node(nil), nodes...)
	edited[1].Content = model.Evidence{Content: "observed twice"}
	changed, err := SnapshotKey(edited, edges)
	require.NoError(t, err)
	assert.NotEqual(t, key, changed)
}

func TestSnapshotKeyRejectsContentlessNode(t *testing.T) {
	_, err := SnapshotKey([]model.Node{{ID: tu.ID(1)}}, nil)
	assert.Error(t, err)
}
