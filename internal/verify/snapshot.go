package verify

import (
	"github.com/cockroachdb/errors"

	"github.com/roach88/canon/internal/ir"
	"github.com/roach88/canon/internal/model"
	"github.com/roach88/canon/internal/version"
)

// SnapshotKey identifies the current content of a branch: a domain-separated
// hash over the id to content-hash mapping of its nodes and edges. Hashes are
// recomputed, so unstamped edits change the key too.
func SnapshotKey(nodes []model.Node, edges []model.Edge) (string, error) {
	nodeHashes := make(map[string]any, len(nodes))
	for _, n := range nodes {
		h, err := version.ComputeNodeHash(n)
		if err != nil {
			return "", errors.Wrap(err, "snapshot key")
		}
		nodeHashes[n.ID] = h
	}
	edgeHashes := make(map[string]any, len(edges))
	for _, e := range edges {
		h, err := version.ComputeEdgeHash(e)
		if err != nil {
			return "", errors.Wrap(err, "snapshot key")
		}
		edgeHashes[e.ID] = h
	}

	canonical, err := ir.MarshalCanonical(map[string]any{
		"nodes": nodeHashes,
		"edges": edgeHashes,
	})
	if err != nil {
		return "", errors.Wrap(err, "snapshot key")
	}
	return ir.HashWithDomain(ir.DomainSnapshot, canonical), nil
}
