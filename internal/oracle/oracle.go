// Package oracle checks a branch for global logical consistency.
//
// The engine talks to an Oracle through a minimal projection of the branch
// (Request). RuleOracle is the in-process fallback; WasmOracle runs an
// external solver compiled to WebAssembly. Guarded wraps either with a
// timeout and an availability breaker so a slow or failing solver degrades
// to "unavailable" instead of blocking the caller.
package oracle

import (
	"context"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/canon/internal/model"
)

// ErrUnavailable marks every failure to obtain an answer: no oracle
// configured, timeout, open availability breaker, or a solver error.
var ErrUnavailable = errors.New("consistency oracle unavailable")

// NodeRef is the projection of a node sent to the oracle.
type NodeRef struct {
	ID       string `json:"id"`
	IsPin    bool   `json:"is_pin"`
	NodeType string `json:"node_type"`
}

// EdgeRef is the projection of an edge sent to the oracle.
type EdgeRef struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
}

// Request is the oracle input.
type Request struct {
	Nodes []NodeRef `json:"nodes"`
	Edges []EdgeRef `json:"edges"`
}

// Response is the oracle output. Violations are free text that names the
// ids of the nodes involved.
type Response struct {
	Consistent         bool     `json:"consistent"`
	Violations         []string `json:"violations"`
	CheckedConstraints int      `json:"checked_constraints"`
}

// Oracle decides whether a branch is logically consistent.
type Oracle interface {
	Check(ctx context.Context, req Request) (Response, error)
}

// Project builds the oracle request for a branch. Nodes are ordered by id and
// edges by (source, target, relation) so equal branches produce equal requests.
func Project(nodes []model.Node, edges []model.Edge) Request {
	req := Request{
		Nodes: make([]NodeRef, 0, len(nodes)),
		Edges: make([]EdgeRef, 0, len(edges)),
	}
	for _, n := range nodes {
		req.Nodes = append(req.Nodes, NodeRef{ID: n.ID, IsPin: n.Metadata.Pin, NodeType: string(n.Type())})
	}
	for _, e := range edges {
		if e.Metadata.IsArchived() {
			continue
		}
		req.Edges = append(req.Edges, EdgeRef{Source: e.Source, Target: e.Target, Relation: string(e.Relation)})
	}
	slices.SortFunc(req.Nodes, func(a, b NodeRef) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(req.Edges, func(a, b EdgeRef) int {
		if c := strings.Compare(a.Source, b.Source); c != 0 {
			return c
		}
		if c := strings.Compare(a.Target, b.Target); c != 0 {
			return c
		}
		return strings.Compare(a.Relation, b.Relation)
	})
	return req
}

// MentionedNodes returns the ids of req's nodes that appear in any violation,
// in request order.
func MentionedNodes(req Request, violations []string) []string {
	var out []string
	for _, n := range req.Nodes {
		for _, v := range violations {
			if strings.Contains(v, n.ID) {
				out = append(out, n.ID)
				break
			}
		}
	}
	return out
}
