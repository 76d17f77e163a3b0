package oracle

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// RuleOracle checks a fixed rule set in process:
//
//   - no node relates to itself
//   - no contradicts edge targets a pinned node
//   - no node both supports (evidence_for or validates) and contradicts the same target
//   - blocks and part_of edges are acyclic
//
// Edges whose endpoints are outside the branch are checked against what the
// request knows and otherwise ignored.
type RuleOracle struct{}

// NewRuleOracle returns the in-process oracle.
func NewRuleOracle() *RuleOracle {
	return &RuleOracle{}
}

// Check implements Oracle.
func (RuleOracle) Check(ctx context.Context, req Request) (Response, error) {
	pinned := make(map[string]bool, len(req.Nodes))
	for _, n := range req.Nodes {
		pinned[n.ID] = n.IsPin
	}

	var violations []string
	checked := 0

	type pair struct{ src, dst string }
	supports := make(map[pair]bool)
	contradicts := make(map[pair]bool)

	for _, e := range req.Edges {
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}
		checked += 2
		if e.Source == e.Target {
			violations = append(violations, fmt.Sprintf("node %s has a %s edge to itself", e.Source, e.Relation))
		}
		if e.Relation == "contradicts" && pinned[e.Target] {
			violations = append(violations, fmt.Sprintf("node %s contradicts pinned node %s", e.Source, e.Target))
		}
		switch e.Relation {
		case "evidence_for", "validates":
			supports[pair{e.Source, e.Target}] = true
		case "contradicts":
			contradicts[pair{e.Source, e.Target}] = true
		}
	}

	checked++
	var both []pair
	for p := range supports {
		if contradicts[p] {
			both = append(both, p)
		}
	}
	slices.SortFunc(both, func(a, b pair) int {
		if c := strings.Compare(a.src, b.src); c != 0 {
			return c
		}
		return strings.Compare(a.dst, b.dst)
	})
	for _, p := range both {
		violations = append(violations, fmt.Sprintf("node %s both supports and contradicts node %s", p.src, p.dst))
	}

	for _, rel := range []string{"blocks", "part_of"} {
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}
		checked++
		if cycle := findCycle(req.Edges, rel); cycle != nil {
			violations = append(violations, fmt.Sprintf("%s cycle: %s", rel, strings.Join(cycle, " -> ")))
		}
	}

	return Response{
		Consistent:         len(violations) == 0,
		Violations:         violations,
		CheckedConstraints: checked,
	}, nil
}

// findCycle returns the first cycle among edges of relation rel, closed by
// repeating its first node, or nil. Self-loops are reported elsewhere.
func findCycle(edges []EdgeRef, rel string) []string {
	adj := make(map[string][]string)
	for _, e := range edges {
		if e.Relation == rel && e.Source != e.Target {
			adj[e.Source] = append(adj[e.Source], e.Target)
		}
	}
	starts := make([]string, 0, len(adj))
	for k, next := range adj {
		slices.Sort(next)
		starts = append(starts, k)
	}
	slices.Sort(starts)

	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int)
	var stack []string

	var visit func(n string) []string
	visit = func(n string) []string {
		state[n] = onStack
		stack = append(stack, n)
		for _, m := range adj[n] {
			switch state[m] {
			case onStack:
				i := slices.Index(stack, m)
				cycle := append([]string(nil), stack[i:]...)
				return append(cycle, m)
			case unvisited:
				if c := visit(m); c != nil {
					return c
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[n] = done
		return nil
	}

	for _, s := range starts {
		if state[s] == unvisited {
			if c := visit(s); c != nil {
				return c
			}
		}
	}
	return nil
}
