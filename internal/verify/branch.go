package verify

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/canon/internal/breaker"
	"github.com/roach88/canon/internal/logging"
	"github.com/roach88/canon/internal/model"
	"github.com/roach88/canon/internal/oracle"
	"github.com/roach88/canon/internal/version"
)

// AuditBranch checks a set of nodes, and with edges also asks the oracle.
//
// Deterministic checks (pin confidence, version integrity, seals) and the
// oracle call run concurrently. An oracle that is absent, slow or failing
// leaves the deterministic findings standing and is reported through
// OracleStatus only. Pass nil edges to skip the oracle.
func (e *Engine) AuditBranch(ctx context.Context, nodes []model.Node, edges []model.Edge) Report {
	r, scope := e.auditBranch(ctx, nodes, edges)
	return e.finish(scope, r)
}

// auditBranch computes a branch report and its breaker scope without
// recording it anywhere.
func (e *Engine) auditBranch(ctx context.Context, nodes []model.Node, edges []model.Edge) (Report, string) {
	r := Report{Kind: "branch", OracleStatus: OracleSkipped}

	var (
		local  []breaker.Violation
		resp   oracle.Response
		req    oracle.Request
		status = OracleSkipped
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		local = checkNodes(nodes)
		return nil
	})
	if edges != nil && e.oracle != nil {
		req = oracle.Project(nodes, edges)
		g.Go(func() error {
			out, err := e.oracle.Check(gctx, req)
			if err != nil {
				status = OracleUnavailable
				if !errors.Is(err, context.Canceled) {
					e.logger.Warn("consistency oracle unavailable, continuing with deterministic checks",
						logging.String("error", err.Error()),
					)
				}
				return nil
			}
			resp = out
			status = OracleConsistent
			if !out.Consistent {
				status = OracleInconsistent
			}
			return nil
		})
	}
	_ = g.Wait()

	r.Issues = local
	r.OracleStatus = status
	if status == OracleInconsistent {
		for _, v := range resp.Violations {
			r.add(breaker.SeverityCritical, breaker.CodeSATViolation, "", v)
		}
		r.Tensions = oracle.MentionedNodes(req, resp.Violations)
	}
	if status == OracleConsistent || status == OracleInconsistent {
		r.CheckedConstraints = resp.CheckedConstraints
	}

	r.Passed = !breaker.HasCritical(r.Issues)
	if r.Passed {
		r.Score = 1
	}

	scope := "branch"
	if key, err := SnapshotKey(nodes, edges); err == nil {
		r.Subject = key
		scope = "branch:" + key
	}
	return r, scope
}

// VerifyBranch runs AuditBranch and gates the result. The error is a
// *breaker.Tripped when any issue is critical.
func (e *Engine) VerifyBranch(ctx context.Context, nodes []model.Node, edges []model.Edge) (Report, error) {
	r := e.AuditBranch(ctx, nodes, edges)
	return r, breaker.Gate("verify branch", r.Issues)
}

func checkNodes(nodes []model.Node) []breaker.Violation {
	var out []breaker.Violation
	add := func(code breaker.Code, id, msg string) {
		out = append(out, breaker.Violation{Severity: breaker.SeverityCritical, Code: code, Message: msg, NodeID: id})
	}

	for _, n := range nodes {
		if n.Metadata.Pin && n.Metadata.ConfidenceValue() < 1.0 {
			add(breaker.CodePinConfidenceLow, n.ID,
				fmt.Sprintf("pinned node %s has confidence %.2f", n.ID, n.Metadata.ConfidenceValue()))
		}
		if n.Metadata.VersionHash != "" && !version.VerifyIntegrity(n) {
			add(breaker.CodeVersionMismatch, n.ID,
				fmt.Sprintf("node %s does not match its version hash %s", n.ID, n.Metadata.VersionHash))
		}
		if n.Metadata.HumanSignature == nil {
			continue
		}
		if err := version.VerifySeal(n); err != nil {
			add(breaker.CodeBrokenSignatureSeal, n.ID,
				fmt.Sprintf("seal on node %s by %s: %v", n.ID, n.Metadata.HumanSignature.SignerID, err))
		}
	}
	return out
}
