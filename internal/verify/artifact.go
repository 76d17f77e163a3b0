package verify

import (
	"fmt"
	"math"
	"slices"

	"github.com/roach88/canon/internal/breaker"
	"github.com/roach88/canon/internal/ir"
	"github.com/roach88/canon/internal/model"
)

const (
	orphanPenalty         = 0.1
	brokenEvidencePenalty = 0.1
	lowConfidencePenalty  = 0.05

	// LowConfidenceThreshold flags context nodes below it.
	LowConfidenceThreshold = 0.5
)

// ReceiptInputHash is the input hash a receipt must carry for goal and the
// given context node ids: the stable hash of
// {"goal": goal, "context_node_ids": sorted ids}.
func ReceiptInputHash(goal string, contextIDs []string) (string, error) {
	ids := slices.Clone(contextIDs)
	slices.Sort(ids)
	if ids == nil {
		ids = []string{}
	}
	return ir.ComputeStableHash(map[string]any{
		"goal":             goal,
		"context_node_ids": ids,
	})
}

// AuditArtifact checks an artifact's receipt against the context it claims
// to be built from. It never fails; everything it finds is in the report.
func (e *Engine) AuditArtifact(artifact model.Node, contextNodes []model.Node) Report {
	r := Report{Kind: "artifact", Subject: artifact.ID, Score: 1}

	a, ok := artifact.Content.(model.Artifact)
	if !ok || a.Receipt == nil {
		msg := fmt.Sprintf("artifact %s has no compilation receipt", artifact.ID)
		if !ok {
			msg = fmt.Sprintf("node %s is a %s, not an artifact", artifact.ID, artifact.Type())
		}
		r.add(breaker.SeverityCritical, breaker.CodeNoReceipt, artifact.ID, msg)
		r.Score = 0
		return e.finish("artifact:"+artifact.ID, r)
	}
	receipt := a.Receipt

	ids := make([]string, len(contextNodes))
	present := make(map[string]bool, len(contextNodes))
	for i, n := range contextNodes {
		ids[i] = n.ID
		present[n.ID] = true
	}

	integrityFailed := false
	expected, err := ReceiptInputHash(a.Goal, ids)
	switch {
	case err != nil:
		r.add(breaker.SeverityCritical, breaker.CodeIntegrityFail, artifact.ID,
			fmt.Sprintf("cannot recompute input hash: %v", err))
		integrityFailed = true
	case expected != receipt.InputHash:
		r.add(breaker.SeverityCritical, breaker.CodeIntegrityFail, artifact.ID,
			fmt.Sprintf("receipt input hash %q does not match recomputed %s", receipt.InputHash, expected))
		integrityFailed = true
	}

	for _, as := range receipt.Assertions() {
		if !present[as.ClaimID] {
			r.add(breaker.SeverityWarn, breaker.CodeOrphanClaim, as.ClaimID,
				fmt.Sprintf("claim %s is not in the artifact context", as.ClaimID))
			r.Score -= orphanPenalty
		}
		if !present[as.EvidenceID] {
			r.add(breaker.SeverityWarn, breaker.CodeBrokenEvidence, as.EvidenceID,
				fmt.Sprintf("evidence %s for claim %s is not in the artifact context", as.EvidenceID, as.ClaimID))
			r.Score -= brokenEvidencePenalty
		}
	}

	for _, n := range contextNodes {
		if c := n.Metadata.ConfidenceValue(); c < LowConfidenceThreshold {
			r.add(breaker.SeverityWarn, breaker.CodeLowConfidence, n.ID,
				fmt.Sprintf("context node %s has confidence %.2f", n.ID, c))
			r.Score -= lowConfidencePenalty
		}
	}

	r.Score = math.Max(0, r.Score)
	if integrityFailed {
		r.Score = 0
	}
	r.Passed = !breaker.HasCritical(r.Issues)
	return e.finish("artifact:"+artifact.ID, r)
}

// VerifyArtifact runs AuditArtifact and gates the result. The error is a
// *breaker.Tripped when any issue is critical.
func (e *Engine) VerifyArtifact(artifact model.Node, contextNodes []model.Node) (Report, error) {
	r := e.AuditArtifact(artifact, contextNodes)
	return r, breaker.Gate("verify artifact "+artifact.ID, r.Issues)
}
