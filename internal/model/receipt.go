package model

import (
	"slices"
	"time"
)

// Receipt is the proof structure emitted by the artifact compiler. It binds
// an artifact to the goal and context nodes it was produced from and maps
// each claim it makes to the evidence backing it.
type Receipt struct {
	JobID              string            `json:"job_id" validate:"required,uuid"`
	CompiledAt         time.Time         `json:"compiled_at"`
	InputHash          string            `json:"input_hash" validate:"required"`
	AssertionMap       map[string]string `json:"assertion_map"`
	TokenUsage         *int64            `json:"token_usage,omitempty"`
	LatencyMS          *int64            `json:"latency_ms,omitempty"`
	VerificationResult map[string]any    `json:"verification_result,omitempty"`
}

// Assertion is one claim-to-evidence pair from a receipt.
type Assertion struct {
	ClaimID    string
	EvidenceID string
}

// Assertions returns the assertion map as pairs sorted by claim id.
func (r *Receipt) Assertions() []Assertion {
	if r == nil {
		return nil
	}
	claims := make([]string, 0, len(r.AssertionMap))
	for c := range r.AssertionMap {
		claims = append(claims, c)
	}
	slices.Sort(claims)

	out := make([]Assertion, len(claims))
	for i, c := range claims {
		out[i] = Assertion{ClaimID: c, EvidenceID: r.AssertionMap[c]}
	}
	return out
}
