// Package verify audits artifacts and branches for cryptographic and
// logical consistency.
//
// Audit functions always return a Report. The Verify forms pass that report
// through breaker.Gate, which is the only place a critical finding becomes
// an error.
package verify

import (
	"github.com/roach88/canon/internal/breaker"
)

// OracleStatus says what happened to the consistency oracle during a branch audit.
type OracleStatus string

const (
	OracleSkipped      OracleStatus = "skipped"
	OracleConsistent   OracleStatus = "consistent"
	OracleInconsistent OracleStatus = "inconsistent"
	OracleUnavailable  OracleStatus = "unavailable"
)

// Report is the outcome of one audit.
type Report struct {
	Kind     string              `json:"kind"`
	Subject  string              `json:"subject,omitempty"`
	Passed   bool                `json:"passed"`
	Score    float64             `json:"score"`
	Issues   []breaker.Violation `json:"issues"`
	Tensions []string            `json:"tensions,omitempty"`

	OracleStatus       OracleStatus `json:"oracle_status,omitempty"`
	CheckedConstraints int          `json:"checked_constraints,omitempty"`
}

// Codes returns the issue codes in report order.
func (r Report) Codes() []breaker.Code {
	out := make([]breaker.Code, len(r.Issues))
	for i, v := range r.Issues {
		out[i] = v.Code
	}
	return out
}

// HasCode reports whether any issue carries code.
func (r Report) HasCode(code breaker.Code) bool {
	for _, v := range r.Issues {
		if v.Code == code {
			return true
		}
	}
	return false
}

func (r *Report) add(sev breaker.Severity, code breaker.Code, nodeID, msg string) {
	r.Issues = append(r.Issues, breaker.Violation{Severity: sev, Code: code, Message: msg, NodeID: nodeID})
}
