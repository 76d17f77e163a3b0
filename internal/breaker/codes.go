// Package breaker defines the integrity failure taxonomy and the circuit
// breaker that halts a pipeline step on critical findings.
//
// Findings are plain values (Violation). Only Gate turns them into an error,
// and only Breaker keeps state across audits.
package breaker

// Code identifies a finding or a guard denial.
type Code string

const (
	CodeNone Code = ""

	// Artifact receipt checks.
	CodeNoReceipt      Code = "NO_RECEIPT"
	CodeIntegrityFail  Code = "INTEGRITY_FAIL"
	CodeOrphanClaim    Code = "ORPHAN_CLAIM"
	CodeBrokenEvidence Code = "BROKEN_EVIDENCE"
	CodeLowConfidence  Code = "LOW_CONFIDENCE"

	// Branch checks.
	CodePinConfidenceLow    Code = "PIN_CONFIDENCE_LOW"
	CodeBrokenSignatureSeal Code = "BROKEN_SIGNATURE_SEAL"
	CodeSATViolation        Code = "SAT_VIOLATION"
	CodeVersionMismatch     Code = "VERSION_MISMATCH"

	// Guard denials.
	CodeInsufficientRole Code = "INSUFFICIENT_ROLE"
	CodePinned           Code = "PINNED"
	CodeDependentsExist  Code = "DEPENDENTS_EXIST"
	CodeSelfRelation     Code = "SELF_RELATION"
	CodeInvalidRelation  Code = "INVALID_RELATION"
	CodeArchived         Code = "ARCHIVED"
)

// Severity orders findings. Only SeverityCritical halts a pipeline.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarn     Severity = "warn"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from info (1) to critical (4). Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarn:
		return 2
	case SeverityError:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Violation is one finding.
type Violation struct {
	Severity Severity `json:"severity"`
	Code     Code     `json:"code"`
	Message  string   `json:"message"`
	NodeID   string   `json:"node_id,omitempty"`
}

// Critical returns the critical violations in vs, preserving order.
func Critical(vs []Violation) []Violation {
	var out []Violation
	for _, v := range vs {
		if v.Severity == SeverityCritical {
			out = append(out, v)
		}
	}
	return out
}

// HasCritical reports whether any violation is critical.
func HasCritical(vs []Violation) bool {
	for _, v := range vs {
		if v.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// MaxSeverity returns the highest severity in vs, or "" for none.
func MaxSeverity(vs []Violation) Severity {
	var max Severity
	for _, v := range vs {
		if v.Severity.Rank() > max.Rank() {
			max = v.Severity
		}
	}
	return max
}
