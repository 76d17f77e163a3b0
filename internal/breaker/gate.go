package breaker

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Tripped is the halt signal. A pipeline step that receives it must not
// deliver its output as trustworthy.
type Tripped struct {
	Message    string      `json:"message"`
	Violations []Violation `json:"violations"`
}

// Error implements the error interface.
func (t *Tripped) Error() string {
	codes := make([]string, 0, len(t.Violations))
	for _, v := range t.Violations {
		if v.Severity == SeverityCritical {
			codes = append(codes, string(v.Code))
		}
	}
	return fmt.Sprintf("circuit breaker tripped: %s [%s]", t.Message, strings.Join(codes, ", "))
}

// Codes returns the codes of all carried violations in order.
func (t *Tripped) Codes() []Code {
	out := make([]Code, len(t.Violations))
	for i, v := range t.Violations {
		out[i] = v.Code
	}
	return out
}

// Gate is the pipeline boundary. It returns a *Tripped carrying the full
// issue list when any issue is critical, and nil otherwise.
func Gate(step string, issues []Violation) error {
	if !HasCritical(issues) {
		return nil
	}
	n := len(Critical(issues))
	return &Tripped{
		Message:    fmt.Sprintf("%s: %d critical issue(s)", step, n),
		Violations: append([]Violation(nil), issues...),
	}
}

// IsTripped returns true if err carries a *Tripped.
// Uses errors.As to handle wrapped errors.
func IsTripped(err error) bool {
	var t *Tripped
	return errors.As(err, &t)
}

// AsTripped extracts the *Tripped from err, if any.
func AsTripped(err error) (*Tripped, bool) {
	var t *Tripped
	if errors.As(err, &t) {
		return t, true
	}
	return nil, false
}
