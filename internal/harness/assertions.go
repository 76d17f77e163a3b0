package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/canon/internal/store"
	"github.com/roach88/canon/internal/version"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEntry // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, entry := range e.Trace {
			if entry.Type == TraceStep {
				fmt.Fprintf(&buf, "  [%d] %s %s -> %s %s\n", entry.Seq, entry.Op, entry.Subject, entry.Outcome, entry.Code)
			} else {
				fmt.Fprintf(&buf, "  [%d] event %s %s\n", entry.Seq, entry.Kind, entry.Code)
			}
		}
	}

	return buf.String()
}

// matchStep reports whether a trace entry is a step matching the assertion's
// op and, when given, its outcome and code.
func matchStep(entry TraceEntry, a Assertion) bool {
	if entry.Type != TraceStep || entry.Op != a.Op {
		return false
	}
	if a.Outcome != "" && entry.Outcome != a.Outcome {
		return false
	}
	if a.Code != "" && entry.Code != a.Code {
		found := false
		for _, c := range entry.Codes {
			if c == a.Code {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// assertTraceContains checks if the trace contains a matching step.
func assertTraceContains(trace []TraceEntry, assertion Assertion) error {
	for _, entry := range trace {
		if matchStep(entry, assertion) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("step %s (outcome %q, code %q)", assertion.Op, assertion.Outcome, assertion.Code),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if ops appear in the specified order.
// Ops don't need to be consecutive (intervening steps are allowed).
func assertTraceOrder(trace []TraceEntry, assertion Assertion) error {
	pos := 0
	for _, want := range assertion.Ops {
		found := false
		for pos < len(trace) {
			entry := trace[pos]
			pos++
			if entry.Type == TraceStep && entry.Op == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", assertion.Ops),
				Actual:   fmt.Sprintf("no %s step after position %d", want, pos),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the op or event appears exactly the specified number of times.
func assertTraceCount(trace []TraceEntry, assertion Assertion) error {
	count := 0
	what := assertion.Op
	if assertion.Event != "" {
		what = "event " + assertion.Event
	}
	for _, entry := range trace {
		switch {
		case assertion.Event != "":
			if entry.Type == TraceEvent && entry.Kind == assertion.Event &&
				(assertion.Code == "" || entry.Code == assertion.Code) {
				count++
			}
		case matchStep(entry, assertion):
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, what),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// nodeState reads the observable state of a stored node as a flat map.
// Content fields are keyed "content.<field>".
func nodeState(ctx context.Context, st *store.Store, id string) (map[string]any, error) {
	n, err := st.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	versions, err := st.History(ctx, id)
	if err != nil {
		return nil, err
	}

	state := map[string]any{
		"type":         string(n.Type()),
		"pin":          n.Metadata.Pin,
		"archived":     n.Metadata.IsArchived(),
		"sealed":       n.Metadata.HumanSignature != nil,
		"confidence":   n.Metadata.ConfidenceValue(),
		"versions":     len(versions),
		"chain_intact": version.VerifyChain(versions) == nil,
		"seal_intact":  n.Metadata.HumanSignature == nil || version.VerifySeal(n) == nil,
	}

	data, err := json.Marshal(n.Content)
	if err != nil {
		return nil, err
	}
	var content map[string]any
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, err
	}
	for k, v := range content {
		state["content."+k] = v
	}
	return state, nil
}

// assertFinalState checks that the stored node has the expected fields
// (subset semantics: only fields named in Expect are checked).
func assertFinalState(ctx context.Context, st *store.Store, id string, assertion Assertion) error {
	state, err := nodeState(ctx, st, id)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("node %s to be stored", assertion.Node),
			Actual:   err.Error(),
		}
	}

	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expected := assertion.Expect[key]
		actual, exists := state[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist on %s", key, assertion.Node),
				Actual:   "field not present",
			}
		}
		if !stateValuesEqual(expected, actual) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %v (type %T)", assertion.Node, key, expected, expected),
				Actual:   fmt.Sprintf("%s.%s = %v (type %T)", assertion.Node, key, actual, actual),
			}
		}
	}
	return nil
}

// stateValuesEqual compares a YAML-decoded expectation with a state value.
// Numbers compare by value regardless of their Go type.
func stateValuesEqual(expected, actual any) bool {
	if ef, ok := toFloat(expected); ok {
		af, ok := toFloat(actual)
		return ok && ef == af
	}
	return fmt.Sprint(expected) == fmt.Sprint(actual)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context

	// Resolve maps a scenario ref to its entity id. Nil means RefID.
	Resolve func(ref string) string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				resolve := actx.Resolve
				if resolve == nil {
					resolve = RefID
				}
				err = assertFinalState(actx.Ctx, actx.Store, resolve(assertion.Node), assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
