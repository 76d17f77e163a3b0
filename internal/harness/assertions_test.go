package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEntry {
	r := NewResult()
	r.addStep(TraceEntry{Op: OpModify, Subject: "claim", Outcome: OutcomeDenied, Code: "PINNED"})
	r.addEvent("guard.denied", "PINNED")
	r.addStep(TraceEntry{Op: OpUnpin, Subject: "claim", Outcome: OutcomeAllowed})
	r.addStep(TraceEntry{Op: OpVerifyBranch, Outcome: OutcomeFailed, Codes: []string{"VERSION_MISMATCH", "SAT_VIOLATION"}})
	r.addEvent("breaker.tripped", "TRIPPED_CRITICAL")
	return r.Trace
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpModify}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpModify, Code: "PINNED"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpVerifyBranch, Code: "SAT_VIOLATION"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpUnpin, Outcome: OutcomeAllowed}))

	err := assertTraceContains(trace, Assertion{Op: OpUnpin, Outcome: OutcomeDenied})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, err.Error(), "Full trace")
	assert.Contains(t, err.Error(), "event breaker.tripped")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{OpModify, OpVerifyBranch}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{OpModify, OpUnpin, OpVerifyBranch}}))
	assert.Error(t, assertTraceOrder(trace, Assertion{Ops: []string{OpUnpin, OpModify}}))
	assert.Error(t, assertTraceOrder(trace, Assertion{Ops: []string{OpArchive}}))
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpModify, Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpArchive, Count: 0}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Event: "guard.denied", Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Event: "breaker.tripped", Code: "TRIPPED_WARNING", Count: 0}))

	err := assertTraceCount(trace, Assertion{Event: "guard.denied", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 occurrences of event guard.denied")
}

func TestStateValuesEqual(t *testing.T) {
	assert.True(t, stateValuesEqual(3, 3))
	assert.True(t, stateValuesEqual(0.9, 0.9))
	assert.True(t, stateValuesEqual(1, 1.0))
	assert.True(t, stateValuesEqual(true, true))
	assert.True(t, stateValuesEqual("x", "x"))
	assert.False(t, stateValuesEqual(2, 3))
	assert.False(t, stateValuesEqual(true, false))
	assert.False(t, stateValuesEqual(1, "1"))
}

func TestEvaluateAssertions_FinalStateNeedsStore(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertFinalState, Node: "claim", Expect: map[string]any{"pin": true}},
	}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "requires database context")
}
