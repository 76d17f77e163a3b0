package harness

// Trace entry types.
const (
	TraceStep  = "step"
	TraceEvent = "event"
)

// Step outcomes recorded in the trace.
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
	OutcomeBlocked = "blocked" // refused because the breaker is tripped
	OutcomePassed  = "passed"
	OutcomeFailed  = "failed"
	OutcomeStale   = "stale"
	OutcomeFresh   = "fresh"
	OutcomeDone    = "done"
)

// TraceEntry is one step outcome or one event published while it ran.
type TraceEntry struct {
	Seq     int      `json:"seq"`
	Type    string   `json:"type"` // "step" or "event"
	Op      string   `json:"op,omitempty"`
	Subject string   `json:"subject,omitempty"` // ref of the node the step acted on
	Outcome string   `json:"outcome,omitempty"`
	Code    string   `json:"code,omitempty"`
	Codes   []string `json:"codes,omitempty"`
	Breaker string   `json:"breaker,omitempty"`
	Kind    string   `json:"kind,omitempty"` // event kind
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains the step outcomes and events in order.
	Trace []TraceEntry `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEntry{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addStep appends a step entry and returns it for the expect check.
func (r *Result) addStep(e TraceEntry) TraceEntry {
	e.Seq = len(r.Trace) + 1
	e.Type = TraceStep
	r.Trace = append(r.Trace, e)
	return e
}

func (r *Result) addEvent(kind, code string) {
	r.Trace = append(r.Trace, TraceEntry{
		Seq:  len(r.Trace) + 1,
		Type: TraceEvent,
		Kind: kind,
		Code: code,
	})
}
