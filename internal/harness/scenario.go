package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/canon/internal/model"
)

// Scenario defines an integrity scenario: a seeded graph, a sequence of
// guarded operations and audits, and assertions on the resulting trace and
// final store state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Nodes are stamped and stored before the first step.
	Nodes []NodeSeed `yaml:"nodes"`

	// Edges are stamped and stored after the nodes.
	Edges []EdgeSeed `yaml:"edges,omitempty"`

	// Artifacts are generated outputs with a receipt built from their context.
	Artifacts []ArtifactSeed `yaml:"artifacts,omitempty"`

	// Steps run in order against the seeded store.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// NodeSeed describes a node by reference name. The node id is derived from
// Ref, so the same scenario always produces the same hashes.
type NodeSeed struct {
	Ref          string         `yaml:"ref"`
	Type         string         `yaml:"type"`
	Content      map[string]any `yaml:"content"`
	Pin          bool           `yaml:"pin,omitempty"`
	Confidence   *float64       `yaml:"confidence,omitempty"`
	Origin       string         `yaml:"origin,omitempty"`
	Owner        string         `yaml:"owner,omitempty"`
	RoleRequired string         `yaml:"role_required,omitempty"`
	SealedBy     string         `yaml:"sealed_by,omitempty"`
}

// EdgeSeed describes an edge between two seeded nodes.
type EdgeSeed struct {
	Ref      string `yaml:"ref"`
	Source   string `yaml:"source"`
	Target   string `yaml:"target"`
	Relation string `yaml:"relation"`
}

// ArtifactSeed describes an artifact whose receipt binds it to Context.
// InputHash overrides the computed receipt input hash.
type ArtifactSeed struct {
	Ref        string            `yaml:"ref"`
	Title      string            `yaml:"title"`
	Goal       string            `yaml:"goal"`
	Body       string            `yaml:"body,omitempty"`
	Context    []string          `yaml:"context"`
	Assertions map[string]string `yaml:"assertions,omitempty"`
	InputHash  string            `yaml:"input_hash,omitempty"`
	NoReceipt  bool              `yaml:"no_receipt,omitempty"`
}

// Step is one operation. Which fields apply depends on Op.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Node is the subject node ref (modify, pin, unpin, archive, seal, check_stale).
	Node string `yaml:"node,omitempty"`

	// Role and User identify the actor for guarded operations and reset.
	Role string `yaml:"role,omitempty"`
	User string `yaml:"user,omitempty"`

	// Content replaces the node content (modify).
	Content map[string]any `yaml:"content,omitempty"`

	// Confidence replaces the node confidence (modify).
	Confidence *float64 `yaml:"confidence,omitempty"`

	// Source, Target, Relation and Ref describe a new edge (relate).
	Source   string `yaml:"source,omitempty"`
	Target   string `yaml:"target,omitempty"`
	Relation string `yaml:"relation,omitempty"`
	Ref      string `yaml:"ref,omitempty"`

	// Nodes limits verify_branch to these refs; empty means every live node.
	Nodes []string `yaml:"nodes,omitempty"`

	// SkipEdges runs verify_branch without edges, so the oracle is skipped.
	SkipEdges bool `yaml:"skip_edges,omitempty"`

	// Tamper replaces node content in the audited copy without restamping
	// (verify_branch, verify_artifact).
	Tamper map[string]map[string]any `yaml:"tamper,omitempty"`

	// Artifact and Context select what verify_artifact audits. Context
	// defaults to the artifact's seeded context.
	Artifact string   `yaml:"artifact,omitempty"`
	Context  []string `yaml:"context,omitempty"`

	// Reason is recorded with a breaker reset.
	Reason string `yaml:"reason,omitempty"`

	// Duration moves the clock forward (advance), e.g. "720h".
	Duration string `yaml:"duration,omitempty"`

	// Expect is checked against the step outcome when present.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Step operations.
const (
	OpModify         = "modify"
	OpPin            = "pin"
	OpUnpin          = "unpin"
	OpArchive        = "archive"
	OpRelate         = "relate"
	OpSeal           = "seal"
	OpVerifyBranch   = "verify_branch"
	OpVerifyArtifact = "verify_artifact"
	OpReset          = "reset"
	OpAdvance        = "advance"
	OpCheckStale     = "check_stale"
)

var knownOps = map[string]bool{
	OpModify: true, OpPin: true, OpUnpin: true, OpArchive: true, OpRelate: true, OpSeal: true,
	OpVerifyBranch: true, OpVerifyArtifact: true, OpReset: true, OpAdvance: true, OpCheckStale: true,
}

// Expect specifies the expected outcome of a step. Unset fields are not checked.
type Expect struct {
	// Allowed is the guard decision (guarded operations and reset).
	Allowed *bool `yaml:"allowed,omitempty"`

	// Code is the denial code, or for audits a code that must be among the issues.
	Code string `yaml:"code,omitempty"`

	// Passed is the audit result (verify_branch, verify_artifact).
	Passed *bool `yaml:"passed,omitempty"`

	// Codes is the exact issue code list of an audit, in report order.
	Codes []string `yaml:"codes,omitempty"`

	// Breaker is the breaker state after the step.
	Breaker string `yaml:"breaker,omitempty"`

	// Stale is the staleness verdict (check_stale).
	Stale *bool `yaml:"stale,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a step with Op (and Outcome/Code when given) appears
	// - "trace_order": steps with these ops appear in order
	// - "trace_count": Op or Event occurs exactly Count times
	// - "final_state": the stored node Node matches Expect
	Type string `yaml:"type"`

	Op      string   `yaml:"op,omitempty"`
	Outcome string   `yaml:"outcome,omitempty"`
	Code    string   `yaml:"code,omitempty"`
	Ops     []string `yaml:"ops,omitempty"`
	Event   string   `yaml:"event,omitempty"`
	Count   int      `yaml:"count,omitempty"`
	Node    string   `yaml:"node,omitempty"`

	// Expect holds final_state fields: pin, archived, versions, confidence,
	// sealed, chain_intact, content.<field>.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict fields catch typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and that every ref resolves.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	nodes := make(map[string]bool)
	for i, n := range s.Nodes {
		if n.Ref == "" {
			return fmt.Errorf("nodes[%d]: ref is required", i)
		}
		if nodes[n.Ref] {
			return fmt.Errorf("nodes[%d]: duplicate ref %q", i, n.Ref)
		}
		if err := model.NodeType(n.Type).Validate(); err != nil {
			return fmt.Errorf("nodes[%d]: %w", i, err)
		}
		if n.RoleRequired != "" {
			if _, err := model.ParseRole(n.RoleRequired); err != nil {
				return fmt.Errorf("nodes[%d]: %w", i, err)
			}
		}
		nodes[n.Ref] = true
	}
	for i, a := range s.Artifacts {
		if a.Ref == "" {
			return fmt.Errorf("artifacts[%d]: ref is required", i)
		}
		if nodes[a.Ref] {
			return fmt.Errorf("artifacts[%d]: duplicate ref %q", i, a.Ref)
		}
		for _, c := range a.Context {
			if !nodes[c] {
				return fmt.Errorf("artifacts[%d]: unknown context node %q", i, c)
			}
		}
		nodes[a.Ref] = true
	}
	for i, e := range s.Edges {
		if e.Ref == "" {
			return fmt.Errorf("edges[%d]: ref is required", i)
		}
		if !nodes[e.Source] || !nodes[e.Target] {
			return fmt.Errorf("edges[%d]: unknown endpoint in %s -> %s", i, e.Source, e.Target)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step, nodes); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step, nodes map[string]bool) error {
	if !knownOps[step.Op] {
		return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
	}
	switch step.Op {
	case OpModify, OpPin, OpUnpin, OpArchive, OpSeal, OpCheckStale:
		if !nodes[step.Node] {
			return fmt.Errorf("steps[%d]: %s needs a known node, got %q", i, step.Op, step.Node)
		}
	case OpRelate:
		if !nodes[step.Source] || !nodes[step.Target] {
			return fmt.Errorf("steps[%d]: relate needs known source and target", i)
		}
	case OpVerifyArtifact:
		if !nodes[step.Artifact] {
			return fmt.Errorf("steps[%d]: verify_artifact needs a known artifact, got %q", i, step.Artifact)
		}
	case OpAdvance:
		if _, err := time.ParseDuration(step.Duration); err != nil {
			return fmt.Errorf("steps[%d]: advance: %w", i, err)
		}
	}
	if step.Op == OpSeal && step.User == "" {
		return fmt.Errorf("steps[%d]: seal needs a user to sign as", i)
	}
	if step.Role != "" {
		if _, err := model.ParseRole(step.Role); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for _, ref := range step.Nodes {
		if !nodes[ref] {
			return fmt.Errorf("steps[%d]: unknown node %q", i, ref)
		}
	}
	for ref := range step.Tamper {
		if !nodes[ref] {
			return fmt.Errorf("steps[%d]: cannot tamper with unknown node %q", i, ref)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if (a.Op == "") == (a.Event == "") {
			return fmt.Errorf("assertions[%d]: exactly one of op or event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
