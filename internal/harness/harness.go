package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roach88/canon/internal/breaker"
	"github.com/roach88/canon/internal/events"
	"github.com/roach88/canon/internal/guard"
	"github.com/roach88/canon/internal/model"
	"github.com/roach88/canon/internal/oracle"
	"github.com/roach88/canon/internal/store"
	"github.com/roach88/canon/internal/testutil"
	"github.com/roach88/canon/internal/verify"
	"github.com/roach88/canon/internal/version"
)

// Harness is the scenario execution engine. It wires the real store,
// guard, breaker and verification engine around a fixed clock so every run
// of a scenario produces the same hashes and the same trace.
type Harness struct {
	store    *store.Store
	clock    *testutil.FixedClock
	factory  *version.Factory
	auditor  *guard.Auditor
	breaker  *breaker.Breaker
	engine   *verify.Engine
	recorder *events.Recorder
	logger   *zap.Logger

	seen      int // events already copied into the trace
	refs      map[string]string
	names     map[string]string
	artifacts map[string]ArtifactSeed
}

// RefID returns the entity id a scenario ref resolves to.
func RefID(ref string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("canon:"+ref)).String()
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and components
// 2. Stamp and store the seeded nodes, artifacts and edges
// 3. Execute steps, checking expect clauses
// 4. Evaluate assertions against the trace and final store state
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, zap.NewNop())
}

// RunWithLogger is Run with component logs sent to logger.
func RunWithLogger(scenario *Scenario, logger *zap.Logger) (*Result, error) {
	clock := testutil.NewFixedClock(time.Time{})

	st, err := store.Open(":memory:", store.WithClock(clock.Now))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	recorder := &events.Recorder{}
	bus := events.NewBus(recorder)
	b := breaker.New(
		breaker.WithClock(clock.Now),
		breaker.WithLogger(logger),
		breaker.WithBus(bus),
	)

	h := &Harness{
		store:   st,
		clock:   clock,
		factory: testutil.Factory(clock),
		auditor: guard.NewAuditor(
			guard.WithLogger(logger),
			guard.WithBus(bus),
			guard.WithClock(clock.Now),
		),
		breaker: b,
		engine: verify.NewEngine(
			verify.WithOracle(oracle.NewRuleOracle()),
			verify.WithBreaker(b),
			verify.WithLogger(logger),
			verify.WithBus(bus),
		),
		recorder:  recorder,
		logger:    logger,
		refs:      make(map[string]string),
		names:     make(map[string]string),
		artifacts: make(map[string]ArtifactSeed),
	}

	ctx := context.Background()
	if err := h.seed(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to seed scenario: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		entry, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		entry.Breaker = string(h.breaker.State())
		entry = result.addStep(entry)
		for _, e := range h.drainEvents() {
			result.addEvent(string(e.Kind), e.Code)
		}
		if step.Expect != nil {
			for _, msg := range checkExpect(step.Expect, entry) {
				result.AddError(fmt.Sprintf("step %d (%s): %s", i, step.Op, msg))
			}
		}
		h.logger.Debug("scenario step completed",
			zap.Int("step", i),
			zap.String("op", step.Op),
			zap.String("outcome", entry.Outcome),
		)
	}

	actx := &AssertionContext{Store: st, Ctx: ctx, Resolve: h.id}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) id(ref string) string {
	if id, ok := h.refs[ref]; ok {
		return id
	}
	return RefID(ref)
}

func (h *Harness) ref(id string) string {
	if ref, ok := h.names[id]; ok {
		return ref
	}
	return id
}

func (h *Harness) bind(ref string) string {
	id := RefID(ref)
	h.refs[ref] = id
	h.names[id] = ref
	return id
}

func (h *Harness) drainEvents() []events.Event {
	all := h.recorder.Events()
	out := all[h.seen:]
	h.seen = len(all)
	return out
}

// seed stores the scenario's initial graph. Seeding events are discarded.
func (h *Harness) seed(ctx context.Context, s *Scenario) error {
	for _, seed := range s.Nodes {
		n, err := buildNode(h.bind(seed.Ref), seed.Type, seed.Content)
		if err != nil {
			return fmt.Errorf("node %s: %w", seed.Ref, err)
		}
		n.Metadata.Pin = seed.Pin
		n.Metadata.Confidence = seed.Confidence
		n.Metadata.Origin = model.Origin(seed.Origin)
		n.Metadata.AccessControl = model.AccessControl{
			RoleRequired: model.Role(seed.RoleRequired),
			OwnerID:      seed.Owner,
		}
		n, err = h.factory.Stamp(n, "")
		if err != nil {
			return fmt.Errorf("node %s: %w", seed.Ref, err)
		}
		if err := h.store.PutNode(ctx, n); err != nil {
			return fmt.Errorf("node %s: %w", seed.Ref, err)
		}
		if seed.SealedBy == "" {
			continue
		}
		if n, err = h.factory.Seal(n, seed.SealedBy); err != nil {
			return fmt.Errorf("node %s: %w", seed.Ref, err)
		}
		if err := h.store.PutNode(ctx, n); err != nil {
			return fmt.Errorf("node %s: %w", seed.Ref, err)
		}
	}

	for _, seed := range s.Artifacts {
		n, err := h.buildArtifact(seed)
		if err != nil {
			return fmt.Errorf("artifact %s: %w", seed.Ref, err)
		}
		if n, err = h.factory.Stamp(n, ""); err != nil {
			return fmt.Errorf("artifact %s: %w", seed.Ref, err)
		}
		if err := h.store.PutNode(ctx, n); err != nil {
			return fmt.Errorf("artifact %s: %w", seed.Ref, err)
		}
		h.artifacts[seed.Ref] = seed
	}

	for _, seed := range s.Edges {
		e := model.Edge{
			ID:       h.bind(seed.Ref),
			Source:   h.id(seed.Source),
			Target:   h.id(seed.Target),
			Relation: model.Relation(seed.Relation),
		}
		e, err := h.factory.StampEdge(e, "")
		if err != nil {
			return fmt.Errorf("edge %s: %w", seed.Ref, err)
		}
		if err := h.store.PutEdge(ctx, e); err != nil {
			return fmt.Errorf("edge %s: %w", seed.Ref, err)
		}
	}

	h.drainEvents()
	return nil
}

func (h *Harness) buildArtifact(seed ArtifactSeed) (model.Node, error) {
	id := h.bind(seed.Ref)
	a := model.Artifact{Title: seed.Title, Goal: seed.Goal, Body: seed.Body}
	if seed.NoReceipt {
		return model.Node{ID: id, Content: a}, nil
	}

	ctxIDs := make([]string, len(seed.Context))
	for i, ref := range seed.Context {
		ctxIDs[i] = h.id(ref)
	}
	inputHash := seed.InputHash
	if inputHash == "" {
		var err error
		if inputHash, err = verify.ReceiptInputHash(seed.Goal, ctxIDs); err != nil {
			return model.Node{}, err
		}
	}
	assertions := make(map[string]string, len(seed.Assertions))
	for claim, evidence := range seed.Assertions {
		assertions[h.id(claim)] = h.id(evidence)
	}
	a.Receipt = &model.Receipt{
		JobID:        RefID("job:" + seed.Ref),
		CompiledAt:   h.clock.Now(),
		InputHash:    inputHash,
		AssertionMap: assertions,
	}
	return model.Node{ID: id, Content: a}, nil
}

// buildNode decodes content for a node type through the node's JSON envelope.
func buildNode(id, typ string, content map[string]any) (model.Node, error) {
	if content == nil {
		content = map[string]any{}
	}
	data, err := json.Marshal(map[string]any{
		"id":       id,
		"type":     typ,
		"content":  content,
		"metadata": map[string]any{},
	})
	if err != nil {
		return model.Node{}, err
	}
	var n model.Node
	if err := json.Unmarshal(data, &n); err != nil {
		return model.Node{}, err
	}
	return n, nil
}

func (h *Harness) execute(ctx context.Context, step Step) (TraceEntry, error) {
	role := model.Role(step.Role)
	if role == "" {
		role = model.RoleEditor
	}

	switch step.Op {
	case OpModify, OpPin, OpUnpin, OpSeal:
		return h.mutate(ctx, step, role)
	case OpArchive:
		return h.archive(ctx, step, role)
	case OpRelate:
		return h.relate(ctx, step, role)
	case OpVerifyBranch:
		return h.verifyBranch(ctx, step)
	case OpVerifyArtifact:
		return h.verifyArtifact(ctx, step)
	case OpReset:
		entry := TraceEntry{Op: step.Op, Outcome: OutcomeAllowed}
		if err := h.breaker.Reset(role, step.User, step.Reason); err != nil {
			entry.Outcome = OutcomeDenied
			entry.Code = string(breaker.CodeInsufficientRole)
		}
		entry.Breaker = string(h.breaker.State())
		return entry, nil
	case OpAdvance:
		d, err := time.ParseDuration(step.Duration)
		if err != nil {
			return TraceEntry{}, err
		}
		h.clock.Advance(d)
		return TraceEntry{Op: step.Op, Outcome: OutcomeDone}, nil
	case OpCheckStale:
		n, err := h.store.GetNode(ctx, h.id(step.Node))
		if err != nil {
			return TraceEntry{}, err
		}
		entry := TraceEntry{Op: step.Op, Subject: step.Node, Outcome: OutcomeFresh}
		if h.auditor.CheckStaleness(n).Stale {
			entry.Outcome = OutcomeStale
		}
		return entry, nil
	default:
		return TraceEntry{}, fmt.Errorf("unknown op %q", step.Op)
	}
}

// gate refuses mutations while the breaker is tripped.
func (h *Harness) gate(entry TraceEntry) (TraceEntry, bool) {
	if err := h.breaker.Allow(); err != nil {
		entry.Outcome = OutcomeBlocked
		entry.Breaker = string(h.breaker.State())
		return entry, false
	}
	return entry, true
}

func (h *Harness) mutate(ctx context.Context, step Step, role model.Role) (TraceEntry, error) {
	entry, ok := h.gate(TraceEntry{Op: step.Op, Subject: step.Node})
	if !ok {
		return entry, nil
	}

	cur, err := h.store.GetNode(ctx, h.id(step.Node))
	if err != nil {
		return TraceEntry{}, err
	}

	var d guard.Decision
	switch step.Op {
	case OpPin:
		d = h.auditor.CanPin(cur, role, step.User)
	case OpUnpin:
		d = h.auditor.CanUnpin(cur, role, step.User)
	default:
		d = h.auditor.CanModifyNode(cur, role, step.User)
	}
	if !d.Allowed {
		entry.Outcome = OutcomeDenied
		entry.Code = string(d.Code)
		return entry, nil
	}

	var next model.Node
	switch step.Op {
	case OpPin, OpUnpin:
		cur.Metadata.Pin = step.Op == OpPin
		next, err = h.factory.Revise(cur)
	case OpSeal:
		next, err = h.factory.Seal(cur, step.User)
	default:
		if step.Content != nil {
			edited, err := buildNode(cur.ID, string(cur.Type()), step.Content)
			if err != nil {
				return TraceEntry{}, err
			}
			cur.Content = edited.Content
		}
		if step.Confidence != nil {
			cur.Metadata.Confidence = model.Confidence(*step.Confidence)
		}
		next, err = h.factory.Revise(cur)
	}
	if err != nil {
		return TraceEntry{}, err
	}
	if err := h.store.PutNode(ctx, next); err != nil {
		return TraceEntry{}, err
	}
	entry.Outcome = OutcomeAllowed
	return entry, nil
}

func (h *Harness) archive(ctx context.Context, step Step, role model.Role) (TraceEntry, error) {
	entry, ok := h.gate(TraceEntry{Op: step.Op, Subject: step.Node})
	if !ok {
		return entry, nil
	}

	g, err := h.store.LoadGraph(ctx)
	if err != nil {
		return TraceEntry{}, err
	}
	n, found := g.Node(h.id(step.Node))
	if !found {
		return TraceEntry{}, fmt.Errorf("node %s not stored", step.Node)
	}
	if d := h.auditor.CanDeleteNode(n, g, role, step.User); !d.Allowed {
		entry.Outcome = OutcomeDenied
		entry.Code = string(d.Code)
		return entry, nil
	}
	if _, err := h.store.ArchiveNode(ctx, n.ID); err != nil {
		return TraceEntry{}, err
	}
	entry.Outcome = OutcomeAllowed
	return entry, nil
}

func (h *Harness) relate(ctx context.Context, step Step, role model.Role) (TraceEntry, error) {
	entry, ok := h.gate(TraceEntry{Op: step.Op, Subject: step.Source})
	if !ok {
		return entry, nil
	}

	source, err := h.store.GetNode(ctx, h.id(step.Source))
	if err != nil {
		return TraceEntry{}, err
	}
	target, err := h.store.GetNode(ctx, h.id(step.Target))
	if err != nil {
		return TraceEntry{}, err
	}
	rel := model.Relation(step.Relation)
	if d := h.auditor.CanRelate(source, target, rel, role, step.User); !d.Allowed {
		entry.Outcome = OutcomeDenied
		entry.Code = string(d.Code)
		return entry, nil
	}

	ref := step.Ref
	if ref == "" {
		ref = fmt.Sprintf("%s-%s-%s", step.Source, rel, step.Target)
	}
	e, err := h.factory.StampEdge(model.Edge{
		ID:       h.bind(ref),
		Source:   source.ID,
		Target:   target.ID,
		Relation: rel,
	}, "")
	if err != nil {
		return TraceEntry{}, err
	}
	if err := h.store.PutEdge(ctx, e); err != nil {
		return TraceEntry{}, err
	}
	entry.Outcome = OutcomeAllowed
	return entry, nil
}

func (h *Harness) verifyBranch(ctx context.Context, step Step) (TraceEntry, error) {
	g, err := h.store.LoadGraph(ctx)
	if err != nil {
		return TraceEntry{}, err
	}

	var nodes []model.Node
	if len(step.Nodes) > 0 {
		for _, ref := range step.Nodes {
			n, ok := g.Node(h.id(ref))
			if !ok {
				return TraceEntry{}, fmt.Errorf("node %s not stored", ref)
			}
			nodes = append(nodes, n)
		}
	} else {
		for _, n := range g.SortedNodes() {
			if !n.Metadata.IsArchived() && n.Type() != model.TypeArtifact {
				nodes = append(nodes, n)
			}
		}
	}
	if nodes, err = h.tamper(nodes, step.Tamper); err != nil {
		return TraceEntry{}, err
	}

	var edges []model.Edge
	if !step.SkipEdges {
		in := make(map[string]bool, len(nodes))
		for _, n := range nodes {
			in[n.ID] = true
		}
		edges = []model.Edge{}
		for _, e := range g.SortedEdges() {
			if !e.Metadata.IsArchived() && in[e.Source] && in[e.Target] {
				edges = append(edges, e)
			}
		}
	}

	report, _ := h.engine.VerifyBranch(ctx, nodes, edges)
	return h.auditEntry(step, "", report), nil
}

func (h *Harness) verifyArtifact(ctx context.Context, step Step) (TraceEntry, error) {
	artifact, err := h.store.GetNode(ctx, h.id(step.Artifact))
	if err != nil {
		return TraceEntry{}, err
	}

	refs := step.Context
	if len(refs) == 0 {
		refs = h.artifacts[step.Artifact].Context
	}
	nodes := make([]model.Node, 0, len(refs))
	for _, ref := range refs {
		n, err := h.store.GetNode(ctx, h.id(ref))
		if err != nil {
			return TraceEntry{}, err
		}
		nodes = append(nodes, n)
	}
	all, err := h.tamper(append([]model.Node{artifact}, nodes...), step.Tamper)
	if err != nil {
		return TraceEntry{}, err
	}

	report, _ := h.engine.VerifyArtifact(all[0], all[1:])
	return h.auditEntry(step, step.Artifact, report), nil
}

// tamper swaps content in the audited copies without restamping them.
func (h *Harness) tamper(nodes []model.Node, edits map[string]map[string]any) ([]model.Node, error) {
	if len(edits) == 0 {
		return nodes, nil
	}
	out := make([]model.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
		content, ok := edits[h.ref(n.ID)]
		if !ok {
			continue
		}
		edited, err := buildNode(n.ID, string(n.Type()), content)
		if err != nil {
			return nil, err
		}
		out[i].Content = edited.Content
	}
	return out, nil
}

func (h *Harness) auditEntry(step Step, subject string, r verify.Report) TraceEntry {
	entry := TraceEntry{
		Op:      step.Op,
		Subject: subject,
		Outcome: OutcomePassed,
		Breaker: string(h.breaker.State()),
	}
	if !r.Passed {
		entry.Outcome = OutcomeFailed
	}
	for _, c := range r.Codes() {
		entry.Codes = append(entry.Codes, string(c))
	}
	return entry
}

// checkExpect compares a step entry against its expect clause.
func checkExpect(want *Expect, got TraceEntry) []string {
	var errs []string
	if want.Allowed != nil {
		allowed := got.Outcome == OutcomeAllowed
		if allowed != *want.Allowed {
			errs = append(errs, fmt.Sprintf("expected allowed=%t, got outcome %s %s", *want.Allowed, got.Outcome, got.Code))
		}
	}
	if want.Passed != nil {
		passed := got.Outcome == OutcomePassed
		if passed != *want.Passed {
			errs = append(errs, fmt.Sprintf("expected passed=%t, got outcome %s %v", *want.Passed, got.Outcome, got.Codes))
		}
	}
	if want.Code != "" && got.Code != want.Code && !slices.Contains(got.Codes, want.Code) {
		errs = append(errs, fmt.Sprintf("expected code %s, got %q %v", want.Code, got.Code, got.Codes))
	}
	if want.Codes != nil && !slices.Equal(want.Codes, got.Codes) {
		errs = append(errs, fmt.Sprintf("expected codes %v, got %v", want.Codes, got.Codes))
	}
	if want.Breaker != "" && got.Breaker != want.Breaker {
		errs = append(errs, fmt.Sprintf("expected breaker %s, got %q", want.Breaker, got.Breaker))
	}
	if want.Stale != nil {
		stale := got.Outcome == OutcomeStale
		if stale != *want.Stale {
			errs = append(errs, fmt.Sprintf("expected stale=%t, got %s", *want.Stale, got.Outcome))
		}
	}
	return errs
}
