package verify

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/roach88/canon/internal/events"
	"github.com/roach88/canon/internal/logging"
	"github.com/roach88/canon/internal/metrics"
	"github.com/roach88/canon/internal/model"
)

// ErrSupervisorClosed is returned by Submit after Close.
var ErrSupervisorClosed = errors.New("branch supervisor closed")

// Result is a branch audit applied by a BranchSupervisor.
type Result struct {
	BranchID string `json:"branch_id"`
	Key      string `json:"snapshot_key"`
	Report   Report `json:"report"`
}

// BranchSupervisor runs branch audits in the background, one per branch.
//
// Submitting a branch cancels any audit still running for it. A finished
// audit is applied only if its snapshot key is still the latest one
// submitted for the branch; anything else is stale and dropped.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type BranchSupervisor struct {
	engine   *Engine
	logger   *zap.Logger
	metrics  *metrics.Collector
	bus      *events.Bus
	onResult func(Result)

	mu      sync.Mutex
	seq     uint64
	runs    map[string]*branchRun
	results map[string]Result
	closed  bool
	wg      sync.WaitGroup
}

type branchRun struct {
	seq    uint64
	key    string
	cancel context.CancelFunc
}

// SupervisorOption configures a BranchSupervisor.
type SupervisorOption func(*BranchSupervisor)

// OnResult registers fn to run, outside the supervisor lock, for every applied result.
func OnResult(fn func(Result)) SupervisorOption {
	return func(s *BranchSupervisor) { s.onResult = fn }
}

// WithSupervisorLogger sets the logger.
func WithSupervisorLogger(l *zap.Logger) SupervisorOption {
	return func(s *BranchSupervisor) { s.logger = logging.OrNop(l) }
}

// WithSupervisorMetrics sets the metrics collector.
func WithSupervisorMetrics(m *metrics.Collector) SupervisorOption {
	return func(s *BranchSupervisor) { s.metrics = m }
}

// WithSupervisorBus sets the bus receiving stale-result and audited events.
func WithSupervisorBus(b *events.Bus) SupervisorOption {
	return func(s *BranchSupervisor) { s.bus = b }
}

// NewBranchSupervisor creates a supervisor running audits on e.
func NewBranchSupervisor(e *Engine, opts ...SupervisorOption) *BranchSupervisor {
	s := &BranchSupervisor{
		engine:  e,
		logger:  zap.NewNop(),
		runs:    make(map[string]*branchRun),
		results: make(map[string]Result),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit starts an audit of the branch's current content and returns its
// snapshot key. The audit runs until it finishes, a newer Submit for the same
// branch replaces it, ctx is done, or Close is called.
func (s *BranchSupervisor) Submit(ctx context.Context, branchID string, nodes []model.Node, edges []model.Edge) (string, error) {
	key, err := SnapshotKey(nodes, edges)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrSupervisorClosed
	}
	if prev, ok := s.runs[branchID]; ok {
		prev.cancel()
	}
	s.seq++
	runCtx, cancel := context.WithCancel(ctx)
	run := &branchRun{seq: s.seq, key: key, cancel: cancel}
	s.runs[branchID] = run
	s.wg.Add(1)
	s.mu.Unlock()

	nodes = cloneNodes(nodes)
	edges = cloneEdges(edges)
	go func() {
		defer s.wg.Done()
		defer cancel()
		report, scope := s.engine.auditBranch(runCtx, nodes, edges)
		s.apply(branchID, run, report, scope)
	}()
	return key, nil
}

// apply records report unless a newer submit superseded it. Only applied
// reports reach the engine's breaker, metrics and bus.
func (s *BranchSupervisor) apply(branchID string, run *branchRun, report Report, scope string) {
	s.mu.Lock()
	latest, ok := s.runs[branchID]
	if !ok || latest.seq != run.seq || latest.key != run.key {
		s.mu.Unlock()
		s.metrics.RecordStaleResult()
		s.logger.Debug("dropped stale branch audit",
			zap.String("branch_id", branchID),
			zap.String("snapshot_key", run.key),
		)
		s.bus.Publish(events.Event{
			Kind:  events.StaleResultDropped,
			At:    time.Now().UTC(),
			Scope: branchID,
			Code:  run.key,
		})
		return
	}
	delete(s.runs, branchID)
	report = s.engine.finish(scope, report)
	res := Result{BranchID: branchID, Key: run.key, Report: report}
	s.results[branchID] = res
	s.mu.Unlock()

	s.bus.Publish(events.Event{
		Kind:    events.BranchAuditReady,
		At:      time.Now().UTC(),
		Scope:   branchID,
		Code:    run.key,
		NodeIDs: report.Tensions,
	})
	if s.onResult != nil {
		s.onResult(res)
	}
}

// Result returns the last applied result for the branch.
func (s *BranchSupervisor) Result(branchID string) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[branchID]
	return r, ok
}

// Pending reports whether an audit is running for the branch.
func (s *BranchSupervisor) Pending(branchID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.runs[branchID]
	return ok
}

// Wait blocks until every started audit has returned.
func (s *BranchSupervisor) Wait() {
	s.wg.Wait()
}

// Close cancels all running audits, waits for them and rejects further submits.
func (s *BranchSupervisor) Close() {
	s.mu.Lock()
	s.closed = true
	for id, run := range s.runs {
		run.cancel()
		delete(s.runs, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func cloneNodes(nodes []model.Node) []model.Node {
	if nodes == nil {
		return nil
	}
	out := make([]model.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

func cloneEdges(edges []model.Edge) []model.Edge {
	if edges == nil {
		return nil
	}
	out := make([]model.Edge, len(edges))
	for i, e := range edges {
		out[i] = e.Clone()
	}
	return out
}
