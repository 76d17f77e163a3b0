package guard

import (
	"time"

	"go.uber.org/zap"

	"github.com/roach88/canon/internal/events"
	"github.com/roach88/canon/internal/logging"
	"github.com/roach88/canon/internal/metrics"
	"github.com/roach88/canon/internal/model"
)

// Auditor runs guard checks and records every denial.
type Auditor struct {
	logger     *zap.Logger
	bus        *events.Bus
	metrics    *metrics.Collector
	now        func() time.Time
	staleAfter time.Duration
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithLogger sets the audit logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Auditor) { a.logger = logging.OrNop(l) }
}

// WithBus sets the bus receiving GuardDenied events.
func WithBus(b *events.Bus) Option {
	return func(a *Auditor) { a.bus = b }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(a *Auditor) { a.metrics = m }
}

// WithClock sets the time source for staleness checks and events.
func WithClock(now func() time.Time) Option {
	return func(a *Auditor) { a.now = now }
}

// WithStaleAfter overrides DefaultStaleAfter.
func WithStaleAfter(d time.Duration) Option {
	return func(a *Auditor) {
		if d > 0 {
			a.staleAfter = d
		}
	}
}

// NewAuditor creates an Auditor.
func NewAuditor(opts ...Option) *Auditor {
	a := &Auditor{
		logger:     zap.NewNop(),
		now:        time.Now,
		staleAfter: DefaultStaleAfter,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CanPerformAction is the audited form of CanPerformAction.
func (a *Auditor) CanPerformAction(n model.Node, role model.Role, userID string, action Action) Decision {
	return a.record(action, n.ID, role, userID, CanPerformAction(n, role, userID, action))
}

// CanModifyNode is the audited form of CanModifyNode.
func (a *Auditor) CanModifyNode(n model.Node, role model.Role, userID string) Decision {
	return a.record(ActionModify, n.ID, role, userID, CanModifyNode(n, role, userID))
}

// CanPin is the audited form of CanPin.
func (a *Auditor) CanPin(n model.Node, role model.Role, userID string) Decision {
	return a.record(ActionPin, n.ID, role, userID, CanPin(n, role, userID))
}

// CanUnpin is the audited form of CanUnpin.
func (a *Auditor) CanUnpin(n model.Node, role model.Role, userID string) Decision {
	return a.record(ActionUnpin, n.ID, role, userID, CanUnpin(n, role, userID))
}

// CanChangeAccess is the audited form of CanChangeAccess.
func (a *Auditor) CanChangeAccess(n model.Node, role model.Role, userID string) Decision {
	return a.record(ActionGrant, n.ID, role, userID, CanChangeAccess(n, role, userID))
}

// CanDeleteNode is the audited form of CanDeleteNode.
func (a *Auditor) CanDeleteNode(n model.Node, g model.Graph, role model.Role, userID string) Decision {
	return a.record(ActionDelete, n.ID, role, userID, CanDeleteNode(n, g, role, userID))
}

// CanRelate authorizes creating an edge: the caller must pass the role check
// on the source node and the relation must be legal.
func (a *Auditor) CanRelate(source, target model.Node, rel model.Relation, role model.Role, userID string) Decision {
	d := CanPerformAction(source, role, userID, ActionRelate)
	if d.Allowed {
		d = CanAddRelation(source, target, rel)
	}
	return a.record(ActionRelate, source.ID, role, userID, d)
}

// CheckStaleness runs CheckNodeStaleness against the auditor's clock.
func (a *Auditor) CheckStaleness(n model.Node) Staleness {
	s := CheckNodeStaleness(n, a.now(), a.staleAfter)
	if s.Stale {
		a.logger.Info("node is stale",
			zap.String("node_id", n.ID),
			zap.Duration("age", s.Age),
		)
	}
	return s
}

func (a *Auditor) record(action Action, nodeID string, role model.Role, userID string, d Decision) Decision {
	if d.Allowed {
		return d
	}
	reason := SanitizeLogs(d.Reason)
	a.logger.Warn("guard denied",
		zap.String("action", string(action)),
		zap.String("node_id", nodeID),
		zap.String("code", string(d.Code)),
		zap.String("role", string(role)),
		logging.String("user_id", userID),
		zap.String("reason", reason),
	)
	a.metrics.RecordGuardDenial(string(d.Code))
	a.bus.Publish(events.Event{
		Kind:    events.GuardDenied,
		At:      a.now().UTC(),
		Scope:   string(action),
		Code:    string(d.Code),
		Actor:   SanitizeLogs(userID),
		Message: reason,
		NodeIDs: []string{nodeID},
	})
	return d
}
