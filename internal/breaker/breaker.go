package breaker

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/roach88/canon/internal/events"
	"github.com/roach88/canon/internal/logging"
	"github.com/roach88/canon/internal/metrics"
	"github.com/roach88/canon/internal/model"
)

// State is the breaker's current level.
type State string

const (
	StateOK              State = "OK"
	StateTrippedCritical State = "TRIPPED_CRITICAL"
	StateTrippedWarning  State = "TRIPPED_WARNING"
)

// ErrResetForbidden is returned when a non-admin attempts a reset.
var ErrResetForbidden = errors.New("breaker reset requires admin role")

// Status is a point-in-time copy of the breaker.
type Status struct {
	State      State       `json:"state"`
	Scope      string      `json:"scope,omitempty"`
	Violations []Violation `json:"violations,omitempty"`
	Since      time.Time   `json:"since"`
}

// Breaker tracks whether the pipeline may proceed.
//
// A critical finding moves it to TRIPPED_CRITICAL, which only an admin Reset
// clears. Non-critical findings move an OK breaker to TRIPPED_WARNING, which
// clears itself on the next clean Observe.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Breaker struct {
	mu     sync.Mutex
	status Status

	now     func() time.Time
	logger  *zap.Logger
	bus     *events.Bus
	metrics *metrics.Collector
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock sets the breaker's time source.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// WithLogger sets the audit logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Breaker) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithBus sets the event bus for trip, resolve and reset events.
func WithBus(bus *events.Bus) Option {
	return func(b *Breaker) { b.bus = bus }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(b *Breaker) { b.metrics = m }
}

// WithStatus restores a previously saved status.
func WithStatus(s Status) Option {
	return func(b *Breaker) {
		if s.State != "" {
			b.status = cloneStatus(s)
		}
	}
}

// New creates a breaker in the OK state.
func New(opts ...Option) *Breaker {
	b := &Breaker{
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.status.State == "" {
		b.status = Status{State: StateOK, Since: b.now().UTC()}
	}
	return b
}

// State returns the current level.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status.State
}

// Status returns a copy of the current status.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneStatus(b.status)
}

// Allow returns a *Tripped while the breaker is TRIPPED_CRITICAL.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status.State != StateTrippedCritical {
		return nil
	}
	return &Tripped{
		Message:    "breaker open since " + b.status.Since.Format(time.RFC3339) + " (" + b.status.Scope + ")",
		Violations: append([]Violation(nil), b.status.Violations...),
	}
}

// Observe feeds the findings of one audit of scope into the breaker and
// returns the resulting state.
func (b *Breaker) Observe(scope string, issues []Violation) State {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev := b.status.State
	now := b.now().UTC()

	switch {
	case HasCritical(issues):
		b.status = Status{
			State:      StateTrippedCritical,
			Scope:      scope,
			Violations: append([]Violation(nil), issues...),
			Since:      now,
		}
		b.logger.Error("circuit breaker tripped",
			zap.String("scope", scope),
			zap.String("level", "critical"),
			zap.Strings("codes", codeStrings(Critical(issues))),
		)
		b.metrics.RecordTrip("critical")
		b.bus.Publish(events.Event{
			Kind:    events.BreakerTripped,
			At:      now,
			Scope:   scope,
			Code:    string(StateTrippedCritical),
			Message: logging.Redact(joinMessages(Critical(issues))),
		})

	case prev == StateTrippedCritical:
		// Only Reset leaves the critical state.

	case len(issues) > 0 && MaxSeverity(issues).Rank() >= SeverityWarn.Rank():
		b.status = Status{
			State:      StateTrippedWarning,
			Scope:      scope,
			Violations: append([]Violation(nil), issues...),
			Since:      now,
		}
		if prev != StateTrippedWarning {
			b.logger.Warn("circuit breaker tripped",
				zap.String("scope", scope),
				zap.String("level", "warning"),
				zap.Strings("codes", codeStrings(issues)),
			)
			b.metrics.RecordTrip("warning")
			b.bus.Publish(events.Event{
				Kind:  events.BreakerTripped,
				At:    now,
				Scope: scope,
				Code:  string(StateTrippedWarning),
			})
		}

	case prev == StateTrippedWarning:
		b.status = Status{State: StateOK, Scope: scope, Since: now}
		b.logger.Info("circuit breaker resolved", zap.String("scope", scope))
		b.bus.Publish(events.Event{Kind: events.BreakerResolved, At: now, Scope: scope})
	}

	return b.status.State
}

// Reset returns the breaker to OK. Only admins may reset; the override is
// logged with the actor and reason.
func (b *Breaker) Reset(role model.Role, actorID, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if role != model.RoleAdmin {
		b.logger.Warn("circuit breaker reset refused",
			zap.String("role", string(role)),
			zap.String("user_id", actorID),
		)
		return ErrResetForbidden
	}

	prev := b.status
	now := b.now().UTC()
	b.status = Status{State: StateOK, Since: now}

	b.logger.Warn("circuit breaker reset",
		zap.String("user_id", actorID),
		logging.String("reason", reason),
		zap.String("from", string(prev.State)),
		zap.String("scope", prev.Scope),
	)
	b.metrics.RecordReset()
	b.bus.Publish(events.Event{
		Kind:    events.BreakerReset,
		At:      now,
		Scope:   prev.Scope,
		Code:    string(prev.State),
		Actor:   actorID,
		Message: logging.Redact(reason),
	})
	return nil
}

func cloneStatus(s Status) Status {
	s.Violations = append([]Violation(nil), s.Violations...)
	return s
}

func codeStrings(vs []Violation) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v.Code)
	}
	return out
}

func joinMessages(vs []Violation) string {
	var msg string
	for i, v := range vs {
		if i > 0 {
			msg += "; "
		}
		msg += v.Message
	}
	return msg
}
