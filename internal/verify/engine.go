package verify

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/canon/internal/breaker"
	"github.com/roach88/canon/internal/events"
	"github.com/roach88/canon/internal/logging"
	"github.com/roach88/canon/internal/metrics"
	"github.com/roach88/canon/internal/oracle"
)

// Engine runs artifact and branch audits.
type Engine struct {
	oracle  oracle.Oracle
	breaker *breaker.Breaker
	logger  *zap.Logger
	metrics *metrics.Collector
	bus     *events.Bus
}

// Option configures an Engine.
type Option func(*Engine)

// WithOracle sets the consistency oracle. Without one, branch audits run the
// deterministic checks only.
func WithOracle(o oracle.Oracle) Option {
	return func(e *Engine) { e.oracle = o }
}

// WithBreaker feeds every audit into b.
func WithBreaker(b *breaker.Breaker) Option {
	return func(e *Engine) { e.breaker = b }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = logging.OrNop(l) }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithBus sets the bus receiving tension events.
func WithBus(b *events.Bus) Option {
	return func(e *Engine) { e.bus = b }
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// finish records r, publishes its tensions and feeds it to the breaker.
func (e *Engine) finish(scope string, r Report) Report {
	outcome := "passed"
	if !r.Passed {
		outcome = "failed"
	}
	e.metrics.RecordAudit(r.Kind, outcome)
	for _, v := range r.Issues {
		e.metrics.RecordIssue(string(v.Code), string(v.Severity))
	}
	if len(r.Issues) > 0 {
		e.logger.Info("audit finished with issues",
			zap.String("kind", r.Kind),
			zap.String("subject", r.Subject),
			zap.Bool("passed", r.Passed),
			zap.Float64("score", r.Score),
			zap.Int("issues", len(r.Issues)),
		)
	}
	if len(r.Tensions) > 0 {
		e.bus.Publish(events.Event{
			Kind:    events.TensionDetected,
			At:      time.Now().UTC(),
			Message: logging.Redact(fmt.Sprintf("%d oracle violation(s)", countCode(r.Issues, breaker.CodeSATViolation))),
			NodeIDs: r.Tensions,
		})
	}
	if e.breaker != nil {
		e.breaker.Observe(scope, r.Issues)
	}
	return r
}

func countCode(issues []breaker.Violation, code breaker.Code) int {
	n := 0
	for _, v := range issues {
		if v.Code == code {
			n++
		}
	}
	return n
}
