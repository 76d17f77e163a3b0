package oracle

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/roach88/canon/internal/events"
	"github.com/roach88/canon/internal/logging"
	"github.com/roach88/canon/internal/metrics"
)

// Settings configures Guarded.
type Settings struct {
	Name string
	// Timeout bounds each call.
	Timeout time.Duration
	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32
	// Interval is the closed-state window after which failure counts reset.
	Interval time.Duration
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// FailureRatio trips the breaker once MinRequests calls have been seen.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultSettings returns the settings used when the config leaves them unset.
func DefaultSettings() Settings {
	return Settings{
		Name:         "consistency-oracle",
		Timeout:      2 * time.Second,
		MaxRequests:  1,
		Interval:     time.Minute,
		OpenTimeout:  30 * time.Second,
		FailureRatio: 0.6,
		MinRequests:  3,
	}
}

// Guarded bounds an Oracle with a per-call timeout and an availability
// breaker. Every failure comes back marked with ErrUnavailable.
//
// The availability breaker only protects the caller from a struggling
// solver. It is unrelated to the integrity breaker in package breaker.
type Guarded struct {
	inner   Oracle
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
	logger  *zap.Logger
	metrics *metrics.Collector
	bus     *events.Bus
}

// Option configures Guarded.
type Option func(*Guarded)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Guarded) { g.logger = logging.OrNop(l) }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(g *Guarded) { g.metrics = m }
}

// WithBus sets the bus receiving OracleDegraded events.
func WithBus(b *events.Bus) Option {
	return func(g *Guarded) { g.bus = b }
}

// NewGuarded wraps inner. A nil inner is allowed and always unavailable.
func NewGuarded(inner Oracle, s Settings, opts ...Option) *Guarded {
	d := DefaultSettings()
	if s.Name == "" {
		s.Name = d.Name
	}
	if s.Timeout <= 0 {
		s.Timeout = d.Timeout
	}
	if s.MinRequests == 0 {
		s.MinRequests = d.MinRequests
	}
	if s.FailureRatio <= 0 {
		s.FailureRatio = d.FailureRatio
	}

	g := &Guarded{inner: inner, timeout: s.Timeout, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}

	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("oracle availability breaker changed state",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// A caller abandoning the call says nothing about the solver.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return g
}

// State reports the availability breaker's state (closed, half-open, open).
func (g *Guarded) State() string {
	return g.cb.State().String()
}

// Check implements Oracle.
func (g *Guarded) Check(ctx context.Context, req Request) (Response, error) {
	if g.inner == nil {
		g.metrics.RecordOracleCall("absent", 0)
		return Response{}, errors.Wrap(ErrUnavailable, "no oracle configured")
	}

	start := time.Now()
	out, err := g.cb.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return g.call(callCtx, req)
	})
	elapsed := time.Since(start).Seconds()

	if err != nil {
		status := "error"
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			status = "rejected"
		case errors.Is(err, context.DeadlineExceeded):
			status = "timeout"
		case errors.Is(err, context.Canceled):
			status = "canceled"
		}
		g.metrics.RecordOracleCall(status, elapsed)
		if status != "canceled" {
			g.logger.Warn("consistency oracle degraded",
				zap.String("status", status),
				logging.String("error", err.Error()),
			)
			g.bus.Publish(events.Event{
				Kind:    events.OracleDegraded,
				At:      time.Now().UTC(),
				Code:    status,
				Message: logging.Redact(err.Error()),
			})
		}
		return Response{}, errors.Mark(errors.Wrapf(err, "oracle %s", status), ErrUnavailable)
	}

	resp := out.(Response)
	if resp.Consistent {
		g.metrics.RecordOracleCall("consistent", elapsed)
	} else {
		g.metrics.RecordOracleCall("inconsistent", elapsed)
	}
	return resp, nil
}

type checkResult struct {
	resp Response
	err  error
}

// call runs the inner oracle and gives up when ctx is done, whether or not
// the oracle itself watches ctx.
func (g *Guarded) call(ctx context.Context, req Request) (Response, error) {
	done := make(chan checkResult, 1)
	go func() {
		resp, err := g.inner.Check(ctx, req)
		done <- checkResult{resp: resp, err: err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}
