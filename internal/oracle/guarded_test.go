package oracle

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/canon/internal/events"
	"github.com/roach88/canon/internal/metrics"
)

type funcOracle func(ctx context.Context, req Request) (Response, error)

func (f funcOracle) Check(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

func blocking() Oracle {
	return funcOracle(func(ctx context.Context, _ Request) (Response, error) {
		<-ctx.Done()
		return Response{}, ctx.Err()
	})
}

func failing(calls *int32) Oracle {
	return funcOracle(func(context.Context, Request) (Response, error) {
		atomic.AddInt32(calls, 1)
		return Response{}, errors.New("solver crashed")
	})
}

func TestGuardedPassesThrough(t *testing.T) {
	m := metrics.NewCollector("")
	g := NewGuarded(NewRuleOracle(), Settings{}, WithMetrics(m))

	resp, err := g.Check(context.Background(), Request{
		Nodes: []NodeRef{{ID: "a", IsPin: true}, {ID: "b"}},
		Edges: []EdgeRef{{Source: "b", Target: "a", Relation: "contradicts"}},
	})
	require.NoError(t, err)
	assert.False(t, resp.Consistent)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OracleCalls.WithLabelValues("inconsistent")))
}

func TestGuardedNilOracle(t *testing.T) {
	m := metrics.NewCollector("")
	g := NewGuarded(nil, Settings{}, WithMetrics(m))
	_, err := g.Check(context.Background(), Request{})
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OracleCalls.WithLabelValues("absent")))
}

func TestGuardedTimeout(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rec := &events.Recorder{}
	g := NewGuarded(blocking(), Settings{Timeout: 20 * time.Millisecond},
		WithLogger(zap.New(core)), WithBus(events.NewBus(rec)))

	start := time.Now()
	_, err := g.Check(context.Background(), Request{})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	assert.Equal(t, 1, logs.FilterMessage("consistency oracle degraded").Len())
	degraded := rec.OfKind(events.OracleDegraded)
	require.Len(t, degraded, 1)
	assert.Equal(t, "timeout", degraded[0].Code)
}

func TestGuardedTimeoutIgnoredContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	stubborn := funcOracle(func(context.Context, Request) (Response, error) {
		<-release
		return Response{Consistent: true}, nil
	})

	m := metrics.NewCollector("")
	g := NewGuarded(stubborn, Settings{Timeout: 30 * time.Millisecond}, WithMetrics(m))

	start := time.Now()
	_, err := g.Check(context.Background(), Request{})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OracleCalls.WithLabelValues("timeout")))
}

func TestGuardedOpensAfterFailures(t *testing.T) {
	var calls int32
	m := metrics.NewCollector("")
	g := NewGuarded(failing(&calls), Settings{
		MinRequests:  2,
		FailureRatio: 0.5,
		OpenTimeout:  time.Hour,
	}, WithMetrics(m))

	for i := 0; i < 2; i++ {
		_, err := g.Check(context.Background(), Request{})
		assert.True(t, errors.Is(err, ErrUnavailable))
	}
	assert.Equal(t, "open", g.State())

	_, err := g.Check(context.Background(), Request{})
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OracleCalls.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OracleCalls.WithLabelValues("rejected")))
}

func TestGuardedCancellationDoesNotTrip(t *testing.T) {
	g := NewGuarded(blocking(), Settings{MinRequests: 1, FailureRatio: 0.1, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(5 * time.Millisecond)
			cancel()
		}()
		_, err := g.Check(ctx, Request{})
		assert.True(t, errors.Is(err, context.Canceled))
		assert.True(t, errors.Is(err, ErrUnavailable))
	}
	assert.Equal(t, "closed", g.State())
}
