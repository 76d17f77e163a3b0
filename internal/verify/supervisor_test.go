package verify

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/canon/internal/breaker"
	"github.com/roach88/canon/internal/events"
	"github.com/roach88/canon/internal/metrics"
	"github.com/roach88/canon/internal/model"
	"github.com/roach88/canon/internal/oracle"
	tu "github.com/roach88/canon/internal/testutil"
)

// gatedOracle blocks every call until release is closed or the call is canceled.
func gatedOracle(release <-chan struct{}) oracle.Oracle {
	return funcOracle(func(ctx context.Context, _ oracle.Request) (oracle.Response, error) {
		select {
		case <-release:
			return oracle.Response{Consistent: true, Violations: []string{}}, nil
		case <-ctx.Done():
			return oracle.Response{}, ctx.Err()
		}
	})
}

func TestSupervisorAppliesResult(t *testing.T) {
	nodes, edges := branch(t)
	release := make(chan struct{})
	close(release)

	var mu sync.Mutex
	var got []Result
	s := NewBranchSupervisor(NewEngine(WithOracle(gatedOracle(release))), OnResult(func(r Result) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, r)
	}))
	defer s.Close()

	key, err := s.Submit(context.Background(), "main", nodes, edges)
	require.NoError(t, err)
	s.Wait()

	res, ok := s.Result("main")
	require.True(t, ok)
	assert.Equal(t, key, res.Key)
	assert.Equal(t, key, res.Report.Subject)
	assert.True(t, res.Report.Passed)
	assert.Equal(t, OracleConsistent, res.Report.OracleStatus)
	assert.False(t, s.Pending("main"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "main", got[0].BranchID)
}

func TestSupervisorDropsSupersededRun(t *testing.T) {
	nodes, edges := branch(t)
	release := make(chan struct{})
	rec := &events.Recorder{}
	m := metrics.NewCollector("")
	s := NewBranchSupervisor(
		NewEngine(WithOracle(gatedOracle(release))),
		WithSupervisorMetrics(m),
		WithSupervisorBus(events.NewBus(rec)),
	)
	defer s.Close()

	first, err := s.Submit(context.Background(), "main", nodes, edges)
	require.NoError(t, err)
	assert.True(t, s.Pending("main"))

	f := tu.Factory(tu.NewFixedClock(tu.Epoch))
	edited := append([]model.Node(nil), nodes...)
	edited[1] = tu.Stamp(t, f, tu.Evidence(tu.ID(2), "observed twice"))
	second, err := s.Submit(context.Background(), "main", edited, edges)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	close(release)
	s.Wait()

	res, ok := s.Result("main")
	require.True(t, ok)
	assert.Equal(t, second, res.Key)
	assert.Equal(t, OracleConsistent, res.Report.OracleStatus)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleResults))
	stale := rec.OfKind(events.StaleResultDropped)
	require.Len(t, stale, 1)
	assert.Equal(t, first, stale[0].Code)
	assert.Len(t, rec.OfKind(events.BranchAuditReady), 1)
}

func TestSupervisorStaleRunLeavesBreakerAlone(t *testing.T) {
	nodes, edges := branch(t)
	doubted := append([]model.Node(nil), nodes...)
	doubted[0] = withConfidence(doubted[0], 0.9)

	release := make(chan struct{})
	b := breaker.New()
	m := metrics.NewCollector("")
	s := NewBranchSupervisor(NewEngine(
		WithOracle(gatedOracle(release)),
		WithBreaker(b),
		WithMetrics(m),
	))
	defer s.Close()

	_, err := s.Submit(context.Background(), "main", doubted, edges)
	require.NoError(t, err)
	latest, err := s.Submit(context.Background(), "main", nodes, edges)
	require.NoError(t, err)

	close(release)
	s.Wait()

	res, ok := s.Result("main")
	require.True(t, ok)
	assert.Equal(t, latest, res.Key)
	assert.True(t, res.Report.Passed)
	assert.Equal(t, breaker.StateOK, b.State())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Audits.WithLabelValues("branch", "passed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Audits.WithLabelValues("branch", "failed")))
}

func TestSupervisorAppliedRunFeedsBreaker(t *testing.T) {
	nodes, edges := branch(t)
	doubted := append([]model.Node(nil), nodes...)
	doubted[0] = withConfidence(doubted[0], 0.9)

	release := make(chan struct{})
	close(release)
	b := breaker.New()
	s := NewBranchSupervisor(NewEngine(WithOracle(gatedOracle(release)), WithBreaker(b)))
	defer s.Close()

	_, err := s.Submit(context.Background(), "main", doubted, edges)
	require.NoError(t, err)
	s.Wait()

	res, ok := s.Result("main")
	require.True(t, ok)
	assert.False(t, res.Report.Passed)
	assert.Equal(t, breaker.StateTrippedCritical, b.State())
}

func TestSupervisorBranchesAreIndependent(t *testing.T) {
	nodes, edges := branch(t)
	release := make(chan struct{})
	close(release)
	s := NewBranchSupervisor(NewEngine(WithOracle(gatedOracle(release))))
	defer s.Close()

	_, err := s.Submit(context.Background(), "a", nodes, edges)
	require.NoError(t, err)
	_, err = s.Submit(context.Background(), "b", nodes, nil)
	require.NoError(t, err)
	s.Wait()

	a, ok := s.Result("a")
	require.True(t, ok)
	b, ok := s.Result("b")
	require.True(t, ok)
	assert.Equal(t, OracleConsistent, a.Report.OracleStatus)
	assert.Equal(t, OracleSkipped, b.Report.OracleStatus)
	assert.NotEqual(t, a.Key, b.Key)
}

func TestSupervisorClose(t *testing.T) {
	nodes, edges := branch(t)
	release := make(chan struct{})
	defer close(release)
	m := metrics.NewCollector("")
	s := NewBranchSupervisor(NewEngine(WithOracle(gatedOracle(release))), WithSupervisorMetrics(m))

	_, err := s.Submit(context.Background(), "main", nodes, edges)
	require.NoError(t, err)
	s.Close()

	_, ok := s.Result("main")
	assert.False(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleResults))

	_, err = s.Submit(context.Background(), "main", nodes, edges)
	assert.ErrorIs(t, err, ErrSupervisorClosed)
}
