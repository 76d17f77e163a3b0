package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/canon/internal/metrics"
	"github.com/roach88/canon/internal/model"
	tu "github.com/roach88/canon/internal/testutil"
	"github.com/roach88/canon/internal/version"
)

type fixture struct {
	store   *Store
	clock   *tu.FixedClock
	factory *version.Factory
	metrics *metrics.Collector
}

// createTestStore opens a store in a temp dir driven by a fixed clock.
func createTestStore(t *testing.T) fixture {
	t.Helper()
	clock := tu.NewFixedClock(tu.Epoch)
	m := metrics.NewCollector("")
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), WithClock(clock.Now), WithMetrics(m))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return fixture{store: s, clock: clock, factory: tu.Factory(clock), metrics: m}
}

func (f fixture) claim(t *testing.T, n int, statement string) model.Node {
	t.Helper()
	return tu.Stamp(t, f.factory, tu.Claim(tu.ID(n), statement))
}

func (f fixture) edge(t *testing.T, n int, src, dst string, rel model.Relation) model.Edge {
	t.Helper()
	return tu.StampEdge(t, f.factory, tu.Edge(tu.ID(n), src, dst, rel))
}
