package guard

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/canon/internal/breaker"
	"github.com/roach88/canon/internal/events"
	"github.com/roach88/canon/internal/metrics"
	"github.com/roach88/canon/internal/model"
	tu "github.com/roach88/canon/internal/testutil"
)

func newAuditor(t *testing.T) (*Auditor, *observer.ObservedLogs, *events.Recorder, *metrics.Collector, *tu.FixedClock) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	rec := &events.Recorder{}
	m := metrics.NewCollector("")
	clock := tu.NewFixedClock(tu.Epoch)
	a := NewAuditor(
		WithLogger(zap.New(core)),
		WithBus(events.NewBus(rec)),
		WithMetrics(m),
		WithClock(clock.Now),
	)
	return a, logs, rec, m, clock
}

func TestAuditorRecordsDenials(t *testing.T) {
	a, logs, rec, m, _ := newAuditor(t)
	pinned := node(tu.ID(1), func(md *model.Metadata) { md.Pin = true })

	d := a.CanModifyNode(pinned, model.RoleAdmin, "alice")
	require.False(t, d.Allowed)

	entries := logs.FilterMessage("guard denied").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, pinned.ID, fields["node_id"])
	assert.Equal(t, "PINNED", fields["code"])
	assert.Equal(t, "admin", fields["role"])
	assert.Equal(t, "alice", fields["user_id"])
	assert.Equal(t, "modify", fields["action"])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuardDenials.WithLabelValues("PINNED")))
	denied := rec.OfKind(events.GuardDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, []string{pinned.ID}, denied[0].NodeIDs)
	assert.Equal(t, tu.Epoch, denied[0].At)
}

func TestAuditorSilentOnAllow(t *testing.T) {
	a, logs, rec, _, _ := newAuditor(t)
	n := node(tu.ID(1), nil)

	assert.True(t, a.CanModifyNode(n, model.RoleEditor, "u").Allowed)
	assert.True(t, a.CanPin(n, model.RoleEditor, "u").Allowed)
	assert.Zero(t, logs.Len())
	assert.Empty(t, rec.Events())
}

func TestAuditorSanitizesUserText(t *testing.T) {
	a, logs, _, _, _ := newAuditor(t)
	n := node(tu.ID(1), nil)

	a.CanModifyNode(n, model.RoleViewer, "sk-abcdefghijklmnopqrstuvwx")
	entries := logs.FilterMessage("guard denied").All()
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].ContextMap()["user_id"], "defghijklmnop")
}

func TestAuditorCanRelate(t *testing.T) {
	a, _, rec, _, _ := newAuditor(t)
	src := node(tu.ID(1), nil)
	target := node(tu.ID(2), func(md *model.Metadata) { md.Pin = true })

	d := a.CanRelate(src, target, model.RelContradicts, model.RoleEditor, "u")
	assert.Equal(t, breaker.CodePinned, d.Code)

	d = a.CanRelate(src, target, model.RelEvidenceFor, model.RoleViewer, "u")
	assert.Equal(t, breaker.CodeInsufficientRole, d.Code)

	assert.True(t, a.CanRelate(src, target, model.RelEvidenceFor, model.RoleEditor, "u").Allowed)
	assert.Len(t, rec.OfKind(events.GuardDenied), 2)
}

func TestAuditorDeleteAndUnpin(t *testing.T) {
	a, _, rec, _, _ := newAuditor(t)
	target := node(tu.ID(1), func(md *model.Metadata) { md.Pin = true })
	src := node(tu.ID(2), nil)
	g := model.NewGraph([]model.Node{target, src}, []model.Edge{tu.Edge(tu.ID(3), src.ID, target.ID, model.RelBlocks)})

	assert.Equal(t, breaker.CodePinned, a.CanDeleteNode(target, g, model.RoleAdmin, "u").Code)
	assert.True(t, a.CanUnpin(target, model.RoleAdmin, "u").Allowed)
	assert.Equal(t, breaker.CodeInsufficientRole, a.CanPerformAction(target, model.RoleViewer, "u", ActionDelete).Code)
	assert.Len(t, rec.Events(), 2)
}

func TestAuditorStaleness(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	clock := tu.NewFixedClock(tu.Epoch)
	a := NewAuditor(WithLogger(zap.New(core)), WithClock(clock.Now), WithStaleAfter(time.Hour))
	n := node(tu.ID(1), func(md *model.Metadata) { md.UpdatedAt = tu.Epoch })

	assert.False(t, a.CheckStaleness(n).Stale)
	clock.Advance(2 * time.Hour)
	assert.True(t, a.CheckStaleness(n).Stale)
	assert.Equal(t, 1, logs.FilterMessage("node is stale").Len())
}
