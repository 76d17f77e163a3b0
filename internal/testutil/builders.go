package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/canon/internal/model"
	"github.com/roach88/canon/internal/version"
)

// Claim returns an unstamped claim node.
func Claim(id, statement string) model.Node {
	return model.Node{ID: id, Content: model.Claim{Statement: statement, VerificationStatus: "unverified"}}
}

// Evidence returns an unstamped evidence node.
func Evidence(id, text string) model.Node {
	return model.Node{ID: id, Content: model.Evidence{Content: text}}
}

// Edge returns an unstamped edge.
func Edge(id, source, target string, rel model.Relation) model.Edge {
	return model.Edge{ID: id, Source: source, Target: target, Relation: rel}
}

// Stamp versions n as the first link of its chain and fails the test on error.
func Stamp(t testing.TB, f *version.Factory, n model.Node) model.Node {
	t.Helper()
	out, err := f.Stamp(n, "")
	require.NoError(t, err)
	return out
}

// StampEdge versions e as the first link of its chain and fails the test on error.
func StampEdge(t testing.TB, f *version.Factory, e model.Edge) model.Edge {
	t.Helper()
	out, err := f.StampEdge(e, "")
	require.NoError(t, err)
	return out
}

// Pinned returns n with pin set and re-stamped as its successor.
func Pinned(t testing.TB, f *version.Factory, n model.Node) model.Node {
	t.Helper()
	n.Metadata.Pin = true
	out, err := f.Revise(n)
	require.NoError(t, err)
	return out
}

// Factory returns a version factory driven by clock.
func Factory(clock *FixedClock) *version.Factory {
	return version.NewFactory(version.WithClock(clock.Now))
}
