package version_test

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/canon/internal/ir"
	"github.com/roach88/canon/internal/model"
	"github.com/roach88/canon/internal/testutil"
	"github.com/roach88/canon/internal/version"
)

func stampedClaim(t *testing.T) (model.Node, *testutil.FixedClock) {
	t.Helper()
	clock := testutil.NewFixedClock(testutil.Epoch)
	f := testutil.Factory(clock)
	return testutil.Stamp(t, f, testutil.Claim(testutil.ID(1), "water is wet")), clock
}

func TestCanonicalizeNodeGolden(t *testing.T) {
	n, _ := stampedClaim(t)

	s, err := version.CanonicalizeNode(n)
	require.NoError(t, err)
	assert.NotContains(t, s, "version_hash")

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "canonical_claim", []byte(s+"\n"))
}

func TestComputeNodeHashKnownValue(t *testing.T) {
	n, _ := stampedClaim(t)

	h, err := version.ComputeNodeHash(n)
	require.NoError(t, err)
	assert.Equal(t, "cce6d395785334909801229627b8bc46d78c8dc01c658db5424fc21f6cad6857", h)
	assert.Equal(t, h, n.Metadata.VersionHash)
	assert.True(t, ir.IsHash(h))
}

func TestComputeNodeHashDeterministic(t *testing.T) {
	n, _ := stampedClaim(t)

	h1, err := version.ComputeNodeHash(n)
	require.NoError(t, err)
	h2, err := version.ComputeNodeHash(n.Clone())
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestComputeNodeHashIgnoresVersionHash(t *testing.T) {
	n, _ := stampedClaim(t)
	before, err := version.ComputeNodeHash(n)
	require.NoError(t, err)

	n.Metadata.VersionHash = "0000000000000000000000000000000000000000000000000000000000000000"
	after, err := version.ComputeNodeHash(n)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestComputeNodeHashAvalanche(t *testing.T) {
	mutations := map[string]func(n *model.Node){
		"id": func(n *model.Node) { n.ID = testutil.ID(2) },
		"content": func(n *model.Node) {
			n.Content = model.Claim{Statement: "water is dry", VerificationStatus: "unverified"}
		},
		"variant":       func(n *model.Node) { n.Content = model.Note{Content: "water is wet"} },
		"created_at":    func(n *model.Node) { n.Metadata.CreatedAt = n.Metadata.CreatedAt.Add(time.Nanosecond) },
		"updated_at":    func(n *model.Node) { n.Metadata.UpdatedAt = n.Metadata.UpdatedAt.Add(time.Second) },
		"origin":        func(n *model.Node) { n.Metadata.Origin = model.OriginAI },
		"confidence":    func(n *model.Node) { n.Metadata.Confidence = model.Confidence(0.99) },
		"validated":     func(n *model.Node) { n.Metadata.Validated = true },
		"pin":           func(n *model.Node) { n.Metadata.Pin = true },
		"role_required": func(n *model.Node) { n.Metadata.AccessControl.RoleRequired = model.RoleAdmin },
		"owner_id":      func(n *model.Node) { n.Metadata.AccessControl.OwnerID = "u1" },
		"previous_hash": func(n *model.Node) {
			n.Metadata.PreviousVersionHash = "1111111111111111111111111111111111111111111111111111111111111111"
		},
	}

	base, _ := stampedClaim(t)
	baseHash, err := version.ComputeNodeHash(base)
	require.NoError(t, err)

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			n := base.Clone()
			mutate(&n)
			h, err := version.ComputeNodeHash(n)
			require.NoError(t, err)
			assert.NotEqual(t, baseHash, h)
			assert.False(t, version.VerifyIntegrity(n))
		})
	}
}

func TestVerifyIntegrity(t *testing.T) {
	n, _ := stampedClaim(t)
	assert.True(t, version.VerifyIntegrity(n))

	unstamped := testutil.Claim(testutil.ID(3), "no hash")
	assert.False(t, version.VerifyIntegrity(unstamped))

	n.Metadata.VersionHash = "not-a-hash"
	assert.False(t, version.VerifyIntegrity(n))
}

func TestEdgeHashing(t *testing.T) {
	clock := testutil.NewFixedClock(testutil.Epoch)
	f := testutil.Factory(clock)
	e := testutil.StampEdge(t, f, testutil.Edge(testutil.ID(9), testutil.ID(1), testutil.ID(2), model.RelEvidenceFor))

	assert.True(t, version.VerifyEdgeIntegrity(e))

	s, err := version.CanonicalizeEdge(e)
	require.NoError(t, err)
	assert.Contains(t, s, `"relation":"evidence_for"`)
	assert.NotContains(t, s, "version_hash")

	tampered := e.Clone()
	tampered.Relation = model.RelContradicts
	assert.False(t, version.VerifyEdgeIntegrity(tampered))

	assert.False(t, version.VerifyEdgeIntegrity(testutil.Edge(testutil.ID(8), testutil.ID(1), testutil.ID(2), model.RelBlocks)))
}
