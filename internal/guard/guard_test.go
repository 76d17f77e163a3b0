package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/canon/internal/breaker"
	"github.com/roach88/canon/internal/model"
	"github.com/roach88/canon/internal/testutil"
)

var allRoles = []model.Role{model.RoleViewer, model.RoleEditor, model.RoleAdmin}

func node(id string, mutate func(m *model.Metadata)) model.Node {
	n := testutil.Claim(id, "statement")
	n.Metadata.Confidence = model.Confidence(0.9)
	if mutate != nil {
		mutate(&n.Metadata)
	}
	return n
}

func TestHasRequiredRoleMatchesRank(t *testing.T) {
	roles := append(allRoles, model.Role(""), model.Role("root"))
	for _, actual := range roles {
		for _, required := range roles {
			assert.Equal(t, actual.Rank() >= required.Rank(), HasRequiredRole(actual, required),
				"actual=%q required=%q", actual, required)
		}
	}
	assert.True(t, HasRequiredRole(model.RoleAdmin, model.RoleEditor))
	assert.False(t, HasRequiredRole(model.RoleViewer, model.RoleEditor))
}

func TestCanPerformAction(t *testing.T) {
	adminOnly := node(testutil.ID(1), func(m *model.Metadata) {
		m.AccessControl = model.AccessControl{RoleRequired: model.RoleAdmin, OwnerID: "owner"}
	})

	tests := []struct {
		name    string
		n       model.Node
		role    model.Role
		user    string
		allowed bool
	}{
		{"admin bypass", adminOnly, model.RoleAdmin, "someone", true},
		{"owner bypass", adminOnly, model.RoleViewer, "owner", true},
		{"editor below admin", adminOnly, model.RoleEditor, "someone", false},
		{"default requires editor", node(testutil.ID(2), nil), model.RoleEditor, "u", true},
		{"viewer below default", node(testutil.ID(2), nil), model.RoleViewer, "u", false},
		{"empty owner never matches", node(testutil.ID(2), nil), model.RoleViewer, "", false},
		{"unknown role", node(testutil.ID(2), nil), model.Role("root"), "u", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := CanPerformAction(tt.n, tt.role, tt.user, ActionModify)
			assert.Equal(t, tt.allowed, d.Allowed)
			if !tt.allowed {
				assert.Equal(t, breaker.CodeInsufficientRole, d.Code)
				assert.NotEmpty(t, d.Reason)
			}
		})
	}
}

func TestPinIsAbsolute(t *testing.T) {
	pinned := node(testutil.ID(1), func(m *model.Metadata) {
		m.Pin = true
		m.AccessControl.OwnerID = "owner"
	})

	for _, role := range allRoles {
		for _, user := range []string{"owner", "stranger"} {
			d := CanModifyNode(pinned, role, user)
			assert.False(t, d.Allowed, "role=%s user=%s", role, user)
			if role == model.RoleAdmin || user == "owner" {
				assert.Equal(t, breaker.CodePinned, d.Code)
			}
			assert.False(t, CanPin(pinned, role, user).Allowed)
			assert.False(t, CanDeleteNode(pinned, model.Graph{}, role, user).Allowed)
		}
	}

	d := CanModifyNode(pinned, model.RoleAdmin, "owner")
	assert.Equal(t, breaker.CodePinned, d.Code)
	assert.Contains(t, d.Reason, pinned.ID)
}

func TestCanUnpin(t *testing.T) {
	pinned := node(testutil.ID(1), func(m *model.Metadata) { m.Pin = true })

	assert.True(t, CanUnpin(pinned, model.RoleEditor, "u").Allowed)
	assert.True(t, CanUnpin(pinned, model.RoleAdmin, "u").Allowed)
	d := CanUnpin(pinned, model.RoleViewer, "u")
	assert.False(t, d.Allowed)
	assert.Equal(t, breaker.CodeInsufficientRole, d.Code)

	now := testutil.Epoch
	archived := node(testutil.ID(2), func(m *model.Metadata) { m.Pin = true; m.ArchivedAt = &now })
	assert.Equal(t, breaker.CodeArchived, CanUnpin(archived, model.RoleAdmin, "u").Code)
}

func TestCanModifyArchived(t *testing.T) {
	now := testutil.Epoch
	archived := node(testutil.ID(1), func(m *model.Metadata) { m.ArchivedAt = &now })
	d := CanModifyNode(archived, model.RoleAdmin, "u")
	assert.False(t, d.Allowed)
	assert.Equal(t, breaker.CodeArchived, d.Code)
}

func TestCanChangeAccess(t *testing.T) {
	ownedByAlice := node(testutil.ID(1), func(m *model.Metadata) { m.AccessControl.OwnerID = "alice" })

	assert.True(t, CanChangeAccess(ownedByAlice, model.RoleViewer, "alice").Allowed)
	assert.True(t, CanChangeAccess(ownedByAlice, model.RoleAdmin, "carol").Allowed)
	d := CanChangeAccess(ownedByAlice, model.RoleEditor, "mallory")
	assert.False(t, d.Allowed)
	assert.Equal(t, breaker.CodeInsufficientRole, d.Code)
	assert.Contains(t, d.Reason, "owner")

	unowned := node(testutil.ID(2), nil)
	assert.False(t, CanChangeAccess(unowned, model.RoleEditor, "").Allowed)
}

func TestCanDeleteNodeDependencySafety(t *testing.T) {
	a := node(testutil.ID(1), nil)
	b := node(testutil.ID(2), nil)
	edge := testutil.Edge(testutil.ID(10), b.ID, a.ID, model.RelEvidenceFor)
	g := model.NewGraph([]model.Node{a, b}, []model.Edge{edge})

	for _, role := range allRoles {
		d := CanDeleteNode(a, g, role, "anyone")
		assert.False(t, d.Allowed)
		if role != model.RoleViewer {
			assert.Equal(t, breaker.CodeDependentsExist, d.Code)
			assert.Contains(t, d.Reason, b.ID)
		}
	}

	// b has no incoming edges.
	assert.True(t, CanDeleteNode(b, g, model.RoleEditor, "u").Allowed)

	// Archived edges no longer hold their target.
	now := testutil.Epoch
	edge.Metadata.ArchivedAt = &now
	g.PutEdge(edge)
	assert.True(t, CanDeleteNode(a, g, model.RoleEditor, "u").Allowed)
}

func TestCanAddRelation(t *testing.T) {
	src := node(testutil.ID(1), nil)
	pinned := node(testutil.ID(2), func(m *model.Metadata) { m.Pin = true })
	plain := node(testutil.ID(3), nil)

	d := CanAddRelation(src, pinned, model.RelContradicts)
	assert.False(t, d.Allowed)
	assert.Equal(t, breaker.CodePinned, d.Code)

	assert.True(t, CanAddRelation(src, pinned, model.RelEvidenceFor).Allowed)
	assert.True(t, CanAddRelation(src, plain, model.RelContradicts).Allowed)

	d = CanAddRelation(src, src, model.RelRelatesTo)
	assert.Equal(t, breaker.CodeSelfRelation, d.Code)

	d = CanAddRelation(src, plain, model.Relation("supersedes"))
	assert.Equal(t, breaker.CodeInvalidRelation, d.Code)
}

func TestCheckNodeStaleness(t *testing.T) {
	n := node(testutil.ID(1), func(m *model.Metadata) { m.UpdatedAt = testutil.Epoch })

	fresh := CheckNodeStaleness(n, testutil.Epoch.Add(29*24*time.Hour), 0)
	assert.False(t, fresh.Stale)
	assert.Empty(t, fresh.Reason)

	boundary := CheckNodeStaleness(n, testutil.Epoch.Add(DefaultStaleAfter), 0)
	assert.False(t, boundary.Stale)

	stale := CheckNodeStaleness(n, testutil.Epoch.Add(45*24*time.Hour), 0)
	require.True(t, stale.Stale)
	assert.Contains(t, stale.Reason, "45 days")

	custom := CheckNodeStaleness(n, testutil.Epoch.Add(2*time.Hour), time.Hour)
	assert.True(t, custom.Stale)
}

func TestSanitizeLogs(t *testing.T) {
	out := SanitizeLogs("key=sk-abcdefghijklmnopqrstuvwx")
	assert.NotContains(t, out, "defghijklmnop")
	assert.Contains(t, out, "key=sk-")
}
