// Package guard decides whether an actor may act on a node.
//
// Every check is a pure function returning a Decision; denials are values,
// never errors. Auditor wraps the same checks with logging, metrics and
// events for callers that need an audit trail.
//
// Role bypass (admin or owner) applies only to the role check. The pin
// invariant is evaluated afterwards and binds every caller.
package guard

import (
	"fmt"
	"time"

	"github.com/roach88/canon/internal/breaker"
	"github.com/roach88/canon/internal/logging"
	"github.com/roach88/canon/internal/model"
)

// DefaultStaleAfter is how long a node may go without an update before it is stale.
const DefaultStaleAfter = 30 * 24 * time.Hour

// Action is the kind of operation being authorized.
type Action string

const (
	ActionRead   Action = "read"
	ActionModify Action = "modify"
	ActionDelete Action = "delete"
	ActionRelate Action = "relate"
	ActionPin    Action = "pin"
	ActionUnpin  Action = "unpin"
	ActionGrant  Action = "grant"
)

// Decision is the outcome of a check. Code and Reason are empty when allowed.
type Decision struct {
	Allowed bool         `json:"allowed"`
	Code    breaker.Code `json:"code,omitempty"`
	Reason  string       `json:"reason,omitempty"`
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(code breaker.Code, format string, args ...any) Decision {
	return Decision{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// HasRequiredRole reports whether actual ranks at or above required.
func HasRequiredRole(actual, required model.Role) bool {
	return actual.Rank() >= required.Rank()
}

// CanPerformAction applies the role check alone. Admins and the node's owner
// pass unconditionally; everyone else needs the node's required role
// (editor when unset).
func CanPerformAction(n model.Node, role model.Role, userID string, action Action) Decision {
	if role == model.RoleAdmin {
		return allow()
	}
	if owner := n.Metadata.AccessControl.OwnerID; owner != "" && userID == owner {
		return allow()
	}
	required := n.Metadata.RequiredRole()
	if !HasRequiredRole(role, required) {
		return deny(breaker.CodeInsufficientRole,
			"%s on node %s requires role %s, caller has %q", action, n.ID, required, role)
	}
	return allow()
}

// CanModifyNode is CanPerformAction(modify) followed by the pin invariant.
func CanModifyNode(n model.Node, role model.Role, userID string) Decision {
	return canMutate(n, role, userID, ActionModify)
}

// CanPin authorizes setting the pin flag. Pinning is a modification.
func CanPin(n model.Node, role model.Role, userID string) Decision {
	return canMutate(n, role, userID, ActionPin)
}

// CanUnpin authorizes clearing the pin flag. It is the only mutation a
// pinned node accepts, and still requires the role check.
func CanUnpin(n model.Node, role model.Role, userID string) Decision {
	if d := CanPerformAction(n, role, userID, ActionUnpin); !d.Allowed {
		return d
	}
	if n.Metadata.IsArchived() {
		return deny(breaker.CodeArchived, "node %s is archived", n.ID)
	}
	return allow()
}

func canMutate(n model.Node, role model.Role, userID string, action Action) Decision {
	if d := CanPerformAction(n, role, userID, action); !d.Allowed {
		return d
	}
	if n.Metadata.Pin {
		return deny(breaker.CodePinned, "node %s is pinned and cannot be changed", n.ID)
	}
	if n.Metadata.IsArchived() {
		return deny(breaker.CodeArchived, "node %s is archived", n.ID)
	}
	return allow()
}

// CanChangeAccess authorizes rewriting a node's access control. Only an
// admin or the node's owner may hand it to someone else or change its role.
func CanChangeAccess(n model.Node, role model.Role, userID string) Decision {
	if role == model.RoleAdmin {
		return allow()
	}
	if owner := n.Metadata.AccessControl.OwnerID; owner != "" && userID == owner {
		return allow()
	}
	return deny(breaker.CodeInsufficientRole,
		"%s on node %s requires the owner or role admin, caller has %q", ActionGrant, n.ID, role)
}

// CanDeleteNode authorizes archival. The node must pass the role check, be
// unpinned, and have no live edge targeting it.
func CanDeleteNode(n model.Node, g model.Graph, role model.Role, userID string) Decision {
	if d := CanPerformAction(n, role, userID, ActionDelete); !d.Allowed {
		return d
	}
	if n.Metadata.Pin {
		return deny(breaker.CodePinned, "node %s is pinned and cannot be deleted", n.ID)
	}
	if n.Metadata.IsArchived() {
		return deny(breaker.CodeArchived, "node %s is already archived", n.ID)
	}
	for _, e := range g.IncomingEdges(n.ID) {
		if e.Metadata.IsArchived() {
			continue
		}
		return deny(breaker.CodeDependentsExist,
			"node %s is the target of %s edge %s from node %s", n.ID, e.Relation, e.ID, e.Source)
	}
	return allow()
}

// CanAddRelation checks relation legality between two nodes. A contradicts
// relation may not target a pinned node.
func CanAddRelation(source, target model.Node, rel model.Relation) Decision {
	if err := rel.Validate(); err != nil {
		return deny(breaker.CodeInvalidRelation, "%v", err)
	}
	if source.ID == target.ID {
		return deny(breaker.CodeSelfRelation, "node %s cannot relate to itself", source.ID)
	}
	if rel == model.RelContradicts && target.Metadata.Pin {
		return deny(breaker.CodePinned, "pinned node %s cannot be contradicted (source %s)", target.ID, source.ID)
	}
	return allow()
}

// Staleness is the result of CheckNodeStaleness.
type Staleness struct {
	Stale  bool          `json:"stale"`
	Age    time.Duration `json:"age"`
	Reason string        `json:"reason,omitempty"`
}

// CheckNodeStaleness reports whether n has gone more than after without an
// update as of now. A non-positive after means DefaultStaleAfter.
func CheckNodeStaleness(n model.Node, now time.Time, after time.Duration) Staleness {
	if after <= 0 {
		after = DefaultStaleAfter
	}
	age := now.Sub(n.Metadata.UpdatedAt)
	if age <= after {
		return Staleness{Age: age}
	}
	return Staleness{
		Stale:  true,
		Age:    age,
		Reason: fmt.Sprintf("node %s last updated %d days ago", n.ID, int(age.Hours()/24)),
	}
}

// SanitizeLogs redacts credential-shaped substrings before text reaches an
// audit trail.
func SanitizeLogs(text string) string {
	return logging.Redact(text)
}
