package model

import "fmt"

// NodeType tags the variant held by a Node.
type NodeType string

const (
	TypeClaim      NodeType = "claim"
	TypeEvidence   NodeType = "evidence"
	TypeDecision   NodeType = "decision"
	TypeConstraint NodeType = "constraint"
	TypeAssumption NodeType = "assumption"
	TypeTask       NodeType = "task"
	TypeIdea       NodeType = "idea"
	TypeNote       NodeType = "note"
	TypeArtifact   NodeType = "artifact"
	TypeSource     NodeType = "source"
	TypeExcerpt    NodeType = "excerpt"
)

// AllNodeTypes returns all node types in deterministic order.
func AllNodeTypes() []NodeType {
	return []NodeType{
		TypeClaim, TypeEvidence, TypeDecision, TypeConstraint, TypeAssumption,
		TypeTask, TypeIdea, TypeNote, TypeArtifact, TypeSource, TypeExcerpt,
	}
}

// Validate checks if the node type is known.
func (t NodeType) Validate() error {
	for _, known := range AllNodeTypes() {
		if t == known {
			return nil
		}
	}
	return fmt.Errorf("invalid node type: %q", t)
}

// Origin records provenance. It is not a trust level.
type Origin string

const (
	OriginHuman      Origin = "human"
	OriginAI         Origin = "ai"
	OriginHybrid     Origin = "hybrid"
	OriginAIProposal Origin = "ai_proposal"
)

// AllOrigins returns all origins in deterministic order.
func AllOrigins() []Origin {
	return []Origin{OriginHuman, OriginAI, OriginHybrid, OriginAIProposal}
}

// Validate checks if the origin is known.
func (o Origin) Validate() error {
	switch o {
	case OriginHuman, OriginAI, OriginHybrid, OriginAIProposal:
		return nil
	default:
		return fmt.Errorf("invalid origin: %q", o)
	}
}

// Role is an access level. Roles are totally ordered by Rank.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// AllRoles returns all roles from least to most privileged.
func AllRoles() []Role {
	return []Role{RoleViewer, RoleEditor, RoleAdmin}
}

// Rank returns the position of r in the role hierarchy
// (viewer=1 < editor=2 < admin=3). Unknown roles rank 0.
func (r Role) Rank() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleEditor:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// Validate checks if the role is known.
func (r Role) Validate() error {
	if r.Rank() == 0 {
		return fmt.Errorf("invalid role: %q", r)
	}
	return nil
}

// ParseRole converts a string to a Role, rejecting unknown values.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if err := r.Validate(); err != nil {
		return "", err
	}
	return r, nil
}

// Relation is the type of an edge.
type Relation string

const (
	RelRelatesTo   Relation = "relates_to"
	RelBlocks      Relation = "blocks"
	RelEvidenceFor Relation = "evidence_for"
	RelValidates   Relation = "validates"
	RelContradicts Relation = "contradicts"
	RelPartOf      Relation = "part_of"
)

// AllRelations returns all relations in deterministic order.
func AllRelations() []Relation {
	return []Relation{RelRelatesTo, RelBlocks, RelEvidenceFor, RelValidates, RelContradicts, RelPartOf}
}

// Validate checks if the relation is known.
func (r Relation) Validate() error {
	for _, known := range AllRelations() {
		if r == known {
			return nil
		}
	}
	return fmt.Errorf("invalid relation: %q", r)
}

// SignatureMethod says how a human signature was produced.
type SignatureMethod string

const (
	// SignatureOrganic is an attested commitment without key material.
	SignatureOrganic SignatureMethod = "organic"
	// SignatureCryptographic carries an ed25519 signature over the sealed hash.
	SignatureCryptographic SignatureMethod = "cryptographic"
)

// Validate checks if the method is known.
func (m SignatureMethod) Validate() error {
	switch m {
	case SignatureOrganic, SignatureCryptographic:
		return nil
	default:
		return fmt.Errorf("invalid signature method: %q", m)
	}
}
