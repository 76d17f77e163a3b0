package model

import "time"

// DefaultConfidence is applied when a version is created without one.
const DefaultConfidence = 1.0

// Metadata is the record shared by every node and edge.
//
// VersionHash is computed over the entity with VersionHash itself removed.
// It must only be written by the version package.
type Metadata struct {
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	VersionHash         string          `json:"version_hash,omitempty" validate:"omitempty,len=64,hexadecimal,lowercase"`
	PreviousVersionHash string          `json:"previous_version_hash,omitempty" validate:"omitempty,len=64,hexadecimal,lowercase"`
	Origin              Origin          `json:"origin,omitempty" validate:"omitempty,oneof=human ai hybrid ai_proposal"`
	Confidence          *float64        `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	Validated           bool            `json:"validated"`
	Pin                 bool            `json:"pin"`
	AccessControl       AccessControl   `json:"access_control"`
	HumanSignature      *HumanSignature `json:"human_signature,omitempty"`
	ArchivedAt          *time.Time      `json:"archived_at,omitempty"`
}

// AccessControl names the minimum role needed to act on an entity and its owner.
// An empty RoleRequired means editor.
type AccessControl struct {
	RoleRequired Role   `json:"role_required,omitempty" validate:"omitempty,oneof=viewer editor admin"`
	OwnerID      string `json:"owner_id,omitempty"`
}

// HumanSignature commits a signer to a specific sealed hash of an entity.
// For cryptographic seals SignerID is a did:key and Signature is the
// hex-encoded ed25519 signature over HashAtSigning.
type HumanSignature struct {
	SignerID      string          `json:"signer_id" validate:"required"`
	Timestamp     time.Time       `json:"timestamp"`
	HashAtSigning string          `json:"hash_at_signing" validate:"required,len=64,hexadecimal,lowercase"`
	Method        SignatureMethod `json:"method" validate:"required,oneof=organic cryptographic"`
	Signature     string          `json:"signature,omitempty" validate:"omitempty,hexadecimal"`
}

// Confidence returns a pointer to v for use in Metadata literals.
func Confidence(v float64) *float64 {
	return &v
}

// ConfidenceValue returns the confidence, or DefaultConfidence when unset.
func (m Metadata) ConfidenceValue() float64 {
	if m.Confidence == nil {
		return DefaultConfidence
	}
	return *m.Confidence
}

// RequiredRole returns the role needed to act on the entity (editor if unset).
func (m Metadata) RequiredRole() Role {
	if m.AccessControl.RoleRequired == "" {
		return RoleEditor
	}
	return m.AccessControl.RoleRequired
}

// IsArchived reports whether the entity was soft-deleted.
func (m Metadata) IsArchived() bool {
	return m.ArchivedAt != nil
}

// Clone returns a copy of m with its own pointer fields.
func (m Metadata) Clone() Metadata {
	out := m
	if m.Confidence != nil {
		out.Confidence = Confidence(*m.Confidence)
	}
	if m.HumanSignature != nil {
		sig := *m.HumanSignature
		out.HumanSignature = &sig
	}
	if m.ArchivedAt != nil {
		at := *m.ArchivedAt
		out.ArchivedAt = &at
	}
	return out
}
