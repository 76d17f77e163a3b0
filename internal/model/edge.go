package model

// Edge is a typed, directed relation between two nodes.
type Edge struct {
	ID       string   `json:"id" validate:"required,uuid"`
	Source   string   `json:"source" validate:"required,uuid"`
	Target   string   `json:"target" validate:"required,uuid"`
	Relation Relation `json:"relation" validate:"required,oneof=relates_to blocks evidence_for validates contradicts part_of"`
	Metadata Metadata `json:"metadata"`
}

// NewEdge creates an unstamped edge with a fresh id.
func NewEdge(source, target string, rel Relation) Edge {
	return Edge{ID: NewID(), Source: source, Target: target, Relation: rel}
}

// Clone returns a deep copy of e.
func (e Edge) Clone() Edge {
	out := e
	out.Metadata = e.Metadata.Clone()
	return out
}
