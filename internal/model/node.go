package model

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Node is a typed knowledge entity.
type Node struct {
	ID       string  `validate:"required,uuid"`
	Content  Content `validate:"required"`
	Metadata Metadata
}

// NewNode creates an unstamped node with a fresh id.
// Stamp it with the version package before storing it.
func NewNode(c Content) Node {
	return Node{ID: NewID(), Content: c}
}

// NewID returns a new random entity id.
func NewID() string {
	return uuid.NewString()
}

// ParseID validates and normalizes an entity id.
func ParseID(s string) (string, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid entity id %q: %w", s, err)
	}
	return id.String(), nil
}

// Type returns the variant tag of the node.
func (n Node) Type() NodeType {
	if n.Content == nil {
		return ""
	}
	return n.Content.Kind()
}

// Text returns the primary text of the node's content.
func (n Node) Text() string {
	return PrimaryText(n.Content)
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	return Node{
		ID:       n.ID,
		Content:  cloneContent(n.Content),
		Metadata: n.Metadata.Clone(),
	}
}

type nodeWire struct {
	ID       string          `json:"id"`
	Type     NodeType        `json:"type"`
	Content  json.RawMessage `json:"content"`
	Metadata Metadata        `json:"metadata"`
}

// MarshalJSON encodes the node as {id, type, content, metadata}.
func (n Node) MarshalJSON() ([]byte, error) {
	if n.Content == nil {
		return nil, fmt.Errorf("node %s has no content", n.ID)
	}
	raw, err := json.Marshal(n.Content)
	if err != nil {
		return nil, fmt.Errorf("marshal %s content: %w", n.Type(), err)
	}
	return json.Marshal(nodeWire{
		ID:       n.ID,
		Type:     n.Type(),
		Content:  raw,
		Metadata: n.Metadata,
	})
}

// UnmarshalJSON decodes {id, type, content, metadata}, dispatching content on type.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w nodeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c, err := decodeContent(w.Type, w.Content)
	if err != nil {
		return err
	}
	*n = Node{ID: w.ID, Content: c, Metadata: w.Metadata}
	return nil
}
