package model

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Content is the type-specific payload of a node.
// The interface is sealed: only the structs in this file implement it.
type Content interface {
	Kind() NodeType
	content()
}

// Claim is an assertion that can be supported or refuted.
type Claim struct {
	Statement          string `json:"statement" validate:"required"`
	VerificationStatus string `json:"verification_status" validate:"omitempty,oneof=unverified supported disputed refuted"`
}

// Evidence supports or undermines other nodes.
type Evidence struct {
	Content   string `json:"content" validate:"required"`
	SourceRef string `json:"source_ref,omitempty"`
	Strength  string `json:"strength,omitempty" validate:"omitempty,oneof=weak moderate strong"`
}

// Decision records a choice and why it was made.
type Decision struct {
	Title     string `json:"title" validate:"required"`
	Rationale string `json:"rationale"`
	Status    string `json:"status,omitempty" validate:"omitempty,oneof=proposed accepted rejected superseded"`
}

// Constraint is a rule the rest of the graph must respect.
type Constraint struct {
	Rule     string `json:"rule" validate:"required"`
	Hardness string `json:"hardness,omitempty" validate:"omitempty,oneof=hard soft"`
}

// Assumption is a premise taken as true without evidence.
type Assumption struct {
	Statement string `json:"statement" validate:"required"`
	Risk      string `json:"risk,omitempty" validate:"omitempty,oneof=low medium high"`
}

// Task is a unit of work.
type Task struct {
	Title    string `json:"title" validate:"required"`
	Status   string `json:"status,omitempty" validate:"omitempty,oneof=todo in_progress done blocked"`
	Assignee string `json:"assignee,omitempty"`
}

// Idea is free-form speculative text.
type Idea struct {
	Content string `json:"content" validate:"required"`
}

// Note is free-form text.
type Note struct {
	Content string `json:"content" validate:"required"`
}

// Artifact is generated output together with the receipt binding it to the
// context it was built from.
type Artifact struct {
	Title   string   `json:"title" validate:"required"`
	Goal    string   `json:"goal,omitempty"`
	Body    string   `json:"body"`
	Receipt *Receipt `json:"receipt,omitempty"`
}

// Source is an external document.
type Source struct {
	Title  string `json:"title" validate:"required"`
	URI    string `json:"uri,omitempty" validate:"omitempty,uri"`
	Author string `json:"author,omitempty"`
}

// Excerpt is a passage taken from a source.
type Excerpt struct {
	Text     string `json:"text" validate:"required"`
	SourceID string `json:"source_id,omitempty" validate:"omitempty,uuid"`
	Location string `json:"location,omitempty"`
}

func (Claim) Kind() NodeType      { return TypeClaim }
func (Evidence) Kind() NodeType   { return TypeEvidence }
func (Decision) Kind() NodeType   { return TypeDecision }
func (Constraint) Kind() NodeType { return TypeConstraint }
func (Assumption) Kind() NodeType { return TypeAssumption }
func (Task) Kind() NodeType       { return TypeTask }
func (Idea) Kind() NodeType       { return TypeIdea }
func (Note) Kind() NodeType       { return TypeNote }
func (Artifact) Kind() NodeType   { return TypeArtifact }
func (Source) Kind() NodeType     { return TypeSource }
func (Excerpt) Kind() NodeType    { return TypeExcerpt }

func (Claim) content()      {}
func (Evidence) content()   {}
func (Decision) content()   {}
func (Constraint) content() {}
func (Assumption) content() {}
func (Task) content()       {}
func (Idea) content()       {}
func (Note) content()       {}
func (Artifact) content()   {}
func (Source) content()     {}
func (Excerpt) content()    {}

// PrimaryText returns the field that best summarizes c: the statement of a
// claim, the rationale of a decision, the rule of a constraint, and so on.
func PrimaryText(c Content) string {
	switch v := c.(type) {
	case Claim:
		return v.Statement
	case Evidence:
		return v.Content
	case Decision:
		if v.Rationale != "" {
			return v.Rationale
		}
		return v.Title
	case Constraint:
		return v.Rule
	case Assumption:
		return v.Statement
	case Task:
		return v.Title
	case Idea:
		return v.Content
	case Note:
		return v.Content
	case Artifact:
		if v.Body != "" {
			return v.Body
		}
		return v.Title
	case Source:
		return v.Title
	case Excerpt:
		return v.Text
	case nil:
		return ""
	default:
		panic(fmt.Sprintf("model: unhandled content kind %T", c))
	}
}

// decodeContent parses raw into the content struct for t.
func decodeContent(t NodeType, raw json.RawMessage) (Content, error) {
	var (
		c   Content
		err error
	)
	switch t {
	case TypeClaim:
		c, err = decodeAs[Claim](raw)
	case TypeEvidence:
		c, err = decodeAs[Evidence](raw)
	case TypeDecision:
		c, err = decodeAs[Decision](raw)
	case TypeConstraint:
		c, err = decodeAs[Constraint](raw)
	case TypeAssumption:
		c, err = decodeAs[Assumption](raw)
	case TypeTask:
		c, err = decodeAs[Task](raw)
	case TypeIdea:
		c, err = decodeAs[Idea](raw)
	case TypeNote:
		c, err = decodeAs[Note](raw)
	case TypeArtifact:
		c, err = decodeAs[Artifact](raw)
	case TypeSource:
		c, err = decodeAs[Source](raw)
	case TypeExcerpt:
		c, err = decodeAs[Excerpt](raw)
	default:
		return nil, fmt.Errorf("invalid node type: %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s content: %w", t, err)
	}
	return c, nil
}

func decodeAs[T Content](raw json.RawMessage) (Content, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// cloneContent returns a copy of c that shares no mutable state with it.
func cloneContent(c Content) Content {
	a, ok := c.(Artifact)
	if !ok || a.Receipt == nil {
		return c
	}
	r := *a.Receipt
	r.AssertionMap = maps.Clone(a.Receipt.AssertionMap)
	r.VerificationResult = maps.Clone(a.Receipt.VerificationResult)
	if a.Receipt.TokenUsage != nil {
		v := *a.Receipt.TokenUsage
		r.TokenUsage = &v
	}
	if a.Receipt.LatencyMS != nil {
		v := *a.Receipt.LatencyMS
		r.LatencyMS = &v
	}
	a.Receipt = &r
	return a
}
