package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func sampleArtifact() Node {
	tokens := int64(1200)
	return Node{
		ID: "7b0c5c4e-9c1a-4c55-9a77-0d6f1f0b2a11",
		Content: Artifact{
			Title: "Q3 summary",
			Goal:  "summarize Q3",
			Body:  "Revenue grew.",
			Receipt: &Receipt{
				JobID:        "0e6f3b7c-1a2b-4c3d-8e9f-0a1b2c3d4e5f",
				CompiledAt:   testTime,
				InputHash:    "abc",
				AssertionMap: map[string]string{"c1": "e1"},
				TokenUsage:   &tokens,
			},
		},
		Metadata: Metadata{
			CreatedAt:  testTime,
			UpdatedAt:  testTime,
			Origin:     OriginAI,
			Confidence: Confidence(0.8),
		},
	}
}

func TestNodeJSONEnvelope(t *testing.T) {
	n := Node{
		ID:      "3f1c2a9e-5b7d-4c8e-9a01-23456789abcd",
		Content: Claim{Statement: "water is wet", VerificationStatus: "supported"},
		Metadata: Metadata{
			CreatedAt: testTime,
			UpdatedAt: testTime,
			Origin:    OriginHuman,
			Pin:       true,
		},
	}

	data, err := json.Marshal(n)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "claim", raw["type"])
	assert.Equal(t, n.ID, raw["id"])
	content := raw["content"].(map[string]any)
	assert.Equal(t, "water is wet", content["statement"])
	meta := raw["metadata"].(map[string]any)
	assert.Equal(t, true, meta["pin"])
	assert.NotContains(t, meta, "version_hash")
	assert.NotContains(t, meta, "previous_version_hash")
	assert.NotContains(t, meta, "human_signature")

	var back Node
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, n, back)
}

func TestNodeJSONRoundTripAllKinds(t *testing.T) {
	contents := []Content{
		Claim{Statement: "s"},
		Evidence{Content: "e", SourceRef: "doc-1", Strength: "strong"},
		Decision{Title: "t", Rationale: "r", Status: "accepted"},
		Constraint{Rule: "r", Hardness: "hard"},
		Assumption{Statement: "a", Risk: "low"},
		Task{Title: "t", Status: "todo", Assignee: "u1"},
		Idea{Content: "i"},
		Note{Content: "n"},
		Artifact{Title: "t", Body: "b"},
		Source{Title: "t", URI: "https://example.com"},
		Excerpt{Text: "x", SourceID: "s1", Location: "p.3"},
	}
	require.Len(t, contents, len(AllNodeTypes()))

	for _, c := range contents {
		t.Run(string(c.Kind()), func(t *testing.T) {
			n := Node{ID: NewID(), Content: c, Metadata: Metadata{CreatedAt: testTime, UpdatedAt: testTime}}
			data, err := json.Marshal(n)
			require.NoError(t, err)

			var back Node
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, c.Kind(), back.Type())
			assert.Equal(t, n, back)
		})
	}
}

func TestNodeUnmarshalUnknownType(t *testing.T) {
	var n Node
	err := json.Unmarshal([]byte(`{"id":"x","type":"widget","content":{},"metadata":{}}`), &n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid node type")
}

func TestNodeMarshalWithoutContent(t *testing.T) {
	_, err := json.Marshal(Node{ID: "x"})
	require.Error(t, err)
}

func TestNodeCloneIsDeep(t *testing.T) {
	n := sampleArtifact()
	n.Metadata.HumanSignature = &HumanSignature{SignerID: "u1", Method: SignatureOrganic}
	clone := n.Clone()
	require.Equal(t, n, clone)

	*clone.Metadata.Confidence = 0.1
	clone.Metadata.HumanSignature.SignerID = "u2"
	a := clone.Content.(Artifact)
	a.Receipt.AssertionMap["c2"] = "e2"
	*a.Receipt.TokenUsage = 1

	orig := n.Content.(Artifact)
	assert.InDelta(t, 0.8, *n.Metadata.Confidence, 1e-9)
	assert.Equal(t, "u1", n.Metadata.HumanSignature.SignerID)
	assert.Len(t, orig.Receipt.AssertionMap, 1)
	assert.Equal(t, int64(1200), *orig.Receipt.TokenUsage)
}

func TestPrimaryText(t *testing.T) {
	tests := []struct {
		content Content
		want    string
	}{
		{Claim{Statement: "claim text"}, "claim text"},
		{Evidence{Content: "evidence text"}, "evidence text"},
		{Decision{Title: "title", Rationale: "because"}, "because"},
		{Constraint{Rule: "no cycles"}, "no cycles"},
		{Assumption{Statement: "stable api"}, "stable api"},
		{Task{Title: "ship it"}, "ship it"},
		{Idea{Content: "idea"}, "idea"},
		{Note{Content: "note"}, "note"},
		{Artifact{Title: "report", Body: "body"}, "body"},
		{Source{Title: "paper"}, "paper"},
		{Excerpt{Text: "quote"}, "quote"},
		{nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PrimaryText(tt.content))
	}
}

func TestParseID(t *testing.T) {
	id, err := ParseID("3F1C2A9E-5B7D-4C8E-9A01-23456789ABCD")
	require.NoError(t, err)
	assert.Equal(t, "3f1c2a9e-5b7d-4c8e-9a01-23456789abcd", id)

	_, err = ParseID("not-a-uuid")
	assert.Error(t, err)

	assert.NotEqual(t, NewID(), NewID())
}

func TestMetadataDefaults(t *testing.T) {
	var m Metadata
	assert.Equal(t, DefaultConfidence, m.ConfidenceValue())
	assert.Equal(t, RoleEditor, m.RequiredRole())
	assert.False(t, m.IsArchived())

	m.Confidence = Confidence(0.3)
	m.AccessControl.RoleRequired = RoleAdmin
	m.ArchivedAt = &testTime
	assert.Equal(t, 0.3, m.ConfidenceValue())
	assert.Equal(t, RoleAdmin, m.RequiredRole())
	assert.True(t, m.IsArchived())
}

func TestReceiptAssertionsSorted(t *testing.T) {
	r := &Receipt{AssertionMap: map[string]string{"c3": "e3", "c1": "e1", "c2": "e2"}}
	assert.Equal(t, []Assertion{
		{ClaimID: "c1", EvidenceID: "e1"},
		{ClaimID: "c2", EvidenceID: "e2"},
		{ClaimID: "c3", EvidenceID: "e3"},
	}, r.Assertions())

	var none *Receipt
	assert.Nil(t, none.Assertions())
}
