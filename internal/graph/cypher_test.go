package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeNode(t *testing.T) {
	b := NewCypherBuilder()
	query, err := b.MergeNode("Person", "login", "alice", map[string]any{
		"login": "alice",
		"name":  "Alice",
	})
	require.NoError(t, err)

	assert.Equal(t, "MERGE (n:Person {login: $p0}) SET n += $p1 RETURN n", query)
	assert.Equal(t, "alice", b.Params()["p0"])
	assert.Equal(t, map[string]any{"login": "alice", "name": "Alice"}, b.Params()["p1"])
}

func TestMergeNodeRejectsInvalidIdentifiers(t *testing.T) {
	tests := []struct {
		name     string
		label    string
		keyField string
		props    map[string]any
	}{
		{"label injection", "Person) DETACH DELETE (n", "login", nil},
		{"key field injection", "Person", "login: $x}) DELETE (n", nil},
		{"property key injection", "Person", "login", map[string]any{"a b": 1}},
		{"empty label", "", "login", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCypherBuilder().MergeNode(tt.label, tt.keyField, "x", tt.props)
			assert.Error(t, err)
		})
	}
}

func TestMergeRelationship(t *testing.T) {
	b := NewCypherBuilder()
	from := &NodeRef{Label: "Repository", KeyField: "full_name", KeyValue: "acme/api"}
	to := &NodeRef{Label: "Commit", KeyField: "id", KeyValue: "abc123-acme/api"}

	query, err := b.MergeRelationship(from, "has", to)
	require.NoError(t, err)

	assert.Equal(t,
		"MATCH (a:Repository {full_name: $p0}) MATCH (b:Commit {id: $p1}) MERGE (a)-[r:has]->(b) RETURN a, b",
		query)
	assert.Equal(t, "acme/api", b.Params()["p0"])
	assert.Equal(t, "abc123-acme/api", b.Params()["p1"])
}

func TestMergeRelationshipRejectsInvalidType(t *testing.T) {
	from := &NodeRef{Label: "A", KeyField: "id", KeyValue: 1}
	to := &NodeRef{Label: "B", KeyField: "id", KeyValue: 2}
	_, err := NewCypherBuilder().MergeRelationship(from, "has]->(x) DELETE x //", to)
	assert.Error(t, err)
}

func TestMatchNodeSortsKeys(t *testing.T) {
	b := NewCypherBuilder()
	query, err := b.MatchNode("Issue", map[string]any{
		"repository": "acme/api",
		"number":     7,
	})
	require.NoError(t, err)

	// Deterministic clause order regardless of map iteration.
	assert.Equal(t, "MATCH (n:Issue {number: $p0, repository: $p1}) RETURN n LIMIT 1", query)
	assert.Equal(t, 7, b.Params()["p0"])
	assert.Equal(t, "acme/api", b.Params()["p1"])
}
