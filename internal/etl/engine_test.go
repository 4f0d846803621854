package etl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orggraph/orggraph/internal/graph"
)

func TestUpsertNodeStampsDerivedKey(t *testing.T) {
	sink := newFakeSink()
	engine := NewEngine(sink, testLogger())

	ref, err := engine.UpsertNode(context.Background(), "Commit", map[string]any{
		"sha":        "abc123",
		"repository": "acme/api",
		"message":    "fix",
	})
	require.NoError(t, err)

	assert.Equal(t, "Commit", ref.Label)
	assert.Equal(t, "id", ref.KeyField)
	assert.Equal(t, "abc123-acme/api", ref.KeyValue)
	assert.True(t, sink.hasNode("Commit", "abc123-acme/api"))
}

func TestUpsertNodeIdempotent(t *testing.T) {
	sink := newFakeSink()
	engine := NewEngine(sink, testLogger())
	ctx := context.Background()
	props := map[string]any{"sha": "abc123", "repository": "acme/api"}

	first, err := engine.UpsertNode(ctx, "Commit", props)
	require.NoError(t, err)
	second, err := engine.UpsertNode(ctx, "Commit", props)
	require.NoError(t, err)

	assert.Equal(t, first.KeyValue, second.KeyValue)
	assert.Equal(t, 1, sink.countNodes("Commit"))
}

func TestUpsertNodeMissingKeyField(t *testing.T) {
	engine := NewEngine(newFakeSink(), testLogger())

	_, err := engine.UpsertNode(context.Background(), "Commit", map[string]any{"sha": "abc123"})

	assert.ErrorIs(t, err, ErrMissingKeyField)
}

func TestUpsertRelationshipDedup(t *testing.T) {
	sink := newFakeSink()
	engine := NewEngine(sink, testLogger())
	ctx := context.Background()

	repo, err := engine.UpsertNode(ctx, "Repository", map[string]any{"full_name": "acme/api"})
	require.NoError(t, err)
	commit, err := engine.UpsertNode(ctx, "Commit", map[string]any{"sha": "abc123", "repository": "acme/api"})
	require.NoError(t, err)

	require.NoError(t, engine.UpsertRelationship(ctx, repo, "has", commit))
	require.NoError(t, engine.UpsertRelationship(ctx, repo, "has", commit))

	assert.Len(t, sink.edges, 1)
}

func TestUpsertRelationshipNilEndpoint(t *testing.T) {
	engine := NewEngine(newFakeSink(), testLogger())
	ref := &graph.NodeRef{Label: "Repository", KeyField: "full_name", KeyValue: "acme/api"}

	assert.Error(t, engine.UpsertRelationship(context.Background(), ref, "has", nil))
	assert.Error(t, engine.UpsertRelationship(context.Background(), nil, "has", ref))
}

func TestGetNodeAbsence(t *testing.T) {
	engine := NewEngine(newFakeSink(), testLogger())

	node, err := engine.GetNode(context.Background(), "Person", map[string]any{"login": "nobody"})

	require.NoError(t, err)
	assert.Nil(t, node)
}
