package etl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gh "github.com/orggraph/orggraph/internal/github"
)

type fakeArtifactSource struct {
	files []gh.ArtifactFile
	tasks []gh.CommitTask
}

func (f *fakeArtifactSource) FetchAll(_ context.Context, tasks []gh.CommitTask) ([]gh.ArtifactFile, error) {
	f.tasks = tasks
	return f.files, nil
}

func TestArtifactLoaderLinksFilesToCommits(t *testing.T) {
	sink := newFakeSink()
	engine := NewEngine(sink, testLogger())
	org := bootstrapTestOrg(t, engine)
	resolver := NewResolver(engine, org, testLogger())
	ctx := context.Background()

	_, err := engine.UpsertNode(ctx, "Commit", map[string]any{"sha": "abc123", "repository": "acme/api"})
	require.NoError(t, err)
	sink.queryRows = []map[string]any{
		{"sha": "abc123", "repository": "acme/api"},
	}

	source := &fakeArtifactSource{files: []gh.ArtifactFile{{
		SHA:        "filesha1",
		Filename:   "parser.go",
		Status:     "modified",
		Additions:  10,
		Deletions:  2,
		Changes:    12,
		Repository: "acme/api",
		CommitSHA:  "abc123",
	}}}

	loader := NewArtifactLoader(engine, resolver, source, testLogger())
	stats, err := loader.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, []gh.CommitTask{{Repository: "acme/api", SHA: "abc123"}}, source.tasks)
	assert.True(t, sink.hasNode("SoftwareArtifact", "filesha1"))
	assert.True(t, sink.hasEdge("Commit", "abc123-acme/api", "has", "SoftwareArtifact", "filesha1"))
	assert.True(t, sink.hasEdge("SoftwareArtifact", "filesha1", "commited", "Commit", "abc123-acme/api"))
	assert.Equal(t, 1, stats.Nodes)
	assert.Equal(t, 2, stats.Edges)
}

func TestArtifactLoaderSkipsVanishedCommit(t *testing.T) {
	sink := newFakeSink()
	engine := NewEngine(sink, testLogger())
	org := bootstrapTestOrg(t, engine)
	resolver := NewResolver(engine, org, testLogger())

	sink.queryRows = []map[string]any{
		{"sha": "gone", "repository": "acme/api"},
	}
	source := &fakeArtifactSource{files: []gh.ArtifactFile{{
		SHA:        "filesha1",
		Repository: "acme/api",
		CommitSHA:  "gone",
	}}}

	loader := NewArtifactLoader(engine, resolver, source, testLogger())
	stats, err := loader.Load(context.Background())
	require.NoError(t, err)

	assert.False(t, sink.hasNode("SoftwareArtifact", "filesha1"))
	assert.Equal(t, 1, stats.Warnings)
}

func TestArtifactLoaderNoCommits(t *testing.T) {
	sink := newFakeSink()
	engine := NewEngine(sink, testLogger())
	org := bootstrapTestOrg(t, engine)
	resolver := NewResolver(engine, org, testLogger())

	loader := NewArtifactLoader(engine, resolver, &fakeArtifactSource{}, testLogger())

	stats, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Nodes)
}
