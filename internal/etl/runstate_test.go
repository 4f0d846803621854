package etl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastRetrieveDateFirstRun(t *testing.T) {
	state := NewRunState(newFakeSink(), "acme", testLogger())

	last, err := state.LastRetrieveDate(context.Background())

	require.NoError(t, err)
	assert.True(t, last.IsZero())
}

func TestLastRetrieveDateStored(t *testing.T) {
	sink := newFakeSink()
	sink.queryRows = []map[string]any{
		{"last_retrieve_date": "2025-06-01T00:00:00Z"},
	}
	state := NewRunState(sink, "acme", testLogger())

	last, err := state.LastRetrieveDate(context.Background())

	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), last)
}

func TestLastRetrieveDateUnparseable(t *testing.T) {
	sink := newFakeSink()
	sink.queryRows = []map[string]any{
		{"last_retrieve_date": "yesterday"},
	}
	state := NewRunState(sink, "acme", testLogger())

	last, err := state.LastRetrieveDate(context.Background())

	require.NoError(t, err)
	assert.True(t, last.IsZero())
}

func TestRecordTruncatesToMidnight(t *testing.T) {
	sink := newFakeSink()
	state := NewRunState(sink, "acme", testLogger())

	now := time.Date(2025, 6, 15, 14, 30, 45, 0, time.UTC)
	require.NoError(t, state.Record(context.Background(), now))

	require.True(t, sink.hasNode("Config", "acme"))
	assert.Equal(t, "2025-06-15T00:00:00Z", sink.nodes[nodeKey("Config", "acme")]["last_retrieve_date"])
}
