package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFullName(t *testing.T) {
	owner, name, err := splitFullName("acme/api")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "api", name)

	for _, bad := range []string{"acme", "acme/", "/api", ""} {
		_, _, err := splitFullName(bad)
		assert.Error(t, err, bad)
	}
}

func TestStampAddsBookkeepingFields(t *testing.T) {
	s := &Source{}
	records := []Record{
		{"id": "1"},
		{"id": "2"},
	}

	s.stamp(StreamRepositories, records)

	seen := make(map[string]bool)
	for _, record := range records {
		assert.Equal(t, StreamRepositories, record[FieldStream])
		assert.NotEmpty(t, record[FieldExtractedAt])
		id, ok := record[FieldRecordID].(string)
		require.True(t, ok)
		assert.False(t, seen[id], "record ids must be unique")
		seen[id] = true
	}
}

func TestJSONPayload(t *testing.T) {
	assert.Equal(t, `{"login":"alice"}`, jsonPayload(map[string]any{"login": "alice"}))
	assert.Equal(t, `[{"sha":"abc"}]`, jsonPayload([]map[string]any{{"sha": "abc"}}))
}
