package etl

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orggraph/orggraph/internal/connector"
)

func TestNormalizeDropsBookkeepingFields(t *testing.T) {
	record := connector.Record{
		"id":                       "7-acme/api",
		"title":                    "bug",
		connector.FieldStream:      "issues",
		connector.FieldRecordID:    "uuid-1",
		connector.FieldExtractedAt: "2025-01-01T00:00:00Z",
	}

	props := Normalize(record)

	assert.Equal(t, map[string]any{"id": "7-acme/api", "title": "bug"}, props)
}

func TestNormalizeScrubsNaN(t *testing.T) {
	record := connector.Record{
		"id":       "1",
		"count":    math.NaN(),
		"ratio":    float32(math.NaN()),
		"retained": 3.5,
	}

	props := Normalize(record)

	assert.Nil(t, props["count"])
	assert.Nil(t, props["ratio"])
	assert.Equal(t, 3.5, props["retained"])
}

func TestNormalizeEmptyRecord(t *testing.T) {
	assert.Empty(t, Normalize(connector.Record{}))
}
