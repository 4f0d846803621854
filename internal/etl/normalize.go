package etl

import (
	"math"
	"strings"

	"github.com/orggraph/orggraph/internal/connector"
)

// Normalize converts one staged record into a plain property mapping:
// connector bookkeeping fields are dropped and not-a-number sentinels
// become explicit nils. The result is safe to use directly as node
// properties.
func Normalize(record connector.Record) map[string]any {
	props := make(map[string]any, len(record))
	for key, value := range record {
		if strings.HasPrefix(key, connector.BookkeepingPrefix) {
			continue
		}
		props[key] = scrubNaN(value)
	}
	return props
}

func scrubNaN(value any) any {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) {
			return nil
		}
	case float32:
		if math.IsNaN(float64(v)) {
			return nil
		}
	}
	return value
}
