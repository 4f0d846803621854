package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/orggraph/orggraph/internal/graph"
)

// RunState records pipeline bookkeeping on a Config node keyed by the
// organization id. The last retrieval date lets incremental streams
// skip records the previous run already covered.
type RunState struct {
	sink   graph.Sink
	orgID  string
	logger *logrus.Logger
}

func NewRunState(sink graph.Sink, orgID string, logger *logrus.Logger) *RunState {
	return &RunState{sink: sink, orgID: orgID, logger: logger}
}

// LastRetrieveDate returns the date recorded by the previous run, or
// the zero time when no Config node exists yet.
func (s *RunState) LastRetrieveDate(ctx context.Context) (time.Time, error) {
	rows, err := s.sink.Query(ctx,
		"MATCH (c:Config {id: $id}) RETURN c.last_retrieve_date AS last_retrieve_date",
		map[string]any{"id": s.orgID})
	if err != nil {
		return time.Time{}, fmt.Errorf("read run state: %w", err)
	}
	if len(rows) == 0 {
		return time.Time{}, nil
	}

	raw, ok := rows[0]["last_retrieve_date"].(string)
	if !ok || raw == "" {
		return time.Time{}, nil
	}
	last, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		s.logger.WithField("value", raw).Warn("unparseable last retrieve date, ignoring")
		return time.Time{}, nil
	}
	return last, nil
}

// Record merges the Config node with the current run's date, truncated
// to UTC midnight so reruns within a day are stable.
func (s *RunState) Record(ctx context.Context, now time.Time) error {
	date := now.UTC().Truncate(24 * time.Hour).Format(time.RFC3339)
	_, err := s.sink.MergeNode(ctx, "Config", "id", map[string]any{
		"id":                 s.orgID,
		"last_retrieve_date": date,
	})
	if err != nil {
		return fmt.Errorf("record run state: %w", err)
	}
	s.logger.WithField("last_retrieve_date", date).Info("run state recorded")
	return nil
}
