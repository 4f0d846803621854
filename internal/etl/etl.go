package etl

import (
	"context"

	"github.com/orggraph/orggraph/internal/connector"
	"github.com/orggraph/orggraph/internal/models"
)

// Streams is the read side of the staged record cache.
type Streams interface {
	Has(stream string) bool
	Stream(ctx context.Context, stream string) ([]connector.Record, error)
}

// Directory lists organization-level entities that are not part of the
// staged per-repository streams.
type Directory interface {
	Organization() string
	ListTeamsWithMembers(ctx context.Context) ([]models.TeamWithMembers, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
}

// Stats summarizes one loader pass.
type Stats struct {
	Nodes    int
	Edges    int
	Warnings int
}

// Add accumulates another pass into s.
func (s *Stats) Add(other Stats) {
	s.Nodes += other.Nodes
	s.Edges += other.Edges
	s.Warnings += other.Warnings
}
