package etl

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/orggraph/orggraph/internal/connector"
	"github.com/orggraph/orggraph/internal/graph"
	"github.com/orggraph/orggraph/internal/models"
)

// RepoLoader builds the code side of the graph: repositories, their
// project links, branches and commits.
type RepoLoader struct {
	streams  Streams
	engine   *Engine
	resolver *Resolver
	logger   *logrus.Logger
}

func NewRepoLoader(streams Streams, engine *Engine, resolver *Resolver, logger *logrus.Logger) *RepoLoader {
	return &RepoLoader{streams: streams, engine: engine, resolver: resolver, logger: logger}
}

// Load processes the repository, project, branch and commit streams in
// dependency order. Row failures are logged and skipped; only stream
// reads and relationship writes against resolved nodes abort the pass.
func (l *RepoLoader) Load(ctx context.Context, org *graph.NodeRef) (Stats, error) {
	var stats Stats

	steps := []struct {
		stream string
		load   func(context.Context, *graph.NodeRef, []connector.Record, *Stats) error
	}{
		{connector.StreamRepositories, l.loadRepositories},
		{connector.StreamProjects, l.loadRepositoryProjects},
		{connector.StreamBranches, l.loadBranches},
		{connector.StreamCommits, l.loadCommits},
	}

	for _, step := range steps {
		if !l.streams.Has(step.stream) {
			continue
		}
		records, err := l.streams.Stream(ctx, step.stream)
		if err != nil {
			return stats, fmt.Errorf("read stream %s: %w", step.stream, err)
		}
		l.logger.WithFields(logrus.Fields{"stream": step.stream, "records": len(records)}).Info("loading stream")
		if err := step.load(ctx, org, records, &stats); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

func (l *RepoLoader) loadRepositories(ctx context.Context, org *graph.NodeRef, records []connector.Record, stats *Stats) error {
	for _, record := range records {
		node, err := l.engine.UpsertNode(ctx, "Repository", Normalize(record))
		if err != nil {
			l.logger.WithError(err).Warn("repository upsert failed, skipping")
			stats.Warnings++
			continue
		}
		stats.Nodes++
		if err := l.engine.UpsertRelationship(ctx, org, "has", node); err != nil {
			return err
		}
		stats.Edges++
	}
	return nil
}

// loadRepositoryProjects links already-merged Project nodes to the
// repositories they belong to. Both ends are looked up; either missing
// means the link is skipped.
func (l *RepoLoader) loadRepositoryProjects(ctx context.Context, _ *graph.NodeRef, records []connector.Record, stats *Stats) error {
	for _, record := range records {
		props := Normalize(record)
		fullName, _ := props["repository"].(string)
		if fullName == "" {
			continue
		}

		project, err := l.resolver.Lookup(ctx, "Project", map[string]any{"id": props["id"]})
		if err != nil {
			return err
		}
		repo, err := l.resolver.Lookup(ctx, "Repository", map[string]any{"full_name": fullName})
		if err != nil {
			return err
		}
		if project == nil || repo == nil {
			stats.Warnings++
			continue
		}

		if err := l.engine.UpsertRelationship(ctx, project, "has", repo); err != nil {
			return err
		}
		stats.Edges++
	}
	return nil
}

func (l *RepoLoader) loadBranches(ctx context.Context, _ *graph.NodeRef, records []connector.Record, stats *Stats) error {
	for _, record := range records {
		props := Normalize(record)
		node, err := l.engine.UpsertNode(ctx, "Branch", props)
		if err != nil {
			l.logger.WithError(err).Warn("branch upsert failed, skipping")
			stats.Warnings++
			continue
		}
		stats.Nodes++

		repo, err := l.resolver.Lookup(ctx, "Repository", map[string]any{"full_name": props["repository"]})
		if err != nil {
			return err
		}
		if repo == nil {
			stats.Warnings++
			continue
		}
		if err := l.engine.UpsertRelationship(ctx, repo, "has", node); err != nil {
			return err
		}
		stats.Edges++
	}
	return nil
}

func (l *RepoLoader) loadCommits(ctx context.Context, _ *graph.NodeRef, records []connector.Record, stats *Stats) error {
	for _, record := range records {
		props := Normalize(record)
		node, err := l.engine.UpsertNode(ctx, "Commit", props)
		if err != nil {
			l.logger.WithError(err).Warn("commit upsert failed, skipping")
			stats.Warnings++
			continue
		}
		stats.Nodes++

		repository, _ := props["repository"].(string)
		repo, err := l.resolver.Lookup(ctx, "Repository", map[string]any{"full_name": repository})
		if err != nil {
			return err
		}
		if repo != nil {
			if err := l.engine.UpsertRelationship(ctx, repo, "has", node); err != nil {
				return err
			}
			stats.Edges++
		} else {
			stats.Warnings++
		}

		for _, payload := range []any{props["author"], props["committer"]} {
			person, err := l.resolver.ResolvePerson(ctx, payload)
			if err != nil {
				return err
			}
			if person == nil {
				continue
			}
			if err := l.engine.UpsertRelationship(ctx, node, "created_by", person); err != nil {
				return err
			}
			stats.Edges++
		}

		if err := l.linkParents(ctx, node, repository, props["parents"], stats); err != nil {
			return err
		}
	}
	return nil
}

// linkParents connects a commit to parents already in the graph.
// Parents outside the fetched window stay unlinked.
func (l *RepoLoader) linkParents(ctx context.Context, commit *graph.NodeRef, repository string, payload any, stats *Stats) error {
	var parents []models.ParentRef
	ok, err := models.DecodeRefList(payload, &parents)
	if err != nil {
		l.logger.WithError(err).Warn("malformed parents payload, skipping")
		stats.Warnings++
		return nil
	}
	if !ok {
		return nil
	}

	for _, parent := range parents {
		if parent.SHA == "" {
			continue
		}
		parentID := parent.SHA + keySeparator + repository
		parentNode, err := l.resolver.Lookup(ctx, "Commit", map[string]any{"id": parentID})
		if err != nil {
			return err
		}
		if parentNode == nil {
			stats.Warnings++
			continue
		}
		if err := l.engine.UpsertRelationship(ctx, commit, "has_parent", parentNode); err != nil {
			return err
		}
		stats.Edges++
	}
	return nil
}
