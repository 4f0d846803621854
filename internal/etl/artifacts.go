package etl

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	gh "github.com/orggraph/orggraph/internal/github"
)

// ArtifactSource bulk-fetches the files changed by a set of commits.
type ArtifactSource interface {
	FetchAll(ctx context.Context, tasks []gh.CommitTask) ([]gh.ArtifactFile, error)
}

// ArtifactLoader enriches already-loaded commits with the files they
// touched. It runs as a separate pass: commits are read back from the
// graph, their file lists fetched, and each file merged as a
// SoftwareArtifact linked to its commit.
type ArtifactLoader struct {
	engine   *Engine
	resolver *Resolver
	source   ArtifactSource
	logger   *logrus.Logger
}

func NewArtifactLoader(engine *Engine, resolver *Resolver, source ArtifactSource, logger *logrus.Logger) *ArtifactLoader {
	return &ArtifactLoader{engine: engine, resolver: resolver, source: source, logger: logger}
}

// Load fetches changed files for every commit currently in the graph
// and merges them. Commits that vanished between read-back and link
// are warned about and skipped.
func (l *ArtifactLoader) Load(ctx context.Context) (Stats, error) {
	var stats Stats

	tasks, err := l.commitTasks(ctx)
	if err != nil {
		return stats, err
	}
	if len(tasks) == 0 {
		l.logger.Info("no commits in graph, nothing to enrich")
		return stats, nil
	}
	l.logger.WithField("commits", len(tasks)).Info("fetching commit artifacts")

	files, err := l.source.FetchAll(ctx, tasks)
	if err != nil {
		return stats, fmt.Errorf("fetch artifacts: %w", err)
	}

	for _, file := range files {
		commit, err := l.resolver.Lookup(ctx, "Commit", map[string]any{
			"id": file.CommitSHA + keySeparator + file.Repository,
		})
		if err != nil {
			return stats, err
		}
		if commit == nil {
			stats.Warnings++
			continue
		}

		node, err := l.engine.UpsertNode(ctx, "SoftwareArtifact", map[string]any{
			"id":        file.SHA,
			"sha":       file.SHA,
			"filename":  file.Filename,
			"status":    file.Status,
			"additions": file.Additions,
			"deletions": file.Deletions,
			"changes":   file.Changes,
			"patch":     file.Patch,
			"raw_url":   file.RawURL,
			"blob_url":  file.BlobURL,
		})
		if err != nil {
			l.logger.WithField("sha", file.SHA).WithError(err).Warn("artifact upsert failed, skipping")
			stats.Warnings++
			continue
		}
		stats.Nodes++

		if err := l.engine.UpsertRelationship(ctx, commit, "has", node); err != nil {
			return stats, err
		}
		if err := l.engine.UpsertRelationship(ctx, node, "commited", commit); err != nil {
			return stats, err
		}
		stats.Edges += 2
	}

	return stats, nil
}

func (l *ArtifactLoader) commitTasks(ctx context.Context) ([]gh.CommitTask, error) {
	rows, err := l.engine.Sink().Query(ctx,
		"MATCH (c:Commit) RETURN c.sha AS sha, c.repository AS repository",
		nil)
	if err != nil {
		return nil, fmt.Errorf("read commits: %w", err)
	}

	tasks := make([]gh.CommitTask, 0, len(rows))
	for _, row := range rows {
		sha, _ := row["sha"].(string)
		repository, _ := row["repository"].(string)
		if sha == "" || repository == "" {
			continue
		}
		tasks = append(tasks, gh.CommitTask{Repository: repository, SHA: sha})
	}
	return tasks, nil
}
