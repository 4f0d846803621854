package etl

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/orggraph/orggraph/internal/connector"
	"github.com/orggraph/orggraph/internal/graph"
	"github.com/orggraph/orggraph/internal/models"
)

// IssueLoader builds the planning side of the graph: milestones,
// labels, issues and pull requests, plus the links between them and
// the commits a pull request carries.
type IssueLoader struct {
	streams  Streams
	engine   *Engine
	resolver *Resolver
	logger   *logrus.Logger
}

func NewIssueLoader(streams Streams, engine *Engine, resolver *Resolver, logger *logrus.Logger) *IssueLoader {
	return &IssueLoader{streams: streams, engine: engine, resolver: resolver, logger: logger}
}

// Load processes milestone, label, issue and pull request streams.
// Milestones and labels go first so issue references can resolve.
func (l *IssueLoader) Load(ctx context.Context, org *graph.NodeRef) (Stats, error) {
	var stats Stats

	steps := []struct {
		stream string
		load   func(context.Context, []connector.Record, *Stats) error
	}{
		{connector.StreamIssueMilestones, l.loadMilestones},
		{connector.StreamIssueLabels, l.loadLabels},
		{connector.StreamIssues, l.loadIssues},
		{connector.StreamPullRequests, l.loadPullRequests},
		{connector.StreamPullRequestCommits, l.loadPullRequestCommits},
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
		if err := step.load(ctx, records, &stats); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// upsertUnderRepository merges one node and links its repository to it.
// Returns nil when the row was skipped.
func (l *IssueLoader) upsertUnderRepository(ctx context.Context, label string, props map[string]any, stats *Stats) (*graph.NodeRef, error) {
	node, err := l.engine.UpsertNode(ctx, label, props)
	if err != nil {
		l.logger.WithField("label", label).WithError(err).Warn("upsert failed, skipping")
		stats.Warnings++
		return nil, nil
	}
	stats.Nodes++

	repo, err := l.resolver.Lookup(ctx, "Repository", map[string]any{"full_name": props["repository"]})
	if err != nil {
		return nil, err
	}
	if repo == nil {
		stats.Warnings++
		return node, nil
	}
	if err := l.engine.UpsertRelationship(ctx, repo, "has", node); err != nil {
		return nil, err
	}
	stats.Edges++
	return node, nil
}

func (l *IssueLoader) loadMilestones(ctx context.Context, records []connector.Record, stats *Stats) error {
	for _, record := range records {
		if _, err := l.upsertUnderRepository(ctx, "Milestone", Normalize(record), stats); err != nil {
			return err
		}
	}
	return nil
}

func (l *IssueLoader) loadLabels(ctx context.Context, records []connector.Record, stats *Stats) error {
	for _, record := range records {
		if _, err := l.upsertUnderRepository(ctx, "Label", Normalize(record), stats); err != nil {
			return err
		}
	}
	return nil
}

func (l *IssueLoader) loadIssues(ctx context.Context, records []connector.Record, stats *Stats) error {
	for _, record := range records {
		props := Normalize(record)
		node, err := l.upsertUnderRepository(ctx, "Issue", props, stats)
		if err != nil {
			return err
		}
		if node == nil {
			continue
		}

		if err := l.linkMilestone(ctx, node, props["milestone"], stats); err != nil {
			return err
		}
		if err := l.linkAuthor(ctx, node, props["user"], stats); err != nil {
			return err
		}
		if err := l.linkAssignees(ctx, node, props["assignees"], stats); err != nil {
			return err
		}
		if err := l.linkLabels(ctx, node, props["labels"], stats); err != nil {
			return err
		}
	}
	return nil
}

func (l *IssueLoader) loadPullRequests(ctx context.Context, records []connector.Record, stats *Stats) error {
	for _, record := range records {
		props := Normalize(record)
		node, err := l.upsertUnderRepository(ctx, "PullRequest", props, stats)
		if err != nil {
			return err
		}
		if node == nil {
			continue
		}
		if err := l.linkAuthor(ctx, node, props["user"], stats); err != nil {
			return err
		}
	}
	return nil
}

// loadPullRequestCommits links commits to the pull requests that carry
// them. Both ends are lookup-only: the commit stream and the pull
// request stream must have been loaded first.
func (l *IssueLoader) loadPullRequestCommits(ctx context.Context, records []connector.Record, stats *Stats) error {
	for _, record := range records {
		props := Normalize(record)
		sha, _ := props["sha"].(string)
		repository, _ := props["repository"].(string)
		if sha == "" || repository == "" {
			continue
		}

		commit, err := l.resolver.Lookup(ctx, "Commit", map[string]any{"id": sha + keySeparator + repository})
		if err != nil {
			return err
		}
		pr, err := l.resolver.Lookup(ctx, "PullRequest", map[string]any{"id": props["pull_request"]})
		if err != nil {
			return err
		}
		if commit == nil || pr == nil {
			stats.Warnings++
			continue
		}

		if err := l.engine.UpsertRelationship(ctx, commit, "present_in", pr); err != nil {
			return err
		}
		stats.Edges++
	}
	return nil
}

func (l *IssueLoader) linkMilestone(ctx context.Context, issue *graph.NodeRef, payload any, stats *Stats) error {
	var ref models.MilestoneRef
	ok, err := models.DecodeRef(payload, &ref)
	if err != nil {
		l.logger.WithError(err).Warn("malformed milestone payload, skipping")
		stats.Warnings++
		return nil
	}
	if !ok || ref.ID == "" {
		return nil
	}

	milestone, err := l.resolver.Lookup(ctx, "Milestone", map[string]any{"id": ref.ID})
	if err != nil {
		return err
	}
	if milestone == nil {
		stats.Warnings++
		return nil
	}
	if err := l.engine.UpsertRelationship(ctx, milestone, "has", issue); err != nil {
		return err
	}
	stats.Edges++
	return nil
}

func (l *IssueLoader) linkAuthor(ctx context.Context, node *graph.NodeRef, payload any, stats *Stats) error {
	person, err := l.resolver.ResolvePerson(ctx, payload)
	if err != nil {
		return err
	}
	if person == nil {
		return nil
	}
	if err := l.engine.UpsertRelationship(ctx, node, "created_by", person); err != nil {
		return err
	}
	stats.Edges++
	return nil
}

func (l *IssueLoader) linkAssignees(ctx context.Context, issue *graph.NodeRef, payload any, stats *Stats) error {
	var refs []models.UserRef
	ok, err := models.DecodeRefList(payload, &refs)
	if err != nil {
		l.logger.WithError(err).Warn("malformed assignees payload, skipping")
		stats.Warnings++
		return nil
	}
	if !ok {
		return nil
	}

	for _, ref := range refs {
		person, err := l.resolver.ResolvePerson(ctx, ref)
		if err != nil {
			return err
		}
		if person == nil {
			continue
		}
		if err := l.engine.UpsertRelationship(ctx, issue, "assigned_to", person); err != nil {
			return err
		}
		stats.Edges++
	}
	return nil
}

func (l *IssueLoader) linkLabels(ctx context.Context, issue *graph.NodeRef, payload any, stats *Stats) error {
	var refs []models.LabelRef
	ok, err := models.DecodeRefList(payload, &refs)
	if err != nil {
		l.logger.WithError(err).Warn("malformed labels payload, skipping")
		stats.Warnings++
		return nil
	}
	if !ok {
		return nil
	}

	for _, ref := range refs {
		if ref.ID == "" {
			continue
		}
		label, err := l.resolver.Lookup(ctx, "Label", map[string]any{"id": ref.ID})
		if err != nil {
			return err
		}
		if label == nil {
			stats.Warnings++
			continue
		}
		if err := l.engine.UpsertRelationship(ctx, issue, "labeled", label); err != nil {
			return err
		}
		stats.Edges++
	}
	return nil
}
