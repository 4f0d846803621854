package etl

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/orggraph/orggraph/internal/graph"
	"github.com/orggraph/orggraph/internal/models"
)

// OrgLoader builds the people side of the graph: teams, members and
// the membership structure that ties a person to a role within a team.
type OrgLoader struct {
	directory Directory
	engine    *Engine
	logger    *logrus.Logger
}

func NewOrgLoader(directory Directory, engine *Engine, logger *logrus.Logger) *OrgLoader {
	return &OrgLoader{directory: directory, engine: engine, logger: logger}
}

// BootstrapOrganization merges the root Organization node. Every run
// starts here so the rest of the pipeline always has an anchor to link
// against.
func BootstrapOrganization(ctx context.Context, engine *Engine, id, name string) (*graph.NodeRef, error) {
	if name == "" {
		name = id
	}
	org, err := engine.UpsertNode(ctx, "Organization", map[string]any{
		"id":   id,
		"name": name,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap organization %s: %w", id, err)
	}
	return org, nil
}

// Load merges teams, members, roles and projects under org. A failure
// on one team or member is logged and the rest of the batch continues.
func (l *OrgLoader) Load(ctx context.Context, org *graph.NodeRef) (Stats, error) {
	var stats Stats

	teams, err := l.directory.ListTeamsWithMembers(ctx)
	if err != nil {
		return stats, fmt.Errorf("list teams: %w", err)
	}
	l.logger.WithField("teams", len(teams)).Info("loading teams and members")

	for _, team := range teams {
		if err := l.loadTeam(ctx, org, team, &stats); err != nil {
			l.logger.WithField("team", team.Slug).WithError(err).Warn("team load failed, continuing")
			stats.Warnings++
		}
	}

	projects, err := l.directory.ListProjects(ctx)
	if err != nil {
		return stats, fmt.Errorf("list projects: %w", err)
	}
	for _, project := range projects {
		node, err := l.engine.UpsertNode(ctx, "Project", map[string]any{
			"id":     project.ID,
			"title":  project.Title,
			"number": project.Number,
		})
		if err != nil {
			l.logger.WithField("project", project.Title).WithError(err).Warn("project load failed, continuing")
			stats.Warnings++
			continue
		}
		stats.Nodes++
		if err := l.engine.UpsertRelationship(ctx, org, "has", node); err != nil {
			return stats, err
		}
		stats.Edges++
	}

	return stats, nil
}

func (l *OrgLoader) loadTeam(ctx context.Context, org *graph.NodeRef, team models.TeamWithMembers, stats *Stats) error {
	teamNode, err := l.engine.UpsertNode(ctx, "Team", map[string]any{
		"slug": team.Slug,
		"name": team.Name,
	})
	if err != nil {
		return err
	}
	stats.Nodes++

	if err := l.engine.UpsertRelationship(ctx, org, "has", teamNode); err != nil {
		return err
	}
	stats.Edges++

	// One role per team, named after the team itself.
	roleNode, err := l.engine.UpsertNode(ctx, "OrganizationalRole", map[string]any{
		"name": team.Name,
	})
	if err != nil {
		return err
	}
	stats.Nodes++

	for _, member := range team.Members {
		if err := l.loadMember(ctx, org, teamNode, roleNode, team.Slug, member, stats); err != nil {
			l.logger.WithFields(logrus.Fields{
				"team":  team.Slug,
				"login": member.Login,
			}).WithError(err).Warn("member load failed, continuing")
			stats.Warnings++
		}
	}
	return nil
}

func (l *OrgLoader) loadMember(ctx context.Context, org, team, role *graph.NodeRef, teamSlug string, member models.Member, stats *Stats) error {
	name := member.Name
	if name == "" {
		name = member.Login
	}
	personProps := map[string]any{
		"login": member.Login,
		"name":  name,
	}
	if member.Email != "" {
		personProps["email"] = member.Email
	}
	if member.AvatarURL != "" {
		personProps["avatar_url"] = member.AvatarURL
	}
	if member.HTMLURL != "" {
		personProps["html_url"] = member.HTMLURL
	}
	person, err := l.engine.UpsertNode(ctx, "Person", personProps)
	if err != nil {
		return err
	}
	stats.Nodes++
	if err := l.engine.UpsertRelationship(ctx, person, "present_in", org); err != nil {
		return err
	}
	stats.Edges++

	teamMember, err := l.engine.UpsertNode(ctx, "TeamMember", map[string]any{
		"login":     member.Login,
		"team_slug": teamSlug,
	})
	if err != nil {
		return err
	}
	stats.Nodes++

	// Membership mediates member, role and team.
	membership, err := l.engine.UpsertNode(ctx, "TeamMembership", map[string]any{
		"login":     member.Login,
		"team_slug": teamSlug,
	})
	if err != nil {
		return err
	}
	stats.Nodes++

	for _, edge := range []struct {
		from *graph.NodeRef
		rel  string
		to   *graph.NodeRef
	}{
		{teamMember, "is", person},
		{membership, "allocates", teamMember},
		{membership, "is_to_play", role},
		{membership, "done_for", team},
	} {
		if err := l.engine.UpsertRelationship(ctx, edge.from, edge.rel, edge.to); err != nil {
			return err
		}
		stats.Edges++
	}
	return nil
}
