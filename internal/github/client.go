package github

import (
	"context"
	"fmt"

	"github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"

	"github.com/orggraph/orggraph/internal/models"
)

// Client wraps the source API for organization-level listings, gated
// by a shared rate limiter.
type Client struct {
	client       *github.Client
	limiter      *rate.Limiter
	organization string
}

// NewClient creates a directory client for one organization.
func NewClient(token, organization string, rateLimit int) *Client {
	if rateLimit <= 0 {
		rateLimit = 1
	}
	return &Client{
		client:       github.NewClient(nil).WithAuthToken(token),
		limiter:      rate.NewLimiter(rate.Limit(rateLimit), 1),
		organization: organization,
	}
}

// Organization returns the configured organization name.
func (c *Client) Organization() string {
	return c.organization
}

// ListTeams returns all teams in the organization.
func (c *Client) ListTeams(ctx context.Context) ([]models.Team, error) {
	var all []models.Team
	opts := &github.ListOptions{PerPage: 100}
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		teams, resp, err := c.client.Teams.ListTeams(ctx, c.organization, opts)
		if err != nil {
			return nil, fmt.Errorf("list teams: %w", err)
		}
		for _, team := range teams {
			all = append(all, models.Team{
				Name: team.GetName(),
				Slug: team.GetSlug(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListTeamMembers returns the members of one team.
func (c *Client) ListTeamMembers(ctx context.Context, teamSlug string) ([]models.Member, error) {
	var all []models.Member
	opts := &github.TeamListTeamMembersOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		members, resp, err := c.client.Teams.ListTeamMembersBySlug(ctx, c.organization, teamSlug, opts)
		if err != nil {
			return nil, fmt.Errorf("list members of team %s: %w", teamSlug, err)
		}
		for _, member := range members {
			all = append(all, models.Member{
				Login:     member.GetLogin(),
				Name:      member.GetName(),
				Email:     member.GetEmail(),
				AvatarURL: member.GetAvatarURL(),
				HTMLURL:   member.GetHTMLURL(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListTeamsWithMembers returns every team together with its members.
func (c *Client) ListTeamsWithMembers(ctx context.Context) ([]models.TeamWithMembers, error) {
	teams, err := c.ListTeams(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]models.TeamWithMembers, 0, len(teams))
	for _, team := range teams {
		members, err := c.ListTeamMembers(ctx, team.Slug)
		if err != nil {
			return nil, err
		}
		result = append(result, models.TeamWithMembers{Team: team, Members: members})
	}
	return result, nil
}

// ListProjects returns the organization's projects.
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var all []models.Project
	opts := &github.ProjectListOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		projects, resp, err := c.client.Organizations.ListProjects(ctx, c.organization, opts)
		if err != nil {
			return nil, fmt.Errorf("list projects: %w", err)
		}
		for _, project := range projects {
			all = append(all, models.Project{
				ID:     fmt.Sprintf("%d", project.GetID()),
				Title:  project.GetName(),
				Number: project.GetNumber(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}
