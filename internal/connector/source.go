package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Source pulls paginated API data for a fixed repository selection and
// materializes it into the staging cache as named record streams.
type Source struct {
	client       *github.Client
	limiter      *rate.Limiter
	staging      *Staging
	logger       *logrus.Logger
	repositories []string
	streams      []string
	startDate    time.Time
	organization string
}

// NewSource builds a source for one organization. rateLimit is
// requests per second against the API.
func NewSource(token, organization string, repositories []string, rateLimit int, staging *Staging, logger *logrus.Logger) *Source {
	if rateLimit <= 0 {
		rateLimit = 1
	}
	return &Source{
		client:       github.NewClient(nil).WithAuthToken(token),
		limiter:      rate.NewLimiter(rate.Limit(rateLimit), 1),
		staging:      staging,
		logger:       logger,
		repositories: repositories,
		organization: organization,
	}
}

// SelectStreams chooses which streams the next Read materializes.
func (s *Source) SelectStreams(streams []string) {
	s.streams = streams
}

// SetStartDate sets the incremental window: commits and issues before
// this instant are not fetched. Zero means full history.
func (s *Source) SetStartDate(t time.Time) {
	s.startDate = t
}

// Check verifies the token and repository selection before a sync.
func (s *Source) Check(ctx context.Context) error {
	if len(s.repositories) == 0 {
		return fmt.Errorf("no repositories selected")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, _, err := s.client.RateLimits(ctx); err != nil {
		return fmt.Errorf("credential check failed: %w", err)
	}
	return nil
}

// Read fetches every selected stream into the staging cache and
// returns a handle over the staged batches.
func (s *Source) Read(ctx context.Context) (*Cache, error) {
	selected := make(map[string]bool, len(s.streams))

	for _, stream := range s.streams {
		records, err := s.fetchStream(ctx, stream)
		if err != nil {
			return nil, fmt.Errorf("fetch stream %s: %w", stream, err)
		}
		s.stamp(stream, records)
		if err := s.staging.Replace(ctx, stream, records); err != nil {
			return nil, err
		}
		selected[stream] = true
	}

	return &Cache{staging: s.staging, streams: selected}, nil
}

func (s *Source) fetchStream(ctx context.Context, stream string) ([]Record, error) {
	switch stream {
	case StreamRepositories:
		return s.fetchRepositories(ctx)
	case StreamIssues:
		return s.fetchIssues(ctx)
	case StreamIssueMilestones:
		return s.fetchMilestones(ctx)
	case StreamIssueLabels:
		return s.fetchLabels(ctx)
	case StreamPullRequests:
		return s.fetchPullRequests(ctx)
	case StreamPullRequestCommits:
		return s.fetchPullRequestCommits(ctx)
	case StreamCommits:
		return s.fetchCommits(ctx)
	case StreamBranches:
		return s.fetchBranches(ctx)
	case StreamProjects:
		return s.fetchProjects(ctx)
	case StreamTeams:
		return s.fetchTeams(ctx)
	case StreamTeamMembers:
		return s.fetchTeamMembers(ctx)
	default:
		return nil, fmt.Errorf("unknown stream %q", stream)
	}
}

func (s *Source) fetchRepositories(ctx context.Context) ([]Record, error) {
	var records []Record
	for _, fullName := range s.repositories {
		owner, name, err := splitFullName(fullName)
		if err != nil {
			return nil, err
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		repo, _, err := s.client.Repositories.Get(ctx, owner, name)
		if err != nil {
			return nil, fmt.Errorf("get repository %s: %w", fullName, err)
		}
		records = append(records, Record{
			"id":             fmt.Sprintf("%d", repo.GetID()),
			"name":           repo.GetName(),
			"full_name":      repo.GetFullName(),
			"url":            repo.GetHTMLURL(),
			"default_branch": repo.GetDefaultBranch(),
			"language":       repo.GetLanguage(),
			"created_at":     repo.GetCreatedAt().Format(time.RFC3339),
			"updated_at":     repo.GetUpdatedAt().Format(time.RFC3339),
		})
	}
	return records, nil
}

func (s *Source) fetchIssues(ctx context.Context) ([]Record, error) {
	var records []Record
	for _, fullName := range s.repositories {
		owner, name, err := splitFullName(fullName)
		if err != nil {
			return nil, err
		}
		opts := &github.IssueListByRepoOptions{
			State:       "all",
			Since:       s.startDate,
			ListOptions: github.ListOptions{PerPage: 100},
		}
		for {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			issues, resp, err := s.client.Issues.ListByRepo(ctx, owner, name, opts)
			if err != nil {
				return nil, fmt.Errorf("list issues for %s: %w", fullName, err)
			}
			for _, issue := range issues {
				if issue.IsPullRequest() {
					continue
				}
				record := Record{
					"id":         fmt.Sprintf("%d-%s", issue.GetNumber(), fullName),
					"number":     issue.GetNumber(),
					"title":      issue.GetTitle(),
					"body":       issue.GetBody(),
					"url":        issue.GetHTMLURL(),
					"state":      issue.GetState(),
					"repository": fullName,
					"created_at": issue.GetCreatedAt().Format(time.RFC3339),
					"updated_at": issue.GetUpdatedAt().Format(time.RFC3339),
					"user":       jsonPayload(userRef(issue.GetUser())),
				}
				if issue.Milestone != nil {
					record["milestone"] = jsonPayload(map[string]any{
						"id": fmt.Sprintf("%d-%s", issue.Milestone.GetNumber(), fullName),
					})
				}
				if len(issue.Assignees) > 0 {
					refs := make([]map[string]any, 0, len(issue.Assignees))
					for _, assignee := range issue.Assignees {
						refs = append(refs, userRef(assignee))
					}
					record["assignees"] = jsonPayload(refs)
				}
				if len(issue.Labels) > 0 {
					refs := make([]map[string]any, 0, len(issue.Labels))
					for _, label := range issue.Labels {
						refs = append(refs, map[string]any{
							"id":   fmt.Sprintf("%d", label.GetID()),
							"name": label.GetName(),
						})
					}
					record["labels"] = jsonPayload(refs)
				}
				records = append(records, record)
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
	}
	return records, nil
}

func (s *Source) fetchMilestones(ctx context.Context) ([]Record, error) {
	var records []Record
	for _, fullName := range s.repositories {
		owner, name, err := splitFullName(fullName)
		if err != nil {
			return nil, err
		}
		opts := &github.MilestoneListOptions{
			State:       "all",
			ListOptions: github.ListOptions{PerPage: 100},
		}
		for {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			milestones, resp, err := s.client.Issues.ListMilestones(ctx, owner, name, opts)
			if err != nil {
				return nil, fmt.Errorf("list milestones for %s: %w", fullName, err)
			}
			for _, m := range milestones {
				record := Record{
					"id":            fmt.Sprintf("%d-%s", m.GetNumber(), fullName),
					"number":        m.GetNumber(),
					"title":         m.GetTitle(),
					"description":   m.GetDescription(),
					"state":         m.GetState(),
					"open_issues":   m.GetOpenIssues(),
					"closed_issues": m.GetClosedIssues(),
					"url":           m.GetHTMLURL(),
					"creator":       m.GetCreator().GetLogin(),
					"repository":    fullName,
					"created_at":    m.GetCreatedAt().Format(time.RFC3339),
					"updated_at":    m.GetUpdatedAt().Format(time.RFC3339),
				}
				if m.DueOn != nil {
					record["due_on"] = m.GetDueOn().Format(time.RFC3339)
				}
				records = append(records, record)
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
	}
	return records, nil
}

func (s *Source) fetchLabels(ctx context.Context) ([]Record, error) {
	var records []Record
	for _, fullName := range s.repositories {
		owner, name, err := splitFullName(fullName)
		if err != nil {
			return nil, err
		}
		opts := &github.ListOptions{PerPage: 100}
		for {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			labels, resp, err := s.client.Issues.ListLabels(ctx, owner, name, opts)
			if err != nil {
				return nil, fmt.Errorf("list labels for %s: %w", fullName, err)
			}
			for _, label := range labels {
				records = append(records, Record{
					"id":         fmt.Sprintf("%d", label.GetID()),
					"name":       label.GetName(),
					"color":      label.GetColor(),
					"repository": fullName,
				})
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
	}
	return records, nil
}

func (s *Source) fetchPullRequests(ctx context.Context) ([]Record, error) {
	var records []Record
	for _, fullName := range s.repositories {
		owner, name, err := splitFullName(fullName)
		if err != nil {
			return nil, err
		}
		opts := &github.PullRequestListOptions{
			State:       "all",
			ListOptions: github.ListOptions{PerPage: 100},
		}
		for {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			prs, resp, err := s.client.PullRequests.List(ctx, owner, name, opts)
			if err != nil {
				return nil, fmt.Errorf("list pull requests for %s: %w", fullName, err)
			}
			for _, pr := range prs {
				record := Record{
					"id":          fmt.Sprintf("%d-%s", pr.GetNumber(), fullName),
					"number":      pr.GetNumber(),
					"title":       pr.GetTitle(),
					"state":       pr.GetState(),
					"url":         pr.GetHTMLURL(),
					"base_branch": pr.GetBase().GetRef(),
					"head_branch": pr.GetHead().GetRef(),
					"repository":  fullName,
					"created_at":  pr.GetCreatedAt().Format(time.RFC3339),
					"user":        jsonPayload(userRef(pr.GetUser())),
				}
				if pr.MergedAt != nil {
					record["merged_at"] = pr.GetMergedAt().Format(time.RFC3339)
				}
				records = append(records, record)
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
	}
	return records, nil
}

func (s *Source) fetchPullRequestCommits(ctx context.Context) ([]Record, error) {
	prRecords, err := s.fetchPullRequests(ctx)
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, pr := range prRecords {
		fullName, _ := pr["repository"].(string)
		number, _ := pr["number"].(int)
		owner, name, err := splitFullName(fullName)
		if err != nil {
			return nil, err
		}
		opts := &github.ListOptions{PerPage: 100}
		for {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			commits, resp, err := s.client.PullRequests.ListCommits(ctx, owner, name, number, opts)
			if err != nil {
				return nil, fmt.Errorf("list commits for PR %d in %s: %w", number, fullName, err)
			}
			for _, commit := range commits {
				records = append(records, Record{
					"sha":          commit.GetSHA(),
					"repository":   fullName,
					"pull_request": pr["id"],
				})
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
	}
	return records, nil
}

func (s *Source) fetchCommits(ctx context.Context) ([]Record, error) {
	var records []Record
	for _, fullName := range s.repositories {
		owner, name, err := splitFullName(fullName)
		if err != nil {
			return nil, err
		}
		opts := &github.CommitsListOptions{
			Since:       s.startDate,
			ListOptions: github.ListOptions{PerPage: 100},
		}
		for {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			commits, resp, err := s.client.Repositories.ListCommits(ctx, owner, name, opts)
			if err != nil {
				return nil, fmt.Errorf("list commits for %s: %w", fullName, err)
			}
			for _, commit := range commits {
				record := Record{
					"sha":             commit.GetSHA(),
					"repository":      fullName,
					"message":         commit.GetCommit().GetMessage(),
					"author_name":     commit.GetCommit().GetAuthor().GetName(),
					"author_email":    commit.GetCommit().GetAuthor().GetEmail(),
					"committer_name":  commit.GetCommit().GetCommitter().GetName(),
					"committer_email": commit.GetCommit().GetCommitter().GetEmail(),
					"authored_at":     commit.GetCommit().GetAuthor().GetDate().Format(time.RFC3339),
				}
				if commit.Author != nil {
					record["author"] = jsonPayload(userRef(commit.Author))
				}
				if commit.Committer != nil {
					record["committer"] = jsonPayload(userRef(commit.Committer))
				}
				if len(commit.Parents) > 0 {
					refs := make([]map[string]any, 0, len(commit.Parents))
					for _, parent := range commit.Parents {
						refs = append(refs, map[string]any{"sha": parent.GetSHA()})
					}
					record["parents"] = jsonPayload(refs)
				}
				records = append(records, record)
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
	}
	return records, nil
}

func (s *Source) fetchBranches(ctx context.Context) ([]Record, error) {
	var records []Record
	for _, fullName := range s.repositories {
		owner, name, err := splitFullName(fullName)
		if err != nil {
			return nil, err
		}
		opts := &github.BranchListOptions{
			ListOptions: github.ListOptions{PerPage: 100},
		}
		for {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			branches, resp, err := s.client.Repositories.ListBranches(ctx, owner, name, opts)
			if err != nil {
				return nil, fmt.Errorf("list branches for %s: %w", fullName, err)
			}
			for _, branch := range branches {
				records = append(records, Record{
					"name":       branch.GetName(),
					"repository": fullName,
					"head_sha":   branch.GetCommit().GetSHA(),
				})
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
	}
	return records, nil
}

func (s *Source) fetchProjects(ctx context.Context) ([]Record, error) {
	var records []Record
	for _, fullName := range s.repositories {
		owner, name, err := splitFullName(fullName)
		if err != nil {
			return nil, err
		}
		opts := &github.ProjectListOptions{
			ListOptions: github.ListOptions{PerPage: 100},
		}
		for {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			projects, resp, err := s.client.Repositories.ListProjects(ctx, owner, name, opts)
			if err != nil {
				return nil, fmt.Errorf("list projects for %s: %w", fullName, err)
			}
			for _, project := range projects {
				records = append(records, Record{
					"id":         fmt.Sprintf("%d", project.GetID()),
					"title":      project.GetName(),
					"number":     project.GetNumber(),
					"repository": fullName,
				})
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
	}
	return records, nil
}

func (s *Source) fetchTeams(ctx context.Context) ([]Record, error) {
	var records []Record
	opts := &github.ListOptions{PerPage: 100}
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		teams, resp, err := s.client.Teams.ListTeams(ctx, s.organization, opts)
		if err != nil {
			return nil, fmt.Errorf("list teams for %s: %w", s.organization, err)
		}
		for _, team := range teams {
			records = append(records, Record{
				"id":   fmt.Sprintf("%d", team.GetID()),
				"name": team.GetName(),
				"slug": team.GetSlug(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return records, nil
}

func (s *Source) fetchTeamMembers(ctx context.Context) ([]Record, error) {
	teams, err := s.fetchTeams(ctx)
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, team := range teams {
		slug, _ := team["slug"].(string)
		opts := &github.TeamListTeamMembersOptions{
			ListOptions: github.ListOptions{PerPage: 100},
		}
		for {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			members, resp, err := s.client.Teams.ListTeamMembersBySlug(ctx, s.organization, slug, opts)
			if err != nil {
				return nil, fmt.Errorf("list members for team %s: %w", slug, err)
			}
			for _, member := range members {
				records = append(records, Record{
					"id":        fmt.Sprintf("%s-%s", member.GetLogin(), slug),
					"login":     member.GetLogin(),
					"team_slug": slug,
				})
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
	}
	return records, nil
}

// stamp adds bookkeeping fields to every record in a batch.
func (s *Source) stamp(stream string, records []Record) {
	now := time.Now().UTC().Format(time.RFC3339)
	for _, record := range records {
		record[FieldStream] = stream
		record[FieldRecordID] = uuid.NewString()
		record[FieldExtractedAt] = now
	}
}

// Cache is a read handle over the streams materialized by one Read.
type Cache struct {
	staging *Staging
	streams map[string]bool
}

// Has reports whether a stream was part of the last sync.
func (c *Cache) Has(stream string) bool {
	return c.streams[stream]
}

// Stream returns the staged batch for one stream.
func (c *Cache) Stream(ctx context.Context, stream string) ([]Record, error) {
	return c.staging.Stream(ctx, stream)
}

func splitFullName(fullName string) (owner, name string, err error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository name %q (want owner/name)", fullName)
	}
	return parts[0], parts[1], nil
}

func userRef(user *github.User) map[string]any {
	return map[string]any{
		"login":      user.GetLogin(),
		"name":       user.GetName(),
		"email":      user.GetEmail(),
		"avatar_url": user.GetAvatarURL(),
		"html_url":   user.GetHTMLURL(),
	}
}

func jsonPayload(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}
