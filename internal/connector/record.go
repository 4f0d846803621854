package connector

// Record is one staged row of a stream batch: a flat field→value
// mapping. Embedded references (an issue's author, a commit's parents)
// are carried as JSON strings so the record itself stays scalar and
// can be used directly as node properties after normalization.
type Record map[string]any

// Bookkeeping fields the connector stamps into every record before
// staging. The normalizer strips everything with this prefix.
const (
	BookkeepingPrefix = "_og_"

	FieldStream      = BookkeepingPrefix + "stream"
	FieldRecordID    = BookkeepingPrefix + "record_id"
	FieldExtractedAt = BookkeepingPrefix + "extracted_at"
)

// Stream names the connector can materialize.
const (
	StreamRepositories       = "repositories"
	StreamIssues             = "issues"
	StreamIssueMilestones    = "issue_milestones"
	StreamIssueLabels        = "issue_labels"
	StreamPullRequests       = "pull_requests"
	StreamPullRequestCommits = "pull_request_commits"
	StreamCommits            = "commits"
	StreamBranches           = "branches"
	StreamProjects           = "projects_v2"
	StreamTeams              = "teams"
	StreamTeamMembers        = "team_members"
)
