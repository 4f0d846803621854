package models

// Typed records returned by the directory client. These mirror what
// the source API exposes for organization-level listings.

type Team struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Member struct {
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	HTMLURL   string `json:"html_url,omitempty"`
}

type TeamWithMembers struct {
	Team
	Members []Member `json:"members"`
}

type Project struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Number int    `json:"number"`
}
