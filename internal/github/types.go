package github

import "time"

// Profile is the subset of a GitHub user shown on the portfolio.
type Profile struct {
	Login       string    `json:"login"`
	Name        string    `json:"name,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	HTMLURL     string    `json:"html_url,omitempty"`
	Location    string    `json:"location,omitempty"`
	PublicRepos int       `json:"public_repos"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository is the subset of a GitHub repository shown on the portfolio.
type Repository struct {
	Name        string    `json:"name"`
	FullName    string    `json:"full_name"`
	Description string    `json:"description,omitempty"`
	HTMLURL     string    `json:"html_url"`
	Homepage    string    `json:"homepage,omitempty"`
	Language    string    `json:"language,omitempty"`
	Topics      []string  `json:"topics,omitempty"`
	Stars       int       `json:"stars"`
	Forks       int       `json:"forks"`
	Fork        bool      `json:"fork"`
	Archived    bool      `json:"archived"`
	PushedAt    time.Time `json:"pushed_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LanguageShare is one language's share of the total code size.
type LanguageShare struct {
	Name       string  `json:"name"`
	Bytes      int64   `json:"bytes"`
	Percentage float64 `json:"percentage"`
}

// Totals are summed across non-fork repositories except PublicRepos and Followers,
// which come from the profile.
type Totals struct {
	Stars       int `json:"stars"`
	Forks       int `json:"forks"`
	PublicRepos int `json:"public_repos"`
	Followers   int `json:"followers"`
}

// Stats is a statistics snapshot.
type Stats struct {
	Profile      Profile         `json:"profile"`
	Repositories []Repository    `json:"repositories"`
	Languages    []LanguageShare `json:"languages"`
	Totals       Totals          `json:"totals"`
	FetchedAt    time.Time       `json:"fetched_at"`
	// Stale is set when the snapshot is served after a failed refresh.
	Stale bool `json:"stale"`
}
