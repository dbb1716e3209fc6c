package analysis

// ActivityType is a single ranked activity-type bucket within a repository.
type ActivityType struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// RepositoryActivity summarizes a user's activity in one repository.
type RepositoryActivity struct {
	RepositoryName   string         `json:"repository_name"`
	IsOwner          bool           `json:"is_owner"`
	TopActivityTypes []ActivityType `json:"top_activity_types"`
}

// UserActivityReport is the complete analysis result for one user.
type UserActivityReport struct {
	Username          string               `json:"username"`
	Repositories      []RepositoryActivity `json:"repositories"`
	TotalRepositories int                  `json:"total_repositories"`
	TotalEvents       int                  `json:"total_events"`
}
