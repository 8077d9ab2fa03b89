// Package domain contains the core data structures and domain logic for the application.
package domain

// Repository describes a single repository returned by the organization listing.
type Repository struct {
	Name     string
	FullName string
}

// TeamRecord holds the commit count for a single repository.
// In the dashboard every repository represents one team.
type TeamRecord struct {
	Team    string `json:"team"`
	Commits int    `json:"commits"`
}

// Summary holds organization-wide figures derived from a list of TeamRecords.
type Summary struct {
	Teams        int     `json:"teams"`
	TotalCommits int     `json:"totalCommits"`
	Mean         float64 `json:"mean"`
	Median       float64 `json:"median"`
	Max          int     `json:"max"`
}
