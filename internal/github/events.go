package github

import (
	"strings"
	"time"
)

// Actor represents the user that triggered an event
type Actor struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
}

// Repository identifies the repository an event belongs to. The events API
// only carries id, name and url; Name holds the full "owner/name" form.
type Repository struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Owner returns the owner part of the "owner/name" repository name.
// Returns the empty string if no separator is present.
func (r Repository) Owner() string {
	owner, _, found := strings.Cut(r.Name, "/")
	if !found {
		return ""
	}
	return owner
}

// Event represents a single public activity event from the GitHub events
// API. Events are immutable once decoded.
type Event struct {
	ID        int64      `json:"id"`
	Type      string     `json:"type"`
	Actor     Actor      `json:"actor"`
	Repo      Repository `json:"repo"`
	CreatedAt time.Time  `json:"created_at"`
}
