package analysis

import (
	"sort"
	"strings"

	"github.com/devtrack/github-activity-tracker/internal/github"
)

// topActivityCount caps how many ranked activity types each repository
// summary carries.
const topActivityCount = 3

// Analyze groups events by repository and builds a per-repository summary
// of the most frequent activity types plus an ownership flag. It is a pure
// function: no I/O, inputs are never mutated, and the same input always
// produces the same report.
//
// Repositories appear in the order they are first seen in events. Within a
// repository, activity types rank by descending count; ties keep the order
// the types were first seen.
func Analyze(events []github.Event, username string) UserActivityReport {
	groups := groupByRepository(events)

	repositories := make([]RepositoryActivity, 0, len(groups))
	for _, group := range groups {
		repositories = append(repositories, RepositoryActivity{
			RepositoryName:   group.name,
			IsOwner:          isOwner(group.events[0].Repo, username),
			TopActivityTypes: topActivityTypes(group.events, topActivityCount),
		})
	}

	return UserActivityReport{
		Username:          username,
		Repositories:      repositories,
		TotalRepositories: len(repositories),
		TotalEvents:       len(events),
	}
}

// repositoryGroup collects the events of one repository, keyed by its full
// "owner/name" form.
type repositoryGroup struct {
	name   string
	events []github.Event
}

// groupByRepository buckets events per repository, preserving first-seen
// repository order.
func groupByRepository(events []github.Event) []repositoryGroup {
	index := make(map[string]int)
	groups := make([]repositoryGroup, 0)

	for _, event := range events {
		name := event.Repo.Name
		i, seen := index[name]
		if !seen {
			i = len(groups)
			index[name] = i
			groups = append(groups, repositoryGroup{name: name})
		}
		groups[i].events = append(groups[i].events, event)
	}

	return groups
}

// topActivityTypes ranks the activity types in events by occurrence count
// and returns at most n buckets. The sort is stable so equal counts keep
// first-seen order.
func topActivityTypes(events []github.Event, n int) []ActivityType {
	counts := make(map[string]int)
	ranked := make([]ActivityType, 0)

	for _, event := range events {
		if _, seen := counts[event.Type]; !seen {
			ranked = append(ranked, ActivityType{Type: event.Type})
		}
		counts[event.Type]++
	}
	for i := range ranked {
		ranked[i].Count = counts[ranked[i].Type]
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// isOwner reports whether username owns the repository, comparing the
// owner prefix of the repository name case-insensitively.
func isOwner(repo github.Repository, username string) bool {
	return strings.EqualFold(repo.Owner(), username)
}
