package review

import (
	"context"
	"time"

	"wafiPortal/internal/querycache"
	"wafiPortal/internal/submission"
)

// StatsPageSize is how many submissions the dashboard pulls to count.
const StatsPageSize = 1000

const recentCount = 5

// StatusCount is the number of submissions in one status.
type StatusCount struct {
	Status submission.Status
	Count  int
}

// Stats summarises submissions for the dashboard.
type Stats struct {
	Total    int
	Today    int
	LastWeek int
	ByStatus []StatusCount
	Recent   []submission.ListItem
}

// Count returns the number of submissions in status s.
func (s Stats) Count(status submission.Status) int {
	for _, c := range s.ByStatus {
		if c.Status == status {
			return c.Count
		}
	}
	return 0
}

// ComputeStats counts items relative to now. items are expected newest first.
func ComputeStats(items []submission.ListItem, now time.Time) Stats {
	counts := make(map[submission.Status]int, len(submission.Statuses))
	y, m, d := now.Date()
	weekAgo := now.AddDate(0, 0, -7)

	stats := Stats{Total: len(items)}
	for _, it := range items {
		counts[it.Status.Normalize()]++
		created := it.CreatedAt.In(now.Location())
		if cy, cm, cd := created.Date(); cy == y && cm == m && cd == d {
			stats.Today++
		}
		if !created.Before(weekAgo) {
			stats.LastWeek++
		}
	}
	for _, s := range submission.Statuses {
		stats.ByStatus = append(stats.ByStatus, StatusCount{Status: s, Count: counts[s]})
	}
	n := min(recentCount, len(items))
	stats.Recent = append([]submission.ListItem(nil), items[:n]...)
	return stats
}

// StatsFilter is the query used to load dashboard statistics.
func StatsFilter() Filter {
	return Filter{Page: DefaultPage, PageSize: StatsPageSize, SortBy: DefaultSortBy, SortDescending: true}
}

// LoadStats fetches up to StatsPageSize submissions and counts them. The
// fetch is cached under the list prefix, so status updates refresh it too.
func LoadStats(ctx context.Context, lister Lister, cache *querycache.Cache, now time.Time) (Stats, error) {
	f := StatsFilter()
	res, err := querycache.Fetch(ctx, cache, f.CacheKey(), func(ctx context.Context) (*submission.PaginatedResult[submission.ListItem], error) {
		return lister.ListSubmissions(ctx, f.Values())
	})
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(res.Items, now), nil
}
