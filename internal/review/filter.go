// Package review holds the admin list, detail and dashboard view-models of
// submitted applications.
package review

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"wafiPortal/internal/submission"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 12
	MaxPageSize     = 100
	DefaultSortBy   = "CreatedAt"

	// DateLayout is the date-only encoding of fromDate/toDate.
	DateLayout = "2006-01-02"

	listKeyPrefix   = "submissions:"
	detailKeyPrefix = "submission:"
)

// Filter selects one page of submissions. Zero values mean "unset" and are
// left out of the query.
type Filter struct {
	Status         submission.Status
	Search         string
	FromDate       time.Time
	ToDate         time.Time
	Page           int
	PageSize       int
	SortBy         string
	SortDescending bool
}

// DefaultFilter is the first page, newest first.
func DefaultFilter() Filter {
	return Filter{
		Page:           DefaultPage,
		PageSize:       DefaultPageSize,
		SortBy:         DefaultSortBy,
		SortDescending: true,
	}
}

// Normalize clamps paging to sane bounds.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

// Values encodes f as the backend list query. The direction is only sent
// together with a sort key.
func (f Filter) Values() url.Values {
	q := url.Values{}
	if f.Status.Known() {
		q.Set("status", strconv.Itoa(int(f.Status)))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q.Set("search", s)
	}
	if !f.FromDate.IsZero() {
		q.Set("fromDate", f.FromDate.Format(DateLayout))
	}
	if !f.ToDate.IsZero() {
		q.Set("toDate", f.ToDate.Format(DateLayout))
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(f.PageSize))
	}
	if f.SortBy != "" {
		q.Set("sortBy", f.SortBy)
		q.Set("sortDescending", strconv.FormatBool(f.SortDescending))
	}
	return q
}

// Key is a canonical representation of the filter contents: equal filters
// give equal keys regardless of how they were built.
func (f Filter) Key() string {
	return f.Values().Encode()
}

// CacheKey is the query cache key of the page selected by f.
func (f Filter) CacheKey() string {
	return listKeyPrefix + f.Key()
}

// WithPage returns a copy of f on page p.
func (f Filter) WithPage(p int) Filter {
	f.Page = p
	return f
}

// FilterFromQuery reads a filter from portal query parameters. Malformed
// values are ignored and fall back to the defaults.
func FilterFromQuery(q url.Values) Filter {
	f := DefaultFilter()
	if raw := q.Get("status"); raw != "" {
		if s, err := submission.ParseStatus(raw); err == nil {
			f.Status = s
		}
	}
	f.Search = q.Get("search")
	if t, err := time.Parse(DateLayout, q.Get("fromDate")); err == nil {
		f.FromDate = t
	}
	if t, err := time.Parse(DateLayout, q.Get("toDate")); err == nil {
		f.ToDate = t
	}
	if n, err := strconv.Atoi(q.Get("page")); err == nil {
		f.Page = n
	}
	if n, err := strconv.Atoi(q.Get("pageSize")); err == nil {
		f.PageSize = n
	}
	if s := q.Get("sortBy"); s != "" {
		f.SortBy = s
	}
	if b, err := strconv.ParseBool(q.Get("sortDescending")); err == nil {
		f.SortDescending = b
	}
	return f.Normalize()
}

func detailKey(id string) string {
	return detailKeyPrefix + id
}
