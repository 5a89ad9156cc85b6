package review

import (
	"context"
	"net/url"
	"sync"
	"time"

	"wafiPortal/internal/querycache"
	"wafiPortal/internal/submission"
)

// Lister fetches one page of submissions from the backend.
type Lister interface {
	ListSubmissions(ctx context.Context, query url.Values) (*submission.PaginatedResult[submission.ListItem], error)
}

// Page is a loaded list page. An empty page is a valid state.
type Page struct {
	submission.PaginatedResult[submission.ListItem]
	Filter Filter
}

// Empty reports whether the page has nothing to show.
func (p *Page) Empty() bool {
	return len(p.Items) == 0
}

// ListView tracks the admin's current filter and loads the matching page.
type ListView struct {
	lister   Lister
	cache    *querycache.Cache
	debounce *Debouncer

	mu       sync.Mutex
	filter   Filter
	onChange func(Filter)
}

// ListOption configures a ListView.
type ListOption func(*ListView)

// WithFilter starts the view from f instead of the default filter.
func WithFilter(f Filter) ListOption {
	return func(v *ListView) { v.filter = f.Normalize() }
}

// WithClock replaces the clock driving the search debounce.
func WithClock(c Clock) ListOption {
	return func(v *ListView) { v.debounce = NewDebouncer(SearchDebounce, c) }
}

// WithOnChange registers a callback invoked with the new filter after every
// change.
func WithOnChange(fn func(Filter)) ListOption {
	return func(v *ListView) { v.onChange = fn }
}

// NewListView builds a list view. cache may be nil.
func NewListView(lister Lister, cache *querycache.Cache, opts ...ListOption) *ListView {
	v := &ListView{
		lister:   lister,
		cache:    cache,
		filter:   DefaultFilter(),
		debounce: NewDebouncer(SearchDebounce, nil),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Filter returns the current filter.
func (v *ListView) Filter() Filter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

func (v *ListView) update(fn func(*Filter)) {
	v.mu.Lock()
	fn(&v.filter)
	f := v.filter
	cb := v.onChange
	v.mu.Unlock()
	if cb != nil {
		cb(f)
	}
}

// SetSearch applies term once typing has paused for SearchDebounce, and
// returns to page 1.
func (v *ListView) SetSearch(term string) {
	v.debounce.Trigger(func() {
		v.update(func(f *Filter) {
			f.Search = term
			f.Page = DefaultPage
		})
	})
}

// SetStatus filters by status; StatusUnknown means any. Returns to page 1.
func (v *ListView) SetStatus(s submission.Status) {
	v.update(func(f *Filter) {
		f.Status = s.Normalize()
		f.Page = DefaultPage
	})
}

// SetDateRange filters by creation date; zero times clear a bound. Returns to
// page 1.
func (v *ListView) SetDateRange(from, to time.Time) {
	v.update(func(f *Filter) {
		f.FromDate, f.ToDate = from, to
		f.Page = DefaultPage
	})
}

// SetSort changes the ordering. Returns to page 1.
func (v *ListView) SetSort(by string, descending bool) {
	v.update(func(f *Filter) {
		f.SortBy, f.SortDescending = by, descending
		f.Page = DefaultPage
	})
}

// SetPage moves to page p (at least 1).
func (v *ListView) SetPage(p int) {
	if p < 1 {
		p = DefaultPage
	}
	v.update(func(f *Filter) { f.Page = p })
}

// Close cancels a pending debounced search.
func (v *ListView) Close() {
	v.debounce.Stop()
}

// Load fetches the page selected by the current filter, from cache when
// fresh.
func (v *ListView) Load(ctx context.Context) (*Page, error) {
	f := v.Filter().Normalize()
	res, err := querycache.Fetch(ctx, v.cache, f.CacheKey(), func(ctx context.Context) (*submission.PaginatedResult[submission.ListItem], error) {
		return v.lister.ListSubmissions(ctx, f.Values())
	})
	if err != nil {
		return nil, err
	}
	page := &Page{PaginatedResult: *res, Filter: f}
	if page.Items == nil {
		page.Items = []submission.ListItem{}
	}
	return page, nil
}
