package domain

import (
	"fmt"
	"strings"
)

// Time range tokens accepted by the search backend.
const (
	TimeRangeNone  = ""
	TimeRangeDay   = "day"
	TimeRangeWeek  = "week"
	TimeRangeMonth = "month"
	TimeRangeYear  = "year"
)

// SafeSearch levels, serialized as their ordinal value.
const (
	SafeSearchOff      = 0
	SafeSearchModerate = 1
	SafeSearchStrict   = 2
)

// SearchQuery describes one federated search request. Construct with
// NewSearchQuery so every query dispatched downstream has been validated.
type SearchQuery struct {
	Query      string
	Engines    []string
	Categories []string
	Language   string
	SafeSearch int
	TimeRange  string
	PageNo     int
}

// NewSearchQuery validates the inputs and returns an immutable query value.
// PageNo defaults to 1 when zero.
func NewSearchQuery(query string, opts ...SearchQueryOption) (SearchQuery, error) {
	q := SearchQuery{
		Query:  strings.TrimSpace(query),
		PageNo: 1,
	}
	for _, opt := range opts {
		opt(&q)
	}
	if err := q.validate(); err != nil {
		return SearchQuery{}, err
	}
	return q, nil
}

// SearchQueryOption customizes a SearchQuery during construction.
type SearchQueryOption func(*SearchQuery)

func WithEngines(engines []string) SearchQueryOption {
	return func(q *SearchQuery) { q.Engines = engines }
}

func WithCategories(categories []string) SearchQueryOption {
	return func(q *SearchQuery) { q.Categories = categories }
}

func WithLanguage(lang string) SearchQueryOption {
	return func(q *SearchQuery) { q.Language = lang }
}

func WithSafeSearch(level int) SearchQueryOption {
	return func(q *SearchQuery) { q.SafeSearch = level }
}

func WithTimeRange(tr string) SearchQueryOption {
	return func(q *SearchQuery) { q.TimeRange = tr }
}

func WithPageNo(n int) SearchQueryOption {
	return func(q *SearchQuery) {
		if n > 0 {
			q.PageNo = n
		}
	}
}

func (q SearchQuery) validate() error {
	if q.Query == "" {
		return NewDomainError("SearchQuery", ErrInvalidInput, "query must not be empty")
	}
	if q.SafeSearch < SafeSearchOff || q.SafeSearch > SafeSearchStrict {
		return NewDomainError("SearchQuery", ErrInvalidInput,
			fmt.Sprintf("safesearch must be 0-2, got %d", q.SafeSearch))
	}
	switch q.TimeRange {
	case TimeRangeNone, TimeRangeDay, TimeRangeWeek, TimeRangeMonth, TimeRangeYear:
	default:
		return NewDomainError("SearchQuery", ErrInvalidInput,
			fmt.Sprintf("invalid time_range %q", q.TimeRange))
	}
	if q.PageNo < 1 {
		return NewDomainError("SearchQuery", ErrInvalidInput,
			fmt.Sprintf("pageno must be >= 1, got %d", q.PageNo))
	}
	return nil
}

// SearchResult is a single entry returned by the search backend.
// Rank reflects the backend's ordering and is 1-based.
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Engine  string  `json:"engine,omitempty"`
	Rank    int     `json:"rank"`
	Score   float64 `json:"score,omitempty"`
}

// SearchResponse is the ordered result list for one query.
// Order is significant: it mirrors the backend's ranking.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}
