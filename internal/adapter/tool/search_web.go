package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"webscout/internal/adapter/searx"
	"webscout/internal/domain"
	"webscout/internal/infra/tracer"
)

const (
	defaultSearchCount    = 5
	maxSearchCount        = 20
	defaultSearchCacheTTL = 10 * time.Minute
)

// SearchWebTool performs federated web searches via a pluggable search backend.
type SearchWebTool struct {
	backend searx.Backend
	logger  *slog.Logger
	cache   *resultCache
}

// NewSearchWebTool creates the search_web tool backed by the given backend.
func NewSearchWebTool(backend searx.Backend, cacheTTL time.Duration, logger *slog.Logger) *SearchWebTool {
	if cacheTTL == 0 {
		cacheTTL = defaultSearchCacheTTL
	}
	return &SearchWebTool{
		backend: backend,
		logger:  logger,
		cache:   newResultCache(cacheTTL),
	}
}

func (t *SearchWebTool) Name() string { return "search_web" }

func (t *SearchWebTool) Description() string {
	return "Search the web through a federated search backend and return ranked results"
}

func (t *SearchWebTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "The search query"},
				"engines": {"type": "array", "items": {"type": "string"}, "description": "Search engines to query (optional)"},
				"categories": {"type": "array", "items": {"type": "string"}, "description": "Result categories, e.g. general, news, images (optional)"},
				"language": {"type": "string", "description": "Language tag such as en or de-DE (optional)"},
				"safesearch": {"type": "integer", "minimum": 0, "maximum": 2, "description": "Safe-search level: 0 off, 1 moderate, 2 strict"},
				"time_range": {"type": "string", "enum": ["day", "week", "month", "year"], "description": "Time range filter (optional)"},
				"pageno": {"type": "integer", "minimum": 1, "description": "Result page number (default: 1)"},
				"count": {"type": "integer", "minimum": 1, "maximum": 20, "description": "Number of results (default: 5)"}
			},
			"required": ["query"]
		}`),
	}
}

type searchWebParams struct {
	Query      string   `json:"query"`
	Engines    []string `json:"engines,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Language   string   `json:"language,omitempty"`
	SafeSearch int      `json:"safesearch,omitempty"`
	TimeRange  string   `json:"time_range,omitempty"`
	PageNo     int      `json:"pageno,omitempty"`
	Count      int      `json:"count,omitempty"`
}

func (t *SearchWebTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.search_web", t.logger, params,
		func(ctx context.Context, span trace.Span, p searchWebParams) (any, error) {
			if strings.TrimSpace(p.Query) == "" {
				return nil, fmt.Errorf("query must not be empty")
			}
			span.SetAttributes(tracer.StringAttr("tool.query", p.Query))

			if p.Count <= 0 {
				p.Count = defaultSearchCount
			}
			if p.Count > maxSearchCount {
				p.Count = maxSearchCount
			}

			query, err := domain.NewSearchQuery(p.Query,
				domain.WithEngines(p.Engines),
				domain.WithCategories(p.Categories),
				domain.WithLanguage(p.Language),
				domain.WithSafeSearch(p.SafeSearch),
				domain.WithTimeRange(p.TimeRange),
				domain.WithPageNo(p.PageNo),
			)
			if err != nil {
				return nil, err
			}

			cacheKey := fmt.Sprintf("%s|%s|%s|%s|%d|%s|%d|%d",
				query.Query, strings.Join(query.Engines, ","), strings.Join(query.Categories, ","),
				query.Language, query.SafeSearch, query.TimeRange, query.PageNo, p.Count)
			if cached, ok := t.cache.get(cacheKey); ok {
				t.logger.Debug("search cache hit", "query", query.Query)
				span.SetAttributes(tracer.StringAttr("tool.cache", "hit"))
				return cached, nil
			}

			resp, err := t.backend.Search(ctx, query)
			if err != nil {
				return nil, err
			}

			results := resp.Results
			if len(results) > p.Count {
				results = results[:p.Count]
			}
			span.SetAttributes(tracer.IntAttr("tool.results", len(results)))

			payload := domain.SearchResponse{Query: query.Query, Results: results}
			result, err := PayloadResult(formatSearchResults(query.Query, results), payload)
			if err != nil {
				return nil, err
			}

			t.cache.put(cacheKey, result)
			t.logger.Debug("search completed", "query", query.Query, "results", len(results))
			return result, nil
		},
	)
}

// formatSearchResults converts search results to a compact text format for
// LLM consumption.
func formatSearchResults(query string, results []domain.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No search results found for %q.", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Search results for %q:\n\n", query)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n   URL: %s\n   %s\n\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return sb.String()
}
