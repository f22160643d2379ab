package searx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"webscout/internal/domain"
)

const maxSearchBodySize = 512 * 1024 // 512KB

// searxngResponse models the relevant portion of the SearXNG JSON response.
type searxngResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Engine  string  `json:"engine"`
		Score   float64 `json:"score"`
	} `json:"results"`
	NumberOfResults int `json:"number_of_results"`
}

// Client queries a SearXNG instance. It performs no retries: transient
// failures surface as ErrBackendUnavailable and retry policy stays with
// the caller.
type Client struct {
	client      *http.Client
	instanceURL string
	// defaultEngines is used when the query carries no engine list.
	defaultEngines []string
	logger         *slog.Logger
}

// NewClient creates a search client backed by a SearXNG instance.
func NewClient(instanceURL string, defaultEngines []string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		client:         &http.Client{Timeout: timeout},
		instanceURL:    strings.TrimRight(instanceURL, "/"),
		defaultEngines: defaultEngines,
		logger:         logger,
	}
}

func (c *Client) Name() string { return "searxng" }

// queryValues serializes q into backend query parameters. It is a pure
// function of the query: the same query always yields the same values.
func (c *Client) queryValues(q domain.SearchQuery) url.Values {
	v := url.Values{}
	v.Set("q", q.Query)
	v.Set("format", "json")
	v.Set("safesearch", strconv.Itoa(q.SafeSearch))
	v.Set("pageno", strconv.Itoa(q.PageNo))

	engines := q.Engines
	if len(engines) == 0 {
		engines = c.defaultEngines
	}
	if len(engines) > 0 {
		v.Set("engines", strings.Join(engines, ","))
	}
	if len(q.Categories) > 0 {
		v.Set("categories", strings.Join(q.Categories, ","))
	}
	if q.Language != "" {
		v.Set("language", q.Language)
	}
	if q.TimeRange != domain.TimeRangeNone {
		v.Set("time_range", q.TimeRange)
	}
	return v
}

func (c *Client) Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.instanceURL+"/search", nil)
	if err != nil {
		return nil, domain.WrapOp("searx.Search", err)
	}
	req.URL.RawQuery = c.queryValues(q).Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, domain.NewDomainError("searx.Search", domain.ErrBackendUnavailable, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBodySize))
	if err != nil {
		return nil, domain.NewDomainError("searx.Search", domain.ErrBackendUnavailable, err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewDomainError("searx.Search", domain.ErrBackendError,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	var searxResp searxngResponse
	if err := json.Unmarshal(body, &searxResp); err != nil {
		return nil, domain.NewDomainError("searx.Search", domain.ErrMalformedResponse, err.Error())
	}

	// Entries missing a title or URL are skipped; duplicates of an already
	// seen URL are dropped so the caller sees each target once, in backend
	// ranking order.
	seen := make(map[string]struct{}, len(searxResp.Results))
	results := make([]domain.SearchResult, 0, len(searxResp.Results))
	for _, r := range searxResp.Results {
		if r.Title == "" || r.URL == "" {
			continue
		}
		if _, dup := seen[r.URL]; dup {
			continue
		}
		seen[r.URL] = struct{}{}
		results = append(results, domain.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
			Engine:  r.Engine,
			Rank:    len(results) + 1,
			Score:   r.Score,
		})
	}

	if len(results) == 0 && len(searxResp.Results) > 0 {
		// Every entry was unusable: treat as a broken backend response
		// rather than an empty result set.
		return nil, domain.NewDomainError("searx.Search", domain.ErrMalformedResponse,
			"no result entry carried both title and url")
	}

	c.logger.Debug("searxng search completed", "query", q.Query, "results", len(results))
	return &domain.SearchResponse{Query: q.Query, Results: results}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
