package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"webscout/internal/domain"
	"webscout/internal/extract"
	"webscout/internal/infra/tracer"
)

const defaultScrapeCacheTTL = 30 * time.Minute

// PageFetcher retrieves raw pages for scraping.
type PageFetcher interface {
	Fetch(ctx context.Context, req domain.FetchRequest) (*domain.FetchOutcome, error)
}

// ScrapeURLTool fetches a page and extracts its primary content.
type ScrapeURLTool struct {
	fetcher   PageFetcher
	extractor *extract.Extractor
	logger    *slog.Logger
	cache     *resultCache
}

// NewScrapeURLTool creates the scrape_url tool.
func NewScrapeURLTool(fetcher PageFetcher, extractor *extract.Extractor, cacheTTL time.Duration, logger *slog.Logger) *ScrapeURLTool {
	if cacheTTL == 0 {
		cacheTTL = defaultScrapeCacheTTL
	}
	return &ScrapeURLTool{
		fetcher:   fetcher,
		extractor: extractor,
		logger:    logger,
		cache:     newResultCache(cacheTTL),
	}
}

func (t *ScrapeURLTool) Name() string { return "scrape_url" }

func (t *ScrapeURLTool) Description() string {
	return "Fetch a web page and extract its main content, headings, links and metadata"
}

func (t *ScrapeURLTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url": {"type": "string", "description": "Absolute HTTP or HTTPS URL of the page to scrape"},
				"format": {"type": "string", "enum": ["text", "markdown"], "description": "Body rendering: plain text (default) or markdown"}
			},
			"required": ["url"]
		}`),
	}
}

type scrapeURLParams struct {
	URL    string `json:"url"`
	Format string `json:"format,omitempty"`
}

func (t *ScrapeURLTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.scrape_url", t.logger, params,
		func(ctx context.Context, span trace.Span, p scrapeURLParams) (any, error) {
			if err := ValidateAll(
				RequireField("url", p.URL),
				ValidateURL("url", p.URL),
				ValidateEnum("format", p.Format, "text", "markdown"),
			); err != nil {
				return nil, err
			}
			span.SetAttributes(tracer.StringAttr("tool.url", p.URL))

			cacheKey := p.URL + "|" + p.Format
			if cached, ok := t.cache.get(cacheKey); ok {
				t.logger.Debug("scrape cache hit", "url", p.URL)
				span.SetAttributes(tracer.StringAttr("tool.cache", "hit"))
				return cached, nil
			}

			outcome, err := t.fetcher.Fetch(ctx, domain.FetchRequest{URL: p.URL})
			if err != nil {
				return nil, err
			}

			doc, err := t.extractor.Extract(outcome, extract.Options{
				IncludeMarkdown: p.Format == "markdown",
			})
			if err != nil {
				return nil, err
			}
			doc.FetchedAt = time.Now().UTC()
			span.SetAttributes(tracer.IntAttr("tool.words", doc.WordCount))

			result, err := PayloadResult(formatDocument(doc, p.Format), doc)
			if err != nil {
				return nil, err
			}

			t.cache.put(cacheKey, result)
			t.logger.Debug("scrape completed", "url", p.URL, "words", doc.WordCount)
			return result, nil
		},
	)
}

// formatDocument renders the extracted document as text for LLM consumption.
func formatDocument(doc *domain.ExtractedDocument, format string) string {
	var sb strings.Builder

	if doc.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", doc.Title)
	}
	fmt.Fprintf(&sb, "URL: %s\n", doc.URL)
	if doc.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", doc.Description)
	}
	if doc.WordCount > 0 {
		fmt.Fprintf(&sb, "Words: %d (~%d min read)\n", doc.WordCount, doc.ReadingTimeMins)
	}
	sb.WriteByte('\n')

	body := doc.Body
	if format == "markdown" && doc.BodyMarkdown != "" {
		body = doc.BodyMarkdown
	}
	if body != "" {
		sb.WriteString(body)
	} else if len(doc.Structured) > 0 {
		sb.WriteString("No article content found; page metadata:\n")
		keys := make([]string, 0, len(doc.Structured))
		for k := range doc.Structured {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %s\n", k, doc.Structured[k])
		}
	} else {
		sb.WriteString("No content could be extracted from this page.")
	}
	return sb.String()
}
