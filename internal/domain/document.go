package domain

import "time"

// Heading is one heading element from the primary content root, in document order.
type Heading struct {
	Level int    `json:"level"` // 1..6
	Text  string `json:"text"`
}

// Link is one anchor from the primary content root with its href resolved
// to an absolute URL. Links are deduplicated by normalized href; the
// first-seen anchor text wins.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// Image is one image from the primary content root with an absolute src.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// ExtractedDocument is the normalized output of content extraction for one
// fetched page. It is built once per fetch and never mutated afterwards.
type ExtractedDocument struct {
	Title        string            `json:"title"`
	URL          string            `json:"url"`           // final post-redirect URL
	CanonicalURL string            `json:"canonical_url,omitempty"`
	Body         string            `json:"body"`          // cleaned, whitespace-normalized text
	BodyMarkdown string            `json:"body_markdown,omitempty"`
	Headings     []Heading         `json:"headings"`
	Links        []Link            `json:"links"`
	Images       []Image           `json:"images"`
	Structured   map[string]string `json:"structured_data,omitempty"`

	// Enrichment restored from page metadata.
	Description string `json:"description,omitempty"`
	Keywords    string `json:"keywords,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
	Author      string `json:"author,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	Language    string `json:"language,omitempty"`

	WordCount       int       `json:"word_count"`
	ReadingTimeMins int       `json:"reading_time_minutes,omitempty"`
	StatusCode      int       `json:"status_code,omitempty"`
	ContentType     string    `json:"content_type,omitempty"`
	FetchedAt       time.Time `json:"fetched_at,omitempty"`
}

// FetchRequest names a page to retrieve. URL must be an absolute HTTP or
// HTTPS URL; Timeout overrides the fetcher default when positive.
type FetchRequest struct {
	URL     string
	Timeout time.Duration
}

// FetchOutcome is the successful result of a fetch: the raw body, the
// declared content type, and the final URL after redirects.
type FetchOutcome struct {
	Body        []byte
	ContentType string
	FinalURL    string
	StatusCode  int
}
