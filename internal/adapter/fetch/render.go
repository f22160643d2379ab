package fetch

import "context"

// RenderBackend abstracts a browser-based page renderer for
// JavaScript-heavy sites. Implementations must be safe for concurrent use.
type RenderBackend interface {
	// Render loads url, waits for the document to settle, and returns the
	// rendered HTML together with the final (post-redirect) URL.
	Render(ctx context.Context, url string) (html string, finalURL string, err error)
	// Close releases all browser resources.
	Close() error
	// Name returns the backend identifier (e.g. "chromedp").
	Name() string
}
