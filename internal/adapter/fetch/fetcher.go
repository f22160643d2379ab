package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"webscout/internal/domain"
	"webscout/internal/infra/config"
)

// Fetcher retrieves pages over HTTP with connection reuse, redirect and
// body-size caps, bounded retry, and per-host politeness pacing. One
// instance is shared by all concurrent scrape tasks.
type Fetcher struct {
	client   *http.Client
	pacer    *HostPacer
	cfg      config.FetchConfig
	renderer RenderBackend // nil unless a JS renderer is configured
	logger   *slog.Logger
}

// NewFetcher creates a fetcher from cfg. renderer may be nil.
func NewFetcher(cfg config.FetchConfig, renderer RenderBackend, logger *slog.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 5 * 1024 * 1024
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 10
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}

	maxRedirects := cfg.MaxRedirects
	return &Fetcher{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return domain.ErrTooManyRedirects
				}
				return nil
			},
		},
		pacer:    NewHostPacer(cfg.HostInterval),
		cfg:      cfg,
		renderer: renderer,
		logger:   logger,
	}
}

// ValidateURL checks that raw is an absolute HTTP(S) URL and returns it parsed.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, domain.NewDomainError("fetch.ValidateURL", domain.ErrInvalidInput, err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, domain.NewDomainError("fetch.ValidateURL", domain.ErrInvalidInput,
			fmt.Sprintf("scheme must be http or https, got %q", u.Scheme))
	}
	if u.Host == "" {
		return nil, domain.NewDomainError("fetch.ValidateURL", domain.ErrInvalidInput, "missing host")
	}
	return u, nil
}

// Fetch performs the GET described by req. Transient network failures are
// retried up to the configured bound; HTTP error statuses are not (the
// resource is missing or forbidden, retrying cannot help).
func (f *Fetcher) Fetch(ctx context.Context, req domain.FetchRequest) (*domain.FetchOutcome, error) {
	u, err := ValidateURL(req.URL)
	if err != nil {
		return nil, err
	}

	timeout := f.cfg.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := f.pacer.Wait(ctx, u.Host); err != nil {
		return nil, domain.WrapOp("fetch.pace", err)
	}

	if f.renderer != nil {
		return f.fetchRendered(ctx, req.URL)
	}

	var lastErr error
	backoff := f.cfg.RetryBackoff
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, domain.NewDomainError("fetch.Fetch", domain.ErrTimeout, req.URL)
			}
			backoff *= 2
		}

		outcome, err := f.fetchOnce(ctx, req.URL)
		if err == nil {
			return outcome, nil
		}
		if !isTransient(err) {
			return nil, err
		}
		lastErr = err
		f.logger.Debug("fetch retry", "url", req.URL, "attempt", attempt+1, "error", err)
	}
	return nil, domain.NewDomainError("fetch.Fetch", domain.ErrFetchFailed,
		fmt.Sprintf("%s: %v", req.URL, lastErr))
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*domain.FetchOutcome, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, domain.NewDomainError("fetch.Fetch", domain.ErrInvalidInput, err.Error())
	}
	httpReq.Header.Set("User-Agent", randomUserAgent())
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, domain.ErrTooManyRedirects) {
			return nil, domain.NewDomainError("fetch.Fetch", domain.ErrTooManyRedirects, rawURL)
		}
		if ctx.Err() != nil {
			return nil, domain.NewDomainError("fetch.Fetch", domain.ErrTimeout, rawURL)
		}
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused, then fail.
		io.CopyN(io.Discard, resp.Body, 4096)
		return nil, domain.WrapOp("fetch.Fetch", &domain.FetchStatusError{Status: resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", rawURL, err)
	}
	if int64(len(body)) > f.cfg.MaxBodyBytes {
		return nil, domain.NewDomainError("fetch.Fetch", domain.ErrResponseTooLarge,
			fmt.Sprintf("%s exceeds %d bytes", rawURL, f.cfg.MaxBodyBytes))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/html"
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &domain.FetchOutcome{
		Body:        body,
		ContentType: contentType,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
	}, nil
}

// fetchRendered delegates to the configured browser renderer for pages
// that need JavaScript execution.
func (f *Fetcher) fetchRendered(ctx context.Context, rawURL string) (*domain.FetchOutcome, error) {
	html, finalURL, err := f.renderer.Render(ctx, rawURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.NewDomainError("fetch.Render", domain.ErrTimeout, rawURL)
		}
		return nil, domain.NewDomainError("fetch.Render", domain.ErrFetchFailed, err.Error())
	}
	if int64(len(html)) > f.cfg.MaxBodyBytes {
		return nil, domain.NewDomainError("fetch.Render", domain.ErrResponseTooLarge, rawURL)
	}
	return &domain.FetchOutcome{
		Body:        []byte(html),
		ContentType: "text/html",
		FinalURL:    finalURL,
		StatusCode:  http.StatusOK,
	}, nil
}

// isTransient reports whether err is a network-level failure worth retrying.
// Typed domain failures (status errors, caps, redirects) are permanent, and
// so is anything outside the curated transient list.
func isTransient(err error) bool {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return false
	}
	var statusErr *domain.FetchStatusError
	if errors.As(err, &statusErr) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	lower := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"timeout",
		"temporarily unavailable",
		"eof",
	} {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
