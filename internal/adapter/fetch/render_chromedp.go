package fetch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeDPRenderer renders pages in a headless Chrome instance via the
// DevTools protocol. The browser is launched lazily on first use and
// shared across calls; renders are serialized through a single tab.
type ChromeDPRenderer struct {
	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	timeout       time.Duration
	logger        *slog.Logger
	started       bool
}

// NewChromeDPRenderer creates a renderer with the given per-render timeout.
func NewChromeDPRenderer(timeout time.Duration, logger *slog.Logger) *ChromeDPRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChromeDPRenderer{timeout: timeout, logger: logger}
}

func (r *ChromeDPRenderer) Name() string { return "chromedp" }

// start launches the headless browser. Caller must hold mu.
func (r *ChromeDPRenderer) start() error {
	// Copy default options to avoid mutating the package-level slice.
	opts := make([]chromedp.ExecAllocatorOption, len(chromedp.DefaultExecAllocatorOptions))
	copy(opts, chromedp.DefaultExecAllocatorOptions[:])
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1280, 720),
	)

	var allocCtx context.Context
	allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	r.browserCtx, r.browserCancel = chromedp.NewContext(allocCtx)

	if err := chromedp.Run(r.browserCtx); err != nil {
		r.browserCancel()
		r.allocCancel()
		return err
	}

	r.started = true
	r.logger.Info("chromedp renderer started")
	return nil
}

func (r *ChromeDPRenderer) Render(ctx context.Context, url string) (string, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		if err := r.start(); err != nil {
			return "", "", err
		}
	}

	tctx, cancel := context.WithTimeout(r.browserCtx, r.timeout)
	defer cancel()

	// Honor cancellation of the caller's context too.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-tctx.Done():
		}
	}()

	var html, location string
	err := chromedp.Run(tctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", "", err
	}
	if location == "" {
		location = url
	}

	r.logger.Debug("page rendered", "url", url, "final_url", location, "bytes", len(html))
	return html, location, nil
}

func (r *ChromeDPRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return nil
	}
	r.browserCancel()
	r.allocCancel()
	r.started = false
	return nil
}
