package fetch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostPacer enforces a minimum interval between outbound requests to the
// same host. One instance is shared by every fetch task; the internal map
// is guarded by mu, and the per-host limiters serialize waiters themselves,
// so concurrent fetches to one host can never bypass the interval.
type HostPacer struct {
	mu       sync.Mutex
	interval time.Duration
	hosts    map[string]*rate.Limiter
}

// NewHostPacer creates a pacer with the given minimum inter-request
// interval. A non-positive interval disables pacing.
func NewHostPacer(interval time.Duration) *HostPacer {
	return &HostPacer{
		interval: interval,
		hosts:    make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to host is allowed, or ctx is done.
func (p *HostPacer) Wait(ctx context.Context, host string) error {
	if p.interval <= 0 {
		return nil
	}
	return p.limiter(host).Wait(ctx)
}

func (p *HostPacer) limiter(host string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.hosts[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(p.interval), 1)
		p.hosts[host] = l
	}
	return l
}
