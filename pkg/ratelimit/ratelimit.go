// Package ratelimit paces outbound requests per host so concurrent requests
// for different queries do not hammer the same marketplace.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per host. It is safe for concurrent use.
type Limiter struct {
	rps    float64
	burst  int
	jitter float64 // 0.0 to 1.0

	mu    sync.Mutex
	hosts map[string]*rate.Limiter
}

// NewLimiter creates a limiter allowing rps requests per second per host
// with the given burst. Jitter (0.0 to 1.0) adds a random extra delay of up
// to jitter times the interval after each wait. rps <= 0 disables limiting.
func NewLimiter(rps float64, burst int, jitter float64) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}
	return &Limiter{
		rps:    rps,
		burst:  burst,
		jitter: jitter,
		hosts:  make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to host may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	if l == nil || l.rps <= 0 {
		return nil
	}

	if err := l.bucket(host).Wait(ctx); err != nil {
		return err
	}

	if l.jitter > 0 {
		interval := time.Duration(float64(time.Second) / l.rps)
		extra := time.Duration(rand.Float64() * l.jitter * float64(interval))
		if extra > 0 {
			t := time.NewTimer(extra)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func (l *Limiter) bucket(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.hosts[host]
	if !ok {
		b = rate.NewLimiter(rate.Limit(l.rps), l.burst)
		l.hosts[host] = b
	}
	return b
}
