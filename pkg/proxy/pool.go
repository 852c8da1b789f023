// Package proxy rotates outbound page fetches across a list of HTTP proxies
// and benches proxies that keep failing.
package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

type entry struct {
	url           *url.URL
	failures      int
	disabledUntil time.Time
}

// Config defines settings for the Proxy Pool.
type Config struct {
	// MaxFailures consecutive failures bench a proxy.
	MaxFailures int
	// Cooldown is how long a benched proxy sits out.
	Cooldown time.Duration
}

// Pool manages a collection of proxies. The zero value is not usable; call
// NewPool.
type Pool struct {
	mu          sync.Mutex
	entries     []*entry
	next        int
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

// NewPool creates a new proxy pool. Zero config values get defaults.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         time.Now,
	}
}

// LoadFile reads proxies from path, one URL per line.
func (p *Pool) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open proxy list: %w", err)
	}
	defer f.Close()
	return p.Load(f)
}

// Load reads proxies from r, one URL per line. Blank lines and lines
// starting with '#' are ignored.
func (p *Pool) Load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	var raw []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raw = append(raw, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read proxy list: %w", err)
	}
	return p.Add(raw...)
}

// Add parses raw proxy URLs and appends them. A missing scheme means http.
func (p *Pool) Add(raw ...string) error {
	parsed := make([]*entry, 0, len(raw))
	for _, r := range raw {
		if !strings.Contains(r, "://") {
			r = "http://" + r
		}
		u, err := url.Parse(r)
		if err != nil {
			return fmt.Errorf("parse proxy %q: %w", r, err)
		}
		if u.Host == "" {
			return fmt.Errorf("parse proxy %q: missing host", r)
		}
		parsed = append(parsed, &entry{url: u})
	}

	p.mu.Lock()
	p.entries = append(p.entries, parsed...)
	p.mu.Unlock()
	return nil
}

// Len returns the number of proxies, benched or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Next returns the next proxy that is not benched, or nil when the pool is
// empty or every proxy is cooling down.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for range p.entries {
		e := p.entries[p.next]
		p.next = (p.next + 1) % len(p.entries)

		if e.disabledUntil.IsZero() {
			return e.url
		}
		if now.After(e.disabledUntil) {
			e.disabledUntil = time.Time{}
			e.failures = 0
			return e.url
		}
	}
	return nil
}

// Report records the outcome of a request made through u. A nil err counts
// as a success and clears the failure streak.
func (p *Pool) Report(u *url.URL, err error) error {
	if u == nil {
		return errors.New("proxy: nil proxy url")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	target := u.String()
	for _, e := range p.entries {
		if e.url.String() != target {
			continue
		}
		if err == nil {
			e.failures = 0
			return nil
		}
		e.failures++
		if e.failures >= p.maxFailures {
			e.disabledUntil = p.now().Add(p.cooldown)
		}
		return nil
	}
	return fmt.Errorf("proxy: %s not in pool", target)
}
