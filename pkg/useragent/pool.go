// Package useragent supplies realistic desktop browser identities for
// outbound page fetches. Several marketplaces refuse obvious bot clients.
package useragent

import (
	"net/http"
	"strings"
	"sync/atomic"
)

// DefaultAgents is a set of current desktop browser User-Agents.
var DefaultAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
}

// Identity is the set of headers a browser would send with a navigation.
type Identity struct {
	UserAgent string
	Platform  string // value for Sec-CH-UA-Platform, empty for non-Chromium
}

// Apply writes the identity's headers onto h.
func (id Identity) Apply(h http.Header) {
	h.Set("User-Agent", id.UserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	if id.Platform != "" {
		h.Set("Sec-CH-UA-Platform", id.Platform)
		h.Set("Sec-CH-UA-Mobile", "?0")
	}
}

// Pool hands out identities round-robin. It is safe for concurrent use.
type Pool struct {
	ids     []Identity
	counter atomic.Uint64
}

// NewPool builds a pool from User-Agent strings, falling back to
// DefaultAgents when agents is empty.
func NewPool(agents []string) *Pool {
	if len(agents) == 0 {
		agents = DefaultAgents
	}
	ids := make([]Identity, 0, len(agents))
	for _, ua := range agents {
		ua = strings.TrimSpace(ua)
		if ua == "" {
			continue
		}
		ids = append(ids, Identity{UserAgent: ua, Platform: chromiumPlatform(ua)})
	}
	return &Pool{ids: ids}
}

// Next returns the next identity in round-robin order.
func (p *Pool) Next() Identity {
	if len(p.ids) == 0 {
		return Identity{}
	}
	idx := p.counter.Add(1) - 1
	return p.ids[idx%uint64(len(p.ids))]
}

// Len returns the number of identities in the pool.
func (p *Pool) Len() int {
	return len(p.ids)
}

// chromiumPlatform derives the client-hint platform Chromium browsers send.
// Firefox and Safari do not send client hints.
func chromiumPlatform(ua string) string {
	if !strings.Contains(ua, "Chrome/") {
		return ""
	}
	switch {
	case strings.Contains(ua, "Windows"):
		return `"Windows"`
	case strings.Contains(ua, "Macintosh"):
		return `"macOS"`
	case strings.Contains(ua, "Linux"):
		return `"Linux"`
	}
	return ""
}
