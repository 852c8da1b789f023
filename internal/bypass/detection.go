// Package bypass recognizes bot-protection challenge pages so they are
// reported as blocked fetches rather than parsed as empty search results.
package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Wall describes one bot-protection vendor's observable signatures. A
// response matches when its status is one of Statuses and any header or
// body signature is present.
type Wall struct {
	Name     string
	Statuses []int
	// ServerContains is matched case-insensitively against the Server header.
	ServerContains string
	// Headers whose mere presence identifies the vendor.
	Headers []string
	// Body substrings identifying the vendor's challenge page.
	Body [][]byte
}

func (w Wall) matches(status int, h http.Header, body []byte) bool {
	statusOK := false
	for _, s := range w.Statuses {
		if s == status {
			statusOK = true
			break
		}
	}
	if !statusOK {
		return false
	}

	if w.ServerContains != "" && strings.Contains(strings.ToLower(h.Get("Server")), w.ServerContains) {
		return true
	}
	for _, name := range w.Headers {
		if h.Get(name) != "" {
			return true
		}
	}
	for _, sig := range w.Body {
		if bytes.Contains(body, sig) {
			return true
		}
	}
	return false
}

// DefaultWalls returns the vendors seen in front of auction and
// marketplace sites, in detection order.
func DefaultWalls() []Wall {
	return []Wall{
		{
			Name:           "Cloudflare",
			Statuses:       []int{http.StatusForbidden, http.StatusServiceUnavailable},
			ServerContains: "cloudflare",
			Body: [][]byte{
				[]byte("cf-browser-verification"),
				[]byte("cloudflare-nginx"),
				[]byte("cf-turnstile"),
				[]byte("Attention Required! | Cloudflare"),
				[]byte("<title>Just a moment...</title>"),
			},
		},
		{
			Name:           "Akamai",
			Statuses:       []int{http.StatusForbidden},
			ServerContains: "akamai",
			Body:           [][]byte{[]byte("Reference #18.")},
		},
		{
			Name:           "DataDome",
			Statuses:       []int{http.StatusForbidden},
			ServerContains: "datadome",
			Headers:        []string{"X-DataDome", "X-DataDome-Response"},
			Body:           [][]byte{[]byte("geo.captcha-delivery.com"), []byte("datadome")},
		},
		{
			Name:     "PerimeterX",
			Statuses: []int{http.StatusForbidden},
			Headers:  []string{"X-Px-Captcha"},
			Body: [][]byte{
				[]byte("client.perimeterx.net"),
				[]byte("px-captcha"),
				[]byte("_pxBlock"),
			},
		},
	}
}

// Detect returns the name of the first wall matching the response, or ""
// when the response looks like a normal page.
func Detect(status int, h http.Header, body []byte, walls []Wall) string {
	for _, w := range walls {
		if w.matches(status, h, body) {
			return w.Name
		}
	}
	return ""
}
