// Package fingerprint builds HTTP transports whose TLS ClientHello looks
// like a mainstream browser instead of Go's crypto/tls.
package fingerprint

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	utls "github.com/refraction-networking/utls"
)

// Profile represents a recognized TLS fingerprint profile.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // standard crypto/tls
	ProfileRandom  Profile = "random" // randomized uTLS profile
	// ProfileCFBypass is crypto/tls tuned to Cloudflare's expectations,
	// with browser headers filled in where the request lacks them.
	ProfileCFBypass Profile = "cfbypass"
)

var helloIDs = map[Profile]utls.ClientHelloID{
	ProfileChrome:  utls.HelloChrome_Auto,
	ProfileFirefox: utls.HelloFirefox_Auto,
	ProfileSafari:  utls.HelloIOS_Auto,
}

// ParseProfile maps a configuration string onto a Profile. Empty means
// ProfileGo.
func ParseProfile(s string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return ProfileGo, nil
	case ProfileGo, ProfileRandom, ProfileCFBypass:
		return p, nil
	}
	if _, ok := helloIDs[p]; ok {
		return p, nil
	}
	return "", fmt.Errorf("unknown tls profile %q", s)
}

// Options configures Transport.
type Options struct {
	Profile Profile
	// Proxy selects a proxy per request. Nil means no proxy.
	Proxy func(*http.Request) (*url.URL, error)
	// InsecureSkipVerify disables certificate checks. Tests only.
	InsecureSkipVerify bool
}

// Transport returns an http.RoundTripper whose TLS handshake mimics the
// configured profile. Browser profiles advertise only http/1.1 in ALPN
// because net/http cannot speak HTTP/2 over a uTLS connection.
func Transport(opts Options) (http.RoundTripper, error) {
	if opts.Profile == "" {
		opts.Profile = ProfileGo
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = opts.Proxy

	switch opts.Profile {
	case ProfileGo:
		if opts.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		return transport, nil
	case ProfileCFBypass:
		// AddCloudFlareByPass swaps in its own TLS config.
		rt := cloudflarebp.AddCloudFlareByPass(transport)
		transport.TLSClientConfig.InsecureSkipVerify = opts.InsecureSkipVerify
		return rt, nil
	}

	id, known := helloIDs[opts.Profile]
	if !known && opts.Profile != ProfileRandom {
		return nil, fmt.Errorf("unknown tls profile %q", opts.Profile)
	}

	dial := transport.DialContext
	transport.ForceAttemptHTTP2 = false
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		raw, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		cfg := &utls.Config{ServerName: host, InsecureSkipVerify: opts.InsecureSkipVerify}

		var conn *utls.UConn
		if opts.Profile == ProfileRandom {
			conn = utls.UClient(raw, cfg, utls.HelloRandomizedNoALPN)
		} else {
			conn, err = presetConn(raw, cfg, id)
			if err != nil {
				_ = raw.Close()
				return nil, err
			}
		}

		if err := conn.HandshakeContext(ctx); err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("utls handshake with %s: %w", host, err)
		}
		return conn, nil
	}

	return transport, nil
}

// presetConn applies the browser's ClientHello with ALPN narrowed to
// http/1.1. The ClientHelloSpec is rebuilt per connection since extensions carry state.
func presetConn(raw net.Conn, cfg *utls.Config, id utls.ClientHelloID) (*utls.UConn, error) {
	spec, err := utls.UTLSIdToSpec(id)
	if err != nil {
		return nil, fmt.Errorf("build %s hello: %w", id.Str(), err)
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}

	conn := utls.UClient(raw, cfg, utls.HelloCustom)
	if err := conn.ApplyPreset(&spec); err != nil {
		return nil, fmt.Errorf("apply %s hello: %w", id.Str(), err)
	}
	return conn, nil
}
