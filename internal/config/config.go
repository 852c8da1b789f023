// Package config loads appraise settings from JSON5 files, the environment
// and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/FranksOps/appraise/internal/audit"
	"github.com/FranksOps/appraise/internal/fingerprint"
	"github.com/FranksOps/appraise/internal/logging"
	"github.com/FranksOps/appraise/internal/source"
	"github.com/FranksOps/appraise/internal/telemetry"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/titanous/json5"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "appraise.json5"

// Duration decodes from a Go duration string ("10s") or a number of
// seconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"'`)
	if s == "" || s == "null" {
		return nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type Log struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type Fetch struct {
	TLSProfile        string   `json:"tlsProfile"`
	UserAgents        []string `json:"userAgents"`
	ProxiesFile       string   `json:"proxiesFile"`
	RequestsPerSecond float64  `json:"requestsPerSecond"`
	Burst             int      `json:"burst"`
	// Jitter is the fraction of the pacing interval added at random.
	Jitter       float64  `json:"jitter"`
	Timeout      Duration `json:"timeout"`
	MaxBodyBytes int64    `json:"maxBodyBytes"`
}

type Ebay struct {
	Token         string `json:"token"`
	MarketplaceID string `json:"marketplaceId"`
	BaseURL       string `json:"baseUrl"`
}

type LLM struct {
	APIKey string `json:"apiKey"`
	// VisionAPIKey is used for image identification; empty falls back to
	// APIKey.
	VisionAPIKey string   `json:"visionApiKey"`
	BaseURL      string   `json:"baseUrl"`
	Model        string   `json:"model"`
	Timeout      Duration `json:"timeout"`
}

// Site overrides one built-in page adapter.
type Site struct {
	BaseURL  string  `json:"baseUrl"`
	MinPrice float64 `json:"minPrice"`
	MaxPrice float64 `json:"maxPrice"`
	Disabled bool    `json:"disabled"`
}

// Extra is a configured generic search page.
type Extra struct {
	Name     string  `json:"name"`
	URL      string  `json:"url"`
	MinPrice float64 `json:"minPrice"`
	MaxPrice float64 `json:"maxPrice"`
}

type Audit struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// Config is the full application configuration.
type Config struct {
	Listen        string   `json:"listen"`
	MetricsListen string   `json:"metricsListen"`
	Log           Log      `json:"log"`
	SourceTimeout Duration `json:"sourceTimeout"`
	Fetch         Fetch    `json:"fetch"`
	Ebay          Ebay     `json:"ebay"`
	LLM           LLM      `json:"llm"`
	// Sites is keyed by heritage, liveauctioneers, worthpoint or kovels.
	Sites        map[string]Site  `json:"sites"`
	ExtraSources []Extra          `json:"extraSources"`
	Audit        Audit            `json:"audit"`
	Telemetry    telemetry.Config `json:"telemetry"`
}

// Site names accepted in Config.Sites.
const (
	SiteHeritage        = "heritage"
	SiteLiveAuctioneers = "liveauctioneers"
	SiteWorthPoint      = "worthpoint"
	SiteKovels          = "kovels"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:        ":8888",
		Log:           Log{Level: "info", Format: "text"},
		SourceTimeout: Duration(10 * time.Second),
		Fetch: Fetch{
			TLSProfile:   string(fingerprint.ProfileChrome),
			Timeout:      Duration(15 * time.Second),
			MaxBodyBytes: 4 << 20,
		},
		Ebay: Ebay{MarketplaceID: "EBAY_US"},
		LLM: LLM{
			Model:   "gpt-4o",
			Timeout: Duration(60 * time.Second),
		},
	}
}

// ReadFile reads name and merges name's ".local" sibling over it, e.g.
// appraise.json5 then appraise.local.json5. It returns os.ErrNotExist when
// neither file exists.
func ReadFile(name string) (Config, error) {
	var out Config
	found := false

	data, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(data) > 0 {
		if err := json5.Unmarshal(data, &out); err != nil {
			return out, fmt.Errorf("parse %s: %w", name, err)
		}
		found = true
	}

	local := localName(name)
	data, err = os.ReadFile(local)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(data) > 0 {
		var override Config
		if err := json5.Unmarshal(data, &override); err != nil {
			return out, fmt.Errorf("parse %s: %w", local, err)
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, fmt.Errorf("merge %s: %w", local, err)
		}
		found = true
	}

	if !found {
		return out, os.ErrNotExist
	}
	return out, nil
}

func localName(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}

// Load builds the effective configuration: defaults, then the file at
// path (DefaultFile when empty; a missing default file is not an error),
// then environment variables, then any flags set on fs. fs may be nil.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	fileCfg, err := ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
			return cfg, fmt.Errorf("merge config: %w", err)
		}
	}

	if err := overlay(&cfg, fs); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

type binding struct {
	key  string
	env  []string
	flag string
	set  func(*Config, string) error
}

func setString(f func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*f(c) = v
		return nil
	}
}

func setDuration(f func(*Config) *Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		return f(c).UnmarshalJSON([]byte(v))
	}
}

func setFloat(f func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*f(c) = n
		return nil
	}
}

var bindings = []binding{
	{"listen", []string{"APPRAISE_LISTEN"}, "listen", setString(func(c *Config) *string { return &c.Listen })},
	{"metrics_listen", []string{"APPRAISE_METRICS_LISTEN"}, "metrics-listen", setString(func(c *Config) *string { return &c.MetricsListen })},
	{"log_level", []string{"APPRAISE_LOG_LEVEL"}, "log-level", setString(func(c *Config) *string { return &c.Log.Level })},
	{"log_format", []string{"APPRAISE_LOG_FORMAT"}, "log-format", setString(func(c *Config) *string { return &c.Log.Format })},
	{"source_timeout", []string{"APPRAISE_SOURCE_TIMEOUT"}, "source-timeout", setDuration(func(c *Config) *Duration { return &c.SourceTimeout })},
	{"tls_profile", []string{"APPRAISE_TLS_PROFILE"}, "tls-profile", setString(func(c *Config) *string { return &c.Fetch.TLSProfile })},
	{"proxies_file", []string{"APPRAISE_PROXIES_FILE"}, "proxies", setString(func(c *Config) *string { return &c.Fetch.ProxiesFile })},
	{"rps", []string{"APPRAISE_RPS"}, "rps", setFloat(func(c *Config) *float64 { return &c.Fetch.RequestsPerSecond })},
	{"ebay_token", []string{"EBAY_OAUTH_TOKEN", "APPRAISE_EBAY_TOKEN"}, "", setString(func(c *Config) *string { return &c.Ebay.Token })},
	{"ebay_marketplace", []string{"EBAY_MARKETPLACE_ID"}, "", setString(func(c *Config) *string { return &c.Ebay.MarketplaceID })},
	{"openai_key", []string{"OPENAI_API_KEY"}, "", setString(func(c *Config) *string { return &c.LLM.APIKey })},
	{"vision_key", []string{"VISION_API_KEY"}, "", setString(func(c *Config) *string { return &c.LLM.VisionAPIKey })},
	{"audit_driver", []string{"APPRAISE_AUDIT_DRIVER"}, "audit-driver", setString(func(c *Config) *string { return &c.Audit.Driver })},
	{"audit_dsn", []string{"APPRAISE_AUDIT_DSN"}, "audit-dsn", setString(func(c *Config) *string { return &c.Audit.DSN })},
	{"otlp_endpoint", []string{"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "APPRAISE_OTLP_ENDPOINT"}, "", setString(func(c *Config) *string { return &c.Telemetry.Endpoint })},
}

// overlay applies environment variables and changed flags through viper.
func overlay(cfg *Config, fs *pflag.FlagSet) error {
	v := viper.New()
	for _, b := range bindings {
		if err := v.BindEnv(append([]string{b.key}, b.env...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", b.key, err)
		}
		if b.flag == "" || fs == nil {
			continue
		}
		if f := fs.Lookup(b.flag); f != nil && f.Changed {
			if err := v.BindPFlag(b.key, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", b.flag, err)
			}
		}
	}

	for _, b := range bindings {
		if !v.IsSet(b.key) {
			continue
		}
		val := strings.TrimSpace(v.GetString(b.key))
		if val == "" {
			continue
		}
		if err := b.set(cfg, val); err != nil {
			return fmt.Errorf("%s: %w", b.key, err)
		}
	}
	return nil
}

// RegisterFlags adds the overridable settings to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("listen", "", "HTTP listen address")
	fs.String("metrics-listen", "", "separate listen address for /metrics (default: served on the API listener)")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("log-format", "", "log format: text, json or pretty")
	fs.Duration("source-timeout", 0, "deadline for each source adapter")
	fs.String("tls-profile", "", "TLS fingerprint for page fetches: chrome, firefox, safari, go, random, cfbypass")
	fs.String("proxies", "", "file with one proxy URL per line")
	fs.Float64("rps", 0, "per-host request rate for page fetches (0 disables pacing)")
	fs.String("audit-driver", "", "fetch audit store: sqlite, postgres, json")
	fs.String("audit-dsn", "", "fetch audit store DSN or file path")
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	var errs []error

	if _, err := logging.New(io.Discard, c.Log.Level, c.Log.Format); err != nil {
		errs = append(errs, err)
	}
	if _, err := fingerprint.ParseProfile(c.Fetch.TLSProfile); err != nil {
		errs = append(errs, err)
	}
	if c.SourceTimeout.Std() <= 0 {
		errs = append(errs, errors.New("sourceTimeout must be positive"))
	}
	if c.Fetch.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("fetch.requestsPerSecond must not be negative"))
	}
	switch strings.ToLower(c.Audit.Driver) {
	case audit.DriverNone, "none", audit.DriverSQLite, audit.DriverPostgres, "pg", audit.DriverJSON, "ndjson", "jsonl":
	default:
		errs = append(errs, fmt.Errorf("unknown audit driver %q", c.Audit.Driver))
	}
	for name := range c.Sites {
		switch name {
		case SiteHeritage, SiteLiveAuctioneers, SiteWorthPoint, SiteKovels:
		default:
			errs = append(errs, fmt.Errorf("unknown site %q", name))
		}
	}
	for i, x := range c.ExtraSources {
		if x.Name == "" {
			errs = append(errs, fmt.Errorf("extraSources[%d]: name is required", i))
		}
		if !strings.Contains(x.URL, source.QueryPlaceholder) {
			errs = append(errs, fmt.Errorf("extraSources[%d]: url must contain %s", i, source.QueryPlaceholder))
		}
	}
	return errors.Join(errs...)
}

// VisionKey returns the key used for image identification.
func (c Config) VisionKey() string {
	if c.LLM.VisionAPIKey != "" {
		return c.LLM.VisionAPIKey
	}
	return c.LLM.APIKey
}
