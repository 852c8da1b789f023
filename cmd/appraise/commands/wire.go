package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FranksOps/appraise/internal/aggregate"
	"github.com/FranksOps/appraise/internal/appraisal"
	"github.com/FranksOps/appraise/internal/audit"
	"github.com/FranksOps/appraise/internal/config"
	"github.com/FranksOps/appraise/internal/extract"
	"github.com/FranksOps/appraise/internal/fingerprint"
	"github.com/FranksOps/appraise/internal/llm"
	"github.com/FranksOps/appraise/internal/scraper"
	"github.com/FranksOps/appraise/internal/source"
	"github.com/FranksOps/appraise/internal/telemetry"
	"github.com/FranksOps/appraise/pkg/proxy"
	"github.com/FranksOps/appraise/pkg/ratelimit"
	"github.com/FranksOps/appraise/pkg/useragent"
	"github.com/go-resty/resty/v2"
)

const tracerName = "github.com/FranksOps/appraise"

// deps is everything a command needs to answer queries.
type deps struct {
	recorder   *audit.Recorder
	aggregator *aggregate.Aggregator
	estimator  *appraisal.Estimator
	identifier *appraisal.Identifier
}

func (d *deps) Close() error {
	return d.recorder.Close()
}

func newDeps(ctx context.Context, cfg config.Config, logger *slog.Logger) (*deps, error) {
	backend, err := audit.Open(ctx, cfg.Audit.Driver, cfg.Audit.DSN)
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	recorder := audit.NewRecorder(backend, logger)

	fetcher, err := newFetcher(cfg, recorder, logger)
	if err != nil {
		_ = recorder.Close()
		return nil, err
	}

	ebayClient := resty.New()
	telemetry.InstrumentResty(ebayClient, tracerName)
	recorder.InstrumentResty(ebayClient, "eBay")
	ebay := source.NewEbay(source.EbayConfig{
		Token:         cfg.Ebay.Token,
		MarketplaceID: cfg.Ebay.MarketplaceID,
		BaseURL:       cfg.Ebay.BaseURL,
		Logger:        logger,
	}, ebayClient)
	if cfg.Ebay.Token == "" {
		logger.Debug("no eBay token configured; eBay answers link-only")
	}

	d := &deps{
		recorder: recorder,
		aggregator: aggregate.New(newSources(cfg, ebay, fetcher), aggregate.Options{
			SourceTimeout: cfg.SourceTimeout.Std(),
			Logger:        logger,
		}),
	}

	if cfg.LLM.APIKey != "" {
		d.estimator = appraisal.NewEstimator(newLLM(cfg, cfg.LLM.APIKey), logger)
	} else {
		logger.Debug("no OpenAI key configured; ai-pricing disabled")
	}
	if key := cfg.VisionKey(); key != "" {
		d.identifier = appraisal.NewIdentifier(newLLM(cfg, key), logger)
	} else {
		logger.Debug("no vision key configured; vision disabled")
	}
	return d, nil
}

func newFetcher(cfg config.Config, recorder *audit.Recorder, logger *slog.Logger) (*scraper.Fetcher, error) {
	profile, err := fingerprint.ParseProfile(cfg.Fetch.TLSProfile)
	if err != nil {
		return nil, err
	}

	var proxies *proxy.Pool
	if cfg.Fetch.ProxiesFile != "" {
		proxies = proxy.NewPool(proxy.Config{})
		if err := proxies.LoadFile(cfg.Fetch.ProxiesFile); err != nil {
			return nil, fmt.Errorf("load proxies: %w", err)
		}
		logger.Info("loaded proxies", "count", proxies.Len())
	}

	return scraper.New(scraper.Config{
		Timeout:      cfg.Fetch.Timeout.Std(),
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		Fingerprint:  profile,
		UAPool:       useragent.NewPool(cfg.Fetch.UserAgents),
		ProxyPool:    proxies,
		Limiter:      ratelimit.NewLimiter(cfg.Fetch.RequestsPerSecond, cfg.Fetch.Burst, cfg.Fetch.Jitter),
		Recorder:     recorder,
		Logger:       logger,
	})
}

func newLLM(cfg config.Config, key string) *llm.OpenAI {
	client := resty.New()
	telemetry.InstrumentResty(client, tracerName)
	return llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:  key,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout.Std(),
	}, client)
}

func siteOptions(s config.Site) source.SiteOptions {
	return source.SiteOptions{
		BaseURL:   s.BaseURL,
		Plausible: extract.Range{Min: s.MinPrice, Max: s.MaxPrice},
	}
}

// newSources returns the adapters in response order: the structured API
// first, then the built-in sites, then configured extras.
func newSources(cfg config.Config, ebay source.Source, f source.Fetcher) []source.Source {
	sources := []source.Source{ebay}

	builtins := []struct {
		key string
		new func(source.Fetcher, source.SiteOptions) *source.Page
	}{
		{config.SiteHeritage, source.Heritage},
		{config.SiteLiveAuctioneers, source.LiveAuctioneers},
		{config.SiteWorthPoint, source.WorthPoint},
		{config.SiteKovels, source.Kovels},
	}
	for _, b := range builtins {
		site := cfg.Sites[b.key]
		if site.Disabled {
			continue
		}
		sources = append(sources, b.new(f, siteOptions(site)))
	}

	for _, x := range cfg.ExtraSources {
		sources = append(sources, source.Generic(f, source.GenericSpec{
			Name:      x.Name,
			URL:       x.URL,
			Plausible: extract.Range{Min: x.MinPrice, Max: x.MaxPrice},
		}))
	}
	return sources
}
