package scraper

import (
	"sort"

	"github.com/jonathan/smartapply/internal/config"
	"github.com/jonathan/smartapply/internal/fetch"
	"github.com/jonathan/smartapply/internal/ingestion"
	"github.com/jonathan/smartapply/internal/observability"
	"go.uber.org/zap"
)

// BaseURLs overrides the listing root of a source, keyed by source name.
type BaseURLs map[string]string

// NewExtractor returns the extractor for a source name.
func NewExtractor(name, baseURL string) (ListingExtractor, bool) {
	switch name {
	case config.SourceGoZambia:
		return NewGoZambia(baseURL), true
	case config.SourceGreatZambiaJobs:
		return NewGreatZambiaJobs(baseURL), true
	default:
		return nil, false
	}
}

// FromConfig builds a Scraper for every enabled source, ordered by name.
func FromConfig(cfg *config.Config, urls BaseURLs, logger *zap.Logger, metrics *observability.Metrics) []*Scraper {
	logger = observability.OrNop(logger)
	fetchOpts := fetch.DefaultOptions()
	fetchOpts.Delay = cfg.Scraper.Delay
	fetchOpts.Timeout = cfg.Scraper.Timeout
	fetchOpts.UserAgent = cfg.Scraper.UserAgent
	fetchOpts.UseBrowser = cfg.Scraper.UseBrowser

	normalizer := ingestion.NewNormalizer(cfg.Text.MaxEmbedLength, cfg.Text.MaxDisplayLength)

	enabled := cfg.EnabledSources()
	names := make([]string, 0, len(enabled))
	for name := range enabled {
		names = append(names, name)
	}
	sort.Strings(names)

	scrapers := make([]*Scraper, 0, len(names))
	for _, name := range names {
		extractor, ok := NewExtractor(name, urls[name])
		if !ok {
			logger.Warn("no extractor for source", zap.String("source", name))
			continue
		}
		src := enabled[name]
		scrapers = append(scrapers, New(extractor, Options{
			MaxPages:     src.MaxPages,
			FetchDetails: src.FetchDetails,
			Normalizer:   normalizer,
			Fetch:        fetchOpts,
			Logger:       logger,
			Metrics:      metrics,
		}))
	}
	return scrapers
}
