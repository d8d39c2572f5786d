package scraper

import (
	"context"
	"fmt"
	"sort"

	"github.com/jonathan/smartapply/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SourceResult is the outcome of one source. Jobs may be non-empty even
// when Err is set.
type SourceResult struct {
	Source string
	Jobs   []RawJob
	Err    error
}

// Result is the outcome of a multi-source scrape.
type Result struct {
	// Jobs holds the merged listings in source order.
	Jobs    []RawJob
	Sources []SourceResult
}

// CountBySource returns the number of listings each source produced.
func (r *Result) CountBySource() map[string]int {
	counts := make(map[string]int, len(r.Sources))
	for _, s := range r.Sources {
		counts[s.Source] = len(s.Jobs)
	}
	return counts
}

// Errors returns the error message of every failed source.
func (r *Result) Errors() map[string]string {
	errs := make(map[string]string)
	for _, s := range r.Sources {
		if s.Err != nil {
			errs[s.Source] = s.Err.Error()
		}
	}
	return errs
}

// ScrapeAll runs every scraper concurrently. maxPages overrides the page
// limit per source name; a missing entry uses the scraper's own limit and
// a non-positive entry skips the source. A failing or panicking source
// never affects the others.
func ScrapeAll(ctx context.Context, scrapers []*Scraper, maxPages map[string]int, logger *zap.Logger, metrics *observability.Metrics) *Result {
	logger = observability.OrNop(logger)
	results := make([]SourceResult, len(scrapers))

	var g errgroup.Group
	for i, s := range scrapers {
		pages := s.DefaultMaxPages()
		if override, ok := maxPages[s.Name()]; ok {
			if override <= 0 {
				logger.Info("source skipped", zap.String("source", s.Name()))
				results[i] = SourceResult{Source: s.Name()}
				continue
			}
			pages = override
		}

		g.Go(func() error {
			results[i] = runSource(ctx, s, pages, logger)
			if results[i].Err != nil && metrics != nil {
				metrics.SourceFailures.WithLabelValues(s.Name()).Inc()
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(results, func(a, b int) bool { return results[a].Source < results[b].Source })

	res := &Result{Sources: results}
	for _, r := range results {
		res.Jobs = append(res.Jobs, r.Jobs...)
	}
	return res
}

func runSource(ctx context.Context, s *Scraper, pages int, logger *zap.Logger) (result SourceResult) {
	result.Source = s.Name()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("source panicked", zap.String("source", s.Name()), zap.Any("panic", r))
			result.Err = &ScrapeError{Source: s.Name(), Message: fmt.Sprintf("panic: %v", r)}
		}
	}()

	jobs, err := s.Run(ctx, pages)
	result.Jobs = jobs
	if err != nil {
		logger.Warn("source failed", zap.String("source", s.Name()),
			zap.Int("listings", len(jobs)), zap.Error(err))
		result.Err = &ScrapeError{Source: s.Name(), Message: "scrape incomplete", Cause: err}
	}
	return result
}
