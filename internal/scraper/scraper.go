// Package scraper collects job listings from job-board websites.
//
// Each site is a ListingExtractor strategy. A Scraper drives one
// extractor through its pages, owning a fetch.Client for the duration of
// a run, and ScrapeAll runs every source concurrently with failures
// isolated per source.
package scraper

import (
	"context"
	"errors"

	"github.com/jonathan/smartapply/internal/fetch"
	"github.com/jonathan/smartapply/internal/ingestion"
	"github.com/jonathan/smartapply/internal/observability"
	"go.uber.org/zap"
)

// UnknownCompany is used when a listing names no employer.
const UnknownCompany = "Unknown"

// RawJob is a listing as scraped, before persistence.
type RawJob struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Source      string `json:"source"`
}

// PagePolicy selects how a source paginates.
type PagePolicy int

const (
	// PageCounter requests numbered pages and stops at the first page
	// without listings.
	PageCounter PagePolicy = iota
	// NextLink follows the next-page link found on each page.
	NextLink
)

func (p PagePolicy) String() string {
	if p == NextLink {
		return "next-link"
	}
	return "page-counter"
}

// ListingExtractor knows the markup of one job board.
type ListingExtractor interface {
	// Name is the source identifier stored on every job.
	Name() string
	Policy() PagePolicy
	// PageURL returns the URL of the 1-based listing page. NextLink
	// sources only use page 1.
	PageURL(page int) string
	// ExtractListings returns the well-formed listings of a page and one
	// error per malformed listing.
	ExtractListings(page *Page) ([]RawJob, []error)
	FindNextPage(page *Page) (string, bool)
	// DetailDescription extracts the full description from a detail page.
	DetailDescription(page *Page) (string, bool)
}

// Options configures a Scraper.
type Options struct {
	MaxPages     int
	FetchDetails bool
	Normalizer   ingestion.Normalizer
	Fetch        *fetch.Options
	Logger       *zap.Logger
	Metrics      *observability.Metrics
}

// Scraper runs one ListingExtractor.
type Scraper struct {
	extractor ListingExtractor
	opts      Options
	logger    *zap.Logger
}

// New creates a Scraper for extractor.
func New(extractor ListingExtractor, opts Options) *Scraper {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1
	}
	if opts.Normalizer.MaxDisplayLength == 0 {
		opts.Normalizer = ingestion.DefaultNormalizer()
	}
	logger := observability.OrNop(opts.Logger).With(zap.String("source", extractor.Name()))
	return &Scraper{extractor: extractor, opts: opts, logger: logger}
}

// Name returns the source name.
func (s *Scraper) Name() string {
	return s.extractor.Name()
}

// DefaultMaxPages returns the configured page limit.
func (s *Scraper) DefaultMaxPages() int {
	return s.opts.MaxPages
}

// Run scrapes up to maxPages pages (the configured limit when
// maxPages <= 0). A page fetch failure ends pagination; the listings
// collected so far are returned together with the error. Cancellation
// returns the listings of fully processed pages.
func (s *Scraper) Run(ctx context.Context, maxPages int) ([]RawJob, error) {
	if maxPages <= 0 {
		maxPages = s.opts.MaxPages
	}

	fetchOpts := s.opts.Fetch
	if fetchOpts == nil {
		fetchOpts = fetch.DefaultOptions()
	}
	withLogger := *fetchOpts
	withLogger.Logger = s.logger
	client := fetch.NewClient(&withLogger)
	defer client.Close()

	var jobs []RawJob
	pageURL := s.extractor.PageURL(1)

	for page := 1; page <= maxPages && pageURL != ""; page++ {
		if err := ctx.Err(); err != nil {
			return jobs, err
		}

		s.logger.Info("fetching listing page", zap.Int("page", page), zap.String("url", pageURL))
		res, err := client.Get(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return jobs, ctx.Err()
			}
			s.logger.Warn("listing page fetch failed, stopping pagination",
				zap.Int("page", page), zap.Error(err))
			return jobs, err
		}
		if s.opts.Metrics != nil {
			s.opts.Metrics.PagesFetched.WithLabelValues(s.Name()).Inc()
		}

		doc, err := NewPage(res.URL, res.HTML)
		if err != nil {
			s.logger.Warn("listing page unparseable, stopping pagination", zap.Int("page", page), zap.Error(err))
			return jobs, err
		}

		listings, parseErrs := s.extractor.ExtractListings(doc)
		for _, perr := range parseErrs {
			s.logger.Debug("dropping malformed listing", zap.Int("page", page), zap.Error(perr))
		}

		if len(listings) == 0 && s.extractor.Policy() == PageCounter {
			s.logger.Info("page has no listings, stopping", zap.Int("page", page))
			break
		}

		pageJobs, err := s.finish(ctx, client, listings)
		if err != nil {
			return jobs, err
		}
		jobs = append(jobs, pageJobs...)
		s.logger.Debug("page processed", zap.Int("page", page), zap.Int("listings", len(pageJobs)))

		if page == maxPages {
			break
		}
		switch s.extractor.Policy() {
		case NextLink:
			next, ok := s.extractor.FindNextPage(doc)
			if !ok {
				pageURL = ""
			} else {
				pageURL = next
			}
		default:
			pageURL = s.extractor.PageURL(page + 1)
		}
	}

	if s.opts.Metrics != nil {
		s.opts.Metrics.JobsScraped.WithLabelValues(s.Name()).Add(float64(len(jobs)))
	}
	s.logger.Info("source finished", zap.Int("listings", len(jobs)))
	return jobs, nil
}

// finish enriches and normalises one page of listings. Only a cancelled
// context is an error.
func (s *Scraper) finish(ctx context.Context, client *fetch.Client, listings []RawJob) ([]RawJob, error) {
	out := make([]RawJob, 0, len(listings))
	for _, job := range listings {
		if job.URL == "" {
			s.logger.Debug("dropping listing without URL", zap.String("title", job.Title))
			continue
		}
		if s.opts.FetchDetails {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if desc, ok := s.fetchDetail(ctx, client, job.URL); ok {
				job.Description = desc
			}
		}

		n := s.opts.Normalizer
		job.Title = n.ForDisplay(job.Title)
		job.Company = n.ForDisplay(job.Company)
		job.Location = n.ForDisplay(job.Location)
		job.Description = n.ForDisplay(job.Description)
		job.Source = s.Name()
		if job.Title == "" {
			continue
		}
		if job.Company == "" {
			job.Company = UnknownCompany
		}
		out = append(out, job)
	}
	return out, nil
}

func (s *Scraper) fetchDetail(ctx context.Context, client *fetch.Client, jobURL string) (string, bool) {
	res, err := client.Get(ctx, jobURL)
	if err != nil {
		var fetchErr *fetch.Error
		if errors.As(err, &fetchErr) {
			s.logger.Debug("detail fetch failed, keeping summary", zap.String("url", jobURL), zap.Error(err))
		}
		return "", false
	}
	doc, err := NewPage(res.URL, res.HTML)
	if err != nil {
		return "", false
	}
	desc, ok := s.extractor.DetailDescription(doc)
	if !ok || desc == "" {
		return "", false
	}
	return desc, true
}
