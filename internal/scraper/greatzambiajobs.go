package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonathan/smartapply/internal/config"
	"github.com/jonathan/smartapply/internal/fetch"
)

// GreatZambiaJobsBaseURL is the production listing root.
const GreatZambiaJobsBaseURL = "https://www.greatzambiajobs.com/jobs/"

const (
	greatZambiaMaxLinks    = 40
	greatZambiaMinTitleLen = 4
	greatZambiaLocation    = "Zambia"
)

var (
	greatZambiaLinkRe = regexp.MustCompile(`/job/|/jobs/`)
	greatZambiaNextRe = regexp.MustCompile(`(?i)next|›|»`)
)

// GreatZambiaJobs treats every job-shaped link as a listing and follows
// the "next" link between pages.
type GreatZambiaJobs struct {
	StartURL string
}

// NewGreatZambiaJobs returns an extractor starting at startURL, or the
// production site when startURL is empty.
func NewGreatZambiaJobs(startURL string) *GreatZambiaJobs {
	if startURL == "" {
		startURL = GreatZambiaJobsBaseURL
	}
	return &GreatZambiaJobs{StartURL: startURL}
}

func (g *GreatZambiaJobs) Name() string       { return config.SourceGreatZambiaJobs }
func (g *GreatZambiaJobs) Policy() PagePolicy { return NextLink }

func (g *GreatZambiaJobs) PageURL(page int) string {
	if page == 1 {
		return g.StartURL
	}
	return ""
}

// ExtractListings inspects the first job links of the page. Listing pages
// and pagination links are skipped.
func (g *GreatZambiaJobs) ExtractListings(page *Page) ([]RawJob, []error) {
	links := page.Links(greatZambiaLinkRe)
	if len(links) > greatZambiaMaxLinks {
		links = links[:greatZambiaMaxLinks]
	}

	current := page.URL.String()
	var (
		jobs []RawJob
		errs []error
	)
	for _, l := range links {
		title := strings.TrimSpace(l.Anchor.Text())
		if greatZambiaNextRe.MatchString(title) {
			continue
		}
		if sameURL(l.URL, g.StartURL) || sameURL(l.URL, current) {
			continue
		}
		if len([]rune(title)) < greatZambiaMinTitleLen {
			errs = append(errs, &ParseError{Source: g.Name(), URL: l.URL, Message: "link text too short for a title"})
			continue
		}
		jobs = append(jobs, RawJob{
			Title:       title,
			Company:     UnknownCompany,
			Location:    greatZambiaLocation,
			Description: title,
			URL:         l.URL,
		})
	}
	return jobs, errs
}

// FindNextPage returns the first "next" link with an href.
func (g *GreatZambiaJobs) FindNextPage(page *Page) (string, bool) {
	var next string
	page.Doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !greatZambiaNextRe.MatchString(strings.TrimSpace(s.Text())) {
			return true
		}
		href, _ := s.Attr("href")
		if abs, ok := page.Resolve(href); ok {
			next = abs
			return false
		}
		return true
	})
	return next, next != ""
}

// DetailDescription extracts the main text of a job page.
func (g *GreatZambiaJobs) DetailDescription(page *Page) (string, bool) {
	html, err := page.Doc.Html()
	if err != nil {
		return "", false
	}
	text, err := fetch.ExtractMainText(html, fetch.JobDetailSelectors())
	if err != nil || text == "" {
		return "", false
	}
	return text, true
}

func sameURL(a, b string) bool {
	return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}
