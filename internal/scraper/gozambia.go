package scraper

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonathan/smartapply/internal/config"
)

// GoZambiaBaseURL is the production listing root.
const GoZambiaBaseURL = "https://www.gozambia.com/jobs"

var (
	goZambiaCardRe     = regexp.MustCompile(`(?i)job`)
	goZambiaCompanyRe  = regexp.MustCompile(`(?i)company|employer`)
	goZambiaLocationRe = regexp.MustCompile(`(?i)lusaka|kitwe|ndola|zambia`)
	goZambiaDetailRe   = regexp.MustCompile(`(?i)description|content`)
)

// GoZambia extracts listings from numbered GoZambia pages.
type GoZambia struct {
	BaseURL string
}

// NewGoZambia returns an extractor rooted at baseURL, or the production
// site when baseURL is empty.
func NewGoZambia(baseURL string) *GoZambia {
	if baseURL == "" {
		baseURL = GoZambiaBaseURL
	}
	return &GoZambia{BaseURL: strings.TrimRight(baseURL, "/")}
}

func (g *GoZambia) Name() string       { return config.SourceGoZambia }
func (g *GoZambia) Policy() PagePolicy { return PageCounter }

func (g *GoZambia) PageURL(page int) string {
	return fmt.Sprintf("%s?page=%d", g.BaseURL, page)
}

// ExtractListings reads every job card on the page. A matching div that
// wraps two or more cards is a list container, not a card. A card nested
// in another card yields the same URL and is dropped.
func (g *GoZambia) ExtractListings(page *Page) ([]RawJob, []error) {
	cards := page.Doc.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
		if !classMatches(s, goZambiaCardRe) {
			return false
		}
		inner := s.Find("div").FilterFunction(func(_ int, d *goquery.Selection) bool {
			return classMatches(d, goZambiaCardRe) && looksLikeCard(d)
		})
		return inner.Length() < 2
	})

	var (
		jobs []RawJob
		errs []error
	)
	seen := make(map[string]bool)
	cards.Each(func(i int, card *goquery.Selection) {
		job, err := g.parseCard(page, card)
		if err != nil {
			errs = append(errs, fmt.Errorf("card %d: %w", i, err))
			return
		}
		if seen[job.URL] {
			return
		}
		seen[job.URL] = true
		jobs = append(jobs, job)
	})
	return jobs, errs
}

// looksLikeCard reports whether sel carries both a title and a link.
func looksLikeCard(sel *goquery.Selection) bool {
	return strings.TrimSpace(sel.Find("h2, h3, a").First().Text()) != "" &&
		sel.Find("a[href]").Length() > 0
}

func (g *GoZambia) parseCard(page *Page, card *goquery.Selection) (RawJob, error) {
	titleEl := card.Find("h2, h3, a").First()
	title := strings.TrimSpace(titleEl.Text())
	if title == "" {
		return RawJob{}, &ParseError{Source: g.Name(), URL: page.URL.String(), Message: "card has no title"}
	}

	href, ok := titleEl.Attr("href")
	if !ok {
		href, ok = titleEl.Find("a[href]").First().Attr("href")
	}
	if !ok {
		href, ok = card.Find("a[href]").First().Attr("href")
	}
	link, resolved := page.Resolve(href)
	if !ok || !resolved {
		return RawJob{}, &ParseError{Source: g.Name(), URL: page.URL.String(), Message: fmt.Sprintf("card %q has no link", title)}
	}

	company := UnknownCompany
	if el := textParent(card, goZambiaCompanyRe); el != nil {
		company = strings.TrimSpace(el.Text())
	}
	var location string
	if el := textParent(card, goZambiaLocationRe); el != nil {
		location = strings.TrimSpace(el.Text())
	}

	return RawJob{
		Title:       title,
		Company:     company,
		Location:    location,
		Description: strings.TrimSpace(card.Text()),
		URL:         link,
	}, nil
}

// FindNextPage is unused for numbered pages.
func (g *GoZambia) FindNextPage(*Page) (string, bool) { return "", false }

// DetailDescription returns the text of the first description block.
func (g *GoZambia) DetailDescription(page *Page) (string, bool) {
	var desc string
	page.Doc.Find("div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !classMatches(s, goZambiaDetailRe) {
			return true
		}
		desc = strings.TrimSpace(s.Text())
		return false
	})
	return desc, desc != ""
}
