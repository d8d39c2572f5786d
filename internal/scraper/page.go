package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is a fetched and parsed HTML document.
type Page struct {
	URL *url.URL
	Doc *goquery.Document
}

// NewPage parses html fetched from pageURL.
func NewPage(pageURL string, html string) (*Page, error) {
	base, err := url.Parse(pageURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &ParseError{URL: pageURL, Message: "invalid page URL", Cause: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ParseError{URL: pageURL, Message: "failed to parse HTML", Cause: err}
	}
	return &Page{URL: base, Doc: doc}, nil
}

// Resolve turns href into an absolute http(s) URL without fragment.
func (p *Page) Resolve(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	abs := p.URL.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	abs.Fragment = ""
	return abs.String(), true
}

// Links returns the resolved href of every anchor matching hrefPattern,
// in document order, together with the anchor selection.
func (p *Page) Links(hrefPattern *regexp.Regexp) []Link {
	var links []Link
	p.Doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if hrefPattern != nil && !hrefPattern.MatchString(href) {
			return
		}
		abs, ok := p.Resolve(href)
		if !ok {
			return
		}
		links = append(links, Link{URL: abs, Anchor: s})
	})
	return links
}

// Link is a resolved anchor.
type Link struct {
	URL    string
	Anchor *goquery.Selection
}

// textParent returns the parent element of the first text node under sel
// matching re.
func textParent(sel *goquery.Selection, re *regexp.Regexp) *goquery.Selection {
	var found *goquery.Selection
	sel.Contents().EachWithBreak(func(_ int, c *goquery.Selection) bool {
		if goquery.NodeName(c) == "#text" {
			if re.MatchString(c.Text()) {
				found = c.Parent()
				return false
			}
			return true
		}
		if f := textParent(c, re); f != nil {
			found = f
			return false
		}
		return true
	})
	return found
}

// classMatches reports whether any class of sel matches re.
func classMatches(sel *goquery.Selection, re *regexp.Regexp) bool {
	class, ok := sel.Attr("class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(class) {
		if re.MatchString(c) {
			return true
		}
	}
	return false
}
