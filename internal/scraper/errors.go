package scraper

import "fmt"

// ScrapeError is a whole-source failure: the source produced nothing
// usable, or panicked.
type ScrapeError struct {
	Source  string
	Message string
	Cause   error
}

func (e *ScrapeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("scrape error (%s): %s: %v", e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("scrape error (%s): %s", e.Source, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Cause
}

// ParseError is a single malformed listing or page. Listing-level parse
// errors are logged and the listing is dropped.
type ParseError struct {
	Source  string
	URL     string
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	where := e.Source
	if e.URL != "" {
		where += " " + e.URL
	}
	if e.Cause != nil {
		return fmt.Sprintf("parse error (%s): %s: %v", where, e.Message, e.Cause)
	}
	return fmt.Sprintf("parse error (%s): %s", where, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
