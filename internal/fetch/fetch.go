// Package fetch provides the HTTP client used by scrapers and HTML-to-text
// helpers. A Client is owned by a single scrape run and closed when the
// run ends.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 15 * time.Second

// DefaultDelay is the default pause between requests of one client.
const DefaultDelay = time.Second

// DefaultUserAgent is a desktop browser user agent; the job boards serve
// reduced markup to unknown clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// maxBodySize caps how much of a response body is read.
const maxBodySize = 10 << 20

// Result holds the raw content from a URL fetch.
type Result struct {
	URL         string
	HTML        string
	ContentType string
	StatusCode  int
	Rendered    bool
}

// Error represents a failed fetch. StatusCode is zero for transport
// failures.
type Error struct {
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures a Client.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	// Delay is the minimum spacing between requests. Zero disables pacing.
	Delay time.Duration
	// UseBrowser re-renders pages whose static HTML carries almost no text.
	UseBrowser bool
	Logger     *zap.Logger
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
		Delay:     DefaultDelay,
		Headers: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.5",
		},
	}
}

// Client fetches pages with shared headers, timeout and pacing.
type Client struct {
	http    *http.Client
	opts    Options
	limiter *rate.Limiter
	browser *Browser
	logger  *zap.Logger
}

// NewClient creates a Client. Nil options use DefaultOptions.
func NewClient(opts *Options) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if o.Delay > 0 {
		limit = rate.Every(o.Delay)
	}

	c := &Client{
		http: &http.Client{
			Timeout:   o.Timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		opts:    o,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
	if o.UseBrowser {
		c.browser = NewBrowser(logger)
	}
	return c
}

// Get fetches rawURL. Non-200 responses return the result together with
// an *Error.
func (c *Client) Get(ctx context.Context, rawURL string) (*Result, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, &Error{URL: rawURL, Message: "invalid URL", Cause: err}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{URL: rawURL, Message: "request cancelled", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{URL: rawURL, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	for key, value := range c.opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{URL: rawURL, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &Error{URL: rawURL, Message: "failed to read response body", Cause: err}
	}

	// Redirects are followed; links on the page resolve against the final URL.
	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	result := &Result{
		URL:         finalURL,
		HTML:        string(body),
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}

	if resp.StatusCode != http.StatusOK {
		return result, &Error{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP status %d", resp.StatusCode),
		}
	}

	if c.browser != nil {
		text, _ := ExtractMainText(result.HTML, DefaultTextSelectors())
		if ShouldUseBrowser(text) {
			html, err := c.browser.Render(ctx, finalURL, c.opts.Timeout)
			if err != nil {
				c.logger.Warn("browser rendering failed, keeping static HTML",
					zap.String("url", rawURL), zap.Error(err))
			} else {
				result.HTML = html
				result.Rendered = true
			}
		}
	}

	return result, nil
}

// Close releases idle connections and any browser process.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
	if c.browser != nil {
		c.browser.Close()
	}
}

// ExtractMainText parses HTML and returns the main body text.
// It removes noise elements using noiseSelectors, then finds content using contentSelectors.
// If no content selectors match, it falls back to the body element.
func ExtractMainText(html string, contentSelectors []string, noiseSelectors ...string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("nav, footer, header, script, style, noscript, form, .ad, .advertisement, .ads, .sidebar, .cookie-banner, .popup, .share").Remove()
	if len(noiseSelectors) > 0 {
		doc.Find(strings.Join(noiseSelectors, ", ")).Remove()
	}

	var mainContent *goquery.Selection
	for _, selector := range contentSelectors {
		if selection := doc.Find(selector); selection.Length() > 0 {
			mainContent = selection.First()
			break
		}
	}
	if mainContent == nil {
		mainContent = doc.Find("body")
	}

	return cleanWhitespace(mainContent.Text()), nil
}

// DefaultTextSelectors returns standard selectors for general web content.
func DefaultTextSelectors() []string {
	return []string{
		"main",
		"article",
		".content",
		"#content",
		".main-content",
		"#main-content",
	}
}

// JobDetailSelectors returns selectors for job detail pages.
func JobDetailSelectors() []string {
	return []string{
		".job-description",
		".job_description",
		"#job-description",
		".job-details",
		".job-content",
		".entry-content",
		"[itemprop='description']",
		"main",
		"article",
		".content",
		"#content",
	}
}

// cleanWhitespace trims every line and drops blank ones.
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
