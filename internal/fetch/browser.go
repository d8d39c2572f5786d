package fetch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// MinContentLength is the minimum extracted text length to consider HTTP fetch successful.
// If content is shorter, we should fall back to browser rendering.
const MinContentLength = 500

// ShouldUseBrowser returns true if the extracted text is too short,
// indicating the page is likely a JavaScript-rendered SPA.
func ShouldUseBrowser(extractedText string) bool {
	return len(strings.TrimSpace(extractedText)) < MinContentLength
}

// Browser renders pages in one headless Chrome process that lives as long
// as the owning Client. The process starts on first use.
// Requires Chrome/Chromium to be installed on the system.
type Browser struct {
	mu          sync.Mutex
	ctx         context.Context
	allocCancel context.CancelFunc
	ctxCancel   context.CancelFunc
	logger      *zap.Logger
}

// NewBrowser returns an idle Browser.
func NewBrowser(logger *zap.Logger) *Browser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Browser{logger: logger}
}

func (b *Browser) start() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx != nil {
		return b.ctx
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(),
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(DefaultUserAgent),
		)...,
	)
	browserCtx, ctxCancel := chromedp.NewContext(allocCtx)

	b.ctx = browserCtx
	b.allocCancel = allocCancel
	b.ctxCancel = ctxCancel
	return b.ctx
}

// Render navigates to url and returns the rendered HTML. Cancelling ctx
// aborts the render.
func (b *Browser) Render(ctx context.Context, url string, timeout time.Duration) (string, error) {
	b.logger.Debug("rendering page in headless browser", zap.String("url", url))

	tabCtx, cancelTab := chromedp.NewContext(b.start())
	defer cancelTab()
	runCtx, cancel := context.WithTimeout(tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("browser rendering cancelled: %w", ctx.Err())
		}
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}

	b.logger.Debug("rendered page", zap.String("url", url), zap.Int("bytes", len(html)))
	return html, nil
}

// Close stops the browser process if it was started.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctxCancel != nil {
		b.ctxCancel()
		b.allocCancel()
		b.ctx = nil
		b.ctxCancel = nil
		b.allocCancel = nil
	}
}
