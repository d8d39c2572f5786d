package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientGet_Success(t *testing.T) {
	var gotUA, gotLang string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><h1>Jobs</h1></body></html>"))
	}))
	defer server.Close()

	client := NewClient(&Options{Delay: 0, Headers: map[string]string{"Accept-Language": "en-US"}})
	defer client.Close()

	result, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, server.URL, result.URL)
	assert.Contains(t, result.HTML, "<h1>Jobs</h1>")
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "text/html", result.ContentType)
	assert.False(t, result.Rendered)
	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.Equal(t, "en-US", gotLang)
}

func TestClientGet_FollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/en/jobs/?"+r.URL.RawQuery, http.StatusMovedPermanently)
	})
	mux.HandleFunc("/en/jobs/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>moved</body></html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(nil)
	defer client.Close()

	result, err := client.Get(context.Background(), server.URL+"/jobs?page=2")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/en/jobs/?page=2", result.URL)
	assert.Contains(t, result.HTML, "moved")
}

func TestClientGet_InvalidURL(t *testing.T) {
	client := NewClient(nil)
	defer client.Close()

	_, err := client.Get(context.Background(), "not-a-valid-url")
	require.Error(t, err)

	var fetchErr *Error
	assert.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, err.Error(), "invalid URL")
}

func TestClientGet_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(&Options{})
	defer client.Close()

	result, err := client.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, http.StatusNotFound, result.StatusCode)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Contains(t, err.Error(), "404")
}

func TestClientGet_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(&Options{Timeout: 50 * time.Millisecond})
	defer client.Close()

	_, err := client.Get(context.Background(), server.URL)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 0, fetchErr.StatusCode)
	assert.Equal(t, "HTTP request failed", fetchErr.Message)
}

func TestClientGet_Paced(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(&Options{Delay: 150 * time.Millisecond})
	defer client.Close()

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Get(context.Background(), server.URL)
		require.NoError(t, err)
	}

	assert.GreaterOrEqual(t, time.Since(start), 280*time.Millisecond)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClientGet_CancelledWhileWaiting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(&Options{Delay: time.Hour})
	defer client.Close()

	_, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Get(ctx, server.URL)

	var fetchErr *Error
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "request cancelled", fetchErr.Message)
}

func TestExtractMainText_WithMainElement(t *testing.T) {
	html := `
	<html>
		<body>
			<nav>Navigation</nav>
			<main>
				<h1>Main Content</h1>
				<p>This is the important text.</p>
			</main>
			<footer>Footer</footer>
		</body>
	</html>`

	text, err := ExtractMainText(html, DefaultTextSelectors())
	require.NoError(t, err)
	assert.Contains(t, text, "Main Content")
	assert.Contains(t, text, "important text")
	assert.NotContains(t, text, "Navigation")
	assert.NotContains(t, text, "Footer")
}

func TestExtractMainText_FallbackToBody(t *testing.T) {
	html := `
	<html>
		<body>
			<div>Some content here.</div>
		</body>
	</html>`

	text, err := ExtractMainText(html, DefaultTextSelectors())
	require.NoError(t, err)
	assert.Contains(t, text, "Some content here")
}

func TestExtractMainText_JobDetailSelectors(t *testing.T) {
	html := `
	<html>
		<body>
			<div class="sidebar">Sidebar junk</div>
			<div class="job-description">
				<h2>Requirements</h2>
				<p>Grade 12 certificate and 3 years experience</p>
			</div>
		</body>
	</html>`

	text, err := ExtractMainText(html, JobDetailSelectors())
	require.NoError(t, err)
	assert.Contains(t, text, "Requirements")
	assert.Contains(t, text, "3 years experience")
	assert.NotContains(t, text, "Sidebar junk")
}

func TestExtractMainText_NoiseSelectors(t *testing.T) {
	html := `<html><body><main><p>Keep</p><div class="related-jobs">Drop</div></main></body></html>`

	text, err := ExtractMainText(html, DefaultTextSelectors(), ".related-jobs")
	require.NoError(t, err)
	assert.Equal(t, "Keep", text)
}

func TestShouldUseBrowser(t *testing.T) {
	assert.True(t, ShouldUseBrowser("  short  "))
	assert.False(t, ShouldUseBrowser(strings.Repeat("x", MinContentLength)))
}
