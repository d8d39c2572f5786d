package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonathan/smartapply/internal/config"
	"github.com/jonathan/smartapply/internal/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with args and returns stdout and
// stderr. Flag variables are reset first since cobra keeps them global.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	configPath, debugLogs, jsonOutput = "", false, false
	scrapeOutput, scrapeSourceURLs = "", map[string]string{}
	scrapeMaxPagesGoZambia, scrapeMaxPagesGreatZambia = 0, 0
	tokenSubject, tokenTTL = "", 30*24*time.Hour

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "smartapply.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const scrapeConfig = `
scraper:
  delay: 0
  sources:
    gozambia:
      enabled: true
      max_pages: 3
      fetch_details: false
    greatzambiajobs:
      enabled: false
server:
  jwt_secret: cli-test-secret-key-minimum-32-bytes-long
`

func TestVersionCommand(t *testing.T) {
	out, _, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "smartapply ")
}

func TestScrapeCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			_, _ = w.Write([]byte(`<html><body>
<div class="job-card"><h3><a href="/jobs/a">Accountant</a></h3><span>Lusaka</span></div>
<div class="job-card"><h3><a href="/jobs/b">Driver</a></h3><span>Kitwe</span></div>
<div class="job-card"><h3><a href="/jobs/a">Accountant</a></h3><span>Lusaka</span></div>
</body></html>`))
			return
		}
		_, _ = w.Write([]byte(`<html><body></body></html>`))
	}))
	defer srv.Close()

	cfgPath := writeConfig(t, scrapeConfig)
	out, stderr, err := executeCommand(t, "scrape", "--config", cfgPath,
		"--source-url", config.SourceGoZambia+"="+srv.URL+"/jobs")
	require.NoError(t, err)

	var jobs []scraper.RawJob
	require.NoError(t, json.Unmarshal([]byte(out), &jobs))
	require.Len(t, jobs, 2)
	assert.Equal(t, "Accountant", jobs[0].Title)
	assert.Equal(t, config.SourceGoZambia, jobs[1].Source)
	assert.Contains(t, stderr, "gozambia")
}

func TestScrapeCommand_WritesOutputFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body></body></html>`))
	}))
	defer srv.Close()

	outPath := filepath.Join(t.TempDir(), "jobs.json")
	_, _, err := executeCommand(t, "scrape", "--config", writeConfig(t, scrapeConfig),
		"--source-url", config.SourceGoZambia+"="+srv.URL+"/jobs", "-o", outPath, "--json")
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestTokenCommand(t *testing.T) {
	out, _, err := executeCommand(t, "token", "--config", writeConfig(t, scrapeConfig), "--subject", "cron", "--ttl", "1h")
	require.NoError(t, err)
	assert.Len(t, bytes.Split(bytes.TrimSpace([]byte(out)), []byte(".")), 3)
}

func TestRunCommand_RequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SMARTAPPLY_DATABASE_URL", "")

	_, _, err := executeCommand(t, "run", "--config", writeConfig(t, scrapeConfig))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestMigrateEmbeddingsCommand_RequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SMARTAPPLY_DATABASE_URL", "")

	_, _, err := executeCommand(t, "migrate-embeddings", "--config", writeConfig(t, scrapeConfig))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestMaxPagesOverrides(t *testing.T) {
	assert.Empty(t, maxPagesOverrides(0, 0))
	assert.Equal(t, map[string]int{config.SourceGoZambia: 2, config.SourceGreatZambiaJobs: 4}, maxPagesOverrides(2, 4))
	assert.Equal(t, map[string]int{config.SourceGreatZambiaJobs: 1}, maxPagesOverrides(-1, 1))
}

func TestParseInterval(t *testing.T) {
	d, err := parseInterval("6h")
	require.NoError(t, err)
	assert.Equal(t, 6*time.Hour, d)

	_, err = parseInterval("30s")
	assert.Error(t, err)
	_, err = parseInterval("soon")
	assert.Error(t, err)
}
