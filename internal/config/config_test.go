package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.Scraper.Delay)
	assert.Equal(t, 15*time.Second, cfg.Scraper.Timeout)
	assert.Equal(t, 3, cfg.Scraper.Sources[SourceGoZambia].MaxPages)
	assert.True(t, cfg.Scraper.Sources[SourceGoZambia].FetchDetails)
	assert.Equal(t, 5, cfg.Scraper.Sources[SourceGreatZambiaJobs].MaxPages)
	assert.False(t, cfg.Scraper.Sources[SourceGreatZambiaJobs].FetchDetails)
	assert.InDelta(t, 0.70, cfg.Matching.Threshold, 1e-9)
	assert.Equal(t, ProviderOpenAI, cfg.Embedding.Provider)
	assert.Equal(t, 8000, cfg.Text.MaxEmbedLength)
	assert.Equal(t, 4000, cfg.Text.MaxDisplayLength)
	assert.Equal(t, "smtp.gmail.com", cfg.Email.SMTPHost)
	assert.Equal(t, 587, cfg.Email.SMTPPort)
	assert.Equal(t, 7*24*time.Hour, cfg.Email.ResendWindow)
}

func TestLoad_EnvironmentAliases(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/jobs")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GOZAMBIA_MAX_PAGES", "7")
	t.Setenv("SCRAPER_DELAY", "2.5")
	t.Setenv("EMAIL_ADDRESS", "alerts@example.com")
	t.Setenv("EMAIL_APP_PASSWORD", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/jobs", cfg.DatabaseURL)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey())
	assert.Equal(t, 7, cfg.Scraper.Sources[SourceGoZambia].MaxPages)
	assert.Equal(t, 2500*time.Millisecond, cfg.Scraper.Delay)
	assert.True(t, cfg.Email.EmailEnabled())
}

func TestLoad_PrefixedEnvironment(t *testing.T) {
	t.Setenv("SMARTAPPLY_MATCHING_THRESHOLD", "0.8")
	t.Setenv("SMARTAPPLY_SCRAPER_TIMEOUT", "5s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.InDelta(t, 0.8, cfg.Matching.Threshold, 1e-9)
	assert.Equal(t, 5*time.Second, cfg.Scraper.Timeout)
}

func TestLoad_File(t *testing.T) {
	content := `
embedding:
  provider: gemini
matching:
  threshold: 0.65
  concurrency: 2
scraper:
  delay: 0
  sources:
    greatzambiajobs:
      enabled: false
      max_pages: 2
`
	path := filepath.Join(t.TempDir(), "smartapply.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderGemini, cfg.Embedding.Provider)
	assert.Equal(t, "text-embedding-004", cfg.Embedding.ModelName())
	assert.Equal(t, 768, cfg.Embedding.Dims())
	assert.InDelta(t, 0.65, cfg.Matching.Threshold, 1e-9)
	assert.Equal(t, 2, cfg.Matching.Concurrency)
	assert.Equal(t, time.Duration(0), cfg.Scraper.Delay)

	pages := cfg.MaxPages()
	assert.Equal(t, map[string]int{SourceGoZambia: 3}, pages)
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/path/smartapply.yaml")
	assert.Nil(t, cfg)

	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidThreshold(t *testing.T) {
	t.Setenv("SMARTAPPLY_MATCHING_THRESHOLD", "1.5")

	cfg, err := Load("")
	assert.Nil(t, cfg)

	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Field, "Threshold")
}

func TestValidate_UnknownSource(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Scraper.Sources["indeed"] = SourceConfig{Enabled: true, MaxPages: 1}
	err = cfg.Validate()

	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "scraper.sources.indeed", cfgErr.Field)
}

func TestRequireDatabase(t *testing.T) {
	cfg := &Config{}
	err := cfg.RequireDatabase()

	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "database_url", cfgErr.Field)

	cfg.DatabaseURL = "postgres://localhost/jobs"
	assert.NoError(t, cfg.RequireDatabase())
}

func TestEmbeddingConfig_ProviderDefaults(t *testing.T) {
	openai := EmbeddingConfig{Provider: ProviderOpenAI, OpenAIAPIKey: "o", GeminiAPIKey: "g"}
	assert.Equal(t, "o", openai.APIKey())
	assert.Equal(t, "text-embedding-3-small", openai.ModelName())
	assert.Equal(t, 1536, openai.Dims())

	gemini := EmbeddingConfig{Provider: ProviderGemini, OpenAIAPIKey: "o", GeminiAPIKey: "g", Dimensions: 256}
	assert.Equal(t, "g", gemini.APIKey())
	assert.Equal(t, 256, gemini.Dims())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &Error{Message: "failed", Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "config error: failed: boom", err.Error())
}
