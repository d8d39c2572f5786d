// Package config loads the process configuration once at startup.
// The resulting Config is an immutable value handed to constructors;
// no other package reads the environment.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Source names known to the scraper registry.
const (
	SourceGoZambia        = "gozambia"
	SourceGreatZambiaJobs = "greatzambiajobs"
)

// Embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config is the full application configuration.
type Config struct {
	DatabaseURL string          `mapstructure:"database_url"`
	RedisURL    string          `mapstructure:"redis_url"`
	Scraper     ScraperConfig   `mapstructure:"scraper"`
	Text        TextConfig      `mapstructure:"text"`
	Embedding   EmbeddingConfig `mapstructure:"embedding"`
	Matching    MatchingConfig  `mapstructure:"matching"`
	Email       EmailConfig     `mapstructure:"email"`
	Server      ServerConfig    `mapstructure:"server"`
	Pipeline    PipelineConfig  `mapstructure:"pipeline"`
	Schedule    ScheduleConfig  `mapstructure:"schedule"`
}

// ScraperConfig controls HTTP behaviour shared by every source.
type ScraperConfig struct {
	Delay      time.Duration           `mapstructure:"delay" validate:"gte=0"`
	Timeout    time.Duration           `mapstructure:"timeout" validate:"gt=0"`
	UserAgent  string                  `mapstructure:"user_agent" validate:"required"`
	UseBrowser bool                    `mapstructure:"use_browser"`
	Sources    map[string]SourceConfig `mapstructure:"sources" validate:"dive"`
}

// SourceConfig is the per-site scraping configuration.
type SourceConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	MaxPages     int  `mapstructure:"max_pages" validate:"gte=1,lte=50"`
	FetchDetails bool `mapstructure:"fetch_details"`
}

// TextConfig bounds normalised text.
type TextConfig struct {
	MaxEmbedLength   int `mapstructure:"max_embed_length" validate:"gte=100"`
	MaxDisplayLength int `mapstructure:"max_display_length" validate:"gte=100"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider     string        `mapstructure:"provider" validate:"oneof=openai gemini"`
	Model        string        `mapstructure:"model"`
	Dimensions   int           `mapstructure:"dimensions" validate:"gte=0"`
	OpenAIAPIKey string        `mapstructure:"openai_api_key"`
	GeminiAPIKey string        `mapstructure:"gemini_api_key"`
	Endpoint     string        `mapstructure:"endpoint" validate:"omitempty,url"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Breaker      BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig tunes the circuit breaker around the embedding provider.
type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures" validate:"gte=1"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// MatchingConfig holds match engine parameters.
type MatchingConfig struct {
	Threshold   float64 `mapstructure:"threshold" validate:"gte=0,lte=1"`
	Concurrency int     `mapstructure:"concurrency" validate:"gte=1,lte=64"`
	CacheSize   int     `mapstructure:"cache_size" validate:"gte=1"`
}

// EmailConfig holds SMTP settings for alert emails.
type EmailConfig struct {
	SMTPHost string `mapstructure:"smtp_host" validate:"required"`
	SMTPPort int    `mapstructure:"smtp_port" validate:"gte=1,lte=65535"`
	Address  string `mapstructure:"address" validate:"omitempty,email"`
	Password string `mapstructure:"password"`
	FromName string `mapstructure:"from_name"`
	// ResendWindow bounds how old an unsent alert may be and still be
	// retried. Zero disables retries.
	ResendWindow time.Duration `mapstructure:"resend_window" validate:"gte=0"`
}

// ServerConfig holds HTTP trigger settings.
type ServerConfig struct {
	Port      int             `mapstructure:"port" validate:"gte=1,lte=65535"`
	JWTSecret string          `mapstructure:"jwt_secret"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig limits pipeline triggers per client.
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit" validate:"gte=0"`
	Window  time.Duration `mapstructure:"window" validate:"gte=0"`
	Burst   int           `mapstructure:"burst" validate:"gte=0"`
}

// PipelineConfig holds run-level settings.
type PipelineConfig struct {
	RunTimeout time.Duration `mapstructure:"run_timeout" validate:"gte=0"`
	LockTTL    time.Duration `mapstructure:"lock_ttl" validate:"gt=0"`
}

// ScheduleConfig holds the periodic trigger interval.
type ScheduleConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"gte=1m"`
}

// Error reports an invalid or incomplete configuration.
type Error struct {
	Field   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error: %s: %s", e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("config error: %s: %v", e.Message, e.Cause)
	}
	return "config error: " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// envAliases maps config keys to the plain environment names used by
// existing deployments. SMARTAPPLY_* names always work as well.
var envAliases = map[string][]string{
	"database_url":                              {"DATABASE_URL"},
	"redis_url":                                 {"REDIS_URL"},
	"scraper.delay":                             {"SCRAPER_DELAY"},
	"scraper.sources.gozambia.max_pages":        {"GOZAMBIA_MAX_PAGES"},
	"scraper.sources.greatzambiajobs.max_pages": {"GREATZAMBIA_MAX_PAGES"},
	"text.max_display_length":                   {"MAX_DESCRIPTION_LENGTH"},
	"embedding.openai_api_key":                  {"OPENAI_API_KEY"},
	"embedding.gemini_api_key":                  {"GEMINI_API_KEY"},
	"email.address":                             {"EMAIL_ADDRESS"},
	"email.password":                            {"EMAIL_APP_PASSWORD"},
	"server.port":                               {"PORT"},
	"server.jwt_secret":                         {"JWT_SECRET"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")

	v.SetDefault("scraper.delay", time.Second)
	v.SetDefault("scraper.timeout", 15*time.Second)
	v.SetDefault("scraper.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("scraper.use_browser", false)
	v.SetDefault("scraper.sources.gozambia.enabled", true)
	v.SetDefault("scraper.sources.gozambia.max_pages", 3)
	v.SetDefault("scraper.sources.gozambia.fetch_details", true)
	v.SetDefault("scraper.sources.greatzambiajobs.enabled", true)
	v.SetDefault("scraper.sources.greatzambiajobs.max_pages", 5)
	v.SetDefault("scraper.sources.greatzambiajobs.fetch_details", false)

	v.SetDefault("text.max_embed_length", 8000)
	v.SetDefault("text.max_display_length", 4000)

	v.SetDefault("embedding.provider", ProviderOpenAI)
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.dimensions", 0)
	v.SetDefault("embedding.openai_api_key", "")
	v.SetDefault("embedding.gemini_api_key", "")
	v.SetDefault("embedding.endpoint", "")
	v.SetDefault("embedding.timeout", 30*time.Second)
	v.SetDefault("embedding.breaker.max_failures", 5)
	v.SetDefault("embedding.breaker.timeout", time.Minute)

	v.SetDefault("matching.threshold", 0.70)
	v.SetDefault("matching.concurrency", 4)
	v.SetDefault("matching.cache_size", 4096)

	v.SetDefault("email.smtp_host", "smtp.gmail.com")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.address", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from_name", "SmartApply Job Alerts")
	v.SetDefault("email.resend_window", 7*24*time.Hour)

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.limit", 10)
	v.SetDefault("server.rate_limit.window", time.Hour)
	v.SetDefault("server.rate_limit.burst", 2)

	v.SetDefault("pipeline.run_timeout", 30*time.Minute)
	v.SetDefault("pipeline.lock_ttl", time.Hour)

	v.SetDefault("schedule.interval", 6*time.Hour)
}

// Load reads configuration from defaults, an optional file and the
// environment, in increasing priority. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SMARTAPPLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		prefixed := "SMARTAPPLY_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, prefixed}, names...)...); err != nil {
			return nil, &Error{Message: "failed to bind environment for " + key, Cause: err}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, &Error{Message: "failed to read config file " + path, Cause: err}
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsToDurationHook,
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, &Error{Message: "failed to decode config", Cause: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// secondsToDurationHook accepts bare numbers ("1.5", 2) as seconds.
func secondsToDurationHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		if secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case int:
		return time.Duration(v) * time.Second, nil
	}
	return data, nil
}

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return &Error{
				Field:   first.Namespace(),
				Message: fmt.Sprintf("failed %q constraint (value %v)", first.Tag(), first.Value()),
				Cause:   err,
			}
		}
		return &Error{Message: "invalid configuration", Cause: err}
	}

	for name := range c.Scraper.Sources {
		if name != SourceGoZambia && name != SourceGreatZambiaJobs {
			return &Error{Field: "scraper.sources." + name, Message: "unknown source"}
		}
	}
	return nil
}

// RequireDatabase reports a ConfigError when no database is configured.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return &Error{Field: "database_url", Message: "DATABASE_URL is required"}
	}
	return nil
}

// EnabledSources returns the configured sources that are switched on.
func (c *Config) EnabledSources() map[string]SourceConfig {
	out := make(map[string]SourceConfig, len(c.Scraper.Sources))
	for name, sc := range c.Scraper.Sources {
		if sc.Enabled {
			out[name] = sc
		}
	}
	return out
}

// MaxPages returns the per-source page limits of enabled sources.
func (c *Config) MaxPages() map[string]int {
	out := make(map[string]int)
	for name, sc := range c.EnabledSources() {
		out[name] = sc.MaxPages
	}
	return out
}

// APIKey returns the credential for the selected provider.
func (e EmbeddingConfig) APIKey() string {
	if e.Provider == ProviderGemini {
		return e.GeminiAPIKey
	}
	return e.OpenAIAPIKey
}

// ModelName returns the configured model or the provider default.
func (e EmbeddingConfig) ModelName() string {
	if e.Model != "" {
		return e.Model
	}
	if e.Provider == ProviderGemini {
		return "text-embedding-004"
	}
	return "text-embedding-3-small"
}

// Dims returns the configured dimensionality or the provider default.
func (e EmbeddingConfig) Dims() int {
	if e.Dimensions > 0 {
		return e.Dimensions
	}
	if e.Provider == ProviderGemini {
		return 768
	}
	return 1536
}

// EmailEnabled reports whether SMTP credentials are present.
func (e EmailConfig) EmailEnabled() bool {
	return e.Address != "" && e.Password != ""
}
