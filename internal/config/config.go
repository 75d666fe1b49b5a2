package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// LLM providers selectable with LLM_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds the configuration for the application.
// Every credential is optional: a missing key switches the matching component
// into its degraded mode (plain search, mock export, anonymous sessions).
type Config struct {
	LLMProvider          string
	OpenAIAPIKey         string
	OpenAIBaseURL        string
	OpenAIModel          string
	GeminiAPIKey         string
	GeminiModel          string
	LLMTimeout           time.Duration
	LLMRequestsPerMinute int
	AISearchEnabled      bool

	InstacartAPIKey      string
	InstacartBaseURL     string
	InstacartLinkbackURL string
	InstacartMockMode    bool

	SupabaseURL       string
	SupabaseAnonKey   string
	SupabaseJWTSecret string

	DatabasePath      string
	RecipeCatalogPath string
	HTTPAddr          string

	LogLevel  string
	LogFormat string

	// Telegram Config
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	AdminTelegramID        int64
}

// NewFromEnv creates a new Config object from environment variables.
// It only fails when a variable is present but malformed.
func NewFromEnv() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	r := reader{k: k}
	cfg := &Config{
		LLMProvider:        strings.ToLower(r.str("llm_provider", ProviderOpenAI)),
		OpenAIAPIKey:       r.str("openai_api_key", ""),
		OpenAIBaseURL:      strings.TrimRight(r.str("openai_base_url", "https://api.openai.com/v1"), "/"),
		OpenAIModel:        r.str("openai_model", "gpt-4o"),
		GeminiAPIKey:       r.str("gemini_api_key", ""),
		GeminiModel:        r.str("gemini_model", "gemini-1.5-flash"),
		InstacartAPIKey:    r.str("instacart_api_key", ""),
		InstacartBaseURL:   strings.TrimRight(r.str("instacart_base_url", "https://connect.dev.instacart.tools/idp/v1/products"), "/"),
		SupabaseURL:        strings.TrimRight(r.str("supabase_url", ""), "/"),
		SupabaseAnonKey:    r.str("supabase_anon_key", ""),
		SupabaseJWTSecret:  r.str("supabase_jwt_secret", ""),
		DatabasePath:       r.str("database_path", "data/chefitup.db"),
		RecipeCatalogPath:  r.str("recipe_catalog_path", ""),
		HTTPAddr:           r.str("http_addr", ":8080"),
		LogLevel:           r.str("log_level", "info"),
		LogFormat:          r.str("log_format", "json"),
		TelegramBotToken:   r.str("telegram_bot_token", ""),
		TelegramWebhookURL: r.str("telegram_webhook_url", ""),
	}

	cfg.LLMTimeout = r.duration("llm_timeout", 30*time.Second)
	cfg.LLMRequestsPerMinute = r.integer("llm_requests_per_minute", 0)
	cfg.AISearchEnabled = r.boolean("ai_search_enabled", true)
	cfg.InstacartMockMode = r.boolean("instacart_mock_mode", false)
	cfg.InstacartLinkbackURL = r.str("instacart_linkback_url", "")
	cfg.AdminTelegramID = r.int64("admin_telegram_id", 0)
	cfg.TelegramAllowedUserIDs = r.int64List("telegram_allowed_user_ids")

	if r.err != nil {
		return nil, r.err
	}

	switch cfg.LLMProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}

	return cfg, nil
}

// reader pulls typed values out of koanf and keeps the first parse error.
type reader struct {
	k   *koanf.Koanf
	err error
}

func (r *reader) str(key, def string) string {
	v := strings.TrimSpace(r.k.String(key))
	if v == "" {
		return def
	}
	return v
}

func (r *reader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s: %w", strings.ToUpper(key), err)
	}
}

func (r *reader) boolean(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return b
}

func (r *reader) integer(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return n
}

func (r *reader) int64(key string, def int64) int64 {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return n
}

func (r *reader) int64List(key string) []int64 {
	v := r.str(key, "")
	if v == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			r.fail(key, err)
			return nil
		}
		ids = append(ids, id)
	}
	return ids
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return d
}

// LLMConfigured reports whether the selected provider has a credential.
func (c *Config) LLMConfigured() bool {
	if c.LLMProvider == ProviderGemini {
		return c.GeminiAPIKey != ""
	}
	return c.OpenAIAPIKey != ""
}

// SupabaseConfigured reports whether the hosted auth provider can be reached.
func (c *Config) SupabaseConfigured() bool {
	return c.SupabaseURL != "" && c.SupabaseAnonKey != ""
}
