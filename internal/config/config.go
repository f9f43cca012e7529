package config

import (
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "SLR_CONFIG"
	logLevelEnv       = "SLR_LOG_LEVEL"
	apiBaseURLEnv     = "SLR_API_BASE_URL"
	serverAddrEnv     = "SLR_SERVER_ADDR"
	openAIAPIKeyEnv   = "OPENAI_API_KEY"
	githubTokenEnv    = "GITHUB_TOKEN"
	openAIBaseURLEnv  = "OPENAI_BASE_URL"
	openAIModelEnv    = "OPENAI_MODEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Server        ServerConfig       `yaml:"server"`
	LLM           LLMConfig          `yaml:"llm"`
	Scraper       ScraperConfig      `yaml:"scraper"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// PipelineConfig tells the client where the three stage services live.
type PipelineConfig struct {
	BaseURL   string          `yaml:"baseUrl"`
	Endpoints EndpointsConfig `yaml:"endpoints"`
	Timeout   time.Duration   `yaml:"timeout"`
}

// EndpointsConfig holds per-stage paths or absolute URLs.
type EndpointsConfig struct {
	Questions string `yaml:"questions"`
	Queries   string `yaml:"queries"`
	Records   string `yaml:"records"`
}

// EndpointURL joins a relative endpoint path onto BaseURL. Absolute URLs are returned as is.
func (p PipelineConfig) EndpointURL(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" || strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return strings.TrimSuffix(p.BaseURL, "/") + "/" + strings.TrimPrefix(endpoint, "/")
}

// ServerConfig configures the backend HTTP listener.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// LLMConfig defines how to contact the OpenAI-compatible chat API.
type LLMConfig struct {
	BaseURL string `yaml:"baseUrl"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"apiKey"`
}

// ScraperConfig describes the review database scraper.
type ScraperConfig struct {
	Database    string        `yaml:"database"`
	SiteURL     string        `yaml:"siteUrl"`
	SearchURL   string        `yaml:"searchUrl"`
	MaxReviews  int           `yaml:"maxReviews"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Load reads YAML configuration from SLR_CONFIG (if set) and applies environment overrides.
func Load() Config {
	return LoadFile(os.Getenv(configPathEnv))
}

// LoadFile is Load with an explicit path; an empty path uses defaults only.
func LoadFile(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(apiBaseURLEnv); v != "" {
		c.Pipeline.BaseURL = v
	}

	if v := os.Getenv(serverAddrEnv); v != "" {
		c.Server.Addr = v
	}

	if v := os.Getenv(githubTokenEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}

	if v := os.Getenv(openAIBaseURLEnv); v != "" {
		c.LLM.BaseURL = v
	}

	if v := os.Getenv(openAIModelEnv); v != "" {
		c.LLM.Model = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) normalize() {
	defaults := defaultConfig()
	if c.Pipeline.Timeout <= 0 {
		c.Pipeline.Timeout = defaults.Pipeline.Timeout
	}
	if c.Scraper.MaxReviews <= 0 {
		c.Scraper.MaxReviews = defaults.Scraper.MaxReviews
	}
	if c.Scraper.Concurrency <= 0 {
		c.Scraper.Concurrency = 1
	}
	if c.Scraper.Timeout <= 0 {
		c.Scraper.Timeout = defaults.Scraper.Timeout
	}
	c.Scraper.Database = strings.ToLower(strings.TrimSpace(c.Scraper.Database))
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Pipeline.BaseURL != "" {
		base.Pipeline.BaseURL = override.Pipeline.BaseURL
	}
	if override.Pipeline.Endpoints.Questions != "" {
		base.Pipeline.Endpoints.Questions = override.Pipeline.Endpoints.Questions
	}
	if override.Pipeline.Endpoints.Queries != "" {
		base.Pipeline.Endpoints.Queries = override.Pipeline.Endpoints.Queries
	}
	if override.Pipeline.Endpoints.Records != "" {
		base.Pipeline.Endpoints.Records = override.Pipeline.Endpoints.Records
	}
	if override.Pipeline.Timeout > 0 {
		base.Pipeline.Timeout = override.Pipeline.Timeout
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if len(override.Server.AllowedOrigins) > 0 {
		base.Server.AllowedOrigins = override.Server.AllowedOrigins
	}

	if override.LLM.BaseURL != "" {
		base.LLM.BaseURL = override.LLM.BaseURL
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}

	if override.Scraper.Database != "" {
		base.Scraper.Database = override.Scraper.Database
	}
	if override.Scraper.SiteURL != "" {
		base.Scraper.SiteURL = override.Scraper.SiteURL
	}
	if override.Scraper.SearchURL != "" {
		base.Scraper.SearchURL = override.Scraper.SearchURL
	}
	if override.Scraper.MaxReviews > 0 {
		base.Scraper.MaxReviews = override.Scraper.MaxReviews
	}
	if override.Scraper.Concurrency > 0 {
		base.Scraper.Concurrency = override.Scraper.Concurrency
	}
	if override.Scraper.Timeout > 0 {
		base.Scraper.Timeout = override.Scraper.Timeout
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	return base
}

// Default returns the built-in settings without file or environment input.
func Default() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Pipeline: PipelineConfig{
			BaseURL: "http://127.0.0.1:5000",
			Endpoints: EndpointsConfig{
				Questions: "/api/generate-questions",
				Queries:   "/api/generate-queries",
				Records:   "/api/scrape-cochrane",
			},
			Timeout: 2 * time.Minute,
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:5000",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		LLM: LLMConfig{
			BaseURL: "https://models.inference.ai.azure.com",
			Model:   "gpt-4o",
		},
		Scraper: ScraperConfig{
			Database:    "cochrane",
			SiteURL:     "https://www.cochranelibrary.com",
			SearchURL:   "https://www.cochranelibrary.com/search",
			MaxReviews:  5,
			Concurrency: 2,
			Timeout:     20 * time.Second,
		},
	}
}
