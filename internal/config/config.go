// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (config.yaml in the working directory or /etc/asistente)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, model, temperature/top-p, embedder
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: similarity floor, top-k, chunk limits
//   - Chat: short-circuit reply pacing
//   - Telemetry: OTLP trace export (see telemetry.go)
//
// Sensitive data (passwords, API keys) are masked in MarshalJSON and never
// logged. Validation lives in validation.go and returns sentinel errors
// usable with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidTopP indicates the top_p value is out of range.
	ErrInvalidTopP = errors.New("invalid top_p")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbeddingDimension indicates the embedding dimension is invalid.
	ErrInvalidEmbeddingDimension = errors.New("invalid embedding dimension")

	// ErrInvalidSimilarity indicates the similarity floor is out of range.
	ErrInvalidSimilarity = errors.New("invalid similarity threshold")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top-k")

	// ErrInvalidChunkLimit indicates a chunk limit is out of range.
	ErrInvalidChunkLimit = errors.New("invalid chunk limit")

	// ErrInvalidDelay indicates a reply delay is negative.
	ErrInvalidDelay = errors.New("invalid reply delay")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderOllama   = "ollama"
	ProviderGoogleAI = "googleai"
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider    string  `mapstructure:"provider" json:"provider"`     // "ollama" (default) or "googleai"
	ModelName   string  `mapstructure:"model_name" json:"model_name"` // Model identifier (e.g., "llama3.1", "gemini-2.5-flash")
	Temperature float64 `mapstructure:"temperature" json:"temperature"`
	TopP        float64 `mapstructure:"top_p" json:"top_p"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Embedding configuration
	EmbedderModel      string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbeddingDimension int    `mapstructure:"embedding_dimension" json:"embedding_dimension"`

	// Retrieval configuration
	RAGMinSimilarity   float64 `mapstructure:"rag_min_similarity" json:"rag_min_similarity"`
	RAGTopK            int     `mapstructure:"rag_top_k" json:"rag_top_k"`
	RAGMaxChunks       int     `mapstructure:"rag_max_chunks" json:"rag_max_chunks"`
	RAGKeywordChunks   int     `mapstructure:"rag_keyword_chunks" json:"rag_keyword_chunks"`
	CourseOverviewPath string  `mapstructure:"course_overview_path" json:"course_overview_path"`

	// Chat pacing: delays before canned short-circuit replies.
	ContactDelayMS int `mapstructure:"contact_delay_ms" json:"contact_delay_ms"`
	SocialDelayMS  int `mapstructure:"social_delay_ms" json:"social_delay_ms"`

	// HTTP server configuration
	HTTPAddr    string   `mapstructure:"http_addr" json:"http_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For (set true behind reverse proxy)

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Telemetry configuration (see telemetry.go for type definition)
	Telemetry TelemetryConfig `mapstructure:"telemetry" json:"telemetry"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/asistente")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{".", "/etc/asistente"},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, when set, overrides the individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults: deterministic output keeps answers anchored to context.
	viper.SetDefault("provider", ProviderOllama)
	viper.SetDefault("model_name", "llama3.1")
	viper.SetDefault("temperature", 0.0)
	viper.SetDefault("top_p", 1.0)
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Embedding defaults
	viper.SetDefault("embedder_model", "nomic-embed-text")
	viper.SetDefault("embedding_dimension", 768)

	// Retrieval defaults
	viper.SetDefault("rag_min_similarity", 0.6)
	viper.SetDefault("rag_top_k", 8)
	viper.SetDefault("rag_max_chunks", 5)
	viper.SetDefault("rag_keyword_chunks", 2)
	viper.SetDefault("course_overview_path", "overview_cursos.md")

	// Chat pacing defaults
	viper.SetDefault("contact_delay_ms", 1500)
	viper.SetDefault("social_delay_ms", 7000)

	// HTTP defaults
	viper.SetDefault("http_addr", ":8080")
	viper.SetDefault("cors_origins", []string{"https://www.medifestructuras.com"})
	viper.SetDefault("trust_proxy", false)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "asistente")
	viper.SetDefault("postgres_password", "asistente_dev_password")
	viper.SetDefault("postgres_db_name", "asistente")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Telemetry defaults
	viper.SetDefault("telemetry.endpoint", "localhost:4318")
	viper.SetDefault("telemetry.environment", "dev")
	viper.SetDefault("telemetry.service_name", "asistente")
}

// bindEnvVariables binds environment overrides explicitly.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a bug in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "ASISTENTE_PROVIDER")
	mustBind("model_name", "ASISTENTE_MODEL_NAME")
	mustBind("ollama_host", "ASISTENTE_OLLAMA_HOST")
	mustBind("embedder_model", "ASISTENTE_EMBEDDER_MODEL")
	mustBind("rag_min_similarity", "ASISTENTE_RAG_MIN_SIMILARITY")
	mustBind("http_addr", "ASISTENTE_HTTP_ADDR")
	mustBind("cors_origins", "ASISTENTE_CORS_ORIGINS")
	mustBind("trust_proxy", "ASISTENTE_TRUST_PROXY")
	mustBind("telemetry.endpoint", "OTLP_ENDPOINT")

	// NOTE: GEMINI_API_KEY is read directly by Genkit, not via Viper.
	// Validation checks its presence when the googleai provider is selected.
}

// ContactDelay returns the contact short-circuit pause as a duration.
func (c *Config) ContactDelay() time.Duration {
	return time.Duration(c.ContactDelayMS) * time.Millisecond
}

// SocialDelay returns the social short-circuit pause as a duration.
func (c *Config) SocialDelay() time.Duration {
	return time.Duration(c.SocialDelayMS) * time.Millisecond
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "ollama/llama3.1", "googleai/gemini-2.5-flash".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	return c.Provider + "/" + c.ModelName
}

// FullEmbedderName returns the provider-qualified embedder name for Genkit.
func (c *Config) FullEmbedderName() string {
	if strings.Contains(c.EmbedderModel, "/") {
		return c.EmbedderModel
	}
	return c.Provider + "/" + c.EmbedderModel
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid accidental substring matches against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 chars or fewer are fully masked; longer ones keep the first
// and last 2 characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//   - Telemetry.APIKey (via TelemetryConfig.MarshalJSON)
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
