// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.codelore/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: Gemini API key, chat/summary model, embedder model, rate limits
//   - Storage: PostgreSQL connection (see storage.go)
//   - GitHub: fallback access token for repositories without their own
//   - Server: listen address, CORS, rate limiting
//
// Security: sensitive values (passwords, API keys) are masked in MarshalJSON.
// Validation: range checks with sentinel errors in validation.go.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidVectorDim indicates the embedding dimensionality is invalid.
	ErrInvalidVectorDim = errors.New("invalid vector dimension")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidRetryConfig indicates the AI retry settings are out of range.
	ErrInvalidRetryConfig = errors.New("invalid retry configuration")

	// ErrInvalidWorkerCount indicates the background worker count is invalid.
	ErrInvalidWorkerCount = errors.New("invalid worker count")
)

const (
	// DefaultChatModel is the Gemini model used for summaries and answers.
	DefaultChatModel = "gemini-2.5-flash"

	// DefaultEmbedderModel is the Gemini embedding model.
	// gemini-embedding-001 outputs 3072 dimensions by default but supports
	// truncation to 768 via OutputDimensionality; the pgvector schema uses
	// vector(768).
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultVectorDim matches the vector(768) column in db/migrations.
	DefaultVectorDim = 768

	// DefaultAIMinInterval spaces consecutive AI calls to stay under the
	// free-tier requests-per-minute ceiling even before any 429 is seen.
	DefaultAIMinInterval = 15 * time.Second

	// DefaultAIMaxRetries bounds rate-limit retries per AI call.
	DefaultAIMaxRetries = 3
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields, update MarshalJSON.
type Config struct {
	// AI configuration
	GeminiAPIKey   string        `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE: masked in MarshalJSON
	ChatModel      string        `mapstructure:"chat_model" json:"chat_model"`
	EmbedderModel  string        `mapstructure:"embedder_model" json:"embedder_model"`
	VectorDim      int32         `mapstructure:"vector_dim" json:"vector_dim"`
	AIMinInterval  time.Duration `mapstructure:"ai_min_interval" json:"ai_min_interval"`
	AIMaxRetries   int           `mapstructure:"ai_max_retries" json:"ai_max_retries"`
	AIRetryDelay   time.Duration `mapstructure:"ai_retry_delay" json:"ai_retry_delay"`
	AIMaxRetryWait time.Duration `mapstructure:"ai_max_retry_wait" json:"ai_max_retry_wait"`

	// GitHub configuration. Used when a project has no token of its own.
	GitHubToken string `mapstructure:"github_token" json:"github_token"` // SENSITIVE: masked in MarshalJSON

	// Transcription configuration
	AssemblyAIKey string `mapstructure:"assemblyai_key" json:"assemblyai_key"` // SENSITIVE: masked in MarshalJSON

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Server configuration
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	APIToken   string `mapstructure:"api_token" json:"api_token"` // SENSITIVE: masked in MarshalJSON
	TrustProxy bool   `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst  int    `mapstructure:"rate_burst" json:"rate_burst"`

	// Background job configuration
	Workers int `mapstructure:"workers" json:"workers"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".codelore")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults and env cover everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings when set.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// AI defaults
	v.SetDefault("chat_model", DefaultChatModel)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("vector_dim", DefaultVectorDim)
	v.SetDefault("ai_min_interval", DefaultAIMinInterval)
	v.SetDefault("ai_max_retries", DefaultAIMaxRetries)
	v.SetDefault("ai_retry_delay", time.Second)
	v.SetDefault("ai_max_retry_wait", time.Minute)

	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "codelore")
	v.SetDefault("postgres_password", "codelore_dev_password")
	v.SetDefault("postgres_db_name", "codelore")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Server defaults
	v.SetDefault("listen_addr", "127.0.0.1:8080")
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 60)

	// Background job defaults
	v.SetDefault("workers", 4)
}

// bindEnvVariables binds environment variables explicitly.
// Secrets are env-only by convention; nothing reads them from the YAML file
// in deployments.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("gemini_api_key", "GEMINI_API_KEY")
	mustBind("github_token", "GITHUB_TOKEN")
	mustBind("assemblyai_key", "ASSEMBLYAI_API_KEY")
	mustBind("api_token", "CODELORE_API_TOKEN")
	mustBind("listen_addr", "CODELORE_LISTEN_ADDR")
	mustBind("trust_proxy", "CODELORE_TRUST_PROXY")
	mustBind("chat_model", "CODELORE_CHAT_MODEL")
	mustBind("embedder_model", "CODELORE_EMBEDDER_MODEL")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 chars or fewer are fully masked; longer secrets keep the
// first and last two characters for debug utility.
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
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.GeminiAPIKey = maskSecret(a.GeminiAPIKey)
	a.GitHubToken = maskSecret(a.GitHubToken)
	a.AssemblyAIKey = maskSecret(a.AssemblyAIKey)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.APIToken = maskSecret(a.APIToken)
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
