package config

import (
	"fmt"
	"strings"
)

// validSSLModes are the PostgreSQL sslmode values accepted by libpq/pgx.
var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate checks all configuration values and returns the first violation.
// Sentinel errors allow callers to match with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if strings.TrimSpace(c.ChatModel) == "" {
		return fmt.Errorf("%w: chat_model must not be empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder_model must not be empty", ErrInvalidEmbedderModel)
	}
	if c.VectorDim <= 0 || c.VectorDim > 4096 {
		return fmt.Errorf("%w: vector_dim must be in (0, 4096], got %d", ErrInvalidVectorDim, c.VectorDim)
	}

	if c.AIMaxRetries < 0 || c.AIMaxRetries > 10 {
		return fmt.Errorf("%w: ai_max_retries must be in [0, 10], got %d", ErrInvalidRetryConfig, c.AIMaxRetries)
	}
	if c.AIRetryDelay <= 0 {
		return fmt.Errorf("%w: ai_retry_delay must be positive", ErrInvalidRetryConfig)
	}
	if c.AIMaxRetryWait < c.AIRetryDelay {
		return fmt.Errorf("%w: ai_max_retry_wait must be >= ai_retry_delay", ErrInvalidRetryConfig)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: postgres_host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: postgres_port must be in [1, 65535], got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: postgres_db_name must not be empty", ErrInvalidPostgresDBName)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	if c.Workers < 1 || c.Workers > 64 {
		return fmt.Errorf("%w: workers must be in [1, 64], got %d", ErrInvalidWorkerCount, c.Workers)
	}

	return nil
}

// ValidateServe performs the additional checks required to run the HTTP
// server: external API credentials must be present.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY is required", ErrMissingAPIKey)
	}
	return nil
}
