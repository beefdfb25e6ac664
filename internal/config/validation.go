package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Provider and model configuration
	if c.Provider != ProviderOllama && c.Provider != ProviderGoogleAI {
		return fmt.Errorf("%w: %q, must be %q or %q",
			ErrInvalidProvider, c.Provider, ProviderOllama, ProviderGoogleAI)
	}
	if c.Provider == ProviderGoogleAI && os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required for the googleai provider",
			ErrMissingAPIKey)
	}
	if c.Provider == ProviderOllama && c.OllamaHost == "" {
		return fmt.Errorf("%w: ollama_host cannot be empty", ErrInvalidOllamaHost)
	}
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}
	if c.TopP <= 0.0 || c.TopP > 1.0 {
		return fmt.Errorf("%w: must be in (0.0, 1.0], got %.2f", ErrInvalidTopP, c.TopP)
	}

	// 2. Embedding configuration
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("%w: must be positive, got %d", ErrInvalidEmbeddingDimension, c.EmbeddingDimension)
	}

	// 3. Retrieval configuration
	if c.RAGMinSimilarity < 0.0 || c.RAGMinSimilarity > 1.0 {
		return fmt.Errorf("%w: must be between 0.0 and 1.0, got %.2f", ErrInvalidSimilarity, c.RAGMinSimilarity)
	}
	if c.RAGTopK < 1 || c.RAGTopK > 50 {
		return fmt.Errorf("%w: must be between 1 and 50, got %d", ErrInvalidTopK, c.RAGTopK)
	}
	if c.RAGMaxChunks < 1 || c.RAGMaxChunks > c.RAGTopK {
		return fmt.Errorf("%w: rag_max_chunks must be between 1 and rag_top_k (%d), got %d",
			ErrInvalidChunkLimit, c.RAGTopK, c.RAGMaxChunks)
	}
	if c.RAGKeywordChunks < 0 {
		return fmt.Errorf("%w: rag_keyword_chunks cannot be negative, got %d",
			ErrInvalidChunkLimit, c.RAGKeywordChunks)
	}

	// 4. Chat pacing
	if c.ContactDelayMS < 0 || c.SocialDelayMS < 0 {
		return fmt.Errorf("%w: delays cannot be negative", ErrInvalidDelay)
	}

	// 5. PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set", ErrInvalidPostgresPassword)
	}
	if c.PostgresPassword == "asistente_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password for production deployments")
	}
	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable).
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
