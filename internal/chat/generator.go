package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
)

// GeneratorConfig contains all required parameters for ModelGenerator.
type GeneratorConfig struct {
	Genkit *genkit.Genkit
	Logger *slog.Logger

	// ModelName is the provider-qualified model name
	// (e.g., "ollama/llama3.1", "googleai/gemini-2.5-flash").
	ModelName string

	// Temperature and TopP are passed through to the model. Answers must
	// stay anchored to the retrieved context, so production runs with
	// temperature 0.
	Temperature float64
	TopP        float64

	// RetryConfig tunes transient-failure retries (zero-value uses defaults).
	RetryConfig RetryConfig

	// RateLimiter, when set, throttles model calls. Each retry attempt
	// waits for its own token.
	RateLimiter *rate.Limiter
}

func (cfg GeneratorConfig) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	return nil
}

// ModelGenerator implements Generator on top of Genkit, with rate limiting
// and retry for transient provider failures.
type ModelGenerator struct {
	genkit      *genkit.Genkit
	modelName   string
	temperature float64
	topP        float64
	retryConfig RetryConfig
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewModelGenerator creates a ModelGenerator from the given configuration.
func NewModelGenerator(cfg GeneratorConfig) (*ModelGenerator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid generator config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}
	return &ModelGenerator{
		genkit:      cfg.Genkit,
		modelName:   cfg.ModelName,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		retryConfig: retryConfig,
		rateLimiter: cfg.RateLimiter,
		logger:      logger,
	}, nil
}

// Generate produces the model answer for the assembled prompt.
func (m *ModelGenerator) Generate(ctx context.Context, promptText string) (string, error) {
	resp, err := m.generateWithRetry(ctx, []ai.GenerateOption{
		ai.WithModelName(m.modelName),
		ai.WithPrompt(promptText),
		ai.WithConfig(&ai.GenerationCommonConfig{
			Temperature: m.temperature,
			TopP:        m.topP,
		}),
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
