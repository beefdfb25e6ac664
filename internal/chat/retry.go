package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// RetryConfig configures the retry behavior for LLM calls.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for LLM API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups error substrings by category.
// Matched case-insensitively against err.Error().
//
// NOTE: This uses string matching because Genkit and LLM provider SDKs
// do not expose typed/sentinel errors for transient failures.
// Re-evaluate if Genkit adds structured error types in a future version.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},      // rate limiting
	{"500", "502", "503", "504", "unavailable"},  // transient server errors
	{"connection reset", "timeout", "temporary"}, // network errors
}

// retryableError reports whether err is transient and should trigger a retry.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	for _, group := range retryablePatterns {
		if containsAny(errStr, group...) {
			return true
		}
	}
	return false
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// generateWithRetry calls the model with exponential backoff retry.
// Each attempt acquires its own rate-limiter token so retries cannot
// bypass the throttle.
func (m *ModelGenerator) generateWithRetry(
	ctx context.Context,
	opts []ai.GenerateOption,
) (*ai.ModelResponse, error) {
	var lastErr error
	delay := m.retryConfig.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= m.retryConfig.MaxRetries; attempt++ {
		if m.rateLimiter != nil {
			if err := m.rateLimiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := genkit.Generate(ctx, m.genkit, opts...)
		if err == nil {
			m.logger.Debug("model call succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return resp, nil
		}

		lastErr = err

		// Non-retryable error - fail immediately
		if !retryableError(err) {
			return nil, fmt.Errorf("model generate: %w", err)
		}

		// Last attempt - don't sleep
		if attempt == m.retryConfig.MaxRetries {
			break
		}

		m.logger.Debug("retrying after error",
			"attempt", attempt+1,
			"delay", delay,
			"elapsed", time.Since(start),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, m.retryConfig.MaxInterval)
		}
	}

	return nil, fmt.Errorf("model generate after %d retries (elapsed: %v): %w",
		m.retryConfig.MaxRetries, time.Since(start), lastErr)
}
