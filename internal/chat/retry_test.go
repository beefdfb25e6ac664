package chat

import (
	"errors"
	"testing"
)

func TestDefaultRetryConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultRetryConfig()

	if cfg.MaxRetries <= 0 {
		t.Errorf("MaxRetries should be positive, got %d", cfg.MaxRetries)
	}
	if cfg.InitialInterval <= 0 {
		t.Errorf("InitialInterval should be positive, got %v", cfg.InitialInterval)
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		t.Error("MaxInterval should be >= InitialInterval")
	}
}

func TestRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"quota", errors.New("quota exceeded for project"), true},
		{"429", errors.New("HTTP 429: Too Many Requests"), true},
		{"503", errors.New("503 Service Unavailable"), true},
		{"connection reset", errors.New("connection reset by peer"), true},
		{"timeout uppercase", errors.New("TIMEOUT occurred"), true},
		{"bad api key", errors.New("invalid API key"), false},
		{"400", errors.New("HTTP 400 Bad Request"), false},
		{"403", errors.New("HTTP 403 Forbidden"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
