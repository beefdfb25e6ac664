package config

import (
	"encoding/json"
	"fmt"
)

// TelemetryConfig holds OTLP trace export configuration.
//
// Traces are sent to a local collector agent over OTLP HTTP.
// See internal/observability for the exporter setup.
type TelemetryConfig struct {
	// APIKey authenticates with the tracing backend (optional; unused when
	// the local agent handles authentication).
	APIKey string `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
	// Endpoint is the collector OTLP HTTP endpoint (default: localhost:4318)
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	// Environment is the deployment environment tag (default: dev)
	Environment string `mapstructure:"environment" json:"environment"`
	// ServiceName is the service name reported on spans (default: asistente)
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// MarshalJSON masks the API key.
func (t TelemetryConfig) MarshalJSON() ([]byte, error) {
	type alias TelemetryConfig
	a := alias(t)
	a.APIKey = maskSecret(a.APIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal telemetry config: %w", err)
	}
	return data, nil
}
