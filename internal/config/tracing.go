package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	EnvTracingEnabled     = "HARBOR_TRACING_ENABLED"
	EnvTracingEndpoint    = "HARBOR_TRACING_ENDPOINT"
	EnvTracingInsecure    = "HARBOR_TRACING_INSECURE"
	EnvTracingSampleRatio = "HARBOR_TRACING_SAMPLE_RATIO"
	EnvTracingServiceName = "HARBOR_TRACING_SERVICE_NAME"
)

// TracingConfig configures OTLP/HTTP span export. When disabled, spans are
// created against a no-op provider.
type TracingConfig struct {
	Enabled     bool    `toml:"enabled"`
	Endpoint    string  `toml:"endpoint"`
	Insecure    bool    `toml:"insecure"`
	SampleRatio float64 `toml:"sample_ratio"`
	ServiceName string  `toml:"service_name"`
}

func (c *TracingConfig) Finalize() error {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRatio == 0 {
		c.SampleRatio = 1
	}
	if c.ServiceName == "" {
		c.ServiceName = "harbor-worker"
	}

	if v := os.Getenv(EnvTracingEnabled); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Enabled = enabled
		}
	}
	if v := os.Getenv(EnvTracingEndpoint); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv(EnvTracingInsecure); v != "" {
		if insecure, err := strconv.ParseBool(v); err == nil {
			c.Insecure = insecure
		}
	}
	if v := os.Getenv(EnvTracingSampleRatio); v != "" {
		if ratio, err := strconv.ParseFloat(v, 64); err == nil {
			c.SampleRatio = ratio
		}
	}
	if v := os.Getenv(EnvTracingServiceName); v != "" {
		c.ServiceName = v
	}

	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("sample_ratio must be within [0, 1]")
	}
	return nil
}

// Merge overwrites fields from overlay. Boolean fields always apply.
func (c *TracingConfig) Merge(overlay *TracingConfig) {
	c.Enabled = overlay.Enabled
	c.Insecure = overlay.Insecure

	if overlay.Endpoint != "" {
		c.Endpoint = overlay.Endpoint
	}
	if overlay.SampleRatio != 0 {
		c.SampleRatio = overlay.SampleRatio
	}
	if overlay.ServiceName != "" {
		c.ServiceName = overlay.ServiceName
	}
}
