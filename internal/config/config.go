package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig
	Backend BackendConfig
	Log     LogConfig
	Tracing TracingConfig
}

// ServerConfig contains the dashboard HTTP server configuration
type ServerConfig struct {
	Host string
	Port int
}

// BackendConfig contains the hosted-backend connection parameters. URL and
// Key being absent (or literal placeholder strings) is what puts the engine
// into demonstration mode; there is no other switch.
type BackendConfig struct {
	URL             string
	Key             string
	FetchLimit      int
	StreamBuffer    int
	RefreshInterval time.Duration // 0 disables periodic re-fetch
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// TracingConfig contains OpenTelemetry tracing configuration
type TracingConfig struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRatio  float64
	InsecureConn   bool
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: getEnvString("AGENTWATCH_HOST", ""),
			Port: getEnvInt("AGENTWATCH_PORT", 8799),
		},
		Backend: BackendConfig{
			URL:             getEnvString("AGENTWATCH_BACKEND_URL", ""),
			Key:             getEnvString("AGENTWATCH_BACKEND_KEY", ""),
			FetchLimit:      getEnvInt("AGENTWATCH_FETCH_LIMIT", 100),
			StreamBuffer:    getEnvInt("AGENTWATCH_STREAM_BUFFER", 64),
			RefreshInterval: getEnvDuration("AGENTWATCH_REFRESH_INTERVAL", 0),
		},
		Log: LogConfig{
			Level:  getEnvString("AGENTWATCH_LOG_LEVEL", "info"),
			Format: getEnvString("AGENTWATCH_LOG_FORMAT", "text"),
		},
		Tracing: TracingConfig{
			Enabled:        getEnvBool("AGENTWATCH_TRACING_ENABLED", false),
			Endpoint:       getEnvString("AGENTWATCH_TRACING_ENDPOINT", "otel-collector:4318"),
			ServiceName:    getEnvString("AGENTWATCH_TRACING_SERVICE_NAME", "agentwatch"),
			ServiceVersion: getEnvString("AGENTWATCH_TRACING_SERVICE_VERSION", "1.0.0"),
			Environment:    getEnvString("AGENTWATCH_TRACING_ENVIRONMENT", "development"),
			SamplingRatio:  getEnvFloat("AGENTWATCH_TRACING_SAMPLING_RATIO", 1.0),
			InsecureConn:   getEnvBool("AGENTWATCH_TRACING_INSECURE", true),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Server.Port)
	}

	if c.Backend.FetchLimit <= 0 {
		return fmt.Errorf("invalid fetch limit: %d (must be positive)", c.Backend.FetchLimit)
	}

	if c.Backend.StreamBuffer <= 0 {
		return fmt.Errorf("invalid stream buffer: %d (must be positive)", c.Backend.StreamBuffer)
	}

	if c.Backend.RefreshInterval < 0 {
		return fmt.Errorf("invalid refresh interval: %v (must not be negative)", c.Backend.RefreshInterval)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	if c.Tracing.Enabled {
		if c.Tracing.Endpoint == "" {
			return fmt.Errorf("tracing endpoint must be specified when tracing is enabled")
		}
		if c.Tracing.SamplingRatio < 0 || c.Tracing.SamplingRatio > 1 {
			return fmt.Errorf("invalid sampling ratio: %f (must be 0.0-1.0)", c.Tracing.SamplingRatio)
		}
	}

	return nil
}

// Address returns the server address in host:port format
func (c *Config) Address() string {
	if c.Server.Host == "" {
		return fmt.Sprintf(":%d", c.Server.Port)
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvString gets a string environment variable with a default value
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
