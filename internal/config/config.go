// Package config loads the service configuration.
//
// Values come from, in increasing precedence: built-in defaults, an
// optional YAML file, and PROPERTYRAG_-prefixed environment variables
// (PROPERTYRAG_AGENT_MAX_ITERATIONS -> agent.max_iterations).
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the complete service configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Agent         AgentConfig         `koanf:"agent"`
	Orchestrator  OrchestratorConfig  `koanf:"orchestrator"`
	Validation    ValidationConfig    `koanf:"validation"`
	Tools         ToolsConfig         `koanf:"tools"`
	Postgres      PostgresConfig      `koanf:"postgres"`
	Vector        VectorConfig        `koanf:"vector"`
	NATS          NATSConfig          `koanf:"nats"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// ServerConfig holds HTTP gateway settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AgentConfig holds the request defaults of the entry point.
type AgentConfig struct {
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`
	MaxIterations       int     `koanf:"max_iterations"`
	EnableReflection    bool    `koanf:"enable_reflection"`
	SemanticSearch      bool    `koanf:"semantic_search"`
	MaxRetries          int     `koanf:"max_retries"`
	VacancyThreshold    float64 `koanf:"vacancy_threshold"`
}

// OrchestratorConfig tunes plan execution.
type OrchestratorConfig struct {
	MaxParallelSteps int           `koanf:"max_parallel_steps"`
	StepTimeout      time.Duration `koanf:"step_timeout"`
}

// ValidationConfig selects the validation rules.
type ValidationConfig struct {
	StrictRules bool `koanf:"strict_rules"`
}

// ToolsConfig tunes the tool runner middleware.
type ToolsConfig struct {
	Timeout          time.Duration `koanf:"timeout"`
	RateLimit        float64       `koanf:"rate_limit"`
	RateBurst        int           `koanf:"rate_burst"`
	CacheEnabled     bool          `koanf:"cache_enabled"`
	CacheTTL         time.Duration `koanf:"cache_ttl"`
	CacheMaxCost     int64         `koanf:"cache_max_cost"`
	BreakerThreshold int           `koanf:"breaker_threshold"`
	BreakerCooldown  time.Duration `koanf:"breaker_cooldown"`
}

// PostgresConfig locates the structured property data.
type PostgresConfig struct {
	DSN            Secret `koanf:"dsn"`
	MaxConns       int32  `koanf:"max_conns"`
	MigrateOnStart bool   `koanf:"migrate_on_start"`
}

// VectorConfig configures the document passage index.
type VectorConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"`
	Collection string `koanf:"collection"`
	Compress   bool   `koanf:"compress"`
	// Embedder is "hash" (local, deterministic) or "ollama".
	Embedder   string `koanf:"embedder"`
	Dimensions int    `koanf:"dimensions"`
	Model      string `koanf:"model"`
	BaseURL    string `koanf:"base_url"`
}

// NATSConfig configures outcome event publishing.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

// ObservabilityConfig configures OpenTelemetry export.
type ObservabilityConfig struct {
	EnableTelemetry bool          `koanf:"enable_telemetry"`
	ServiceName     string        `koanf:"service_name"`
	Endpoint        string        `koanf:"otlp_endpoint"`
	Protocol        string        `koanf:"otlp_protocol"`
	Insecure        bool          `koanf:"otlp_insecure"`
	SampleRate      float64       `koanf:"sample_rate"`
	MetricsInterval time.Duration `koanf:"metrics_interval"`
}

// LoggingConfig is the user-facing part of the logging configuration.
type LoggingConfig struct {
	Level           string `koanf:"level"`
	Format          string `koanf:"format"`
	OTEL            bool   `koanf:"otel"`
	DisableSampling bool   `koanf:"disable_sampling"`
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	if t := c.Agent.ConfidenceThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("agent.confidence_threshold must be within [0,1], got %g", t))
	}
	if c.Agent.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("agent.max_iterations must be >= 1, got %d", c.Agent.MaxIterations))
	}
	if c.Orchestrator.MaxParallelSteps < 1 {
		errs = append(errs, errors.New("orchestrator.max_parallel_steps must be >= 1"))
	}
	if c.Orchestrator.StepTimeout <= 0 {
		errs = append(errs, errors.New("orchestrator.step_timeout must be positive"))
	}
	if c.Tools.RateLimit < 0 {
		errs = append(errs, errors.New("tools.rate_limit must not be negative"))
	}
	if c.Tools.CacheEnabled && c.Tools.CacheMaxCost <= 0 {
		errs = append(errs, errors.New("tools.cache_max_cost must be positive when the cache is enabled"))
	}
	if c.Vector.Enabled && c.Vector.Collection == "" {
		errs = append(errs, errors.New("vector.collection is required when the vector index is enabled"))
	}
	switch c.Vector.Embedder {
	case "hash":
		if c.Vector.Dimensions <= 0 {
			errs = append(errs, errors.New("vector.dimensions must be positive for the hash embedder"))
		}
	case "ollama":
		if c.Vector.Model == "" {
			errs = append(errs, errors.New("vector.model is required for the ollama embedder"))
		}
	default:
		errs = append(errs, fmt.Errorf("vector.embedder must be hash or ollama, got %q", c.Vector.Embedder))
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, errors.New("nats.url is required when nats is enabled"))
	}
	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		errs = append(errs, errors.New("observability.service_name is required when telemetry is enabled"))
	}
	return errors.Join(errs...)
}
