package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PROPERTYRAG_"

const maxConfigFileSize = 1024 * 1024

const defaultsYAML = `
server:
  host: ""
  http_port: 8080
  shutdown_timeout: 10s
  request_timeout: 60s
agent:
  confidence_threshold: 0.75
  max_iterations: 3
  enable_reflection: true
  semantic_search: true
  max_retries: 2
  vacancy_threshold: 0.1
orchestrator:
  max_parallel_steps: 8
  step_timeout: 20s
validation:
  strict_rules: false
tools:
  timeout: 15s
  rate_limit: 20
  rate_burst: 10
  cache_enabled: true
  cache_ttl: 5m
  cache_max_cost: 67108864
  breaker_threshold: 5
  breaker_cooldown: 30s
postgres:
  max_conns: 10
  migrate_on_start: false
vector:
  enabled: true
  path: ""
  collection: documents
  compress: true
  embedder: hash
  dimensions: 256
  model: nomic-embed-text
  base_url: http://localhost:11434/api
nats:
  enabled: false
  url: nats://127.0.0.1:4222
  subject: propertyrag.query.completed
observability:
  enable_telemetry: false
  service_name: propertyrag
  otlp_endpoint: localhost:4317
  otlp_protocol: grpc
  otlp_insecure: true
  sample_rate: 1.0
  metrics_interval: 15s
logging:
  level: info
  format: json
  otel: false
  disable_sampling: false
`

// DefaultPath is ~/.config/propertyrag/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "propertyrag", "config.yaml"), nil
}

// Load reads the defaults, then path (the default path when empty; a
// missing file is not an error), then the environment, and validates the
// result.
//
// The file must live under ~/.config/propertyrag/ or /etc/propertyrag/,
// be at most 1MB and have 0600 or 0400 permissions.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider([]byte(defaultsYAML)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	content, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps PROPERTYRAG_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

// readConfigFile returns nil when path does not exist.
func readConfigFile(path string) ([]byte, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm != 0600 && perm != 0400 {
			return nil, fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return io.ReadAll(f)
}

func validateConfigPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(home); err == nil {
		home = resolved
	}
	for _, dir := range []string{filepath.Join(home, ".config", "propertyrag"), "/etc/propertyrag"} {
		if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/propertyrag/ or /etc/propertyrag/")
}
