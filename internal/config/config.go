package config

import "context"

// Package config provides configuration management for gumshoe.
//
// Responsibilities:
//   - Load configuration from YAML files, environment variables, and CLI flags
//   - Validate configuration on startup
//   - Provide runtime access to all configuration
//   - Support configuration reloading between sessions
//   - Manage sensitive data (LLM API keys)
//   - Establish reasonable defaults
//
// Configuration Sources (priority order, high to low):
//   1. CLI flags (highest priority)
//   2. Environment variables (GUMSHOE_* prefix)
//   3. YAML config files (default: gumshoe.yaml in the working directory)
//   4. Built-in defaults (lowest priority)
//
// Main Configuration Sections:
//
//   1. Workspace
//      - root: Directory scanned for compose/env/config files
//
//   2. Session
//      - max_steps: Probe step budget per debugging session
//
//   3. LLM
//      - base_url: OpenAI-compatible chat completions endpoint
//      - model: Model name
//      - api_key: Bearer token (prefer OPENAI_API_KEY env var)
//      - timeout_seconds: Per-request timeout
//
//   4. Database
//      - path: SQLite file holding finished sessions
//
//   5. Report
//      - dir: Where markdown session reports are written
//
//   6. Logging
//      - level: "debug" | "info" | "warn" | "error"
//      - app_log_path / audit_log_path: Rotated log files
//
// Config struct contains all configuration fields
type Config struct {
	// Workspace configuration
	Workspace struct {
		Root string
	}

	// Session configuration
	Session struct {
		MaxSteps int
	}

	// LLM provider configuration
	LLM struct {
		BaseURL        string
		Model          string
		APIKey         string
		TimeoutSeconds int
	}

	// Database configuration
	Database struct {
		Path string
	}

	// Report configuration
	Report struct {
		Dir string
	}

	// Logging configuration
	Logging struct {
		Level        string
		AppLogPath   string
		AuditLogPath string
		MaxSizeMB    int
		MaxBackups   int
		MaxAgeDays   int
		Compress     bool
	}
}

// ConfigManager defines the interface for configuration access.
type ConfigManager interface {
	// Load loads configuration from all sources.
	Load(ctx context.Context) error

	// Get returns the current configuration.
	Get(ctx context.Context) *Config

	// Validate validates configuration is correct and complete.
	Validate(ctx context.Context) error

	// Watch watches for configuration changes and reloads.
	Watch(ctx context.Context) <-chan Config

	// Reload reloads configuration from sources.
	Reload(ctx context.Context) error
}

// NewConfigManager creates a new configuration manager.
func NewConfigManager(configPath string) (ConfigManager, error) {
	mgr := &viperConfigManager{
		configPath: configPath,
		config:     DefaultConfig(),
		watchChan:  make(chan Config, 1),
	}
	return mgr, nil
}

// NewConfigManagerWithDefaults creates a config manager with the default config path.
func NewConfigManagerWithDefaults() (ConfigManager, error) {
	return NewConfigManager("gumshoe.yaml")
}
