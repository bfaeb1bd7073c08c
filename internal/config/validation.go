package config

import (
	"fmt"
	"net/url"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validate validates the configuration and returns validation errors.
func (c *Config) Validate() []error {
	var errs []error

	// Validate workspace configuration
	if c.Workspace.Root == "" {
		errs = append(errs, &ValidationError{
			Field:   "workspace.root",
			Message: "workspace root is required",
		})
	}

	// Validate session configuration
	if c.Session.MaxSteps < 1 {
		errs = append(errs, &ValidationError{
			Field:   "session.max_steps",
			Message: fmt.Sprintf("max_steps must be at least 1, got %d", c.Session.MaxSteps),
		})
	}

	// Validate LLM configuration
	if c.LLM.BaseURL == "" {
		errs = append(errs, &ValidationError{
			Field:   "llm.base_url",
			Message: "base_url is required",
		})
	} else if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, &ValidationError{
			Field:   "llm.base_url",
			Message: fmt.Sprintf("invalid base_url (expected scheme://host): %s", c.LLM.BaseURL),
		})
	}

	if c.LLM.Model == "" {
		errs = append(errs, &ValidationError{
			Field:   "llm.model",
			Message: "model is required",
		})
	}

	// A missing API key is not fatal. Local OpenAI-compatible servers
	// accept unauthenticated requests, so the client tolerates an empty key.
	if c.LLM.TimeoutSeconds < 1 {
		errs = append(errs, &ValidationError{
			Field:   "llm.timeout_seconds",
			Message: fmt.Sprintf("timeout_seconds must be at least 1, got %d", c.LLM.TimeoutSeconds),
		})
	}

	// Validate database configuration
	if c.Database.Path == "" {
		errs = append(errs, &ValidationError{
			Field:   "database.path",
			Message: "database path is required",
		})
	}

	// Validate report configuration
	if c.Report.Dir == "" {
		errs = append(errs, &ValidationError{
			Field:   "report.dir",
			Message: "report dir is required",
		})
	}

	// Validate logging configuration
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, &ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}

	if c.Logging.MaxSizeMB < 1 {
		errs = append(errs, &ValidationError{
			Field:   "logging.max_size_mb",
			Message: fmt.Sprintf("max_size_mb must be at least 1, got %d", c.Logging.MaxSizeMB),
		})
	}

	return errs
}
