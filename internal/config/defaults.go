package config

// DefaultConfig returns a configuration with all default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Workspace defaults
	cfg.Workspace.Root = "."

	// Session defaults
	cfg.Session.MaxSteps = 15

	// LLM defaults
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o"
	cfg.LLM.APIKey = ""
	cfg.LLM.TimeoutSeconds = 120

	// Database defaults
	cfg.Database.Path = "gumshoe.db"

	// Report defaults
	cfg.Report.Dir = "reports"

	// Logging defaults
	cfg.Logging.Level = "info"
	cfg.Logging.AppLogPath = "logs/gumshoe.log"
	cfg.Logging.AuditLogPath = "logs/audit.log"
	cfg.Logging.MaxSizeMB = 50
	cfg.Logging.MaxBackups = 5
	cfg.Logging.MaxAgeDays = 30
	cfg.Logging.Compress = true

	return cfg
}
