package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gumshoe-dev/gumshoe/internal/audit"
	"github.com/gumshoe-dev/gumshoe/internal/config"
)

// Package cli wires the gumshoe commands:
//
//	gumshoe debug "<problem>"   run a debug session
//	gumshoe probes              print the probe catalog
//	gumshoe sessions list|show  inspect persisted sessions
//
// Every command loads configuration the same way: YAML file, GUMSHOE_*
// environment variables, then flags on top.

var configPath string

// NewRootCmd builds the gumshoe command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gumshoe",
		Short: "Debug containerized applications with LLM-guided probes",
		Long: "gumshoe investigates failures in containerized applications by alternating\n" +
			"deterministic introspection probes (container state, logs, volumes, network,\n" +
			"config files) with an LLM that proposes hypotheses, picks the next probe,\n" +
			"and decides when enough evidence has been gathered.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "gumshoe.yaml", "path to the config file")

	root.AddCommand(newDebugCmd())
	root.AddCommand(newProbesCmd())
	root.AddCommand(newSessionsCmd())
	return root
}

// Execute runs the CLI and returns a process exit code.
func Execute() int {
	// A .env next to the binary is a convenient place for OPENAI_API_KEY.
	_ = godotenv.Load()

	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig loads and validates configuration for one command run.
func loadConfig(ctx context.Context) (*config.Config, error) {
	mgr, err := config.NewConfigManager(configPath)
	if err != nil {
		return nil, err
	}
	if err := mgr.Load(ctx); err != nil {
		return nil, err
	}
	if err := mgr.Validate(ctx); err != nil {
		return nil, err
	}
	return mgr.Get(ctx), nil
}

// newAuditLogger builds the dual app/audit logger from config.
func newAuditLogger(cfg *config.Config) (audit.Logger, error) {
	return audit.NewLogger(&audit.Config{
		AuditLogPath: cfg.Logging.AuditLogPath,
		AppLogPath:   cfg.Logging.AppLogPath,
		MaxSize:      cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAge:       cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		LogLevel:     cfg.Logging.Level,
	})
}

// llmTimeout converts the configured timeout to a duration.
func llmTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
}
