package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gumshoe-dev/gumshoe/internal/config"
	"github.com/gumshoe-dev/gumshoe/internal/dockerx"
	"github.com/gumshoe-dev/gumshoe/internal/loop"
	"github.com/gumshoe-dev/gumshoe/internal/probe"
	"github.com/gumshoe-dev/gumshoe/internal/probes"
	"github.com/gumshoe-dev/gumshoe/internal/reasoner"
	"github.com/gumshoe-dev/gumshoe/internal/session"
)

func newDebugCmd() *cobra.Command {
	var (
		workspaceRoot string
		maxSteps      int
		model         string
		baseURL       string
		noSave        bool
	)

	cmd := &cobra.Command{
		Use:   "debug <problem description>",
		Short: "Run a debug session for the given problem",
		Example: `  gumshoe debug "the web container keeps restarting"
  gumshoe debug --max-steps 8 "api returns 502 after deploy"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("workspace") {
				cfg.Workspace.Root = workspaceRoot
			}
			if cmd.Flags().Changed("max-steps") {
				cfg.Session.MaxSteps = maxSteps
			}
			if cmd.Flags().Changed("model") {
				cfg.LLM.Model = model
			}
			if cmd.Flags().Changed("base-url") {
				cfg.LLM.BaseURL = baseURL
			}

			logger, err := newAuditLogger(cfg)
			if err != nil {
				return fmt.Errorf("init logging: %w", err)
			}
			defer logger.Close()
			log := logger.App()

			engine, err := dockerx.NewEngine()
			if err != nil {
				return fmt.Errorf("connect to container engine: %w", err)
			}
			defer engine.Close()

			registry, err := probes.BuildRegistry()
			if err != nil {
				return fmt.Errorf("build probe registry: %w", err)
			}

			cache := dockerx.NewContainerCache(engine, log)
			invoker := probe.NewInvoker(registry, cache, engine, cfg.Workspace.Root, log)
			resolver := probe.NewResolver(registry, invoker, cfg.Workspace.Root, log)

			brain := reasoner.NewClient(reasoner.Config{
				BaseURL: cfg.LLM.BaseURL,
				Model:   cfg.LLM.Model,
				APIKey:  cfg.LLM.APIKey,
				Timeout: llmTimeout(cfg),
			}, log)

			out := cmd.OutOrStdout()
			l, err := loop.New(loop.Options{
				Registry:      registry,
				Invoker:       invoker,
				Resolver:      resolver,
				Reasoner:      brain,
				Audit:         logger,
				Log:           log,
				WorkspaceRoot: cfg.Workspace.Root,
				MaxSteps:      cfg.Session.MaxSteps,
				Hooks: loop.Hooks{
					OnStep: func(step int, activity string) {
						fmt.Fprintf(out, "[step %d/%d] %s\n", step, cfg.Session.MaxSteps, activity)
					},
					OnProbeDone: func(step int, probeName string, success bool) {
						status := "ok"
						if !success {
							status = "failed"
						}
						fmt.Fprintf(out, "[step %d/%d] probe %s: %s\n", step, cfg.Session.MaxSteps, probeName, status)
					},
					OnFinding: func(finding string) {
						fmt.Fprintf(out, "  finding: %s\n", finding)
					},
					OnStopDecision: func(d reasoner.StopDecision) {
						if d.ShouldStop {
							fmt.Fprintf(out, "  stopping: %s\n", d.Reasoning)
						}
					},
				},
			})
			if err != nil {
				return err
			}

			problem := strings.Join(args, " ")
			sess, runErr := l.Run(ctx, problem)
			if sess == nil {
				return runErr
			}

			report := session.RenderReport(sess)
			fmt.Fprintln(out)
			fmt.Fprint(out, report)

			if !noSave {
				if err := persistSession(cfg, sess, report, log); err != nil {
					log.Warn("could not persist session", zap.Error(err))
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: session not persisted: %v\n", err)
				} else {
					fmt.Fprintf(out, "\nSession saved as %s\n", sess.ID)
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&workspaceRoot, "workspace", ".", "directory scanned for compose/env/config files")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 15, "probe step budget for the session")
	cmd.Flags().StringVar(&model, "model", "", "LLM model name")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "OpenAI-compatible endpoint")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not persist the session or its report")
	return cmd
}

// persistSession writes the markdown report and saves the session to
// the SQLite store.
func persistSession(cfg *config.Config, sess *session.DebugSession, report string, log *zap.Logger) error {
	if err := os.MkdirAll(cfg.Report.Dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	reportPath := filepath.Join(cfg.Report.Dir, sess.ID+".md")
	if err := os.WriteFile(reportPath, []byte(report), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.Info("report written", zap.String("path", reportPath))

	store, err := session.NewStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()
	return store.SaveSession(context.Background(), sess, report)
}
