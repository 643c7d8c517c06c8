package cli

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/synthesishq/synthesis-agent/internal/auth"
	"github.com/synthesishq/synthesis-agent/internal/bridge"
	"github.com/synthesishq/synthesis-agent/internal/browserurl"
	"github.com/synthesishq/synthesis-agent/internal/capture"
	"github.com/synthesishq/synthesis-agent/internal/config"
	"github.com/synthesishq/synthesis-agent/internal/logging"
	"github.com/synthesishq/synthesis-agent/internal/metrics"
	"github.com/synthesishq/synthesis-agent/internal/store"
	"github.com/synthesishq/synthesis-agent/internal/windowctx"
)

// agentCmd represents the agent command
var agentCmd = &cobra.Command{
	Use:     "agent",
	Aliases: []string{"run", "daemon"},
	Short:   "Run the capture agent",
	Long: `Run the long-lived capture agent.

The agent owns the OAuth session, the refresh timer and the capture
pipeline, and serves the loopback bridge that the other commands and
second app instances talk to.

Example:
  synthesis-agent agent --config config.yaml --db ./data/synthesis.db`,
	RunE: runAgent,
}

var agentFlags struct {
	Host     string
	Port     int
	DeepLink string
}

func init() {
	agentCmd.Flags().StringVar(&agentFlags.Host, "host", "", "Bridge host (overrides config)")
	agentCmd.Flags().IntVar(&agentFlags.Port, "port", 0, "Bridge port (overrides config)")
	agentCmd.Flags().StringVar(&agentFlags.DeepLink, "deep-link", "", "Deep link URL delivered at launch")

	RootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	if globalFlags.Verbose {
		log.Println("Starting Synthesis agent...")
		log.Printf("Config path: %s", globalFlags.Config)
		log.Printf("Database path: %s", globalFlags.DBPath)
	}

	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if agentFlags.Host != "" {
		cfg.Agent.BridgeHost = agentFlags.Host
	}
	if agentFlags.Port != 0 {
		cfg.Agent.BridgePort = agentFlags.Port
	}

	logger := logging.NewLogger(logging.WithLevel(logging.LogLevel(cfg.Agent.LogLevel)))
	m := metrics.NewMetrics("synthesis")

	sqliteStore, err := store.NewSQLiteStore(globalFlags.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open token store: %w", err)
	}
	defer func() {
		if err := sqliteStore.Close(); err != nil {
			logger.Error("error closing store", "error", err.Error())
		}
	}()

	hub := bridge.NewSurfaceHub(logger)
	flow := auth.NewFlow(cfg.Auth, sqliteStore, auth.ExecOpener{}, hub, m, logger)

	// A deep link handed to a cold-launched process is cached here and
	// replayed exactly once after the bridge is up.
	if agentFlags.DeepLink != "" {
		if err := flow.HandleDeepLink(cmd.Context(), agentFlags.DeepLink); err != nil {
			logger.Warn("cold-launch deep link rejected", "error", err.Error())
		}
	}

	// Re-arm the proactive refresh for a session that survived a restart.
	if expiry := flow.SessionExpiry(); !expiry.IsZero() {
		flow.Scheduler().Arm(auth.RefreshDelay(time.Until(expiry).Milliseconds()))
		logger.Info("existing session found, refresh scheduled", "expires_at", expiry.UTC().Format(time.RFC3339))
	}

	scripts := browserurl.NewOsascriptRunner(logger)
	session := browserurl.NewSessionFileResolver(logger)
	urls := browserurl.NewResolver(scripts, browserurl.UnavailableAXReader{}, session, logger, m)

	helper := cfg.Capture.WindowHelper
	enum := windowctx.NewHelperEnumerator(helper.Path, helper.Mode, helper.ExcludeApp, logger)
	resolver := windowctx.NewResolver(enum, urls, logger, m)

	temp := capture.NewTempFiles("", cfg.Capture.TempPrefix, m, logger)
	if swept := temp.SweepOrphans(); swept > 0 && globalFlags.Verbose {
		log.Printf("Swept %d orphaned temp files", swept)
	}

	uploader := capture.NewUploader(cfg.Upload.URL, cfg.Upload.Timeout, logger)
	tokens := &capture.SurfaceFirstTokenSource{Hub: hub, Fallback: flow}
	shooter := &capture.CommandScreenshotter{Command: cfg.Capture.ScreenshotCommand}
	selector := &capture.CommandRegionSelector{Command: cfg.Capture.OverlayCommand}

	orch := capture.NewOrchestrator(cfg.Capture, shooter, selector, resolver, tokens, uploader, sqliteStore, temp, m, logger)
	server := bridge.NewServer(cfg.Agent, flow, orch, hub, sqliteStore, m, logger)

	loader.SetOnChange(func(updated *config.Config) {
		logger.Info("configuration reloaded", "version", updated.Version)
	})
	if err := loader.StartWatcher(); err != nil {
		logger.Warn("config watcher unavailable", "error", err.Error())
	}
	defer loader.StopWatcher()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Run()
	}()

	if replayed, err := flow.ReplayCachedDeepLink(ctx); err != nil {
		logger.Warn("cached deep link failed", "error", err.Error())
	} else if replayed {
		logger.Info("cold-launch deep link processed")
	}

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("bridge server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Agent.ShutdownTimeout)
	defer cancel()

	flow.Scheduler().Cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("bridge shutdown error", "error", err.Error())
	}
	orch.Wait()
	return nil
}
