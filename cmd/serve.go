package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/faceauth"
	"github.com/kozaktomas/facegate/internal/metrics"
	"github.com/kozaktomas/facegate/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service",
	Long: `Start the facegate HTTP service.
Exposes POST /enroll_face and POST /verify_face, plus /health, /ready
and /metrics for operators.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides config and PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides config)")
}

// resolveServeHostPort applies PORT and the command flags on top of the loaded config.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) {
	cfg.Server.Port = config.PortFromEnv(cfg.Server.Port)
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Server.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Server.Host = host
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, log, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	resolveServeHostPort(cmd, cfg)

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer closeCancel()
		if err := store.Close(closeCtx); err != nil {
			log.Warn("closing store", zap.Error(err))
		}
	}()

	engine, err := openEngine(cfg, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	mgr := metrics.NewManager(metrics.WithRuntimeCollectors())
	svc := faceauth.NewService(store, engine, serviceOptions(cfg, mgr), log.Named("faceauth"))

	server := web.NewServer(cfg, svc, store, mgr, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		log.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("error during shutdown", zap.Error(err))
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Starting facegate on http://%s\n", cfg.Server.Addr())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
