package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/generator"
	"github.com/teranos/threatbrief/logger"
	"github.com/teranos/threatbrief/metrics"
	"github.com/teranos/threatbrief/server"
	"github.com/teranos/threatbrief/server/wslogs"
)

// ServeCmd starts the report HTTP server
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the report HTTP server",
	Long: `Start the HTTP server exposing POST /generator/generate-report,
POST /generator/upload, the /generator/stream WebSocket, and /health.

The first Ctrl+C drains in-flight runs for up to
server.shutdown_timeout_seconds; a second Ctrl+C exits immediately.`,
	RunE: runServe,
}

var servePort int

func init() {
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides server.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Default to Info for the server
	verbosity, _ := cmd.Flags().GetCount("verbose")
	if verbosity == 0 {
		verbosity = 1
		_ = logger.Initialize(logger.JSONOutput, logger.VerbosityToLevel(verbosity))
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
	}
	// Stream clients receive their run's Info+ log lines
	hub := wslogs.NewHub()
	base := zap.New(zapcore.NewTee(
		logger.Logger.Desugar().Core(),
		wslogs.NewRunCore(zapcore.InfoLevel, hub),
	)).Sugar()

	svc, err := generator.NewFromConfig(cfg, collector, base.Named("generator"))
	if err != nil {
		return err
	}
	srv := server.New(cfg, svc, collector, logger.ComponentLogger("server"), server.WithLogHub(hub))

	if !logger.JSONOutput {
		printStartupBanner(cmd.OutOrStdout(), verbosity, cfg)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return errors.Wrap(err, "server stopped")
	case <-sigChan:
		pterm.Info.Println("Shutting down gracefully (press Ctrl+C again to force)...")
		cancel()

		select {
		case err := <-errChan:
			if err != nil {
				return errors.Wrap(err, "shutdown error")
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			pterm.Warning.Println("Force shutdown - exiting immediately")
			os.Exit(1)
			return nil
		}
	}
}
