package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"

	"github.com/otter-labs/ottershipper/daemon"
	otterotel "github.com/otter-labs/ottershipper/otel"
	"github.com/otter-labs/ottershipper/server"
	"github.com/otter-labs/ottershipper/service"
	"github.com/otter-labs/ottershipper/store"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the OtterShipper MCP server",
		RunE:  runServe,
	}

	cmd.Flags().String("db", "", "Path to SQLite database (default: ~/.ottershipper/ottershipper.db)")
	cmd.Flags().String("config", "", "Path to ottershipper.yaml config file")
	cmd.Flags().StringP("transport", "t", "", "Transport: stdio or http (default: stdio)")
	cmd.Flags().String("host", "", "HTTP listen host")
	cmd.Flags().IntP("port", "p", 0, "HTTP listen port")
	cmd.Flags().String("checkpoint-schedule", "", "Cron expression for WAL checkpoint maintenance")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveServeConfig(cmd)
	if err != nil {
		return exitError(exitConfig, "%v", err)
	}

	// stdout is the stdio transport's protocol channel, so logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	shutdownTracing, err := setupTracing(cmd.Context())
	if err != nil {
		return exitError(exitRuntime, "initializing tracing: %v", err)
	}
	defer shutdownTracing()

	appStore, err := store.NewSQLiteStore(store.SQLiteStoreConfig{
		DSN:      cfg.Database.Path,
		MaxConns: cfg.Database.MaxConnections,
	})
	if err != nil {
		return exitError(exitStorage, "opening application store: %v", err)
	}
	defer func() {
		_ = appStore.Close()
	}()

	// Schema bootstrap runs before any tool traffic is accepted.
	if err := appStore.Migrate(cmd.Context()); err != nil {
		return exitError(exitStorage, "migrating application store: %v", err)
	}
	logger.Info("application store ready", "path", cfg.Database.Path)

	if schedule := strings.TrimSpace(cfg.Maintenance.CheckpointSchedule); schedule != "" {
		maintenance, err := daemon.NewMaintenance(appStore.DB(), schedule, logger)
		if err != nil {
			return exitError(exitConfig, "invalid checkpoint schedule %q: %v", schedule, err)
		}
		maintenance.Start()
		defer maintenance.Stop()
		logger.Info("database maintenance scheduled", "schedule", schedule)
	}

	observer, err := otterotel.NewToolObserver(
		otelapi.GetMeterProvider().Meter("ottershipper/tool"),
		otelapi.GetTracerProvider().Tracer("ottershipper/tool"),
	)
	if err != nil {
		return exitError(exitRuntime, "initializing tool observability: %v", err)
	}

	svc := service.NewApplicationService(appStore, logger)
	mcpSrv := server.New(server.Config{
		Service:  svc,
		Observer: observer,
		Logger:   logger,
		Version:  Version,
	})

	switch cfg.Transport {
	case daemon.TransportStdio:
		logger.Info("serving MCP over stdio")
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			return exitError(exitRuntime, "stdio server error: %v", err)
		}
		return nil
	case daemon.TransportHTTP:
		return serveHTTP(cmd, mcpSrv, cfg, logger)
	default:
		return exitError(exitConfig, "unknown transport %q", cfg.Transport)
	}
}

func serveHTTP(cmd *cobra.Command, mcpSrv *mcpserver.MCPServer, cfg daemon.Config, logger *slog.Logger) error {
	httpSrv := mcpserver.NewStreamableHTTPServer(mcpSrv)
	addr := net.JoinHostPort(cfg.HTTP.Host, fmt.Sprintf("%d", cfg.HTTP.Port))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving MCP over HTTP", "addr", addr)
		errCh <- httpSrv.Start(addr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return exitError(exitRuntime, "shutdown error: %v", err)
		}
		return nil
	case err := <-errCh:
		if err != nil {
			return exitError(exitRuntime, "server error: %v", err)
		}
		return nil
	}
}

// resolveServeConfig layers flags over the discovered config file over
// defaults, then fills in the database path.
func resolveServeConfig(cmd *cobra.Command) (daemon.Config, error) {
	explicitConfigPath, _ := cmd.Flags().GetString("config")

	configPath, found, err := daemon.DiscoverConfigPath(explicitConfigPath)
	if err != nil {
		return daemon.Config{}, err
	}

	cfg := daemon.DefaultConfig()
	if found {
		cfg, err = daemon.LoadConfig(configPath)
		if err != nil {
			return daemon.Config{}, err
		}
	}

	if cmd.Flags().Changed("transport") {
		cfg.Transport, _ = cmd.Flags().GetString("transport")
	}
	if cmd.Flags().Changed("host") {
		cfg.HTTP.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.HTTP.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("checkpoint-schedule") {
		cfg.Maintenance.CheckpointSchedule, _ = cmd.Flags().GetString("checkpoint-schedule")
	}

	dbPath, _ := cmd.Flags().GetString("db")
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		dbPath = strings.TrimSpace(os.Getenv("OTTERSHIPPER_DB_PATH"))
	}
	if dbPath == "" {
		dbPath = strings.TrimSpace(cfg.Database.Path)
	}
	if dbPath == "" {
		dbPath, err = daemon.DefaultDatabasePath()
		if err != nil {
			return daemon.Config{}, err
		}
	}
	cfg.Database.Path = dbPath

	switch cfg.Transport {
	case daemon.TransportStdio, daemon.TransportHTTP:
	default:
		return daemon.Config{}, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
	return cfg, nil
}
