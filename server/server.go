// Package server wires the application service onto the MCP tool surface.
package server

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	otterotel "github.com/otter-labs/ottershipper/otel"
	"github.com/otter-labs/ottershipper/service"
)

// Config holds MCP server dependencies.
type Config struct {
	Service *service.ApplicationService
	// Observer is optional; nil disables tool instrumentation.
	Observer *otterotel.ToolObserver
	Logger   *slog.Logger
	Version  string
}

// New constructs the MCP server with both application tools registered.
func New(cfg Config) *server.MCPServer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := server.NewMCPServer(
		"ottershipper",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	createTool := NewCreateAppTool(cfg.Service, logger, cfg.Observer)
	s.AddTool(createTool.Definition(), createTool.Handle)

	listTool := NewListAppsTool(cfg.Service, logger, cfg.Observer)
	s.AddTool(listTool.Definition(), listTool.Handle)

	return s
}
