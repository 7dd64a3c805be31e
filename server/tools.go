package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	otterotel "github.com/otter-labs/ottershipper/otel"
	"github.com/otter-labs/ottershipper/service"
	"github.com/otter-labs/ottershipper/store"
)

// appPayload is the wire shape of an application inside tool results.
type appPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

type createAppResult struct {
	Success     bool       `json:"success"`
	Application appPayload `json:"application"`
	Message     string     `json:"message"`
}

type listAppsResult struct {
	Success      bool         `json:"success"`
	Applications []appPayload `json:"applications"`
	Count        int          `json:"count"`
}

// CreateAppTool creates application records.
type CreateAppTool struct {
	service  *service.ApplicationService
	logger   *slog.Logger
	observer *otterotel.ToolObserver
}

// NewCreateAppTool builds the otter_create_app tool.
func NewCreateAppTool(svc *service.ApplicationService, logger *slog.Logger, observer *otterotel.ToolObserver) *CreateAppTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreateAppTool{service: svc, logger: logger, observer: observer}
}

// Definition returns the MCP tool descriptor.
func (t *CreateAppTool) Definition() mcp.Tool {
	return mcp.NewTool("otter_create_app",
		mcp.WithDescription("Create a new application in OtterShipper. Returns the application ID, name, and creation timestamp."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Application name (alphanumeric, hyphens, underscores, max 255 chars). Must start with alphanumeric character."),
		),
	)
}

// Handle creates the application and shapes the success payload. Any failure
// is returned as a handler error: the SDK reports it as a protocol-level
// internal error whose message carries the underlying reason. Validation and
// duplicate-name failures deliberately share that generic classification —
// existing consumers depend on the uniform code.
func (t *CreateAppTool) Handle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()

	name, err := request.RequireString("name")
	if err != nil {
		t.observer.ObserveCall("otter_create_app", false, "bad_arguments", time.Since(start))
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	t.logger.Info("creating application", "name", name)

	app, err := t.service.CreateApp(ctx, name)
	if err != nil {
		t.observer.ObserveCall("otter_create_app", false, errorKind(err), time.Since(start))
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	result := createAppResult{
		Success: true,
		Application: appPayload{
			ID:        app.ID,
			Name:      app.Name,
			CreatedAt: app.CreatedAt,
		},
		Message: fmt.Sprintf("Successfully created application '%s' with ID %s", app.Name, app.ID),
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		t.observer.ObserveCall("otter_create_app", false, "internal", time.Since(start))
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	t.observer.ObserveCall("otter_create_app", true, "", time.Since(start))
	return mcp.NewToolResultText(string(payload)), nil
}

// ListAppsTool lists all application records.
type ListAppsTool struct {
	service  *service.ApplicationService
	logger   *slog.Logger
	observer *otterotel.ToolObserver
}

// NewListAppsTool builds the otter_list_apps tool.
func NewListAppsTool(svc *service.ApplicationService, logger *slog.Logger, observer *otterotel.ToolObserver) *ListAppsTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListAppsTool{service: svc, logger: logger, observer: observer}
}

// Definition returns the MCP tool descriptor.
func (t *ListAppsTool) Definition() mcp.Tool {
	return mcp.NewTool("otter_list_apps",
		mcp.WithDescription("List all applications in OtterShipper. Returns an array of applications with their IDs, names, and creation timestamps."),
	)
}

// Handle lists applications newest first. An empty store is a success with an
// empty array and count 0.
func (t *ListAppsTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()

	t.logger.Info("listing all applications")

	apps, err := t.service.ListApps(ctx)
	if err != nil {
		t.observer.ObserveCall("otter_list_apps", false, errorKind(err), time.Since(start))
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}

	payloads := make([]appPayload, 0, len(apps))
	for _, app := range apps {
		payloads = append(payloads, appPayload{
			ID:        app.ID,
			Name:      app.Name,
			CreatedAt: app.CreatedAt,
		})
	}

	result := listAppsResult{
		Success:      true,
		Applications: payloads,
		Count:        len(payloads),
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		t.observer.ObserveCall("otter_list_apps", false, "internal", time.Since(start))
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}

	t.observer.ObserveCall("otter_list_apps", true, "", time.Since(start))
	return mcp.NewToolResultText(string(payload)), nil
}

// errorKind labels a store error for observability attributes.
func errorKind(err error) string {
	switch {
	case errors.Is(err, store.ErrInvalidName):
		return "invalid_name"
	case errors.Is(err, store.ErrDuplicateName):
		return "duplicate_name"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	default:
		return "storage"
	}
}
