// Package service holds the application-level API used by the tool surface.
package service

import (
	"context"
	"log/slog"

	"github.com/otter-labs/ottershipper/store"
)

// ApplicationService sits between the tool surface and the record store.
// Today it only delegates; future business rules (quotas, auditing,
// soft-delete) attach here without touching the tool contract. Store errors
// and absence semantics pass through unchanged.
type ApplicationService struct {
	store  store.Store
	logger *slog.Logger
}

// NewApplicationService creates a service over the given store. A nil logger
// falls back to slog.Default().
func NewApplicationService(st store.Store, logger *slog.Logger) *ApplicationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ApplicationService{
		store:  st,
		logger: logger,
	}
}

// CreateApp creates a new application record.
func (s *ApplicationService) CreateApp(ctx context.Context, name string) (store.Application, error) {
	s.logger.Info("creating application", "name", name)
	return s.store.Create(ctx, name)
}

// GetApp looks up an application by id.
func (s *ApplicationService) GetApp(ctx context.Context, id string) (store.Application, bool, error) {
	return s.store.Get(ctx, id)
}

// GetAppByName looks up an application by name.
func (s *ApplicationService) GetAppByName(ctx context.Context, name string) (store.Application, bool, error) {
	return s.store.GetByName(ctx, name)
}

// ListApps returns all applications, newest first.
func (s *ApplicationService) ListApps(ctx context.Context) ([]store.Application, error) {
	return s.store.List(ctx)
}

// DeleteApp removes an application by id and reports whether it existed.
func (s *ApplicationService) DeleteApp(ctx context.Context, id string) (bool, error) {
	s.logger.Info("deleting application", "id", id)
	return s.store.Delete(ctx, id)
}
