// Package store persists application records and owns the schema lifecycle.
package store

import (
	"context"
	"errors"
)

// Sentinel errors for store operations.
var (
	ErrInvalidName   = errors.New("invalid application name")
	ErrDuplicateName = errors.New("application name already exists")
	// ErrNotFound is reserved for operations that treat a missing record as a
	// failure. Get/GetByName report absence through their bool result and
	// Delete reports it through its bool result instead.
	ErrNotFound = errors.New("application not found")
)

// Application is a stored application record. Records are immutable after
// creation apart from deletion.
type Application struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"` // milliseconds since epoch
}

// Store provides CRUD operations for application records. Generated fields
// (ID, CreatedAt) are owned by the store: Create returns the persisted row.
type Store interface {
	Create(ctx context.Context, name string) (Application, error)
	Get(ctx context.Context, id string) (Application, bool, error)
	GetByName(ctx context.Context, name string) (Application, bool, error)
	List(ctx context.Context) ([]Application, error)
	Delete(ctx context.Context, id string) (bool, error)
}
