package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is a thread-safe in-memory application store. It mirrors the
// SQLite store's semantics (validation, name uniqueness, list ordering) for
// tests and embedded use.
type MemStore struct {
	mu     sync.RWMutex
	byID   map[string]Application
	byName map[string]string // name -> id
	now    func() time.Time
}

// NewMemStore creates an empty in-memory application store.
func NewMemStore() *MemStore {
	return &MemStore{
		byID:   make(map[string]Application),
		byName: make(map[string]string),
		now:    time.Now,
	}
}

func (s *MemStore) Create(_ context.Context, name string) (Application, error) {
	if err := ValidateName(name); err != nil {
		return Application{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[name]; exists {
		return Application{}, fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}

	app := Application{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: s.now().UnixMilli(),
	}
	s.byID[app.ID] = app
	s.byName[app.Name] = app.ID
	return app, nil
}

func (s *MemStore) Get(_ context.Context, id string) (Application, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.byID[id]
	return app, ok, nil
}

func (s *MemStore) GetByName(_ context.Context, name string) (Application, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[name]
	if !ok {
		return Application{}, false, nil
	}
	return s.byID[id], true, nil
}

func (s *MemStore) List(_ context.Context) ([]Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	apps := make([]Application, 0, len(s.byID))
	for _, app := range s.byID {
		apps = append(apps, app)
	}
	sort.Slice(apps, func(i, j int) bool {
		if apps[i].CreatedAt != apps[j].CreatedAt {
			return apps[i].CreatedAt > apps[j].CreatedAt
		}
		return apps[i].Name < apps[j].Name
	})
	if len(apps) == 0 {
		return nil, nil
	}
	return apps, nil
}

func (s *MemStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.byID[id]
	if !ok {
		return false, nil
	}
	delete(s.byID, id)
	delete(s.byName, app.Name)
	return true, nil
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)
