package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "applications.db")
	s, err := NewSQLiteStore(SQLiteStoreConfig{DSN: path})
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return s
}

func TestSQLiteStore_CreateRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	created, err := s.Create(ctx, "my-app")
	if err != nil {
		t.Fatalf("Create: unexpected error: %v", err)
	}
	if created.ID == "" {
		t.Fatal("Create: expected non-empty generated id")
	}
	if created.Name != "my-app" {
		t.Fatalf("Create: name = %q, want %q", created.Name, "my-app")
	}
	if created.CreatedAt == 0 {
		t.Fatal("Create: expected non-zero created_at")
	}

	byID, ok, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("Get: expected ok=true")
	}
	if byID != created {
		t.Fatalf("Get: got %+v, want %+v", byID, created)
	}

	byName, ok, err := s.GetByName(ctx, "my-app")
	if err != nil {
		t.Fatalf("GetByName: unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("GetByName: expected ok=true")
	}
	if byName != created {
		t.Fatalf("GetByName: got %+v, want %+v", byName, created)
	}
}

func TestSQLiteStore_DuplicateName(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	if _, err := s.Create(ctx, "my-app"); err != nil {
		t.Fatalf("Create: unexpected error: %v", err)
	}
	_, err := s.Create(ctx, "my-app")
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("Create duplicate: got %v, want ErrDuplicateName", err)
	}
}

func TestSQLiteStore_InvalidNameNotPersisted(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	for _, name := range []string{"", "-app", "my app"} {
		if _, err := s.Create(ctx, name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("Create(%q): got %v, want ErrInvalidName", name, err)
		}
	}

	apps, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: unexpected error: %v", err)
	}
	if len(apps) != 0 {
		t.Fatalf("List: got %d rows after rejected creates, want 0", len(apps))
	}
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get missing: got ok=%v err=%v, want ok=false err=nil", ok, err)
	}
	if _, ok, err := s.GetByName(ctx, "missing"); err != nil || ok {
		t.Fatalf("GetByName missing: got ok=%v err=%v, want ok=false err=nil", ok, err)
	}
}

func TestSQLiteStore_DeleteSemantics(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	created, err := s.Create(ctx, "my-app")
	if err != nil {
		t.Fatalf("Create: unexpected error: %v", err)
	}

	removed, err := s.Delete(ctx, created.ID)
	if err != nil {
		t.Fatalf("Delete: unexpected error: %v", err)
	}
	if !removed {
		t.Fatal("Delete existing: got false, want true")
	}

	if _, ok, _ := s.Get(ctx, created.ID); ok {
		t.Fatal("Get after delete: record still exists")
	}

	removed, err = s.Delete(ctx, created.ID)
	if err != nil {
		t.Fatalf("Delete again: unexpected error: %v", err)
	}
	if removed {
		t.Fatal("Delete nonexistent: got true, want false")
	}
}

func TestSQLiteStore_ListOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	// Pin the clock so creation times and ties are deterministic.
	base := time.UnixMilli(1_700_000_000_000)
	clock := base
	s.now = func() time.Time { return clock }

	mustCreate := func(name string) {
		t.Helper()
		if _, err := s.Create(ctx, name); err != nil {
			t.Fatalf("Create(%q): unexpected error: %v", name, err)
		}
	}

	mustCreate("oldest")
	clock = base.Add(time.Second)
	// Two records share the same timestamp; names break the tie ascending.
	mustCreate("tie-b")
	mustCreate("tie-a")
	clock = base.Add(2 * time.Second)
	mustCreate("newest")

	apps, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: unexpected error: %v", err)
	}

	want := []string{"newest", "tie-a", "tie-b", "oldest"}
	if len(apps) != len(want) {
		t.Fatalf("List: got %d rows, want %d", len(apps), len(want))
	}
	for i, name := range want {
		if apps[i].Name != name {
			t.Fatalf("List[%d] = %q, want %q (full order %+v)", i, apps[i].Name, name, apps)
		}
	}
}

func TestSQLiteStore_ConcurrentCreateSameName(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	const workers = 8
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Create(ctx, "contested")
		}(i)
	}
	wg.Wait()

	var successes, duplicates int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrDuplicateName):
			duplicates++
		default:
			t.Fatalf("unexpected error under race: %v", err)
		}
	}
	if successes != 1 || duplicates != workers-1 {
		t.Fatalf("got %d successes and %d duplicates, want 1 and %d", successes, duplicates, workers-1)
	}

	apps, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: unexpected error: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("List after race: got %d rows, want 1", len(apps))
	}
}

func TestSQLiteStore_MigrateIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "applications.db")

	s, err := NewSQLiteStore(SQLiteStoreConfig{DSN: path})
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := s.Migrate(ctx); err != nil {
			t.Fatalf("Migrate() call %d error = %v", i+1, err)
		}
	}
	if _, err := s.Create(ctx, "my-app"); err != nil {
		t.Fatalf("Create after repeated migrate: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopening against the same file must also be a no-op bootstrap.
	reopened, err := NewSQLiteStore(SQLiteStoreConfig{DSN: path})
	if err != nil {
		t.Fatalf("NewSQLiteStore() reopen error = %v", err)
	}
	t.Cleanup(func() {
		_ = reopened.Close()
	})
	if err := reopened.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() after reopen error = %v", err)
	}

	apps, err := reopened.List(ctx)
	if err != nil {
		t.Fatalf("List after reopen: %v", err)
	}
	if len(apps) != 1 || apps[0].Name != "my-app" {
		t.Fatalf("List after reopen: got %+v, want the single my-app row", apps)
	}
}
