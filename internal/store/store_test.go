package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"sehri-go/internal/sehri"
)

// backends returns one fresh instance of every store that needs no network.
func backends(t *testing.T) map[string]sehri.Store {
	t.Helper()

	fs, err := NewFileSystemStore(filepath.Join(t.TempDir(), "kv"))
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	db, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return map[string]sehri.Store{
		"memory":     NewMemoryStore(),
		"filesystem": fs,
		"sqlite":     db,
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	keys := []string{
		"reminder.active",
		"schedule:2026-03-01|23.81,90.41|m2-s1",
		"calendar:h1447-09|23.81,90.41|m2-s1|adj-1",
		"location/with/slashes",
	}

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range keys {
				if _, ok, err := s.Get(ctx, key); err != nil || ok {
					t.Fatalf("Get(%q) before Set = ok %v, err %v; want missing", key, ok, err)
				}

				if err := s.Set(ctx, key, `{"v":1}`); err != nil {
					t.Fatalf("Set(%q) error = %v", key, err)
				}
				if err := s.Set(ctx, key, `{"v":2}`); err != nil {
					t.Fatalf("Set(%q) overwrite error = %v", key, err)
				}

				got, ok, err := s.Get(ctx, key)
				if err != nil || !ok {
					t.Fatalf("Get(%q) = ok %v, err %v", key, ok, err)
				}
				if got != `{"v":2}` {
					t.Errorf("Get(%q) = %q, want %q", key, got, `{"v":2}`)
				}

				if err := s.Delete(ctx, key); err != nil {
					t.Fatalf("Delete(%q) error = %v", key, err)
				}
				if err := s.Delete(ctx, key); err != nil {
					t.Errorf("second Delete(%q) error = %v", key, err)
				}
				if _, ok, _ := s.Get(ctx, key); ok {
					t.Errorf("Get(%q) after Delete reported present", key)
				}
			}
		})
	}
}

func TestMemoryStore_Len(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Set(ctx, "a", "1")
	s.Set(ctx, "b", "2")
	s.Set(ctx, "a", "3")
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestFileSystemStore_SetLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileSystemStore(root)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := s.Set(context.Background(), "reminder.active", "x"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("store root has %d entries, want 1", len(entries))
	}
}

func TestFileSystemStore_ValidateSetup(t *testing.T) {
	root := filepath.Join(t.TempDir(), "kv")
	s, err := NewFileSystemStore(root)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	if err := s.ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}

	os.RemoveAll(root)
	if err := os.WriteFile(root, []byte("not a dir"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := s.ValidateSetup(); err == nil {
		t.Error("ValidateSetup() on a regular file expected error")
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sehri.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := s.Set(ctx, "location.saved", `{"latitude":24.89}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	s.Close()

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen NewSQLiteStore() error = %v", err)
	}
	defer s.Close()
	got, ok, err := s.Get(ctx, "location.saved")
	if err != nil || !ok {
		t.Fatalf("Get() after reopen = ok %v, err %v", ok, err)
	}
	if got != `{"latitude":24.89}` {
		t.Errorf("Get() = %q", got)
	}
}
