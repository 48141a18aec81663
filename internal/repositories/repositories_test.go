package repositories

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/C0rn3j/BeatSync/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with the schema applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := NewHashCacheRepository(db)
	if err := repo.Init(); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

func TestHashCacheRepository(t *testing.T) {
	t.Run("PutAndLoadAll", func(t *testing.T) {
		repo := NewHashCacheRepository(setupTestDB(t))

		if err := repo.Put("/songs/a", "AAAA"); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if err := repo.Put("/songs/b", "BBBB"); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		entries, err := repo.LoadAll()
		if err != nil {
			t.Fatalf("LoadAll() error = %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("LoadAll() = %d entries, want 2", len(entries))
		}
		if entries["/songs/a"].Hash != "AAAA" {
			t.Errorf("hash for /songs/a = %q, want AAAA", entries["/songs/a"].Hash)
		}
		if entries["/songs/a"].HashedAt.IsZero() {
			t.Error("HashedAt was not recorded")
		}
	})

	t.Run("PutReplacesExisting", func(t *testing.T) {
		repo := NewHashCacheRepository(setupTestDB(t))

		if err := repo.Put("/songs/a", "AAAA"); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if err := repo.Put("/songs/a", "CCCC"); err != nil {
			t.Fatalf("Put() overwrite error = %v", err)
		}

		entries, err := repo.LoadAll()
		if err != nil {
			t.Fatalf("LoadAll() error = %v", err)
		}
		if len(entries) != 1 || entries["/songs/a"].Hash != "CCCC" {
			t.Errorf("LoadAll() after overwrite = %+v, want single CCCC entry", entries)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewHashCacheRepository(setupTestDB(t))

		if err := repo.Put("/songs/a", "AAAA"); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if err := repo.Delete("/songs/a"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		// Deleting an unknown path is not an error.
		if err := repo.Delete("/songs/never-cached"); err != nil {
			t.Errorf("Delete() of unknown path error = %v", err)
		}

		n, err := repo.Count()
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if n != 0 {
			t.Errorf("Count() after delete = %d, want 0", n)
		}
	})

	t.Run("InitIsIdempotent", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewHashCacheRepository(db)
		if err := repo.Init(); err != nil {
			t.Fatalf("second Init() error = %v", err)
		}
	})
}

func TestHashCachePersistsAcrossConnections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	db, err := shared.NewDatabase(path)
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	repo := NewHashCacheRepository(db)
	if err := repo.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := repo.Put("/songs/a", "AAAA"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := shared.NewDatabase(path)
	if err != nil {
		t.Fatalf("NewDatabase() reopen error = %v", err)
	}
	defer reopened.Close()

	entries, err := NewHashCacheRepository(reopened).LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() after reopen error = %v", err)
	}
	if entries["/songs/a"].Hash != "AAAA" {
		t.Errorf("hash after reopen = %q, want AAAA", entries["/songs/a"].Hash)
	}
}
