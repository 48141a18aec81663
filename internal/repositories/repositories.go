// package repositories provides the persistence layer for the hash
// side-cache.
//
// The cache is a single SQLite table mapping an install path to the content
// hash computed for it, so unchanged songs are never re-hashed across runs.
package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

const hashCacheSchema = `
CREATE TABLE IF NOT EXISTS hash_cache (
	path      TEXT PRIMARY KEY,
	hash      TEXT NOT NULL,
	hashed_at TIMESTAMP NOT NULL
);
`

// CachedHash is one row of the hash side-cache.
type CachedHash struct {
	Path     string
	Hash     string
	HashedAt time.Time
}

// HashCacheRepository reads and writes the hash side-cache table.
type HashCacheRepository struct {
	db *sql.DB
}

// NewHashCacheRepository creates a repository backed by the given database.
func NewHashCacheRepository(db *sql.DB) *HashCacheRepository {
	return &HashCacheRepository{db: db}
}

// Init creates the hash_cache table if it does not exist.
func (r *HashCacheRepository) Init() error {
	if _, err := r.db.Exec(hashCacheSchema); err != nil {
		return fmt.Errorf("failed to create hash_cache table: %w", err)
	}
	return nil
}

// LoadAll returns every cached entry keyed by install path.
func (r *HashCacheRepository) LoadAll() (map[string]CachedHash, error) {
	rows, err := r.db.Query(`SELECT path, hash, hashed_at FROM hash_cache`)
	if err != nil {
		return nil, fmt.Errorf("failed to query hash_cache: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]CachedHash)
	for rows.Next() {
		var entry CachedHash
		if err := rows.Scan(&entry.Path, &entry.Hash, &entry.HashedAt); err != nil {
			return nil, fmt.Errorf("failed to scan hash_cache row: %w", err)
		}
		entries[entry.Path] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hash_cache rows: %w", err)
	}

	return entries, nil
}

// Put inserts or replaces the cached hash for an install path.
func (r *HashCacheRepository) Put(path, hash string) error {
	query := `INSERT OR REPLACE INTO hash_cache (path, hash, hashed_at) VALUES (?, ?, ?)`
	if _, err := r.db.Exec(query, path, hash, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert hash_cache entry: %w", err)
	}
	return nil
}

// Delete removes the cached hash for an install path. Deleting a path that
// was never cached is not an error.
func (r *HashCacheRepository) Delete(path string) error {
	if _, err := r.db.Exec(`DELETE FROM hash_cache WHERE path = ?`, path); err != nil {
		return fmt.Errorf("failed to delete hash_cache entry: %w", err)
	}
	return nil
}

// Count returns the number of cached entries.
func (r *HashCacheRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM hash_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count hash_cache entries: %w", err)
	}
	return n, nil
}
