// package hasher computes content hashes for installed songs and maintains
// the known-identity set backed by a durable side-cache.
//
// A song's hash is the SHA-1 digest of its manifest (Info.dat) followed by
// every beatmap file the manifest references, in manifest order. The digest
// is order-sensitive so it reproduces the hash remote catalogs advertise.
package hasher

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/C0rn3j/BeatSync/internal/repositories"
	"github.com/C0rn3j/BeatSync/internal/shared"
)

// ManifestName is the fixed manifest file name inside every song directory.
const ManifestName = "Info.dat"

// CacheStore is the durable side-cache mapping install paths to hashes.
// Implemented by repositories.HashCacheRepository.
type CacheStore interface {
	LoadAll() (map[string]repositories.CachedHash, error)
	Put(path, hash string) error
}

type songManifest struct {
	SongName              string `json:"_songName"`
	LevelAuthorName       string `json:"_levelAuthorName"`
	DifficultyBeatmapSets []struct {
		DifficultyBeatmaps []struct {
			BeatmapFilename string `json:"_beatmapFilename"`
		} `json:"_difficultyBeatmaps"`
	} `json:"_difficultyBeatmapSets"`
}

// SongHasher resolves content identities for song directories and remembers
// every identity it has seen. Safe for concurrent use.
type SongHasher struct {
	songsDir string
	cache    CacheStore
	logger   *log.Logger

	mu     sync.RWMutex
	byHash map[string]string // hash -> install path
	byPath map[string]string // install path -> hash
}

// New creates a SongHasher for the given library directory. cache may be nil,
// in which case hashes are only remembered in memory for the current run.
func New(songsDir string, cache CacheStore, logger *log.Logger) *SongHasher {
	return &SongHasher{
		songsDir: songsDir,
		cache:    cache,
		logger:   logger,
		byHash:   make(map[string]string),
		byPath:   make(map[string]string),
	}
}

// LoadCache primes the in-memory maps from the side-cache. An unreadable
// cache is treated as empty, never as a startup failure. Returns the number
// of entries loaded.
func (h *SongHasher) LoadCache() int {
	if h.cache == nil {
		return 0
	}
	entries, err := h.cache.LoadAll()
	if err != nil {
		h.logger.Warn("hash cache unreadable, starting empty", "error", err)
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for path, entry := range entries {
		h.byPath[path] = entry.Hash
		h.byHash[entry.Hash] = path
	}
	return len(entries)
}

// AddMissingHashes hashes every song directory under the library that has no
// cached hash yet. Directories without a manifest are skipped. Returns the
// number of directories hashed.
func (h *SongHasher) AddMissingHashes(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(h.songsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read songs directory: %w", err)
	}

	added := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return added, err
		}
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(h.songsDir, entry.Name())

		h.mu.RLock()
		_, known := h.byPath[dir]
		h.mu.RUnlock()
		if known {
			continue
		}

		hash, err := h.GetSongHashData(dir)
		if err != nil {
			if errors.Is(err, shared.ErrMissingManifest) {
				h.logger.Debug("not a song directory, skipping", "dir", dir)
			} else {
				h.logger.Warn("failed to hash song directory", "dir", dir, "error", err)
			}
			continue
		}
		h.AddHash(dir, hash)
		added++
	}
	return added, nil
}

// GetSongHashData computes the content hash for a single song directory.
// A directory without a manifest yields shared.ErrMissingManifest; callers
// must treat that as "not a song", not as a failure. Referenced beatmap
// files that cannot be read are logged and skipped, which still produces a
// hash (one that differs from a complete read).
func (h *SongHasher) GetSongHashData(dir string) (string, error) {
	manifestPath := filepath.Join(dir, ManifestName)
	manifestBytes, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", shared.ErrMissingManifest, dir)
		}
		return "", fmt.Errorf("failed to read manifest %s: %w", manifestPath, err)
	}

	var manifest songManifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return "", fmt.Errorf("failed to parse manifest %s: %w", manifestPath, err)
	}

	digest := sha1.New()
	digest.Write(manifestBytes)
	for _, set := range manifest.DifficultyBeatmapSets {
		for _, beatmap := range set.DifficultyBeatmaps {
			beatmapPath := filepath.Join(dir, beatmap.BeatmapFilename)
			data, err := os.ReadFile(beatmapPath)
			if err != nil {
				h.logger.Warn("referenced beatmap file unreadable, skipping",
					"file", beatmapPath, "error", err)
				continue
			}
			digest.Write(data)
		}
	}

	return strings.ToUpper(hex.EncodeToString(digest.Sum(nil))), nil
}

// AddHash records a freshly computed hash for an install path, extending the
// in-memory set and the side-cache.
func (h *SongHasher) AddHash(path, hash string) {
	h.mu.Lock()
	h.byPath[path] = hash
	h.byHash[hash] = path
	h.mu.Unlock()

	if h.cache != nil {
		if err := h.cache.Put(path, hash); err != nil {
			h.logger.Warn("failed to persist hash cache entry", "path", path, "error", err)
		}
	}
}

// ExistingSongs returns a snapshot of the known identity set, hash -> path.
func (h *SongHasher) ExistingSongs() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]string, len(h.byHash))
	for hash, path := range h.byHash {
		out[hash] = path
	}
	return out
}

// HashForPath returns the known hash for an install path.
func (h *SongHasher) HashForPath(path string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	hash, ok := h.byPath[path]
	return hash, ok
}
