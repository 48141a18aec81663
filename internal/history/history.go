// package history implements the durable ledger of every song hash the sync
// has ever handled and the outcome it reached.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/C0rn3j/BeatSync/internal/shared"
)

// Flag records the outcome for a song hash.
type Flag string

const (
	FlagNone        Flag = "None"
	FlagDownloaded  Flag = "Downloaded"
	FlagPreExisting Flag = "PreExisting"
	FlagMissing     Flag = "Missing"
	FlagDeleted     Flag = "Deleted"
	FlagError       Flag = "Error"
)

// Entry is one ledger record. The song hash is the map key and is not
// repeated inside the entry.
type Entry struct {
	Name            string    `json:"songName"`
	LevelAuthorName string    `json:"levelAuthorName"`
	Flag            Flag      `json:"flag"`
	Date            time.Time `json:"date"`
}

// Manager owns the ledger. All mutation goes through its API and is safe for
// concurrent use from multiple finishing jobs.
type Manager struct {
	mu          sync.RWMutex
	path        string
	entries     map[string]Entry
	initialized bool
}

// NewManager returns an uninitialized Manager. Initialize must be called
// before any other method.
func NewManager() *Manager {
	return &Manager{}
}

// Initialize loads the ledger file at path into memory. Re-initializing with
// the same path is a no-op; a different path fully replaces in-memory state.
// A missing file yields an empty ledger.
func (m *Manager) Initialize(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized && m.path == path {
		return nil
	}

	entries := make(map[string]Entry)
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// first run, start empty
	case err != nil:
		return fmt.Errorf("failed to read history file: %w", err)
	default:
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("failed to parse history file %s: %w", path, err)
		}
	}

	m.path = path
	m.entries = entries
	m.initialized = true
	return nil
}

// IsInitialized reports whether Initialize has completed.
func (m *Manager) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// TryGet returns the entry for a hash.
func (m *Manager) TryGet(hash string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[hash]
	return entry, ok
}

// TryAdd records a new entry for hash. Returns false without mutation when
// the hash already has an entry.
func (m *Manager) TryAdd(hash, name, levelAuthorName string, flag Flag) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return false
	}
	if _, exists := m.entries[hash]; exists {
		return false
	}
	m.entries[hash] = Entry{
		Name:            name,
		LevelAuthorName: levelAuthorName,
		Flag:            flag,
		Date:            time.Now().UTC(),
	}
	return true
}

// SetFlag updates the flag (and date) of an existing entry.
func (m *Manager) SetFlag(hash string, flag Flag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[hash]
	if !ok {
		return fmt.Errorf("%w: no history entry for %s", shared.ErrNotFound, hash)
	}
	entry.Flag = flag
	entry.Date = time.Now().UTC()
	m.entries[hash] = entry
	return nil
}

// Hashes returns a snapshot of every recorded hash.
func (m *Manager) Hashes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hashes := make([]string, 0, len(m.entries))
	for hash := range m.entries {
		hashes = append(hashes, hash)
	}
	return hashes
}

// Entries returns a snapshot copy of the ledger.
func (m *Manager) Entries() map[string]Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Entry, len(m.entries))
	for hash, entry := range m.entries {
		out[hash] = entry
	}
	return out
}

// Count returns the number of ledger entries.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Reconcile flags entries as Deleted when their content is no longer on
// disk. Only Downloaded, PreExisting and Missing entries transition; nothing
// is ever removed from the ledger. Returns the number of entries flagged.
func (m *Manager) Reconcile(existing map[string]struct{}) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	flagged := 0
	for hash, entry := range m.entries {
		if _, onDisk := existing[hash]; onDisk {
			continue
		}
		switch entry.Flag {
		case FlagDownloaded, FlagPreExisting, FlagMissing:
			entry.Flag = FlagDeleted
			entry.Date = time.Now().UTC()
			m.entries[hash] = entry
			flagged++
		}
	}
	return flagged
}

// WriteToFile persists the ledger. The file is written to a temp location
// and renamed into place so a failed write never leaves a truncated ledger.
func (m *Manager) WriteToFile() error {
	m.mu.RLock()
	if !m.initialized {
		m.mu.RUnlock()
		return shared.ErrHistoryNotReady
	}
	data, err := json.MarshalIndent(m.entries, "", "  ")
	path := m.path
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write history temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace history file: %w", err)
	}
	return nil
}
