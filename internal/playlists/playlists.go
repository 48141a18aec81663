// package playlists manages the bplist playlist files the sync writes song
// membership into.
package playlists

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Built-in playlist file names. Feed playlists use the names their FeedSpec
// declares.
const (
	AllPlaylist    = "BeatSyncAll"
	RecentPlaylist = "BeatSyncRecent"
)

// Song is one playlist entry.
type Song struct {
	Hash            string    `json:"hash"`
	Key             string    `json:"key,omitempty"`
	Name            string    `json:"songName"`
	LevelAuthorName string    `json:"levelAuthorName,omitempty"`
	DateAdded       time.Time `json:"dateAdded"`
}

type playlistFile struct {
	Title       string `json:"playlistTitle"`
	Author      string `json:"playlistAuthor"`
	Description string `json:"playlistDescription,omitempty"`
	Songs       []Song `json:"songs"`
}

// Playlist is one playlist file held in memory. Safe for concurrent use.
type Playlist struct {
	mu     sync.Mutex
	path   string
	file   playlistFile
	byHash map[string]struct{}
	dirty  bool
}

// TryAdd appends a song unless its hash is already present. Returns whether
// the song was added.
func (p *Playlist) TryAdd(song Song) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byHash[song.Hash]; exists {
		return false
	}
	if song.DateAdded.IsZero() {
		song.DateAdded = time.Now().UTC()
	}
	p.file.Songs = append(p.file.Songs, song)
	p.byHash[song.Hash] = struct{}{}
	p.dirty = true
	return true
}

// RemoveOlderThan drops songs added before cutoff. Returns how many were
// removed. Used to prune the rolling recent playlist; history is unaffected.
func (p *Playlist) RemoveOlderThan(cutoff time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.file.Songs[:0]
	removed := 0
	for _, song := range p.file.Songs {
		if song.DateAdded.Before(cutoff) {
			delete(p.byHash, song.Hash)
			removed++
			continue
		}
		kept = append(kept, song)
	}
	p.file.Songs = kept
	if removed > 0 {
		p.dirty = true
	}
	return removed
}

// Songs returns a snapshot of the playlist entries.
func (p *Playlist) Songs() []Song {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Song, len(p.file.Songs))
	copy(out, p.file.Songs)
	return out
}

// Title returns the playlist title.
func (p *Playlist) Title() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.file.Title
}

// WriteFile persists the playlist when it has unwritten changes.
func (p *Playlist) WriteFile() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.dirty {
		return nil
	}

	data, err := json.MarshalIndent(p.file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal playlist: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("failed to create playlists directory: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write playlist %s: %w", p.path, err)
	}
	p.dirty = false
	return nil
}

// Manager loads and caches playlists by file name.
type Manager struct {
	dir    string
	logger *log.Logger

	mu        sync.Mutex
	playlists map[string]*Playlist
}

// NewManager creates a Manager writing playlists under dir.
func NewManager(dir string, logger *log.Logger) *Manager {
	return &Manager{
		dir:       dir,
		logger:    logger,
		playlists: make(map[string]*Playlist),
	}
}

// Get returns the playlist stored as <name>.bplist, loading it from disk on
// first access or creating it with the given title. An unreadable file is
// replaced by an empty playlist with a warning.
func (m *Manager) Get(name, title string) *Playlist {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.playlists[name]; ok {
		return p
	}

	path := filepath.Join(m.dir, name+".bplist")
	p := &Playlist{
		path:   path,
		file:   playlistFile{Title: title, Author: "BeatSync"},
		byHash: make(map[string]struct{}),
	}

	if data, err := os.ReadFile(path); err == nil {
		var file playlistFile
		if err := json.Unmarshal(data, &file); err != nil {
			m.logger.Warn("playlist file unreadable, starting empty", "path", path, "error", err)
		} else {
			p.file = file
			for _, song := range file.Songs {
				p.byHash[song.Hash] = struct{}{}
			}
		}
	}

	m.playlists[name] = p
	return p
}

// WriteAll persists every loaded playlist with unwritten changes. Failures
// are logged per playlist; the last failure is returned.
func (m *Manager) WriteAll() error {
	m.mu.Lock()
	loaded := make([]*Playlist, 0, len(m.playlists))
	for _, p := range m.playlists {
		loaded = append(loaded, p)
	}
	m.mu.Unlock()

	var lastErr error
	for _, p := range loaded {
		if err := p.WriteFile(); err != nil {
			m.logger.Warn("failed to write playlist", "error", err)
			lastErr = err
		}
	}
	return lastErr
}
