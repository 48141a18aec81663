// package library installs downloaded song payloads into the on-disk song
// library.
//
// The library directory is partitioned by song: each install lives in its
// own "<key> (<name> - <author>)" directory, so concurrent installs of
// different songs never touch the same path.
package library

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/C0rn3j/BeatSync/internal/hasher"
	"github.com/C0rn3j/BeatSync/internal/models"
)

// SongLibrary places payloads into the songs directory and answers which
// content hashes are currently installed.
type SongLibrary struct {
	dir    string
	hasher *hasher.SongHasher
	logger *log.Logger
}

// New creates a SongLibrary rooted at dir.
func New(dir string, h *hasher.SongHasher, logger *log.Logger) *SongLibrary {
	return &SongLibrary{dir: dir, hasher: h, logger: logger}
}

// Dir returns the library root.
func (l *SongLibrary) Dir() string { return l.dir }

// Place extracts the zip payload at payloadPath into the song's library
// directory, overwriting files left by a previous attempt, and returns the
// destination path.
func (l *SongLibrary) Place(ctx context.Context, payloadPath string, song models.ScrapedSong) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dirName := models.DirectoryName(song.Key, song.Name, song.LevelAuthorName)
	if dirName == "" || dirName == "( - )" {
		dirName = song.Hash
	}
	destDir := filepath.Join(l.dir, dirName)

	if err := extractZip(payloadPath, destDir); err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", payloadPath, err)
	}
	return destDir, nil
}

// ExistingHashes snapshots the set of content hashes currently known to be
// installed, for history reconciliation.
func (l *SongLibrary) ExistingHashes() map[string]struct{} {
	songs := l.hasher.ExistingSongs()
	out := make(map[string]struct{}, len(songs))
	for hash := range songs {
		out[hash] = struct{}{}
	}
	return out
}
