// package models defines the data model shared by the feed, download and
// library layers.
package models

import (
	"fmt"
	"strings"
	"time"
)

// ScrapedSong is one song discovered on a remote feed page, normalized to a
// common shape regardless of which source produced it.
type ScrapedSong struct {
	Hash            string    // uppercase SHA-1 content identity, empty until resolved
	Key             string    // Beat Saver key, empty for sources that only report hashes
	Name            string    // song title
	LevelAuthorName string    // mapper
	SourceURI       string    // page the song was scraped from
	DiscoveredAt    time.Time // when the scrape observed it
}

func (s ScrapedSong) String() string {
	if s.Key != "" {
		return fmt.Sprintf("(%s) %s by %s", s.Key, s.Name, s.LevelAuthorName)
	}
	return fmt.Sprintf("%s by %s", s.Name, s.LevelAuthorName)
}

// DirectoryName returns the library directory name for a song, in the
// "<key> (<name> - <author>)" layout downloader clients expect. Characters
// that are invalid in file names are stripped.
func DirectoryName(key, name, levelAuthorName string) string {
	base := key
	if base != "" {
		base += " "
	}
	base += "(" + name + " - " + levelAuthorName + ")"
	return sanitizeFileName(base)
}

func sanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return -1
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, strings.TrimSpace(name))
}
