// package feeds aggregates scraped songs from every enabled source into the
// deduplicated set a sync run operates on.
package feeds

import "github.com/C0rn3j/BeatSync/internal/models"

// Merge folds per-source song maps into one map keyed by content hash. The
// slice order is the declared source order; on collision the entry from the
// earlier source wins and later duplicates are discarded.
func Merge(ordered []map[string]models.ScrapedSong) map[string]models.ScrapedSong {
	merged := make(map[string]models.ScrapedSong)
	for _, source := range ordered {
		for hash, song := range source {
			if _, exists := merged[hash]; exists {
				continue
			}
			merged[hash] = song
		}
	}
	return merged
}
