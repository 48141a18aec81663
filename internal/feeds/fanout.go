package feeds

import (
	"github.com/C0rn3j/BeatSync/internal/models"
	"github.com/C0rn3j/BeatSync/internal/playlists"
)

// AddToPlaylists records scraped songs into their playlists: each feed's
// designated playlist when the feed asks for one, the all-songs playlist when
// allSongs is set, and the rolling recent playlist when recent is set.
// Duplicate hashes within a playlist are ignored.
func AddToPlaylists(mgr *playlists.Manager, feeds []FeedResult, allSongs, recent bool) {
	if mgr == nil {
		return
	}

	var all, recentList *playlists.Playlist
	if allSongs {
		all = mgr.Get(playlists.AllPlaylist, "BeatSync All Songs")
	}
	if recent {
		recentList = mgr.Get(playlists.RecentPlaylist, "BeatSync Recent Songs")
	}

	for _, fr := range feeds {
		var feedList *playlists.Playlist
		if fr.Feed.CreatePlaylist && fr.Feed.PlaylistName != "" {
			feedList = mgr.Get(fr.Feed.PlaylistName, fr.Feed.DisplayName)
		}
		for _, song := range fr.Songs {
			entry := toPlaylistSong(song)
			if feedList != nil {
				feedList.TryAdd(entry)
			}
			if all != nil {
				all.TryAdd(entry)
			}
			if recentList != nil {
				recentList.TryAdd(entry)
			}
		}
	}
}

func toPlaylistSong(song models.ScrapedSong) playlists.Song {
	return playlists.Song{
		Hash:            song.Hash,
		Key:             song.Key,
		Name:            song.Name,
		LevelAuthorName: song.LevelAuthorName,
		DateAdded:       song.DiscoveredAt,
	}
}
