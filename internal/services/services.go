// package services implements clients for the remote song catalogs
//
// Beat Saver, ScoreSaber, BeastSaber
package services

import (
	"context"

	"github.com/C0rn3j/BeatSync/internal/models"
)

// FeedSpec identifies one paginated feed within a source, with the per-feed
// settings the aggregator honors when reading it.
type FeedSpec struct {
	Name           string // feed identifier within the source, e.g. "hot"
	DisplayName    string // human-readable name for logs
	Param          string // feed argument, e.g. a mapper name for uploader feeds
	MaxSongs       int    // stop after this many songs; 0 means no limit
	CreatePlaylist bool   // add scraped songs to the feed playlist
	PlaylistName   string // playlist file name used when CreatePlaylist is set
	RankedOnly     bool   // restrict to ranked songs where the source supports it
}

// FeedPage is one page of scraped songs.
type FeedPage struct {
	Songs    []models.ScrapedSong
	LastPage bool
}

// SourceClient is a remote catalog exposing one or more paginated feeds.
// Page numbers are zero-based.
type SourceClient interface {
	// Name returns the source name for logs and merge ordering.
	Name() string

	// EnabledFeeds returns the feeds the configuration enables for this
	// source, in declared order.
	EnabledFeeds() []FeedSpec

	// MaxConcurrentPageChecks bounds how many pages of one feed may be
	// fetched concurrently.
	MaxConcurrentPageChecks() int

	// FetchPage retrieves one page of a feed.
	FetchPage(ctx context.Context, feed FeedSpec, page int) (*FeedPage, error)
}

// HashResolver looks up a song's content hash by its Beat Saver key. Used to
// resolve scraped songs that only carry an alternate id.
type HashResolver interface {
	ResolveHash(ctx context.Context, key string) (string, error)
}

// KeyResolver looks up a song's Beat Saver key by its content hash. Jobs use
// it to name install directories for songs scraped without a key.
type KeyResolver interface {
	ResolveKey(ctx context.Context, hash string) (string, error)
}

// PayloadFetcher downloads a song's zip payload by content hash.
type PayloadFetcher interface {
	DownloadSong(ctx context.Context, hash, destPath string) error
}
