package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Sync       SyncConfig       `toml:"sync"`
	Paths      PathsConfig      `toml:"paths"`
	BeatSaver  BeatSaverConfig  `toml:"beatsaver"`
	ScoreSaber ScoreSaberConfig `toml:"scoresaber"`
	BeastSaber BeastSaberConfig `toml:"beastsaber"`
}

// SyncConfig contains settings for the sync run itself.
type SyncConfig struct {
	MaxConcurrentDownloads int  `toml:"max_concurrent_downloads"`
	RecentPlaylistDays     int  `toml:"recent_playlist_days"`
	AllSongsPlaylist       bool `toml:"all_songs_playlist"`
	DownloadTimeoutSeconds int  `toml:"download_timeout_seconds"`
}

// PathsConfig contains the filesystem locations the sync run reads and writes.
type PathsConfig struct {
	SongsDir     string `toml:"songs_dir"`
	PlaylistsDir string `toml:"playlists_dir"`
	HistoryFile  string `toml:"history_file"`
	HashCacheDB  string `toml:"hash_cache_db"`
	TempDir      string `toml:"temp_dir"`
}

// FeedConfig contains per-feed settings shared by all sources.
type FeedConfig struct {
	Enabled        bool `toml:"enabled"`
	MaxSongs       int  `toml:"max_songs"`
	CreatePlaylist bool `toml:"create_playlist"`
	RankedOnly     bool `toml:"ranked_only"`
}

// BeatSaverConfig contains Beat Saver source settings.
type BeatSaverConfig struct {
	Enabled                 bool       `toml:"enabled"`
	MaxConcurrentPageChecks int        `toml:"max_concurrent_page_checks"`
	FavoriteMappers         []string   `toml:"favorite_mappers"`
	Hot                     FeedConfig `toml:"hot"`
	Downloads               FeedConfig `toml:"downloads"`
	Mappers                 FeedConfig `toml:"mappers"`
}

// ScoreSaberConfig contains ScoreSaber source settings.
type ScoreSaberConfig struct {
	Enabled                 bool       `toml:"enabled"`
	MaxConcurrentPageChecks int        `toml:"max_concurrent_page_checks"`
	Trending                FeedConfig `toml:"trending"`
	TopRanked               FeedConfig `toml:"top_ranked"`
	TopPlayed               FeedConfig `toml:"top_played"`
	LatestRanked            FeedConfig `toml:"latest_ranked"`
}

// BeastSaberConfig contains BeastSaber source settings.
type BeastSaberConfig struct {
	Enabled                 bool       `toml:"enabled"`
	Username                string     `toml:"username"`
	MaxConcurrentPageChecks int        `toml:"max_concurrent_page_checks"`
	Bookmarks               FeedConfig `toml:"bookmarks"`
	Follows                 FeedConfig `toml:"follows"`
	CuratorRecommended      FeedConfig `toml:"curator_recommended"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
// The returned config is normalized: out-of-range values are clamped rather than rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	config.Normalize()
	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.Normalize()
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Normalize clamps out-of-range values to their documented bounds and fills
// in defaults for unset paths.
func (c *Config) Normalize() {
	if c.Sync.MaxConcurrentDownloads < 1 {
		c.Sync.MaxConcurrentDownloads = 1
	}
	if c.Sync.MaxConcurrentDownloads > 10 {
		c.Sync.MaxConcurrentDownloads = 10
	}
	if c.Sync.RecentPlaylistDays < 0 {
		c.Sync.RecentPlaylistDays = 0
	}
	if c.Sync.DownloadTimeoutSeconds <= 0 {
		c.Sync.DownloadTimeoutSeconds = 30
	}

	for _, n := range []*int{
		&c.BeatSaver.MaxConcurrentPageChecks,
		&c.ScoreSaber.MaxConcurrentPageChecks,
		&c.BeastSaber.MaxConcurrentPageChecks,
	} {
		if *n < 1 {
			*n = 1
		}
	}

	if c.Paths.SongsDir == "" {
		c.Paths.SongsDir = "CustomLevels"
	}
	if c.Paths.PlaylistsDir == "" {
		c.Paths.PlaylistsDir = "Playlists"
	}
	if c.Paths.HistoryFile == "" {
		c.Paths.HistoryFile = "BeatSyncHistory.json"
	}
	if c.Paths.HashCacheDB == "" {
		c.Paths.HashCacheDB = "BeatSyncHashCache.db"
	}
	if c.Paths.TempDir == "" {
		c.Paths.TempDir = "BeatSyncTemp"
	}
}
