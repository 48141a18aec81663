package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/C0rn3j/BeatSync/internal/feeds"
	"github.com/C0rn3j/BeatSync/internal/hasher"
	"github.com/C0rn3j/BeatSync/internal/history"
	"github.com/C0rn3j/BeatSync/internal/library"
	"github.com/C0rn3j/BeatSync/internal/playlists"
	"github.com/C0rn3j/BeatSync/internal/repositories"
	"github.com/C0rn3j/BeatSync/internal/services"
	"github.com/C0rn3j/BeatSync/internal/shared"
	"github.com/C0rn3j/BeatSync/internal/tasks"
)

// SyncRun performs a full sync: hash the library, read every enabled feed,
// download new songs and update history and playlists.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	if n := cmd.Int("max-downloads"); n > 0 {
		config.Sync.MaxConcurrentDownloads = n
		config.Normalize()
	}
	dryRun := cmd.Bool("dry-run")

	// Every log line of one run shares a run id, so interleaved runs in a
	// shared log stay attributable.
	logger := shared.WithLogger(r.logger, "run", shared.GenerateID())
	logger.Info("starting sync",
		"songs_dir", config.Paths.SongsDir,
		"max_downloads", config.Sync.MaxConcurrentDownloads,
		"dry_run", dryRun)
	r.writePlain("Starting song sync...\n")
	r.writePlain("Library: %s\n\n", config.Paths.SongsDir)

	db, err := shared.NewDatabase(config.Paths.HashCacheDB)
	if err != nil {
		return fmt.Errorf("failed to open hash cache: %w", err)
	}
	defer db.Close()

	repo := repositories.NewHashCacheRepository(db)
	if err := repo.Init(); err != nil {
		return err
	}

	songHasher := hasher.New(config.Paths.SongsDir, repo, logger)
	historyManager := history.NewManager()
	beatSaver := services.NewBeatSaverService("", config.BeatSaver, r.httpClient)
	beatSaver.SetDownloadTimeout(time.Duration(config.Sync.DownloadTimeoutSeconds) * time.Second)
	aggregator := feeds.NewAggregator(r.enabledSources(config, beatSaver), beatSaver, r.gate, logger)
	songLibrary := library.New(config.Paths.SongsDir, songHasher, logger)
	playlistManager := playlists.NewManager(config.Paths.PlaylistsDir, logger)

	engine, err := tasks.NewSyncEngine(tasks.EngineOpts{
		Config:     config,
		Hasher:     songHasher,
		History:    historyManager,
		Aggregator: aggregator,
		Client:     beatSaver,
		Sink:       songLibrary,
		Playlists:  playlistManager,
		Gate:       r.gate,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	// Create progress channel and goroutine to handle updates
	progressCh := make(chan tasks.ProgressUpdate, 50)
	go func() {
		for update := range progressCh {
			switch update.Phase {
			case tasks.HashLibrary, tasks.LoadHistory, tasks.ReadFeeds, tasks.FilterSongs:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.Download:
				r.writePlain("   %s\n", update.Message)
			}
		}
	}()

	result, err := engine.Run(ctx, progressCh, tasks.SyncOpts{DryRun: dryRun})
	close(progressCh)

	if err != nil {
		return err
	}

	r.writePlain("\n")
	if result.DryRun {
		r.writePlainHeader("Dry Run Complete")
		r.writePlain("Songs found: %d\n", result.Found)
		r.writePlain("Would download: %d\n", result.NewSongs)
		for i, song := range result.WouldDownload {
			r.writePlain("  %d. %s\n", i+1, song.String())
		}
		return nil
	}

	r.writePlainHeader("Sync Complete!")
	r.writePlain("Songs found: %d\n", result.Found)
	r.writePlain("New songs: %d (queued %d)\n", result.NewSongs, result.Queued)
	r.writePlain("Downloaded: %d\n", result.Downloaded)
	if result.Failed > 0 {
		r.writePlain("Failed: %d\n", result.Failed)
	}
	if result.Cancelled > 0 {
		r.writePlain("Cancelled: %d\n", result.Cancelled)
	}
	if result.Deleted > 0 {
		r.writePlain("Flagged deleted: %d\n", result.Deleted)
	}
	return nil
}
