package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/C0rn3j/BeatSync/internal/hasher"
	"github.com/C0rn3j/BeatSync/internal/repositories"
	"github.com/C0rn3j/BeatSync/internal/shared"
)

// CacheRebuild re-hashes the whole song library and refreshes the hash cache.
func (r *Runner) CacheRebuild(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	db, err := shared.NewDatabase(config.Paths.HashCacheDB)
	if err != nil {
		return fmt.Errorf("failed to open hash cache: %w", err)
	}
	defer db.Close()

	repo := repositories.NewHashCacheRepository(db)
	if err := repo.Init(); err != nil {
		return err
	}

	r.logger.Info("rebuilding hash cache", "songs_dir", config.Paths.SongsDir)

	songHasher := hasher.New(config.Paths.SongsDir, repo, r.logger)
	cached := songHasher.LoadCache()
	hashed, err := songHasher.AddMissingHashes(ctx)
	if err != nil {
		return fmt.Errorf("failed to hash library: %w", err)
	}

	r.writePlainln("✓ Hash cache rebuilt")
	r.writePlain("  Cached: %d\n", cached)
	r.writePlain("  Newly hashed: %d\n", hashed)
	r.writePlain("  Total known: %d\n", len(songHasher.ExistingSongs()))
	return nil
}

// CacheList prints the cached path → hash entries.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	useJSON := cmd.Bool("json")

	db, err := shared.NewDatabase(config.Paths.HashCacheDB)
	if err != nil {
		return fmt.Errorf("failed to open hash cache: %w", err)
	}
	defer db.Close()

	repo := repositories.NewHashCacheRepository(db)
	if err := repo.Init(); err != nil {
		return err
	}

	entries, err := repo.LoadAll()
	if err != nil {
		return err
	}

	rows := make([]repositories.CachedHash, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, entry)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Path < rows[j].Path })

	if useJSON {
		return r.writeJSON(rows, true)
	}

	r.writePlainHeader("Hash Cache")
	r.writePlain("Entries: %d\n\n", len(rows))
	for _, row := range rows {
		r.writePlain("%s  %s\n", row.Hash, row.Path)
	}
	return nil
}
