package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/C0rn3j/BeatSync/internal/repositories"
	"github.com/C0rn3j/BeatSync/internal/shared"
)

// Setup writes a default config file, creates the library directories and
// initializes the hash cache database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}

	for _, dir := range []string{config.Paths.SongsDir, config.Paths.PlaylistsDir, config.Paths.TempDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	r.logger.Info("initializing hash cache database", "path", config.Paths.HashCacheDB)

	db, err := shared.NewDatabase(config.Paths.HashCacheDB)
	if err != nil {
		return fmt.Errorf("failed to create hash cache database: %w", err)
	}
	defer db.Close()

	if err := repositories.NewHashCacheRepository(db).Init(); err != nil {
		return err
	}

	r.writePlain("✓ Setup complete\n")
	r.writePlain("Config: %s\n", configPath)
	r.writePlain("Library: %s\n", config.Paths.SongsDir)
	r.writePlain("Hash cache: %s\n", config.Paths.HashCacheDB)
	return nil
}
