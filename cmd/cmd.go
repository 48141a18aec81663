package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Write a default config and initialize the hash cache",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync new songs from all enabled feeds",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Report what would download without writing anything",
			},
			&cli.IntFlag{
				Name:  "max-downloads",
				Usage: "Override the concurrent download limit (1-10)",
			},
		},
		Action: r.SyncRun,
	}
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect the sync history ledger",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List history entries",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "flag",
						Usage: "Only show entries with this flag (Downloaded, PreExisting, Missing, Deleted, Error)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
		},
	}
}

func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the song hash cache",
		Commands: []*cli.Command{
			{
				Name:   "rebuild",
				Usage:  "Hash any songs missing from the cache",
				Flags:  []cli.Flag{configFlag()},
				Action: r.CacheRebuild,
			},
			{
				Name:  "list",
				Usage: "List cached hashes",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CacheList,
			},
		},
	}
}
