package main

import (
	"context"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/C0rn3j/BeatSync/internal/history"
)

// historyRow pairs a ledger entry with its hash for display.
type historyRow struct {
	Hash            string       `json:"hash"`
	Name            string       `json:"songName"`
	LevelAuthorName string       `json:"levelAuthorName,omitempty"`
	Flag            history.Flag `json:"flag"`
	Date            string       `json:"date"`
}

// HistoryList prints the sync history ledger, optionally filtered by flag.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	flagFilter := history.Flag(cmd.String("flag"))
	useJSON := cmd.Bool("json")

	manager := history.NewManager()
	if err := manager.Initialize(config.Paths.HistoryFile); err != nil {
		return err
	}

	rows := []historyRow{}
	for hash, entry := range manager.Entries() {
		if flagFilter != "" && entry.Flag != flagFilter {
			continue
		}
		rows = append(rows, historyRow{
			Hash:            hash,
			Name:            entry.Name,
			LevelAuthorName: entry.LevelAuthorName,
			Flag:            entry.Flag,
			Date:            entry.Date.Format("2006-01-02 15:04"),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date > rows[j].Date })

	if useJSON {
		return r.writeJSON(rows, true)
	}

	r.writePlainHeader("Sync History")
	r.writePlain("Entries: %d of %d\n\n", len(rows), manager.Count())
	for _, row := range rows {
		r.writePlain("%-12s %s  %s", row.Flag, row.Date, row.Name)
		if row.LevelAuthorName != "" {
			r.writePlain(" (%s)", row.LevelAuthorName)
		}
		r.writePlain("\n")
	}
	return nil
}
