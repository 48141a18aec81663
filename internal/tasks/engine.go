// package tasks implements the sync run that ties the pipeline together.
//
// The core abstraction is SyncEngine, which hashes the installed library,
// reads the remote feeds, schedules downloads for new songs and reconciles
// the history ledger. Operations emit progress updates via channels for
// non-blocking status reporting to the CLI layer.
package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/C0rn3j/BeatSync/internal/downloader"
	"github.com/C0rn3j/BeatSync/internal/feeds"
	"github.com/C0rn3j/BeatSync/internal/hasher"
	"github.com/C0rn3j/BeatSync/internal/history"
	"github.com/C0rn3j/BeatSync/internal/models"
	"github.com/C0rn3j/BeatSync/internal/playlists"
	"github.com/C0rn3j/BeatSync/internal/shared"
)

const recentPlaylistTitle = "BeatSync Recent Songs"

// SyncOpts contains per-run options.
type SyncOpts struct {
	// DryRun reports what would be downloaded without scheduling jobs or
	// writing any file.
	DryRun bool
}

// RunResult contains the counts of a full sync run.
type RunResult struct {
	Found       int // unique songs scraped across all sources
	NewSongs    int // songs that passed the on-disk and history filters
	Queued      int // jobs accepted by the scheduler
	Downloaded  int
	Failed      int
	Cancelled   int
	Deleted     int // history entries flagged Deleted by reconciliation
	PreExisting int // installed songs newly recorded in history
	DryRun      bool

	// WouldDownload lists the filtered songs when DryRun is set.
	WouldDownload []models.ScrapedSong
}

// EngineOpts carries the sync engine's dependencies.
type EngineOpts struct {
	Config     *shared.Config
	Hasher     *hasher.SongHasher
	History    *history.Manager
	Aggregator *feeds.Aggregator
	Client     downloader.TargetClient
	Sink       downloader.OutputSink
	Playlists  *playlists.Manager
	Gate       *shared.Gate
	Logger     *log.Logger
}

// SyncEngine orchestrates one sync run end to end.
type SyncEngine struct {
	cfg       *shared.Config
	hasher    *hasher.SongHasher
	history   *history.Manager
	agg       *feeds.Aggregator
	client    downloader.TargetClient
	sink      downloader.OutputSink
	playlists *playlists.Manager
	gate      *shared.Gate
	logger    *log.Logger
}

// NewSyncEngine creates a sync engine from its dependencies.
func NewSyncEngine(opts EngineOpts) (*SyncEngine, error) {
	if opts.Config == nil || opts.Hasher == nil || opts.History == nil ||
		opts.Aggregator == nil || opts.Client == nil || opts.Sink == nil {
		return nil, fmt.Errorf("%w: sync engine is missing a dependency", shared.ErrInvalidInput)
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SyncEngine{
		cfg:       opts.Config,
		hasher:    opts.Hasher,
		history:   opts.History,
		agg:       opts.Aggregator,
		client:    opts.Client,
		sink:      opts.Sink,
		playlists: opts.Playlists,
		gate:      opts.Gate,
		logger:    logger,
	}, nil
}

// Run performs a full sync: hash the library, load history, read feeds,
// download new songs and reconcile. Individual song failures are recorded
// and never abort the run; Run fails only when a whole phase fails.
func (e *SyncEngine) Run(ctx context.Context, prog chan<- ProgressUpdate, opts SyncOpts) (*RunResult, error) {
	result := &RunResult{DryRun: opts.DryRun}

	e.sendProgress(prog, hashingLibraryUpdate())
	cached := e.hasher.LoadCache()
	e.logger.Debug("hash cache loaded", "entries", cached)
	hashed, err := e.hasher.AddMissingHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to hash song library: %w", err)
	}

	existing := e.hasher.ExistingSongs()
	e.sendProgress(prog, libraryHashedUpdate(hashed, len(existing)))

	e.sendProgress(prog, loadingHistoryUpdate())
	if err := e.history.Initialize(e.cfg.Paths.HistoryFile); err != nil {
		return nil, err
	}

	onDisk := make(map[string]struct{}, len(existing))
	for hash, path := range existing {
		onDisk[hash] = struct{}{}
		if e.history.TryAdd(hash, filepath.Base(path), "", history.FlagPreExisting) {
			result.PreExisting++
		}
	}
	result.Deleted = e.history.Reconcile(onDisk)
	if !opts.DryRun {
		if err := e.history.WriteToFile(); err != nil {
			e.logger.Warn("failed to persist history", "error", err)
		}
	}

	e.sendProgress(prog, readingFeedsUpdate())
	scraped, err := e.agg.RunReaders(ctx)
	if err != nil {
		return nil, err
	}
	result.Found = len(scraped.Songs)
	e.sendProgress(prog, feedsReadUpdate(result.Found))

	if !opts.DryRun {
		recent := e.cfg.Sync.RecentPlaylistDays > 0
		feeds.AddToPlaylists(e.playlists, scraped.Feeds, e.cfg.Sync.AllSongsPlaylist, recent)
	}

	candidates := e.filterNew(scraped, onDisk)
	result.NewSongs = len(candidates)
	e.sendProgress(prog, filteredUpdate(result.NewSongs, result.Found))

	if opts.DryRun {
		result.WouldDownload = candidates
		e.sendProgress(prog, finishedUpdate(result))
		return result, nil
	}

	downloads := e.runDownloads(ctx, prog, candidates)
	result.Queued = downloads.queued
	result.Downloaded = downloads.result.Succeeded
	result.Failed = downloads.result.Failed
	result.Cancelled = downloads.result.Cancelled
	e.recordOutcomes(downloads.result.Results)

	e.sendProgress(prog, reconcilingUpdate())
	result.Deleted += e.history.Reconcile(e.sink.ExistingHashes())

	e.writePlaylists()
	if err := e.history.WriteToFile(); err != nil {
		return result, fmt.Errorf("sync finished but history write failed: %w", err)
	}
	e.cleanTempDir()

	e.sendProgress(prog, finishedUpdate(result))
	return result, nil
}

// filterNew keeps scraped songs that are neither installed nor already
// handled. Songs whose history entry is flagged Deleted are downloaded
// again: reappearing in a feed after a manual delete re-queues the song.
// Scrape order is preserved so the scheduler sees songs in feed priority
// order.
func (e *SyncEngine) filterNew(scraped *feeds.AggregateResult, onDisk map[string]struct{}) []models.ScrapedSong {
	var out []models.ScrapedSong
	seen := make(map[string]struct{})
	for _, fr := range scraped.Feeds {
		for _, feedSong := range fr.Songs {
			song, ok := scraped.Songs[feedSong.Hash]
			if !ok {
				continue
			}
			if _, dup := seen[song.Hash]; dup {
				continue
			}
			seen[song.Hash] = struct{}{}

			if _, installed := onDisk[song.Hash]; installed {
				continue
			}
			if entry, ok := e.history.TryGet(song.Hash); ok && entry.Flag != history.FlagDeleted {
				continue
			}
			out = append(out, song)
		}
	}
	return out
}

type downloadRun struct {
	queued int
	result downloader.Result
}

// runDownloads schedules one job per candidate and waits for all of them.
func (e *SyncEngine) runDownloads(ctx context.Context, prog chan<- ProgressUpdate, candidates []models.ScrapedSong) downloadRun {
	run := downloadRun{}
	if len(candidates) == 0 {
		return run
	}

	mgr := downloader.NewManager(e.cfg.Sync.MaxConcurrentDownloads, e.logger)
	mgr.Start(ctx)

	total := len(candidates)
	for i, song := range candidates {
		job, err := downloader.NewJob(downloader.JobOpts{
			Song:    song,
			Client:  e.client,
			Sink:    e.sink,
			Rehash:  e.rehashDir,
			TempDir: e.cfg.Paths.TempDir,
			Gate:    e.gate,
			Logger:  e.logger,
		})
		if err != nil {
			e.logger.Warn("skipping song, could not create job", "song", song.String(), "error", err)
			continue
		}

		step := i + 1
		job.SetFinishedCallback(func(res *downloader.JobResult) {
			e.sendProgress(prog, jobFinishedUpdate(step, total, res))
		})

		if mgr.TrySubmit(job) {
			run.queued++
			e.sendProgress(prog, queuedUpdate(step, total, song.Name))
		}
	}

	run.result = mgr.Wait()
	return run
}

// recordOutcomes writes terminal job outcomes into history. Cancelled jobs
// leave no entry so the next run picks the song up again.
func (e *SyncEngine) recordOutcomes(results []*downloader.JobResult) {
	for _, res := range results {
		if res == nil || res.Cancelled {
			continue
		}
		flag := history.FlagDownloaded
		if !res.Successful() {
			flag = history.FlagError
		}
		if e.history.TryAdd(res.Hash, res.Name, res.LevelAuthorName, flag) {
			continue
		}
		// Re-downloads of Deleted entries land here.
		if err := e.history.SetFlag(res.Hash, flag); err != nil {
			e.logger.Warn("failed to record job outcome", "hash", res.Hash, "error", err)
		}
	}
}

// rehashDir recomputes a directory's content hash after install and teaches
// it to the hasher so reconciliation sees the new song.
func (e *SyncEngine) rehashDir(dir string) (string, error) {
	hash, err := e.hasher.GetSongHashData(dir)
	if err != nil {
		return "", err
	}
	e.hasher.AddHash(dir, hash)
	return hash, nil
}

// writePlaylists prunes the recent playlist to the retention window and
// persists every dirty playlist. Playlist failures never fail the run.
func (e *SyncEngine) writePlaylists() {
	if e.playlists == nil {
		return
	}
	if days := e.cfg.Sync.RecentPlaylistDays; days > 0 {
		recent := e.playlists.Get(playlists.RecentPlaylist, recentPlaylistTitle)
		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		if removed := recent.RemoveOlderThan(cutoff); removed > 0 {
			e.logger.Debug("pruned recent playlist", "removed", removed)
		}
	}
	if err := e.playlists.WriteAll(); err != nil {
		e.logger.Warn("failed to write playlists", "error", err)
	}
}

// cleanTempDir removes leftover scratch files. Best-effort: a failure is
// logged and the next run overwrites whatever remains.
func (e *SyncEngine) cleanTempDir() {
	dir := e.cfg.Paths.TempDir
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		e.logger.Warn("failed to clean temp directory", "dir", dir, "error", err)
	}
}

func (e *SyncEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}
