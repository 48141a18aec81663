// package downloader implements the job state machine that acquires one
// song and the manager that drives jobs with bounded concurrency.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/C0rn3j/BeatSync/internal/models"
	"github.com/C0rn3j/BeatSync/internal/services"
	"github.com/C0rn3j/BeatSync/internal/shared"
)

// Status is a job's lifecycle state. Exactly one terminal transition occurs
// per job.
type Status int

const (
	StatusReady Status = iota
	StatusRunning
	StatusFinished
	StatusCancelled
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	case StatusCancelled:
		return "cancelled"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is one of the three end states.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusCancelled || s == StatusErrored
}

// Stage is the step a running job is currently in.
type Stage int

const (
	StageNotStarted Stage = iota
	StageDownloading
	StageExtracting
	StageFinishing
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageNotStarted:
		return "not_started"
	case StageDownloading:
		return "downloading"
	case StageExtracting:
		return "extracting"
	case StageFinishing:
		return "finishing"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// TargetClient is the remote endpoint a job downloads from: key resolution
// plus payload fetch. Implemented by services.BeatSaverService.
type TargetClient interface {
	services.KeyResolver
	services.PayloadFetcher
}

// OutputSink is the destination a job installs into.
type OutputSink interface {
	// Place writes the payload at payloadPath into the destination and
	// returns the installed path.
	Place(ctx context.Context, payloadPath string, song models.ScrapedSong) (string, error)

	// ExistingHashes returns the set of content hashes currently installed.
	ExistingHashes() map[string]struct{}
}

// JobOpts carries a job's dependencies.
type JobOpts struct {
	Song    models.ScrapedSong // Hash is required; Key is resolved when absent
	Client  TargetClient
	Sink    OutputSink
	Rehash  func(dir string) (string, error) // recompute identity after install
	TempDir string
	Gate    *shared.Gate
	Logger  *log.Logger
}

// Job drives a single song from queued to installed. One Job handles exactly
// one content hash and runs at most once.
type Job struct {
	id      string
	song    models.ScrapedSong
	client  TargetClient
	sink    OutputSink
	rehash  func(dir string) (string, error)
	tempDir string
	gate    *shared.Gate
	logger  *log.Logger

	mu               sync.Mutex
	status           Status
	stage            Stage
	result           *JobResult
	onFinished       func(*JobResult)
	callbackDone     bool
	hashAfterInstall string

	finishOnce sync.Once
	done       chan struct{}
}

// NewJob creates a ready job for the given song.
func NewJob(opts JobOpts) (*Job, error) {
	if opts.Song.Hash == "" {
		return nil, fmt.Errorf("%w: job requires a song hash", shared.ErrInvalidInput)
	}
	if opts.Client == nil || opts.Sink == nil {
		return nil, fmt.Errorf("%w: job requires a client and a sink", shared.ErrInvalidInput)
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Job{
		id:      shared.GenerateID(),
		song:    opts.Song,
		client:  opts.Client,
		sink:    opts.Sink,
		rehash:  opts.Rehash,
		tempDir: opts.TempDir,
		gate:    opts.Gate,
		logger:  logger.With("song", opts.Song.String()),
		status:  StatusReady,
		stage:   StageNotStarted,
		done:    make(chan struct{}),
	}, nil
}

// ID returns the job record id.
func (j *Job) ID() string { return j.id }

// Hash returns the content hash the job acquires.
func (j *Job) Hash() string { return j.song.Hash }

// Status returns the current lifecycle state.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Stage returns the current step of a running job.
func (j *Job) Stage() Stage {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stage
}

// Result returns the terminal result, or nil before the job finishes.
func (j *Job) Result() *JobResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Done returns a channel closed on the job's single terminal transition.
func (j *Job) Done() <-chan struct{} { return j.done }

// SetFinishedCallback registers the function invoked with the terminal
// result. The callback fires exactly once even when the job finished before
// registration.
func (j *Job) SetFinishedCallback(fn func(*JobResult)) {
	j.mu.Lock()
	if j.result != nil && !j.callbackDone {
		j.callbackDone = true
		result := j.result
		j.mu.Unlock()
		fn(result)
		return
	}
	j.onFinished = fn
	j.mu.Unlock()
}

// Run executes the job to a terminal state. The outcome is captured in the
// JobResult; Run itself never fails.
func (j *Job) Run(ctx context.Context) {
	j.transition(StatusRunning, StageNotStarted)

	if err := j.gate.Wait(ctx); err != nil {
		j.finish(StatusCancelled, DownloadUnknown, InstallUnknown, "", nil)
		return
	}

	j.transition(StatusRunning, StageDownloading)
	if j.song.Key == "" {
		key, err := j.client.ResolveKey(ctx, j.song.Hash)
		switch {
		case err == nil:
			j.song.Key = key
		case ctx.Err() != nil:
			j.finish(StatusCancelled, DownloadCancelled, InstallUnknown, "", nil)
			return
		default:
			// The key only affects the install directory name; the
			// download itself is addressed by hash.
			j.logger.Warn("failed to resolve song key", "error", err)
		}
	}

	payloadPath := j.scratchPath()
	if err := j.client.DownloadSong(ctx, j.song.Hash, payloadPath); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			j.finish(StatusCancelled, DownloadCancelled, InstallUnknown, "", nil)
		} else {
			j.finish(StatusErrored, DownloadFailed, InstallUnknown, "", err)
		}
		return
	}

	if err := j.gate.Wait(ctx); err != nil {
		j.removeScratch(payloadPath)
		j.finish(StatusCancelled, DownloadSuccess, InstallCancelled, "", nil)
		return
	}

	j.transition(StatusRunning, StageExtracting)
	destDir, err := j.sink.Place(ctx, payloadPath, j.song)
	if err != nil {
		j.removeScratch(payloadPath)
		if ctx.Err() != nil {
			j.finish(StatusCancelled, DownloadSuccess, InstallCancelled, "", nil)
		} else {
			j.finish(StatusErrored, DownloadSuccess, InstallFailed, "", err)
		}
		return
	}

	j.verifyInstall(destDir)

	j.transition(StatusRunning, StageFinishing)
	j.removeScratch(payloadPath)

	j.finish(StatusFinished, DownloadSuccess, InstallSuccess, destDir, nil)
}

// verifyInstall recomputes the installed content hash and compares it to the
// expected one. A mismatch is logged and the content kept; remote catalogs
// are not always self-consistent about the hashes they advertise.
func (j *Job) verifyInstall(destDir string) {
	if j.rehash == nil {
		return
	}
	hashAfter, err := j.rehash(destDir)
	if err != nil {
		j.logger.Warn("failed to verify installed song", "dir", destDir, "error", err)
		return
	}
	j.mu.Lock()
	j.hashAfterInstall = hashAfter
	j.mu.Unlock()
	if hashAfter != j.song.Hash {
		j.logger.Warn("installed hash doesn't match catalog hash",
			"expected", j.song.Hash, "actual", hashAfter, "dir", destDir)
	} else {
		j.logger.Debug("installed hash matches catalog hash", "dir", destDir)
	}
}

func (j *Job) scratchPath() string {
	name := j.song.Key
	if name == "" {
		name = j.song.Hash
	}
	return filepath.Join(j.tempDir, name+".zip")
}

func (j *Job) removeScratch(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		j.logger.Warn("unable to delete scratch file", "path", path, "error", err)
	}
}

func (j *Job) transition(status Status, stage Stage) {
	j.mu.Lock()
	if !j.status.Terminal() {
		j.status = status
		j.stage = stage
	}
	j.mu.Unlock()
}

// markCancelled finishes a job that never started; used by the manager to
// drain the queue on cancellation.
func (j *Job) markCancelled() {
	j.finish(StatusCancelled, DownloadUnknown, InstallUnknown, "", nil)
}

// finish performs the single terminal transition, captures the result and
// fires the finished callback exactly once.
func (j *Job) finish(status Status, download DownloadOutcome, install InstallOutcome, destDir string, err error) {
	j.finishOnce.Do(func() {
		j.mu.Lock()
		j.status = status
		if status == StatusFinished {
			j.stage = StageDone
		}
		j.result = &JobResult{
			JobID:            j.id,
			Hash:             j.song.Hash,
			Key:              j.song.Key,
			Name:             j.song.Name,
			LevelAuthorName:  j.song.LevelAuthorName,
			Download:         download,
			Install:          install,
			DestinationPath:  destDir,
			HashAfterInstall: j.hashAfterInstall,
			Cancelled:        status == StatusCancelled,
			Err:              err,
		}
		var fn func(*JobResult)
		if j.onFinished != nil && !j.callbackDone {
			fn = j.onFinished
			j.callbackDone = true
		}
		result := j.result
		j.mu.Unlock()

		close(j.done)
		if fn != nil {
			fn(result)
		}
	})
}
