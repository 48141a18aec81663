package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/C0rn3j/BeatSync/internal/models"
	"github.com/C0rn3j/BeatSync/internal/shared"
)

type fakeClient struct {
	mu          sync.Mutex
	keys        map[string]string // hash -> key
	resolveErr  error
	downloadErr error
	block       chan struct{} // when set, DownloadSong waits for close or ctx
	downloads   []string
}

func (c *fakeClient) ResolveKey(ctx context.Context, hash string) (string, error) {
	if c.resolveErr != nil {
		return "", c.resolveErr
	}
	if key, ok := c.keys[hash]; ok {
		return key, nil
	}
	return "", fmt.Errorf("%w: %s", shared.ErrNotFound, hash)
}

func (c *fakeClient) DownloadSong(ctx context.Context, hash, destPath string) error {
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if c.downloadErr != nil {
		return c.downloadErr
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(destPath, []byte("payload"), 0644); err != nil {
		return err
	}
	c.mu.Lock()
	c.downloads = append(c.downloads, hash)
	c.mu.Unlock()
	return nil
}

type fakeSink struct {
	mu       sync.Mutex
	dir      string
	placeErr error
	placed   []string
}

func (s *fakeSink) Place(ctx context.Context, payloadPath string, song models.ScrapedSong) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.placeErr != nil {
		return "", s.placeErr
	}
	destDir := filepath.Join(s.dir, song.Hash)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.placed = append(s.placed, song.Hash)
	s.mu.Unlock()
	return destDir, nil
}

func (s *fakeSink) ExistingHashes() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.placed))
	for _, hash := range s.placed {
		out[hash] = struct{}{}
	}
	return out
}

func testJob(t *testing.T, song models.ScrapedSong, client *fakeClient, sink *fakeSink, rehash func(string) (string, error)) *Job {
	t.Helper()
	if sink.dir == "" {
		sink.dir = t.TempDir()
	}
	job, err := NewJob(JobOpts{
		Song:    song,
		Client:  client,
		Sink:    sink,
		Rehash:  rehash,
		TempDir: t.TempDir(),
		Logger:  shared.NewLogger(io.Discard),
	})
	if err != nil {
		t.Fatalf("NewJob() error = %v", err)
	}
	return job
}

func TestNewJobValidation(t *testing.T) {
	_, err := NewJob(JobOpts{Client: &fakeClient{}, Sink: &fakeSink{}})
	if !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("NewJob() without hash error = %v, want ErrInvalidInput", err)
	}
	_, err = NewJob(JobOpts{Song: models.ScrapedSong{Hash: "H"}})
	if !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("NewJob() without client error = %v, want ErrInvalidInput", err)
	}
}

func TestJobRunSuccess(t *testing.T) {
	song := models.ScrapedSong{Hash: "HASH1", Name: "Song", LevelAuthorName: "Author"}
	client := &fakeClient{keys: map[string]string{"HASH1": "abc1"}}
	sink := &fakeSink{}
	rehash := func(dir string) (string, error) { return "HASH1", nil }

	job := testJob(t, song, client, sink, rehash)

	var callbacks []*JobResult
	job.SetFinishedCallback(func(res *JobResult) { callbacks = append(callbacks, res) })

	job.Run(context.Background())

	if got := job.Status(); got != StatusFinished {
		t.Fatalf("Status() = %s, want finished", got)
	}
	if got := job.Stage(); got != StageDone {
		t.Errorf("Stage() after successful run = %s, want done", got)
	}
	res := job.Result()
	if res == nil {
		t.Fatal("Result() = nil after terminal state")
	}
	if !res.Successful() {
		t.Errorf("Successful() = false: %+v", res)
	}
	if res.Key != "abc1" {
		t.Errorf("Key = %q, want abc1 (resolved from hash)", res.Key)
	}
	if res.Download != DownloadSuccess || res.Install != InstallSuccess {
		t.Errorf("outcomes = %s/%s", res.Download, res.Install)
	}
	if len(callbacks) != 1 {
		t.Fatalf("callback invoked %d times, want exactly 1", len(callbacks))
	}

	select {
	case <-job.Done():
	default:
		t.Error("Done() channel not closed after terminal state")
	}
}

func TestJobScratchFileRemoved(t *testing.T) {
	song := models.ScrapedSong{Hash: "HASH1", Key: "abc1", Name: "Song"}
	client := &fakeClient{}
	sink := &fakeSink{}
	job := testJob(t, song, client, sink, nil)

	job.Run(context.Background())

	if job.Status() != StatusFinished {
		t.Fatalf("Status() = %s", job.Status())
	}
	if _, err := os.Stat(job.scratchPath()); !os.IsNotExist(err) {
		t.Errorf("scratch file still present after run: %v", err)
	}
}

func TestJobKeyResolutionFailureIsWarnOnly(t *testing.T) {
	song := models.ScrapedSong{Hash: "HASH1", Name: "Song"}
	client := &fakeClient{resolveErr: errors.New("lookup down")}
	sink := &fakeSink{}
	job := testJob(t, song, client, sink, nil)

	job.Run(context.Background())

	res := job.Result()
	if !res.Successful() {
		t.Errorf("job failed on key resolution error: %+v", res)
	}
	if res.Key != "" {
		t.Errorf("Key = %q, want empty", res.Key)
	}
}

func TestJobDownloadError(t *testing.T) {
	song := models.ScrapedSong{Hash: "HASH1", Key: "abc1"}
	client := &fakeClient{downloadErr: errors.New("http 500")}
	sink := &fakeSink{}
	job := testJob(t, song, client, sink, nil)

	job.Run(context.Background())

	if job.Status() != StatusErrored {
		t.Fatalf("Status() = %s, want errored", job.Status())
	}
	res := job.Result()
	if res.Download != DownloadFailed || res.Err == nil {
		t.Errorf("result = %+v, want failed download with error", res)
	}
	if len(sink.placed) != 0 {
		t.Error("destination touched after failed download")
	}
}

func TestJobInstallError(t *testing.T) {
	song := models.ScrapedSong{Hash: "HASH1", Key: "abc1"}
	client := &fakeClient{}
	sink := &fakeSink{placeErr: errors.New("disk full")}
	job := testJob(t, song, client, sink, nil)

	job.Run(context.Background())

	res := job.Result()
	if job.Status() != StatusErrored || res.Install != InstallFailed {
		t.Errorf("status = %s, install = %s, want errored/failed", job.Status(), res.Install)
	}
	if res.Download != DownloadSuccess {
		t.Errorf("Download = %s, want success", res.Download)
	}
}

func TestJobHashMismatchIsWarnOnly(t *testing.T) {
	song := models.ScrapedSong{Hash: "HASH1", Key: "abc1"}
	client := &fakeClient{}
	sink := &fakeSink{}
	rehash := func(dir string) (string, error) { return "OTHERHASH", nil }
	job := testJob(t, song, client, sink, rehash)

	job.Run(context.Background())

	res := job.Result()
	if !res.Successful() {
		t.Errorf("hash mismatch rejected the install: %+v", res)
	}
	if res.HashAfterInstall != "OTHERHASH" {
		t.Errorf("HashAfterInstall = %q", res.HashAfterInstall)
	}
	if len(sink.placed) != 1 {
		t.Error("content not kept after hash mismatch")
	}
}

func TestJobCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	song := models.ScrapedSong{Hash: "HASH1", Key: "abc1"}
	client := &fakeClient{}
	sink := &fakeSink{}
	job := testJob(t, song, client, sink, nil)

	job.Run(ctx)

	if job.Status() != StatusCancelled {
		t.Fatalf("Status() = %s, want cancelled", job.Status())
	}
	if len(client.downloads) != 0 || len(sink.placed) != 0 {
		t.Error("cancelled job performed side effects")
	}
}

func TestJobCancelledDuringDownload(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	song := models.ScrapedSong{Hash: "HASH1", Key: "abc1"}
	client := &fakeClient{block: make(chan struct{})}
	sink := &fakeSink{}
	job := testJob(t, song, client, sink, nil)

	done := make(chan struct{})
	go func() {
		job.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not settle after cancellation")
	}

	res := job.Result()
	if job.Status() != StatusCancelled || !res.Cancelled {
		t.Errorf("status = %s, want cancelled", job.Status())
	}
	if len(sink.placed) != 0 {
		t.Error("cancelled job touched the destination")
	}
}

func TestJobCallbackAfterTerminalFiresOnce(t *testing.T) {
	song := models.ScrapedSong{Hash: "HASH1", Key: "abc1"}
	client := &fakeClient{}
	sink := &fakeSink{}
	job := testJob(t, song, client, sink, nil)

	job.Run(context.Background())

	invoked := 0
	job.SetFinishedCallback(func(res *JobResult) { invoked++ })
	if invoked != 1 {
		t.Errorf("late-registered callback invoked %d times, want 1", invoked)
	}

	// registering again must not re-fire
	job.SetFinishedCallback(func(res *JobResult) { invoked++ })
	if invoked != 1 {
		t.Errorf("callback invoked %d times after re-registration, want 1", invoked)
	}
}

func TestJobPausedGateObservesCancellation(t *testing.T) {
	gate := shared.NewGate()
	gate.Pause()

	song := models.ScrapedSong{Hash: "HASH1", Key: "abc1"}
	client := &fakeClient{}
	sink := &fakeSink{dir: t.TempDir()}
	job, err := NewJob(JobOpts{
		Song:    song,
		Client:  client,
		Sink:    sink,
		TempDir: t.TempDir(),
		Gate:    gate,
		Logger:  shared.NewLogger(io.Discard),
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("paused job did not observe cancellation")
	}
	if job.Status() != StatusCancelled {
		t.Errorf("Status() = %s, want cancelled", job.Status())
	}
}
