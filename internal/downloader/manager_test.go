package downloader

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/C0rn3j/BeatSync/internal/models"
	"github.com/C0rn3j/BeatSync/internal/shared"
)

func TestNewManagerClampsConcurrency(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 1},
		{-3, 1},
		{1, 1},
		{5, 5},
		{10, 10},
		{50, 10},
	}
	for _, tt := range tests {
		if got := NewManager(tt.in, shared.NewLogger(io.Discard)).Concurrency(); got != tt.want {
			t.Errorf("NewManager(%d).Concurrency() = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestManagerEndToEnd(t *testing.T) {
	client := &fakeClient{}
	sink := &fakeSink{dir: t.TempDir()}
	mgr := NewManager(2, shared.NewLogger(io.Discard))
	mgr.Start(context.Background())

	for i := 0; i < 3; i++ {
		song := models.ScrapedSong{Hash: fmt.Sprintf("HASH%d", i), Key: fmt.Sprintf("k%d", i)}
		job, err := NewJob(JobOpts{
			Song:    song,
			Client:  client,
			Sink:    sink,
			TempDir: t.TempDir(),
			Logger:  shared.NewLogger(io.Discard),
		})
		if err != nil {
			t.Fatal(err)
		}
		if !mgr.TrySubmit(job) {
			t.Fatalf("TrySubmit() job %d = false, want true", i)
		}
	}

	result := mgr.Wait()
	if result.Succeeded != 3 || result.Failed != 0 || result.Cancelled != 0 {
		t.Errorf("result = %d/%d/%d, want 3 succeeded", result.Succeeded, result.Failed, result.Cancelled)
	}
	if len(result.Results) != 3 {
		t.Errorf("got %d terminal results, want 3", len(result.Results))
	}
	if len(sink.ExistingHashes()) != 3 {
		t.Errorf("destination has %d installs, want 3", len(sink.ExistingHashes()))
	}
}

func TestManagerDuplicateAdmission(t *testing.T) {
	block := make(chan struct{})
	client := &fakeClient{block: block}
	sink := &fakeSink{dir: t.TempDir()}

	newJob := func() *Job {
		job, err := NewJob(JobOpts{
			Song:    models.ScrapedSong{Hash: "SAME", Key: "k"},
			Client:  client,
			Sink:    sink,
			TempDir: t.TempDir(),
			Logger:  shared.NewLogger(io.Discard),
		})
		if err != nil {
			t.Fatal(err)
		}
		return job
	}

	mgr := NewManager(1, shared.NewLogger(io.Discard))
	mgr.Start(context.Background())

	first := newJob()
	if !mgr.TrySubmit(first) {
		t.Fatal("first TrySubmit() = false, want true")
	}
	if mgr.TrySubmit(newJob()) {
		t.Fatal("duplicate TrySubmit() = true, want false while first is queued/running")
	}

	close(block)
	select {
	case <-first.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("first job never finished")
	}

	third := newJob()
	if !mgr.TrySubmit(third) {
		t.Error("TrySubmit() after terminal state = false, want true")
	}

	result := mgr.Wait()
	if len(result.Results) != 2 {
		t.Errorf("got %d results, want 2 (duplicate was rejected)", len(result.Results))
	}
}

func TestManagerCancellation(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	client := &fakeClient{block: block}
	sink := &fakeSink{dir: t.TempDir()}

	ctx, cancel := context.WithCancel(context.Background())
	mgr := NewManager(1, shared.NewLogger(io.Discard))
	mgr.Start(ctx)

	jobs := make([]*Job, 3)
	for i := range jobs {
		job, err := NewJob(JobOpts{
			Song:    models.ScrapedSong{Hash: fmt.Sprintf("HASH%d", i), Key: "k"},
			Client:  client,
			Sink:    sink,
			TempDir: t.TempDir(),
			Logger:  shared.NewLogger(io.Discard),
		})
		if err != nil {
			t.Fatal(err)
		}
		jobs[i] = job
		if !mgr.TrySubmit(job) {
			t.Fatalf("TrySubmit() job %d = false", i)
		}
	}

	// first job is blocked inside its download; the rest are queued
	cancel()
	result := mgr.Wait()

	if result.Cancelled != 3 {
		t.Errorf("Cancelled = %d, want 3", result.Cancelled)
	}
	for i, job := range jobs[1:] {
		res := job.Result()
		if res == nil {
			t.Fatalf("queued job %d has no terminal result", i+1)
		}
		if res.Download != DownloadUnknown {
			t.Errorf("queued job %d started a download (%s), want never started", i+1, res.Download)
		}
	}
	if len(sink.ExistingHashes()) != 0 {
		t.Error("cancelled run touched the destination")
	}
}
