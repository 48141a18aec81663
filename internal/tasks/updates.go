package tasks

import (
	"fmt"

	"github.com/C0rn3j/BeatSync/internal/downloader"
)

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	HashLibrary Phase = iota
	LoadHistory
	ReadFeeds
	FilterSongs
	Download
	Reconcile
	Finalize
)

func (p Phase) String() string {
	switch p {
	case HashLibrary:
		return "hash_library"
	case LoadHistory:
		return "load_history"
	case ReadFeeds:
		return "read_feeds"
	case FilterSongs:
		return "filter_songs"
	case Download:
		return "download"
	case Reconcile:
		return "reconcile"
	case Finalize:
		return "finalize"
	default:
		return ""
	}
}

func hashingLibraryUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   HashLibrary,
		Message: "Hashing song library...",
	}
}

func libraryHashedUpdate(newlyHashed, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   HashLibrary,
		Total:   total,
		Message: fmt.Sprintf("Hashed %d new songs (%d installed)", newlyHashed, total),
	}
}

func loadingHistoryUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadHistory,
		Message: "Loading sync history...",
	}
}

func readingFeedsUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReadFeeds,
		Message: "Reading song feeds...",
	}
}

func feedsReadUpdate(found int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReadFeeds,
		Total:   found,
		Message: fmt.Sprintf("Found %d unique songs", found),
	}
}

func filteredUpdate(newSongs, found int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FilterSongs,
		Step:    newSongs,
		Total:   found,
		Message: fmt.Sprintf("%d of %d songs are new", newSongs, found),
	}
}

func queuedUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Download,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Queued: %s", step, total, name),
	}
}

func jobFinishedUpdate(step, total int, res *downloader.JobResult) ProgressUpdate {
	var message string
	switch {
	case res.Cancelled:
		message = fmt.Sprintf("[%d/%d] cancelled: %s", step, total, res.Name)
	case res.Successful():
		message = fmt.Sprintf("[%d/%d] ✓ %s", step, total, res.Name)
	default:
		message = fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.Name, res.Err)
	}
	return ProgressUpdate{
		Phase:   Download,
		Step:    step,
		Total:   total,
		Message: message,
		Data:    res,
	}
}

func reconcilingUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   Reconcile,
		Message: "Reconciling history against installed songs...",
	}
}

func finishedUpdate(result *RunResult) ProgressUpdate {
	return ProgressUpdate{
		Phase: Finalize,
		Message: fmt.Sprintf("Done: %d downloaded, %d failed, %d cancelled",
			result.Downloaded, result.Failed, result.Cancelled),
		Data: result,
	}
}
