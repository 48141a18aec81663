package downloader

// DownloadOutcome describes how the payload fetch step ended.
type DownloadOutcome int

const (
	DownloadUnknown DownloadOutcome = iota
	DownloadSuccess
	DownloadCancelled
	DownloadFailed
)

func (o DownloadOutcome) String() string {
	switch o {
	case DownloadSuccess:
		return "success"
	case DownloadCancelled:
		return "cancelled"
	case DownloadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// InstallOutcome describes how the extract/install step ended.
type InstallOutcome int

const (
	InstallUnknown InstallOutcome = iota
	InstallSuccess
	InstallCancelled
	InstallFailed
)

func (o InstallOutcome) String() string {
	switch o {
	case InstallSuccess:
		return "success"
	case InstallCancelled:
		return "cancelled"
	case InstallFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// JobResult is the terminal outcome of one job. It is never mutated after
// the job reaches a terminal state.
type JobResult struct {
	JobID            string
	Hash             string
	Key              string
	Name             string
	LevelAuthorName  string
	Download         DownloadOutcome
	Install          InstallOutcome
	DestinationPath  string
	HashAfterInstall string
	Cancelled        bool
	Err              error
}

// Successful reports whether the song was downloaded and installed.
func (r *JobResult) Successful() bool {
	return r != nil && !r.Cancelled && r.Err == nil && r.Install == InstallSuccess
}
