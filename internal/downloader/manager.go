package downloader

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/C0rn3j/BeatSync/internal/shared"
)

const (
	// MinConcurrentDownloads and MaxConcurrentDownloads bound the worker
	// count; values outside the range are clamped.
	MinConcurrentDownloads = 1
	MaxConcurrentDownloads = 10
)

// Result aggregates the terminal results of every job a manager admitted.
type Result struct {
	Succeeded int
	Failed    int
	Cancelled int
	Results   []*JobResult
}

// Manager schedules jobs across a bounded pool of workers. At most one job
// per content hash is queued or running at a time; a hash becomes
// submittable again once its job reaches a terminal state.
type Manager struct {
	concurrency int
	logger      *log.Logger

	mu          sync.Mutex
	cond        *sync.Cond
	queue       []*Job
	active      map[string]*Job
	results     []*JobResult
	outstanding int
	started     bool
	cancelled   bool
	closed      bool
}

// NewManager creates a manager running at most concurrency jobs at once.
func NewManager(concurrency int, logger *log.Logger) *Manager {
	if concurrency < MinConcurrentDownloads {
		concurrency = MinConcurrentDownloads
	}
	if concurrency > MaxConcurrentDownloads {
		concurrency = MaxConcurrentDownloads
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	m := &Manager{
		concurrency: concurrency,
		logger:      logger,
		active:      make(map[string]*Job),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Concurrency returns the effective worker count after clamping.
func (m *Manager) Concurrency() int { return m.concurrency }

// Start launches the worker pool. Workers run until the manager is closed by
// Wait or the context is cancelled; cancellation drains queued jobs as
// cancelled rather than running them.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		m.cancelled = true
		m.cond.Broadcast()
		m.mu.Unlock()
	}()

	for i := 0; i < m.concurrency; i++ {
		go m.worker(ctx, i)
	}

	m.logger.Debug("download manager started", "workers", m.concurrency)
}

// TrySubmit queues a job unless one with the same hash is already queued or
// running, or the manager is no longer accepting work. It reports whether
// the job was accepted.
func (m *Manager) TrySubmit(job *Job) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.cancelled {
		return false
	}
	if _, exists := m.active[job.Hash()]; exists {
		return false
	}
	m.active[job.Hash()] = job
	m.queue = append(m.queue, job)
	m.outstanding++
	m.cond.Signal()
	return true
}

func (m *Manager) worker(ctx context.Context, id int) {
	for {
		m.mu.Lock()
		for len(m.queue) == 0 && !m.closed && !m.cancelled {
			m.cond.Wait()
		}
		if m.cancelled {
			// Drain whatever is still queued; each queued job still
			// gets its terminal transition.
			queued := m.queue
			m.queue = nil
			m.mu.Unlock()
			for _, job := range queued {
				job.markCancelled()
				m.record(job)
			}
			return
		}
		if len(m.queue) == 0 {
			// closed with nothing left to do
			m.mu.Unlock()
			return
		}
		job := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		m.logger.Debug("worker picked up job", "worker", id, "job", job.ID())
		job.Run(ctx)
		m.record(job)
	}
}

func (m *Manager) record(job *Job) {
	m.mu.Lock()
	m.results = append(m.results, job.Result())
	delete(m.active, job.Hash())
	m.outstanding--
	m.cond.Broadcast()
	m.mu.Unlock()
}

// Wait blocks until every admitted job reaches a terminal state, then closes
// the manager to further submissions and returns the aggregate result.
// Cancelling the Start context unblocks Wait once the in-flight and queued
// jobs settle.
func (m *Manager) Wait() Result {
	m.mu.Lock()
	for m.outstanding > 0 {
		m.cond.Wait()
	}
	m.closed = true
	m.cond.Broadcast()

	result := Result{Results: make([]*JobResult, len(m.results))}
	copy(result.Results, m.results)
	m.mu.Unlock()

	for _, r := range result.Results {
		switch {
		case r == nil:
			continue
		case r.Cancelled:
			result.Cancelled++
		case r.Successful():
			result.Succeeded++
		default:
			result.Failed++
		}
	}
	return result
}
