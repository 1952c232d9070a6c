package reindex

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Progress is a point-in-time view of a ProgressTracker.
type Progress struct {
	Done    int
	Total   int
	Elapsed time.Duration
}

// Percent returns the completed share of the work, 0 to 100.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return float64(p.Done) / float64(p.Total) * 100
}

// Rate returns completed chunks per second.
func (p Progress) Rate() float64 {
	if p.Elapsed <= 0 {
		return 0
	}
	return float64(p.Done) / p.Elapsed.Seconds()
}

// ProgressTracker tracks and reports progress of a reindex run.
// Output is a single line rewritten in place, so it suits a terminal.
type ProgressTracker struct {
	writer         io.Writer
	total          int
	done           int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// NewProgressTracker creates a tracker for total chunks that reports every
// reportInterval chunks. A nil writer discards the output.
func NewProgressTracker(writer io.Writer, total, reportInterval int) *ProgressTracker {
	if writer == nil {
		writer = io.Discard
	}
	if reportInterval < 1 {
		reportInterval = 1
	}
	return &ProgressTracker{
		writer:         writer,
		total:          total,
		reportInterval: reportInterval,
	}
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.done = 0
	p.lastReported = 0
}

// Add records delta more completed chunks.
func (p *ProgressTracker) Add(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.done = min(p.done+delta, p.total)
	if p.done-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.done
	}
}

// Finish marks the run as complete and prints the final line.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.done = p.total
	p.report()
	fmt.Fprintln(p.writer)
}

// Snapshot returns the current progress.
func (p *ProgressTracker) Snapshot() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Progress{Done: p.done, Total: p.total}
	if p.started {
		snap.Elapsed = time.Since(p.startTime)
	}
	return snap
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	snap := Progress{Done: p.done, Total: p.total, Elapsed: time.Since(p.startTime)}
	fmt.Fprintf(p.writer, "\rReindexed %d/%d chunks (%.1f%%) - %.1f chunks/s",
		snap.Done, snap.Total, snap.Percent(), snap.Rate())
}
