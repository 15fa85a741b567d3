package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker writes a single updating progress line.
type ProgressTracker struct {
	mu sync.Mutex

	w        io.Writer
	total    int
	done     int
	every    int
	reported int
	start    time.Time
	running  bool
}

// NewProgressTracker reports to w every `every` items out of total.
func NewProgressTracker(w io.Writer, total, every int) *ProgressTracker {
	if every < 1 {
		every = 1
	}
	return &ProgressTracker{w: w, total: total, every: every}
}

// Start resets the counters and starts the clock.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.start = time.Now()
	p.running = true
	p.done = 0
	p.reported = 0
}

// Update sets the number of processed items, capped at the total.
func (p *ProgressTracker) Update(done int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.done = min(done, p.total)
	if p.done-p.reported >= p.every {
		p.writeLine()
		p.reported = p.done
	}
}

// Finish prints the final line.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.done = p.total
	p.writeLine()
	fmt.Fprintln(p.w)
	p.running = false
}

// Elapsed returns the time since Start.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.start.IsZero() {
		return 0
	}
	return time.Since(p.start)
}

// writeLine must be called with p.mu held.
func (p *ProgressTracker) writeLine() {
	var pct float64
	if p.total > 0 {
		pct = 100 * float64(p.done) / float64(p.total)
	}
	rate := float64(p.done) / max(time.Since(p.start).Seconds(), 1e-9)
	fmt.Fprintf(p.w, "\rEmbedded %d/%d chunks (%.1f%%) at %.1f chunks/s", p.done, p.total, pct, rate)
}
