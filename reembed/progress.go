package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Progress writes a single self-overwriting progress line for a run over a
// known number of contexts. A line is written whenever at least every
// contexts have completed since the previous line.
type Progress struct {
	mu       sync.Mutex
	w        io.Writer
	total    int
	every    int
	done     int
	reported int
	start    time.Time
	running  bool
}

// NewProgress creates a progress reporter. An interval below 1 reports on
// every update.
func NewProgress(w io.Writer, total, every int) *Progress {
	if every < 1 {
		every = 1
	}
	return &Progress{w: w, total: total, every: every}
}

// Start begins timing. Updates before Start are ignored.
func (p *Progress) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.start = time.Now()
	p.running = true
	p.done = 0
	p.reported = 0
}

// Add records n more completed contexts.
func (p *Progress) Add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.done = min(p.done+n, p.total)
	if p.done-p.reported >= p.every {
		p.writeLine()
		p.reported = p.done
	}
}

// Finish marks every context done and ends the line.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.done = p.total
	p.writeLine()
	fmt.Fprintln(p.w)
}

// Elapsed returns the time since Start, or zero if not started.
func (p *Progress) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return 0
	}
	return time.Since(p.start)
}

func (p *Progress) writeLine() {
	elapsed := time.Since(p.start).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.done) / elapsed
	}
	pct := 0.0
	if p.total > 0 {
		pct = float64(p.done) / float64(p.total) * 100
	}
	fmt.Fprintf(p.w, "\rReembedded %d/%d contexts (%.1f%%) %.1f contexts/s", p.done, p.total, pct, rate)
}
