package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressReporter reports progress over a known number of items.
type ProgressReporter interface {
	Start(total int)
	Update(current int)
	Finish()
}

// BarProgress renders a single-line bar, redrawn in place.
type BarProgress struct {
	mu      sync.Mutex
	label   string
	total   int
	current int
	started time.Time
	writer  io.Writer
}

// NewProgressReporter creates a progress reporter that writes to w.
// If w is nil, it defaults to os.Stderr.
func NewProgressReporter(w io.Writer, label string) ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	return &BarProgress{writer: w, label: label}
}

// Start initializes the reporter with the total number of items.
func (p *BarProgress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.current = 0
	p.started = time.Now()
	p.render()
}

// Update sets the number of items done.
func (p *BarProgress) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if current > p.total {
		current = p.total
	}
	p.current = current
	p.render()
}

// Finish marks every item done and ends the line.
func (p *BarProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = p.total
	p.render()
	if p.total > 0 {
		fmt.Fprintln(p.writer)
	}
}

func (p *BarProgress) render() {
	if p.total == 0 {
		return
	}

	const barWidth = 30
	percent := float64(p.current) / float64(p.total) * 100
	filled := p.current * barWidth / p.total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	fmt.Fprintf(p.writer, "\r%s [%s] %5.1f%% (%d/%d) %s",
		p.label, bar, percent, p.current, p.total, time.Since(p.started).Round(time.Millisecond))
}

// NopProgress discards all progress.
type NopProgress struct{}

func (NopProgress) Start(int)  {}
func (NopProgress) Update(int) {}
func (NopProgress) Finish()    {}
