package usecase

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// Progress writes a single in-place percentage line. The denominator is
// given with every report and reports that would go backwards are ignored.
type Progress struct {
	mu    sync.Mutex
	out   io.Writer
	label string
	done  int
	shown bool
}

// NewProgress creates a new Progress writing to out. A nil out discards reports.
func NewProgress(out io.Writer, label string) *Progress {
	if out == nil {
		out = io.Discard
	}
	return &Progress{
		out:   out,
		label: color.New(color.FgCyan).Sprint(label),
	}
}

// Report rewrites the line with done/total as a percentage
func (p *Progress) Report(done, total int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shown && done < p.done {
		return
	}
	p.done = done
	p.shown = true
	fmt.Fprintf(p.out, "\r%s %s", p.label, FormatPercent(done, total))
}

// Finish terminates the progress line
func (p *Progress) Finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shown {
		fmt.Fprintln(p.out)
		p.shown = false
	}
}

// FormatPercent formats done/total as a percentage with two decimals.
// An empty total is complete.
func FormatPercent(done, total int) string {
	if total <= 0 {
		return "100.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(done)*100/float64(total))
}
