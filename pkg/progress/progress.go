// Package progress prints periodic "Progress: N samples, T sec" lines while
// a corpus is indexed or pairs are generated. When the total is known a
// 40-column bar is appended.
//
// A nil *Tracker is valid and does nothing, so callers can pass one through
// unconditionally.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// BarWidth is the number of columns of the progress bar.
const BarWidth = 40

// DefaultRate is the tick interval used when Rate is not positive.
const DefaultRate = 1000

// Tracker counts ticks and reports every Rate of them.
type Tracker struct {
	out    io.Writer
	rate   int
	total  int
	inline bool
	now    func() time.Time

	label lipgloss.Style
	done  lipgloss.Style
	rest  lipgloss.Style

	mu       sync.Mutex
	count    int
	start    time.Time
	duration time.Duration
}

// Options configures New.
type Options struct {
	// Rate is the number of ticks between reports.
	Rate int
	// Total enables the bar; zero means unknown.
	Total int
	// Inline ends in-progress lines with '\r' so they overwrite each other
	// on a terminal.
	Inline bool
}

// New returns a Tracker writing to out. Colors are used only when out is a
// terminal.
func New(out io.Writer, opts Options) *Tracker {
	if opts.Rate <= 0 {
		opts.Rate = DefaultRate
	}
	r := lipgloss.NewRenderer(out)
	t := &Tracker{
		out:    out,
		rate:   opts.Rate,
		total:  max(opts.Total, 0),
		inline: opts.Inline,
		now:    time.Now,
		label:  r.NewStyle().Bold(true),
		done:   r.NewStyle().Foreground(lipgloss.Color("#00ff9f")),
		rest:   r.NewStyle().Foreground(lipgloss.Color("#6e7681")),
	}
	t.start = t.now()
	return t
}

// Tick records one sample and reports if the count is a multiple of the
// rate.
func (t *Tracker) Tick() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count++
	if t.count%t.rate != 0 {
		return
	}
	line := t.line(t.now().Sub(t.start))
	if t.total > 0 {
		line += " [" + t.bar() + "]"
	}
	end := "\n"
	if t.inline {
		end = "\r"
	}
	fmt.Fprint(t.out, line+end)
}

// Done stops the clock and prints the final count and duration.
func (t *Tracker) Done() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.duration = t.now().Sub(t.start)
	fmt.Fprintln(t.out, t.line(t.duration))
}

// Count returns the number of ticks so far.
func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Duration returns the time between New and Done, or zero before Done.
func (t *Tracker) Duration() time.Duration {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duration
}

func (t *Tracker) line(elapsed time.Duration) string {
	return fmt.Sprintf("%s %d samples, %.2fsec", t.label.Render("Progress:"), t.count, elapsed.Seconds())
}

func (t *Tracker) bar() string {
	filled := min(t.count*BarWidth/t.total, BarWidth)
	if filled == BarWidth {
		return t.done.Render(strings.Repeat("=", BarWidth))
	}
	head := strings.Repeat("=", max(filled-1, 0)) + ">"
	return t.done.Render(head) + t.rest.Render(strings.Repeat("-", BarWidth-len(head)))
}
