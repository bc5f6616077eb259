package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/airbusgeo/geotiler"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// progressDisplay draws a progress bar on stderr when it is a terminal.
type progressDisplay struct {
	*geotiler.Progress
	mu      sync.Mutex
	out     io.Writer
	bar     progress.Model
	label   string
	last    time.Time
	enabled bool
}

func newProgressDisplay(label string, disabled bool) *progressDisplay {
	pd := &progressDisplay{
		Progress: &geotiler.Progress{},
		out:      os.Stderr,
		label:    label,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
	if disabled || !isatty.IsTerminal(os.Stderr.Fd()) {
		return pd
	}
	pd.enabled = true
	pd.Progress.OnAdvance = pd.render
	return pd
}

func (pd *progressDisplay) render(done, total int64) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	if done < total && time.Since(pd.last) < 100*time.Millisecond {
		return
	}
	pd.last = time.Now()
	fmt.Fprintf(pd.out, "\r%s %s %d/%d", pd.label, pd.bar.ViewAs(ratio(done, total)), done, total)
}

// Finish draws the final state and ends the line.
func (pd *progressDisplay) Finish() {
	if !pd.enabled {
		return
	}
	pd.mu.Lock()
	pd.last = time.Time{}
	pd.mu.Unlock()
	pd.render(pd.Done(), pd.Total())
	fmt.Fprintln(pd.out)
}

func ratio(done, total int64) float64 {
	if total <= 0 {
		return 0
	}
	r := float64(done) / float64(total)
	if r > 1 {
		r = 1
	}
	return r
}

var (
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

// printSummary writes a one line summary of s to w, highlighted when w is a
// terminal.
func printSummary(w io.Writer, title string, s geotiler.Summary) {
	line := fmt.Sprintf("%s: %s", title, s)
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		if s.Failed > 0 {
			line = failedStyle.Render(line)
		} else {
			line = okStyle.Render(line)
		}
	}
	fmt.Fprintln(w, line)
}
