// Package console renders scan progress on a terminal.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/kaliumosint/api/pkg/domain/scan"
)

const (
	defaultWidth = 80
	minBarWidth  = 10
	maxBarWidth  = 40
)

var (
	filledStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00D4AA"))
	emptyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	percentStyle = lipgloss.NewStyle().Bold(true)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Sink writes progress events to a terminal. On a TTY the bar is redrawn in
// place; otherwise every event gets its own plain line.
type Sink struct {
	mu          sync.Mutex
	out         io.Writer
	interactive bool
	color       bool
	width       int
	open        bool
}

// Option configures a Sink.
type Option func(*Sink)

// WithInteractive overrides terminal detection.
func WithInteractive(interactive bool) Option {
	return func(s *Sink) {
		s.interactive = interactive
		s.color = interactive
	}
}

// WithWidth overrides the detected terminal width.
func WithWidth(width int) Option {
	return func(s *Sink) {
		if width > 0 {
			s.width = width
		}
	}
}

// NewSink creates a Sink writing to out.
func NewSink(out io.Writer, opts ...Option) *Sink {
	s := &Sink{out: out, width: defaultWidth}
	if f, ok := out.(*os.File); ok && os.Getenv("TERM") != "dumb" {
		fd := int(f.Fd())
		if term.IsTerminal(fd) {
			s.interactive = true
			s.color = true
			if w, _, err := term.GetSize(fd); err == nil && w > 0 {
				s.width = w
			}
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Push renders one event. A failed write is reported as an unavailable sink,
// which aborts the run.
func (s *Sink) Push(_ context.Context, event scan.ProgressEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := s.render(event)
	var err error
	if s.interactive {
		_, err = fmt.Fprint(s.out, "\r\x1b[K"+line)
		s.open = true
		if event.ProgressPercent >= 100 {
			_, err = fmt.Fprintln(s.out)
			s.open = false
		}
	} else {
		_, err = fmt.Fprintln(s.out, line)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", scan.ErrSinkUnavailable, err)
	}
	return nil
}

// Close terminates a bar left open by an aborted run.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false
	_, err := fmt.Fprintln(s.out)
	return err
}

func (s *Sink) render(event scan.ProgressEvent) string {
	barWidth := min(max(s.width/3, minBarWidth), maxBarWidth)
	filled := barWidth * event.ProgressPercent / 100

	bar := "[" + s.style(filledStyle, strings.Repeat("#", filled)) +
		s.style(emptyStyle, strings.Repeat("-", barWidth-filled)) + "]"
	head := fmt.Sprintf("%s %s %d/%d %s", bar,
		s.style(percentStyle, fmt.Sprintf("%3d%%", event.ProgressPercent)),
		event.StepIndex, event.TotalSteps,
		s.style(statusStyle, event.Status))

	if event.Details == "" {
		return head
	}
	details := event.Details
	if s.interactive {
		// Keep the redrawn line on one row.
		room := s.width - lipgloss.Width(head) - 3
		if room <= 0 {
			return head
		}
		details = truncate(details, room)
	}
	return head + " - " + s.style(detailStyle, details)
}

func (s *Sink) style(st lipgloss.Style, text string) string {
	if !s.color {
		return text
	}
	return st.Render(text)
}

func truncate(text string, width int) string {
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
