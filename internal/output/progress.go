package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Spinner shows activity on a terminal while a capture or run is in flight.
// On anything other than a terminal it prints the title once per Update.
type Spinner struct {
	mu          sync.Mutex
	writer      io.Writer
	title       string
	chars       []string
	index       int
	active      bool
	interactive bool
	ticker      *time.Ticker
	done        chan struct{}
	stopped     chan struct{}
	noColor     bool
}

// NewSpinner creates a new spinner writing to w
func NewSpinner(w io.Writer, title string, noColor bool) *Spinner {
	return &Spinner{
		writer:      w,
		title:       title,
		chars:       []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		interactive: IsTerminal(w),
		noColor:     noColor,
	}
}

// Start starts the spinner
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return
	}
	s.active = true

	if !s.interactive {
		fmt.Fprintf(s.writer, "%s...\n", s.title)
		return
	}

	s.ticker = time.NewTicker(100 * time.Millisecond)
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})

	go func(ticker *time.Ticker, done, stopped chan struct{}) {
		defer close(stopped)
		for {
			select {
			case <-ticker.C:
				s.render()
			case <-done:
				return
			}
		}
	}(s.ticker, s.done, s.stopped)
}

// Stop stops the spinner and clears its line
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	if !s.interactive {
		s.mu.Unlock()
		return
	}
	s.ticker.Stop()
	close(s.done)
	stopped, width := s.stopped, len(s.title)+4
	s.mu.Unlock()

	<-stopped
	fmt.Fprintf(s.writer, "\r%s\r", strings.Repeat(" ", width))
}

// Update updates the spinner title
func (s *Spinner) Update(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
	if s.active && !s.interactive {
		fmt.Fprintf(s.writer, "%s...\n", title)
	}
}

// render renders the spinner
func (s *Spinner) render() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}

	char := s.chars[s.index]
	s.index = (s.index + 1) % len(s.chars)

	var output strings.Builder
	output.WriteString(s.colorize(char, color.FgCyan))
	output.WriteString(" ")
	output.WriteString(s.colorize(s.title, color.FgWhite))

	fmt.Fprintf(s.writer, "\r%s", output.String())
}

// colorize applies color if colors are enabled
func (s *Spinner) colorize(text string, attrs ...color.Attribute) string {
	if s.noColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}
