// Package spinner provides a single-line progress indicator for interactive
// terminals. Long agent calls would otherwise leave the terminal silent for
// minutes at a time.
package spinner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const frameInterval = 80 * time.Millisecond

// Spinner animates a message on one terminal line. The message can be
// swapped while the spinner runs, so one spinner can follow a whole batch.
type Spinner struct {
	w io.Writer

	mu      sync.Mutex
	message string
	width   int // widest line drawn so far, for clearing

	done    chan struct{}
	cleared chan struct{}
	stop    sync.Once
}

// New creates a spinner writing to w. The spinner is idle until Start.
func New(w io.Writer) *Spinner {
	return &Spinner{
		w:       w,
		done:    make(chan struct{}),
		cleared: make(chan struct{}),
	}
}

// Start begins animating with the given message.
func (s *Spinner) Start(message string) {
	s.SetMessage(message)
	go s.loop()
}

// SetMessage replaces the displayed message on the next frame.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Stop halts the animation and clears the line. Safe to call more than once;
// it returns after the line has been cleared.
func (s *Spinner) Stop() {
	s.stop.Do(func() {
		close(s.done)
	})
	<-s.cleared
}

func (s *Spinner) loop() {
	for i := 0; ; i++ {
		select {
		case <-s.done:
			s.clear()
			close(s.cleared)
			return
		case <-time.After(frameInterval):
			s.draw(frames[i%len(frames)])
		}
	}
}

func (s *Spinner) draw(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := frame + " " + s.message
	if w := runewidth.StringWidth(line); w > s.width {
		s.width = w
	}
	fmt.Fprintf(s.w, "\r%s", line) //nolint:errcheck
}

func (s *Spinner) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", s.width)) //nolint:errcheck
}
