// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

// Yet another (braille) spinner, and a live progress line using it.

package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/siemens/hostprobe/dispatch"

	"github.com/gosuri/uilive"
)

// spinner is yet another blindingly simple spinner; just enough to get the job
// done, no bells, no frills.
type spinner struct {
	ticker *time.Ticker
	phases []string
	done   chan struct{}
	mu     sync.Mutex
	phase  int
}

// newSpinner returns a new spinner; later call the Start method to make it
// spinning, and the Stop method to stop it and release background resources.
func newSpinner() *spinner {
	phases := []string{}
	for _, r := range "⠉⠘⠰⠤⠆⠃" {
		phases = append(phases, string(r)+" ")
	}
	s := &spinner{
		phases: phases,
		done:   make(chan struct{}),
	}
	return s
}

// Spinner returns the spinner string for the current phase.
func (s *spinner) Spinner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phases[s.phase]
}

// Start the spinner to spin in steps every specified interval.
func (s *spinner) Start(interval time.Duration) {
	s.ticker = time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.mu.Lock()
				s.phase++
				if s.phase >= len(s.phases) {
					s.phase = 0
				}
				s.mu.Unlock()
			case <-s.done:
				s.ticker.Stop()
				return
			}
		}
	}()
}

// Stop the spinner and release the background resources.
func (s *spinner) Stop() {
	close(s.done)
}

// liveProgress renders a single, in-place updated progress line.
type liveProgress struct {
	term     *uilive.Writer
	spinner  *spinner
	interval time.Duration
	tracking bool
	done     chan struct{}
	stopped  chan struct{}
}

// newLiveProgress returns a new liveProgress rendering to w; call Track to
// start rendering.
func newLiveProgress(w io.Writer, interval time.Duration) *liveProgress {
	// uilive's background updating using Start() may trigger anytime with the
	// rendering into the buffer not yet complete, making the terminal output
	// flicker. So we avoid Start() and instead explicitly flush after having
	// completed rendering.
	term := uilive.New()
	term.Out = w
	return &liveProgress{
		term:     term,
		spinner:  newSpinner(),
		interval: interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Track the progress as returned by stats until stopped.
func (l *liveProgress) Track(stats func() dispatch.Progress) {
	l.tracking = true
	l.spinner.Start(l.interval)
	go func() {
		defer close(l.stopped)
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.render(stats(), false)
			case <-l.done:
				l.render(stats(), true)
				return
			}
		}
	}()
}

// Stop tracking after rendering the final progress.
func (l *liveProgress) Stop() {
	close(l.done)
	if l.tracking {
		<-l.stopped
	}
	l.spinner.Stop()
}

func (l *liveProgress) render(p dispatch.Progress, final bool) {
	mark := l.spinner.Spinner()
	if final {
		mark = "✔ "
	}
	fmt.Fprintf(l.term, "%s%d processed, %d in flight (peak %d), %d completed, %d skipped\n",
		mark, p.Lines, p.Outstanding, p.Peak, p.Completed, p.Skipped)
	_ = l.term.Flush()
}
