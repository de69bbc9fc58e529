// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package dispatch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/siemens/hostprobe/types"

	"github.com/benbjohnson/clock"
	"github.com/gammazero/workerpool"
	"github.com/thediveo/lxkns/log"
	"golang.org/x/time/rate"
)

// Defaults for new Dispatchers.
const (
	DefaultMaxOutstanding = 500
	DefaultPort           = 80
	DefaultCooldown       = 100 * time.Millisecond
	DefaultNotify         = 100
)

// Runner runs a single probe to its result; [*probe.Probe] is a Runner.
type Runner interface {
	Run(ctx context.Context) types.Result
}

// ProbeFactory returns a new probe Runner for the specified target.
type ProbeFactory func(target types.Target) Runner

// Progress informs about how far a Dispatcher has come.
type Progress struct {
	Lines         int  // lines read from the host list.
	Started       int  // probes started.
	Completed     int  // probes completed.
	Skipped       int  // lines skipped as unsupported addresses.
	Outstanding   int  // probes started, but not yet completed.
	Peak          int  // maximum of outstanding probes so far.
	InputFinished bool // reached the end of the host list.
}

// Dispatcher probes the hosts from a host list, with a limit on the number of
// outstanding probes at any time. Results are streamed over the channel
// returned by New.
type Dispatcher struct {
	factory        ProbeFactory
	maxOutstanding int
	port           int
	cooldown       time.Duration
	notify         int
	progress       func(Progress)
	limiter        *rate.Limiter
	clock          clock.Clock

	mu       sync.Mutex // protects stats
	stats    Progress
	running  bool
	pending  *types.Target // target held back by the rate limiter.
	workers  *workerpool.WorkerPool
	finished chan types.Result // probe results from the workers.
	news     chan types.Result
}

// Option can be passed to New when creating new Dispatcher objects.
type Option func(*Dispatcher)

// New returns a new Dispatcher that creates probes using the specified
// factory, as well as a “news stream” of the probe results. The news channel
// gets closed when [Dispatcher.Run] returns.
//
// Unless overridden by options, a Dispatcher keeps at most 500 probes
// outstanding, uses port 80, refills every 100ms, and notifies about its
// progress every 100 lines.
func New(factory ProbeFactory, options ...Option) (*Dispatcher, <-chan types.Result) {
	d := &Dispatcher{
		factory:        factory,
		maxOutstanding: DefaultMaxOutstanding,
		port:           DefaultPort,
		cooldown:       DefaultCooldown,
		notify:         DefaultNotify,
		clock:          clock.New(),
	}
	for _, opt := range options {
		opt(d)
	}
	if d.maxOutstanding < 0 {
		d.maxOutstanding = 0
	}
	d.news = make(chan types.Result, d.maxOutstanding)
	return d, d.news
}

// WithMaxOutstanding sets the maximum number of probes in flight at any time.
// A Dispatcher with a maximum of zero doesn't probe at all.
func WithMaxOutstanding(n int) Option {
	return func(d *Dispatcher) {
		d.maxOutstanding = n
	}
}

// WithPort sets the port to probe on all hosts.
func WithPort(port int) Option {
	return func(d *Dispatcher) {
		d.port = port
	}
}

// WithCooldown sets the interval at which the Dispatcher checks the host list
// for more lines in case it couldn't get any on the previous attempt.
func WithCooldown(cooldown time.Duration) Option {
	if cooldown <= 0 {
		panic(fmt.Errorf("Dispatcher: cooldown must be positive, got: %s", cooldown))
	}
	return func(d *Dispatcher) {
		d.cooldown = cooldown
	}
}

// WithNotify sets after how many lines read from the host list the progress
// function gets called. Zero disables progress notification, except for
// reaching the end of the host list.
func WithNotify(lines int) Option {
	return func(d *Dispatcher) {
		d.notify = lines
	}
}

// WithProgress sets a function to be called with progress information. The
// function is called on the goroutine running the Dispatcher, so it should
// return quickly.
func WithProgress(fn func(Progress)) Option {
	return func(d *Dispatcher) {
		d.progress = fn
	}
}

// WithRate limits the number of probes started per second; zero means
// unlimited.
func WithRate(perSecond float64) Option {
	return func(d *Dispatcher) {
		if perSecond <= 0 {
			d.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithClock sets the clock used for the refill cooldown and the rate limiter.
func WithClock(c clock.Clock) Option {
	return func(d *Dispatcher) {
		d.clock = c
	}
}

// Stats returns a snapshot of the Dispatcher's progress.
func (d *Dispatcher) Stats() Progress {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Run probes all hosts from the specified host list until either the list is
// exhausted and all probes have completed, or the context is cancelled. The
// host list consists of lines with one host each. Run must be called only
// once; it closes the news channel returned by New before returning.
//
// When the specified context gets cancelled, Run immediately stops reading
// more hosts and returns after the outstanding probes have completed; probes
// are given the same context, so they usually terminate quickly.
//
// Run only returns an error if reading the host list failed, or the context
// got cancelled.
func (d *Dispatcher) Run(ctx context.Context, hosts io.Reader) error {
	defer close(d.news)
	if d.maxOutstanding == 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string) // hands over one line at a time.
	readerr := make(chan error, 1)
	go readLines(ctx, hosts, lines, readerr)

	d.workers = workerpool.New(d.maxOutstanding)
	defer d.workers.StopWait()
	d.finished = make(chan types.Result)
	ticker := d.clock.Ticker(d.cooldown)
	defer ticker.Stop()

	d.running = true
	d.refill(ctx, lines)
	cancelled := ctx.Done()
	for d.running || d.outstanding() > 0 {
		// Only pick up the next line as soon as it becomes available if there
		// is room for another probe.
		var nextLine <-chan string
		if d.running && d.pending == nil && d.outstanding() < d.maxOutstanding {
			nextLine = lines
		}
		select {
		case res := <-d.finished:
			d.update(func(s *Progress) {
				s.Outstanding--
				s.Completed++
			})
			select {
			case d.news <- res:
			case <-ctx.Done():
			}
			d.refill(ctx, lines)
		case line, ok := <-nextLine:
			d.accept(ctx, line, ok)
			d.refill(ctx, lines)
		case <-ticker.C:
			d.refill(ctx, lines)
		case <-cancelled:
			log.Debugf("dispatcher cancelled, waiting for %d outstanding probes", d.outstanding())
			d.running = false
			d.pending = nil
			cancelled = nil
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case err := <-readerr:
		if err != nil {
			return fmt.Errorf("cannot read host list: %w", err)
		}
	default:
	}
	return nil
}

// readLines reads the host list line by line, handing each line over before
// reading the next one.
func readLines(ctx context.Context, hosts io.Reader, lines chan<- string, readerr chan<- error) {
	defer close(lines)
	scanner := bufio.NewScanner(hosts)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
	readerr <- scanner.Err()
}

// refill starts new probes for the hosts from the host list that are
// immediately available, as long as the maximum of outstanding probes hasn't
// been reached yet.
func (d *Dispatcher) refill(ctx context.Context, lines <-chan string) {
	if d.pending != nil {
		if !d.allow() {
			return
		}
		target := *d.pending
		d.pending = nil
		d.start(ctx, target)
	}
	for d.running && d.pending == nil && d.outstanding() < d.maxOutstanding {
		select {
		case line, ok := <-lines:
			d.accept(ctx, line, ok)
		default:
			return
		}
	}
}

// accept a line from the host list, or the end of the host list.
func (d *Dispatcher) accept(ctx context.Context, line string, ok bool) {
	if !ok {
		d.running = false
		d.update(func(s *Progress) { s.InputFinished = true })
		d.notifyProgress()
		return
	}
	d.update(func(s *Progress) { s.Lines++ })
	host := strings.TrimSpace(line)
	switch {
	case host == "":
	case strings.Contains(host, ":"):
		log.Debugf("skipping unsupported address %q", host)
		d.update(func(s *Progress) { s.Skipped++ })
	default:
		target := types.Target{Host: host, Port: d.port}
		if d.allow() {
			d.start(ctx, target)
		} else {
			d.pending = &target
		}
	}
	if d.notify > 0 && d.Stats().Lines%d.notify == 0 {
		d.notifyProgress()
	}
}

// start a new probe for the specified target.
func (d *Dispatcher) start(ctx context.Context, target types.Target) {
	d.update(func(s *Progress) {
		s.Started++
		s.Outstanding++
		if s.Outstanding > s.Peak {
			s.Peak = s.Outstanding
		}
	})
	probe := d.factory(target)
	d.workers.Submit(func() {
		d.finished <- probe.Run(ctx)
	})
}

// allow checks with the rate limiter, if any.
func (d *Dispatcher) allow() bool {
	return d.limiter == nil || d.limiter.AllowN(d.clock.Now(), 1)
}

func (d *Dispatcher) outstanding() int {
	return d.Stats().Outstanding
}

func (d *Dispatcher) update(fn func(s *Progress)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.stats)
}

func (d *Dispatcher) notifyProgress() {
	if d.progress != nil {
		d.progress(d.Stats())
	}
}
