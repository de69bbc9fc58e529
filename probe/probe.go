// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package probe

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/siemens/hostprobe/transport"
	"github.com/siemens/hostprobe/types"

	"github.com/benbjohnson/clock"
	"github.com/thediveo/lxkns/log"
)

// Default timeout windows.
const (
	DefaultConnectTimeout  = 3 * time.Second
	DefaultResponseTimeout = 5 * time.Second
)

// readBufferSize is the maximum size of the individual data chunks read.
const readBufferSize = 4096

type phase int

const (
	connecting phase = iota
	connected
	done
)

type eventKind int

const (
	evConnected eventKind = iota
	evConnectFailed
	evData
	evClosed
	evTimeout
)

// event is sent from the dialer, reader, and timers to the Probe's Run loop.
type event struct {
	kind   eventKind
	conn   transport.Conn // evConnected
	chunk  []byte         // evData
	err    error          // evConnectFailed, evClosed
	window types.Window   // evTimeout
}

// Probe probes a single target exactly once. Create a Probe using [New] and
// then call [Probe.Run] once.
type Probe struct {
	target          types.Target
	variant         Variant
	transport       transport.Transport
	clock           clock.Clock
	connectTimeout  time.Duration
	responseTimeout time.Duration

	phase            phase
	connectDeadline  *clock.Timer
	responseDeadline *clock.Timer
	connectStartedAt time.Time
	connectedAt      time.Time
	latency          time.Duration
	output           bytes.Buffer
	conn             transport.Conn     // owned after connecting.
	cancelDial       context.CancelFunc // cancels an in-flight connection attempt.
	reported         bool
	result           types.Result

	events chan event
	done   chan struct{} // closed when reported.
}

// Option can be passed to New when creating new Probe objects.
type Option func(*Probe)

// New returns a new Probe for the specified target, using the specified
// protocol variant. Unless overridden by options, a Probe dials TCP
// connections, uses the wall clock for its timeouts, and has a connect window
// of 3s and a response window of 5s.
func New(target types.Target, variant Variant, options ...Option) *Probe {
	p := &Probe{
		target:          target,
		variant:         variant,
		transport:       transport.NewTCP(),
		clock:           clock.New(),
		connectTimeout:  DefaultConnectTimeout,
		responseTimeout: DefaultResponseTimeout,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// WithTransport sets the transport to connect with.
func WithTransport(t transport.Transport) Option {
	return func(p *Probe) {
		p.transport = t
	}
}

// WithClock sets the clock to use for the timeout windows and for measuring
// elapsed times.
func WithClock(c clock.Clock) Option {
	return func(p *Probe) {
		p.clock = c
	}
}

// WithConnectTimeout sets the connect window.
func WithConnectTimeout(d time.Duration) Option {
	return func(p *Probe) {
		p.connectTimeout = d
	}
}

// WithResponseTimeout sets the response window.
func WithResponseTimeout(d time.Duration) Option {
	return func(p *Probe) {
		p.responseTimeout = d
	}
}

// Target returns the target of this Probe.
func (p *Probe) Target() types.Target { return p.target }

// Run the Probe until it has decided on its Result and then returns the
// Result. Run must be called only once.
//
// When the specified context gets cancelled, the Probe terminates immediately
// with a [types.Close] result.
func (p *Probe) Run(ctx context.Context) types.Result {
	p.events = make(chan event)
	p.done = make(chan struct{})
	p.start(ctx)
	for !p.reported {
		select {
		case ev := <-p.events:
			p.handle(ev)
		case <-ctx.Done():
			p.complete(types.Close, ctx.Err().Error())
		}
	}
	return p.result
}

// start arms the connect window and kicks off connecting.
func (p *Probe) start(ctx context.Context) {
	p.phase = connecting
	p.connectStartedAt = p.clock.Now()
	p.connectDeadline = p.arm(types.ConnectWindow, p.connectTimeout)
	dialctx, cancel := context.WithCancel(ctx)
	p.cancelDial = cancel
	go p.dial(dialctx)
}

// arm a timer for the specified window.
func (p *Probe) arm(w types.Window, d time.Duration) *clock.Timer {
	return p.clock.AfterFunc(d, func() {
		p.post(event{kind: evTimeout, window: w})
	})
}

// post an event to the Run loop, unless the Probe is done already. post
// reports whether the event was delivered.
func (p *Probe) post(ev event) bool {
	select {
	case p.events <- ev:
		return true
	case <-p.done:
		return false
	}
}

// dial connects to the target. A connection that comes in too late is closed
// immediately, as there is no one left to own it.
func (p *Probe) dial(ctx context.Context) {
	conn, err := p.transport.Dial(ctx, p.target)
	if err != nil {
		if ctx.Err() != nil {
			return // the Probe is done already, or its caller gave up.
		}
		p.post(event{kind: evConnectFailed, err: err})
		return
	}
	if !p.post(event{kind: evConnected, conn: conn}) {
		_ = conn.Close()
	}
}

// read data chunks from the connection until it fails, either because the peer
// closed it, or the Probe closed it.
func (p *Probe) read(conn transport.Conn) {
	buff := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buff)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buff[:n])
			if !p.post(event{kind: evData, chunk: chunk}) {
				return
			}
		}
		if err != nil {
			p.post(event{kind: evClosed, err: err})
			return
		}
	}
}

func (p *Probe) handle(ev event) {
	switch ev.kind {
	case evConnected:
		p.onConnect(ev.conn)
	case evConnectFailed:
		p.onConnectError(ev.err)
	case evData:
		p.onData(ev.chunk)
	case evClosed:
		p.onClose(ev.err)
	case evTimeout:
		p.onTimeout(ev.window)
	}
}

func (p *Probe) onConnect(conn transport.Conn) {
	p.connectDeadline.Stop()
	p.connectDeadline = nil
	p.conn = conn
	p.connectedAt = p.clock.Now()
	p.latency = p.connectedAt.Sub(p.connectStartedAt)
	p.phase = connected
	p.responseDeadline = p.arm(types.ResponseWindow, p.responseTimeout)
	log.Debugf("connected to %s in %s", p.target, p.latency)
	go p.read(conn)
	payload, err := p.variant.Request(p.target)
	if err != nil {
		p.complete(types.ERR, err.Error())
		return
	}
	if _, err := conn.Write(payload); err != nil {
		p.complete(types.Close, err.Error())
	}
}

func (p *Probe) onConnectError(err error) {
	p.connectedAt = p.clock.Now()
	p.latency = 0
	p.complete(types.ConnErr, err.Error())
}

func (p *Probe) onData(chunk []byte) {
	p.output.Write(chunk)
	if verdict, ok := p.variant.Interpret(p.output.Bytes()); ok {
		p.complete(verdict.Kind, verdict.Details)
	}
}

func (p *Probe) onClose(err error) {
	if err == nil || errors.Is(err, io.EOF) {
		p.complete(types.Close, "")
		return
	}
	p.complete(types.Close, err.Error())
}

// onTimeout handles the expiry of a timeout window. Please note that the
// connect window might expire just when the connection got established, so
// its event then is still in flight while the Probe has already moved on.
func (p *Probe) onTimeout(w types.Window) {
	switch {
	case w == types.ConnectWindow && p.phase != connecting,
		w == types.ResponseWindow && p.phase != connected:
		return
	}
	p.complete(w.TimeoutKind(), w.String())
}

// complete is the only way for a Probe to reach its final verdict. Only the
// first call decides; it releases all resources held by the Probe.
func (p *Probe) complete(kind types.Kind, details string) {
	if p.reported {
		return
	}
	now := p.clock.Now()
	var elapsed time.Duration
	if p.phase == connected {
		elapsed = now.Sub(p.connectedAt)
	} else {
		elapsed = now.Sub(p.connectStartedAt)
	}
	if p.connectDeadline != nil {
		p.connectDeadline.Stop()
		p.connectDeadline = nil
	}
	if p.responseDeadline != nil {
		p.responseDeadline.Stop()
		p.responseDeadline = nil
	}
	p.cancelDial()
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	p.reported = true
	p.phase = done
	close(p.done)
	p.result = types.Result{
		Target:  p.target,
		Kind:    kind,
		Details: details,
		Output:  p.output.Bytes(),
		Elapsed: elapsed,
		Latency: p.latency,
	}
	log.Debugf("probed %s: %s %s", p.target, kind, details)
}
