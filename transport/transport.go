// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/siemens/hostprobe/types"

	"github.com/thediveo/lxkns/log"
	"github.com/thediveo/lxkns/ops"
	"github.com/thediveo/lxkns/ops/relations"
	"github.com/thediveo/lxkns/species"
)

// Conn is an established transport connection, owned by whoever dialed it.
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

// Transport establishes connections to targets.
type Transport interface {
	// Dial connects to the specified target, blocking until either the
	// connection has been established, it failed, or the context is done.
	Dial(ctx context.Context, target types.Target) (Conn, error)
}

// Resolver resolves host names into IPv4 address literals. A
// [github.com/siemens/hostprobe/dnsworker.DnsPool] is a Resolver.
type Resolver interface {
	Lookup(ctx context.Context, name string) ([]string, error)
}

// TCP dials IPv4 TCP connections.
type TCP struct {
	dialer   net.Dialer
	netns    relations.Relation // network namespace to dial from, or nil.
	resolver Resolver           // optional resolver, otherwise the system resolver.
}

var _ Transport = (*TCP)(nil)

// TCPOption can be passed to NewTCP when creating new TCP transports.
type TCPOption func(*TCP)

// NewTCP returns a new TCP transport, configured using the specified options.
func NewTCP(options ...TCPOption) *TCP {
	t := &TCP{}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// InNetworkNamespace optionally dials connections from inside the network
// namespace referenced by the specified filesystem path, such as
// "/proc/666/ns/net". An empty path leaves dialing in the caller's network
// namespace.
func InNetworkNamespace(netnsref string) TCPOption {
	return func(t *TCP) {
		if netnsref == "" {
			return
		}
		t.netns = ops.NewTypedNamespacePath(netnsref, species.CLONE_NEWNET)
	}
}

// WithResolver resolves host names that aren't IP address literals using the
// specified resolver before dialing.
func WithResolver(r Resolver) TCPOption {
	return func(t *TCP) {
		t.resolver = r
	}
}

// Dial connects to the specified target.
func (t *TCP) Dial(ctx context.Context, target types.Target) (Conn, error) {
	host := target.Host
	if t.resolver != nil && net.ParseIP(host) == nil {
		addrs, err := t.resolver.Lookup(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve %s: %w", host, err)
		}
		log.Debugf("resolved %s into %v", host, addrs)
		host = addrs[0]
	}
	addr := net.JoinHostPort(host, strconv.Itoa(target.Port))
	if t.netns == nil {
		return t.dial(ctx, addr)
	}
	// Sockets stay in the network namespace they were created in, so we only
	// need to switch for dialing; reading and writing later happens in
	// whatever network namespace.
	type dialed struct {
		conn net.Conn
		err  error
	}
	res, err := ops.Execute(func() interface{} {
		conn, err := t.dial(ctx, addr)
		return dialed{conn: conn, err: err}
	}, t.netns)
	if err != nil {
		return nil, fmt.Errorf("cannot switch into network namespace: %w", err)
	}
	d := res.(dialed)
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

func (t *TCP) dial(ctx context.Context, addr string) (net.Conn, error) {
	return t.dialer.DialContext(ctx, "tcp4", addr)
}
