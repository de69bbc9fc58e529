/*
Package dispatch implements the [Dispatcher] that drains a (potentially
unbounded) host list, probing each host while keeping the number of
outstanding probes strictly below a ceiling.

	            +------------+
	hosts ----->| Dispatcher |----> ch Result
	            +------------+

Hosts are read lazily line by line, so a Dispatcher never reads further ahead
than it can put into flight. Lines with a ":" are IPv6 addresses, which aren't
supported; they are skipped, as are blank lines.

# Acknowledgements

Under its hood, [Dispatcher] leverages [gammazero/workerpool] for running the
probes and [golang.org/x/time/rate] for optionally limiting the rate at which
new probes get started.

[gammazero/workerpool]: https://github.com/gammazero/workerpool
[golang.org/x/time/rate]: https://pkg.go.dev/golang.org/x/time/rate
*/
package dispatch
