/*
Package dnsworker implements a simple limiting DNS client-request execution
pool. hostprobe uses a [DnsPool] of “DNS workers” for resolving the names of
targets into IPv4 addresses when a specific resolver has been configured, such
as Docker's embedded DNS resolver inside a container's network namespace.

Usage

	dnsclnt := dns.Client{}
	workers, err := dnsworker.New(
	    context.Background(),
	    4,                    // number of parallel DNS connections and thus workers
	    &dnsclnt,             // DNS client
	    "127.0.0.1:53",       // address of server/resolver
	)
	addrs, err := workers.Lookup(ctx, "foobar.example.org")
	workers.Submit(func(conn *dns.Conn){
	    // do something with the DNS connection
	})

# Acknowledgements

Under its hood, [DnsPool] leverages [gammazero/workerpool] as
the limiting goroutine pool.

[gammazero/workerpool]: https://github.com/gammazero/workerpool
*/
package dnsworker
