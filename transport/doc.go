/*
Package transport provides the transport capability used by probes: given a
[types.Target] it establishes a connection which then can be written to, read
from, and finally closed.

[TCP] is the stock transport, dialing IPv4 TCP connections. It can optionally
dial from inside a different network namespace, such as a container's network
namespace, and it can optionally resolve target host names using a specific
DNS resolver instead of the system resolver.
*/
package transport
