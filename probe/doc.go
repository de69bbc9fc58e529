/*
Package probe implements the per-target probe state machine: a [Probe]
connects to a single target, sends a protocol-specific request, and then
watches the response until it can decide on exactly one [types.Result].

	            +-------+
	Target ---->| Probe |----> Result
	            +-------+

A Probe moves from connecting to connected and finally done, or directly from
connecting to done when connecting fails or the connect window expires. While
connecting only the connect window timer is armed, and while connected only
the response window timer is armed.

All state of a Probe is confined to the goroutine calling [Probe.Run]: the
transport connection attempt, the received data chunks, the peer closing the
connection, as well as the timers all send their events to this goroutine.
Terminating the Probe always happens in a single place which stops the timers,
cancels a still in-flight connection attempt, and closes the connection (if
any) exactly once.

# Variants

What is sent and how the response is interpreted is up to a [Variant]:

  - [Magic] sends a byte pattern and succeeds as soon as the pattern is
    echoed back.
  - [Header] sends a minimal HTTP HEAD request and reports a specific response
    header.

The timeout handling and teardown is the same for all variants.
*/
package probe
