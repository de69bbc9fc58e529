/*
Package types defines hostprobe's information model, which revolves around a
[Target] to probe, the [Kind] of outcome of a single probe, and finally the
[Result] reporting the outcome.

# Kinds of Outcome

Every probed target yields exactly one [Result] of one of the following kinds:

  - [OK]: the desired signal has been extracted from the response.
  - [ERR]: the response could be received, but failed on the protocol level.
  - [ConnErr]: setting up the transport connection failed.
  - [TimeoutConnect]: no connection was established within the connect window.
  - [TimeoutResponse]: connected, but no qualifying response arrived within the
    response window.
  - [Close]: the peer closed the connection before a qualifying response was
    recognized.

# Value Semantics

Results travel through channels from many concurrently running probes to a
single consumer. They are thus plain values, never to be modified after they
have been produced. The accumulated output is the only reference-typed field
and a result producer hands it over; it must not be touched afterwards by the
producer.
*/
package types
