// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package types

import (
	"strings"
	"time"
)

// Result is the normalized outcome of probing a single [Target].
type Result struct {
	Target
	Kind    Kind          `json:"kind"`
	Details string        `json:"details"`
	Output  []byte        `json:"-"` // everything received from the peer.
	Elapsed time.Duration `json:"-"` // see ElapsedSeconds
	Latency time.Duration `json:"-"` // connect latency; zero when never connected.
}

// ElapsedSeconds returns the elapsed time of the terminal phase in (fractional)
// seconds: for outcomes before a connection has been established this is the
// time since starting to connect, otherwise the time since having connected.
func (r Result) ElapsedSeconds() float64 {
	return r.Elapsed.Seconds()
}

// FirstLine returns only the first line of the details.
func (r Result) FirstLine() string {
	line, _, _ := strings.Cut(r.Details, "\n")
	return strings.TrimSuffix(line, "\r")
}
