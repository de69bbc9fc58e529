// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package types

import "fmt"

// Kind classifies what happened when probing a single target.
type Kind int

// The kinds of probe outcomes.
const (
	OK              Kind = iota // desired signal extracted.
	ERR                         // application/protocol-level failure.
	ConnErr                     // transport connection could not be set up.
	TimeoutConnect              // no connection within the connect window.
	TimeoutResponse             // no qualifying response within the response window.
	Close                       // peer closed before a qualifying response.
)

var kindNames = [...]string{
	OK:              "OK",
	ERR:             "ERR",
	ConnErr:         "CONN_ERR",
	TimeoutConnect:  "TIMEOUT_CONNECT",
	TimeoutResponse: "TIMEOUT_RESPONSE",
	Close:           "CLOSE",
}

// String returns the clear-text representation of a Kind value, such as
// "CONN_ERR".
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText renders a Kind in its clear-text representation, so that JSON
// output carries "TIMEOUT_RESPONSE" instead of some number.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the clear-text representation of a Kind.
func (k *Kind) UnmarshalText(text []byte) error {
	for idx, name := range kindNames {
		if name == string(text) {
			*k = Kind(idx)
			return nil
		}
	}
	return fmt.Errorf("unknown result kind %q", string(text))
}

// IsSuccess returns true only for the OK kind.
func (k Kind) IsSuccess() bool { return k == OK }

// Window identifies one of the two independent timeout windows of a probe.
type Window int

// The timeout windows.
const (
	ConnectWindow  Window = iota // connection establishment.
	ResponseWindow               // waiting for a response after connecting.
)

// String returns the details text reported for a timeout in this window.
func (w Window) String() string {
	switch w {
	case ConnectWindow:
		return "connect"
	case ResponseWindow:
		return "wait"
	}
	return fmt.Sprintf("Window(%d)", int(w))
}

// TimeoutKind returns the result Kind for expiry of this window.
func (w Window) TimeoutKind() Kind {
	if w == ConnectWindow {
		return TimeoutConnect
	}
	return TimeoutResponse
}
