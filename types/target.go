// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package types

import (
	"net"
	"strconv"
)

// Target is a host (name or IPv4 address literal) together with the TCP port to
// probe on that host.
type Target struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// String returns the target in "host:port" notation.
func (t Target) String() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}
