// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package probe

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/siemens/hostprobe/types"
)

// Verdict is a Variant's interpretation of a response.
type Verdict struct {
	Kind    types.Kind
	Details string
}

// Variant defines what a Probe sends after connecting and how it interprets
// what it receives in response.
type Variant interface {
	// Name of the variant, such as "magic".
	Name() string
	// Request returns the payload to send to the specified target.
	Request(target types.Target) ([]byte, error)
	// Interpret the output received so far, returning a Verdict and true if
	// the output is decisive; otherwise, it returns false in order to wait for
	// more output.
	Interpret(output []byte) (Verdict, bool)
}

// maxHeaderBytes limits the size of an HTTP response's status line and header
// block.
const maxHeaderBytes = 64 << 10

// ParseMagic decodes a hex-encoded byte pattern, such as "666f6f0d0a" for
// "foo\r\n".
func ParseMagic(hexpattern string) ([]byte, error) {
	pattern, err := hex.DecodeString(hexpattern)
	if err != nil {
		return nil, fmt.Errorf("invalid hex magic %q: %w", hexpattern, err)
	}
	if len(pattern) == 0 {
		return nil, errors.New("empty magic")
	}
	return pattern, nil
}

type magic struct {
	pattern []byte
}

// Magic returns a Variant sending the specified byte pattern followed by a
// newline, deciding on OK as soon as the pattern has been echoed back. The
// details then are the output received so far.
func Magic(pattern []byte) Variant {
	return &magic{pattern: pattern}
}

func (m *magic) Name() string { return "magic" }

func (m *magic) Request(types.Target) ([]byte, error) {
	payload := make([]byte, 0, len(m.pattern)+1)
	return append(append(payload, m.pattern...), '\n'), nil
}

func (m *magic) Interpret(output []byte) (Verdict, bool) {
	if len(m.pattern) == 0 || !bytes.Contains(output, m.pattern) {
		return Verdict{}, false
	}
	return Verdict{Kind: types.OK, Details: string(output)}, true
}

type header struct {
	name string // canonical MIME header key
}

// Header returns a Variant sending a minimal HTTP HEAD request and deciding on
// OK when the response's header block has been received, with the details
// being the value(s) of the named response header, or "-" if the response
// lacks this header. Multiple header values are joined by ", ".
//
// A response failing to parse as an HTTP response decides on ERR.
func Header(name string) Variant {
	return &header{name: textproto.CanonicalMIMEHeaderKey(name)}
}

func (h *header) Name() string { return "header" }

func (h *header) Request(target types.Target) ([]byte, error) {
	host := target.Host
	if target.Port != 80 {
		host = net.JoinHostPort(target.Host, strconv.Itoa(target.Port))
	}
	req, err := http.NewRequest(http.MethodHead, "http://"+host+"/", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Test/1.0")
	req.Close = true
	var buff bytes.Buffer
	if err := req.Write(&buff); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

var statusLinePrefix = []byte("HTTP/")

// headRequest tells http.ReadResponse that there is no body to expect.
var headRequest = &http.Request{Method: http.MethodHead}

func (h *header) Interpret(output []byte) (Verdict, bool) {
	n := len(output)
	if n > len(statusLinePrefix) {
		n = len(statusLinePrefix)
	}
	if !bytes.Equal(output[:n], statusLinePrefix[:n]) {
		line, _, _ := bytes.Cut(output, []byte("\n"))
		return Verdict{
			Kind:    types.ERR,
			Details: fmt.Sprintf("malformed HTTP status line %q", strings.TrimSpace(string(line))),
		}, true
	}
	if bytes.Index(output, []byte("\r\n\r\n")) < 0 && bytes.Index(output, []byte("\n\n")) < 0 {
		if len(output) > maxHeaderBytes {
			return Verdict{Kind: types.ERR, Details: "HTTP response header too large"}, true
		}
		return Verdict{}, false
	}
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(output)), headRequest)
	if err != nil {
		return Verdict{Kind: types.ERR, Details: err.Error()}, true
	}
	_ = resp.Body.Close()
	values := resp.Header.Values(h.name)
	if len(values) == 0 {
		return Verdict{Kind: types.OK, Details: "-"}, true
	}
	return Verdict{Kind: types.OK, Details: strings.Join(values, ", ")}, true
}
