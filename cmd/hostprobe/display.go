// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/siemens/hostprobe/types"

	"github.com/muesli/termenv"
)

// sink renders results as they come in, one line per result.
type sink struct {
	mu      sync.Mutex
	w       io.Writer
	out     *termenv.Output
	variant string // name of the probe variant
	json    *json.Encoder
}

// jsonResult is the JSON rendering of a result, with its timings in seconds.
type jsonResult struct {
	types.Result
	Elapsed float64 `json:"elapsed"`
	Latency float64 `json:"latency"`
}

// newSink returns a new sink for results of the named probe variant, rendering
// in the specified format "text" or "json".
func newSink(w io.Writer, variant string, format string, colorMode string) (*sink, error) {
	s := &sink{w: w, variant: variant}
	switch format {
	case "text":
		s.out = newOutput(w, colorMode)
	case "json":
		s.json = json.NewEncoder(w)
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	return s, nil
}

// Render a single result.
func (s *sink) Render(res types.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.json != nil {
		return s.json.Encode(jsonResult{
			Result:  res,
			Elapsed: res.ElapsedSeconds(),
			Latency: res.Latency.Seconds(),
		})
	}
	var err error
	switch s.variant {
	case "magic":
		_, err = fmt.Fprintf(s.w, "%s %s %2.2f - %s\n",
			res.Target, styledKind(s.out, res.Kind), res.ElapsedSeconds(),
			strings.ToValidUTF8(res.FirstLine(), "�"))
	default:
		_, err = fmt.Fprintf(s.w, "%s %s %s\n",
			res.Target, styledKind(s.out, res.Kind), res.Details)
	}
	return err
}
