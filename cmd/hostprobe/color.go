// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"io"

	"github.com/siemens/hostprobe/types"

	"github.com/muesli/termenv"
)

// kindColors maps result kinds to the colors used for rendering them.
var kindColors = map[types.Kind]termenv.ANSIColor{
	types.OK:              termenv.ANSIGreen,
	types.ERR:             termenv.ANSIRed,
	types.ConnErr:         termenv.ANSIRed,
	types.TimeoutConnect:  termenv.ANSIYellow,
	types.TimeoutResponse: termenv.ANSIYellow,
	types.Close:           termenv.ANSIMagenta,
}

// newOutput returns a termenv output for w with its color profile set
// according to the specified color mode "auto", "always", or "never".
func newOutput(w io.Writer, mode string) *termenv.Output {
	switch mode {
	case "always":
		return termenv.NewOutput(w, termenv.WithProfile(termenv.ANSI))
	case "never":
		return termenv.NewOutput(w, termenv.WithProfile(termenv.Ascii))
	}
	return termenv.NewOutput(w)
}

// styledKind returns the kind name, colored if the output supports it.
func styledKind(out *termenv.Output, kind types.Kind) string {
	style := out.String(kind.String())
	if color, ok := kindColors[kind]; ok {
		style = style.Foreground(color)
	}
	if kind == types.OK {
		style = style.Bold()
	}
	return style.String()
}
