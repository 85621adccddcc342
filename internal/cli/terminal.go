// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Answers wrap at the terminal width, within these bounds.
const (
	fallbackWidth = 80
	narrowestWrap = 40
)

// terminal describes where a command reads and writes. console is the
// process's own; tests build one around files and a fake environment.
type terminal struct {
	in     *os.File
	out    *os.File
	getenv func(string) string
}

var console = terminal{in: os.Stdin, out: os.Stdout, getenv: os.Getenv}

func isTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// interactive reports whether both input and output are terminals, which
// the full-screen shell needs.
func (t terminal) interactive() bool {
	return isTerminal(t.in) && isTerminal(t.out)
}

// outputIsTTY reports whether output goes to a terminal rather than a pipe
// or file.
func (t terminal) outputIsTTY() bool {
	return isTerminal(t.out)
}

// width is the column count answers wrap at.
func (t terminal) width() int {
	if !t.outputIsTTY() {
		return fallbackWidth
	}
	w, _, err := term.GetSize(int(t.out.Fd()))
	switch {
	case err != nil || w <= 0:
		return fallbackWidth
	case w < narrowestWrap:
		return narrowestWrap
	}
	return w
}

// colorProfile honors NO_COLOR (https://no-color.org/) over FORCE_COLOR,
// and otherwise colors only terminal output.
func (t terminal) colorProfile() termenv.Profile {
	switch {
	case t.getenv("NO_COLOR") != "":
		return termenv.Ascii
	case t.getenv("FORCE_COLOR") != "":
		if p := termenv.ColorProfile(); p != termenv.Ascii {
			return p
		}
		return termenv.ANSI256
	case !t.outputIsTTY():
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}
