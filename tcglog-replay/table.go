// Copyright 2022-2024 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"
	"unicode/utf8"

	"golang.org/x/sys/unix"

	"github.com/canonical/tcglog-replay"
)

// lineTruncator cuts each line written to it to at most width runes, so that
// table rows never wrap on a terminal. Partial lines are held until the
// newline arrives or flush is called.
type lineTruncator struct {
	w       io.Writer
	width   int
	pending []byte
}

func (t *lineTruncator) truncate(line []byte) []byte {
	if utf8.RuneCount(line) <= t.width {
		return line
	}
	const ellipsis = " ..."
	keep := t.width - len(ellipsis)
	if keep < 0 {
		keep = 0
	}
	out := make([]byte, 0, t.width)
	for n := 0; n < keep; n++ {
		_, sz := utf8.DecodeRune(line)
		out = append(out, line[:sz]...)
		line = line[sz:]
	}
	return append(out, ellipsis[:t.width-keep]...)
}

func (t *lineTruncator) Write(data []byte) (int, error) {
	t.pending = append(t.pending, data...)

	var out []byte
	for {
		n := bytes.IndexByte(t.pending, '\n')
		if n < 0 {
			break
		}
		out = append(out, t.truncate(t.pending[:n])...)
		out = append(out, '\n')
		t.pending = t.pending[n+1:]
	}
	if len(out) > 0 {
		if _, err := t.w.Write(out); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

func (t *lineTruncator) flush() error {
	if len(t.pending) == 0 {
		return nil
	}
	_, err := t.w.Write(t.truncate(t.pending))
	t.pending = nil
	return err
}

// summary collapses a multi-line event description into a single table cell.
func summary(str string) string {
	return strings.Join(strings.Fields(str), " ")
}

type tableFormatter struct {
	dst   *tabwriter.Writer
	trunc *lineTruncator

	alg     tcglog.HashAlgorithm
	verbose bool
}

func (f *tableFormatter) printHeader() {
	fmt.Fprint(f.dst, "PCR\tDIGEST\tTYPE")
	if f.verbose {
		fmt.Fprint(f.dst, "\tDETAILS")
	}
	fmt.Fprint(f.dst, "\n")
}

func (f *tableFormatter) printEvent(event *tcglog.Event) {
	digest, _ := event.EventDigest(f.alg.Id)
	fmt.Fprintf(f.dst, "%d\t%x\t%s", event.PCRIndex, digest, event.EventType)
	if f.verbose {
		fmt.Fprintf(f.dst, "\t%s", summary(event.Description))
	}
	fmt.Fprint(f.dst, "\n")
}

func (f *tableFormatter) flush() {
	f.dst.Flush()
	if f.trunc != nil {
		f.trunc.flush()
	}
}

func newTableFormatter(f *os.File, alg tcglog.HashAlgorithm, verbose bool) (formatter, error) {
	var w io.Writer = f
	var trunc *lineTruncator

	sz, err := unix.IoctlGetWinsize(int(f.Fd()), unix.TIOCGWINSZ)
	switch {
	case err == syscall.ENOTTY:
		// Not a terminal
	case err != nil:
		return nil, err
	default:
		if sz.Col > 0 {
			trunc = &lineTruncator{w: w, width: int(sz.Col)}
			w = trunc
		}
	}

	return newTableFormatterForWriter(w, trunc, alg, verbose), nil
}

func newTableFormatterForWriter(w io.Writer, trunc *lineTruncator, alg tcglog.HashAlgorithm, verbose bool) *tableFormatter {
	return &tableFormatter{
		dst:     tabwriter.NewWriter(w, 0, 0, 2, ' ', 0),
		trunc:   trunc,
		alg:     alg,
		verbose: verbose}
}
