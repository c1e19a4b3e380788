// Copyright 2022-2024 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/canonical/tcglog-replay"
)

func indent(str string, n int) string {
	prefix := strings.Repeat("\t", n)
	return strings.TrimSuffix(strings.ReplaceAll(str, "\n", "\n"+prefix), prefix)
}

// blockFormatter prints every field of each event, including all of the
// recorded digests.
type blockFormatter struct {
	dst io.Writer

	verbose bool
	hexdump bool
}

func (*blockFormatter) printHeader() {}

func (f *blockFormatter) printEvent(event *tcglog.Event) {
	fmt.Fprintf(f.dst, "\nINDEX: %d\n", event.Index)
	fmt.Fprintf(f.dst, "PCR: %d\n", event.PCRIndex)
	fmt.Fprintf(f.dst, "TYPE: %s\n", event.EventType)
	for _, d := range event.Digests {
		fmt.Fprintf(f.dst, "DIGEST(%s): %x\n", d.Algorithm, d.Value)
	}
	if f.verbose {
		fmt.Fprintf(f.dst, "DETAILS: %s\n", event.Description)
	}
	if f.hexdump {
		fmt.Fprintf(f.dst, "EVENT DATA BYTES:\n\t%s", indent(hex.Dump(event.Data), 1))
	}
}

func (*blockFormatter) flush() {}

func newBlockFormatter(w io.Writer, verbose, hexdump bool) formatter {
	return &blockFormatter{
		dst:     w,
		verbose: verbose,
		hexdump: hexdump}
}
