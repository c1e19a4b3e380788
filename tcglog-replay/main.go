// Copyright 2019-2024 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/canonical/go-tpm2"
	"github.com/jessevdk/go-flags"

	"github.com/canonical/tcglog-replay"
	"github.com/canonical/tcglog-replay/contentdecoders"
	internal_flags "github.com/canonical/tcglog-replay/internal/flags"
)

const defaultLogPath = "/sys/kernel/security/tpm0/binary_bios_measurements"

type options struct {
	Alg       internal_flags.HashAlgorithmId `long:"alg" description:"Hash algorithm used to replay the log" default:"auto" choice:"auto" choice:"sha1" choice:"sha256" choice:"sha384" choice:"sha512"`
	Verbose   bool                           `short:"v" long:"verbose" description:"Display a description of each event and enable debug messages"`
	Hexdump   bool                           `long:"hexdump" description:"Display hexdump of event data associated with each event"`
	Pcrs      internal_flags.PCRRange        `short:"p" long:"pcrs" description:"Display events associated with the specified PCRs. Can be specified multiple times"`
	PCRValues bool                           `long:"pcr-values" description:"Display the PCR values obtained by replaying the log"`

	Positional struct {
		LogPath string `positional-arg-name:"log-path"`
	} `positional-args:"true"`
}

type formatter interface {
	printHeader()
	printEvent(event *tcglog.Event)
	flush()
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func printPCRValues(w io.Writer, log *tcglog.Log) {
	fmt.Fprintf(w, "\nPCR values (%s):\n", log.ReplayAlgorithm())
	for i, value := range log.ExpectedPCRValues() {
		fmt.Fprintf(w, "%2d: %x\n", i, value)
	}
}

func run(args []string) error {
	var opts options
	if _, err := flags.ParseArgs(&opts, args); err != nil {
		return err
	}

	logger := newLogger(os.Stderr, opts.Verbose)

	path := opts.Positional.LogPath
	if path == "" {
		path = defaultLogPath
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	log, err := tcglog.ReadLog(f, &tcglog.LogOptions{
		ReplayAlgorithm: tpm2.HashAlgorithmId(opts.Alg),
		Decoders:        contentdecoders.NewDispatch(logger),
		Logger:          logger})
	if err != nil {
		return fmt.Errorf("cannot read log: %w", err)
	}

	events := log.Events()
	if len(opts.Pcrs) > 0 {
		events = log.EventsForPCRs(opts.Pcrs...)
	}

	var out formatter
	if opts.Hexdump {
		out = newBlockFormatter(os.Stdout, opts.Verbose, true)
	} else {
		out, err = newTableFormatter(os.Stdout, log.ReplayAlgorithm(), opts.Verbose)
		if err != nil {
			return err
		}
	}

	out.printHeader()
	for _, event := range events {
		out.printEvent(event)
	}
	out.flush()

	if opts.PCRValues {
		printPCRValues(os.Stdout, log)
	}

	return nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		switch e := err.(type) {
		case *flags.Error:
			// flags already prints this
			if e.Type != flags.ErrHelp {
				os.Exit(1)
			}
		default:
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}
