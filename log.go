// Copyright 2019-2024 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tcglog

import (
	"io"
	"log/slog"

	"github.com/canonical/go-tpm2"
	"golang.org/x/xerrors"
)

// ReplayAlgorithmAuto selects the replay algorithm from the log. See
// LogOptions.ReplayAlgorithm.
const ReplayAlgorithmAuto tpm2.HashAlgorithmId = 0

// LogOptions allows the behaviour of ParseLog to be controlled.
type LogOptions struct {
	// Algorithms is used to determine the size of each digest in a
	// crypto-agile log. If nil, DefaultAlgorithmRegistry is used.
	Algorithms *AlgorithmRegistry

	// ReplayAlgorithm selects the digests that are extended to the
	// replayed PCR banks. Legacy logs only support SHA-1. With
	// ReplayAlgorithmAuto, crypto-agile logs are replayed with SHA-256
	// if the Spec ID event lists it, else with the first usable algorithm
	// the Spec ID event lists. An explicit algorithm does not have to be
	// listed, but every extending record must carry a digest for it.
	ReplayAlgorithm tpm2.HashAlgorithmId

	// Decoders provides descriptions of event data. If nil, event data
	// is described as hex.
	Decoders *ContentDispatch

	// Logger receives diagnostic messages. If nil, nothing is logged.
	Logger *slog.Logger
}

// Log corresponds to a parsed event log and the PCR values obtained by
// replaying it. It is read-only and safe for concurrent use.
type Log struct {
	Format          Format         // The format of the records in this log
	SpecId          *SpecIdEvent03 // The Spec ID event of a crypto-agile log
	StartupLocality uint8          // The locality from which TPM2_Startup was issued, if recorded

	alg    HashAlgorithm
	events []*Event
	pcrs   [NumPCRs]Digest
}

func selectReplayAlgorithm(format Format, specId *SpecIdEvent03, algs *AlgorithmRegistry, requested tpm2.HashAlgorithmId) (HashAlgorithm, error) {
	if format == FormatLegacy {
		if requested != ReplayAlgorithmAuto && requested != tpm2.HashAlgorithmSHA1 {
			return HashAlgorithm{}, xerrors.Errorf("legacy logs only contain SHA-1 digests: %w", ErrAlgorithmNotInLog)
		}
		return AlgorithmSHA1, nil
	}

	if requested != ReplayAlgorithmAuto {
		alg, err := algs.LookupById(requested)
		if err != nil {
			return HashAlgorithm{}, err
		}
		if !alg.CanExtend() {
			return HashAlgorithm{}, xerrors.Errorf("%s cannot be used for replay", alg)
		}
		return alg, nil
	}

	if specId.Contains(tpm2.HashAlgorithmSHA256) {
		if alg, err := algs.LookupById(tpm2.HashAlgorithmSHA256); err == nil && alg.CanExtend() {
			return alg, nil
		}
	}
	for _, d := range specId.DigestSizes {
		alg, err := algs.LookupById(d.AlgorithmId)
		if err != nil || !alg.CanExtend() {
			continue
		}
		return alg, nil
	}

	return HashAlgorithm{}, xerrors.Errorf("no usable algorithm in Spec ID event: %w", ErrAlgorithmNotInLog)
}

// ParseLog decodes the event log in data and replays it. Every record must be
// in the format defined by one of the PC Client Platform Firmware Profile
// specifications.
//
// A structurally invalid log results in a *ParseError, and no Log is
// returned.
func ParseLog(data []byte, options *LogOptions) (*Log, error) {
	if options == nil {
		options = new(LogOptions)
	}
	algs := options.Algorithms
	if algs == nil {
		algs = DefaultAlgorithmRegistry()
	}
	logger := options.Logger
	if logger == nil {
		logger = discardLogger()
	}

	r := newRecordReader(data)

	// The first event is always in the legacy format.
	first, err := decodeEventLegacy(r)
	if err != nil {
		return nil, &ParseError{Index: 0, Offset: r.Offset(), Err: err}
	}

	log := &Log{Format: FormatLegacy}
	if isSpecIdEvent03(first) {
		log.Format = FormatCryptoAgile

		specId, err := DecodeSpecIdEvent03(first.Data)
		if err != nil {
			return nil, &ParseError{Index: 0, Offset: first.Offset, Err: err}
		}
		if err := specId.checkDigestSizes(algs); err != nil {
			return nil, &ParseError{Index: 0, Offset: first.Offset, Err: err}
		}
		log.SpecId = specId
	}
	logger.Debug("detected log format", slog.String("format", log.Format.String()))

	alg, err := selectReplayAlgorithm(log.Format, log.SpecId, algs, options.ReplayAlgorithm)
	if err != nil {
		return nil, xerrors.Errorf("cannot select replay algorithm: %w", err)
	}
	log.alg = alg
	logger.Debug("selected replay algorithm", slog.String("algorithm", alg.String()))
	if log.Format == FormatCryptoAgile && !log.SpecId.Contains(alg.Id) {
		// Every extending record still has to carry a digest for it.
		logger.Warn("replay algorithm is not listed in the Spec ID event", slog.String("algorithm", alg.String()))
	}

	events := []*Event{first}
	for index := uint32(1); r.Len() > 0; index++ {
		var event *Event
		var err error
		switch log.Format {
		case FormatCryptoAgile:
			event, err = decodeEventCryptoAgile(r, algs)
		default:
			event, err = decodeEventLegacy(r)
		}
		if err != nil {
			return nil, &ParseError{Index: index, Offset: r.Offset(), Err: err}
		}
		event.Index = index
		events = append(events, event)
	}

	for _, event := range events {
		event.Description = options.Decoders.Describe(event.EventType, event.Data)
	}

	if locality, ok := findStartupLocality(events); ok {
		log.StartupLocality = locality
		logger.Debug("found startup locality", slog.Int("locality", int(locality)))
	}

	pcrs, err := Replay(events, alg, log.StartupLocality)
	if err != nil {
		return nil, err
	}

	log.events = events
	log.pcrs = pcrs
	return log, nil
}

// ReadLog reads an entire event log from r and then parses it with ParseLog.
func ReadLog(r io.Reader, options *LogOptions) (*Log, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, xerrors.Errorf("cannot read log: %w", err)
	}
	return ParseLog(data, options)
}

func (e *Event) clone() *Event {
	out := *e
	out.Digests = make(DigestList, len(e.Digests))
	for i, d := range e.Digests {
		out.Digests[i] = DigestEntry{Algorithm: d.Algorithm, Value: append(Digest(nil), d.Value...)}
	}
	out.Data = append([]byte(nil), e.Data...)
	return &out
}

// ReplayAlgorithm returns the algorithm of the replayed PCR banks.
func (l *Log) ReplayAlgorithm() HashAlgorithm {
	return l.alg
}

// Len returns the number of events in the log.
func (l *Log) Len() int {
	return len(l.events)
}

// Events returns a copy of the events in this log, in log order.
func (l *Log) Events() []*Event {
	events := make([]*Event, 0, len(l.events))
	for _, e := range l.events {
		events = append(events, e.clone())
	}
	return events
}

// EventAt returns a copy of the event at the specified index.
func (l *Log) EventAt(index int) (*Event, error) {
	if index < 0 || index >= len(l.events) {
		return nil, xerrors.Errorf("no event with index %d: %w", index, ErrEventNotFound)
	}
	return l.events[index].clone(), nil
}

// EventsForPCRs returns a copy of the events measured to any of the
// specified PCRs. A Spec ID event at the start of the log is always
// included. This is useful for displaying only the parts of a log that are
// relevant to a specific application.
func (l *Log) EventsForPCRs(pcrs ...PCRIndex) []*Event {
	var events []*Event
	for i, e := range l.events {
		keep := i == 0 && isSpecIdEvent(e)
		for _, p := range pcrs {
			if e.PCRIndex == p {
				keep = true
				break
			}
		}
		if !keep {
			continue
		}
		events = append(events, e.clone())
	}
	return events
}

// ExpectedPCRValue returns the replayed value of the specified PCR.
func (l *Log) ExpectedPCRValue(pcr PCRIndex) (Digest, error) {
	if pcr < 0 || pcr > maxPCRIndex {
		return nil, xerrors.Errorf("%d: %w", pcr, ErrInvalidPCRIndex)
	}
	return append(Digest(nil), l.pcrs[pcr]...), nil
}

// ExpectedPCRValues returns the replayed values of every PCR.
func (l *Log) ExpectedPCRValues() (out [NumPCRs]Digest) {
	for i, d := range l.pcrs {
		out[i] = append(Digest(nil), d...)
	}
	return out
}
