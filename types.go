// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tcglog

import (
	"fmt"

	"github.com/canonical/go-tpm2"
)

// PCRIndex corresponds to the index of a PCR on the TPM. The value -1
// (0xffffffff on the wire) marks an event that doesn't extend any PCR.
type PCRIndex int32

// EventType corresponds to the type of an event in an event log.
type EventType uint32

// Digest is the result of hashing some data.
type Digest []byte

// Format describes the on-wire encoding of the records in a log.
type Format int

// DigestEntry is a single algorithm-tagged digest recorded with an event.
type DigestEntry struct {
	Algorithm HashAlgorithm
	Value     Digest
}

// DigestList is the ordered list of digests recorded with an event, in the
// order in which they were encoded.
type DigestList []DigestEntry

// Algorithms returns the algorithms in this list, in encoded order.
func (l DigestList) Algorithms() []tpm2.HashAlgorithmId {
	var out []tpm2.HashAlgorithmId
	for _, d := range l {
		out = append(out, d.Algorithm.Id)
	}
	return out
}

// Find returns the first digest recorded for the specified algorithm.
func (l DigestList) Find(alg tpm2.HashAlgorithmId) (Digest, bool) {
	for _, d := range l {
		if d.Algorithm.Id == alg {
			return d.Value, true
		}
	}
	return nil, false
}

func (f Format) String() string {
	switch f {
	case FormatLegacy:
		return "legacy"
	case FormatCryptoAgile:
		return "crypto-agile"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

func (e EventType) String() string {
	if s, ok := eventTypeNames[e]; ok {
		return s
	}
	return fmt.Sprintf("%08x", uint32(e))
}

func (e EventType) Format(s fmt.State, f rune) {
	switch f {
	case 's', 'v':
		fmt.Fprintf(s, "%s", e.String())
	default:
		fmt.Fprintf(s, fmt.FormatString(s, f), uint32(e))
	}
}

func (d Digest) Format(s fmt.State, f rune) {
	switch f {
	case 's', 'v':
		fmt.Fprintf(s, "%x", []byte(d))
	default:
		fmt.Fprintf(s, fmt.FormatString(s, f), []byte(d))
	}
}

// Event corresponds to a single decoded record in an event log. Legacy
// records always carry exactly one SHA-1 digest; crypto-agile records carry
// one or more.
type Event struct {
	Index       uint32     // Position of this event in the log
	Offset      int64      // Byte offset of this record within the log
	PCRIndex    PCRIndex   // PCR index to which this event was measured
	EventType   EventType  // The type of this event
	Digests     DigestList // The digests recorded with this event
	Data        []byte     // The data recorded with this event
	Description string     // Best-effort description of Data
}

// EventDigest returns the digest recorded with this event for the specified
// algorithm.
func (e *Event) EventDigest(alg tpm2.HashAlgorithmId) (Digest, bool) {
	return e.Digests.Find(alg)
}

// Extends indicates whether this event is extended to a PCR during replay.
func (e *Event) Extends() bool {
	return e.PCRIndex >= 0 && e.EventType != EventTypeNoAction
}
