// Copyright 2024 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tcglog

import (
	"golang.org/x/xerrors"
)

const (
	pcrInitValue          = 0x00
	pcrInitValueLocality4 = 0xff

	// StartupLocality values that change the initial value of PCR 0.
	startupLocality3 = 3
	startupLocality4 = 4 // H-CRTM
)

// initialPCRValues returns the reset values of every PCR for a bank
// with the specified algorithm. PCRs 17 to 22 are reset to all ones.
// A startup locality of 3 or 4 is recorded in the last byte of PCR 0.
func initialPCRValues(alg HashAlgorithm, startupLocality uint8) (out [NumPCRs]Digest) {
	for i := range out {
		fill := byte(pcrInitValue)
		if PCRIndex(i) >= locality4FirstPCR && PCRIndex(i) <= locality4LastPCR {
			fill = pcrInitValueLocality4
		}
		d := make(Digest, alg.DigestLength)
		for j := range d {
			d[j] = fill
		}
		out[i] = d
	}

	switch startupLocality {
	case startupLocality3, startupLocality4:
		if alg.DigestLength > 0 {
			out[0][alg.DigestLength-1] = startupLocality
		}
	}

	return out
}

// performHashExtendOperation returns H(current || digest).
func performHashExtendOperation(alg HashAlgorithm, current, digest Digest) Digest {
	h := alg.NewHash()
	h.Write(current)
	h.Write(digest)
	return h.Sum(nil)
}

// Replay computes the PCR values produced by extending the digests for alg
// from events, in order. Events that target no PCR and EV_NO_ACTION events
// are skipped. The startup locality seeds PCR 0 as described for
// initialPCRValues.
//
// An error is returned if an extending event has no digest of the correct
// size for alg.
func Replay(events []*Event, alg HashAlgorithm, startupLocality uint8) ([NumPCRs]Digest, error) {
	if !alg.CanExtend() {
		return [NumPCRs]Digest{}, xerrors.Errorf("cannot replay with algorithm %s", alg)
	}

	pcrs := initialPCRValues(alg, startupLocality)

	for _, event := range events {
		if !event.Extends() {
			continue
		}
		if event.PCRIndex > maxPCRIndex {
			return [NumPCRs]Digest{}, &ParseError{Index: event.Index, Offset: event.Offset,
				Err: xerrors.Errorf("invalid PCR index %d: %w", event.PCRIndex, ErrRecordOverrun)}
		}

		digest, ok := event.EventDigest(alg.Id)
		if !ok || uint32(len(digest)) != alg.DigestLength {
			return [NumPCRs]Digest{}, &ParseError{Index: event.Index, Offset: event.Offset,
				Err: xerrors.Errorf("cannot extend %s event to PCR %d: %w", event.EventType, event.PCRIndex, ErrMissingDigest)}
		}

		pcrs[event.PCRIndex] = performHashExtendOperation(alg, pcrs[event.PCRIndex], digest)
	}

	return pcrs, nil
}

// findStartupLocality returns the locality recorded by the first
// StartupLocality EV_NO_ACTION event in events, or 0 if there isn't one.
func findStartupLocality(events []*Event) (uint8, bool) {
	for _, event := range events {
		if event.EventType != EventTypeNoAction {
			continue
		}
		locality, err := DecodeStartupLocality(event.Data)
		if err != nil {
			continue
		}
		return locality, true
	}
	return 0, false
}
