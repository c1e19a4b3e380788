// Copyright 2019-2024 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tcglog

import (
	"encoding/binary"
	"math"

	"github.com/canonical/go-tpm2"
	"golang.org/x/xerrors"
)

// recordReader is a cursor over the remaining bytes of a log.
type recordReader struct {
	data []byte
	off  int64
}

func newRecordReader(data []byte) *recordReader {
	return &recordReader{data: data}
}

func (r *recordReader) Len() int64 {
	return int64(len(r.data)) - r.off
}

func (r *recordReader) Offset() int64 {
	return r.off
}

func (r *recordReader) next(n int64) ([]byte, error) {
	if n > r.Len() {
		return nil, ErrTruncatedRecord
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *recordReader) readUint16() (uint16, error) {
	b, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *recordReader) readUint32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// readBytes returns a copy of the next n bytes, so that decoded events
// don't alias the caller's buffer.
func (r *recordReader) readBytes(n int64) ([]byte, error) {
	b, err := r.next(n)
	if err != nil {
		return nil, err
	}
	return append([]byte{}, b...), nil
}

const (
	// PCRIndex + EventType
	eventHeaderSize = 8

	// Smallest possible TPMT_HA: an algorithm ID with an empty digest.
	minDigestEntrySize = 2
)

func readEventHeader(r *recordReader) (pcrIndex PCRIndex, eventType EventType, err error) {
	rawIndex, err := r.readUint32()
	if err != nil {
		return 0, 0, xerrors.Errorf("cannot read PCR index: %w", err)
	}
	switch {
	case rawIndex == math.MaxUint32:
		pcrIndex = NonExtendingPCRIndex
	case rawIndex > uint32(maxPCRIndex):
		return 0, 0, xerrors.Errorf("invalid PCR index %d: %w", rawIndex, ErrRecordOverrun)
	default:
		pcrIndex = PCRIndex(rawIndex)
	}

	rawType, err := r.readUint32()
	if err != nil {
		return 0, 0, xerrors.Errorf("cannot read event type: %w", err)
	}

	return pcrIndex, EventType(rawType), nil
}

func readEventData(r *recordReader) ([]byte, error) {
	eventSize, err := r.readUint32()
	if err != nil {
		return nil, xerrors.Errorf("cannot read event size: %w", err)
	}
	data, err := r.readBytes(int64(eventSize))
	if err != nil {
		return nil, xerrors.Errorf("cannot read event data (%d bytes, %d remaining): %w", eventSize, r.Len(), err)
	}
	return data, nil
}

// decodeEventLegacy decodes a TCG_PCR_EVENT record.
//
// https://trustedcomputinggroup.org/wp-content/uploads/TCG_PCClientImplementation_1-21_1_00.pdf
//
//	(section 11.1.1 "TCG_PCClientPCREventStruct Structure")
func decodeEventLegacy(r *recordReader) (*Event, error) {
	offset := r.Offset()

	pcrIndex, eventType, err := readEventHeader(r)
	if err != nil {
		return nil, err
	}

	digest, err := r.readBytes(int64(AlgorithmSHA1.DigestLength))
	if err != nil {
		return nil, xerrors.Errorf("cannot read SHA-1 digest: %w", err)
	}

	data, err := readEventData(r)
	if err != nil {
		return nil, err
	}

	return &Event{
		Offset:    offset,
		PCRIndex:  pcrIndex,
		EventType: eventType,
		Digests:   DigestList{{Algorithm: AlgorithmSHA1, Value: digest}},
		Data:      data}, nil
}

// decodeEventCryptoAgile decodes a TCG_PCR_EVENT2 record, using algs to
// determine the size of each digest.
//
// https://trustedcomputinggroup.org/wp-content/uploads/TCG_PCClientSpecPlat_TPM_2p0_1p04_pub.pdf
//
//	(section 9.2.2 "TCG_PCR_EVENT2 Structure")
func decodeEventCryptoAgile(r *recordReader, algs *AlgorithmRegistry) (*Event, error) {
	offset := r.Offset()

	pcrIndex, eventType, err := readEventHeader(r)
	if err != nil {
		return nil, err
	}

	count, err := r.readUint32()
	if err != nil {
		return nil, xerrors.Errorf("cannot read digest count: %w", err)
	}
	if count == 0 {
		return nil, xerrors.Errorf("empty digest list: %w", ErrRecordOverrun)
	}
	if int64(count)*minDigestEntrySize > r.Len() {
		return nil, xerrors.Errorf("digest count %d exceeds remaining log size (%d bytes): %w", count, r.Len(), ErrRecordOverrun)
	}

	digests := make(DigestList, 0, count)
	for i := uint32(0); i < count; i++ {
		id, err := r.readUint16()
		if err != nil {
			return nil, xerrors.Errorf("cannot read algorithm for digest %d: %w", i, err)
		}

		alg, err := algs.LookupById(tpm2.HashAlgorithmId(id))
		if err != nil {
			return nil, xerrors.Errorf("cannot decode digest %d: %w", i, err)
		}

		if int64(alg.DigestLength) > r.Len() {
			return nil, xerrors.Errorf("%s digest exceeds remaining log size (%d bytes): %w", alg, r.Len(), ErrRecordOverrun)
		}
		value, err := r.readBytes(int64(alg.DigestLength))
		if err != nil {
			return nil, xerrors.Errorf("cannot read %s digest: %w", alg, err)
		}

		digests = append(digests, DigestEntry{Algorithm: alg, Value: value})
	}

	data, err := readEventData(r)
	if err != nil {
		return nil, err
	}

	return &Event{
		Offset:    offset,
		PCRIndex:  pcrIndex,
		EventType: eventType,
		Digests:   digests,
		Data:      data}, nil
}
