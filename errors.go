// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tcglog

import (
	"errors"
	"fmt"

	"github.com/canonical/go-tpm2"
)

var (
	// ErrTruncatedRecord indicates that the log ended before the end of a
	// field in a record.
	ErrTruncatedRecord = errors.New("truncated record")

	// ErrUnknownAlgorithm indicates that an algorithm identifier or name is
	// not registered.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")

	// ErrRecordOverrun indicates that a record declares a size or an index
	// that can't be satisfied by the remaining log data.
	ErrRecordOverrun = errors.New("record overrun")

	// ErrInvalidSpecIdEvent indicates that the Spec ID event at the start of
	// a crypto-agile log is malformed.
	ErrInvalidSpecIdEvent = errors.New("invalid Spec ID event")

	// ErrAlgorithmNotInLog indicates that the requested replay algorithm
	// isn't recorded in the log.
	ErrAlgorithmNotInLog = errors.New("algorithm not present in log")

	// ErrMissingDigest indicates that an extending event has no digest for
	// the replay algorithm.
	ErrMissingDigest = errors.New("event has no digest for the replay algorithm")

	// ErrEventNotFound is returned when querying an event that doesn't exist.
	ErrEventNotFound = errors.New("event not found")

	// ErrInvalidPCRIndex is returned when querying a PCR outside of the
	// replayed range.
	ErrInvalidPCRIndex = errors.New("invalid PCR index")
)

// UnknownAlgorithmError is returned when an algorithm isn't registered.
type UnknownAlgorithmError struct {
	Algorithm tpm2.HashAlgorithmId
	Name      string
}

func (e *UnknownAlgorithmError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("unknown algorithm \"%s\"", e.Name)
	}
	return fmt.Sprintf("unknown algorithm 0x%04x", uint16(e.Algorithm))
}

func (e *UnknownAlgorithmError) Is(target error) bool {
	return target == ErrUnknownAlgorithm
}

// ParseError is returned from ParseLog when the log is structurally invalid.
// No part of a log that produces this error can be trusted.
type ParseError struct {
	Index  uint32 // Index of the record that couldn't be decoded
	Offset int64  // Byte offset at which the problem was detected
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot decode event %d at offset 0x%x: %v", e.Index, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
