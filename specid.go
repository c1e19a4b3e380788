// Copyright 2019-2024 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tcglog

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/canonical/go-tpm2"
	"golang.org/x/xerrors"
)

// noActionSignature returns the signature that starts the data of an
// EV_NO_ACTION event, with any trailing NUL characters removed.
func noActionSignature(data []byte) (string, bool) {
	if len(data) < noActionSignatureSize {
		return "", false
	}
	return strings.TrimRight(string(data[:noActionSignatureSize]), "\x00"), true
}

// isSpecIdEvent indicates whether the supplied event is a Spec ID event of
// any version.
func isSpecIdEvent(event *Event) bool {
	if event.EventType != EventTypeNoAction {
		return false
	}
	sig, _ := noActionSignature(event.Data)
	switch sig {
	case specIdEvent00Signature, specIdEvent02Signature, specIdEvent03Signature:
		return true
	default:
		return false
	}
}

// isSpecIdEvent03 indicates whether the supplied event is the Spec ID
// event that marks the start of a crypto-agile log.
func isSpecIdEvent03(event *Event) bool {
	if event.EventType != EventTypeNoAction {
		return false
	}
	sig, ok := noActionSignature(event.Data)
	return ok && sig == specIdEvent03Signature
}

// EFISpecIdEventAlgorithmSize corresponds to the
// TCG_EfiSpecIdEventAlgorithmSize type.
type EFISpecIdEventAlgorithmSize struct {
	AlgorithmId tpm2.HashAlgorithmId
	DigestSize  uint16
}

// SpecIdEvent03 corresponds to the TCG_EfiSpecIdEvent type and is the
// event data for a Specification ID Version EV_NO_ACTION event on EFI platforms
// for TPM family 2.0.
type SpecIdEvent03 struct {
	PlatformClass    uint32
	SpecVersionMinor uint8
	SpecVersionMajor uint8
	SpecErrata       uint8
	UintnSize        uint8
	DigestSizes      []EFISpecIdEventAlgorithmSize // The digest algorithms contained within this log
	VendorInfo       []byte
}

func (e *SpecIdEvent03) String() string {
	var builder bytes.Buffer
	fmt.Fprintf(&builder, "EfiSpecIdEvent{ platformClass=%d, specVersionMinor=%d, specVersionMajor=%d, specErrata=%d, uintnSize=%d, digestSizes=[",
		e.PlatformClass, e.SpecVersionMinor, e.SpecVersionMajor, e.SpecErrata, e.UintnSize)
	for i, algSize := range e.DigestSizes {
		if i > 0 {
			builder.WriteString(", ")
		}
		fmt.Fprintf(&builder, "{ algorithmId=0x%04x, digestSize=%d }",
			uint16(algSize.AlgorithmId), algSize.DigestSize)
	}
	builder.WriteString("] }")
	return builder.String()
}

// Contains indicates whether the log records digests for the specified
// algorithm.
func (e *SpecIdEvent03) Contains(alg tpm2.HashAlgorithmId) bool {
	for _, d := range e.DigestSizes {
		if d.AlgorithmId == alg {
			return true
		}
	}
	return false
}

func eofIsUnexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// DecodeSpecIdEvent03 decodes the data of a "Spec ID Event03" EV_NO_ACTION
// event, including the 16-byte signature.
//
// https://trustedcomputinggroup.org/wp-content/uploads/TCG_PCClientSpecPlat_TPM_2p0_1p04_pub.pdf
//
//	(secion 9.4.5.1 "Specification ID Version Event")
func DecodeSpecIdEvent03(data []byte) (*SpecIdEvent03, error) {
	sig, ok := noActionSignature(data)
	if !ok || sig != specIdEvent03Signature {
		return nil, xerrors.Errorf("unexpected signature: %w", ErrInvalidSpecIdEvent)
	}

	r := bytes.NewReader(data[noActionSignatureSize:])
	d := new(SpecIdEvent03)

	var hdr struct {
		PlatformClass    uint32
		SpecVersionMinor uint8
		SpecVersionMajor uint8
		SpecErrata       uint8
		UintnSize        uint8
		NumAlgorithms    uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, xerrors.Errorf("cannot read header: %v: %w", eofIsUnexpected(err), ErrInvalidSpecIdEvent)
	}
	d.PlatformClass = hdr.PlatformClass
	d.SpecVersionMinor = hdr.SpecVersionMinor
	d.SpecVersionMajor = hdr.SpecVersionMajor
	d.SpecErrata = hdr.SpecErrata
	d.UintnSize = hdr.UintnSize

	// Each TCG_EfiSpecIdEventAlgorithmSize is 4 bytes.
	if int64(hdr.NumAlgorithms)*4 > int64(r.Len()) {
		return nil, xerrors.Errorf("algorithm count %d exceeds event size: %w", hdr.NumAlgorithms, ErrInvalidSpecIdEvent)
	}
	d.DigestSizes = make([]EFISpecIdEventAlgorithmSize, hdr.NumAlgorithms)
	if err := binary.Read(r, binary.LittleEndian, &d.DigestSizes); err != nil {
		return nil, xerrors.Errorf("cannot read digest sizes: %v: %w", eofIsUnexpected(err), ErrInvalidSpecIdEvent)
	}

	var vendorInfoSize uint8
	if err := binary.Read(r, binary.LittleEndian, &vendorInfoSize); err != nil {
		return nil, xerrors.Errorf("cannot read vendor info size: %v: %w", eofIsUnexpected(err), ErrInvalidSpecIdEvent)
	}
	d.VendorInfo = make([]byte, vendorInfoSize)
	if _, err := io.ReadFull(r, d.VendorInfo); err != nil {
		return nil, xerrors.Errorf("cannot read vendor info: %v: %w", eofIsUnexpected(err), ErrInvalidSpecIdEvent)
	}

	return d, nil
}

// checkDigestSizes verifies that the digest sizes recorded in the Spec ID
// event agree with the registry for every algorithm the registry knows.
func (e *SpecIdEvent03) checkDigestSizes(algs *AlgorithmRegistry) error {
	for _, d := range e.DigestSizes {
		expected, err := algs.LengthFor(d.AlgorithmId)
		if err != nil {
			continue
		}
		if uint32(d.DigestSize) != expected {
			return xerrors.Errorf("digest size for algorithm 0x%04x doesn't match expected size (size: %d, expected %d): %w",
				uint16(d.AlgorithmId), d.DigestSize, expected, ErrInvalidSpecIdEvent)
		}
	}
	return nil
}

// DecodeStartupLocality decodes the data of a "StartupLocality" EV_NO_ACTION
// event, returning the locality from which TPM2_Startup was issued.
//
// https://trustedcomputinggroup.org/wp-content/uploads/TCG_PCClientSpecPlat_TPM_2p0_1p04_pub.pdf
//
//	(section 9.4.5.3 "Startup Locality Event")
func DecodeStartupLocality(data []byte) (uint8, error) {
	sig, ok := noActionSignature(data)
	if !ok || sig != startupLocalitySignature {
		return 0, xerrors.New("not a StartupLocality event")
	}
	if len(data) < noActionSignatureSize+1 {
		return 0, io.ErrUnexpectedEOF
	}
	return data[noActionSignatureSize], nil
}
