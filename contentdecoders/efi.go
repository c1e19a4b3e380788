// Copyright 2019-2024 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package contentdecoders

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	efi "github.com/canonical/go-efilib"
	"golang.org/x/xerrors"

	"github.com/canonical/tcglog-replay"
)

func eofIsUnexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// efiVariableData corresponds to UEFI_VARIABLE_DATA.
type efiVariableData struct {
	VariableName efi.GUID
	UnicodeName  string
	VariableData []byte
}

// https://trustedcomputinggroup.org/wp-content/uploads/TCG_PCClientSpecPlat_TPM_2p0_1p04_pub.pdf
//
//	(section 9.2.6 "Measuring UEFI Variables")
func decodeEFIVariableData(data []byte) (*efiVariableData, error) {
	r := bytes.NewReader(data)

	d := new(efiVariableData)

	variableName, err := efi.ReadGUID(r)
	if err != nil {
		return nil, xerrors.Errorf("cannot read VariableName: %w", eofIsUnexpected(err))
	}
	d.VariableName = variableName

	var unicodeNameLength uint64
	if err := binary.Read(r, binary.LittleEndian, &unicodeNameLength); err != nil {
		return nil, xerrors.Errorf("cannot read UnicodeNameLength: %w", eofIsUnexpected(err))
	}

	var variableDataLength uint64
	if err := binary.Read(r, binary.LittleEndian, &variableDataLength); err != nil {
		return nil, xerrors.Errorf("cannot read VariableDataLength: %w", eofIsUnexpected(err))
	}

	if unicodeNameLength > uint64(r.Len())/2 {
		return nil, xerrors.Errorf("UnicodeNameLength %d too large: %w", unicodeNameLength, io.ErrUnexpectedEOF)
	}
	ucs2Name := make([]uint16, unicodeNameLength)
	if err := binary.Read(r, binary.LittleEndian, &ucs2Name); err != nil {
		return nil, xerrors.Errorf("cannot read UnicodeName: %w", eofIsUnexpected(err))
	}
	d.UnicodeName = efi.ConvertUTF16ToUTF8(ucs2Name)

	if variableDataLength > uint64(r.Len()) {
		return nil, xerrors.Errorf("VariableDataLength %d too large: %w", variableDataLength, io.ErrUnexpectedEOF)
	}
	d.VariableData = make([]byte, variableDataLength)
	if _, err := io.ReadFull(r, d.VariableData); err != nil {
		return nil, xerrors.Errorf("cannot read VariableData: %w", eofIsUnexpected(err))
	}

	return d, nil
}

func describeBootOrder(data []byte) (string, error) {
	if len(data)%2 != 0 {
		return "", errors.New("BootOrder has odd length")
	}
	var order []string
	for i := 0; i < len(data); i += 2 {
		order = append(order, fmt.Sprintf("%04x", binary.LittleEndian.Uint16(data[i:])))
	}
	return strings.Join(order, ","), nil
}

func describeSignatureDatabase(data []byte) (string, error) {
	db, err := efi.ReadSignatureDatabase(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	var n int
	for _, l := range db {
		n += len(l.Signatures)
	}
	return fmt.Sprintf("%d signature lists, %d signatures", len(db), n), nil
}

func describeEFIVariable(eventType tcglog.EventType, data []byte) (string, error) {
	d, err := decodeEFIVariableData(data)
	if err != nil {
		return "", err
	}

	var details string
	switch {
	case d.VariableName == efi.GlobalVariable && d.UnicodeName == "BootOrder":
		order, err := describeBootOrder(d.VariableData)
		if err != nil {
			return "", err
		}
		details = "BootOrder: " + order
	case d.VariableName == efi.GlobalVariable && strings.HasPrefix(d.UnicodeName, "Boot") && len(d.UnicodeName) == 8:
		opt, err := efi.ReadLoadOption(bytes.NewReader(d.VariableData))
		if err != nil {
			return "", xerrors.Errorf("cannot decode load option %s: %w", d.UnicodeName, err)
		}
		details = fmt.Sprintf("%s: %s", d.UnicodeName, opt.Description)
	case eventType == tcglog.EventTypeEFIVariableDriverConfig && isSignatureDatabase(d):
		summary, err := describeSignatureDatabase(d.VariableData)
		if err != nil {
			return "", xerrors.Errorf("cannot decode signature database %s: %w", d.UnicodeName, err)
		}
		details = summary
	default:
		details = fmt.Sprintf("%d bytes", len(d.VariableData))
	}

	return fmt.Sprintf("UEFI_VARIABLE_DATA{ VariableName: %s, UnicodeName: \"%s\", VariableData: %s }",
		d.VariableName, d.UnicodeName, details), nil
}

func isSignatureDatabase(d *efiVariableData) bool {
	switch {
	case d.VariableName == efi.GlobalVariable && (d.UnicodeName == "PK" || d.UnicodeName == "KEK"):
		return true
	case d.VariableName == efi.ImageSecurityDatabaseGuid && (d.UnicodeName == "db" || d.UnicodeName == "dbx"):
		return true
	default:
		return false
	}
}

type rawEFIImageLoadEventHdr struct {
	LocationInMemory   efi.PhysicalAddress
	LengthInMemory     uint64
	LinkTimeAddress    uint64
	LengthOfDevicePath uint64
}

// https://trustedcomputinggroup.org/wp-content/uploads/TCG_PCClientSpecPlat_TPM_2p0_1p04_pub.pdf
//
//	(section 9.2.3 "UEFI_IMAGE_LOAD_EVENT Structure")
func describeEFIImageLoad(_ tcglog.EventType, data []byte) (string, error) {
	r := bytes.NewReader(data)

	var hdr rawEFIImageLoadEventHdr
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return "", xerrors.Errorf("cannot read header: %w", eofIsUnexpected(err))
	}
	if hdr.LengthOfDevicePath > uint64(r.Len()) {
		return "", xerrors.Errorf("LengthOfDevicePath %d too large: %w", hdr.LengthOfDevicePath, io.ErrUnexpectedEOF)
	}

	path, err := efi.ReadDevicePath(io.LimitReader(r, int64(hdr.LengthOfDevicePath)))
	if err != nil {
		return "", xerrors.Errorf("cannot read device path: %w", eofIsUnexpected(err))
	}

	return fmt.Sprintf("UEFI_IMAGE_LOAD_EVENT{ ImageLocationInMemory: 0x%016x, ImageLengthInMemory: %d, "+
		"ImageLinkTimeAddress: 0x%016x, DevicePath: %s }", hdr.LocationInMemory, hdr.LengthInMemory, hdr.LinkTimeAddress, path), nil
}

// https://trustedcomputinggroup.org/wp-content/uploads/TCG_PCClientSpecPlat_TPM_2p0_1p04_pub.pdf
//
//	(section 9.2.5 "UEFI_GPT_DATA Structure")
func describeEFIGPT(_ tcglog.EventType, data []byte) (string, error) {
	r := bytes.NewReader(data)

	hdr, err := efi.ReadPartitionTableHeader(r, false)
	if err != nil {
		return "", xerrors.Errorf("cannot read partition table header: %w", eofIsUnexpected(err))
	}

	var numberOfParts uint64
	if err := binary.Read(r, binary.LittleEndian, &numberOfParts); err != nil {
		return "", xerrors.Errorf("cannot read NumberOfPartitions: %w", eofIsUnexpected(err))
	}
	if numberOfParts > math.MaxUint32 {
		return "", errors.New("invalid UEFI_GPT_DATA.NumberOfPartitions")
	}

	partitions, err := efi.ReadPartitionEntries(r, uint32(numberOfParts), hdr.SizeOfPartitionEntry)
	if err != nil {
		return "", xerrors.Errorf("cannot read partition entries: %w", eofIsUnexpected(err))
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "UEFI_GPT_DATA{ DiskGUID: %s, Partitions: [", hdr.DiskGUID)
	for i, part := range partitions {
		if i > 0 {
			builder.WriteString(", ")
		}
		fmt.Fprintf(&builder, "{ %s }", part)
	}
	builder.WriteString("] }")
	return builder.String(), nil
}

// https://trustedcomputinggroup.org/wp-content/uploads/TCG_PCClientSpecPlat_TPM_2p0_1p04_pub.pdf
//
//	(section 9.2.4 "UEFI_PLATFORM_FIRMWARE_BLOB Structure")
func describeEFIPlatformFirmwareBlob(_ tcglog.EventType, data []byte) (string, error) {
	var blob struct {
		BlobBase   efi.PhysicalAddress
		BlobLength uint64
	}
	if len(data) != binary.Size(blob) {
		return "", fmt.Errorf("unexpected size %d for UEFI_PLATFORM_FIRMWARE_BLOB", len(data))
	}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &blob); err != nil {
		return "", err
	}
	return fmt.Sprintf("UEFI_PLATFORM_FIRMWARE_BLOB{ BlobBase: 0x%x, BlobLength: %d }", blob.BlobBase, blob.BlobLength), nil
}

// https://trustedcomputinggroup.org/wp-content/uploads/TCG_PCClientSpecPlat_TPM_2p0_1p04_pub.pdf
//
//	(section 9.2.7 "UEFI_HANDOFF_TABLE_POINTERS Structure")
func describeEFIHandoffTables(_ tcglog.EventType, data []byte) (string, error) {
	r := bytes.NewReader(data)

	var numberOfTables uint64
	if err := binary.Read(r, binary.LittleEndian, &numberOfTables); err != nil {
		return "", xerrors.Errorf("cannot read NumberOfTables: %w", eofIsUnexpected(err))
	}
	// Each EFI_CONFIGURATION_TABLE is a GUID and a pointer.
	if numberOfTables > uint64(r.Len())/24 {
		return "", xerrors.Errorf("NumberOfTables %d too large: %w", numberOfTables, io.ErrUnexpectedEOF)
	}

	var tables []string
	for i := uint64(0); i < numberOfTables; i++ {
		guid, err := efi.ReadGUID(r)
		if err != nil {
			return "", xerrors.Errorf("cannot read VendorGuid for table %d: %w", i, eofIsUnexpected(err))
		}
		var ptr uint64
		if err := binary.Read(r, binary.LittleEndian, &ptr); err != nil {
			return "", xerrors.Errorf("cannot read VendorTable for table %d: %w", i, eofIsUnexpected(err))
		}
		tables = append(tables, fmt.Sprintf("{ VendorGuid: %s, VendorTable: 0x%016x }", guid, ptr))
	}

	return fmt.Sprintf("UEFI_HANDOFF_TABLE_POINTERS{ TableEntry: [%s] }", strings.Join(tables, ", ")), nil
}
