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
	"strings"
	"unicode"
	"unicode/utf8"

	efi "github.com/canonical/go-efilib"

	"github.com/canonical/tcglog-replay"
)

var errNotPrintable = errors.New("data is not a printable ASCII string")

func isPrintableASCII(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for _, c := range data {
		if c >= utf8.RuneSelf || !unicode.IsPrint(rune(c)) {
			return false
		}
	}
	return true
}

// https://trustedcomputinggroup.org/wp-content/uploads/TCG_PCClientSpecPlat_TPM_2p0_1p04_pub.pdf
//
//	(section 9.4.5 "EV_NO_ACTION Event Types")
func describeNoAction(_ tcglog.EventType, data []byte) (string, error) {
	if len(data) < 16 {
		return "", io.ErrUnexpectedEOF
	}
	signature := strings.TrimRight(string(data[:16]), "\x00")

	switch signature {
	case "Spec ID Event03":
		d, err := tcglog.DecodeSpecIdEvent03(data)
		if err != nil {
			return "", err
		}
		return d.String(), nil
	case "Spec ID Event00":
		return "PCClientSpecIdEvent", nil
	case "Spec ID Event02":
		return "EfiSpecIdEvent (TPM 1.2)", nil
	case "StartupLocality":
		locality, err := tcglog.DecodeStartupLocality(data)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("EfiStartupLocalityEvent{ StartupLocality: %d }", locality), nil
	case "SP800-155 Event", "SP800-155 Event2", "SP800-155 Event3":
		return fmt.Sprintf("%s (%d bytes)", signature, len(data)-16), nil
	default:
		if !isPrintableASCII([]byte(signature)) {
			return "", fmt.Errorf("unrecognized EV_NO_ACTION signature %x", data[:16])
		}
		return fmt.Sprintf("EV_NO_ACTION{ signature: \"%s\" }", signature), nil
	}
}

func describeSeparator(_ tcglog.EventType, data []byte) (string, error) {
	if len(data) != 4 {
		return "", fmt.Errorf("separator has unexpected size %d", len(data))
	}
	switch value := binary.LittleEndian.Uint32(data); value {
	case tcglog.SeparatorEventNormalValue, tcglog.SeparatorEventAltNormalValue:
		return "", nil
	case tcglog.SeparatorEventErrorValue:
		return "*ERROR*", nil
	default:
		return fmt.Sprintf("*ERROR* 0x%08x", value), nil
	}
}

// describeString handles events where the data is an ASCII string, such as
// EV_ACTION and EV_EFI_ACTION.
func describeString(_ tcglog.EventType, data []byte) (string, error) {
	data = bytes.TrimRight(data, "\x00")
	if !isPrintableASCII(data) {
		return "", errNotPrintable
	}
	return string(data), nil
}

func describeUCS2String(eventType tcglog.EventType, data []byte) (string, error) {
	if len(data)%2 != 0 {
		return describeString(eventType, data)
	}
	u := make([]uint16, len(data)/2)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &u); err != nil {
		return "", err
	}
	for len(u) > 0 && u[len(u)-1] == 0 {
		u = u[:len(u)-1]
	}
	return efi.ConvertUTF16ToUTF8(u), nil
}

// describePostCode handles EV_POST_CODE events, which may contain either an
// ASCII string or a UEFI_PLATFORM_FIRMWARE_BLOB.
func describePostCode(eventType tcglog.EventType, data []byte) (string, error) {
	if s, err := describeString(eventType, data); err == nil {
		return s, nil
	}
	return describeEFIPlatformFirmwareBlob(eventType, data)
}
