// Copyright 2019-2024 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package contentdecoders

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"

	efi "github.com/canonical/go-efilib"

	"github.com/canonical/tcglog-replay"
)

const (
	grubCmdPrefix       = "grub_cmd: "
	kernelCmdlinePrefix = "kernel_cmdline: "
)

// describeIPL handles EV_IPL events. GRUB measures its commands and the
// kernel commandline as prefixed ASCII strings, and systemd's EFI stub
// measures the kernel commandline as a NUL-terminated UTF-16 string.
func describeIPL(eventType tcglog.EventType, data []byte) (string, error) {
	if str, err := describeString(eventType, data); err == nil {
		switch {
		case strings.HasPrefix(str, grubCmdPrefix):
			return fmt.Sprintf("grub_cmd{ %s }", strings.TrimPrefix(str, grubCmdPrefix)), nil
		case strings.HasPrefix(str, kernelCmdlinePrefix):
			return fmt.Sprintf("kernel_cmdline{ %s }", strings.TrimPrefix(str, kernelCmdlinePrefix)), nil
		default:
			return str, nil
		}
	}
	return describeUTF16String(data)
}

func describeUTF16String(data []byte) (string, error) {
	// Omit the zero byte added by the EFI stub.
	if len(data)%2 == 1 && data[len(data)-1] == 0 {
		data = data[:len(data)-1]
	}
	if len(data) == 0 || len(data)%2 != 0 {
		return "", errNotPrintable
	}

	u := make([]uint16, len(data)/2)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &u); err != nil {
		return "", err
	}
	for len(u) > 0 && u[len(u)-1] == 0 {
		u = u[:len(u)-1]
	}

	str := efi.ConvertUTF16ToUTF8(u)
	if str == "" || !utf8.ValidString(str) || strings.ContainsRune(str, utf8.RuneError) {
		return "", errNotPrintable
	}
	return str, nil
}
