// Copyright 2024 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

// Package contentdecoders provides descriptions of the data recorded with
// events in a TCG event log. The decoders are informative only: a failure to
// decode event data never affects parsing or replay of the log.
package contentdecoders

import (
	"log/slog"

	"github.com/canonical/tcglog-replay"
)

// Decoders returns the decoders provided by this package, keyed by the event
// type that they describe.
func Decoders() map[tcglog.EventType]tcglog.ContentDecoder {
	return map[tcglog.EventType]tcglog.ContentDecoder{
		tcglog.EventTypeNoAction:                   tcglog.ContentDecoderFunc(describeNoAction),
		tcglog.EventTypeSeparator:                  tcglog.ContentDecoderFunc(describeSeparator),
		tcglog.EventTypeAction:                     tcglog.ContentDecoderFunc(describeString),
		tcglog.EventTypeEFIAction:                  tcglog.ContentDecoderFunc(describeString),
		tcglog.EventTypeIPL:                        tcglog.ContentDecoderFunc(describeIPL),
		tcglog.EventTypePostCode:                   tcglog.ContentDecoderFunc(describePostCode),
		tcglog.EventTypeSCRTMVersion:               tcglog.ContentDecoderFunc(describeUCS2String),
		tcglog.EventTypeEFIVariableDriverConfig:    tcglog.ContentDecoderFunc(describeEFIVariable),
		tcglog.EventTypeEFIVariableBoot:            tcglog.ContentDecoderFunc(describeEFIVariable),
		tcglog.EventTypeEFIVariableBoot2:           tcglog.ContentDecoderFunc(describeEFIVariable),
		tcglog.EventTypeEFIVariableAuthority:       tcglog.ContentDecoderFunc(describeEFIVariable),
		tcglog.EventTypeEFIBootServicesApplication: tcglog.ContentDecoderFunc(describeEFIImageLoad),
		tcglog.EventTypeEFIBootServicesDriver:      tcglog.ContentDecoderFunc(describeEFIImageLoad),
		tcglog.EventTypeEFIRuntimeServicesDriver:   tcglog.ContentDecoderFunc(describeEFIImageLoad),
		tcglog.EventTypeEFIGPTEvent:                tcglog.ContentDecoderFunc(describeEFIGPT),
		tcglog.EventTypeEFIGPTEvent2:               tcglog.ContentDecoderFunc(describeEFIGPT),
		tcglog.EventTypeEFIPlatformFirmwareBlob:    tcglog.ContentDecoderFunc(describeEFIPlatformFirmwareBlob),
		tcglog.EventTypeEFIHandoffTables:           tcglog.ContentDecoderFunc(describeEFIHandoffTables),
	}
}

// NewDispatch returns a tcglog.ContentDispatch containing the decoders
// provided by this package. Decoder failures are logged to logger, which may
// be nil.
func NewDispatch(logger *slog.Logger) *tcglog.ContentDispatch {
	return tcglog.NewContentDispatch(Decoders(), logger)
}
