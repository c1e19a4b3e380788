// Copyright 2024 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tcglog

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
)

// ContentDecoder produces a human readable description of the data
// recorded with an event. Implementations must not retain data.
type ContentDecoder interface {
	Describe(eventType EventType, data []byte) (string, error)
}

// ContentDecoderFunc is an adapter to allow an ordinary function to be
// used as a ContentDecoder.
type ContentDecoderFunc func(eventType EventType, data []byte) (string, error)

func (f ContentDecoderFunc) Describe(eventType EventType, data []byte) (string, error) {
	return f(eventType, data)
}

// ContentDispatch maps event types to content decoders. It is read-only
// once constructed.
type ContentDispatch struct {
	decoders map[EventType]ContentDecoder
	logger   *slog.Logger
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewContentDispatch returns a ContentDispatch for the supplied decoders.
// Decoder failures are reported to logger, which may be nil.
func NewContentDispatch(decoders map[EventType]ContentDecoder, logger *slog.Logger) *ContentDispatch {
	if logger == nil {
		logger = discardLogger()
	}
	d := &ContentDispatch{
		decoders: make(map[EventType]ContentDecoder, len(decoders)),
		logger:   logger}
	for t, decoder := range decoders {
		if decoder == nil {
			continue
		}
		d.decoders[t] = decoder
	}
	return d
}

func describeHex(data []byte) string {
	return hex.EncodeToString(data)
}

func (d *ContentDispatch) describe(decoder ContentDecoder, eventType EventType, data []byte) (desc string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("decoder panicked: %v", p)
		}
	}()
	return decoder.Describe(eventType, data)
}

// Describe returns a description of data for the specified event type. If
// no decoder is registered for eventType, or the decoder fails, the data is
// described as a hex string. It never fails.
func (d *ContentDispatch) Describe(eventType EventType, data []byte) string {
	if d == nil {
		return describeHex(data)
	}
	decoder, ok := d.decoders[eventType]
	if !ok {
		return describeHex(data)
	}

	desc, err := d.describe(decoder, eventType, data)
	if err != nil {
		d.logger.Warn("cannot decode event data",
			slog.String("type", eventType.String()),
			slog.Int("size", len(data)),
			slog.Any("error", err))
		return describeHex(data)
	}
	return desc
}

// Has indicates whether a decoder is registered for eventType.
func (d *ContentDispatch) Has(eventType EventType) bool {
	if d == nil {
		return false
	}
	_, ok := d.decoders[eventType]
	return ok
}
