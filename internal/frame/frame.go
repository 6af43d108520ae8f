// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package frame implements the bridge's length-prefixed framing: the
// on-wire unit is a big-endian u32 length followed by that many payload
// bytes. It knows nothing about protocol versions or frame types; that
// belongs to package wire.
package frame

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

var frameLog = logrus.WithField("subsystem", "frame")

// SetLogger overrides the package logger, mirroring bridge.SetLogger and
// exchange.SetLogger one layer up.
func SetLogger(logger *logrus.Entry) {
	frameLog = logger
}

// MaxFrameLength is the largest payload a single frame may carry. A
// frame claiming a larger length is a fatal protocol error for the
// connection it arrived on.
const MaxFrameLength = 64 * 1024 * 1024

// LengthPrefixSize is the size in bytes of the u32_be length header that
// precedes every frame payload.
const LengthPrefixSize = 4

// coalesceThreshold is the payload size at or below which the writer packs the
// length header and the payload into one buffer and issues a single
// write, instead of writing the header and payload separately.
const coalesceThreshold = 4096

var (
	// ErrOversizeFrame is returned when a frame's length exceeds the
	// limit in force: MaxFrameLength for a Writer, or the maxFrameLength
	// a Reader was constructed with.
	ErrOversizeFrame = errors.New("frame: payload exceeds maximum frame length")

	// ErrTruncated is returned when the stream ends in the middle of
	// a frame (after the length prefix or partway through a payload).
	ErrTruncated = errors.New("frame: truncated read mid-frame")
)

// OversizeError records the length a peer claimed, for logging.
type OversizeError struct {
	Length uint32
}

func (e *OversizeError) Error() string {
	return fmt.Sprintf("frame: declared length %d exceeds the frame length limit", e.Length)
}

func (e *OversizeError) Unwrap() error { return ErrOversizeFrame }
