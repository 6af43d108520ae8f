// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package frame

import (
	"encoding/binary"
	"io"
	"net"
)

// Writer emits length-prefixed frames. Callers hand it the frame's
// payload as one or more parts (a header-ish "prelude" and, optionally, a
// body) so that a streamed response body never has to be copied into an
// intermediate buffer just to be framed.
type Writer struct {
	dst io.Writer
	hdr [LengthPrefixSize]byte
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{dst: w}
}

// WriteFrame writes a single payload as one frame.
func (w *Writer) WriteFrame(payload []byte) error {
	return w.WriteFrameParts(payload)
}

// WriteFrameParts writes the concatenation of parts as a single frame's
// payload, without ever materialising that concatenation in memory.
//
// Parts whose total size is small are packed header+payload into one
// buffer and written with a single call, avoiding a second syscall for
// tiny frames. Larger frames hand the length header and the parts to
// net.Buffers together, without copying them, so the runtime can issue a single
// writev(2) when the underlying writer supports it (e.g. a *net.TCPConn
// or *net.UnixConn) instead of one write(2) per part.
func (w *Writer) WriteFrameParts(parts ...[]byte) error {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	if total > MaxFrameLength {
		frameErrors.WithLabelValues("write", "oversize").Inc()
		frameLog.WithField("length", total).Debug("frame: payload exceeds maximum frame length")
		return &OversizeError{Length: uint32(total)}
	}

	binary.BigEndian.PutUint32(w.hdr[:], uint32(total))

	if total <= coalesceThreshold {
		buf := make([]byte, 0, LengthPrefixSize+total)
		buf = append(buf, w.hdr[:]...)
		for _, p := range parts {
			buf = append(buf, p...)
		}
		if _, err := w.dst.Write(buf); err != nil {
			frameErrors.WithLabelValues("write", "io").Inc()
			frameLog.WithError(err).Debug("frame: write failed")
			return err
		}
		framesWritten.Inc()
		bytesWritten.Add(float64(total))
		return nil
	}

	bufs := make(net.Buffers, 0, len(parts)+1)
	hdrCopy := w.hdr
	bufs = append(bufs, hdrCopy[:])
	bufs = append(bufs, parts...)
	if _, err := bufs.WriteTo(w.dst); err != nil {
		frameErrors.WithLabelValues("write", "io").Inc()
		frameLog.WithError(err).Debug("frame: write failed")
		return err
	}
	framesWritten.Inc()
	bytesWritten.Add(float64(total))
	return nil
}

// WriteFrameStream writes a frame whose payload is a fixed prelude
// followed by a body read from r (of exactly bodyLen bytes), without
// buffering the body in heap memory. Used for RESP_FULL responses backed
// by a lazy byte stream rather than a materialised buffer.
func (w *Writer) WriteFrameStream(prelude []byte, bodyLen int, r io.Reader) error {
	total := len(prelude) + bodyLen
	if total > MaxFrameLength {
		frameErrors.WithLabelValues("write", "oversize").Inc()
		frameLog.WithField("length", total).Debug("frame: streamed payload exceeds maximum frame length")
		return &OversizeError{Length: uint32(total)}
	}

	binary.BigEndian.PutUint32(w.hdr[:], uint32(total))
	if _, err := w.dst.Write(w.hdr[:]); err != nil {
		frameErrors.WithLabelValues("write", "io").Inc()
		frameLog.WithError(err).Debug("frame: write failed")
		return err
	}
	if len(prelude) > 0 {
		if _, err := w.dst.Write(prelude); err != nil {
			frameErrors.WithLabelValues("write", "io").Inc()
			frameLog.WithError(err).Debug("frame: write failed")
			return err
		}
	}
	if bodyLen == 0 {
		framesWritten.Inc()
		bytesWritten.Add(float64(total))
		return nil
	}
	if _, err := io.CopyN(w.dst, r, int64(bodyLen)); err != nil {
		frameErrors.WithLabelValues("write", "io").Inc()
		frameLog.WithError(err).Debug("frame: stream body copy failed")
		return err
	}
	framesWritten.Inc()
	bytesWritten.Add(float64(total))
	return nil
}
