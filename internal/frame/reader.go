// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package frame

import (
	"bufio"
	"encoding/binary"
	"io"
)

// Reader pulls length-prefixed payloads off a byte stream. It keeps a
// single scratch buffer that is reused (and only grown, never shrunk)
// across calls to ReadFrame, so a steady-state connection settles into
// zero allocations once its payloads stop growing.
//
// The slice returned by ReadFrame aliases the reader's scratch buffer: it
// is only valid until the next call to ReadFrame. Callers that need to
// retain a payload past that point must copy it.
type Reader struct {
	src   *bufio.Reader
	head  [LengthPrefixSize]byte
	buf   []byte
	limit uint32
}

// NewReader wraps r. maxFrameLength bounds the largest payload accepted;
// callers pass frame.MaxFrameLength unless a tighter local policy applies.
func NewReader(r io.Reader, maxFrameLength uint32) *Reader {
	return &Reader{
		src:   bufio.NewReaderSize(r, 32*1024),
		limit: maxFrameLength,
	}
}

// ReadFrame reads the next frame's payload. It returns io.EOF only when
// the stream ends exactly on a frame boundary (no bytes of a new frame
// have been consumed yet); any other truncation is reported as
// ErrTruncated, since it means a peer died mid-frame.
func (r *Reader) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(r.src, r.head[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		frameErrors.WithLabelValues("read", "truncated_header").Inc()
		frameLog.WithError(err).Debug("frame: truncated reading length prefix")
		return nil, ErrTruncated
	}

	length := binary.BigEndian.Uint32(r.head[:])
	if length > r.limit {
		frameErrors.WithLabelValues("read", "oversize").Inc()
		frameLog.WithField("length", length).Debug("frame: declared length exceeds limit")
		return nil, &OversizeError{Length: length}
	}

	if r.buf == nil || cap(r.buf) < int(length) {
		r.buf = make([]byte, length)
	} else {
		r.buf = r.buf[:length]
	}

	if length > 0 {
		if _, err := io.ReadFull(r.src, r.buf); err != nil {
			frameErrors.WithLabelValues("read", "truncated_payload").Inc()
			frameLog.WithError(err).Debug("frame: truncated reading payload")
			return nil, ErrTruncated
		}
	}

	framesRead.Inc()
	bytesRead.Add(float64(length))
	return r.buf, nil
}
