// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package wire

// DecodeHead inspects a raw frame payload's first two bytes (version and
// frame type) and returns them along with the remaining bytes. It is the
// single entry point every connection uses to classify an inbound frame
// before dispatching to a type-specific decoder; it never resolves the
// version against a legacy/current negotiation scheme, because version
// negotiation in this protocol is implicit per-frame (spec.md §4.2).
func DecodeHead(payload []byte) (version Version, frameType FrameType, rest []byte, err error) {
	c := &cursor{b: payload}

	v, err := c.u8()
	if err != nil {
		return 0, 0, nil, &DecodeError{Op: "version", Err: err}
	}
	version = Version(v)
	if !version.IsValid() {
		return 0, 0, nil, &DecodeError{Op: "version", Err: ErrBadVersion}
	}

	t, err := c.u8()
	if err != nil {
		return 0, 0, nil, &DecodeError{Op: "frame-type", Err: err}
	}
	frameType = FrameType(t)
	if !validFrameType(frameType) {
		return 0, 0, nil, &DecodeError{Op: "frame-type", Err: ErrBadFrameType}
	}

	return version, frameType, c.remaining(), nil
}

func validFrameType(t FrameType) bool {
	switch t {
	case ReqFull, ReqChunk, ReqEnd, RespFull, RespChunk, RespEnd, TunChunk, TunClose, ReqStart, RespStart:
		return true
	default:
		return false
	}
}

// EncodeChunk builds the prelude (version, type, u32 chunk length) for a
// REQ_CHUNK/RESP_CHUNK/TUN_CHUNK frame. The actual chunk bytes are passed
// to the frame writer as a separate part, so a streamed chunk is never
// copied into this prelude.
func EncodeChunk(version Version, frameType FrameType, chunkLen int) []byte {
	b := newBuilder(6)
	b.u8(uint8(version))
	b.u8(uint8(frameType))
	b.u32(uint32(chunkLen))
	return b.buf
}

// DecodeChunk reads a chunk frame's length-prefixed body from rest (the
// bytes following the version/type header) and returns the chunk bytes
// as a slice of rest — no copy. A zero-length chunk is valid and carries
// no bytes, matching spec.md §8's boundary behaviour.
func DecodeChunk(rest []byte) ([]byte, error) {
	c := &cursor{b: rest}
	n, err := c.u32()
	if err != nil {
		return nil, &DecodeError{Op: "chunk-length", Err: err}
	}
	s, err := c.bytes(int(n))
	if err != nil {
		return nil, &DecodeError{Op: "chunk-body", Err: err}
	}
	return s.slice(rest), nil
}

// EncodeEnd builds the (version, type) prelude for a header-only end
// frame: REQ_END, RESP_END, or TUN_CLOSE.
func EncodeEnd(version Version, frameType FrameType) []byte {
	return []byte{uint8(version), uint8(frameType)}
}
