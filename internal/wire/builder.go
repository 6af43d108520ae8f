// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package wire

import (
	"encoding/binary"
	"unicode/utf8"
)

// builder assembles a frame payload by appending to a single growable
// slice. Request/response fields are written as borrowed string slices
// are encountered, so no intermediate owned copies accumulate beyond the
// final buffer itself.
type builder struct {
	buf []byte
}

func newBuilder(sizeHint int) *builder {
	return &builder{buf: make([]byte, 0, sizeHint)}
}

func (b *builder) u8(v uint8) {
	b.buf = append(b.buf, v)
}

func (b *builder) u16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

func (b *builder) u32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

// u32Placeholder reserves four zero bytes and returns their offset, to be
// patched later via patchU32 once the real value (e.g. a header count) is
// known.
func (b *builder) u32Placeholder() int {
	pos := len(b.buf)
	b.u32(0)
	return pos
}

func (b *builder) patchU32(pos int, v uint32) {
	binary.BigEndian.PutUint32(b.buf[pos:], v)
}

func (b *builder) str(s string) {
	b.u32(uint32(len(s)))
	b.buf = append(b.buf, s...)
}

// encodeHeaders writes the header_count placeholder, then each header
// entry, patching the count at the end. Entries whose value is not valid
// UTF-8 are skipped and not counted, per spec.md §4.2.
func encodeHeaders(b *builder, version Version, headers []HeaderField) {
	countPos := b.u32Placeholder()
	written := uint32(0)

	for _, h := range headers {
		if !utf8.ValidString(h.Value) {
			continue
		}

		if version == Version2 {
			if tok, ok := staticHeaderToken(h.Name); ok {
				b.u16(tok)
			} else {
				b.u16(literalToken)
				b.str(h.Name)
			}
		} else {
			b.str(h.Name)
		}

		b.str(h.Value)
		written++
	}

	b.patchU32(countPos, written)
}
