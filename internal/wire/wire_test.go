// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequestHead() RequestHead {
	return RequestHead{
		Method:    "GET",
		Scheme:    "https",
		Authority: "example.com",
		Path:      "/ping",
		Query:     "",
		Protocol:  "HTTP/1.1",
		Headers: []HeaderField{
			{Name: "host", Value: "example.com"},
			{Name: "x-custom-thing", Value: "abc"},
		},
	}
}

func TestRequestHeadRoundTripV1AndV2(t *testing.T) {
	for _, version := range []Version{Version1, Version2} {
		head := sampleRequestHead()
		payload := EncodeRequestHead(version, ReqFull, head, 4)
		payload = append(payload, []byte("pong")...)

		gotVersion, frameType, rest, err := DecodeHead(payload)
		require.NoError(t, err)
		assert.Equal(t, version, gotVersion)
		assert.Equal(t, ReqFull, frameType)

		view, err := NewLazyRequestView(gotVersion, frameType, rest)
		require.NoError(t, err)

		assert.Equal(t, head.Method, view.Method())
		assert.Equal(t, head.Scheme, view.Scheme())
		assert.Equal(t, head.Authority, view.Authority())
		assert.Equal(t, head.Path, view.Path())
		assert.Equal(t, head.Query, view.Query())
		assert.Equal(t, head.Protocol, view.Protocol())
		assert.Equal(t, []byte("pong"), view.Body())

		got, err := view.Materialize()
		require.NoError(t, err)
		assert.ElementsMatch(t, head.Headers, got.Headers)
	}
}

func TestStaticTokenRoundTripForKnownName(t *testing.T) {
	head := RequestHead{
		Method: "GET", Scheme: "http", Authority: "h", Path: "/", Protocol: "HTTP/1.1",
		Headers: []HeaderField{{Name: "host", Value: "example.com"}},
	}
	payload := EncodeRequestHead(Version2, ReqStart, head, 0)

	// host is token 1 in the static table: after the 6 length-prefixed
	// fields (41 bytes here) and the header_count u32, we expect a u16
	// token of 1 followed by a literal value string, not a 0xFFFF sentinel.
	_, _, rest, err := DecodeHead(payload)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01}, rest[45:47])

	view, err := NewLazyRequestView(Version2, ReqStart, rest)
	require.NoError(t, err)
	v, ok := view.Header("Host")
	require.True(t, ok)
	assert.Equal(t, "example.com", v)
}

func TestStaticTokenLiteralForUnknownName(t *testing.T) {
	head := RequestHead{
		Method: "GET", Scheme: "http", Authority: "h", Path: "/", Protocol: "HTTP/1.1",
		Headers: []HeaderField{{Name: "x-totally-custom", Value: "v"}},
	}
	payload := EncodeRequestHead(Version2, ReqStart, head, 0)
	_, _, rest, err := DecodeHead(payload)
	require.NoError(t, err)

	view, err := NewLazyRequestView(Version2, ReqStart, rest)
	require.NoError(t, err)
	v, ok := view.Header("x-totally-custom")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestDecodeHeadRejectsBadVersion(t *testing.T) {
	_, _, _, err := DecodeHead([]byte{3, uint8(ReqFull)})
	require.ErrorIs(t, err, ErrBadVersion)
}

func TestDecodeHeadRejectsBadFrameType(t *testing.T) {
	_, _, _, err := DecodeHead([]byte{uint8(Version2), 99})
	require.ErrorIs(t, err, ErrBadFrameType)
}

func TestDecodeRejectsBadTokenIndex(t *testing.T) {
	b := newBuilder(16)
	b.u8(uint8(Version2))
	b.u8(uint8(ReqStart))
	b.str("GET")
	b.str("http")
	b.str("h")
	b.str("/")
	b.str("")
	b.str("HTTP/1.1")
	b.u32(1)     // header_count
	b.u16(9999)  // out-of-range token
	b.str("val") // value, never reached validly

	_, _, rest, err := DecodeHead(b.buf)
	require.NoError(t, err)
	_, err = NewLazyRequestView(Version2, ReqStart, rest)
	require.ErrorIs(t, err, ErrBadTokenIndex)
}

func TestHeaderEncodeSkipsInvalidUTF8Value(t *testing.T) {
	head := RequestHead{
		Method: "GET", Scheme: "http", Authority: "h", Path: "/", Protocol: "HTTP/1.1",
		Headers: []HeaderField{
			{Name: "good", Value: "fine"},
			{Name: "bad", Value: string([]byte{0xff, 0xfe})},
		},
	}
	payload := EncodeRequestHead(Version1, ReqStart, head, 0)
	_, _, rest, err := DecodeHead(payload)
	require.NoError(t, err)
	view, err := NewLazyRequestView(Version1, ReqStart, rest)
	require.NoError(t, err)
	headers, err := view.Headers()
	require.NoError(t, err)
	assert.Len(t, headers, 1)
	assert.Equal(t, "good", headers[0].Name)
}

func TestEmptyBodyVariants(t *testing.T) {
	head := sampleRequestHead()

	// REQ_FULL with zero-length body.
	full := EncodeRequestHead(Version2, ReqFull, head, 0)
	_, _, rest, err := DecodeHead(full)
	require.NoError(t, err)
	view, err := NewLazyRequestView(Version2, ReqFull, rest)
	require.NoError(t, err)
	assert.True(t, view.HasBody())
	assert.Empty(t, view.Body())

	// REQ_START has no body on the head frame at all.
	start := EncodeRequestHead(Version2, ReqStart, head, 0)
	_, _, rest, err = DecodeHead(start)
	require.NoError(t, err)
	view, err = NewLazyRequestView(Version2, ReqStart, rest)
	require.NoError(t, err)
	assert.False(t, view.HasBody())
}

func TestChunkRoundTripIncludingZeroLength(t *testing.T) {
	for _, chunk := range [][]byte{[]byte("abc"), {}} {
		prelude := EncodeChunk(Version2, ReqChunk, len(chunk))
		payload := append(prelude, chunk...)
		_, frameType, rest, err := DecodeHead(payload)
		require.NoError(t, err)
		assert.Equal(t, ReqChunk, frameType)
		got, err := DecodeChunk(rest)
		require.NoError(t, err)
		assert.Equal(t, chunk, got)
	}
}

func TestEndFrameRoundTrip(t *testing.T) {
	payload := EncodeEnd(Version2, ReqEnd)
	version, frameType, rest, err := DecodeHead(payload)
	require.NoError(t, err)
	assert.Equal(t, Version2, version)
	assert.Equal(t, ReqEnd, frameType)
	assert.Empty(t, rest)
}

func TestURIIsLazyAndCached(t *testing.T) {
	head := sampleRequestHead()
	head.Query = "a=1"
	payload := EncodeRequestHead(Version2, ReqStart, head, 0)
	_, _, rest, err := DecodeHead(payload)
	require.NoError(t, err)
	view, err := NewLazyRequestView(Version2, ReqStart, rest)
	require.NoError(t, err)
	assert.Equal(t, "/ping?a=1", view.URI())
	assert.Equal(t, "/ping?a=1", view.URI())
}

func TestPreEncodedResponseParts(t *testing.T) {
	pre := NewPreEncodedResponse(Version2, 200, []HeaderField{{Name: "content-type", Value: "text/plain"}}, []byte("pong"))
	prelude, body := pre.Parts()
	payload := append(append([]byte{}, prelude...), body...)

	version, frameType, rest, err := DecodeHead(payload)
	require.NoError(t, err)
	assert.Equal(t, Version2, version)
	assert.Equal(t, RespFull, frameType)

	view, err := NewLazyResponseView(version, frameType, rest)
	require.NoError(t, err)
	assert.EqualValues(t, 200, view.Status())
	assert.Equal(t, []byte("pong"), view.Body())
}
