// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package frame

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	payloads := [][]byte{
		[]byte(""),
		[]byte("small"),
		bytes.Repeat([]byte{0xAB}, coalesceThreshold+1),
		bytes.Repeat([]byte{0xCD}, 5000),
	}

	for _, p := range payloads {
		require.NoError(t, w.WriteFrame(p))
	}

	r := NewReader(&buf, MaxFrameLength)
	for _, want := range payloads {
		got, err := r.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := r.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderChunkingInvariance(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	want := [][]byte{[]byte("one"), []byte("two-longer-payload"), {}, []byte("three")}
	for _, p := range want {
		require.NoError(t, w.WriteFrame(p))
	}
	full := buf.Bytes()

	// Any split of the well-formed byte sequence into arbitrarily sized
	// chunks must still recover the same frames, since bufio.Reader
	// handles partial reads transparently.
	for _, chunkSize := range []int{1, 2, 3, 7, 64, 4096} {
		cr := &chunkedReader{data: full, chunkSize: chunkSize}
		r := NewReader(cr, MaxFrameLength)
		for _, expect := range want {
			got, err := r.ReadFrame()
			require.NoError(t, err)
			assert.Equal(t, expect, got)
		}
		_, err := r.ReadFrame()
		assert.ErrorIs(t, err, io.EOF)
	}
}

func TestReaderOversizeFrame(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteFrame(make([]byte, 10)))

	r := NewReader(&buf, 5)
	_, err := r.ReadFrame()
	var oversize *OversizeError
	require.ErrorAs(t, err, &oversize)
	assert.Equal(t, uint32(10), oversize.Length)
}

func TestReaderTruncatedMidFrame(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteFrame([]byte("hello")))

	truncated := buf.Bytes()[:len(buf.Bytes())-2]
	r := NewReader(bytes.NewReader(truncated), MaxFrameLength)
	_, err := r.ReadFrame()
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestWriterFrameExactlyAtMax(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteFrame(make([]byte, MaxFrameLength)))

	over := w.WriteFrame(make([]byte, MaxFrameLength+1))
	var oversize *OversizeError
	assert.ErrorAs(t, over, &oversize)
}

func TestWriterFrameStream(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	body := []byte("streamed-body-bytes")
	require.NoError(t, w.WriteFrameStream([]byte("PRE"), len(body), bytes.NewReader(body)))

	r := NewReader(&buf, MaxFrameLength)
	got, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, append([]byte("PRE"), body...), got)
}

// chunkedReader serves data in fixed-size reads, simulating a socket that
// delivers arbitrary byte splits.
type chunkedReader struct {
	data      []byte
	chunkSize int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.chunkSize
	if n > len(p) {
		n = len(p)
	}
	if n > len(c.data) {
		n = len(c.data)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}
