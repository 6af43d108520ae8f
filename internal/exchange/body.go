// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package exchange

import (
	"io"

	"github.com/kata-containers/kata-containers/src/runtime/bridge/internal/frame"
	"github.com/kata-containers/kata-containers/src/runtime/bridge/internal/wire"
)

// pumpRequestBody reads REQ_CHUNK/REQ_END frames off r and writes the
// chunk bytes into pw, enforcing maxBodySize and the interleaving
// discipline. It owns r for the duration of the streaming exchange: the
// caller must not read from r concurrently until pumpRequestBody returns.
//
// Backpressure falls out of io.Pipe for free: Write blocks until the
// handler's Read drains it, so pumpRequestBody (and therefore the next
// call to r.ReadFrame, and therefore the socket read) stalls whenever the
// handler is not consuming, which is exactly the "one chunk ahead" bound
// spec.md §4.4 asks for.
func pumpRequestBody(r *frame.Reader, pw *io.PipeWriter, maxBodySize int) error {
	var total int
	var overflow bool

	for {
		payload, err := r.ReadFrame()
		if err != nil {
			pw.CloseWithError(err)
			return err
		}

		version, frameType, rest, err := wire.DecodeHead(payload)
		_ = version
		if err != nil {
			pw.CloseWithError(err)
			return err
		}

		switch frameType {
		case wire.ReqChunk:
			chunk, err := wire.DecodeChunk(rest)
			if err != nil {
				pw.CloseWithError(err)
				return err
			}
			if overflow {
				continue
			}
			total += len(chunk)
			if total > maxBodySize {
				// Keep consuming (and discarding) this body up to its
				// REQ_END so the connection is back on an exchange
				// boundary when the next head frame is read.
				pw.CloseWithError(ErrBodyTooLarge)
				overflow = true
				continue
			}
			if len(chunk) > 0 {
				if _, err := pw.Write(chunk); err != nil {
					// The only writer-side error is the handler having
					// closed its read end early (e.g. after detaching);
					// that is not a connection-fatal condition.
					return nil
				}
			}
		case wire.ReqEnd:
			if overflow {
				return ErrBodyTooLarge
			}
			pw.Close()
			return nil
		default:
			pw.CloseWithError(ErrUnexpectedFrame)
			return ErrUnexpectedFrame
		}
	}
}

// drainPipe unblocks any in-flight or future pumpRequestBody writes once
// a handler has returned without reading its body to completion (spec.md
// §8 scenario 3: an early response must not deadlock on leftover
// REQ_CHUNK frames).
func drainPipe(pr *io.PipeReader) {
	go func() {
		_, _ = io.Copy(io.Discard, pr)
	}()
}
