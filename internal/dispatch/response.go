// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package dispatch

import (
	"io"

	"github.com/kata-containers/kata-containers/src/runtime/bridge/internal/wire"
)

// Response is what a handler returns to the facade. Exactly one of
// PreEncoded or the (Status, Headers, Body) triple should be set: a
// handler serving a static asset or a cached error page can hand back a
// wire.PreEncodedResponse built once at boot (spec.md's pre-encoded
// response fast path), skipping per-request header encoding entirely.
type Response struct {
	// PreEncoded, if non-nil, is written verbatim; Status/Headers/Body
	// are ignored.
	PreEncoded *wire.PreEncodedResponse

	Status  uint16
	Headers []wire.HeaderField

	// Body is the response body stream. A nil Body means no body.
	Body io.Reader
	// BodyLen is the body length in bytes, when known in advance. A
	// handler streaming a body of unknown length (e.g. chunked from an
	// upstream) should set BodyLen to -1; package exchange then emits
	// RESP_START/RESP_CHUNK/RESP_END instead of RESP_FULL.
	BodyLen int

	// Detach requests a tunnel handoff once the response finishes
	// transmitting (a 101 Switching Protocols or 200 CONNECT response).
	// The handler obtains the DetachedSocket via Detach() on its request
	// object before or after returning this Response; package exchange
	// only starts relaying bytes once RESP_END/RESP_FULL has gone out.
	Detach bool
}

// NewResponse builds a Response carrying a body of known length.
func NewResponse(status uint16, headers []wire.HeaderField, body io.Reader, bodyLen int) Response {
	return Response{Status: status, Headers: headers, Body: body, BodyLen: bodyLen}
}

// NewStreamedResponse builds a Response whose body length is not known
// up front.
func NewStreamedResponse(status uint16, headers []wire.HeaderField, body io.Reader) Response {
	return Response{Status: status, Headers: headers, Body: body, BodyLen: -1}
}

// NewPreEncodedResponseResult wraps an already-encoded response, the fast
// path for static or cached content.
func NewPreEncodedResponseResult(pre *wire.PreEncodedResponse) Response {
	return Response{PreEncoded: pre}
}
