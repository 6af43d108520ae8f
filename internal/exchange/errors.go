// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package exchange

import "errors"

// ErrBodyTooLarge is surfaced to a handler's request body reader once the
// cumulative decoded body for the current exchange exceeds maxBodySize
// (spec.md §3's 32 MiB ceiling). A handler that propagates this error
// unwrapped from its Body() read causes the exchange to emit a synthetic
// 400 instead of the generic 500 used for other handler errors. The same
// error is also wrapped when a streamed (unknown-length) response body
// passes the ceiling mid-stream.
var ErrBodyTooLarge = errors.New("exchange: body exceeds size ceiling")

// ErrUnexpectedFrame is returned when a frame arrives out of the
// interleaving discipline spec.md §4.4 requires (e.g. a REQ_CHUNK after
// REQ_END, or anything other than REQ_CHUNK/REQ_END while a streaming
// request body is in flight). It is always fatal to the connection.
var ErrUnexpectedFrame = errors.New("exchange: frame violates interleaving discipline")

// ErrResponseWriteFailed marks a failure while writing a response frame
// (a handler response or a synthetic error response) to the bridge
// connection. Part of the response may already be on the wire, so the
// exchange cannot be recovered in-protocol (spec.md §4.4/§7) and the
// connection is closed rather than retried.
var ErrResponseWriteFailed = errors.New("exchange: response write failed")
