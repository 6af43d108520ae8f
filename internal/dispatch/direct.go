// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package dispatch

import (
	"io"

	"github.com/kata-containers/kata-containers/src/runtime/bridge/internal/wire"
)

// DirectRequest is the borrowed, lazily-decoded view of a request handed
// to a direct-mode handler. Every accessor reads straight through to the
// underlying wire.LazyRequestView: no field is copied or allocated until
// the handler actually asks for it, and a handler that never touches the
// body never causes its bytes to be copied into heap memory.
type DirectRequest struct {
	rc *RequestContext
}

func (r *DirectRequest) Method() string    { return r.rc.View.Method() }
func (r *DirectRequest) Scheme() string    { return r.rc.View.Scheme() }
func (r *DirectRequest) Authority() string { return r.rc.View.Authority() }
func (r *DirectRequest) Path() string      { return r.rc.View.Path() }
func (r *DirectRequest) Query() string     { return r.rc.View.Query() }
func (r *DirectRequest) Protocol() string  { return r.rc.View.Protocol() }
func (r *DirectRequest) URI() string       { return r.rc.View.URI() }

// Header performs an ASCII-case-insensitive lookup without materialising
// the rest of the header list.
func (r *DirectRequest) Header(name string) (string, bool) {
	return r.rc.View.Header(name)
}

// Headers materialises the full (name, value) list; prefer Header for a
// single lookup.
func (r *DirectRequest) Headers() ([]wire.HeaderField, error) {
	return r.rc.View.Headers()
}

// Body returns the request body as a stream. For a REQ_FULL exchange
// this already has all bytes available; for a REQ_START exchange, reads
// block until the connection's state machine has delivered the next
// REQ_CHUNK, transparently propagating backpressure to the front-end.
func (r *DirectRequest) Body() io.Reader { return r.rc.Body }

// Detach switches the bridge connection into tunnel mode once the
// handler's response is emitted with Response.Detach set. It may be
// called at any point during handling; the returned socket only starts
// carrying bytes once the state machine finishes the RESP_END transition.
func (r *DirectRequest) Detach() *DetachedSocket { return r.rc.Detacher.Detach() }

// ConnID returns the owning bridge connection's correlation id, for
// handler-side logging.
func (r *DirectRequest) ConnID() string { return r.rc.ConnID }
