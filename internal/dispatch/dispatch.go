// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package dispatch implements the handler dispatch facade (spec.md
// §4.5, C5): it exposes a decoded request to a handler either as a
// materialised framework-style object or as a lazy, borrowed direct
// view, collects whatever response the handler produces, and hands it
// back to package exchange for encoding.
package dispatch

import (
	"context"
	"errors"
	"io"

	"github.com/kata-containers/kata-containers/src/runtime/bridge/internal/wire"
)

// ErrNoHandler is returned by Dispatch when a Facade was constructed
// without a handler for the mode it was asked to use.
var ErrNoHandler = errors.New("dispatch: facade has no handler configured for this mode")

// Detacher is implemented by package exchange's per-connection state so
// a handler can switch the bridge connection into tunnel mode. It is an
// interface, not a concrete net.Conn, so this package never has to
// import net or know how the tunnel pipe is built.
type Detacher interface {
	Detach() *DetachedSocket
}

// RequestContext carries everything the facade needs to build either
// request presentation for a single exchange. It is constructed once per
// exchange by package exchange.
type RequestContext struct {
	ConnID   string
	Version  wire.Version
	View     *wire.LazyRequestView
	Body     io.Reader
	Detacher Detacher
}

// DirectHandlerFunc is a direct-mode handler: it receives a borrowed,
// lazily-decoded view of the request and returns a Response.
type DirectHandlerFunc func(ctx context.Context, req *DirectRequest) (Response, error)

// FrameworkHandlerFunc is a framework-mode handler: it receives a
// materialised request object with parsed URL and lazily materialised
// headers/cookies.
type FrameworkHandlerFunc func(ctx context.Context, req *FrameworkRequest) (Response, error)

// Facade dispatches a decoded request to exactly one configured handler
// mode. Framework mode and direct mode are alternative boot-time
// configurations (spec.md §4.5), not a per-request choice.
type Facade struct {
	direct    DirectHandlerFunc
	framework FrameworkHandlerFunc
}

// NewDirectFacade configures a Facade in direct/lazy-borrowed mode.
func NewDirectFacade(h DirectHandlerFunc) *Facade {
	return &Facade{direct: h}
}

// NewFrameworkFacade configures a Facade in framework/materialised mode.
func NewFrameworkFacade(h FrameworkHandlerFunc) *Facade {
	return &Facade{framework: h}
}

// Dispatch invokes the configured handler for rc and returns its
// Response.
func (f *Facade) Dispatch(ctx context.Context, rc *RequestContext) (Response, error) {
	switch {
	case f.direct != nil:
		return f.direct(ctx, &DirectRequest{rc: rc})
	case f.framework != nil:
		return f.framework(ctx, newFrameworkRequest(rc))
	default:
		return Response{}, ErrNoHandler
	}
}
