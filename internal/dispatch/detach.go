// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package dispatch

import "io"

// DetachedSocket is the duplex byte stream handed to a handler that asked
// to take over the underlying connection (WebSocket upgrade, CONNECT,
// H2C upgrade; spec.md §4.4, C4's tunnel mode). It is deliberately a
// plain struct of io.Reader/io.Writer/io.Closer rather than a net.Conn:
// package exchange is the only place that knows the pipe is built from
// net.Pipe, so this package can stay free of a net import.
type DetachedSocket struct {
	Reader io.Reader
	Writer io.Writer
	Closer io.Closer
}

// NewDetachedSocket wraps a reader/writer/closer triple as a
// DetachedSocket. Package exchange calls this with its own end of a
// net.Pipe() pair.
func NewDetachedSocket(r io.Reader, w io.Writer, c io.Closer) *DetachedSocket {
	return &DetachedSocket{Reader: r, Writer: w, Closer: c}
}

func (d *DetachedSocket) Read(p []byte) (int, error)  { return d.Reader.Read(p) }
func (d *DetachedSocket) Write(p []byte) (int, error) { return d.Writer.Write(p) }

// Close closes the socket. It is safe to call even if the handler never
// reads or writes to the detached socket at all.
func (d *DetachedSocket) Close() error {
	if d.Closer == nil {
		return nil
	}
	return d.Closer.Close()
}
