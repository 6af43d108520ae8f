// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package exchange

import (
	"net"
	"sync"

	"github.com/kata-containers/kata-containers/src/runtime/bridge/internal/dispatch"
	"github.com/kata-containers/kata-containers/src/runtime/bridge/internal/wire"
)

// connDetacher implements dispatch.Detacher. It builds a net.Pipe() pair
// the first time a handler calls Detach: one end is handed to the
// handler, the other stays with the connection for the TUNNEL-state
// forwarders (spec.md §9's "single ownership in the tunnel forwarder
// pair").
type connDetacher struct {
	once  sync.Once
	local net.Conn
	sock  *dispatch.DetachedSocket
}

func (d *connDetacher) Detach() *dispatch.DetachedSocket {
	d.once.Do(func() {
		local, remote := net.Pipe()
		d.local = local
		d.sock = dispatch.NewDetachedSocket(remote, remote, remote)
	})
	return d.sock
}

// detached reports whether a handler actually called Detach during this
// exchange, and returns the connection's own end of the pipe if so.
func (d *connDetacher) detached() (net.Conn, bool) {
	return d.local, d.local != nil
}

// runTunnel relays opaque bytes between the bridge connection and local
// (the connection's end of the handler's detached socket) until either
// side sends TUN_CLOSE, per spec.md §4.4's TUNNEL state.
func (c *Connection) runTunnel(local net.Conn) error {
	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() { _ = local.Close() })
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.forwardSocketToBridge(local, stop)
	}()

	err := c.forwardBridgeToSocket(local, stop)
	<-done
	return err
}

// forwardSocketToBridge reads bytes the handler wrote to its end of the
// detached socket and relays them as TUN_CHUNK frames; on EOF/error it
// emits TUN_CLOSE and stops.
func (c *Connection) forwardSocketToBridge(local net.Conn, stop func()) {
	buf := make([]byte, 32*1024)
	for {
		n, err := local.Read(buf)
		if n > 0 {
			prelude := wire.EncodeChunk(c.encodeVersion, wire.TunChunk, n)
			if werr := c.writer.WriteFrameParts(prelude, buf[:n]); werr != nil {
				stop()
				return
			}
			tunnelBytesWritten.Add(float64(n))
		}
		if err != nil {
			_ = c.writer.WriteFrame(wire.EncodeEnd(c.encodeVersion, wire.TunClose))
			stop()
			return
		}
	}
}

// forwardBridgeToSocket reads TUN_CHUNK/TUN_CLOSE frames off the bridge
// connection and writes the chunk bytes to local.
func (c *Connection) forwardBridgeToSocket(local net.Conn, stop func()) error {
	defer stop()

	for {
		payload, err := c.reader.ReadFrame()
		if err != nil {
			return err
		}

		_, frameType, rest, err := wire.DecodeHead(payload)
		if err != nil {
			return err
		}

		switch frameType {
		case wire.TunChunk:
			chunk, err := wire.DecodeChunk(rest)
			if err != nil {
				return err
			}
			if len(chunk) > 0 {
				if _, err := local.Write(chunk); err != nil {
					return nil
				}
				tunnelBytesRead.Add(float64(len(chunk)))
			}
		case wire.TunClose:
			return nil
		default:
			return ErrUnexpectedFrame
		}
	}
}
