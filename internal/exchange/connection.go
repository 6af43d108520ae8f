// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package exchange implements the per-connection state machine (spec.md
// §4.4, C4): it sequences at most one in-flight HTTP exchange per bridge
// connection, drives the streaming body and tunnel phases, and enforces
// the interleaving discipline and size ceilings the wire protocol
// requires.
package exchange

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/kata-containers/kata-containers/src/runtime/bridge/internal/dispatch"
	"github.com/kata-containers/kata-containers/src/runtime/bridge/internal/frame"
	"github.com/kata-containers/kata-containers/src/runtime/bridge/internal/wire"
)

// DefaultMaxBodySize is spec.md §3's 32 MiB per-exchange, per-direction
// body ceiling.
const DefaultMaxBodySize = 32 * 1024 * 1024

var exchangeLog = logrus.WithField("subsystem", "exchange")

// SetLogger overrides the package logger, mirroring bridge.SetLogger.
func SetLogger(logger *logrus.Entry) {
	exchangeLog = logger
}

var tracer = otel.Tracer("github.com/kata-containers/kata-containers/src/runtime/bridge")

// Connection drives a single accepted bridge socket end to end: reading
// head frames in IDLE, running one exchange at a time, and handing off
// to the TUNNEL forwarders if a handler detaches. Per spec.md §5, all
// per-connection state here is single-owner; there is no locking on the
// hot path.
type Connection struct {
	id     string
	conn   net.Conn
	reader *frame.Reader
	writer *frame.Writer

	facade        *dispatch.Facade
	encodeVersion wire.Version
	maxBodySize   int

	log *logrus.Entry
}

// NewConnection wraps an accepted net.Conn. encodeVersion is this
// connection's outbound encoder target (spec.md §4.2: an encoder is
// configured with a target version at boot; the decoder accepts either
// version on any inbound frame regardless of what this side emits).
func NewConnection(conn net.Conn, facade *dispatch.Facade, encodeVersion wire.Version, maxFrameSize uint32, maxBodySize int) *Connection {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	id := uuid.NewString()
	return &Connection{
		id:            id,
		conn:          conn,
		reader:        frame.NewReader(conn, maxFrameSize),
		writer:        frame.NewWriter(conn),
		facade:        facade,
		encodeVersion: encodeVersion,
		maxBodySize:   maxBodySize,
		log:           exchangeLog.WithField("conn", id),
	}
}

// ID returns this connection's correlation id.
func (c *Connection) ID() string { return c.id }

// Run drives the connection until EOF, a fatal framing error, or tunnel
// close, closing the underlying socket before returning. It returns nil
// on a clean peer-initiated close.
func (c *Connection) Run(ctx context.Context) error {
	activeConnections.Inc()
	defer activeConnections.Dec()
	defer c.conn.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		payload, err := c.reader.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			c.log.WithError(err).Debug("bridge connection: frame read failed")
			return err
		}

		version, frameType, rest, err := wire.DecodeHead(payload)
		if err != nil {
			c.log.WithError(err).Debug("bridge connection: frame decode failed")
			return err
		}

		var detachConn net.Conn
		switch frameType {
		case wire.ReqFull:
			detachConn, err = c.handleUnary(ctx, version, rest)
		case wire.ReqStart:
			detachConn, err = c.handleStreaming(ctx, version, rest)
		default:
			c.log.WithField("frame_type", frameType).Debug("bridge connection: unexpected frame type in IDLE")
			err = ErrUnexpectedFrame
		}
		if err != nil {
			exchangeErrors.WithLabelValues("fatal").Inc()
			return err
		}

		if detachConn != nil {
			activeTunnels.Inc()
			tunnelErr := c.runTunnel(detachConn)
			activeTunnels.Dec()
			if tunnelErr != nil && !errors.Is(tunnelErr, io.EOF) {
				c.log.WithError(tunnelErr).Debug("bridge connection: tunnel ended with error")
			}
			return nil
		}
	}
}

// handleUnary processes a REQ_FULL exchange end to end. A non-nil error
// is always fatal to the connection; recoverable handler/body errors are
// absorbed into a synthetic response and reported as a nil error so the
// caller loops back to IDLE.
func (c *Connection) handleUnary(ctx context.Context, version wire.Version, rest []byte) (net.Conn, error) {
	ctx, span := tracer.Start(ctx, "bridge.exchange")
	defer span.End()
	activeExchanges.Inc()
	defer activeExchanges.Dec()

	view, err := wire.NewLazyRequestView(version, wire.ReqFull, rest)
	if err != nil {
		c.log.WithError(err).Debug("bridge connection: malformed request head")
		_ = c.writeSynthetic(400, "invalid bridge request: malformed request head")
		return nil, err
	}

	if view.HasBody() && len(view.Body()) > c.maxBodySize {
		if werr := c.writeSynthetic(400, "invalid bridge request: body too large"); werr != nil {
			return nil, fmt.Errorf("%w: %v", ErrResponseWriteFailed, werr)
		}
		return nil, nil
	}

	det := &connDetacher{}
	rc := &dispatch.RequestContext{
		ConnID:   c.id,
		Version:  version,
		View:     view,
		Body:     bytes.NewReader(view.Body()),
		Detacher: det,
	}

	resp, dispatchErr := c.facade.Dispatch(ctx, rc)
	return c.finishExchange(resp, dispatchErr, det)
}

// handleStreaming processes a REQ_START exchange: the request head is
// decoded, a streaming body pump is started on its own goroutine, and the
// handler runs concurrently against the pipe-backed body reader.
func (c *Connection) handleStreaming(ctx context.Context, version wire.Version, rest []byte) (net.Conn, error) {
	ctx, span := tracer.Start(ctx, "bridge.exchange")
	defer span.End()
	activeExchanges.Inc()
	defer activeExchanges.Dec()

	// rest aliases the frame reader's shared scratch buffer, which the
	// body-pump goroutine will overwrite on its very next ReadFrame call
	// while the handler may still be reading view fields concurrently on
	// this goroutine. Copy it once, up front, so the view owns stable
	// backing memory for the life of the exchange.
	owned := append([]byte(nil), rest...)

	view, err := wire.NewLazyRequestView(version, wire.ReqStart, owned)
	if err != nil {
		c.log.WithError(err).Debug("bridge connection: malformed streaming request head")
		_ = c.writeSynthetic(400, "invalid bridge request: malformed request head")
		return nil, err
	}

	pr, pw := io.Pipe()
	bodyDone := make(chan error, 1)
	go func() {
		bodyDone <- pumpRequestBody(c.reader, pw, c.maxBodySize)
	}()

	det := &connDetacher{}
	rc := &dispatch.RequestContext{
		ConnID:   c.id,
		Version:  version,
		View:     view,
		Body:     pr,
		Detacher: det,
	}

	resp, dispatchErr := c.facade.Dispatch(ctx, rc)

	// The handler may return before the request body finishes arriving
	// (spec.md §8 scenario 3: an early response). Drain whatever the body
	// pump still has queued so its next Write does not block forever.
	drainPipe(pr)

	detachConn, finishErr := c.finishExchange(resp, dispatchErr, det)

	bodyErr := <-bodyDone
	if finishErr != nil {
		return nil, finishErr
	}
	// ErrBodyTooLarge is not connection-fatal on its own: it only reaches
	// bodyDone after already being surfaced to the handler via its Body()
	// reader, and finishExchange has (or the handler has) already turned
	// that into a response. Anything else from the body pump (a bad
	// frame, interleaving violation, or transport error) is fatal.
	if bodyErr != nil && !errors.Is(bodyErr, io.EOF) && !errors.Is(bodyErr, ErrBodyTooLarge) {
		return nil, bodyErr
	}
	return detachConn, nil
}

// finishExchange encodes and writes resp (or a synthetic error response
// in dispatchErr's place), returning the connection's end of a detached
// tunnel pipe if the handler requested one.
func (c *Connection) finishExchange(resp dispatch.Response, dispatchErr error, det *connDetacher) (net.Conn, error) {
	if dispatchErr != nil {
		if errors.Is(dispatchErr, ErrBodyTooLarge) {
			exchangeErrors.WithLabelValues("body_too_large").Inc()
			if werr := c.writeSynthetic(400, "invalid bridge request: body too large"); werr != nil {
				return nil, fmt.Errorf("%w: %v", ErrResponseWriteFailed, werr)
			}
			return nil, nil
		}
		exchangeErrors.WithLabelValues("handler").Inc()
		c.log.WithError(dispatchErr).Debug("bridge connection: handler returned an error")
		if werr := c.writeSynthetic(500, dispatchErr.Error()); werr != nil {
			return nil, fmt.Errorf("%w: %v", ErrResponseWriteFailed, werr)
		}
		return nil, nil
	}

	// A known-length body over the ceiling is caught before anything is
	// written to the wire, so it is recoverable the same way an oversize
	// inbound body is: a synthetic error response, exchange over, loop
	// back to IDLE. Once RESP_START has gone out for an unknown-length
	// body there is no way back into protocol, so an overflow discovered
	// mid-stream (inside writeResponse's running counter) falls through
	// to the fatal path below instead.
	if resp.PreEncoded == nil && resp.Body != nil && resp.BodyLen > c.maxBodySize {
		exchangeErrors.WithLabelValues("response_body_too_large").Inc()
		if werr := c.writeSynthetic(500, "bridge handler produced a response body exceeding the size ceiling"); werr != nil {
			return nil, fmt.Errorf("%w: %v", ErrResponseWriteFailed, werr)
		}
		return nil, nil
	}

	if err := c.writeResponse(resp); err != nil {
		exchangeErrors.WithLabelValues("write").Inc()
		return nil, fmt.Errorf("%w: %v", ErrResponseWriteFailed, err)
	}

	if resp.Detach {
		if local, ok := det.detached(); ok {
			return local, nil
		}
	}
	return nil, nil
}

// writeSynthetic emits a plain-text RESP_FULL, the shape every synthetic
// error response in spec.md §7 takes. Synthetic responses, like every
// other outbound frame, use the connection's boot-configured encoder
// target (spec.md §4.2), not whatever version the triggering request
// happened to arrive in.
func (c *Connection) writeSynthetic(status uint16, msg string) error {
	body := []byte(msg)
	head := wire.ResponseHead{
		Status:  status,
		Headers: []wire.HeaderField{{Name: "content-type", Value: "text/plain; charset=utf-8"}},
	}
	prelude := wire.EncodeResponseHead(c.encodeVersion, wire.RespFull, head, len(body))
	return c.writer.WriteFrameParts(prelude, body)
}

// writeResponse encodes a handler-produced Response as either a single
// RESP_FULL frame or a RESP_START/RESP_CHUNK*/RESP_END sequence,
// depending on whether BodyLen is known up front. Every frame is encoded
// at c.encodeVersion: a connection may decode v1 requests while always
// emitting v2 responses, per spec.md §4.2's implicit per-frame
// negotiation (a single connection can carry mixed versions in opposite
// directions).
func (c *Connection) writeResponse(resp dispatch.Response) error {
	if resp.PreEncoded != nil {
		prelude, body := resp.PreEncoded.Parts()
		return c.writer.WriteFrameParts(prelude, body)
	}

	head := wire.ResponseHead{Status: resp.Status, Headers: resp.Headers}

	if resp.Body == nil || resp.BodyLen == 0 {
		prelude := wire.EncodeResponseHead(c.encodeVersion, wire.RespFull, head, 0)
		return c.writer.WriteFrame(prelude)
	}

	if resp.BodyLen > 0 {
		// finishExchange rejects a known-length body over the ceiling
		// before calling writeResponse at all, while nothing has gone out
		// on the wire yet; this call only ever sees a BodyLen already
		// validated against c.maxBodySize.
		prelude := wire.EncodeResponseHead(c.encodeVersion, wire.RespFull, head, resp.BodyLen)
		return c.writer.WriteFrameStream(prelude, resp.BodyLen, resp.Body)
	}

	// Unknown length: stream as RESP_START/RESP_CHUNK*/RESP_END, counting
	// bytes as they go since BodyLen gives no ceiling to check up front
	// (spec.md §3/§4.4's 32 MiB ceiling applies to outbound bodies just
	// as it does to inbound ones).
	startPrelude := wire.EncodeResponseHead(c.encodeVersion, wire.RespStart, head, 0)
	if err := c.writer.WriteFrame(startPrelude); err != nil {
		return err
	}

	buf := make([]byte, 32*1024)
	var total int
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			total += n
			if total > c.maxBodySize {
				return fmt.Errorf("%w: response body exceeds %d byte ceiling", ErrBodyTooLarge, c.maxBodySize)
			}
			chunkPrelude := wire.EncodeChunk(c.encodeVersion, wire.RespChunk, n)
			if err := c.writer.WriteFrameParts(chunkPrelude, buf[:n]); err != nil {
				return err
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return rerr
		}
	}

	return c.writer.WriteFrame(wire.EncodeEnd(c.encodeVersion, wire.RespEnd))
}
