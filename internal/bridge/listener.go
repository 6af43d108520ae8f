// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package bridge

import (
	"net"
	"os"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var bridgeLog = logrus.WithField("subsystem", "bridge")

// SetLogger overrides the package logger, mirroring
// pkg/katautils.SetLogger's role for the wider runtime.
func SetLogger(logger *logrus.Entry) {
	bridgeLog = logger
}

// Listener accepts bridge connections from the front-end. It imposes no
// connection limit of its own; that policy lives in the embedder
// (spec.md §4.3).
type Listener struct {
	net.Listener
	endpoint Endpoint
	path     string // non-empty only for KindUnix
	closed   atomic.Bool
}

// Bind binds the bridge endpoint: AF_UNIX at a per-process path on
// POSIX platforms, falling back to loopback TCP with an OS-chosen port
// on bind failure (permissions, missing support) or on platforms without
// AF_UNIX support.
func Bind(opts BindOptions) (*Listener, error) {
	if l, path, err := bindUnixSocket(opts); err == nil {
		bridgeLog.WithField("path", path).Info("bound bridge endpoint on AF_UNIX")
		return &Listener{
			Listener: l,
			endpoint: Endpoint{Kind: KindUnix, Path: path},
			path:     path,
		}, nil
	} else {
		bridgeLog.WithError(err).Warn("AF_UNIX bind failed or unsupported, falling back to loopback TCP")
	}

	l, err := bindLoopbackTCP(opts)
	if err != nil {
		return nil, err
	}

	addr := l.Addr().(*net.TCPAddr)
	bridgeLog.WithField("addr", addr.String()).Info("bound bridge endpoint on loopback TCP")
	return &Listener{
		Listener: l,
		endpoint: Endpoint{Kind: KindTCP, Host: addr.IP.String(), Port: uint16(addr.Port)},
	}, nil
}

// Endpoint returns the out-of-band start-up parameter to publish to the
// front-end.
func (l *Listener) Endpoint() Endpoint { return l.endpoint }

// Accept wraps net.Listener.Accept, setting TCP_NODELAY on TCP
// connections (AF_UNIX connections have no Nagle-equivalent to disable).
func (l *Listener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
	return conn, nil
}

// Close closes the listener and, for a UNIX-bound endpoint, deletes the
// socket file if present.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := l.Listener.Close()
	if l.path != "" {
		if rmErr := os.Remove(l.path); rmErr != nil && !os.IsNotExist(rmErr) {
			bridgeLog.WithError(rmErr).Warn("failed to remove bridge socket file on close")
		}
	}
	return err
}
