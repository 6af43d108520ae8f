// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

//go:build !windows

package bridge

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// defaultBacklog is applied when BindOptions.Backlog is unset (0),
// matching bridgeconfig's own default for [bridge.listen].backlog.
const defaultBacklog = 128

// bindLoopbackTCP binds a loopback TCP listener honouring Shared
// (SO_REUSEADDR/SO_REUSEPORT), V6Only (IPV6_V6ONLY) and Backlog. Go's
// net.ListenConfig has a Control hook for pre-bind socket options but no
// knob for the listen(2) backlog itself (the standard library always
// listens with a fixed, platform-computed value), so honouring Backlog
// means building the socket by hand: socket/bind/listen via
// golang.org/x/sys/unix, then handing the fd to net.FileListener the way
// the vendored vsock listener (github.com/mdlayher/vsock) builds its own
// net.Listener around a raw fd.
func bindLoopbackTCP(opts BindOptions) (net.Listener, error) {
	domain := unix.AF_INET
	host := opts.Host
	if host == "" {
		host = "127.0.0.1"
	}
	if opts.V6Only {
		domain = unix.AF_INET6
		if opts.Host == "" {
			host = "::1"
		}
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("bridge: socket: %w", err)
	}
	// A failure past this point must close fd itself; once it's handed to
	// os.NewFile below, the returned *os.File owns it instead.
	closeFD := true
	defer func() {
		if closeFD {
			_ = unix.Close(fd)
		}
	}()

	if opts.Shared {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			return nil, fmt.Errorf("bridge: SO_REUSEADDR: %w", err)
		}
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			return nil, fmt.Errorf("bridge: SO_REUSEPORT: %w", err)
		}
	}
	if opts.V6Only {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1); err != nil {
			return nil, fmt.Errorf("bridge: IPV6_V6ONLY: %w", err)
		}
	}

	sa, err := sockaddr(domain, host, opts.Port)
	if err != nil {
		return nil, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		return nil, fmt.Errorf("bridge: bind: %w", err)
	}

	backlog := opts.Backlog
	if backlog <= 0 {
		backlog = defaultBacklog
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return nil, fmt.Errorf("bridge: listen: %w", err)
	}

	f := os.NewFile(uintptr(fd), "bridge-tcp-listener")
	closeFD = false
	l, err := net.FileListener(f)
	// net.FileListener dup()s the fd internally; f (and the original fd)
	// must be closed regardless of outcome once it returns.
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("bridge: FileListener: %w", err)
	}
	return l, nil
}

func sockaddr(domain int, host string, port uint16) (unix.Sockaddr, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("bridge: invalid loopback host %q", host)
	}
	if domain == unix.AF_INET6 {
		var addr [16]byte
		copy(addr[:], ip.To16())
		return &unix.SockaddrInet6{Port: int(port), Addr: addr}, nil
	}
	var addr [4]byte
	copy(addr[:], ip.To4())
	return &unix.SockaddrInet4{Port: int(port), Addr: addr}, nil
}
