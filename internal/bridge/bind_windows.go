// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

//go:build windows

package bridge

import (
	"errors"
	"net"
)

// ErrUnixUnsupported is returned by bindUnixSocket on platforms without
// AF_UNIX support, forcing Bind to fall back to loopback TCP.
var ErrUnixUnsupported = errors.New("bridge: AF_UNIX binding not supported on this platform")

func bindUnixSocket(opts BindOptions) (net.Listener, string, error) {
	return nil, "", ErrUnixUnsupported
}
