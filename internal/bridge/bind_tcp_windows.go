// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

//go:build windows

package bridge

import (
	"fmt"
	"net"
)

// bindLoopbackTCP binds a loopback TCP listener. Shared/V6Only/Backlog
// are not applied on this platform: golang.org/x/sys/unix is unix-only,
// and there is no cross-platform standard-library hook for SO_REUSEPORT
// or the listen(2) backlog, so all three are best-effort no-ops here.
func bindLoopbackTCP(opts BindOptions) (net.Listener, error) {
	host := opts.Host
	if host == "" {
		host = "127.0.0.1"
	}
	if opts.V6Only && opts.Host == "" {
		host = "::1"
	}
	return net.Listen("tcp", fmt.Sprintf("%s:%d", host, opts.Port))
}
