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
	"path/filepath"

	"golang.org/x/sys/unix"
)

// bindUnixSocket binds an AF_UNIX stream socket at a per-process path
// under dir (os.TempDir() if empty), honouring opts.Backlog the same way
// bindLoopbackTCP does: built from a raw socket via golang.org/x/sys/unix
// so listen(2)'s backlog argument is actually opts.Backlog instead of
// whatever net.ListenUnix hardcodes. Any stale socket file left behind by
// a prior, uncleanly terminated process at the same path is removed
// first, since a leftover file (rather than a live listener) would
// otherwise make the bind fail with "address already in use".
func bindUnixSocket(opts BindOptions) (net.Listener, string, error) {
	dir := opts.UnixSocketDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("kata-bridge-%d.sock", os.Getpid()))

	if err := removeStaleSocket(path); err != nil {
		return nil, "", err
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, "", fmt.Errorf("bridge: socket: %w", err)
	}
	closeFD := true
	defer func() {
		if closeFD {
			_ = unix.Close(fd)
		}
	}()

	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		return nil, "", fmt.Errorf("bridge: bind: %w", err)
	}

	backlog := opts.Backlog
	if backlog <= 0 {
		backlog = defaultBacklog
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return nil, "", fmt.Errorf("bridge: listen: %w", err)
	}

	f := os.NewFile(uintptr(fd), "bridge-unix-listener")
	closeFD = false
	l, err := net.FileListener(f)
	_ = f.Close()
	if err != nil {
		return nil, "", fmt.Errorf("bridge: FileListener: %w", err)
	}
	return l, path, nil
}

func removeStaleSocket(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("bridge: refusing to remove non-socket file at %s", path)
	}
	return os.Remove(path)
}
