// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package bridge

import (
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindUnixSocketAndDial(t *testing.T) {
	l, err := Bind(BindOptions{UnixSocketDir: t.TempDir()})
	require.NoError(t, err)
	defer l.Close()

	ep := l.Endpoint()
	assert.Equal(t, KindUnix, ep.Kind)
	require.NotEmpty(t, ep.Path)

	conn, err := net.Dial("unix", ep.Path)
	require.NoError(t, err)
	defer conn.Close()

	accepted, err := l.Accept()
	require.NoError(t, err)
	defer accepted.Close()
}

func TestBindLoopbackTCPFallback(t *testing.T) {
	l, err := bindLoopbackTCP(BindOptions{Port: 0})
	require.NoError(t, err)
	defer l.Close()

	addr, ok := l.Addr().(*net.TCPAddr)
	require.True(t, ok)
	assert.NotZero(t, addr.Port)
}

func TestBindLoopbackTCPHonoursBacklog(t *testing.T) {
	l, err := bindLoopbackTCP(BindOptions{Port: 0, Backlog: 4})
	require.NoError(t, err)
	defer l.Close()

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	accepted, err := l.Accept()
	require.NoError(t, err)
	defer accepted.Close()
}

func TestBindUnixSocketHonoursBacklog(t *testing.T) {
	l, _, err := bindUnixSocket(BindOptions{UnixSocketDir: t.TempDir(), Backlog: 4})
	require.NoError(t, err)
	defer l.Close()
}

func TestCloseRemovesSocketFile(t *testing.T) {
	dir := t.TempDir()
	l, err := Bind(BindOptions{UnixSocketDir: dir})
	require.NoError(t, err)
	path := l.Endpoint().Path
	require.NoError(t, l.Close())

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
