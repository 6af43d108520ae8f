// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package bridgeconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[bridge]
protocol_version = 2

[bridge.listen]
host = "127.0.0.1"
port = 0
backlog = 128
v6_only = false
shared = false

[bridge.tls]
cert_path = ""
key_path = ""
cert_password = ""
enable_http3 = false
request_client_certificate = false

[bridge.limits]
max_frame_size = "64MiB"
max_body_size = "32MiB"
`

func TestDecodeFullConfig(t *testing.T) {
	cfg, err := Decode(sampleConfig)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.ProtocolVersion)
	assert.Equal(t, "127.0.0.1", cfg.Listen.Host)
	assert.Equal(t, 128, cfg.Listen.Backlog)
	assert.EqualValues(t, 64*1024*1024, cfg.Limits.MaxFrameSize)
	assert.EqualValues(t, 32*1024*1024, cfg.Limits.MaxBodySize)
}

func TestDecodeAppliesDefaults(t *testing.T) {
	cfg, err := Decode(`[bridge]`)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.ProtocolVersion)
	assert.Equal(t, 128, cfg.Listen.Backlog)
	assert.EqualValues(t, 64*1024*1024, cfg.Limits.MaxFrameSize)
	assert.EqualValues(t, 32*1024*1024, cfg.Limits.MaxBodySize)
}

func TestDecodeRejectsBadProtocolVersion(t *testing.T) {
	_, err := Decode("[bridge]\nprotocol_version = 3\n")
	assert.Error(t, err)
}

func TestDecodeRejectsBadSize(t *testing.T) {
	_, err := Decode("[bridge.limits]\nmax_frame_size = \"not-a-size\"\n")
	assert.Error(t, err)
}
