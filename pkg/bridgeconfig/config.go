// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package bridgeconfig loads the bridge's TOML configuration file
// (SPEC_FULL.md §6), following pkg/katautils/config.go's
// struct-of-tables/toml.Decode pattern. Size fields accept human units
// ("64MiB") parsed with github.com/docker/go-units, the same library
// virtcontainers/kata_agent.go uses for hugepage sizes.
package bridgeconfig

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	units "github.com/docker/go-units"
)

// Config is the resolved, typed configuration for a bridge instance,
// assembled from tomlConfig by Load.
type Config struct {
	ProtocolVersion int

	Listen ListenConfig
	TLS    TLSConfig
	Limits LimitsConfig
}

// ListenConfig corresponds to the [bridge.listen] table.
type ListenConfig struct {
	Host    string
	Port    uint16
	Backlog int
	V6Only  bool
	Shared  bool
}

// TLSConfig corresponds to the [bridge.tls] table. The bridge transport
// itself never terminates TLS (spec.md §1 treats that as an external
// collaborator); these fields exist purely to be handed to the
// embedding front-end, matching the options table in spec.md §6.
type TLSConfig struct {
	CertPath                 string
	KeyPath                  string
	CertPassword             string
	EnableHTTP3              bool
	RequestClientCertificate bool
}

// LimitsConfig corresponds to the [bridge.limits] table, resolved from
// human-readable sizes ("64MiB") to byte counts.
type LimitsConfig struct {
	MaxFrameSize int64
	MaxBodySize  int64
}

// tomlConfig mirrors katautils's tomlConfig: an unexported struct-of-
// tables matching the file layout exactly, decoded once and then
// resolved (size-string parsing, defaults) into the public Config.
type tomlConfig struct {
	Bridge struct {
		ProtocolVersion int `toml:"protocol_version"`

		Listen struct {
			Host    string `toml:"host"`
			Port    uint16 `toml:"port"`
			Backlog int    `toml:"backlog"`
			V6Only  bool   `toml:"v6_only"`
			Shared  bool   `toml:"shared"`
		} `toml:"listen"`

		TLS struct {
			CertPath                 string `toml:"cert_path"`
			KeyPath                  string `toml:"key_path"`
			CertPassword             string `toml:"cert_password"`
			EnableHTTP3              bool   `toml:"enable_http3"`
			RequestClientCertificate bool   `toml:"request_client_certificate"`
		} `toml:"tls"`

		Limits struct {
			MaxFrameSize string `toml:"max_frame_size"`
			MaxBodySize  string `toml:"max_body_size"`
		} `toml:"limits"`
	} `toml:"bridge"`
}

// Defaults matching spec.md §3/§4.4's wire-contract ceilings, used when a
// limits field is left empty in the TOML file.
const (
	DefaultMaxFrameSize = "64MiB"
	DefaultMaxBodySize  = "32MiB"
)

// Load reads and decodes the TOML file at path into a resolved Config.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("bridgeconfig: read %s: %w", path, err)
	}
	return Decode(string(data))
}

// Decode parses TOML text directly, for callers that already have the
// file contents (or are building a config in a test without a file).
func Decode(data string) (Config, error) {
	var raw tomlConfig
	if _, err := toml.Decode(data, &raw); err != nil {
		return Config{}, fmt.Errorf("bridgeconfig: decode: %w", err)
	}
	return resolve(raw)
}

func resolve(raw tomlConfig) (Config, error) {
	maxFrameSizeStr := raw.Bridge.Limits.MaxFrameSize
	if maxFrameSizeStr == "" {
		maxFrameSizeStr = DefaultMaxFrameSize
	}
	maxFrameSize, err := units.RAMInBytes(maxFrameSizeStr)
	if err != nil {
		return Config{}, fmt.Errorf("bridgeconfig: max_frame_size: %w", err)
	}

	maxBodySizeStr := raw.Bridge.Limits.MaxBodySize
	if maxBodySizeStr == "" {
		maxBodySizeStr = DefaultMaxBodySize
	}
	maxBodySize, err := units.RAMInBytes(maxBodySizeStr)
	if err != nil {
		return Config{}, fmt.Errorf("bridgeconfig: max_body_size: %w", err)
	}

	protocolVersion := raw.Bridge.ProtocolVersion
	if protocolVersion == 0 {
		protocolVersion = 2
	}
	if protocolVersion != 1 && protocolVersion != 2 {
		return Config{}, fmt.Errorf("bridgeconfig: protocol_version must be 1 or 2, got %d", protocolVersion)
	}

	backlog := raw.Bridge.Listen.Backlog
	if backlog == 0 {
		backlog = 128
	}

	return Config{
		ProtocolVersion: protocolVersion,
		Listen: ListenConfig{
			Host:    raw.Bridge.Listen.Host,
			Port:    raw.Bridge.Listen.Port,
			Backlog: backlog,
			V6Only:  raw.Bridge.Listen.V6Only,
			Shared:  raw.Bridge.Listen.Shared,
		},
		TLS: TLSConfig{
			CertPath:                 raw.Bridge.TLS.CertPath,
			KeyPath:                  raw.Bridge.TLS.KeyPath,
			CertPassword:             raw.Bridge.TLS.CertPassword,
			EnableHTTP3:              raw.Bridge.TLS.EnableHTTP3,
			RequestClientCertificate: raw.Bridge.TLS.RequestClientCertificate,
		},
		Limits: LimitsConfig{
			MaxFrameSize: maxFrameSize,
			MaxBodySize:  maxBodySize,
		},
	}, nil
}
