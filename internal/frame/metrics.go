// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package frame

import "github.com/prometheus/client_golang/prometheus"

// These mirror the style of pkg/kata-monitor's Prometheus exposition,
// the same package-level-collectors-registered-at-init convention
// internal/exchange/metrics.go uses one layer up.
var (
	framesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kata_bridge",
		Name:      "frames_read_total",
		Help:      "Frames successfully read off a bridge connection.",
	})

	framesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kata_bridge",
		Name:      "frames_written_total",
		Help:      "Frames successfully written to a bridge connection.",
	})

	bytesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kata_bridge",
		Name:      "frame_bytes_read_total",
		Help:      "Payload bytes read off a bridge connection, excluding length prefixes.",
	})

	bytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kata_bridge",
		Name:      "frame_bytes_written_total",
		Help:      "Payload bytes written to a bridge connection, excluding length prefixes.",
	})

	frameErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kata_bridge",
		Name:      "frame_errors_total",
		Help:      "Frame read/write errors by kind.",
	}, []string{"op", "kind"})
)

func init() {
	prometheus.MustRegister(framesRead, framesWritten, bytesRead, bytesWritten, frameErrors)
}
