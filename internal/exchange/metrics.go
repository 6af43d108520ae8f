// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package exchange

import "github.com/prometheus/client_golang/prometheus"

// These mirror the style of pkg/kata-monitor's Prometheus exposition:
// package-level collectors registered once at init, read by whatever
// embeds /metrics.
var (
	activeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "kata_bridge",
		Name:      "active_connections",
		Help:      "Number of bridge connections currently open.",
	})

	activeExchanges = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "kata_bridge",
		Name:      "active_exchanges",
		Help:      "Number of request/response exchanges currently in flight.",
	})

	activeTunnels = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "kata_bridge",
		Name:      "active_tunnels",
		Help:      "Number of detached-socket tunnels currently open.",
	})

	tunnelBytesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kata_bridge",
		Name:      "tunnel_bytes_read_total",
		Help:      "Bytes relayed from the bridge connection into a detached socket.",
	})

	tunnelBytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kata_bridge",
		Name:      "tunnel_bytes_written_total",
		Help:      "Bytes relayed from a detached socket onto the bridge connection.",
	})

	exchangeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kata_bridge",
		Name:      "exchange_errors_total",
		Help:      "Exchange-ending errors by kind.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(
		activeConnections,
		activeExchanges,
		activeTunnels,
		tunnelBytesRead,
		tunnelBytesWritten,
		exchangeErrors,
	)
}
