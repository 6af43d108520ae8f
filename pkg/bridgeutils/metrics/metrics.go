// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package metrics exposes the bridge's Prometheus collectors over HTTP,
// the same exposition style pkg/kata-monitor uses for the wider runtime
// (gather from prometheus.DefaultGatherer, encode, serve) but scoped down
// to a plain promhttp.Handler since this module has no per-sandbox
// aggregation to do.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an http.Handler serving every collector registered
// against the default Prometheus registry, including package exchange's
// connection/exchange/tunnel gauges and counters.
func Handler() http.Handler {
	return promhttp.Handler()
}
