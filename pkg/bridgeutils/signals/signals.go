// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package signals adapts pkg/signals/signals.go's Die/Backtrace helpers
// and adds the bridge's graceful-shutdown policy (spec.md §5): stop the
// accept loop, wait for in-flight connections to drain, and give up
// waiting with an error once a deadline passes. Shutdown itself neither
// closes the remaining connections nor exits the process.
package signals

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

var signalLog = logrus.WithField("default-signal-logger", true)

// CrashOnError causes a coredump to be produced when Die is invoked,
// instead of a plain os.Exit.
var CrashOnError = false

// DieCb runs as the first step of Die, e.g. to flush logs or metrics.
type DieCb func()

// SetLogger overrides the package logger.
func SetLogger(logger *logrus.Entry) {
	signalLog = logger
}

// HandlePanic recovers a panic, logs it, and calls Die.
func HandlePanic(dieCb DieCb) {
	if r := recover(); r != nil {
		signalLog.WithField("panic", fmt.Sprintf("%v", r)).Error("fatal error")
		Die(dieCb)
	}
}

// Backtrace writes a multi-line stack dump to the logger.
func Backtrace() {
	buf := &bytes.Buffer{}
	for _, p := range pprof.Profiles() {
		_ = pprof.Lookup(p.Name()).WriteTo(buf, 2)
	}
	for _, line := range strings.Split(buf.String(), "\n") {
		signalLog.Error(line)
	}
}

// Die runs dieCb, logs a backtrace, and terminates the process.
func Die(dieCb DieCb) {
	if dieCb != nil {
		dieCb()
	}
	Backtrace()
	if CrashOnError {
		panic("signals: CrashOnError set")
	}
	os.Exit(1)
}

// Drainer is whatever the embedder passes to Shutdown to stop accepting
// new bridge connections and wait for in-flight ones to finish; Shutdown
// aggregates the errors its two methods return.
type Drainer interface {
	// StopAccepting closes the bridge listener so no new connections
	// arrive.
	StopAccepting() error
	// Wait blocks until every connection this drainer is tracking has
	// returned from Run, or ctx is done.
	Wait(ctx context.Context) error
}

// Shutdown stops accepting new bridge connections and waits up to
// timeout for in-flight connections to drain (spec.md §5's 5s deadline).
// If draining does not finish in time, it returns an error wrapping the
// deadline error instead of blocking indefinitely; connections still
// running are left as they are, and the caller decides whether to exit
// or escalate to Die.
func Shutdown(ctx context.Context, d Drainer, timeout time.Duration) error {
	var result *multierror.Error

	if err := d.StopAccepting(); err != nil {
		result = multierror.Append(result, fmt.Errorf("stop accepting: %w", err))
	}

	drainCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	waitErr := d.Wait(drainCtx)
	if waitErr != nil {
		result = multierror.Append(result, fmt.Errorf("drain: %w", waitErr))
	}

	if result != nil {
		return result.ErrorOrNil()
	}
	return nil
}
