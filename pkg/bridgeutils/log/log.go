// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package log centralises the bridge's logrus setup, following the same
// "one overridable package-level entry per subsystem" pattern as
// pkg/katautils/logger.go: each internal package keeps its own default
// *logrus.Entry and exposes a SetLogger to let an embedder redirect it.
package log

import (
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultLevel matches katautils: logrus's own default (Info) is noisier
// than this module wants out of the box.
const DefaultLevel = logrus.WarnLevel

// New builds a root *logrus.Entry for the bridge, tagged with source
// "bridge" and formatted as structured text with RFC3339Nano timestamps.
func New(level logrus.Level) *logrus.Entry {
	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339Nano})
	return l.WithField("source", "bridge")
}

// WithSubsystem derives a per-component entry from root, the same
// "source"/"subsystem" field convention used across this module's
// packages that log (bridge, frame, exchange, signals).
func WithSubsystem(root *logrus.Entry, subsystem string) *logrus.Entry {
	return root.WithField("subsystem", subsystem)
}
