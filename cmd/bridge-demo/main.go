// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Command bridge-demo is a small ops/demo entry point for the bridge
// transport. The boot configuration options of SPEC_FULL.md §6 are read
// from the TOML file named by --config; of them only the listen host has
// its own CLI flag. Flags are assembled the way cli/main.go assembles
// kata-runtime's global flags with github.com/urfave/cli (v1).
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/kata-containers/kata-containers/src/runtime/bridge/internal/bridge"
	"github.com/kata-containers/kata-containers/src/runtime/bridge/internal/dispatch"
	"github.com/kata-containers/kata-containers/src/runtime/bridge/internal/exchange"
	"github.com/kata-containers/kata-containers/src/runtime/bridge/internal/frame"
	"github.com/kata-containers/kata-containers/src/runtime/bridge/internal/wire"
	"github.com/kata-containers/kata-containers/src/runtime/bridge/pkg/bridgeconfig"
	bridgelog "github.com/kata-containers/kata-containers/src/runtime/bridge/pkg/bridgeutils/log"
	"github.com/kata-containers/kata-containers/src/runtime/bridge/pkg/bridgeutils/metrics"
	"github.com/kata-containers/kata-containers/src/runtime/bridge/pkg/bridgeutils/signals"
)

const name = "bridge-demo"

var bridgeLog *logrus.Entry

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "config",
		Usage: "bridge TOML config file path (see SPEC_FULL.md §6); built-in defaults used if omitted",
	},
	cli.StringFlag{
		Name:  "host",
		Value: "127.0.0.1",
		Usage: "loopback TCP fallback listen host (ignored when the AF_UNIX bind succeeds)",
	},
	cli.StringFlag{
		Name:  "log-level",
		Value: "warn",
		Usage: "logrus level (trace/debug/info/warn/error/fatal/panic)",
	},
	cli.StringFlag{
		Name:  "metrics-address",
		Value: "127.0.0.1:9102",
		Usage: "address to serve Prometheus /metrics on",
	},
}

func main() {
	app := cli.NewApp()
	app.Name = name
	app.Usage = "demo front-end driving the in-process bridge transport"
	app.Flags = globalFlags
	app.Action = runServe

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(c *cli.Context) error {
	level, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		level = logrus.WarnLevel
	}
	root := bridgelog.New(level)
	bridgeLog = bridgelog.WithSubsystem(root, "bridge-demo")

	bridge.SetLogger(bridgelog.WithSubsystem(root, "bridge"))
	exchange.SetLogger(bridgelog.WithSubsystem(root, "exchange"))
	frame.SetLogger(bridgelog.WithSubsystem(root, "frame"))
	signals.SetLogger(bridgelog.WithSubsystem(root, "signals"))

	cfg := bridgeconfig.Config{
		ProtocolVersion: 2,
		Listen: bridgeconfig.ListenConfig{
			Host:    c.String("host"),
			Backlog: 128,
		},
		Limits: bridgeconfig.LimitsConfig{
			MaxFrameSize: 64 * 1024 * 1024,
			MaxBodySize:  32 * 1024 * 1024,
		},
	}
	if path := c.String("config"); path != "" {
		loaded, err := bridgeconfig.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	encodeVersion := wire.Version2
	if cfg.ProtocolVersion == 1 {
		encodeVersion = wire.Version1
	}

	listener, err := bridge.Bind(bridge.BindOptions{
		Host:    cfg.Listen.Host,
		Port:    cfg.Listen.Port,
		Backlog: cfg.Listen.Backlog,
		V6Only:  cfg.Listen.V6Only,
		Shared:  cfg.Listen.Shared,
	})
	if err != nil {
		return fmt.Errorf("bind bridge endpoint: %w", err)
	}
	bridgeLog.WithField("endpoint", listener.Endpoint()).Info("bridge endpoint bound")

	facade := dispatch.NewDirectFacade(demoHandler)

	ctx, cancel := context.WithCancel(context.Background())
	srv := newServer(listener, facade, encodeVersion, int(cfg.Limits.MaxFrameSize), int(cfg.Limits.MaxBodySize))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		srv.acceptLoop(ctx)
	}()

	metricsSrv := &http.Server{Addr: c.String("metrics-address"), Handler: metrics.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			bridgeLog.WithError(err).Warn("metrics server stopped")
		}
	}()

	sigCh := make(chan os.Signal, 8)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	bridgeLog.Info("shutdown signal received, draining connections")

	cancel()
	shutdownErr := signals.Shutdown(context.Background(), srv, 5*time.Second)
	_ = metricsSrv.Close()
	wg.Wait()

	if shutdownErr != nil {
		bridgeLog.WithError(shutdownErr).Warn("drain did not complete cleanly")
	}
	return nil
}

// server tracks accepted connections so Shutdown can drain them,
// implementing signals.Drainer.
type server struct {
	listener      *bridge.Listener
	facade        *dispatch.Facade
	encodeVersion wire.Version
	maxFrameSize  int
	maxBodySize   int

	wg sync.WaitGroup
}

func newServer(l *bridge.Listener, facade *dispatch.Facade, encodeVersion wire.Version, maxFrameSize, maxBodySize int) *server {
	return &server{listener: l, facade: facade, encodeVersion: encodeVersion, maxFrameSize: maxFrameSize, maxBodySize: maxBodySize}
}

func (s *server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			bridgeLog.WithError(err).Debug("accept failed")
			return
		}

		s.wg.Add(1)
		go func(conn net.Conn) {
			defer s.wg.Done()
			c := exchange.NewConnection(conn, s.facade, s.encodeVersion, uint32(s.maxFrameSize), s.maxBodySize)
			if err := c.Run(ctx); err != nil {
				bridgeLog.WithError(err).WithField("conn", c.ID()).Debug("bridge connection ended")
			}
		}(conn)
	}
}

// StopAccepting implements signals.Drainer.
func (s *server) StopAccepting() error {
	return s.listener.Close()
}

// Wait implements signals.Drainer.
func (s *server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// demoHandler answers GET /ping with "pong" and echoes everything else
// back as its own body, purely to exercise the dispatch facade end to
// end; a real embedder supplies its own handler.
func demoHandler(ctx context.Context, req *dispatch.DirectRequest) (dispatch.Response, error) {
	if req.Method() == "GET" && req.Path() == "/ping" {
		body := []byte("pong")
		return dispatch.NewResponse(200, []wire.HeaderField{{Name: "content-type", Value: "text/plain"}}, byteSliceReader(body), len(body)), nil
	}

	headers, err := req.Headers()
	if err != nil {
		return dispatch.Response{}, err
	}
	return dispatch.NewResponse(200, headers, req.Body(), -1), nil
}

type byteSliceReaderType struct {
	b []byte
	i int
}

func (r *byteSliceReaderType) Read(p []byte) (int, error) {
	if r.i >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.i:])
	r.i += n
	return n, nil
}

func byteSliceReader(b []byte) *byteSliceReaderType {
	return &byteSliceReaderType{b: b}
}
