// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package server is the entrypoint of the credential relay process.
package server

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"go.credrelay.dev/internal/config/relay"
	"go.credrelay.dev/internal/net/phttp"
	"go.credrelay.dev/internal/plog"
	"go.credrelay.dev/internal/pversion"
	"go.credrelay.dev/internal/relay/endpointsmanager"
)

const (
	// allow up to a minute grace period for active connections to return to idle
	shutdownGracePeriod = time.Minute
	readHeaderTimeout   = 10 * time.Second
)

func serve(ctx context.Context, l net.Listener, handler http.Handler) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		err := server.Serve(l)
		plog.Debug("server exited", "err", err)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		<-ctx.Done()
		plog.Debug("server context cancelled", "err", ctx.Err())

		connectionsCtx, connectionsCancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer connectionsCancel()

		if err := server.Shutdown(connectionsCtx); err != nil {
			plog.Debug("server shutdown failed", "err", err)
		}
		return nil
	})

	return group.Wait()
}

func signalCtx() context.Context {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer cancel()

		s := <-signalCh
		plog.Debug("saw signal", "signal", s)
	}()

	return ctx
}

func listen(e *relay.Endpoint) (net.Listener, error) {
	if e.Network == relay.NetworkUnix {
		_ = os.Remove(e.Address) // a socket left behind by a crashed process would fail the listen
	}

	l, err := net.Listen(e.Network, e.Address)
	if err != nil {
		return nil, fmt.Errorf("cannot create http listener with network %q and address %q: %w", e.Network, e.Address, err)
	}
	return l, nil
}

func backendRootCAs(path string) (*x509.CertPool, error) {
	if len(path) == 0 {
		return nil, nil // system roots
	}
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read backend CA bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("backend CA bundle %q contains no certificates", path)
	}
	return pool, nil
}

func runRelay(ctx context.Context, cfg *relay.Config) error {
	rootCAs, err := backendRootCAs(cfg.Backend.CABundlePath)
	if err != nil {
		return err
	}

	httpClient := phttp.New(pversion.UserAgent(cfg.Backend.UserAgent), rootCAs)
	manager := endpointsmanager.NewManager(cfg, httpClient, plog.New())

	l, err := listen(cfg.Endpoints.HTTP)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	plog.Info("relay http listener started", "address", l.Addr().String(), "backend", cfg.Backend.BaseURL)
	defer plog.Debug("relay exiting")

	return serve(ctx, l, manager.HandlerChain())
}

type versionInfo pversion.Info // hide .String() method from plog

func newCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "credential-relay",
		Short:        "credential-relay",
		Long:         "credential-relay sits between browsers and the backend API, turning cookies into backend credentials.",
		Args:         cobra.NoArgs,
		SilenceUsage: true, // do not print usage message when commands fail
		RunE: func(cmd *cobra.Command, _ []string) error {
			plog.Always("Running credential relay",
				"version", versionInfo(pversion.Get()),
				"arguments", os.Args,
			)

			cfg, err := relay.FromPath(configPath)
			if err != nil {
				return fmt.Errorf("could not load config: %w", err)
			}

			return runRelay(cmd.Context(), cfg)
		},
	}
	addFlags(cmd.Flags(), &configPath)
	_ = cmd.MarkFlagRequired("config")

	cmd.AddCommand(newVersionCommand())
	return cmd
}

func addFlags(fs *pflag.FlagSet, configPath *string) {
	fs.StringVar(configPath, "config", "", "path to the relay configuration file")
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%#v\n", versionInfo(pversion.Get()))
			return nil
		},
		Args:  cobra.NoArgs, // do not accept positional arguments for this command
		Use:   "version",
		Short: "Print the version of this credential relay",
	}
}

func main() error { // return an error instead of plog.Fatal to allow defer statements to run
	defer plog.Setup()()

	cmd := newCommand()
	cmd.SilenceErrors = true // plog.Fatal reports the error
	return cmd.ExecuteContext(signalCtx())
}

func Main() {
	if err := main(); err != nil {
		plog.Fatal(err)
	}
}
