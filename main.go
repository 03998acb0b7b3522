/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
/*
	hematite, an append-only event-store for CloudEvents streams

*/
package main

import "context"
import "crypto/rsa"
import "fmt"
import "net/http"
import "os"
import "os/signal"
import "syscall"
import "time"

import "github.com/dc0d/onexit"
import "github.com/prometheus/client_golang/prometheus"
import "github.com/prometheus/client_golang/prometheus/promhttp"
import "github.com/spf13/cobra"

import "github.com/cantido/hematite/auth"
import "github.com/cantido/hematite/config"
import "github.com/cantido/hematite/httpapi"
import "github.com/cantido/hematite/streammgr"
import "github.com/cantido/hematite/telemetry"

func main() {
	root := &cobra.Command{
		Use:   "hematite",
		Short: "hematite is an append-only event-store for CloudEvents streams",
	}
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the hematite HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("hematite: %w", err)
	}

	if err := os.MkdirAll(cfg.StreamsDir, 0750); err != nil {
		return fmt.Errorf("hematite: creating streams dir: %w", err)
	}

	logger := telemetry.NewLogger(cfg.LogLevel)
	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)

	tracer, shutdownTracer, err := telemetry.InitTracer(context.Background(), cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("hematite: %w", err)
	}

	mgr := streammgr.New(cfg.StreamsDir, cfg.MaxOpenStreams, cfg.EvictWait, metrics)
	onexit.Register(func() { logger.Info().Msg("shutting down") })

	verifier, err := newVerifier(cfg)
	if err != nil {
		return fmt.Errorf("hematite: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/", httpapi.New(mgr, verifier, auth.IdentityOnly{}, metrics, logger, tracer))

	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("listen", cfg.Listen).Msg("serving")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("hematite: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	mgr.CloseAll()
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracer shutdown failed")
	}

	return nil
}

// newVerifier builds the configured auth.Verifier: HMAC if a secret was
// supplied, RSA with live key-rotation watching otherwise.
func newVerifier(cfg config.Config) (*auth.Verifier, error) {
	if cfg.JWTSecret != nil {
		return auth.NewHMACVerifier(cfg.JWTSecret, cfg.JWTAudience), nil
	}

	pub, err := config.ParseRSAPublicKeyFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, err
	}
	verifier := auth.NewRSAVerifier(pub, cfg.JWTAudience)

	stop, err := config.WatchPublicKey(cfg.JWTPublicKeyPath, func(pub *rsa.PublicKey) error {
		verifier.SetPublicKey(pub)
		return nil
	})
	if err != nil {
		return nil, err
	}
	onexit.Register(stop)

	return verifier, nil
}
