// Command serve runs the artifact catalog HTTP server with a Prometheus
// metrics listener.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/auslabs/abslake/pkg/dataset"
	"github.com/auslabs/abslake/pkg/logger"
	"github.com/auslabs/abslake/pkg/metrics"
	"github.com/auslabs/abslake/pkg/server"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultDataDir         = "./data"
	defaultListenAddr      = "0.0.0.0:8080"
	defaultMetricsAddr     = "0.0.0.0:0"
	defaultRefreshInterval = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	dataDirFlag := flag.String("data-dir", defaultDataDir, "data directory root (or set ABSLAKE_DATA_DIR env var)")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "HTTP server listen address")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics")
	refreshIntervalFlag := flag.Duration("refresh-interval", defaultRefreshInterval, "catalog refresh interval")
	corsOriginsFlag := flag.String("cors-origins", "", "comma-separated allowed CORS origins (default: any)")
	flag.Parse()

	// Load .env file. godotenv does not override existing env vars, so
	// process env and explicit exports take precedence.
	_ = godotenv.Load()

	if envDataDir := os.Getenv("ABSLAKE_DATA_DIR"); envDataDir != "" {
		*dataDirFlag = envDataDir
	}

	log := logger.New(*verboseFlag)
	log.Info("serve: starting", "version", version, "commit", commit, "data_dir", *dataDirFlag)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := <-sigCh
		log.Info("serve: received signal", "signal", sig.String())
		cancel()
	}()

	metricsServerErrCh := make(chan error, 1)
	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("serve: failed to start prometheus metrics listener", "error", err)
				metricsServerErrCh <- err
				return
			}
			log.Info("serve: prometheus metrics server listening", "address", listener.Addr().String())
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, mux); err != nil {
				log.Error("serve: prometheus metrics server failed", "error", err)
				metricsServerErrCh <- err
			}
		}()
	}

	store, err := dataset.NewStore(dataset.StoreConfig{
		Logger:  log,
		DataDir: *dataDirFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	var corsOrigins []string
	if *corsOriginsFlag != "" {
		corsOrigins = strings.Split(*corsOriginsFlag, ",")
	}

	srv, err := server.New(server.Config{
		Logger:          log,
		Store:           store,
		Version:         version,
		RefreshInterval: *refreshIntervalFlag,
		CORSOrigins:     corsOrigins,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	refreshErrCh := make(chan error, 1)
	go func() {
		if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			refreshErrCh <- err
		}
	}()

	httpServer := &http.Server{
		Addr:    *listenAddrFlag,
		Handler: srv.Handler(),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		log.Info("serve: http server listening", "address", *listenAddrFlag)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("serve: shutting down", "reason", ctx.Err())
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("serve: shutdown failed", "error", err)
		}
		return nil
	case err := <-serverErrCh:
		log.Error("serve: http server error causing shutdown", "error", err)
		return err
	case err := <-refreshErrCh:
		log.Error("serve: catalog refresh error causing shutdown", "error", err)
		return err
	case err := <-metricsServerErrCh:
		log.Error("serve: metrics server error causing shutdown", "error", err)
		return err
	}
}
