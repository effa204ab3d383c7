// Command routingd serves the operation routing registry over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"routingcore/internal/adapters/httpapi"
	"routingcore/internal/adapters/reports"
	"routingcore/internal/blob"
	"routingcore/internal/config"
	"routingcore/internal/core"
	"routingcore/internal/fixtures"
	"routingcore/internal/logging"
)

const shutdownTimeout = 10 * time.Second

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stderr))
}

func cli(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("routingd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var configPath string
	fs.StringVar(&configPath, "config", "", "path to an optional YAML config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "load config: %v\n", err)
		return 2
	}
	logger, err := cfg.LogConfig().New()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "init logger: %v\n", err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("routingd stopped", "error", err)
		return 1
	}
	return 0
}

// server bundles the wired handler with the resources it holds open.
type server struct {
	handler http.Handler
	service *core.Service
	closers []func() error
}

func (s *server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

func newServer(ctx context.Context, cfg *config.Config, logger *logging.Logger, reg *prometheus.Registry) (*server, error) {
	srv := &server{}
	store, err := core.OpenPersistentStore(cfg.StorageConfig(), core.NewDefaultRulesEngine())
	if err != nil {
		return nil, fmt.Errorf("open registry store: %w", err)
	}
	if c, ok := store.(io.Closer); ok {
		srv.closers = append(srv.closers, c.Close)
	}

	recorder, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		_ = srv.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	srv.service = core.NewService(store,
		core.WithLogger(logger.Named("registry")),
		core.WithMetricsRecorder(recorder),
	)

	if cfg.Seed && len(srv.service.List()) == 0 {
		seeded, res, err := srv.service.PutAll(ctx, fixtures.Operations(time.Now().UTC()))
		if err != nil {
			_ = srv.Close()
			return nil, fmt.Errorf("seed registry: %w", err)
		}
		logger.Info("registry seeded", "operations", len(seeded), "warnings", len(res.Warnings()))
	}

	archive, err := blob.Open(ctx, cfg.BlobConfig())
	if err != nil {
		_ = srv.Close()
		return nil, fmt.Errorf("open report archive: %w", err)
	}
	handler := httpapi.NewHandler(srv.service)
	handler.Reports = reports.NewExporter(srv.service, archive)
	handler.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	srv.handler = handler
	return srv, nil
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	srv, err := newServer(ctx, cfg, logger, reg)
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Warn("close registry store", "error", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("routingd listening", "addr", cfg.HTTP.Addr, "storage", cfg.Storage.Driver, "blob", cfg.Blob.Driver)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	logger.Info("routingd shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
