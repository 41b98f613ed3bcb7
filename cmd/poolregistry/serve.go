package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Swind/go-pool-registry/core"
	"github.com/Swind/go-pool-registry/internal/api"
	promexporter "github.com/Swind/go-pool-registry/observability/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Create the configured pools and serve the HTTP API",

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overrides server.addr",
			},
			&cli.BoolFlag{
				Name:  "access-log",
				Usage: "Log every HTTP request",
			},
		},

		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if addr := c.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	logger := cfg.Logger()

	var extra []core.RegistryOption
	var gatherer prom.Gatherer
	var poller *promexporter.SnapshotPoller
	promReg := prom.NewRegistry()

	if cfg.Metrics.Enabled {
		promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		exporter, err := promexporter.NewMetricsExporter(cfg.Metrics.Namespace, promReg, promexporter.ExporterOptions{})
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to register metrics: %v", err), 1)
		}
		extra = append(extra, core.WithMetrics(exporter))
		gatherer = promReg
	}

	registry := core.NewRegistry(cfg.RegistryOptions(extra...)...)
	if err := cfg.Apply(registry); err != nil {
		registry.Close(context.Background())
		return cli.Exit(fmt.Sprintf("Failed to create pools: %v", err), 1)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		poller, err = promexporter.NewSnapshotPoller(cfg.Metrics.Namespace, promReg, registry, cfg.Metrics.PollInterval)
		if err != nil {
			registry.Close(context.Background())
			return cli.Exit(fmt.Sprintf("Failed to register snapshot gauges: %v", err), 1)
		}
		poller.Start(ctx)
		defer poller.Stop()
	}

	server := api.NewServer(registry, api.Options{
		CORSOrigins:    cfg.Server.CORSOrigins,
		Gatherer:       gatherer,
		RequestLogging: c.Bool("access-log"),
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", core.F("addr", cfg.Server.Addr), core.F("pools", len(cfg.Pools)))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", core.F("timeout", cfg.Server.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(httpServer.Shutdown(shutdownCtx), registry.Close(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		return cli.Exit(fmt.Sprintf("Server stopped: %v", err), 1)
	}
	return nil
}
