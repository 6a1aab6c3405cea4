package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"avl-gateway/internal/config"
	"avl-gateway/internal/dispatcher"
	"avl-gateway/internal/grpcclient"
	"avl-gateway/internal/influx"
	"avl-gateway/internal/link"
	"avl-gateway/internal/observability"
	"avl-gateway/internal/pipeline"
	"avl-gateway/internal/registry"
	"avl-gateway/internal/server"
	"avl-gateway/internal/store"
	"avl-gateway/internal/utilities"
)

func main() {
	configPath := flag.String("config", "", "optional config file (yaml, json or toml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "avl-gateway:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, logCloser, err := observability.NewLogger(observability.LogOptions{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)
	logger.Info("Starting avl-gateway...", "addr", cfg.ListenAddr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, err := store.NewSessions(ctx, store.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.SessionTTL,
	})
	if err != nil {
		return fmt.Errorf("redis init failed: %w", err)
	}
	defer sessions.Close()

	g, ctx := errgroup.WithContext(ctx)

	sinks := pipeline.NewFanout(logger)
	if cfg.InfluxEnabled() {
		w := influx.New(influx.Options{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		})
		defer w.Close()
		sinks.Add("influx", w)
	}
	if cfg.GRPCServer != "" {
		fwd, err := grpcclient.NewForwarder(cfg.GRPCServer, cfg.GRPCMethod)
		if err != nil {
			return fmt.Errorf("grpc forwarder: %w", err)
		}
		defer fwd.Close()
		sinks.AddAuxiliary("grpc", fwd)
	}
	if cfg.ProxyAddr != "" {
		proxy := link.New(cfg.ProxyAddr, logger)
		g.Go(func() error {
			proxy.Run(ctx)
			return nil
		})
		sinks.AddAuxiliary("proxy", proxy)
	}

	if !cfg.InfluxEnabled() {
		logger.Warn("no measurement store configured, logging measurements only")
		sinks.Add("log", pipeline.LogSink{Logger: logger})
	}

	disp := dispatcher.New(dispatcher.Options{
		Sessions:    sessions,
		Registry:    registry.New(cfg.RegistryURL, cfg.RegistryTimeout),
		Sink:        sinks,
		Logger:      logger,
		CallTimeout: cfg.CallTimeout,
		MaxInFlight: cfg.MaxInFlight,
	})

	frames := utilities.NewFrameLog(cfg.FrameLog, 100, 10)
	defer frames.Close()

	srv := server.New(server.Options{
		Handler:      disp,
		Logger:       logger,
		FrameLog:     frames,
		ReadBuffer:   cfg.ReadBuffer,
		IdleTimeout:  cfg.IdleTimeout,
		CloseTimeout: cfg.CloseTimeout,
	})

	g.Go(func() error {
		return observability.StartMetricsServer(ctx, cfg.MetricsAddr())
	})
	g.Go(func() error {
		return srv.ListenAndServe(ctx, cfg.ListenAddr())
	})

	err = g.Wait()
	logger.Info("avl-gateway stopped", "err", err)
	return err
}
