package main

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"edgeproof/adapters/api"
	"edgeproof/adapters/cache"
	"edgeproof/adapters/postgres"
	"edgeproof/internal"
	internalapi "edgeproof/internal/api"
	"edgeproof/internal/config"
	"edgeproof/internal/metrics"
	"edgeproof/internal/validation"
	"edgeproof/ports"
)

func main() {
	logger := internal.NewDefaultLogger().With("server")
	if err := run(logger); err != nil {
		logger.Error("server stopped: %v", err)
		os.Exit(1)
	}
}

func run(logger *internal.Logger) error {
	appConfig, err := config.Load()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewRecorder(registry)
	if err != nil {
		return err
	}

	hub := internalapi.NewHub(0)
	defer hub.Close()

	orchOpts := []validation.Option{
		validation.WithMetrics(recorder),
		validation.WithProgress(hub),
	}
	resultCache, closeCache, err := cache.Open(ctx, appConfig.Cache)
	if err != nil {
		logger.Warn("cache %s unavailable, running without: %v", appConfig.Cache.Backend, err)
	} else if resultCache != nil {
		orchOpts = append(orchOpts, validation.WithCache(resultCache, appConfig.Cache.TTL))
		logger.Info("reality check cache: %s", appConfig.Cache.Backend)
	}
	defer closeCache()

	serverOpts := []api.Option{
		api.WithMetrics(registry),
		api.WithEvents(internalapi.NewRouter(hub)),
	}
	if appConfig.Database.Enabled() {
		db, err := postgres.Open(ctx, appConfig.Database.URL, appConfig.Database.MaxOpenConns, appConfig.Database.MaxIdleConns)
		if err != nil {
			return err
		}
		defer db.Close()
		var repo ports.ResultRepository = postgres.NewResultRepository(db)
		serverOpts = append(serverOpts, api.WithRepository(repo))
		logger.Info("result store: postgres")
	} else {
		logger.Warn("DATABASE_URL not set, records are not persisted")
	}

	if appConfig.Server.PprofPort != "" {
		go func() {
			logger.Info("pprof listening on :%s", appConfig.Server.PprofPort)
			if err := http.ListenAndServe(":"+appConfig.Server.PprofPort, nil); err != nil {
				logger.Warn("pprof server: %v", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:        ":" + appConfig.Server.Port,
		Handler:     api.NewServer(validation.NewOrchestrator(orchOpts...), serverOpts...),
		ReadTimeout: appConfig.Server.ReadTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
