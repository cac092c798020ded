package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"ledgerdesk/internal/cache"
	"ledgerdesk/internal/cli"
	apphttp "ledgerdesk/internal/http"
	"ledgerdesk/internal/log"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	res := cli.MustOpenBackend(context.Background(), logger, cfg)

	caches := cache.NewManager()
	caches.Register(res.Service.StatsCache())
	caches.StartCleanup(time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, res.Service, logger.WithComponent(log.ComponentHTTP),
		apphttp.WithReadiness(res.Ping))

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting ledgerdesk server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
