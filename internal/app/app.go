// Package app assembles the web application: configuration, logging,
// metrics, the HTTP router and the websocket progress hub.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"donorcli/internal/config"
	"donorcli/internal/infrastructure"
	custommw "donorcli/internal/middleware"
	"donorcli/internal/services"
	handlers "donorcli/internal/transport/http"
	ws "donorcli/internal/websocket"
)

// Version is set at build time.
var Version = "dev"

// Application is the web application container.
type Application struct {
	cfg    *config.Config
	paths  *config.Paths
	logger *slog.Logger
	otel   *infrastructure.OTelProviders
	hub    *ws.Hub
	server *http.Server
}

// New builds the application from loaded configuration.
func New(cfg *config.Config, paths *config.Paths, logger *slog.Logger) (*Application, error) {
	otelProviders, err := infrastructure.InitializeOTel(nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	app := &Application{
		cfg:    cfg,
		paths:  paths,
		logger: logger,
		otel:   otelProviders,
		hub:    ws.NewHub(logger),
	}

	app.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return app, nil
}

// Hub exposes the progress hub for components that publish updates.
func (a *Application) Hub() *ws.Hub {
	return a.hub
}

// router builds the chi routing tree.
func (a *Application) router() chi.Router {
	r := chi.NewRouter()

	r.Use(custommw.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(custommw.StructuredLogger(a.logger))
	r.Use(custommw.Recoverer(a.logger))
	r.Use(custommw.NewRateLimiter(a.cfg.Server.RateLimitRPS, a.cfg.Server.RateLimitBurst, a.logger).Handler)
	r.Use(chimiddleware.Compress(5))

	dataService := services.NewDataService(a.paths, a.logger)

	var metrics *infrastructure.PipelineMetrics
	if a.otel.Meter != nil {
		var err error
		metrics, err = infrastructure.CreatePipelineMetrics(a.otel.Meter)
		if err != nil {
			a.logger.Warn("failed to create pipeline metrics", slog.String("error", err.Error()))
		}
	}

	r.Route("/api", func(r chi.Router) {
		r.Mount("/health", handlers.NewHealthHandler(a.paths, Version, a.logger).Routes())
		r.Mount("/data", handlers.NewDataHandler(dataService, a.logger).Routes())
		r.Mount("/pipeline", handlers.NewPipelineHandler(a.cfg, a.paths, a.hub, metrics, a.logger).Routes())
	})

	r.Get("/ws", a.hub.ServeWS)

	if a.otel.PrometheusHTTP != nil {
		r.Handle("/metrics", a.otel.PrometheusHTTP)
	}

	return r
}

// Run starts the server and blocks until shutdown.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.hub.Start()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting",
			slog.String("addr", a.server.Addr),
			slog.String("version", Version))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutdown signal received")
	return a.Stop()
}

// Stop gracefully shuts down the server, hub and telemetry.
func (a *Application) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.hub.Stop()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := a.otel.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
	}

	shutdownCtx, cancelLog := context.WithTimeout(context.Background(), time.Second)
	defer cancelLog()
	a.logger.InfoContext(shutdownCtx, "server stopped")
	infrastructure.CloseLogFile()
	return nil
}
