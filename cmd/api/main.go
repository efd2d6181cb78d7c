package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/settlement/internal/bootstrap"
	"github.com/cassiomorais/settlement/internal/controller"
	"github.com/cassiomorais/settlement/internal/providers"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "settlement-api", "settlement")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	cfg := app.Config
	svcs := bootstrap.NewServices(cfg, app.Pool, app.Metrics, app.Logger)

	router := controller.NewRouter(controller.RouterDeps{
		ServiceName:      "settlement-api",
		Settlements:      svcs.Settlements,
		Verifier:         providers.NewSignatureVerifier(cfg.Processor.WebhookSecret, cfg.Processor.SignatureTolerance),
		IdempotencyStore: svcs.Idempotency,
		IdempotencyTTL:   cfg.Worker.IdempotencyTTL,
		HealthChecks: map[string]controller.Check{
			"database": app.Pool.Ping,
			"redis": func(ctx context.Context) error {
				return app.Redis.Ping(ctx).Err()
			},
		},
		Metrics:          app.Metrics,
		Logger:           app.Logger,
		CORSConfig:       cfg.Server.CORS,
		JWTSecret:        cfg.Auth.JWTSecret,
		WebhookRateLimit: cfg.Server.WebhookRateLimit,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer done()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
