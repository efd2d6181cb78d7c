package controller

import (
	"time"

	"github.com/cassiomorais/settlement/internal/infrastructure/config"
	"github.com/cassiomorais/settlement/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/settlement/internal/middleware"
	"github.com/cassiomorais/settlement/internal/providers"
	"github.com/cassiomorais/settlement/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	ServiceName      string
	Settlements      *service.SettlementService
	Verifier         *providers.SignatureVerifier
	IdempotencyStore customMW.IdempotencyStore
	IdempotencyTTL   time.Duration
	HealthChecks     map[string]Check
	Metrics          *observability.Metrics
	Logger           zerolog.Logger
	CORSConfig       config.CORSConfig
	JWTSecret        string
	WebhookRateLimit int
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing(deps.ServiceName))
	r.Use(chimw.RealIP)
	r.Use(customMW.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	if deps.Metrics != nil {
		r.Use(customMW.Metrics(deps.Metrics))
	}

	healthH := NewHealthController(deps.HealthChecks)
	payoutH := NewPayoutController(deps.Settlements)
	webhookH := NewWebhookController(deps.Verifier, deps.Settlements, deps.Metrics)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	webhookLimit := deps.WebhookRateLimit
	if webhookLimit <= 0 {
		webhookLimit = 600
	}
	r.With(customMW.RateLimit(webhookLimit, time.Minute)).Post("/webhooks/processor", webhookH.Receive)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(customMW.RequireAuth(deps.JWTSecret))

		r.Get("/payouts", payoutH.List)
		r.Get("/payouts/{id}", payoutH.Get)

		r.Group(func(r chi.Router) {
			r.Use(customMW.RequireRole(customMW.RoleAdmin))
			if deps.IdempotencyStore != nil {
				r.Use(customMW.Idempotency(deps.IdempotencyStore, deps.IdempotencyTTL, deps.Logger))
			}

			r.Post("/payouts/dispatch", payoutH.Dispatch)
			r.Post("/payouts/{id}/complete", payoutH.Complete)
			r.Post("/settlements/run", payoutH.RunSettlement)
			r.Post("/subscriptions/retries/run", payoutH.RetryPayments)
		})
	})

	return r
}
