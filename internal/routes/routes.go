package routes

import (
	"context"
	"net/http"

	"github.com/rs/cors"
	"github.com/templui/bullseye/internal/app"
	"github.com/templui/bullseye/internal/handler"
	"github.com/templui/bullseye/internal/middleware"
	"github.com/templui/bullseye/internal/observability"
)

// SetupRoutes builds the API handler. Background work it starts ends with ctx.
func SetupRoutes(ctx context.Context, app *app.App) http.Handler {
	// Handlers
	goal := handler.NewGoalHandler(app.GoalService)
	feed := handler.NewFeedHandler(app.EventService)
	registry := handler.NewRegistryHandler(app.Registry)
	health := handler.NewHealthHandler(app.DB)

	mux := http.NewServeMux()

	// ============================================================================
	// OPERATIONS
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.Handle("GET /metrics", observability.Handler())

	// ============================================================================
	// PUBLIC READS
	// ============================================================================

	mux.HandleFunc("GET /api/registry", registry.Show)
	mux.HandleFunc("GET /api/feed", feed.Feed)
	mux.HandleFunc("GET /api/goals", goal.List)
	mux.HandleFunc("GET /api/goals/{id}", goal.Show)
	mux.HandleFunc("GET /api/goals/{id}/verification", goal.Verification)
	mux.HandleFunc("GET /api/owners/{owner}/stats", goal.Stats)

	// ============================================================================
	// IDENTITY-BOUND ACTIONS (role checked by the goal service)
	// ============================================================================

	mux.HandleFunc("POST /api/goals", goal.Create)
	mux.HandleFunc("POST /api/goals/{id}/submit", goal.Submit)
	mux.HandleFunc("POST /api/goals/{id}/votes", goal.Vote)
	mux.HandleFunc("POST /api/goals/{id}/claim", goal.Claim)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   app.Cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: !allowsAnyOrigin(app.Cfg.CORSOrigins),
		MaxAge:           300,
	})

	limiter := middleware.NewRateLimiter(app.Cfg.RateLimitRPS, app.Cfg.RateLimitBurst)
	context.AfterFunc(ctx, limiter.Stop)

	// Global middleware - executed in order (top to bottom)
	handler := middleware.Chain(
		mux,
		corsHandler.Handler,
		middleware.RequestLogging(mux),
		middleware.RateLimit(limiter),
		middleware.CSRFProtection(app.Cfg.IsProduction()),
		middleware.Identity(app.IdentityService),
	)

	return handler
}

// Credentialed CORS cannot be combined with a wildcard origin.
func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
