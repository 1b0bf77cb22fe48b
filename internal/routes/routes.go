package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/pestopshq/pestops/internal/auth"
	"github.com/pestopshq/pestops/internal/handlers"
	"github.com/pestopshq/pestops/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	lockoutHandler *handlers.LockoutHandler,
	tokenManager *auth.TokenManager,
	sessions auth.SessionValidator,
) {
	loginLimit := middleware.DefaultLoginRateLimit()
	resetLimit := middleware.DefaultResetRateLimit()

	// Public routes. The per-IP limits sit in front of the per-account
	// lockout; the reset endpoints are tighter because each request can
	// send an email.
	router.With(middleware.RateLimitByIP(loginLimit)).Post("/auth/login", authHandler.Login)
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(resetLimit))
		r.Post("/auth/forgot-password", authHandler.ForgotPassword)
		r.Get("/auth/verify-reset-token", authHandler.VerifyResetToken)
		r.Post("/auth/reset-password", authHandler.ResetPassword)
	})

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokenManager, sessions))

		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/validate", authHandler.Validate)
		r.Post("/auth/change-password", authHandler.ChangePassword)

		// Admin-only support tooling
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin())
			r.Get("/auth/lockout-status", lockoutHandler.Status)
			r.Post("/auth/unlock-account", lockoutHandler.Unlock)
		})
	})
}
