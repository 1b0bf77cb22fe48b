package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pestopshq/pestops/internal/auth"
	"github.com/pestopshq/pestops/internal/background"
	"github.com/pestopshq/pestops/internal/config"
	"github.com/pestopshq/pestops/internal/database"
	"github.com/pestopshq/pestops/internal/handlers"
	"github.com/pestopshq/pestops/internal/middleware"
	"github.com/pestopshq/pestops/internal/models"
	"github.com/pestopshq/pestops/internal/repositories"
	"github.com/pestopshq/pestops/internal/routes"
	"github.com/pestopshq/pestops/internal/services"
	pkgauth "github.com/pestopshq/pestops/pkg/auth"
	pkghttp "github.com/pestopshq/pestops/pkg/http"
	pkglogger "github.com/pestopshq/pestops/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	if cfg.Database.RunMigrations {
		migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := database.Migrate(migrateCtx, cfg.Database.DSN())
		cancel()
		if err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Repositories
	accountRepo := repositories.NewAccountRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	attemptRepo := repositories.NewLoginAttemptRepository(db)
	resetRepo := repositories.NewPasswordResetRepository(db)

	// Token manager and security helpers
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionLifetime)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   100,
		RandomDelayMs: 100,
	})
	auditLogger := pkglogger.NewAuditLogger(logger)

	// AWS SES email service
	emailService, err := services.NewAWSSESEmailService(
		cfg.Email.AWSRegion,
		cfg.Email.FromAddress,
		cfg.Email.ResetURLBase,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Services
	lockoutService := services.NewLockoutService(accountRepo, attemptRepo, cfg.Lockout, logger)
	sessionService := services.NewSessionService(sessionRepo, accountRepo, cfg.Auth.SessionLifetime, logger)
	authService := services.NewAuthService(accountRepo, lockoutService, sessionService, tokenManager, timingDelay, logger, auditLogger)
	resetService := services.NewPasswordResetService(accountRepo, sessionRepo, resetRepo, db, emailService, cfg.Auth.ResetTokenTTL, logger, auditLogger)

	// Handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: parseTrustedProxies()}
	authHandler := handlers.NewAuthHandler(authService, resetService, ipConfig, logger)
	lockoutHandler := handlers.NewLockoutHandler(lockoutService, sessionService, logger)

	// Bootstrap the first admin account if configured
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminAccount(bootCtx, accountRepo, logger); err != nil {
		logger.Error("failed to ensure admin account", slog.Any("error", err))
	}
	bootCancel()

	// Background sweeper
	cleanupManager := background.NewCleanupManager(
		sessionRepo, resetRepo, attemptRepo,
		cfg.Auth.AttemptRetention, cfg.Auth.CleanupInterval, logger,
	)

	// Router
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.SecurityHeaders(cfg.Server.Env))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.SecureLogger(logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, lockoutHandler, tokenManager, sessionService)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminAccount creates the first admin account when ADMIN_LOGIN_NUMBER
// and ADMIN_PASSWORD are set. Idempotent: an existing account with that
// login number is left alone.
func ensureAdminAccount(ctx context.Context, accounts *repositories.AccountRepository, logger *slog.Logger) error {
	loginNumberStr := os.Getenv("ADMIN_LOGIN_NUMBER")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if loginNumberStr == "" || adminPassword == "" {
		logger.Info("no ADMIN_LOGIN_NUMBER or ADMIN_PASSWORD set, skipping admin bootstrap")
		return nil
	}

	loginNumber, err := strconv.Atoi(loginNumberStr)
	if err != nil || loginNumber <= 0 {
		return fmt.Errorf("ADMIN_LOGIN_NUMBER must be a positive integer")
	}

	_, err = accounts.GetByLoginNumber(ctx, loginNumber)
	if err == nil {
		logger.Info("admin account already exists", slog.Int("login_number", loginNumber))
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check for admin account: %w", err)
	}

	hash, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.Account{
		LoginNumber:  loginNumber,
		Name:         getEnvDefault("ADMIN_NAME", "Admin"),
		Email:        os.Getenv("ADMIN_EMAIL"),
		Role:         models.RoleAdmin,
		Status:       models.StatusActive,
		PasswordHash: hash,
	}

	if _, err := accounts.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	logger.Info("admin account created", slog.Int("login_number", loginNumber))
	return nil
}

func getEnvDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// parseTrustedProxies reads TRUSTED_PROXIES as a comma-separated list of
// CIDR ranges. Forwarded-for headers are honored only from these sources.
func parseTrustedProxies() []string {
	raw := os.Getenv("TRUSTED_PROXIES")
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	proxies := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	return proxies
}
