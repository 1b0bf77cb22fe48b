package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pestopshq/pestops/internal/auth"
	"github.com/pestopshq/pestops/internal/config"
	"github.com/pestopshq/pestops/internal/database"
	"github.com/pestopshq/pestops/internal/handlers"
	"github.com/pestopshq/pestops/internal/models"
	"github.com/pestopshq/pestops/internal/repositories"
	"github.com/pestopshq/pestops/internal/routes"
	"github.com/pestopshq/pestops/internal/services"
	"github.com/pestopshq/pestops/migrations"
	pkgauth "github.com/pestopshq/pestops/pkg/auth"
	pkghttp "github.com/pestopshq/pestops/pkg/http"
	pkglogger "github.com/pestopshq/pestops/pkg/logger"
)

const testJWTSecret = "integration-secret-32-chars-long!!"

// TestDB manages the PostgreSQL testcontainer
type TestDB struct {
	Container testcontainers.Container
	DB        *database.DB
	Pool      *pgxpool.Pool
}

// SetupTestDatabase starts a PostgreSQL container and applies all migrations
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("pestops"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{
		Container: container,
		Pool:      pool,
		DB:        &database.DB{Pool: pool},
	}, nil
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, sqlDB, ".")
}

// Teardown closes the pool and stops the container
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"password_reset_tokens",
		"sessions",
		"login_attempts",
		"accounts",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}
	return nil
}

// SentEmail is one captured reset email
type SentEmail struct {
	To    string
	Name  string
	Token string
}

// CapturingEmailService records reset emails instead of sending them
type CapturingEmailService struct {
	mu   sync.Mutex
	Sent []SentEmail
}

func (m *CapturingEmailService) SendPasswordResetEmail(ctx context.Context, email, name, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentEmail{To: email, Name: name, Token: token})
	return nil
}

// LastToken returns the plaintext token from the most recent email
func (m *CapturingEmailService) LastToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return ""
	}
	return m.Sent[len(m.Sent)-1].Token
}

// TestServer is the full HTTP stack over a real database with email capture
type TestServer struct {
	Server   *httptest.Server
	Email    *CapturingEmailService
	Accounts *repositories.AccountRepository
	Sessions *repositories.SessionRepository
	Lockout  config.LockoutConfig
}

// NewTestServer wires the real router, middleware, services, and repositories
// over the containerized database. Timing padding is zeroed so failure-path
// tests run at full speed.
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	auditLogger := pkglogger.NewAuditLogger(logger)

	lockoutCfg := config.LockoutConfig{
		MaxFailedAttempts: 5,
		AttemptWindow:     15 * time.Minute,
		LockDuration:      15 * time.Minute,
	}

	accountRepo := repositories.NewAccountRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	attemptRepo := repositories.NewLoginAttemptRepository(db)
	resetRepo := repositories.NewPasswordResetRepository(db)

	tokenManager := auth.NewTokenManager(testJWTSecret, 24*time.Hour)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{})
	email := &CapturingEmailService{}

	lockoutService := services.NewLockoutService(accountRepo, attemptRepo, lockoutCfg, logger)
	sessionService := services.NewSessionService(sessionRepo, accountRepo, 24*time.Hour, logger)
	authService := services.NewAuthService(accountRepo, lockoutService, sessionService, tokenManager, timingDelay, logger, auditLogger)
	resetService := services.NewPasswordResetService(accountRepo, sessionRepo, resetRepo, db, email, time.Hour, logger, auditLogger)

	authHandler := handlers.NewAuthHandler(authService, resetService, &pkghttp.IPConfig{}, logger)
	lockoutHandler := handlers.NewLockoutHandler(lockoutService, sessionService, logger)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	routes.RegisterRoutes(router, authHandler, lockoutHandler, tokenManager, sessionService)

	return &TestServer{
		Server:   httptest.NewServer(router),
		Email:    email,
		Accounts: accountRepo,
		Sessions: sessionRepo,
		Lockout:  lockoutCfg,
	}
}

// Close shuts down the HTTP server
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// CreateAccount inserts an account with a hashed password
func (ts *TestServer) CreateAccount(ctx context.Context, loginNumber int, name, email, role, password string) (*models.Account, error) {
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	return ts.Accounts.Create(ctx, &models.Account{
		LoginNumber:  loginNumber,
		Name:         name,
		Email:        email,
		Role:         role,
		Status:       models.StatusActive,
		PasswordHash: hash,
	})
}

// PostJSON sends a JSON POST, optionally with a bearer token
func (ts *TestServer) PostJSON(t interface{ Fatalf(string, ...interface{}) }, path, token string, body interface{}) *http.Response {
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+path, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	return resp
}

// Get sends a GET, optionally with a bearer token
func (ts *TestServer) Get(t interface{ Fatalf(string, ...interface{}) }, path, token string) *http.Response {
	req, err := http.NewRequest(http.MethodGet, ts.Server.URL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	return resp
}

// DecodeJSON reads and decodes a response body
func DecodeJSON(resp *http.Response) (map[string]interface{}, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var body map[string]interface{}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decode %q: %w", data, err)
	}
	return body, nil
}
