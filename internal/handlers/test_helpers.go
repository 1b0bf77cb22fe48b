package handlers

import (
	"context"

	"github.com/pestopshq/pestops/internal/auth"
	"github.com/pestopshq/pestops/internal/models"
	"github.com/pestopshq/pestops/internal/services"
)

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc          func(ctx context.Context, loginID, password, ipAddress, userAgent string) (*services.LoginResponse, error)
	LogoutFunc         func(ctx context.Context, principal *auth.Principal) error
	ChangePasswordFunc func(ctx context.Context, principal *auth.Principal, currentPassword, newPassword, ipAddress string) error
}

func (m *MockAuthService) Login(ctx context.Context, loginID, password, ipAddress, userAgent string) (*services.LoginResponse, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, loginID, password, ipAddress, userAgent)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *MockAuthService) Logout(ctx context.Context, principal *auth.Principal) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, principal)
	}
	return nil
}

func (m *MockAuthService) ChangePassword(ctx context.Context, principal *auth.Principal, currentPassword, newPassword, ipAddress string) error {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, principal, currentPassword, newPassword, ipAddress)
	}
	return nil
}

// MockPasswordResetService implements PasswordResetServiceInterface for testing
type MockPasswordResetService struct {
	RequestResetFunc  func(ctx context.Context, loginNumber int) error
	VerifyTokenFunc   func(ctx context.Context, plaintext string) (*services.ResetTokenInfo, error)
	ResetPasswordFunc func(ctx context.Context, plaintext, newPassword string) error
}

func (m *MockPasswordResetService) RequestReset(ctx context.Context, loginNumber int) error {
	if m.RequestResetFunc != nil {
		return m.RequestResetFunc(ctx, loginNumber)
	}
	return nil
}

func (m *MockPasswordResetService) VerifyToken(ctx context.Context, plaintext string) (*services.ResetTokenInfo, error) {
	if m.VerifyTokenFunc != nil {
		return m.VerifyTokenFunc(ctx, plaintext)
	}
	return nil, models.ErrInvalidOrExpiredToken
}

func (m *MockPasswordResetService) ResetPassword(ctx context.Context, plaintext, newPassword string) error {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, plaintext, newPassword)
	}
	return nil
}

// MockLockoutService implements LockoutServiceInterface for testing
type MockLockoutService struct {
	StatusFunc  func(ctx context.Context, loginNumber int) (*models.Account, *models.LockoutStatus, error)
	UnlockFunc  func(ctx context.Context, loginNumber int) (*models.Account, error)
	HistoryFunc func(ctx context.Context, accountID string, limit int) ([]*models.LoginAttempt, error)
}

func (m *MockLockoutService) Status(ctx context.Context, loginNumber int) (*models.Account, *models.LockoutStatus, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, loginNumber)
	}
	return nil, nil, models.ErrNotFound
}

func (m *MockLockoutService) Unlock(ctx context.Context, loginNumber int) (*models.Account, error) {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, loginNumber)
	}
	return nil, models.ErrNotFound
}

func (m *MockLockoutService) History(ctx context.Context, accountID string, limit int) ([]*models.LoginAttempt, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, accountID, limit)
	}
	return nil, nil
}

// MockSessionLister implements SessionListerInterface for testing
type MockSessionLister struct {
	ListActiveFunc func(ctx context.Context, accountID string) ([]*models.Session, error)
}

func (m *MockSessionLister) ListActive(ctx context.Context, accountID string) ([]*models.Session, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx, accountID)
	}
	return nil, nil
}
