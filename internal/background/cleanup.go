package background

import (
	"context"
	"log/slog"
	"time"
)

// SessionSweeper removes expired session rows
type SessionSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// ResetTokenSweeper removes expired or consumed reset token rows
type ResetTokenSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// AttemptSweeper trims old login attempt audit rows
type AttemptSweeper interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupManager periodically sweeps rows the request path only removes
// lazily: expired sessions, spent reset tokens, and attempt audit rows past
// their retention. Correctness never depends on it running; every read path
// checks expiry itself.
type CleanupManager struct {
	sessions         SessionSweeper
	resetTokens      ResetTokenSweeper
	attempts         AttemptSweeper
	attemptRetention time.Duration
	interval         time.Duration
	logger           *slog.Logger
	stopCh           chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	sessions SessionSweeper,
	resetTokens ResetTokenSweeper,
	attempts AttemptSweeper,
	attemptRetention time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *CleanupManager {
	return &CleanupManager{
		sessions:         sessions,
		resetTokens:      resetTokens,
		attempts:         attempts,
		attemptRetention: attemptRetention,
		interval:         interval,
		logger:           logger,
		stopCh:           make(chan struct{}),
	}
}

// Start begins the periodic sweep. Blocks until Stop is called or the
// context is cancelled; run it in its own goroutine.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runSweep(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}

func (cm *CleanupManager) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	sessions, err := cm.sessions.DeleteExpired(sweepCtx)
	if err != nil {
		cm.logger.Error("failed to sweep expired sessions", slog.Any("error", err))
	}

	tokens, err := cm.resetTokens.DeleteExpired(sweepCtx)
	if err != nil {
		cm.logger.Error("failed to sweep reset tokens", slog.Any("error", err))
	}

	attempts, err := cm.attempts.DeleteOlderThan(sweepCtx, time.Now().Add(-cm.attemptRetention))
	if err != nil {
		cm.logger.Error("failed to trim login attempts", slog.Any("error", err))
	}

	if sessions > 0 || tokens > 0 || attempts > 0 {
		cm.logger.Info("cleanup sweep completed",
			slog.Int64("sessions_deleted", sessions),
			slog.Int64("reset_tokens_deleted", tokens),
			slog.Int64("attempts_deleted", attempts))
	}
}
