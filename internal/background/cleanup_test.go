package background

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubSessionSweeper struct {
	calls atomic.Int64
}

func (s *stubSessionSweeper) DeleteExpired(ctx context.Context) (int64, error) {
	s.calls.Add(1)
	return 2, nil
}

type stubResetTokenSweeper struct {
	calls atomic.Int64
}

func (s *stubResetTokenSweeper) DeleteExpired(ctx context.Context) (int64, error) {
	s.calls.Add(1)
	return 1, nil
}

type stubAttemptSweeper struct {
	calls  atomic.Int64
	cutoff atomic.Value
}

func (s *stubAttemptSweeper) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.calls.Add(1)
	s.cutoff.Store(cutoff)
	return 3, nil
}

func TestCleanupManager_SweepsOnStartAndStops(t *testing.T) {
	sessions := &stubSessionSweeper{}
	tokens := &stubResetTokenSweeper{}
	attempts := &stubAttemptSweeper{}

	retention := 30 * 24 * time.Hour
	cm := NewCleanupManager(sessions, tokens, attempts, retention, time.Hour,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	// The first sweep runs immediately, before the first tick.
	assert.Eventually(t, func() bool {
		return sessions.calls.Load() == 1 && tokens.calls.Load() == 1 && attempts.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	cutoff := attempts.cutoff.Load().(time.Time)
	assert.WithinDuration(t, time.Now().Add(-retention), cutoff, time.Minute)

	cm.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop")
	}
}

func TestCleanupManager_ContextCancellation(t *testing.T) {
	cm := NewCleanupManager(&stubSessionSweeper{}, &stubResetTokenSweeper{}, &stubAttemptSweeper{},
		time.Hour, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not exit on context cancellation")
	}
}
