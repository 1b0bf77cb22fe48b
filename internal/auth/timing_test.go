package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimingDelay_PadFailure(t *testing.T) {
	timing := NewTimingDelay(TimingConfig{BaseDelayMs: 100, RandomDelayMs: 0})

	var slept time.Duration
	timing.sleep = func(d time.Duration) { slept = d }

	timing.PadFailure(time.Now())

	// Nothing consumed yet, so the pad covers essentially the whole floor
	assert.Greater(t, slept, 90*time.Millisecond)
	assert.LessOrEqual(t, slept, 100*time.Millisecond)
}

func TestTimingDelay_PadFailure_CountsElapsedWork(t *testing.T) {
	timing := NewTimingDelay(TimingConfig{BaseDelayMs: 100, RandomDelayMs: 0})

	var slept time.Duration
	timing.sleep = func(d time.Duration) { slept = d }

	// 60ms of real work already spent; only ~40ms remains to pad
	timing.PadFailure(time.Now().Add(-60 * time.Millisecond))

	assert.Greater(t, slept, 30*time.Millisecond)
	assert.Less(t, slept, 45*time.Millisecond)
}

func TestTimingDelay_PadFailure_NoSleepWhenFloorExceeded(t *testing.T) {
	timing := NewTimingDelay(TimingConfig{BaseDelayMs: 50, RandomDelayMs: 0})

	called := false
	timing.sleep = func(d time.Duration) { called = true }

	timing.PadFailure(time.Now().Add(-200 * time.Millisecond))

	assert.False(t, called)
}

func TestTimingDelay_PadFailure_AddsJitter(t *testing.T) {
	timing := NewTimingDelay(TimingConfig{BaseDelayMs: 100, RandomDelayMs: 50})

	var slept time.Duration
	timing.sleep = func(d time.Duration) { slept = d }

	timing.PadFailure(time.Now())

	// Floor plus up to 50ms of jitter
	assert.Greater(t, slept, 90*time.Millisecond)
	assert.Less(t, slept, 151*time.Millisecond)
}
