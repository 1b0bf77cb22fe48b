package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig sets the failure-path timing floor.
type TimingConfig struct {
	BaseDelayMs   int // minimum elapsed time for a failed login, in milliseconds
	RandomDelayMs int // additional random jitter range in milliseconds
}

// TimingDelay pads failed login attempts to a floor duration so "unknown
// login number", "wrong password" and "account locked" are indistinguishable
// by response time.
type TimingDelay struct {
	config TimingConfig
	sleep  func(time.Duration)
}

func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{
		config: config,
		sleep:  time.Sleep,
	}
}

// cryptoRandIntn draws a value in [0, max) from crypto/rand. The jitter is
// part of the timing defense, so math/rand would be the wrong source.
func cryptoRandIntn(max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint64(buf[:]) % uint64(max)), nil
}

// PadFailure sleeps until at least baseDelay+jitter has elapsed since
// startTime. Work already done (bcrypt compares, attempt queries) counts
// toward the floor, so the pad only covers the remainder.
func (td *TimingDelay) PadFailure(startTime time.Time) {
	targetDelay := time.Duration(td.config.BaseDelayMs) * time.Millisecond
	if td.config.RandomDelayMs > 0 {
		randomValue, err := cryptoRandIntn(td.config.RandomDelayMs)
		if err == nil {
			targetDelay += time.Duration(randomValue) * time.Millisecond
		}
	}

	elapsed := time.Since(startTime)
	if elapsed < targetDelay {
		td.sleep(targetDelay - elapsed)
	}
}
