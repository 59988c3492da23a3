package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		rl := NewRateLimiter(0)
		for i := 0; i < 100; i++ {
			ok, _ := rl.Allow("k")
			assert.True(t, ok)
		}

		var nilLimiter *RateLimiter
		ok, _ := nilLimiter.Allow("k")
		assert.True(t, ok)
	})

	t.Run("sliding window", func(t *testing.T) {
		now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		rl := NewRateLimiter(2)
		rl.now = func() time.Time { return now }

		ok, _ := rl.Allow("a")
		assert.True(t, ok)

		now = now.Add(20 * time.Second)
		ok, _ = rl.Allow("a")
		assert.True(t, ok)

		ok, retry := rl.Allow("a")
		assert.False(t, ok)
		assert.Equal(t, 40*time.Second, retry)

		ok, _ = rl.Allow("b")
		assert.True(t, ok, "keys are independent")

		now = now.Add(41 * time.Second)
		ok, _ = rl.Allow("a")
		assert.True(t, ok)
	})

	t.Run("forget and cleanup", func(t *testing.T) {
		now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		rl := NewRateLimiter(1)
		rl.now = func() time.Time { return now }
		rl.lastCleanup = now

		rl.Allow("a")
		rl.Allow("b")
		assert.Equal(t, 2, rl.Keys())

		rl.Forget("a")
		assert.Equal(t, 1, rl.Keys())

		now = now.Add(2 * time.Minute)
		rl.Allow("c")
		assert.Equal(t, 1, rl.Keys())
	})
}

func TestRetrySeconds(t *testing.T) {
	assert.Equal(t, 1, retrySeconds(0))
	assert.Equal(t, 1, retrySeconds(300*time.Millisecond))
	assert.Equal(t, 2, retrySeconds(1500*time.Millisecond))
	assert.Equal(t, 40, retrySeconds(40*time.Second))
}
