package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCallRateLimiter_Allow(t *testing.T) {
	rl := NewCallRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("alice"), "attempt %d should pass", i)
	}
	assert.False(t, rl.Allow("alice"))

	// Limits are per user.
	assert.True(t, rl.Allow("bob"))
}

func TestCallRateLimiter_ForgetResetsWindow(t *testing.T) {
	rl := NewCallRateLimiter(1, time.Minute)

	assert.True(t, rl.Allow("alice"))
	assert.False(t, rl.Allow("alice"))

	rl.Forget("alice")
	assert.True(t, rl.Allow("alice"))
}

func TestCallRateLimiter_WindowSlides(t *testing.T) {
	rl := NewCallRateLimiter(2, 50*time.Millisecond)

	assert.True(t, rl.Allow("alice"))
	assert.True(t, rl.Allow("alice"))
	assert.False(t, rl.Allow("alice"))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.Allow("alice"))
}
