package signal

import (
	"sync"
	"time"

	"github.com/mzholl/callwire/internal/domain"
)

// CallRateLimiter bounds call attempts per user over a sliding window so
// a misbehaving client cannot ring-spam the fleet.
type CallRateLimiter struct {
	mu       sync.Mutex
	attempts map[domain.UserID][]time.Time
	limit    int
	window   time.Duration
}

func NewCallRateLimiter(limit int, window time.Duration) *CallRateLimiter {
	return &CallRateLimiter{
		attempts: make(map[domain.UserID][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow records the attempt when the user is under the limit. Expired
// attempts are pruned in place on every call, and users with no recent
// attempts are dropped from the map entirely.
func (rl *CallRateLimiter) Allow(uid domain.UserID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	kept := rl.attempts[uid][:0]
	for _, at := range rl.attempts[uid] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}

	if len(kept) >= rl.limit {
		rl.attempts[uid] = kept
		return false
	}
	rl.attempts[uid] = append(kept, now)
	return true
}

// Forget releases a user's window, typically on disconnect.
func (rl *CallRateLimiter) Forget(uid domain.UserID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, uid)
}
