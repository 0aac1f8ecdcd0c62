package session

import "time"

// rateLimiter counts recent failed login attempts per (client, username)
// pair inside a sliding window.
//
// SLIDING WINDOW, LAZILY PRUNED:
// Each key maps to the ordered timestamps of its failed attempts. On every
// check we first drop timestamps older than the window — there is no
// background sweeper, the map only shrinks when a key is touched (or cleared
// on a successful login). That is fine for this workload: the map is bounded
// by the number of distinct (client, username) pairs that fail within one
// window.
//
// NOT SELF-LOCKING: the Store's mutex already guards every call.
type rateLimiter struct {
	max      int
	window   time.Duration
	attempts map[string][]time.Time
	now      func() time.Time // injectable for tests
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		max:      max,
		window:   window,
		attempts: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// tooMany prunes the key's history to the current window and reports whether
// the key is at or above the configured maximum.
func (rl *rateLimiter) tooMany(key string) bool {
	cutoff := rl.now().Add(-rl.window)

	recent := rl.attempts[key][:0]
	for _, ts := range rl.attempts[key] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	if len(recent) == 0 {
		delete(rl.attempts, key)
	} else {
		rl.attempts[key] = recent
	}

	return len(recent) >= rl.max
}

// record appends a failed-attempt timestamp for the key.
func (rl *rateLimiter) record(key string) {
	rl.attempts[key] = append(rl.attempts[key], rl.now())
}

// clear forgets the key's history, called after a successful login.
func (rl *rateLimiter) clear(key string) {
	delete(rl.attempts, key)
}
