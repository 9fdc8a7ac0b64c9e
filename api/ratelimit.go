package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// pullRateLimiter tracks failed selector pulls per source IP and enforces
// exponential backoff. Selector guessing is the only brute-forceable
// surface of the protocol; successful pulls are never counted.
type pullRateLimiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptRecord
}

type attemptRecord struct {
	failures    int
	lastFailure time.Time
	lockedUntil time.Time
}

const (
	// pullMaxFailures is the number of failed pulls before lockout begins.
	pullMaxFailures = 10
	// pullBaseLockout is the initial lockout once pullMaxFailures is reached.
	pullBaseLockout = 1 * time.Minute
	// pullMaxLockout caps the exponential backoff.
	pullMaxLockout = 15 * time.Minute
	// attemptExpiry is how long after the last failure before the record is
	// garbage-collected.
	attemptExpiry = 1 * time.Hour
)

func newPullRateLimiter() *pullRateLimiter {
	return &pullRateLimiter{
		attempts: make(map[string]*attemptRecord),
	}
}

// check returns true if the IP is currently locked out, along with how long
// the caller should wait. A zero duration means the request may proceed.
func (rl *pullRateLimiter) check(ip string) (blocked bool, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rec, ok := rl.attempts[ip]
	if !ok {
		return false, 0
	}
	if time.Since(rec.lastFailure) > attemptExpiry {
		delete(rl.attempts, ip)
		return false, 0
	}
	if time.Now().Before(rec.lockedUntil) {
		return true, time.Until(rec.lockedUntil)
	}
	return false, 0
}

// recordFailure increments the failure counter and applies exponential
// backoff once pullMaxFailures is exceeded.
func (rl *pullRateLimiter) recordFailure(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rec, ok := rl.attempts[ip]
	if !ok {
		rec = &attemptRecord{}
		rl.attempts[ip] = rec
	}
	rec.failures++
	rec.lastFailure = time.Now()

	if rec.failures >= pullMaxFailures {
		shift := rec.failures - pullMaxFailures
		lockout := pullBaseLockout
		for i := 0; i < shift; i++ {
			lockout *= 2
			if lockout > pullMaxLockout {
				lockout = pullMaxLockout
				break
			}
		}
		rec.lockedUntil = time.Now().Add(lockout)
	}
}

// recordSuccess resets the failure counter after a legitimate pull.
func (rl *pullRateLimiter) recordSuccess(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, ip)
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(retryAfter.Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, http.StatusTooManyRequests, "", "too many failed pulls; try again later")
}

// clientIP returns the request's direct peer address. Proxy headers are
// deliberately ignored; deploy behind a proxy that rewrites RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
