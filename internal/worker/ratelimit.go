package worker

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// bucket is a token bucket refilled continuously at rate tokens per second.
type bucket struct {
	last   time.Time
	tokens float64
}

// LimiterStats is a snapshot of a ClientLimiter.
type LimiterStats struct {
	Rate          float64 `json:"rate"`
	Burst         int     `json:"burst"`
	ActiveClients int     `json:"active_clients"`
	Allowed       int64   `json:"allowed"`
	Rejected      int64   `json:"rejected"`
}

// ClientLimiter rate limits requests per client key. Buckets idle for longer
// than maxIdle are evicted on the next sweep.
type ClientLimiter struct {
	lastSweep time.Time
	now       func() time.Time
	buckets   map[string]*bucket
	rate      float64
	burst     int
	maxIdle   time.Duration
	allowed   int64
	rejected  int64
	mu        sync.Mutex
}

// NewClientLimiter allows rate requests per second per client with bursts of
// burst. A rate of zero or less disables limiting.
func NewClientLimiter(rate float64, burst int) *ClientLimiter {
	if burst < 1 {
		burst = 1
	}
	return &ClientLimiter{
		now:       time.Now,
		lastSweep: time.Now(),
		buckets:   make(map[string]*bucket),
		rate:      rate,
		burst:     burst,
		maxIdle:   10 * time.Minute,
	}
}

// Allow consumes one token from key's bucket and reports whether one was available.
func (cl *ClientLimiter) Allow(key string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.rate <= 0 {
		cl.allowed++
		return true
	}

	now := cl.now()
	if now.Sub(cl.lastSweep) > cl.maxIdle/2 {
		cl.sweepLocked(now)
	}

	b, ok := cl.buckets[key]
	if !ok {
		b = &bucket{last: now, tokens: float64(cl.burst)}
		cl.buckets[key] = b
	}

	b.tokens += now.Sub(b.last).Seconds() * cl.rate
	if b.tokens > float64(cl.burst) {
		b.tokens = float64(cl.burst)
	}
	b.last = now

	if b.tokens < 1 {
		cl.rejected++
		return false
	}
	b.tokens--
	cl.allowed++
	return true
}

// RetryAfter returns how long a client with an empty bucket should wait.
func (cl *ClientLimiter) RetryAfter() time.Duration {
	if cl.rate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / cl.rate)
}

func (cl *ClientLimiter) sweepLocked(now time.Time) {
	for key, b := range cl.buckets {
		if now.Sub(b.last) > cl.maxIdle {
			delete(cl.buckets, key)
		}
	}
	cl.lastSweep = now
}

// Stats returns the current counters.
func (cl *ClientLimiter) Stats() LimiterStats {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return LimiterStats{
		Rate:          cl.rate,
		Burst:         cl.burst,
		ActiveClients: len(cl.buckets),
		Allowed:       cl.allowed,
		Rejected:      cl.rejected,
	}
}

// RateLimit rejects requests over the client's budget with 429. Clients are
// keyed by remote host, which chi's RealIP middleware rewrites when the
// worker sits behind a proxy.
func RateLimit(limiter *ClientLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientKey(r)) {
				secs := int(limiter.RetryAfter().Seconds())
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, r, http.StatusTooManyRequests, errRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
