package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// KeyFunc maps a request to its rate-limit bucket.
type KeyFunc func(*gin.Context) string

// KeyByUserOrIP buckets authenticated callers by id and the rest by client IP.
func KeyByUserOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if a, ok := ActorFrom(c); ok {
			return "user:" + a.ID
		}
		return "ip:" + c.ClientIP()
	}
}

// RateLimiterOptions tunes bucket bookkeeping. Zero values pick defaults.
type RateLimiterOptions struct {
	MaxKeys int           // buckets kept at once (default 10000)
	IdleTTL time.Duration // bucket lifetime after last use (default 10m)
}

// RateLimiter is a token bucket per key. Buckets live in a bounded LRU with
// expiry, so idle callers are forgotten without a sweeper goroutine.
type RateLimiter struct {
	rps     rate.Limit
	burst   int
	keyFn   KeyFunc
	buckets *expirable.LRU[string, *rate.Limiter]
}

// NewRateLimiter builds a limiter admitting rps requests per second with the
// given burst (coerced to at least 1). rps <= 0 disables limiting.
func NewRateLimiter(rps float64, burst int, keyFn KeyFunc, opts ...RateLimiterOptions) *RateLimiter {
	var o RateLimiterOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.MaxKeys <= 0 {
		o.MaxKeys = 10000
	}
	if o.IdleTTL <= 0 {
		o.IdleTTL = 10 * time.Minute
	}
	if burst <= 0 {
		burst = 1
	}
	if keyFn == nil {
		keyFn = KeyByUserOrIP()
	}
	lim := rate.Limit(rps)
	if rps <= 0 {
		lim = rate.Inf
	}
	return &RateLimiter{
		rps:     lim,
		burst:   burst,
		keyFn:   keyFn,
		buckets: expirable.NewLRU[string, *rate.Limiter](o.MaxKeys, nil, o.IdleTTL),
	}
}

func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	if l, ok := rl.buckets.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(rl.rps, rl.burst)
	// A concurrent first request for the same key may also insert; the later
	// bucket wins and the loser's single token is forgiven.
	rl.buckets.Add(key, l)
	return l
}

// Len reports how many buckets are tracked.
func (rl *RateLimiter) Len() int { return rl.buckets.Len() }

// IsRateBypass reports whether an earlier middleware (idempotent replay)
// exempted the request from limiting.
func IsRateBypass(c *gin.Context) bool { return c.GetBool(ctxKeyRateBypass) }

// Handler enforces the limit, answering 429 with Retry-After when exceeded.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}
		r := rl.bucket(rl.keyFn(c)).Reserve()
		if d := r.Delay(); d > 0 {
			r.Cancel()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
			abortJSON(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			return
		}
		c.Next()
	}
}
