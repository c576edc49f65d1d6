package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client's retry token on POST /queries.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemScope  = "idem.scope"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

var defaultIdemPattern = regexp.MustCompile(`^[A-Za-z0-9._~:\-]+$`)

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	MaxLen  int            // default 200
	Pattern *regexp.Regexp // default: token characters only
}

// IdempotencyLookup reports whether (userID, scope, key) already completed
// and is still within its TTL. Errors are treated as "not seen".
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error)

// IdempotencyScope names the operation a key belongs to: method plus route
// template, e.g. "POST /api/v1/queries". The same key may be reused on a
// different route without colliding.
func IdempotencyScope(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	return c.Request.Method + " " + route
}

// IdempotencyValidator checks the Idempotency-Key header and stashes it for
// the handler. When lookup finds a completed request the context is marked
// as a replay, which also exempts it from rate limiting. The handler serves
// the stored result itself.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdemPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abortJSON(c, http.StatusBadRequest, "bad_idempotency_key", "invalid Idempotency-Key")
			return
		}
		scope := IdempotencyScope(c)
		c.Set(ctxKeyIdemKey, key)
		c.Set(ctxKeyIdemScope, scope)

		if lookup != nil {
			if a, ok := ActorFrom(c); ok {
				if seen, err := lookup(c.Request.Context(), a.ID, scope, key, time.Now().UTC()); err == nil && seen {
					c.Set(ctxKeyIdemReplay, true)
					c.Set(ctxKeyRateBypass, true)
				}
			}
		}
		c.Next()
	}
}

// GetIdempotencyKey returns the validated key and the scope it applies to.
func GetIdempotencyKey(c *gin.Context) (key, scope string, ok bool) {
	key = c.GetString(ctxKeyIdemKey)
	return key, c.GetString(ctxKeyIdemScope), key != ""
}

// IsReplay reports whether the request repeats a completed one.
func IsReplay(c *gin.Context) bool { return c.GetBool(ctxKeyIdemReplay) }
