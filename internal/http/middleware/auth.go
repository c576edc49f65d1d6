package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-quetras-backend/internal/domain"
)

// Gin context keys carrying the caller identity.
const (
	ctxKeyUserID   = "userID"
	ctxKeyUserRole = "userRole"
	ctxKeyUserName = "userName"
)

// Demo headers honored when no bearer token is sent.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// TokenParser turns a bearer token into the actor it identifies.
type TokenParser interface {
	Parse(raw string) (domain.Actor, error)
}

// AuthOptions configures Authenticate.
type AuthOptions struct {
	// AllowDemoHeaders accepts X-User-ID / X-User-Role when no token is present.
	AllowDemoHeaders bool
}

// Authenticate resolves the caller from "Authorization: Bearer <jwt>" and
// stores it in the context. A present but invalid token is rejected with 401.
// Requests without credentials pass through anonymous; RequireAuth decides.
func Authenticate(tokens TokenParser, opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, ok := bearer(c.GetHeader("Authorization")); ok {
			if tokens == nil {
				abortJSON(c, http.StatusUnauthorized, "unauthorized", "token authentication unavailable")
				return
			}
			actor, err := tokens.Parse(raw)
			if err != nil {
				abortJSON(c, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}
			setActor(c, actor)
			c.Next()
			return
		}

		if opts.AllowDemoHeaders {
			if id := strings.TrimSpace(c.GetHeader(HeaderUserID)); id != "" {
				role := domain.RoleStudent
				if strings.EqualFold(strings.TrimSpace(c.GetHeader(HeaderUserRole)), string(domain.RoleAdmin)) {
					role = domain.RoleAdmin
				}
				setActor(c, domain.Actor{ID: id, Role: role})
			}
		}
		c.Next()
	}
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := ActorFrom(c); !ok {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects callers that are not administrators.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := ActorFrom(c)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		if !a.IsAdmin() {
			abortJSON(c, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		c.Next()
	}
}

// ActorFrom returns the authenticated caller, if any.
func ActorFrom(c *gin.Context) (domain.Actor, bool) {
	id := c.GetString(ctxKeyUserID)
	if id == "" {
		return domain.Actor{}, false
	}
	return domain.Actor{
		ID:   id,
		Name: c.GetString(ctxKeyUserName),
		Role: domain.Role(c.GetString(ctxKeyUserRole)),
	}, true
}

func setActor(c *gin.Context, a domain.Actor) {
	c.Set(ctxKeyUserID, a.ID)
	c.Set(ctxKeyUserRole, string(a.Role))
	c.Set(ctxKeyUserName, a.Name)
}

func bearer(h string) (string, bool) {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// abortJSON writes the shared error envelope and stops the chain.
func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.GetString(requestIDKey),
		"code":       code,
		"message":    msg,
	})
}
