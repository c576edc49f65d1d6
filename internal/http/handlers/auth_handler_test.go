package handlers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-quetras-backend/internal/auth"
	"github.com/tbourn/go-quetras-backend/internal/http/middleware"
	"github.com/tbourn/go-quetras-backend/internal/services"
	"github.com/tbourn/go-quetras-backend/internal/storage"
)

func newAuthFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	iss := auth.NewIssuer("handler-test-secret", time.Hour)
	ah := NewAuthHandler(services.NewAuthService(storage.NewMemoryKV(), iss, zerolog.Nop()))

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Authenticate(iss, middleware.AuthOptions{AllowDemoHeaders: true}))
	g := r.Group("/api/v1/auth")
	g.POST("/register", ah.Register)
	g.POST("/login", ah.Login)
	g.GET("/me", middleware.RequireAuth(), ah.Me)
	return &fixture{r: r}
}

func TestAuth_RegisterLoginMe(t *testing.T) {
	f := newAuthFixture(t)

	w := f.do(t, who{}, http.MethodPost, "/api/v1/auth/register", RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "secret1"})
	u := decode[UserResponse](t, w)
	if w.Code != http.StatusCreated || u.ID == "" || u.Role != "student" || u.Email != "ana@example.com" {
		t.Fatalf("register: %d %+v", w.Code, u)
	}
	if body := w.Body.String(); containsAny(body, "secret1", "passwordHash") {
		t.Fatalf("credentials leaked: %s", body)
	}

	expectCode(t, f.do(t, who{}, http.MethodPost, "/api/v1/auth/register", RegisterRequest{Name: "B", Email: "ANA@example.com", Password: "secret2"}),
		http.StatusConflict, ErrCodeConflict)

	w = f.do(t, who{}, http.MethodPost, "/api/v1/auth/register", RegisterRequest{Email: "bad"})
	expectCode(t, w, http.StatusBadRequest, ErrCodeBadRequest)
	if len(decode[ErrorResponse](t, w).Details) == 0 {
		t.Fatal("validation details expected")
	}

	expectCode(t, f.do(t, who{}, http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "ana@example.com", Password: "nope"}),
		http.StatusUnauthorized, ErrCodeUnauthorized)
	expectCode(t, f.do(t, who{}, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "ana@example.com"}),
		http.StatusBadRequest, ErrCodeBadRequest)

	w = f.do(t, who{}, http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "ana@example.com", Password: "secret1"})
	lr := decode[LoginResponse](t, w)
	if w.Code != http.StatusOK || lr.Token == "" || lr.TokenType != "Bearer" || lr.User.ID != u.ID {
		t.Fatalf("login: %d %+v", w.Code, lr)
	}

	w = f.do(t, who{}, http.MethodGet, "/api/v1/auth/me", nil, "Authorization", "Bearer "+lr.Token)
	if me := decode[UserResponse](t, w); w.Code != http.StatusOK || me.ID != u.ID || me.Name != "Ana" {
		t.Fatalf("me: %d %+v", w.Code, me)
	}

	expectCode(t, f.do(t, who{}, http.MethodGet, "/api/v1/auth/me", nil), http.StatusUnauthorized, ErrCodeUnauthorized)
}

func TestAuth_MeWithDemoHeaders(t *testing.T) {
	f := newAuthFixture(t)
	w := f.do(t, asAdmin, http.MethodGet, "/api/v1/auth/me", nil)
	me := decode[UserResponse](t, w)
	if w.Code != http.StatusOK || me.ID != "A1" || me.Role != "admin" || me.CreatedAt != nil {
		t.Fatalf("demo me: %d %+v", w.Code, me)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
