package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-quetras-backend/internal/domain"
)

type fakeTokens map[string]domain.Actor

func (f fakeTokens) Parse(raw string) (domain.Actor, error) {
	if a, ok := f[raw]; ok {
		return a, nil
	}
	return domain.Actor{}, errors.New("bad token")
}

func whoami(c *gin.Context) {
	a, ok := ActorFrom(c)
	c.JSON(http.StatusOK, gin.H{"ok": ok, "id": a.ID, "role": a.Role, "name": a.Name})
}

func authEngine(opts AuthOptions, guards ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Authenticate(fakeTokens{
		"tok-student": {ID: "S1", Name: "Ana", Role: domain.RoleStudent},
		"tok-admin":   {ID: "A1", Name: "Admin", Role: domain.RoleAdmin},
	}, opts))
	r.GET("/me", append(guards, whoami)...)
	return r
}

func call(r http.Handler, hdr map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestAuthenticate_Bearer(t *testing.T) {
	r := authEngine(AuthOptions{})

	w, body := call(r, map[string]string{"Authorization": "Bearer tok-student"})
	if w.Code != http.StatusOK || body["id"] != "S1" || body["role"] != "student" || body["name"] != "Ana" {
		t.Fatalf("got %d %v", w.Code, body)
	}

	w, body = call(r, map[string]string{"Authorization": "bearer   tok-admin "})
	if w.Code != http.StatusOK || body["role"] != "admin" {
		t.Fatalf("scheme should be case-insensitive: %d %v", w.Code, body)
	}

	w, body = call(r, map[string]string{"Authorization": "Bearer forged"})
	if w.Code != http.StatusUnauthorized || body["code"] != "unauthorized" || body["request_id"] == "" {
		t.Fatalf("invalid token: %d %v", w.Code, body)
	}
}

func TestAuthenticate_AnonymousPassesThrough(t *testing.T) {
	w, body := call(authEngine(AuthOptions{}), map[string]string{"Authorization": "Basic abc"})
	if w.Code != http.StatusOK || body["ok"] != false {
		t.Fatalf("got %d %v", w.Code, body)
	}
}

func TestAuthenticate_DemoHeaders(t *testing.T) {
	hdr := map[string]string{HeaderUserID: "S9", HeaderUserRole: "ADMIN"}

	_, body := call(authEngine(AuthOptions{}), hdr)
	if body["ok"] != false {
		t.Fatalf("demo headers must be ignored unless enabled: %v", body)
	}

	_, body = call(authEngine(AuthOptions{AllowDemoHeaders: true}), hdr)
	if body["id"] != "S9" || body["role"] != "admin" {
		t.Fatalf("got %v", body)
	}

	_, body = call(authEngine(AuthOptions{AllowDemoHeaders: true}), map[string]string{HeaderUserID: "S9", HeaderUserRole: "root"})
	if body["role"] != "student" {
		t.Fatalf("unknown roles fall back to student: %v", body)
	}
}

func TestRequireAuthAndAdmin(t *testing.T) {
	needAuth := authEngine(AuthOptions{}, RequireAuth())
	if w, _ := call(needAuth, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: %d", w.Code)
	}
	if w, _ := call(needAuth, map[string]string{"Authorization": "Bearer tok-student"}); w.Code != http.StatusOK {
		t.Fatalf("student: %d", w.Code)
	}

	needAdmin := authEngine(AuthOptions{}, RequireAdmin())
	if w, _ := call(needAdmin, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: %d", w.Code)
	}
	if w, body := call(needAdmin, map[string]string{"Authorization": "Bearer tok-student"}); w.Code != http.StatusForbidden || body["code"] != "forbidden" {
		t.Fatalf("student: %d %v", w.Code, body)
	}
	if w, _ := call(needAdmin, map[string]string{"Authorization": "Bearer tok-admin"}); w.Code != http.StatusOK {
		t.Fatalf("admin: %d", w.Code)
	}
}

func TestAuthenticate_NilParserRejectsTokens(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(nil, AuthOptions{}))
	r.GET("/me", whoami)
	if w, _ := call(r, map[string]string{"Authorization": "Bearer x"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("got %d", w.Code)
	}
}
