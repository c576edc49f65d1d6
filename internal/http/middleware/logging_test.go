package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	gen := w.Header().Get(requestIDHeader)
	if len(gen) != 36 || w.Body.String() != gen {
		t.Fatalf("generated id: header=%q body=%q", gen, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(requestIDHeader, "client-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get(requestIDHeader) != "client-123" {
		t.Fatalf("client id not propagated: %q", w.Header().Get(requestIDHeader))
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(requestIDHeader, strings.Repeat("a", maxRequestIDLen+1))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if len(w.Header().Get(requestIDHeader)) != 36 {
		t.Fatal("oversized client id should be replaced")
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/boom", func(*gin.Context) { panic("boom") })
	r.GET("/late", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("after write")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if w.Code != http.StatusInternalServerError || body["code"] != "internal_error" || body["request_id"] != w.Header().Get(requestIDHeader) {
		t.Fatalf("got %d %v", w.Code, body)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/late", nil))
	if w.Body.String() != "partial" {
		t.Fatalf("body must not be rewritten once sent: %q", w.Body.String())
	}
}

func TestLoggerFrom_Fallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if LoggerFrom(c) == nil {
		t.Fatal("expected fallback logger")
	}
	l := zerolog.Nop()
	c.Set(loggerKey, &l)
	if LoggerFrom(c) != &l {
		t.Fatal("expected stored logger")
	}
}

func TestRedact(t *testing.T) {
	in := "search=ana@example.com&id=123e4567-e89b-12d3-a456-426614174000&tel=+30 210 555 1234"
	out := Redact(in)
	for _, leak := range []string{"ana@example.com", "123e4567", "555 1234"} {
		if strings.Contains(out, leak) {
			t.Errorf("%q leaked in %q", leak, out)
		}
	}
	if Redact("status=pending&search=TQ-1234") != "status=pending&search=TQ-1234" {
		t.Error("query ids and statuses must survive")
	}
}

func TestRedactingLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{Base: &base, MaskHeaders: []string{"X-Secret"}}))
	r.Use(func(c *gin.Context) { setActor(c, actorS1); c.Next() })
	r.GET("/queries", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("inside")
		c.Status(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/queries?search=ana@example.com", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	req.Header.Set("X-Secret", "hunter2")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 log lines, got %d: %s", len(lines), buf.String())
	}
	var inner, access map[string]any
	_ = json.Unmarshal([]byte(lines[0]), &inner)
	_ = json.Unmarshal([]byte(lines[1]), &access)

	if inner["request_id"] != w.Header().Get(requestIDHeader) || inner["route"] != "/queries" {
		t.Fatalf("request-scoped logger fields: %v", inner)
	}
	if access["level"] != "warn" || access["user_id"] != "S1" || access["status"] != float64(404) {
		t.Fatalf("access line: %v", access)
	}
	for _, leak := range []string{"ana@example.com", "secret-token", "hunter2"} {
		if strings.Contains(lines[1], leak) {
			t.Errorf("%q leaked: %s", leak, lines[1])
		}
	}
}
