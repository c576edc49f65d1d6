package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-quetras-backend/internal/domain"
	"github.com/tbourn/go-quetras-backend/internal/events"
	"github.com/tbourn/go-quetras-backend/internal/http/middleware"
	"github.com/tbourn/go-quetras-backend/internal/notify"
	"github.com/tbourn/go-quetras-backend/internal/services"
	"github.com/tbourn/go-quetras-backend/internal/storage"
)

// memIdem is an in-memory IdempotencyStore.
type memIdem struct {
	mu   sync.Mutex
	recs map[string]string
}

func newMemIdem() *memIdem { return &memIdem{recs: map[string]string{}} }

func (m *memIdem) Lookup(_ context.Context, userID, scope, key string, _ time.Time) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.recs[userID+"|"+scope+"|"+key]
	return id, ok, nil
}

func (m *memIdem) Remember(_ context.Context, userID, scope, key, resourceID string, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[userID+"|"+scope+"|"+key] = resourceID
	return nil
}

type fixture struct {
	r     *gin.Engine
	kv    *storage.MemoryKV
	store *services.QueryStore
	inbox *notify.Inbox
	idem  *memIdem
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	kv := storage.NewMemoryKV()
	store := services.NewQueryStore(kv, events.NewHub(), zerolog.Nop())
	guard := services.NewSubmissionGuard(store, time.UTC)
	inbox := notify.NewInbox(kv, zerolog.Nop())
	svc := services.NewQueryService(store, guard, inbox, services.NewViewCache(32, time.Minute), zerolog.Nop())
	idem := newMemIdem()

	qh := NewQueryHandler(svc, QueryHandlerOptions{Statter: kv, Idempotency: idem, Heartbeat: 50 * time.Millisecond})
	nh := NewNotificationHandler(inbox)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Authenticate(nil, middleware.AuthOptions{AllowDemoHeaders: true}))
	api := r.Group("/api/v1", middleware.RequireAuth())
	q := api.Group("/queries")
	q.GET("", qh.List)
	q.POST("", middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, func(ctx context.Context, u, s, k string, now time.Time) (bool, error) {
		_, ok, err := idem.Lookup(ctx, u, s, k, now)
		return ok, err
	}), qh.Create)
	q.GET("/can-submit", qh.CanSubmit)
	q.GET("/stats", qh.Stats)
	q.GET("/events", qh.Events)
	q.GET("/:id", qh.Get)
	q.PATCH("/:id", qh.Update)
	q.DELETE("/:id", qh.Delete)
	q.POST("/:id/cancel", qh.Cancel)
	q.POST("/:id/notes", qh.AddNote)
	q.POST("/:id/notify", qh.Notify)
	api.GET("/notifications", nh.List)
	api.POST("/notifications/read-all", nh.MarkAllRead)
	api.POST("/notifications/:id/read", nh.MarkRead)
	api.DELETE("/notifications", nh.Clear)

	return &fixture{r: r, kv: kv, store: store, inbox: inbox, idem: idem}
}

type who struct {
	id    string
	admin bool
}

var (
	asStudent = who{id: "S1"}
	asOther   = who{id: "S2"}
	asAdmin   = who{id: "A1", admin: true}
)

func (f *fixture) do(t *testing.T, as who, method, path string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			if err != nil {
				t.Fatal(err)
			}
			rd = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as.id != "" {
		req.Header.Set(middleware.HeaderUserID, as.id)
		if as.admin {
			req.Header.Set(middleware.HeaderUserRole, "admin")
		}
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func (f *fixture) seed(t *testing.T, recs ...domain.QueryRecord) {
	t.Helper()
	if err := f.store.SaveAll(context.Background(), recs); err != nil {
		t.Fatal(err)
	}
}

func record(id, student, date string, st domain.Status) domain.QueryRecord {
	return domain.QueryRecord{
		ID:          id,
		StudentName: "Student " + student,
		StudentID:   student,
		QueryTitle:  "Title " + id,
		Date:        date,
		Status:      st,
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body %s)", v, err, w.Body.String())
	}
	return v
}

func expectCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status=%d want %d body=%s", w.Code, status, w.Body.String())
	}
	if code != "" {
		if er := decode[ErrorResponse](t, w); er.Code != code {
			t.Fatalf("code=%q want %q", er.Code, code)
		}
	}
}

func listIDs(items []domain.QueryRecord) []string {
	out := make([]string, len(items))
	for i, r := range items {
		out[i] = r.ID
	}
	return out
}
