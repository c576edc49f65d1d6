package handlers

import (
	"context"
	"net/http"
	"testing"
)

func TestNotifications_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.inbox.Send(ctx, "S1", "Update on Query #TQ-1001", "first")
	f.inbox.Send(ctx, "S1", "Update on Query #TQ-1001", "second")
	f.inbox.Send(ctx, "S2", "Other", "not yours")

	w := f.do(t, asStudent, http.MethodGet, "/api/v1/notifications", nil)
	got := decode[NotificationsResponse](t, w)
	if w.Code != http.StatusOK || len(got.Items) != 2 || got.Unread != 2 {
		t.Fatalf("list: %d %+v", w.Code, got)
	}
	if got.Items[0].Message != "second" {
		t.Fatalf("newest first expected: %+v", got.Items)
	}

	if w = f.do(t, asStudent, http.MethodPost, "/api/v1/notifications/"+got.Items[0].ID+"/read", nil); w.Code != http.StatusNoContent {
		t.Fatalf("mark read: %d", w.Code)
	}
	expectCode(t, f.do(t, asStudent, http.MethodPost, "/api/v1/notifications/notif-missing/read", nil), http.StatusNotFound, ErrCodeNotFound)
	if got = decode[NotificationsResponse](t, f.do(t, asStudent, http.MethodGet, "/api/v1/notifications", nil)); got.Unread != 1 {
		t.Fatalf("unread after one read: %d", got.Unread)
	}

	// Another user cannot mark S1's notification.
	expectCode(t, f.do(t, asOther, http.MethodPost, "/api/v1/notifications/"+got.Items[1].ID+"/read", nil), http.StatusNotFound, ErrCodeNotFound)

	if w = f.do(t, asStudent, http.MethodPost, "/api/v1/notifications/read-all", nil); w.Code != http.StatusNoContent {
		t.Fatalf("read-all: %d", w.Code)
	}
	if got = decode[NotificationsResponse](t, f.do(t, asStudent, http.MethodGet, "/api/v1/notifications", nil)); got.Unread != 0 {
		t.Fatalf("unread after read-all: %d", got.Unread)
	}

	if w = f.do(t, asStudent, http.MethodDelete, "/api/v1/notifications", nil); w.Code != http.StatusNoContent {
		t.Fatalf("clear: %d", w.Code)
	}
	if got = decode[NotificationsResponse](t, f.do(t, asStudent, http.MethodGet, "/api/v1/notifications", nil)); len(got.Items) != 0 || got.Items == nil {
		t.Fatalf("after clear: %+v", got)
	}
	if got = decode[NotificationsResponse](t, f.do(t, asOther, http.MethodGet, "/api/v1/notifications", nil)); len(got.Items) != 1 {
		t.Fatalf("other user's inbox untouched: %+v", got)
	}
}
