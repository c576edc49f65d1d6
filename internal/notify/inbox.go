package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-quetras-backend/internal/domain"
	"github.com/tbourn/go-quetras-backend/internal/storage"
)

// Inbox keeps per-user notification lists (newest first) in one KV document
// shaped {"<userId>": [Notification, ...]}.
type Inbox struct {
	KV  storage.KV
	Key string
	Log zerolog.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewInbox returns an Inbox persisting under storage.KeyNotifications.
func NewInbox(kv storage.KV, log zerolog.Logger) *Inbox {
	return &Inbox{KV: kv, Key: storage.KeyNotifications, Log: log, now: time.Now}
}

// Send implements Sender by prepending a notification to the user's inbox.
func (in *Inbox) Send(ctx context.Context, studentID, title, message string) Result {
	n := domain.Notification{
		ID:        "notif-" + uuid.NewString(),
		UserID:    studentID,
		Title:     title,
		Message:   message,
		Timestamp: in.now().UTC(),
	}
	err := in.mutate(ctx, func(all map[string][]domain.Notification) bool {
		all[studentID] = append([]domain.Notification{n}, all[studentID]...)
		return true
	})
	if err != nil {
		in.Log.Warn().Err(err).Str("user_id", studentID).Msg("inbox send failed")
		return record("inbox", Result{Success: false, Message: err.Error()})
	}
	in.Log.Debug().Str("user_id", studentID).Str("title", title).Msg("notification stored")
	return record("inbox", Result{Success: true, Message: "notification sent"})
}

// List returns the user's notifications, newest first.
func (in *Inbox) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	all, err := in.load(ctx)
	if err != nil {
		return nil, err
	}
	out := all[userID]
	if out == nil {
		out = []domain.Notification{}
	}
	return out, nil
}

// MarkRead flags one notification as read; it reports whether it was found.
func (in *Inbox) MarkRead(ctx context.Context, userID, id string) (bool, error) {
	found := false
	err := in.mutate(ctx, func(all map[string][]domain.Notification) bool {
		for i := range all[userID] {
			if all[userID][i].ID == id {
				all[userID][i].Read = true
				found = true
				return true
			}
		}
		return false
	})
	return found, err
}

// MarkAllRead flags every notification of the user as read.
func (in *Inbox) MarkAllRead(ctx context.Context, userID string) error {
	return in.mutate(ctx, func(all map[string][]domain.Notification) bool {
		list := all[userID]
		for i := range list {
			list[i].Read = true
		}
		return len(list) > 0
	})
}

// Clear empties the user's inbox.
func (in *Inbox) Clear(ctx context.Context, userID string) error {
	return in.mutate(ctx, func(all map[string][]domain.Notification) bool {
		all[userID] = []domain.Notification{}
		return true
	})
}

// mutate runs fn over the decoded document under the inbox lock and
// persists the result when fn reports a change.
func (in *Inbox) mutate(ctx context.Context, fn func(map[string][]domain.Notification) bool) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	all, err := in.load(ctx)
	if err != nil {
		return err
	}
	if !fn(all) {
		return nil
	}
	b, err := json.Marshal(all)
	if err != nil {
		return err
	}
	if err := in.KV.Set(ctx, in.Key, b); err != nil {
		return fmt.Errorf("save notifications: %w", err)
	}
	return nil
}

// load decodes the inbox document. A corrupt document is logged and
// treated as empty.
func (in *Inbox) load(ctx context.Context) (map[string][]domain.Notification, error) {
	raw, ok, err := in.KV.Get(ctx, in.Key)
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	all := map[string][]domain.Notification{}
	if !ok {
		return all, nil
	}
	if err := json.Unmarshal(raw, &all); err != nil {
		in.Log.Error().Err(err).Msg("failed to parse stored notifications")
		return map[string][]domain.Notification{}, nil
	}
	return all, nil
}
