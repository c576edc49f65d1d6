package services

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-quetras-backend/internal/domain"
	"github.com/tbourn/go-quetras-backend/internal/events"
	"github.com/tbourn/go-quetras-backend/internal/storage"
)

// ---------- test helpers ----------

func rec(id, student, date string, st domain.Status) domain.QueryRecord {
	return domain.QueryRecord{
		ID:          id,
		StudentName: "Student " + student,
		StudentID:   student,
		QueryTitle:  "Title " + id,
		Date:        date,
		Status:      st,
	}
}

func newStore(t *testing.T) (*QueryStore, *storage.MemoryKV, *events.Hub) {
	t.Helper()
	kv := storage.NewMemoryKV()
	hub := events.NewHub()
	s := NewQueryStore(kv, hub, zerolog.Nop())
	s.Now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s, kv, hub
}

func ids(records []domain.QueryRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func seed(t *testing.T, s *QueryStore, records ...domain.QueryRecord) {
	t.Helper()
	if err := s.SaveAll(context.Background(), records); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

// ---------- tests ----------

func TestLoadAll_EmptyAndMalformed(t *testing.T) {
	s, kv, _ := newStore(t)
	ctx := context.Background()

	if got := s.LoadAll(ctx); len(got) != 0 || got == nil {
		t.Fatalf("absent key: want empty non-nil slice, got %#v", got)
	}

	_ = kv.Set(ctx, storage.KeyQueries, []byte(`{"not":"an array"`))
	if got := s.LoadAll(ctx); len(got) != 0 {
		t.Fatalf("malformed: want empty, got %v", ids(got))
	}
}

func TestLoadAll_SkipsInvalidRecords(t *testing.T) {
	s, kv, _ := newStore(t)
	ctx := context.Background()

	doc := `[
		{"id":"TQ-1000","studentName":"A","studentId":"S1","queryTitle":"Fees","date":"2024-01-01","status":"new","hasOtherPayments":false},
		{"id":"TQ-1001","studentName":"B","studentId":"S2","queryTitle":"","date":"2024-01-01","status":"new"},
		{"id":"TQ-1002","studentName":"C","studentId":"S3","queryTitle":"Refund","date":"yesterday","status":"new"},
		{"id":"TQ-1003","studentName":"D","studentId":"S4","queryTitle":"Refund","date":"2024-01-01","status":"lost"},
		42,
		{"id":"TQ-1004","studentName":"E","studentId":"S5","queryTitle":"Loan","date":"2024-01-02T08:00:00Z","status":"pending","amount":12.5}
	]`
	_ = kv.Set(ctx, storage.KeyQueries, []byte(doc))

	got := s.LoadAll(ctx)
	if want := []string{"TQ-1000", "TQ-1004"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("ids=%v want %v", ids(got), want)
	}
	if got[1].Amount == nil || got[1].Amount.String() != "12.5" {
		t.Fatalf("amount not decoded: %+v", got[1].Amount)
	}
}

func TestWrite_KeepsUnreadableRecords(t *testing.T) {
	s, kv, _ := newStore(t)
	ctx := context.Background()
	doc := `[
		{"id":"TQ-1000","studentName":"A","studentId":"S1","queryTitle":"Fees","date":"2024-01-01","status":"new"},
		{"id":"TQ-1001","studentName":"B","studentId":"S2","queryTitle":"Refund","date":"2024-01-01","status":"lost"},
		42
	]`
	_ = kv.Set(ctx, storage.KeyQueries, []byte(doc))

	if err := s.Append(ctx, rec("TQ-1002", "S3", "2024-01-02", domain.StatusNew)); err != nil {
		t.Fatal(err)
	}
	if want := []string{"TQ-1002", "TQ-1000"}; !reflect.DeepEqual(ids(s.LoadAll(ctx)), want) {
		t.Fatalf("ids=%v", ids(s.LoadAll(ctx)))
	}
	raw, _, _ := kv.Get(ctx, storage.KeyQueries)
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 4 || string(items[3]) != "42" || !strings.Contains(string(items[2]), `"TQ-1001"`) {
		t.Fatalf("unreadable items not written back: %s", raw)
	}

	// An explicit overwrite replaces everything.
	seed(t, s, rec("TQ-1003", "S4", "2024-01-03", domain.StatusNew))
	raw, _, _ = kv.Get(ctx, storage.KeyQueries)
	if strings.Contains(string(raw), "TQ-1001") {
		t.Fatalf("SaveAll kept stale items: %s", raw)
	}
}

func TestLoadAll_Idempotent(t *testing.T) {
	s, _, _ := newStore(t)
	seed(t, s,
		rec("TQ-1000", "S1", "2024-01-01", domain.StatusNew),
		rec("TQ-1001", "S2", "2024-01-03", domain.StatusCancelled),
		rec("TQ-1002", "S3", "2024-01-02", domain.StatusPending),
	)
	ctx := context.Background()
	a := s.LoadAll(ctx)
	b := s.LoadAll(ctx)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("loads differ:\n%v\n%v", a, b)
	}
}

func TestAppend_PrependsAndRejectsDuplicate(t *testing.T) {
	s, _, hub := newStore(t)
	ctx := context.Background()
	ch, cancel := hub.Subscribe()
	defer cancel()

	// Scenario: empty store, append, load returns exactly that record.
	first := rec("TQ-1000", "S1", "2024-01-01", domain.StatusNew)
	if err := s.Append(ctx, first); err != nil {
		t.Fatalf("append: %v", err)
	}
	got := s.LoadAll(ctx)
	if len(got) != 1 || !reflect.DeepEqual(got[0], first) {
		t.Fatalf("got %+v", got)
	}

	if err := s.Append(ctx, rec("TQ-1001", "S2", "2024-01-02", domain.StatusNew)); err != nil {
		t.Fatalf("append 2: %v", err)
	}
	if want := []string{"TQ-1001", "TQ-1000"}; !reflect.DeepEqual(ids(s.LoadAll(ctx)), want) {
		t.Fatalf("order=%v want %v", ids(s.LoadAll(ctx)), want)
	}

	err := s.Append(ctx, rec("TQ-1000", "S9", "2024-01-09", domain.StatusNew))
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("want ErrDuplicateID, got %v", err)
	}
	if n := len(s.LoadAll(ctx)); n != 2 {
		t.Fatalf("duplicate was stored, len=%d", n)
	}

	select {
	case c := <-ch:
		if c.Op != events.OpAppend || c.ID != "TQ-1000" || c.Key != storage.KeyQueries {
			t.Fatalf("unexpected change %+v", c)
		}
	default:
		t.Fatal("expected a change notification")
	}
}

func TestNewID_UniqueAndExhausted(t *testing.T) {
	s, _, _ := newStore(t)

	// Force collisions: the random source always proposes TQ-1000.
	s.randIn = func(int) int { return 0 }
	existing := []domain.QueryRecord{
		rec("TQ-1000", "S1", "2024-01-01", domain.StatusNew),
		rec("TQ-1001", "S1", "2024-01-01", domain.StatusNew),
	}
	id, err := s.NewID(existing)
	if err != nil {
		t.Fatalf("NewID: %v", err)
	}
	if id != "TQ-1002" {
		t.Fatalf("fallback scan: got %s", id)
	}

	all := make([]domain.QueryRecord, 0, idMax-idMin+1)
	for n := idMin; n <= idMax; n++ {
		all = append(all, domain.QueryRecord{ID: formatID(n)})
	}
	if _, err := s.NewID(all); !errors.Is(err, ErrIDSpaceExhausted) {
		t.Fatalf("want ErrIDSpaceExhausted, got %v", err)
	}
}

func TestNewID_Format(t *testing.T) {
	s, _, _ := newStore(t)
	for i := 0; i < 50; i++ {
		id, err := s.NewID(nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(id) != 7 || id[:3] != "TQ-" || id[3] < '1' || id[3] > '9' {
			t.Fatalf("bad id %q", id)
		}
	}
}

func TestUpdateByID(t *testing.T) {
	s, _, _ := newStore(t)
	seed(t, s,
		rec("TQ-1000", "S1", "2024-01-02", domain.StatusNew),
		rec("TQ-1001", "S2", "2024-01-01", domain.StatusNew),
	)
	ctx := context.Background()

	title := "Updated"
	st := domain.StatusProcessing
	ok, err := s.UpdateByID(ctx, "TQ-1001", domain.QueryPatch{QueryTitle: &title, Status: &st})
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	got := s.LoadAll(ctx)
	if got[1].QueryTitle != "Updated" || got[1].Status != domain.StatusProcessing {
		t.Fatalf("patch not applied: %+v", got[1])
	}
	if got[1].UpdatedAt != "2024-03-01T12:00:00Z" {
		t.Fatalf("updatedAt=%q", got[1].UpdatedAt)
	}
	if got[1].Date != "2024-01-01" || got[1].ID != "TQ-1001" {
		t.Fatal("immutable fields changed")
	}

	ok, err = s.UpdateByID(ctx, "TQ-4040", domain.QueryPatch{QueryTitle: &title})
	if ok || err != nil {
		t.Fatalf("missing id: ok=%v err=%v", ok, err)
	}
}

func TestRemoveByID(t *testing.T) {
	s, _, _ := newStore(t)
	seed(t, s,
		rec("TQ-1000", "S1", "2024-01-02", domain.StatusNew),
		rec("TQ-1001", "S2", "2024-01-01", domain.StatusNew),
	)
	ctx := context.Background()

	ok, err := s.RemoveByID(ctx, "TQ-1000")
	if err != nil || !ok {
		t.Fatalf("remove: ok=%v err=%v", ok, err)
	}
	if want := []string{"TQ-1001"}; !reflect.DeepEqual(ids(s.LoadAll(ctx)), want) {
		t.Fatalf("got %v", ids(s.LoadAll(ctx)))
	}
	if ok, _ := s.RemoveByID(ctx, "TQ-1000"); ok {
		t.Fatal("second remove should report false")
	}
}

func TestCancelByID_RelocatesAndSurvivesReload(t *testing.T) {
	s, _, _ := newStore(t)
	seed(t, s,
		rec("TQ-1234", "S1", "2024-01-03", domain.StatusNew),
		rec("TQ-1235", "S2", "2024-01-02", domain.StatusProcessing),
		rec("TQ-1236", "S3", "2024-01-01", domain.StatusPending),
	)
	ctx := context.Background()

	ok, err := s.CancelByID(ctx, "TQ-1234")
	if err != nil || !ok {
		t.Fatalf("cancel: ok=%v err=%v", ok, err)
	}
	got := s.LoadAll(ctx)
	if want := []string{"TQ-1235", "TQ-1236", "TQ-1234"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("order=%v want %v", ids(got), want)
	}
	if got[2].Status != domain.StatusCancelled {
		t.Fatalf("status=%s", got[2].Status)
	}

	// A fresh store over the same KV sees the same order.
	other := NewQueryStore(s.KV, nil, zerolog.Nop())
	if !reflect.DeepEqual(ids(other.LoadAll(ctx)), ids(got)) {
		t.Fatal("cancel did not persist")
	}

	if ok, _ := s.CancelByID(ctx, "TQ-0000"); ok {
		t.Fatal("missing id should report false")
	}
}

func TestCancelByID_AlreadyCancelledWritesNothing(t *testing.T) {
	s, kv, hub := newStore(t)
	seed(t, s,
		rec("TQ-1000", "S1", "2024-01-01", domain.StatusCancelled),
		rec("TQ-1001", "S2", "2024-01-02", domain.StatusNew),
	)
	ctx := context.Background()
	before, _, _ := kv.Stat(ctx, storage.KeyQueries)
	published := hub.Version()

	ok, err := s.CancelByID(ctx, "TQ-1000")
	if !ok || err != nil {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	after, _, _ := kv.Stat(ctx, storage.KeyQueries)
	if after.Version != before.Version || hub.Version() != published {
		t.Fatal("repeat cancel must not write or publish")
	}
	if want := []string{"TQ-1000", "TQ-1001"}; !reflect.DeepEqual(ids(s.LoadAll(ctx)), want) {
		t.Fatalf("order changed: %v", ids(s.LoadAll(ctx)))
	}
}

func TestAppendNew_CheckAbortsWithoutWriting(t *testing.T) {
	s, kv, _ := newStore(t)
	ctx := context.Background()
	stop := errors.New("stop")

	_, _, err := s.AppendNew(ctx, rec("", "S1", "2024-01-01", domain.StatusNew), func([]domain.QueryRecord) error { return stop })
	if !errors.Is(err, stop) {
		t.Fatalf("err=%v", err)
	}
	if _, ok, _ := kv.Stat(ctx, storage.KeyQueries); ok {
		t.Fatal("aborted append wrote")
	}

	got, total, err := s.AppendNew(ctx, rec("", "S1", "2024-01-01", domain.StatusNew), nil)
	if err != nil || total != 1 || !strings.HasPrefix(got.ID, "TQ-") || len(got.ID) != 7 {
		t.Fatalf("got=%+v total=%d err=%v", got, total, err)
	}
}

func TestModify_ErrorWritesNothing(t *testing.T) {
	s, kv, _ := newStore(t)
	seed(t, s, rec("TQ-1000", "S1", "2024-01-01", domain.StatusNew))
	ctx := context.Background()
	before, _, _ := kv.Stat(ctx, storage.KeyQueries)

	boom := errors.New("boom")
	found, err := s.Modify(ctx, "TQ-1000", func(r *domain.QueryRecord) error {
		r.QueryTitle = "changed"
		return boom
	})
	if !found || !errors.Is(err, boom) {
		t.Fatalf("found=%v err=%v", found, err)
	}
	after, _, _ := kv.Stat(ctx, storage.KeyQueries)
	if before.Version != after.Version {
		t.Fatal("aborted modify must not write")
	}
	if s.LoadAll(ctx)[0].QueryTitle == "changed" {
		t.Fatal("aborted modify leaked")
	}
}

func TestWriteFailure_IsPersistError(t *testing.T) {
	s, kv, _ := newStore(t)
	kv.SetErr = errors.New("disk full")

	err := s.Append(context.Background(), rec("TQ-1000", "S1", "2024-01-01", domain.StatusNew))
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("want ErrPersist, got %v", err)
	}
}

func TestSortRecords_Scenario(t *testing.T) {
	in := []domain.QueryRecord{
		rec("A", "S1", "2024-01-02", domain.StatusNew),
		rec("B", "S2", "2024-01-03", domain.StatusCancelled),
	}
	if got := ids(SortRecords(in)); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("got %v", got)
	}
}

func TestSortRecords_Invariant(t *testing.T) {
	in := []domain.QueryRecord{
		rec("1", "S", "2024-01-01", domain.StatusCancelled),
		rec("2", "S", "2024-01-05", domain.StatusNew),
		rec("3", "S", "2024-01-03", domain.StatusCompleted),
		rec("4", "S", "2024-01-05", domain.StatusCancelled),
		rec("5", "S", "2024-01-03", domain.StatusPending),
		rec("6", "S", "2024-01-07", domain.StatusProcessing),
		rec("7", "S", "2024-01-02", domain.StatusCancelled),
	}
	got := SortRecords(in)

	seenCancelled := false
	for i, r := range got {
		if r.Status == domain.StatusCancelled {
			seenCancelled = true
		} else if seenCancelled {
			t.Fatalf("active record %s after a cancelled one", r.ID)
		}
		if i > 0 && got[i-1].Active() == r.Active() && got[i-1].Date < r.Date {
			t.Fatalf("dates increase at %d: %s < %s", i, got[i-1].Date, r.Date)
		}
	}
	// Equal dates keep insertion order: 3 before 5.
	if want := []string{"6", "2", "3", "5", "4", "7", "1"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("got %v want %v", ids(got), want)
	}
	// Input untouched.
	if in[0].ID != "1" {
		t.Fatal("SortRecords mutated its input")
	}
}
