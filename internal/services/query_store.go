package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-quetras-backend/internal/domain"
	"github.com/tbourn/go-quetras-backend/internal/events"
	"github.com/tbourn/go-quetras-backend/internal/storage"
)

// ID space of generated query identifiers: TQ-1000 .. TQ-9999.
const (
	idMin = 1000
	idMax = 9999
)

// QueryStore is the single source of truth for the query list. The whole
// list is one JSON array under Key; every mutation is a read-modify-write
// of that document, serialized by the store's mutex.
//
// Read and parse failures are recovered (the store reads as empty). Write
// failures are returned wrapped in ErrPersist.
type QueryStore struct {
	KV  storage.KV
	Key string
	Hub *events.Hub
	Log zerolog.Logger

	// Now is the clock used for updatedAt stamps.
	Now func() time.Time

	mu     sync.Mutex
	randIn func(n int) int
	// unreadable holds the raw items the last load could not accept. They
	// are written back after the valid records so an unrelated write never
	// erases them.
	unreadable []json.RawMessage
}

// NewQueryStore returns a store over kv under storage.KeyQueries. hub may
// be nil, in which case NotifyChange is a no-op.
func NewQueryStore(kv storage.KV, hub *events.Hub, log zerolog.Logger) *QueryStore {
	return &QueryStore{
		KV:     kv,
		Key:    storage.KeyQueries,
		Hub:    hub,
		Log:    log,
		Now:    time.Now,
		randIn: rand.IntN,
	}
}

// LoadAll returns the persisted list in persisted order. An absent key
// yields an empty list; unreadable or malformed content is logged and also
// yields an empty list. Individual records failing the schema are left out
// of the result but kept in storage.
func (s *QueryStore) LoadAll(ctx context.Context) []domain.QueryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// LoadSorted returns LoadAll ordered by SortRecords.
func (s *QueryStore) LoadSorted(ctx context.Context) []domain.QueryRecord {
	return SortRecords(s.LoadAll(ctx))
}

// SaveAll overwrites the persisted list with records in one write and
// notifies observers. Previously kept unreadable items are discarded.
func (s *QueryStore) SaveAll(ctx context.Context, records []domain.QueryRecord) error {
	s.mu.Lock()
	s.unreadable = nil
	err := s.save(ctx, records)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.NotifyChange(events.Change{Op: events.OpSave})
	return nil
}

// Append prepends rec (newest first) and persists. It rejects an id that is
// already present with ErrDuplicateID.
func (s *QueryStore) Append(ctx context.Context, rec domain.QueryRecord) error {
	s.mu.Lock()
	records := s.load(ctx)
	for _, r := range records {
		if r.ID == rec.ID {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
		}
	}
	records = append([]domain.QueryRecord{rec}, records...)
	err := s.save(ctx, records)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.NotifyChange(events.Change{Op: events.OpAppend, ID: rec.ID})
	return nil
}

// AppendNew assigns rec a fresh identifier and prepends it, all under the
// store lock. check runs first on the current records; a non-nil result
// aborts without writing and is returned as is. The stored record and the
// list length after the insert are returned.
func (s *QueryStore) AppendNew(ctx context.Context, rec domain.QueryRecord, check func([]domain.QueryRecord) error) (domain.QueryRecord, int, error) {
	s.mu.Lock()
	records := s.load(ctx)
	if check != nil {
		if err := check(records); err != nil {
			s.mu.Unlock()
			return rec, len(records), err
		}
	}
	id, err := s.NewID(records)
	if err != nil {
		s.mu.Unlock()
		return rec, len(records), err
	}
	rec.ID = id
	records = append([]domain.QueryRecord{rec}, records...)
	err = s.save(ctx, records)
	s.mu.Unlock()
	if err != nil {
		return rec, len(records) - 1, err
	}
	s.NotifyChange(events.Change{Op: events.OpAppend, ID: rec.ID})
	return rec, len(records), nil
}

// Version identifies the persisted list's current state. It is the
// backend's write counter when the KV reports one, so writes made by other
// processes are seen; otherwise it is the hub's publish counter. ok is
// false when neither is available.
func (s *QueryStore) Version(ctx context.Context) (v string, ok bool) {
	if st, isStatter := s.KV.(storage.Statter); isStatter {
		stat, _, err := st.Stat(ctx, s.Key)
		if err != nil {
			return "", false
		}
		return fmt.Sprintf("kv:%d:%d", stat.Version, stat.UpdatedAt.UnixNano()), true
	}
	if s.Hub != nil {
		return fmt.Sprintf("hub:%d", s.Hub.Version()), true
	}
	return "", false
}

// NewID picks an identifier not used by records. It tries random
// candidates first and falls back to a scan, so it only fails when all
// 9000 identifiers are taken.
func (s *QueryStore) NewID(records []domain.QueryRecord) (string, error) {
	used := make(map[string]struct{}, len(records))
	for _, r := range records {
		used[r.ID] = struct{}{}
	}
	randIn := s.randIn
	if randIn == nil {
		randIn = rand.IntN
	}
	for i := 0; i < 32; i++ {
		id := formatID(idMin + randIn(idMax-idMin+1))
		if _, taken := used[id]; !taken {
			return id, nil
		}
	}
	for n := idMin; n <= idMax; n++ {
		id := formatID(n)
		if _, taken := used[id]; !taken {
			return id, nil
		}
	}
	return "", ErrIDSpaceExhausted
}

func formatID(n int) string { return fmt.Sprintf("TQ-%04d", n) }

// UpdateByID applies patch to the record with id and persists. It returns
// false (and no error) when id is absent. A patch that cancels the record
// relocates it like CancelByID.
func (s *QueryStore) UpdateByID(ctx context.Context, id string, patch domain.QueryPatch) (bool, error) {
	return s.Modify(ctx, id, func(rec *domain.QueryRecord) error {
		patch.Apply(rec)
		return nil
	})
}

// Modify runs fn on the record with id under the store lock and persists
// the result. If fn returns an error nothing is written and the error is
// returned. A record whose status becomes cancelled is moved to the end of
// the list.
func (s *QueryStore) Modify(ctx context.Context, id string, fn func(rec *domain.QueryRecord) error) (bool, error) {
	s.mu.Lock()
	records := s.load(ctx)
	idx := indexOf(records, id)
	if idx < 0 {
		s.mu.Unlock()
		return false, nil
	}
	rec := records[idx]
	wasCancelled := rec.Status == domain.StatusCancelled
	if err := fn(&rec); err != nil {
		s.mu.Unlock()
		return true, err
	}
	rec.ID = records[idx].ID
	rec.UpdatedAt = s.now().UTC().Format(time.RFC3339)

	op := events.OpUpdate
	if rec.Status == domain.StatusCancelled && !wasCancelled {
		records = moveToEnd(records, idx, rec)
		op = events.OpCancel
	} else {
		records[idx] = rec
	}
	err := s.save(ctx, records)
	s.mu.Unlock()
	if err != nil {
		return true, err
	}
	s.NotifyChange(events.Change{Op: op, ID: id})
	return true, nil
}

// RemoveByID deletes the record with id and persists. It returns false
// when id is absent.
func (s *QueryStore) RemoveByID(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	records := s.load(ctx)
	idx := indexOf(records, id)
	if idx < 0 {
		s.mu.Unlock()
		return false, nil
	}
	records = append(records[:idx], records[idx+1:]...)
	err := s.save(ctx, records)
	s.mu.Unlock()
	if err != nil {
		return true, err
	}
	s.NotifyChange(events.Change{Op: events.OpRemove, ID: id})
	return true, nil
}

// CancelByID sets the record's status to cancelled and moves it to the end
// of the persisted list. Cancelling an already cancelled record writes
// nothing and still reports true.
func (s *QueryStore) CancelByID(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	records := s.load(ctx)
	idx := indexOf(records, id)
	if idx < 0 {
		s.mu.Unlock()
		return false, nil
	}
	rec := records[idx]
	if rec.Status == domain.StatusCancelled {
		s.mu.Unlock()
		return true, nil
	}
	rec.Status = domain.StatusCancelled
	rec.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	records = moveToEnd(records, idx, rec)
	err := s.save(ctx, records)
	s.mu.Unlock()
	if err != nil {
		return true, err
	}
	s.NotifyChange(events.Change{Op: events.OpCancel, ID: id})
	return true, nil
}

// NotifyChange publishes c to the hub so open views can re-read. It is a
// hint, not a lock.
func (s *QueryStore) NotifyChange(c events.Change) {
	if s.Hub == nil {
		return
	}
	if c.Key == "" {
		c.Key = s.Key
	}
	s.Hub.Publish(c)
}

// SortRecords returns a copy of records with every cancelled record after
// every other record, each partition ordered by date descending. Equal
// dates keep their relative order.
func SortRecords(records []domain.QueryRecord) []domain.QueryRecord {
	out := make([]domain.QueryRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := out[i].Active(), out[j].Active()
		if ai != aj {
			return ai
		}
		return dayAfter(out[i], out[j])
	})
	return out
}

// dayAfter reports whether a is dated strictly later than b.
func dayAfter(a, b domain.QueryRecord) bool {
	da, okA := a.Day()
	db, okB := b.Day()
	if okA && okB {
		return da.After(db)
	}
	// Unparseable dates sort last within their partition.
	return okA && !okB
}

// load must be called with s.mu held.
func (s *QueryStore) load(ctx context.Context) []domain.QueryRecord {
	s.unreadable = nil
	raw, ok, err := s.KV.Get(ctx, s.Key)
	if err != nil {
		s.Log.Error().Err(err).Str("key", s.Key).Msg("query store read failed; treating as empty")
		return []domain.QueryRecord{}
	}
	if !ok || len(raw) == 0 {
		return []domain.QueryRecord{}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		storeParseFailures.WithLabelValues("document").Inc()
		s.Log.Error().Err(fmt.Errorf("%w: %v", ErrParse, err)).Str("key", s.Key).Msg("query store content malformed; treating as empty")
		return []domain.QueryRecord{}
	}

	out := make([]domain.QueryRecord, 0, len(items))
	for i, item := range items {
		var rec domain.QueryRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			storeParseFailures.WithLabelValues("record").Inc()
			s.Log.Warn().Err(err).Int("index", i).Msg("skipping undecodable query record")
			s.unreadable = append(s.unreadable, item)
			continue
		}
		if fields := domain.Validate(rec); len(fields) > 0 {
			storeParseFailures.WithLabelValues("record").Inc()
			s.Log.Warn().Str("id", rec.ID).Int("index", i).Interface("fields", fields).Msg("skipping invalid query record")
			s.unreadable = append(s.unreadable, item)
			continue
		}
		out = append(out, rec)
	}
	return out
}

// save must be called with s.mu held.
func (s *QueryStore) save(ctx context.Context, records []domain.QueryRecord) error {
	if records == nil {
		records = []domain.QueryRecord{}
	}
	items := make([]any, 0, len(records)+len(s.unreadable))
	for _, r := range records {
		items = append(items, r)
	}
	for _, raw := range s.unreadable {
		items = append(items, raw)
	}
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPersist, err)
	}
	if err := s.KV.Set(ctx, s.Key, b); err != nil {
		s.Log.Error().Err(err).Str("key", s.Key).Msg("query store write failed")
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

func (s *QueryStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func indexOf(records []domain.QueryRecord, id string) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}

func moveToEnd(records []domain.QueryRecord, idx int, rec domain.QueryRecord) []domain.QueryRecord {
	out := make([]domain.QueryRecord, 0, len(records))
	out = append(out, records[:idx]...)
	out = append(out, records[idx+1:]...)
	return append(out, rec)
}
