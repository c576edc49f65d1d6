// Package services – QueryService
//
// QueryService exposes the application use-cases (submit, list, edit,
// cancel, delete, notes, notifications) on top of QueryStore, QueryFilter
// and SubmissionGuard. It applies role rules: admins see and change every
// record; students see their own and may only edit open records or cancel
// new ones.
//
// Notifications are fire-and-forget: their result is logged and never
// changes the outcome of the operation that triggered them.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-quetras-backend/internal/domain"
	"github.com/tbourn/go-quetras-backend/internal/events"
	"github.com/tbourn/go-quetras-backend/internal/notify"
)

// topQueueSize is the stored list length (cancelled records included) at
// or below which a new submission earns the "top 10" notification.
const topQueueSize = 10

// adminScope is the view-cache scope shared by every admin.
const adminScope = "*"

// SubmitInput is what a student provides for a new query.
type SubmitInput struct {
	QueryTitle       string
	Description      string
	Amount           *decimal.Decimal
	HasOtherPayments bool
}

// ListResult is one page of a filtered list.
type ListResult struct {
	Items      []domain.QueryRecord
	Total      int
	TotalPages int
}

// QueryStats counts the records visible to an actor.
type QueryStats struct {
	Total    int                   `json:"total"`
	Active   int                   `json:"active"`
	ByStatus map[domain.Status]int `json:"byStatus"`
}

// QueryService implements the query use-cases.
type QueryService struct {
	Store    *QueryStore
	Guard    *SubmissionGuard
	Notifier notify.Sender
	Cache    *ViewCache
	Log      zerolog.Logger

	// Now is the clock for timestamps; Guard.Location decides the day.
	Now func() time.Time
}

// NewQueryService wires a service. notifier and cache may be nil.
func NewQueryService(store *QueryStore, guard *SubmissionGuard, notifier notify.Sender, cache *ViewCache, log zerolog.Logger) *QueryService {
	return &QueryService{
		Store:    store,
		Guard:    guard,
		Notifier: notifier,
		Cache:    cache,
		Log:      log,
		Now:      time.Now,
	}
}

func (s *QueryService) start(ctx context.Context, name string, actor domain.Actor, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tr := otel.Tracer("services/QueryService")
	attrs = append(attrs,
		attribute.String("user.id", actor.ID),
		attribute.String("user.role", string(actor.Role)),
	)
	return tr.Start(ctx, name, trace.WithAttributes(attrs...))
}

func fail(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// CanSubmit reports whether the actor may submit a query today.
func (s *QueryService) CanSubmit(ctx context.Context, actor domain.Actor) bool {
	if s.Guard == nil {
		return true
	}
	return s.Guard.CanSubmit(ctx, actor.ID)
}

// Submit validates in, enforces the one-per-day rule, and prepends a new
// record with a fresh TQ-#### id.
func (s *QueryService) Submit(ctx context.Context, actor domain.Actor, in SubmitInput) (*domain.QueryRecord, error) {
	ctx, span := s.start(ctx, "Submit", actor)
	defer span.End()

	now := s.now()
	name := strings.TrimSpace(actor.Name)
	if name == "" {
		name = actor.ID
	}
	rec := domain.QueryRecord{
		ID:               "TQ-0000",
		StudentName:      name,
		StudentID:        actor.ID,
		QueryTitle:       strings.TrimSpace(in.QueryTitle),
		Description:      strings.TrimSpace(in.Description),
		Amount:           in.Amount,
		Date:             s.today(),
		Status:           domain.StatusNew,
		HasOtherPayments: in.HasOtherPayments,
		Timestamp:        now.UTC().Format(time.RFC3339),
		Timeline: []domain.TimelineEntry{{
			Date:        s.today(),
			Title:       "Query Submitted",
			Description: "Query was submitted by the student.",
		}},
	}
	if fields := domain.Validate(rec); len(fields) > 0 {
		return nil, fail(span, invalid(fields...))
	}

	var check func([]domain.QueryRecord) error
	if s.Guard != nil {
		check = func(records []domain.QueryRecord) error {
			if !s.Guard.Allows(records, actor.ID) {
				return ErrSubmissionLimit
			}
			return nil
		}
	}
	rec, total, err := s.Store.AppendNew(ctx, rec, check)
	if errors.Is(err, ErrSubmissionLimit) {
		submissionsDenied.Inc()
	}
	if err != nil {
		return nil, fail(span, err)
	}
	queriesSubmitted.Inc()
	span.SetAttributes(attribute.String("query.id", rec.ID))

	if total <= topQueueSize {
		s.send(ctx, rec.StudentID,
			"You are in the top 10 queries!",
			"You will receive notifications about your query status.")
	}
	return &rec, nil
}

// List returns the page of records visible to actor that pass f, in store
// order (cancelled last, newest first).
func (s *QueryService) List(ctx context.Context, actor domain.Actor, f QueryFilter, page, pageSize int) ListResult {
	ctx, span := s.start(ctx, "List", actor,
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)
	defer span.End()

	view := s.view(ctx, actor, f)
	items, pages := Paginate(view, page, pageSize)
	return ListResult{Items: items, Total: len(view), TotalPages: pages}
}

func (s *QueryService) view(ctx context.Context, actor domain.Actor, f QueryFilter) []domain.QueryRecord {
	scope := actor.ID
	if actor.IsAdmin() {
		scope = adminScope
	}
	if s.Cache == nil {
		return f.Apply(visible(actor, s.Store.LoadSorted(ctx)))
	}
	version, ok := s.Store.Version(ctx)
	if !ok {
		return f.Apply(visible(actor, s.Store.LoadSorted(ctx)))
	}
	key := ViewKey(version, scope, f)
	if v, hit := s.Cache.Get(key); hit {
		return v
	}
	view := f.Apply(visible(actor, s.Store.LoadSorted(ctx)))
	// Only cache when no write landed during the read.
	if after, ok := s.Store.Version(ctx); ok && after == version {
		s.Cache.Set(key, view)
	}
	return view
}

// Get returns one record. A record the actor may not see is ErrForbidden;
// an absent one is ErrQueryNotFound.
func (s *QueryService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.QueryRecord, error) {
	ctx, span := s.start(ctx, "Get", actor, attribute.String("query.id", id))
	defer span.End()

	rec, err := s.find(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	if !actor.IsAdmin() && !actor.Owns(*rec) {
		return nil, fail(span, ErrForbidden)
	}
	return rec, nil
}

// Edit applies patch under the role rules. Owners may change title,
// description, amount and the other-payments flag while the record is
// open, and may set status only from new to cancelled. Admins may change
// any field and move an open record to any status; a terminal record
// cannot change status. Cancelling relocates the record to the end.
func (s *QueryService) Edit(ctx context.Context, actor domain.Actor, id string, patch domain.QueryPatch) (*domain.QueryRecord, error) {
	ctx, span := s.start(ctx, "Edit", actor, attribute.String("query.id", id))
	defer span.End()

	if patch.Empty() {
		return nil, fail(span, invalid(domain.FieldError{Field: "patch", Rule: "required"}))
	}
	if patch.QueryTitle != nil {
		t := strings.TrimSpace(*patch.QueryTitle)
		patch.QueryTitle = &t
	}

	var (
		updated   domain.QueryRecord
		statusMsg string
	)
	found, err := s.Store.Modify(ctx, id, func(rec *domain.QueryRecord) error {
		if err := checkEdit(actor, *rec, patch); err != nil {
			return err
		}
		prev := rec.Status
		patch.Apply(rec)
		if fields := domain.Validate(*rec); len(fields) > 0 {
			return invalid(fields...)
		}
		if rec.Status != prev {
			statusMsg = fmt.Sprintf("Status changed from %s to %s.", prev, rec.Status)
			rec.Timeline = append(rec.Timeline, domain.TimelineEntry{
				Date:        s.today(),
				Title:       "Status Updated",
				Description: statusMsg,
			})
		}
		updated = *rec
		return nil
	})
	if !found {
		return nil, fail(span, ErrQueryNotFound)
	}
	if err != nil {
		return nil, fail(span, err)
	}

	if statusMsg != "" && actor.IsAdmin() {
		s.send(ctx, updated.StudentID, "Update on Query #"+updated.ID, updateMessage(updated))
	}
	return &updated, nil
}

func checkEdit(actor domain.Actor, rec domain.QueryRecord, p domain.QueryPatch) error {
	if p.Status != nil && !p.Status.Valid() {
		return invalid(domain.FieldError{Field: "status", Rule: "oneof"})
	}
	statusChange := p.Status != nil && *p.Status != rec.Status

	if actor.IsAdmin() {
		if statusChange && rec.Status.Terminal() {
			return ErrInvalidTransition
		}
		return nil
	}
	if !actor.Owns(rec) {
		return ErrForbidden
	}
	if p.CashierWindow != nil {
		return ErrForbidden
	}
	if rec.Status.Terminal() {
		return ErrInvalidTransition
	}
	if statusChange {
		if *p.Status != domain.StatusCancelled {
			return ErrForbidden
		}
		if rec.Status != domain.StatusNew {
			return ErrInvalidTransition
		}
	}
	return nil
}

// Cancel soft-cancels a record and moves it to the end of the list. Owners
// may cancel only new records; admins any open record. Cancelling a
// cancelled record returns it unchanged.
func (s *QueryService) Cancel(ctx context.Context, actor domain.Actor, id string) (*domain.QueryRecord, error) {
	ctx, span := s.start(ctx, "Cancel", actor, attribute.String("query.id", id))
	defer span.End()

	var (
		updated domain.QueryRecord
		noop    bool
	)
	found, err := s.Store.Modify(ctx, id, func(rec *domain.QueryRecord) error {
		if !actor.IsAdmin() && !actor.Owns(*rec) {
			return ErrForbidden
		}
		if rec.Status == domain.StatusCancelled {
			updated, noop = *rec, true
			return errNoop
		}
		if rec.Status.Terminal() || (!actor.IsAdmin() && rec.Status != domain.StatusNew) {
			return ErrInvalidTransition
		}
		rec.Status = domain.StatusCancelled
		rec.Timeline = append(rec.Timeline, domain.TimelineEntry{
			Date:        s.today(),
			Title:       "Query Cancelled",
			Description: "Query was cancelled by " + string(actor.Role) + ".",
		})
		updated = *rec
		return nil
	})
	if !found {
		return nil, fail(span, ErrQueryNotFound)
	}
	if noop {
		return &updated, nil
	}
	if err != nil {
		return nil, fail(span, err)
	}
	if actor.IsAdmin() && !actor.Owns(updated) {
		s.send(ctx, updated.StudentID, "Update on Query #"+updated.ID, updateMessage(updated))
	}
	return &updated, nil
}

// errNoop aborts a Modify without writing.
var errNoop = errors.New("no change")

// Delete hard-removes a record. Owner or admin only.
func (s *QueryService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	ctx, span := s.start(ctx, "Delete", actor, attribute.String("query.id", id))
	defer span.End()

	rec, err := s.find(ctx, id)
	if err != nil {
		return fail(span, err)
	}
	if !actor.IsAdmin() && !actor.Owns(*rec) {
		return fail(span, ErrForbidden)
	}
	found, err := s.Store.RemoveByID(ctx, id)
	if err != nil {
		return fail(span, err)
	}
	if !found {
		return fail(span, ErrQueryNotFound)
	}
	return nil
}

// AddNote appends an admin note to the record's timeline and notifies the
// student.
func (s *QueryService) AddNote(ctx context.Context, actor domain.Actor, id, note string) (*domain.QueryRecord, error) {
	ctx, span := s.start(ctx, "AddNote", actor, attribute.String("query.id", id))
	defer span.End()

	if !actor.IsAdmin() {
		return nil, fail(span, ErrForbidden)
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, fail(span, invalid(domain.FieldError{Field: "note", Rule: "required"}))
	}

	var updated domain.QueryRecord
	found, err := s.Store.Modify(ctx, id, func(rec *domain.QueryRecord) error {
		rec.Timeline = append(rec.Timeline, domain.TimelineEntry{
			Date:        s.today(),
			Title:       "Note Added",
			Description: note,
		})
		updated = *rec
		return nil
	})
	if !found {
		return nil, fail(span, ErrQueryNotFound)
	}
	if err != nil {
		return nil, fail(span, err)
	}
	s.send(ctx, updated.StudentID, "New note on Query #"+updated.ID, note)
	return &updated, nil
}

// Notify sends the student a status update for the record. Admin only.
// The send result is returned for display; a failed send is not an error.
func (s *QueryService) Notify(ctx context.Context, actor domain.Actor, id string) (notify.Result, error) {
	ctx, span := s.start(ctx, "Notify", actor, attribute.String("query.id", id))
	defer span.End()

	if !actor.IsAdmin() {
		return notify.Result{}, fail(span, ErrForbidden)
	}
	rec, err := s.find(ctx, id)
	if err != nil {
		return notify.Result{}, fail(span, err)
	}
	return s.send(ctx, rec.StudentID, "Update on Query #"+rec.ID, updateMessage(*rec)), nil
}

// Stats counts the records visible to actor per status.
func (s *QueryService) Stats(ctx context.Context, actor domain.Actor) QueryStats {
	ctx, span := s.start(ctx, "Stats", actor)
	defer span.End()

	st := QueryStats{ByStatus: make(map[domain.Status]int, len(domain.Statuses))}
	for _, v := range domain.Statuses {
		st.ByStatus[v] = 0
	}
	for _, r := range visible(actor, s.Store.LoadAll(ctx)) {
		st.Total++
		st.ByStatus[r.Status]++
		if r.Active() {
			st.Active++
		}
	}
	return st
}

// Subscribe exposes store change events, or nil when no hub is wired.
func (s *QueryService) Subscribe() (<-chan events.Change, func()) {
	if s.Store.Hub == nil {
		return nil, func() {}
	}
	return s.Store.Hub.Subscribe()
}

func (s *QueryService) find(ctx context.Context, id string) (*domain.QueryRecord, error) {
	for _, r := range s.Store.LoadAll(ctx) {
		if r.ID == id {
			rec := r
			return &rec, nil
		}
	}
	return nil, ErrQueryNotFound
}

func (s *QueryService) send(ctx context.Context, studentID, title, message string) notify.Result {
	if s.Notifier == nil {
		return notify.Result{Success: false, Message: "notifications disabled"}
	}
	r := s.Notifier.Send(ctx, studentID, title, message)
	ev := s.Log.Debug()
	if !r.Success {
		ev = s.Log.Warn()
	}
	ev.Str("user_id", studentID).Str("title", title).Bool("success", r.Success).Str("result", r.Message).Msg("notification")
	return r
}

func (s *QueryService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *QueryService) today() string {
	if s.Guard != nil {
		return s.Guard.Today()
	}
	return s.now().Format(domain.DateLayout)
}

func updateMessage(r domain.QueryRecord) string {
	return fmt.Sprintf("Your %s query has been updated. Current status: %s.", strings.ToLower(r.QueryTitle), r.Status)
}

// visible filters records down to what actor may see.
func visible(actor domain.Actor, records []domain.QueryRecord) []domain.QueryRecord {
	if actor.IsAdmin() {
		return records
	}
	out := make([]domain.QueryRecord, 0, len(records))
	for _, r := range records {
		if actor.Owns(r) {
			out = append(out, r)
		}
	}
	return out
}
