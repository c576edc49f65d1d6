package services

import (
	"context"
	"time"

	"github.com/tbourn/go-quetras-backend/internal/domain"
)

// RecordLoader is the read side of QueryStore used by the guard.
type RecordLoader interface {
	LoadAll(ctx context.Context) []domain.QueryRecord
}

// SubmissionGuard enforces at most one query per student per calendar day.
//
// The check only sees what this deployment's store holds, so it is
// advisory: two backends with separate stores can each accept a query from
// the same student on the same day.
type SubmissionGuard struct {
	Store RecordLoader
	// Location defines "today". Nil means time.Local.
	Location *time.Location
	Now      func() time.Time
}

// NewSubmissionGuard returns a guard over store evaluating days in loc.
func NewSubmissionGuard(store RecordLoader, loc *time.Location) *SubmissionGuard {
	return &SubmissionGuard{Store: store, Location: loc, Now: time.Now}
}

// Today returns the current calendar day in the guard's location.
func (g *SubmissionGuard) Today() string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	loc := g.Location
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc).Format(domain.DateLayout)
}

// CanSubmit reports false iff studentID already has a record dated today.
// It fails open: the store recovers read failures as an empty list, so a
// transient read error lets the submission through.
func (g *SubmissionGuard) CanSubmit(ctx context.Context, studentID string) bool {
	if g.Store == nil {
		return true
	}
	return g.Allows(g.Store.LoadAll(ctx), studentID)
}

// Allows is CanSubmit over an already loaded list. QueryService calls it
// inside the store's write lock so concurrent submissions see each other.
func (g *SubmissionGuard) Allows(records []domain.QueryRecord, studentID string) bool {
	today := g.Today()
	for _, r := range records {
		if r.StudentID != studentID {
			continue
		}
		day, ok := r.Day()
		if ok && day.Format(domain.DateLayout) == today {
			return false
		}
	}
	return true
}
