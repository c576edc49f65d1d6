// Package domain defines the records exchanged between the store, the
// services, and the HTTP layer. Query records are persisted as one JSON
// array under a well-known key, so their JSON tags are the durable format:
// field names and shapes must round-trip unchanged.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts are persisted as plain JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// DateLayout is the calendar-day format of QueryRecord.Date.
const DateLayout = "2006-01-02"

// Status is the lifecycle state of a query.
type Status string

const (
	StatusNew        Status = "new"
	StatusProcessing Status = "processing"
	StatusPending    Status = "pending"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every valid status in workflow order.
var Statuses = []Status{StatusNew, StatusProcessing, StatusPending, StatusCompleted, StatusCancelled}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// StatusFilter selects records by status; FilterAll matches every record.
type StatusFilter string

// FilterAll is the default status filter.
const FilterAll StatusFilter = "all"

// ParseStatusFilter accepts "all" (or empty) and any valid Status.
func ParseStatusFilter(s string) (StatusFilter, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == string(FilterAll) {
		return FilterAll, true
	}
	if Status(s).Valid() {
		return StatusFilter(s), true
	}
	return "", false
}

// Matches reports whether st passes the filter.
func (f StatusFilter) Matches(st Status) bool {
	return f == FilterAll || f == "" || Status(f) == st
}

// TimelineEntry is one line of a query's activity history.
type TimelineEntry struct {
	Date        string `json:"date"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// QueryRecord is a student-submitted tuition query.
//
// ID, StudentID and Date are immutable after creation. Status is mutable by
// an admin, or by the owning student for the new→cancelled transition only.
type QueryRecord struct {
	ID               string           `json:"id"                      validate:"required"`
	StudentName      string           `json:"studentName"             validate:"required"`
	StudentID        string           `json:"studentId"               validate:"required"`
	QueryTitle       string           `json:"queryTitle"              validate:"required"`
	Description      string           `json:"description,omitempty"`
	Amount           *decimal.Decimal `json:"amount,omitempty"`
	Date             string           `json:"date"                    validate:"required,calendarday"`
	Status           Status           `json:"status"                  validate:"required,oneof=new processing pending completed cancelled"`
	HasOtherPayments bool             `json:"hasOtherPayments"`
	Timestamp        string           `json:"timestamp,omitempty"`
	CashierWindow    string           `json:"cashierWindow,omitempty"`
	Timeline         []TimelineEntry  `json:"timeline,omitempty"`
	UpdatedAt        string           `json:"updatedAt,omitempty"`
}

// Day returns the record's calendar day. Values carrying a time part
// ("2024-01-02T10:00:00Z") are truncated to the date. ok is false when the
// date cannot be parsed.
func (q QueryRecord) Day() (time.Time, bool) {
	return ParseDay(q.Date)
}

// Active reports whether the record still takes part in processing.
func (q QueryRecord) Active() bool { return q.Status != StatusCancelled }

// ParseDay parses a YYYY-MM-DD value, ignoring any trailing time part.
func ParseDay(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		s = s[:i]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// QueryPatch is a partial update; nil fields are left unchanged.
type QueryPatch struct {
	QueryTitle       *string          `json:"queryTitle,omitempty"`
	Description      *string          `json:"description,omitempty"`
	Amount           *decimal.Decimal `json:"amount,omitempty"`
	Status           *Status          `json:"status,omitempty"`
	HasOtherPayments *bool            `json:"hasOtherPayments,omitempty"`
	CashierWindow    *string          `json:"cashierWindow,omitempty"`
	// AppendTimeline entries are added after the existing timeline.
	AppendTimeline []TimelineEntry `json:"-"`
}

// Empty reports whether the patch changes nothing.
func (p QueryPatch) Empty() bool {
	return p.QueryTitle == nil && p.Description == nil && p.Amount == nil &&
		p.Status == nil && p.HasOtherPayments == nil && p.CashierWindow == nil &&
		len(p.AppendTimeline) == 0
}

// Apply copies the set fields of p onto q.
func (p QueryPatch) Apply(q *QueryRecord) {
	if p.QueryTitle != nil {
		q.QueryTitle = *p.QueryTitle
	}
	if p.Description != nil {
		q.Description = *p.Description
	}
	if p.Amount != nil {
		a := *p.Amount
		q.Amount = &a
	}
	if p.Status != nil {
		q.Status = *p.Status
	}
	if p.HasOtherPayments != nil {
		q.HasOtherPayments = *p.HasOtherPayments
	}
	if p.CashierWindow != nil {
		q.CashierWindow = *p.CashierWindow
	}
	if len(p.AppendTimeline) > 0 {
		q.Timeline = append(q.Timeline, p.AppendTimeline...)
	}
}
