package services

import (
	"fmt"
	"net/url"

	"github.com/tbourn/go-quetras-backend/internal/domain"
	"github.com/tbourn/go-quetras-backend/internal/search"
	"github.com/tbourn/go-quetras-backend/internal/utils"
)

// URL query parameters carrying the filter state. SearchParam holds the raw
// user-entered text so a shared link reproduces the same view.
const (
	SearchParam = "search"
	StatusParam = "status"
)

// QueryFilter derives a filtered view over the store's list. It never
// mutates or re-orders records. The zero value matches everything.
type QueryFilter struct {
	SearchText string
	Status     domain.StatusFilter
}

// SetSearchText replaces the free-text filter.
func (f *QueryFilter) SetSearchText(text string) { f.SearchText = text }

// SetStatusFilter replaces the status filter. It accepts "all" or a known
// status and rejects anything else with a ValidationError.
func (f *QueryFilter) SetStatusFilter(status string) error {
	st, ok := domain.ParseStatusFilter(status)
	if !ok {
		return invalid(domain.FieldError{Field: StatusParam, Rule: "oneof"})
	}
	f.Status = st
	return nil
}

// Clear resets the filter to its defaults: empty search, status "all".
func (f *QueryFilter) Clear() {
	f.SearchText = ""
	f.Status = domain.FilterAll
}

// Matches reports whether r passes both the status and the search filter.
// Search is a case-insensitive substring test against id, studentName and
// queryTitle.
func (f QueryFilter) Matches(r domain.QueryRecord) bool {
	return f.matches(search.NewMatcher(f.SearchText), r)
}

func (f QueryFilter) matches(m search.Matcher, r domain.QueryRecord) bool {
	return f.Status.Matches(r.Status) && m.Match(r.ID, r.StudentName, r.QueryTitle)
}

// Apply returns the records that match, in their original order.
func (f QueryFilter) Apply(records []domain.QueryRecord) []domain.QueryRecord {
	m := search.NewMatcher(f.SearchText)
	out := make([]domain.QueryRecord, 0, len(records))
	for _, r := range records {
		if f.matches(m, r) {
			out = append(out, r)
		}
	}
	return out
}

// Values encodes the filter as URL query parameters. Defaults are omitted.
func (f QueryFilter) Values() url.Values {
	v := url.Values{}
	if f.SearchText != "" {
		v.Set(SearchParam, f.SearchText)
	}
	if f.Status != "" && f.Status != domain.FilterAll {
		v.Set(StatusParam, string(f.Status))
	}
	return v
}

// CacheKey identifies the filter state for view caching.
func (f QueryFilter) CacheKey() string {
	st := f.Status
	if st == "" {
		st = domain.FilterAll
	}
	return fmt.Sprintf("%s|%q", st, f.SearchText)
}

// FilterFromQuery reads the filter from URL query parameters.
func FilterFromQuery(q url.Values) (QueryFilter, error) {
	f := QueryFilter{Status: domain.FilterAll}
	f.SetSearchText(q.Get(SearchParam))
	if err := f.SetStatusFilter(q.Get(StatusParam)); err != nil {
		return QueryFilter{}, err
	}
	return f, nil
}

// Paginate returns the 1-indexed page of pageSize records and the total
// page count ceil(len/pageSize). Pages outside [1, totalPages] yield an
// empty slice; bounding navigation is the caller's job.
func Paginate(records []domain.QueryRecord, page, pageSize int) ([]domain.QueryRecord, int) {
	return utils.PageOf(records, page, pageSize)
}
