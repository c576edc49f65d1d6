// Query HTTP handlers.
//
//   - GET    /queries                 (filtered, paginated, weak ETag)
//   - POST   /queries                 (submit, Idempotency-Key aware)
//   - GET    /queries/can-submit
//   - GET    /queries/stats
//   - GET    /queries/events          (Server-Sent Events)
//   - GET    /queries/{id}
//   - PATCH  /queries/{id}
//   - DELETE /queries/{id}
//   - POST   /queries/{id}/cancel
//   - POST   /queries/{id}/notes      (admin)
//   - POST   /queries/{id}/notify     (admin)
package handlers

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tbourn/go-quetras-backend/internal/domain"
	"github.com/tbourn/go-quetras-backend/internal/events"
	"github.com/tbourn/go-quetras-backend/internal/http/middleware"
	"github.com/tbourn/go-quetras-backend/internal/notify"
	"github.com/tbourn/go-quetras-backend/internal/services"
	"github.com/tbourn/go-quetras-backend/internal/storage"
	"github.com/tbourn/go-quetras-backend/internal/utils"
)

// QueryService is the use-case surface the query endpoints need.
type QueryService interface {
	CanSubmit(ctx context.Context, actor domain.Actor) bool
	Submit(ctx context.Context, actor domain.Actor, in services.SubmitInput) (*domain.QueryRecord, error)
	List(ctx context.Context, actor domain.Actor, f services.QueryFilter, page, pageSize int) services.ListResult
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.QueryRecord, error)
	Edit(ctx context.Context, actor domain.Actor, id string, patch domain.QueryPatch) (*domain.QueryRecord, error)
	Cancel(ctx context.Context, actor domain.Actor, id string) (*domain.QueryRecord, error)
	Delete(ctx context.Context, actor domain.Actor, id string) error
	AddNote(ctx context.Context, actor domain.Actor, id, note string) (*domain.QueryRecord, error)
	Notify(ctx context.Context, actor domain.Actor, id string) (notify.Result, error)
	Stats(ctx context.Context, actor domain.Actor) services.QueryStats
	Subscribe() (<-chan events.Change, func())
}

// IdempotencyStore remembers which query a (user, scope, key) created.
type IdempotencyStore interface {
	Lookup(ctx context.Context, userID, scope, key string, now time.Time) (resourceID string, found bool, err error)
	Remember(ctx context.Context, userID, scope, key, resourceID string, status int) error
}

// QueryHandlerOptions wires the optional collaborators of QueryHandler.
type QueryHandlerOptions struct {
	// Statter reports write metadata of the queries key for ETags.
	Statter storage.Statter
	// Idempotency enables replay of POST /queries.
	Idempotency IdempotencyStore
	// Heartbeat is the SSE keep-alive interval (default 25s).
	Heartbeat time.Duration
}

// QueryHandler serves the /queries endpoints.
type QueryHandler struct {
	svc       QueryService
	stats     storage.Statter
	idem      IdempotencyStore
	heartbeat time.Duration
}

// NewQueryHandler binds the query endpoints to svc.
func NewQueryHandler(svc QueryService, opts QueryHandlerOptions) *QueryHandler {
	hb := opts.Heartbeat
	if hb <= 0 {
		hb = 25 * time.Second
	}
	return &QueryHandler{svc: svc, stats: opts.Statter, idem: opts.Idempotency, heartbeat: hb}
}

//
// DTOs
//

// CreateQueryRequest is the payload of POST /queries.
type CreateQueryRequest struct {
	QueryTitle       string           `json:"queryTitle" example:"Fee refund"`
	Description      string           `json:"description" example:"I was charged twice for the May instalment."`
	Amount           *decimal.Decimal `json:"amount,omitempty" swaggertype:"number" example:"250.00"`
	HasOtherPayments bool             `json:"hasOtherPayments"`
}

// NoteRequest is the payload of POST /queries/{id}/notes.
type NoteRequest struct {
	Note string `json:"note" example:"Please bring your receipt to window 3."`
}

// Pagination describes the page returned by a list endpoint.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// FilterEcho repeats the filter the list was computed with.
type FilterEcho struct {
	Search string `json:"search"`
	Status string `json:"status"`
}

// ListQueriesResponse is a page of queries plus navigation metadata.
type ListQueriesResponse struct {
	Items      []domain.QueryRecord `json:"items"`
	Pagination Pagination           `json:"pagination"`
	Filter     FilterEcho           `json:"filter"`
	// Self reproduces this exact view (search text included) on reload.
	Self string `json:"self"`
}

// CanSubmitResponse answers GET /queries/can-submit.
type CanSubmitResponse struct {
	CanSubmit bool   `json:"canSubmit"`
	Message   string `json:"message,omitempty"`
}

//
// Helpers
//

func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPageSize = 10
		maxPageSize     = 100
	)
	page = max(utils.AtoiDefault(c.Query("page"), 1), 1)
	pageSize = min(max(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1), maxPageSize)
	return page, pageSize
}

// listETag derives a weak validator from the last write of the queries key
// and everything else that shapes the response.
func (h *QueryHandler) listETag(ctx context.Context, a domain.Actor, f services.QueryFilter, page, pageSize int) string {
	if h.stats == nil {
		return ""
	}
	st, _, err := h.stats.Stat(ctx, storage.KeyQueries)
	if err != nil {
		return ""
	}
	scope := a.ID
	if a.IsAdmin() {
		scope = "*"
	}
	sum := fnv.New64a()
	fmt.Fprintf(sum, "%s|%d|%d|%s|%d|%d", scope, st.Version, st.UpdatedAt.UnixNano(), f.CacheKey(), page, pageSize)
	return fmt.Sprintf(`W/"q-%x"`, sum.Sum64())
}

func etagMatches(header, etag string) bool {
	for _, cand := range strings.Split(header, ",") {
		if cand = strings.TrimSpace(cand); cand == etag || cand == "*" {
			return true
		}
	}
	return false
}

func selfLink(c *gin.Context, f services.QueryFilter, page, pageSize int) string {
	v := f.Values()
	v.Set("page", strconv.Itoa(page))
	v.Set("page_size", strconv.Itoa(pageSize))
	return c.Request.URL.Path + "?" + v.Encode()
}

//
// Handlers
//

// List godoc
// @ID          listQueries
// @Summary     List queries
// @Description Students see their own queries, admins see all. Active queries come first, newest first; cancelled queries last. Supports a weak ETag via If-None-Match.
// @Tags        Queries
// @Produce     json
// @Security    BearerAuth
// @Param       search         query   string  false  "Case-insensitive substring of id, student name or title"
// @Param       status         query   string  false  "all|new|processing|pending|completed|cancelled"  default(all)
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(10)
// @Param       If-None-Match  header  string  false  "Return 304 if the ETag matches"
// @Success     200  {object}  handlers.ListQueriesResponse
// @Header      200  {string}  ETag  "Weak ETag of this view"
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /queries [get]
func (h *QueryHandler) List(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	ctx := c.Request.Context()
	f, err := services.FilterFromQuery(c.Request.URL.Query())
	if err != nil {
		failErr(c, err)
		return
	}
	page, pageSize := clampPagination(c)

	if etag := h.listETag(ctx, a, f, page, pageSize); etag != "" {
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && etagMatches(inm, etag) {
			c.Status(http.StatusNotModified)
			return
		}
	}

	res := h.svc.List(ctx, a, f, page, pageSize)
	ok(c, http.StatusOK, ListQueriesResponse{
		Items: res.Items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      res.Total,
			TotalPages: res.TotalPages,
			HasNext:    page < res.TotalPages,
		},
		Filter: FilterEcho{Search: f.SearchText, Status: string(f.Status)},
		Self:   selfLink(c, f, page, pageSize),
	})
}

// Create godoc
// @ID          createQuery
// @Summary     Submit a query
// @Description Submits a new query for the caller. One query per student per calendar day. Repeating a request with the same Idempotency-Key returns the original query.
// @Tags        Queries
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string  false  "Key for safe retries"
// @Param       body             body    handlers.CreateQueryRequest  true  "New query"
// @Success     201  {object}  domain.QueryRecord
// @Header      201  {string}  Idempotency-Replayed  "true when served from a previous request"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     429  {object}  handlers.ErrorResponse  "submission_limit"
// @Router      /queries [post]
func (h *QueryHandler) Create(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	ctx := c.Request.Context()
	key, scope, hasKey := middleware.GetIdempotencyKey(c)
	useIdem := hasKey && h.idem != nil

	if useIdem {
		if id, seen, err := h.idem.Lookup(ctx, a.ID, scope, key, time.Now().UTC()); err == nil && seen {
			if rec, err := h.svc.Get(ctx, a, id); err == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusCreated, rec)
				return
			}
		}
	}

	var req CreateQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	rec, err := h.svc.Submit(ctx, a, services.SubmitInput{
		QueryTitle:       req.QueryTitle,
		Description:      req.Description,
		Amount:           req.Amount,
		HasOtherPayments: req.HasOtherPayments,
	})
	if err != nil {
		failErr(c, err)
		return
	}

	if useIdem {
		if err := h.idem.Remember(ctx, a.ID, scope, key, rec.ID, http.StatusCreated); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Str("query_id", rec.ID).Msg("idempotency record not stored")
		}
	}
	c.Header("Location", strings.TrimSuffix(c.Request.URL.Path, "/")+"/"+rec.ID)
	ok(c, http.StatusCreated, rec)
}

// CanSubmit godoc
// @ID          canSubmitQuery
// @Summary     Check the daily submission allowance
// @Tags        Queries
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.CanSubmitResponse
// @Router      /queries/can-submit [get]
func (h *QueryHandler) CanSubmit(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	resp := CanSubmitResponse{CanSubmit: h.svc.CanSubmit(c.Request.Context(), a)}
	if !resp.CanSubmit {
		resp.Message = "You have already submitted a query today. Please try again tomorrow."
	}
	ok(c, http.StatusOK, resp)
}

// Stats godoc
// @ID          queryStats
// @Summary     Count queries per status
// @Tags        Queries
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  services.QueryStats
// @Router      /queries/stats [get]
func (h *QueryHandler) Stats(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	ok(c, http.StatusOK, h.svc.Stats(c.Request.Context(), a))
}

// Get godoc
// @ID          getQuery
// @Summary     Get a query
// @Tags        Queries
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  string  true  "Query id"  example(TQ-1042)
// @Success     200  {object}  domain.QueryRecord
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /queries/{id} [get]
func (h *QueryHandler) Get(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	rec, err := h.svc.Get(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, rec)
}

// Update godoc
// @ID          updateQuery
// @Summary     Edit a query
// @Description Owners may edit title, description, amount and payment flag of a non-terminal query, and cancel a new one. Admins may edit anything, including status and cashier window.
// @Tags        Queries
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string             true  "Query id"
// @Param       body  body  domain.QueryPatch  true  "Fields to change"
// @Success     200  {object}  domain.QueryRecord
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "invalid status transition"
// @Router      /queries/{id} [patch]
func (h *QueryHandler) Update(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	var patch domain.QueryPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if patch.Empty() {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "no fields to update")
		return
	}
	rec, err := h.svc.Edit(c.Request.Context(), a, c.Param("id"), patch)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, rec)
}

// Delete godoc
// @ID          deleteQuery
// @Summary     Delete a query permanently
// @Tags        Queries
// @Security    BearerAuth
// @Param       id  path  string  true  "Query id"
// @Success     204  {string}  string  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /queries/{id} [delete]
func (h *QueryHandler) Delete(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), a, c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// Cancel godoc
// @ID          cancelQuery
// @Summary     Cancel a query
// @Description Marks the query cancelled and moves it to the end of the list.
// @Tags        Queries
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Query id"
// @Success     200  {object}  domain.QueryRecord
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse
// @Router      /queries/{id}/cancel [post]
func (h *QueryHandler) Cancel(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	rec, err := h.svc.Cancel(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, rec)
}

// AddNote godoc
// @ID          addQueryNote
// @Summary     Add an admin note
// @Description Appends a timeline entry and notifies the student.
// @Tags        Queries
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string               true  "Query id"
// @Param       body  body  handlers.NoteRequest  true  "Note"
// @Success     200  {object}  domain.QueryRecord
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /queries/{id}/notes [post]
func (h *QueryHandler) AddNote(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	rec, err := h.svc.AddNote(c.Request.Context(), a, c.Param("id"), req.Note)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, rec)
}

// Notify godoc
// @ID          notifyQuery
// @Summary     Send the student a status update
// @Tags        Queries
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Query id"
// @Success     200  {object}  notify.Result
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /queries/{id}/notify [post]
func (h *QueryHandler) Notify(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	res, err := h.svc.Notify(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// Events godoc
// @ID          queryEvents
// @Summary     Stream store changes
// @Description Server-Sent Events. Each "change" event means the query list changed and open views should re-read it.
// @Tags        Queries
// @Produce     text/event-stream
// @Security    BearerAuth
// @Success     200  {object}  events.Change
// @Router      /queries/events [get]
func (h *QueryHandler) Events(c *gin.Context) {
	if _, found := actor(c); !found {
		return
	}
	changes, cancel := h.svc.Subscribe()
	defer cancel()

	// Streams outlive the server's WriteTimeout.
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent("ready", gin.H{"at": time.Now().UTC()})
	c.Writer.Flush()

	tick := time.NewTicker(h.heartbeat)
	defer tick.Stop()
	done := c.Request.Context().Done()

	c.Stream(func(_ io.Writer) bool {
		select {
		case <-done:
			return false
		case ch, open := <-changes:
			if !open {
				return false
			}
			if ch.Key != "" && ch.Key != storage.KeyQueries {
				return true
			}
			c.SSEvent("change", ch)
			return true
		case <-tick.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}
