package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-quetras-backend/internal/domain"
)

// Inbox is the per-user notification store.
type Inbox interface {
	List(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID, id string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) error
	Clear(ctx context.Context, userID string) error
}

// NotificationHandler serves /notifications for the caller.
type NotificationHandler struct {
	inbox Inbox
}

// NewNotificationHandler binds the inbox endpoints.
func NewNotificationHandler(inbox Inbox) *NotificationHandler {
	return &NotificationHandler{inbox: inbox}
}

// NotificationsResponse lists the caller's notifications, newest first.
type NotificationsResponse struct {
	Items  []domain.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

// List godoc
// @ID          listNotifications
// @Summary     List my notifications
// @Tags        Notifications
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.NotificationsResponse
// @Router      /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	items, err := h.inbox.List(c.Request.Context(), a.ID)
	if err != nil {
		failErr(c, err)
		return
	}
	unread := 0
	for _, n := range items {
		if !n.Read {
			unread++
		}
	}
	ok(c, http.StatusOK, NotificationsResponse{Items: items, Unread: unread})
}

// MarkRead godoc
// @ID          markNotificationRead
// @Summary     Mark one notification read
// @Tags        Notifications
// @Security    BearerAuth
// @Param       id  path  string  true  "Notification id"
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	marked, err := h.inbox.MarkRead(c.Request.Context(), a.ID, c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	if !marked {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "notification not found")
		return
	}
	noContent(c)
}

// MarkAllRead godoc
// @ID          markAllNotificationsRead
// @Summary     Mark all my notifications read
// @Tags        Notifications
// @Security    BearerAuth
// @Success     204  {string}  string  "No Content"
// @Router      /notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	if err := h.inbox.MarkAllRead(c.Request.Context(), a.ID); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// Clear godoc
// @ID          clearNotifications
// @Summary     Delete all my notifications
// @Tags        Notifications
// @Security    BearerAuth
// @Success     204  {string}  string  "No Content"
// @Router      /notifications [delete]
func (h *NotificationHandler) Clear(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	if err := h.inbox.Clear(c.Request.Context(), a.ID); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
