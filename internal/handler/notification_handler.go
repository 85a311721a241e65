package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/file-approval-api/internal/dto"
	"github.com/noah-isme/file-approval-api/internal/models"
	"github.com/noah-isme/file-approval-api/pkg/response"
)

type notificationService interface {
	List(ctx context.Context, recipientID string, unreadOnly bool, page, limit int, actor models.Actor) (*dto.NotificationList, *models.Pagination, error)
	MarkRead(ctx context.Context, notificationID string, actor models.Actor) error
	MarkAllRead(ctx context.Context, recipientID string, actor models.Actor) (int64, error)
	Delete(ctx context.Context, notificationID string, actor models.Actor) error
}

// NotificationHandler exposes the notification inbox endpoints.
type NotificationHandler struct {
	service notificationService
}

// NewNotificationHandler constructs the handler.
func NewNotificationHandler(service notificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// List godoc
// @Summary List a user's notifications
// @Tags Notifications
// @Produce json
// @Param id path string true "Recipient user ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param unread query bool false "Only unread"
// @Success 200 {object} response.Envelope
// @Router /notifications/user/{id} [get]
func (h *NotificationHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	unreadOnly, _ := strconv.ParseBool(c.Query("unread"))

	list, pagination, err := h.service.List(c.Request.Context(), c.Param("id"), unreadOnly, page, limit, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, pagination)
}

// MarkRead godoc
// @Summary Mark a notification as read
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 204 {object} response.Envelope
// @Router /notifications/{id}/read [put]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MarkAllRead godoc
// @Summary Mark all of a user's notifications as read
// @Tags Notifications
// @Produce json
// @Param id path string true "Recipient user ID"
// @Success 200 {object} response.Envelope
// @Router /notifications/user/{id}/read-all [put]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	count, err := h.service.MarkAllRead(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"marked": count}, nil)
}

// Delete godoc
// @Summary Delete a notification
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 204 {object} response.Envelope
// @Router /notifications/{id} [delete]
func (h *NotificationHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
