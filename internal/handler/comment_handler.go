package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/file-approval-api/internal/dto"
	"github.com/noah-isme/file-approval-api/internal/models"
	appErrors "github.com/noah-isme/file-approval-api/pkg/errors"
	"github.com/noah-isme/file-approval-api/pkg/response"
)

type commentService interface {
	PostComment(ctx context.Context, fileID string, req dto.PostCommentRequest, actor models.Actor) (*models.Comment, []models.DomainEvent, error)
	PostReply(ctx context.Context, commentID string, req dto.PostReplyRequest, actor models.Actor) (*models.Reply, []models.DomainEvent, error)
	GetThread(ctx context.Context, fileID string, actor models.Actor) ([]models.Comment, error)
}

// CommentHandler exposes the review thread endpoints.
type CommentHandler struct {
	service    commentService
	dispatcher EventDispatcher
}

// NewCommentHandler constructs the handler.
func NewCommentHandler(service commentService, dispatcher EventDispatcher) *CommentHandler {
	return &CommentHandler{service: service, dispatcher: dispatcher}
}

// Post godoc
// @Summary Add a comment to a file's review thread
// @Tags Comments
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body dto.PostCommentRequest true "Comment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /files/{id}/comments [post]
func (h *CommentHandler) Post(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.PostCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid comment payload"))
		return
	}
	comment, events, err := h.service.PostComment(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.dispatcher.Dispatch(events...)
	response.Created(c, comment)
}

// Reply godoc
// @Summary Reply to an existing comment
// @Tags Comments
// @Accept json
// @Produce json
// @Param id path string true "Comment ID"
// @Param payload body dto.PostReplyRequest true "Reply payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /comments/{id}/replies [post]
func (h *CommentHandler) Reply(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.PostReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid reply payload"))
		return
	}
	reply, events, err := h.service.PostReply(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.dispatcher.Dispatch(events...)
	response.Created(c, reply)
}

// Thread godoc
// @Summary Get the full comment thread of a file
// @Tags Comments
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/comments [get]
func (h *CommentHandler) Thread(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	comments, err := h.service.GetThread(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comments, nil)
}
