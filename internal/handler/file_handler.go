package handler

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/file-approval-api/internal/dto"
	"github.com/noah-isme/file-approval-api/internal/models"
	"github.com/noah-isme/file-approval-api/internal/service"
	appErrors "github.com/noah-isme/file-approval-api/pkg/errors"
	"github.com/noah-isme/file-approval-api/pkg/response"
)

// UploadStore persists incoming multipart uploads before the workflow sees
// them.
type UploadStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(path string) (*os.File, error)
}

// DownloadSigner issues and validates signed download tokens.
type DownloadSigner interface {
	Generate(fileID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (fileID, relPath string, expiresAt time.Time, err error)
}

// EventDispatcher receives domain events after a workflow operation commits.
type EventDispatcher interface {
	Dispatch(events ...models.DomainEvent)
}

// FileHandler exposes the file workflow REST endpoints.
type FileHandler struct {
	workflow   fileWorkflow
	uploads    UploadStore
	signer     DownloadSigner
	dispatcher EventDispatcher
}

type fileWorkflow interface {
	Submit(ctx context.Context, params service.SubmitParams, actor models.Actor) (*models.FileSubmission, []models.DomainEvent, error)
	Resubmit(ctx context.Context, previousID string, params service.SubmitParams, actor models.Actor) (*models.FileSubmission, []models.DomainEvent, error)
	TeamLeaderReview(ctx context.Context, fileID string, req dto.ReviewRequest, actor models.Actor) (*models.FileSubmission, []models.DomainEvent, error)
	AdminReview(ctx context.Context, fileID string, req dto.ReviewRequest, actor models.Actor) (*models.FileSubmission, []models.DomainEvent, error)
	Withdraw(ctx context.Context, fileID, reason string, actor models.Actor) (*models.FileSubmission, []models.DomainEvent, error)
	Get(ctx context.Context, fileID string, actor models.Actor) (*models.FileSubmission, error)
	List(ctx context.Context, query dto.FileQuery, actor models.Actor) ([]models.FileSubmission, error)
	History(ctx context.Context, fileID string, actor models.Actor) ([]models.StatusHistory, error)
	Delete(ctx context.Context, fileID string, actor models.Actor) error
}

// NewFileHandler constructs the handler.
func NewFileHandler(workflow fileWorkflow, uploads UploadStore, signer DownloadSigner, dispatcher EventDispatcher) *FileHandler {
	return &FileHandler{workflow: workflow, uploads: uploads, signer: signer, dispatcher: dispatcher}
}

// Submit godoc
// @Summary Submit a file for approval
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to submit"
// @Param description formData string false "Description"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /files [post]
func (h *FileHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	params, err := h.storeUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	file, events, err := h.workflow.Submit(c.Request.Context(), params, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.dispatcher.Dispatch(events...)
	response.Created(c, file)
}

// Resubmit godoc
// @Summary Resubmit a corrected file after rejection
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Rejected file ID"
// @Param file formData file true "Corrected file"
// @Param description formData string false "Description"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /files/{id}/resubmit [post]
func (h *FileHandler) Resubmit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	params, err := h.storeUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	file, events, err := h.workflow.Resubmit(c.Request.Context(), c.Param("id"), params, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.dispatcher.Dispatch(events...)
	response.Created(c, file)
}

// TeamLeaderReview godoc
// @Summary Record the team leader's decision
// @Tags Files
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body dto.ReviewRequest true "Review decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /files/{id}/team-leader-review [post]
func (h *FileHandler) TeamLeaderReview(c *gin.Context) {
	h.review(c, h.workflow.TeamLeaderReview)
}

// AdminReview godoc
// @Summary Record the admin's final decision
// @Tags Files
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body dto.ReviewRequest true "Review decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /files/{id}/admin-review [post]
func (h *FileHandler) AdminReview(c *gin.Context) {
	h.review(c, h.workflow.AdminReview)
}

func (h *FileHandler) review(c *gin.Context, decide func(context.Context, string, dto.ReviewRequest, models.Actor) (*models.FileSubmission, []models.DomainEvent, error)) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid review payload"))
		return
	}
	file, events, err := decide(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.dispatcher.Dispatch(events...)
	response.JSON(c, http.StatusOK, file, nil)
}

// Withdraw godoc
// @Summary Withdraw a pending submission
// @Tags Files
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body dto.WithdrawRequest true "Withdraw reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /files/{id}/withdraw [post]
func (h *FileHandler) Withdraw(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid withdraw payload"))
		return
	}
	file, events, err := h.workflow.Withdraw(c.Request.Context(), c.Param("id"), req.Reason, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.dispatcher.Dispatch(events...)
	response.JSON(c, http.StatusOK, file, nil)
}

// Get godoc
// @Summary Get a file submission
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Router /files/{id} [get]
func (h *FileHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	file, err := h.workflow.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, file, nil)
}

// List godoc
// @Summary List file submissions visible to the caller
// @Tags Files
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param stage query string false "Workflow stage"
// @Param team query string false "Submitter team"
// @Param submitterId query string false "Submitter ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /files [get]
func (h *FileHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	query := dto.FileQuery{
		Stage:       models.FileStage(strings.TrimSpace(c.Query("stage"))),
		Team:        strings.TrimSpace(c.Query("team")),
		SubmitterID: strings.TrimSpace(c.Query("submitterId")),
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		for _, part := range strings.Split(rawStatus, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			query.Status = append(query.Status, models.FileStatus(part))
		}
	}
	query.Limit, _ = strconv.Atoi(c.Query("limit"))
	query.Offset, _ = strconv.Atoi(c.Query("offset"))

	files, err := h.workflow.List(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, files, nil)
}

// History godoc
// @Summary Get the status history of a file
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/history [get]
func (h *FileHandler) History(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	entries, err := h.workflow.History(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// DownloadURL godoc
// @Summary Issue a short-lived signed download link
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/download-url [get]
func (h *FileHandler) DownloadURL(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	file, err := h.workflow.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	token, expiresAt, err := h.signer.Generate(file.ID, file.StoredPath)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"url":       fmt.Sprintf("/api/v1/files/%s/download?token=%s", file.ID, token),
		"expiresAt": expiresAt,
	}, nil)
}

// Download godoc
// @Summary Download a file with a signed token
// @Tags Files
// @Produce octet-stream
// @Param id path string true "File ID"
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /files/{id}/download [get]
func (h *FileHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "download token required"))
		return
	}
	fileID, storedPath, _, err := h.signer.Parse(token, false)
	if err != nil || fileID != c.Param("id") {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token"))
		return
	}
	file, err := h.uploads.Open(storedPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "stored file is no longer available"))
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(storedPath)))
	c.Header("Content-Type", "application/octet-stream")
	if _, err := io.Copy(c.Writer, file); err != nil {
		// headers already sent, nothing sensible left to do
		_ = c.Error(err)
	}
}

// Delete godoc
// @Summary Delete a file and everything attached to it
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 204 {object} response.Envelope
// @Router /files/{id} [delete]
func (h *FileHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.workflow.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// storeUpload writes the multipart payload to the upload store and returns the
// workflow's view of it.
func (h *FileHandler) storeUpload(c *gin.Context) (service.SubmitParams, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return service.SubmitParams{}, appErrors.Clone(appErrors.ErrValidation, "multipart field 'file' is required")
	}
	src, err := header.Open()
	if err != nil {
		return service.SubmitParams{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read uploaded file")
	}
	defer src.Close() //nolint:errcheck

	storedName := uuid.NewString() + filepath.Ext(header.Filename)
	storedPath, err := h.uploads.SaveStream(storedName, src)
	if err != nil {
		return service.SubmitParams{}, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store upload")
	}

	return service.SubmitParams{
		OriginalName: header.Filename,
		StoredPath:   storedPath,
		Size:         header.Size,
		MimeType:     contentType(header),
		Description:  c.PostForm("description"),
	}, nil
}

func contentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
