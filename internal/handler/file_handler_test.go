package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/file-approval-api/internal/dto"
	"github.com/noah-isme/file-approval-api/internal/middleware"
	"github.com/noah-isme/file-approval-api/internal/models"
	"github.com/noah-isme/file-approval-api/internal/service"
	appErrors "github.com/noah-isme/file-approval-api/pkg/errors"
)

type workflowMock struct {
	file   *models.FileSubmission
	events []models.DomainEvent
	err    error

	submitParams   service.SubmitParams
	submitCalled   bool
	resubmitPrevID string
	reviewReq      dto.ReviewRequest
	reviewFileID   string
	withdrawReason string
	listQuery      dto.FileQuery
	deleteCalled   bool
}

func (m *workflowMock) Submit(ctx context.Context, params service.SubmitParams, actor models.Actor) (*models.FileSubmission, []models.DomainEvent, error) {
	m.submitCalled = true
	m.submitParams = params
	return m.file, m.events, m.err
}

func (m *workflowMock) Resubmit(ctx context.Context, previousID string, params service.SubmitParams, actor models.Actor) (*models.FileSubmission, []models.DomainEvent, error) {
	m.resubmitPrevID = previousID
	m.submitParams = params
	return m.file, m.events, m.err
}

func (m *workflowMock) TeamLeaderReview(ctx context.Context, fileID string, req dto.ReviewRequest, actor models.Actor) (*models.FileSubmission, []models.DomainEvent, error) {
	m.reviewFileID = fileID
	m.reviewReq = req
	return m.file, m.events, m.err
}

func (m *workflowMock) AdminReview(ctx context.Context, fileID string, req dto.ReviewRequest, actor models.Actor) (*models.FileSubmission, []models.DomainEvent, error) {
	m.reviewFileID = fileID
	m.reviewReq = req
	return m.file, m.events, m.err
}

func (m *workflowMock) Withdraw(ctx context.Context, fileID, reason string, actor models.Actor) (*models.FileSubmission, []models.DomainEvent, error) {
	m.reviewFileID = fileID
	m.withdrawReason = reason
	return m.file, m.events, m.err
}

func (m *workflowMock) Get(ctx context.Context, fileID string, actor models.Actor) (*models.FileSubmission, error) {
	return m.file, m.err
}

func (m *workflowMock) List(ctx context.Context, query dto.FileQuery, actor models.Actor) ([]models.FileSubmission, error) {
	m.listQuery = query
	if m.err != nil {
		return nil, m.err
	}
	return []models.FileSubmission{*m.file}, nil
}

func (m *workflowMock) History(ctx context.Context, fileID string, actor models.Actor) ([]models.StatusHistory, error) {
	return nil, m.err
}

func (m *workflowMock) Delete(ctx context.Context, fileID string, actor models.Actor) error {
	m.deleteCalled = true
	return m.err
}

type uploadStoreMock struct {
	savedName string
	saved     []byte
	openPath  string
}

func (m *uploadStoreMock) SaveStream(filename string, r io.Reader) (string, error) {
	m.savedName = filename
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.saved = data
	return "/uploads/" + filename, nil
}

func (m *uploadStoreMock) Open(path string) (*os.File, error) {
	if m.openPath != "" {
		return os.Open(m.openPath)
	}
	return os.Open(path)
}

type signerMock struct {
	token    string
	fileID   string
	relPath  string
	parseErr error
}

func (m *signerMock) Generate(fileID, relPath string) (string, time.Time, error) {
	return m.token, time.Now().Add(time.Hour), nil
}

func (m *signerMock) Parse(token string, allowExpired bool) (string, string, time.Time, error) {
	if m.parseErr != nil {
		return "", "", time.Time{}, m.parseErr
	}
	return m.fileID, m.relPath, time.Now().Add(time.Hour), nil
}

type dispatcherMock struct {
	events []models.DomainEvent
}

func (m *dispatcherMock) Dispatch(events ...models.DomainEvent) {
	m.events = append(m.events, events...)
}

func testActorContext(t *testing.T, w *httptest.ResponseRecorder, role models.UserRole) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{
		UserID: "u1", Username: "alice", Role: role, Team: "platform",
	})
	return c
}

func multipartUpload(t *testing.T, filename, content, description string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	if description != "" {
		require.NoError(t, writer.WriteField("description", description))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestFileHandlerSubmit(t *testing.T) {
	workflow := &workflowMock{file: &models.FileSubmission{ID: "f1", Status: models.StatusUploaded}}
	uploads := &uploadStoreMock{}
	dispatcher := &dispatcherMock{}
	workflow.events = []models.DomainEvent{models.FileSubmitted{}}
	handler := NewFileHandler(workflow, uploads, &signerMock{}, dispatcher)

	body, contentType := multipartUpload(t, "report.pdf", "pdf-bytes", "quarterly numbers")
	w := httptest.NewRecorder()
	c := testActorContext(t, w, models.RoleUser)
	req, _ := http.NewRequest(http.MethodPost, "/files", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req

	handler.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, workflow.submitCalled)
	assert.Equal(t, "report.pdf", workflow.submitParams.OriginalName)
	assert.Equal(t, "quarterly numbers", workflow.submitParams.Description)
	assert.Equal(t, []byte("pdf-bytes"), uploads.saved)
	assert.Equal(t, filepath.Ext(uploads.savedName), ".pdf")
	assert.Len(t, dispatcher.events, 1)
}

func TestFileHandlerSubmitMissingFile(t *testing.T) {
	handler := NewFileHandler(&workflowMock{}, &uploadStoreMock{}, &signerMock{}, &dispatcherMock{})

	w := httptest.NewRecorder()
	c := testActorContext(t, w, models.RoleUser)
	req, _ := http.NewRequest(http.MethodPost, "/files", bytes.NewBufferString("not multipart"))
	c.Request = req

	handler.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFileHandlerSubmitWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewFileHandler(&workflowMock{}, &uploadStoreMock{}, &signerMock{}, &dispatcherMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/files", nil)
	c.Request = req

	handler.Submit(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFileHandlerReviewDispatchesEvents(t *testing.T) {
	workflow := &workflowMock{
		file:   &models.FileSubmission{ID: "f1", Status: models.StatusTeamLeaderApproved},
		events: []models.DomainEvent{models.FileTransitioned{}},
	}
	dispatcher := &dispatcherMock{}
	handler := NewFileHandler(workflow, &uploadStoreMock{}, &signerMock{}, dispatcher)

	payload, _ := json.Marshal(dto.ReviewRequest{Action: "approve", Comments: "fine"})
	w := httptest.NewRecorder()
	c := testActorContext(t, w, models.RoleTeamLeader)
	req, _ := http.NewRequest(http.MethodPost, "/files/f1/team-leader-review", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "f1"}}

	handler.TeamLeaderReview(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "f1", workflow.reviewFileID)
	assert.Equal(t, "approve", workflow.reviewReq.Action)
	assert.Len(t, dispatcher.events, 1)
}

func TestFileHandlerReviewStateConflict(t *testing.T) {
	workflow := &workflowMock{err: appErrors.ErrStateConflict}
	handler := NewFileHandler(workflow, &uploadStoreMock{}, &signerMock{}, &dispatcherMock{})

	payload, _ := json.Marshal(dto.ReviewRequest{Action: "approve"})
	w := httptest.NewRecorder()
	c := testActorContext(t, w, models.RoleAdmin)
	req, _ := http.NewRequest(http.MethodPost, "/files/f1/admin-review", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "f1"}}

	handler.AdminReview(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestFileHandlerWithdraw(t *testing.T) {
	workflow := &workflowMock{file: &models.FileSubmission{ID: "f1", Status: models.StatusWithdrawn}}
	handler := NewFileHandler(workflow, &uploadStoreMock{}, &signerMock{}, &dispatcherMock{})

	payload, _ := json.Marshal(dto.WithdrawRequest{Reason: "submitted by mistake"})
	w := httptest.NewRecorder()
	c := testActorContext(t, w, models.RoleUser)
	req, _ := http.NewRequest(http.MethodPost, "/files/f1/withdraw", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "f1"}}

	handler.Withdraw(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "submitted by mistake", workflow.withdrawReason)
}

func TestFileHandlerListParsesQuery(t *testing.T) {
	workflow := &workflowMock{file: &models.FileSubmission{ID: "f1"}}
	handler := NewFileHandler(workflow, &uploadStoreMock{}, &signerMock{}, &dispatcherMock{})

	w := httptest.NewRecorder()
	c := testActorContext(t, w, models.RoleAdmin)
	req, _ := http.NewRequest(http.MethodGet, "/files?status=uploaded,team_leader_approved&stage=pending_admin&limit=10&offset=5", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []models.FileStatus{models.StatusUploaded, models.StatusTeamLeaderApproved}, workflow.listQuery.Status)
	assert.Equal(t, models.StagePendingAdmin, workflow.listQuery.Stage)
	assert.Equal(t, 10, workflow.listQuery.Limit)
	assert.Equal(t, 5, workflow.listQuery.Offset)
}

func TestFileHandlerDownloadURL(t *testing.T) {
	workflow := &workflowMock{file: &models.FileSubmission{ID: "f1", StoredPath: "/uploads/f1.pdf"}}
	handler := NewFileHandler(workflow, &uploadStoreMock{}, &signerMock{token: "tok123"}, &dispatcherMock{})

	w := httptest.NewRecorder()
	c := testActorContext(t, w, models.RoleUser)
	req, _ := http.NewRequest(http.MethodGet, "/files/f1/download-url", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "f1"}}

	handler.DownloadURL(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/files/f1/download?token=tok123")
}

func TestFileHandlerDownloadStreamsFile(t *testing.T) {
	dir := t.TempDir()
	stored := filepath.Join(dir, "f1.pdf")
	require.NoError(t, os.WriteFile(stored, []byte("pdf-bytes"), 0o600))

	signer := &signerMock{fileID: "f1", relPath: stored}
	handler := NewFileHandler(&workflowMock{}, &uploadStoreMock{}, signer, &dispatcherMock{})

	w := httptest.NewRecorder()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/files/f1/download?token=tok", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "f1"}}

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pdf-bytes", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "f1.pdf")
}

func TestFileHandlerDownloadTokenFileMismatch(t *testing.T) {
	signer := &signerMock{fileID: "another-file", relPath: "/uploads/x.pdf"}
	handler := NewFileHandler(&workflowMock{}, &uploadStoreMock{}, signer, &dispatcherMock{})

	w := httptest.NewRecorder()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/files/f1/download?token=tok", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "f1"}}

	handler.Download(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestFileHandlerDelete(t *testing.T) {
	workflow := &workflowMock{}
	handler := NewFileHandler(workflow, &uploadStoreMock{}, &signerMock{}, &dispatcherMock{})

	w := httptest.NewRecorder()
	c := testActorContext(t, w, models.RoleAdmin)
	req, _ := http.NewRequest(http.MethodDelete, "/files/f1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "f1"}}

	handler.Delete(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, workflow.deleteCalled)
}
