package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/file-approval-api/internal/dto"
	"github.com/noah-isme/file-approval-api/internal/models"
	appErrors "github.com/noah-isme/file-approval-api/pkg/errors"
)

type stubCommentStore struct {
	comments map[string]*models.Comment
	replies  map[string]bool

	created        []*models.Comment
	createdReplies []*models.Reply
}

func (s *stubCommentStore) Create(ctx context.Context, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = "c-new"
	}
	s.created = append(s.created, comment)
	return nil
}

func (s *stubCommentStore) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	comment, ok := s.comments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return comment, nil
}

func (s *stubCommentStore) ListByFile(ctx context.Context, fileID string) ([]models.Comment, error) {
	var out []models.Comment
	for _, comment := range s.comments {
		if comment.FileID == fileID {
			out = append(out, *comment)
		}
	}
	return out, nil
}

func (s *stubCommentStore) CreateReply(ctx context.Context, reply *models.Reply) error {
	if reply.ID == "" {
		reply.ID = "r-new"
	}
	s.createdReplies = append(s.createdReplies, reply)
	return nil
}

func (s *stubCommentStore) ReplyExists(ctx context.Context, id string) (bool, error) {
	return s.replies[id], nil
}

func newTestComments(files *stubFileStore) (*CommentService, *stubCommentStore, *stubAudit) {
	store := &stubCommentStore{comments: map[string]*models.Comment{}, replies: map[string]bool{}}
	audit := &stubAudit{}
	return NewCommentService(store, files, audit, nil), store, audit
}

func TestPostCommentDefaultsToGeneralType(t *testing.T) {
	files := &stubFileStore{files: map[string]*models.FileSubmission{"f1": pendingFile(models.StatusUploaded)}}
	svc, store, audit := newTestComments(files)

	comment, events, err := svc.PostComment(context.Background(), "f1",
		dto.PostCommentRequest{Body: "  please double check page 3  "}, testLeader)
	require.NoError(t, err)

	assert.Equal(t, "please double check page 3", comment.Body)
	assert.Equal(t, models.CommentTypeGeneral, comment.Type)
	assert.Equal(t, "tl1", comment.AuthorID)
	assert.Equal(t, models.RoleTeamLeader, comment.AuthorRole)
	require.Len(t, store.created, 1)

	require.Len(t, events, 1)
	posted, ok := events[0].(models.CommentPosted)
	require.True(t, ok)
	assert.Equal(t, "f1", posted.FileID)
	assert.Equal(t, comment.ID, posted.CommentID)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionCommentPost, audit.logs[0].Action)
}

func TestPostCommentValidation(t *testing.T) {
	files := &stubFileStore{files: map[string]*models.FileSubmission{"f1": pendingFile(models.StatusUploaded)}}
	svc, store, _ := newTestComments(files)

	_, _, err := svc.PostComment(context.Background(), "f1", dto.PostCommentRequest{Body: "   "}, testLeader)
	assertCode(t, err, appErrors.ErrValidation.Code)

	_, _, err = svc.PostComment(context.Background(), "f1",
		dto.PostCommentRequest{Body: "x", Type: models.CommentType("shouting")}, testLeader)
	assertCode(t, err, appErrors.ErrValidation.Code)

	assert.Empty(t, store.created)
}

func TestPostCommentHonoursVisibility(t *testing.T) {
	files := &stubFileStore{files: map[string]*models.FileSubmission{"f1": pendingFile(models.StatusUploaded)}}
	svc, _, _ := newTestComments(files)

	stranger := models.Actor{ID: "u9", Role: models.RoleUser, Team: "data"}
	_, _, err := svc.PostComment(context.Background(), "f1", dto.PostCommentRequest{Body: "hi"}, stranger)
	assertCode(t, err, appErrors.ErrForbidden.Code)

	_, _, err = svc.PostComment(context.Background(), "missing", dto.PostCommentRequest{Body: "hi"}, testAdmin)
	assertCode(t, err, appErrors.ErrNotFound.Code)
}

func TestPostReplyAttachesToParent(t *testing.T) {
	files := &stubFileStore{files: map[string]*models.FileSubmission{"f1": pendingFile(models.StatusUploaded)}}
	svc, store, _ := newTestComments(files)
	store.comments["c1"] = &models.Comment{ID: "c1", FileID: "f1", AuthorID: "tl1", Body: "wrong totals"}

	reply, events, err := svc.PostReply(context.Background(), "c1",
		dto.PostReplyRequest{Body: "fixed in v2"}, testSubmitter)
	require.NoError(t, err)

	assert.Equal(t, "c1", reply.CommentID)
	assert.Equal(t, "u1", reply.AuthorID)
	require.Len(t, store.createdReplies, 1)

	require.Len(t, events, 1)
	posted, ok := events[0].(models.CommentPosted)
	require.True(t, ok)
	assert.Equal(t, "f1", posted.FileID)
	assert.Equal(t, "c1", posted.CommentID)
}

func TestPostReplyToReplyRejected(t *testing.T) {
	files := &stubFileStore{files: map[string]*models.FileSubmission{"f1": pendingFile(models.StatusUploaded)}}
	svc, store, _ := newTestComments(files)
	store.replies["r1"] = true

	_, _, err := svc.PostReply(context.Background(), "r1",
		dto.PostReplyRequest{Body: "me too"}, testSubmitter)
	assertCode(t, err, appErrors.ErrValidation.Code)
	assert.Contains(t, err.Error(), "nested")
	assert.Empty(t, store.createdReplies)
}

func TestPostReplyUnknownCommentNotFound(t *testing.T) {
	files := &stubFileStore{files: map[string]*models.FileSubmission{"f1": pendingFile(models.StatusUploaded)}}
	svc, _, _ := newTestComments(files)

	_, _, err := svc.PostReply(context.Background(), "missing",
		dto.PostReplyRequest{Body: "hello"}, testSubmitter)
	assertCode(t, err, appErrors.ErrNotFound.Code)
}

func TestGetThreadHonoursVisibility(t *testing.T) {
	files := &stubFileStore{files: map[string]*models.FileSubmission{"f1": pendingFile(models.StatusUploaded)}}
	svc, store, _ := newTestComments(files)
	store.comments["c1"] = &models.Comment{ID: "c1", FileID: "f1", Body: "first"}

	comments, err := svc.GetThread(context.Background(), "f1", testSubmitter)
	require.NoError(t, err)
	assert.Len(t, comments, 1)

	stranger := models.Actor{ID: "u9", Role: models.RoleUser, Team: "data"}
	_, err = svc.GetThread(context.Background(), "f1", stranger)
	assertCode(t, err, appErrors.ErrForbidden.Code)
}
