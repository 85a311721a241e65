package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/file-approval-api/internal/dto"
	"github.com/noah-isme/file-approval-api/internal/models"
	appErrors "github.com/noah-isme/file-approval-api/pkg/errors"
)

type commentStore interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	ListByFile(ctx context.Context, fileID string) ([]models.Comment, error)
	CreateReply(ctx context.Context, reply *models.Reply) error
	ReplyExists(ctx context.Context, id string) (bool, error)
}

type commentFileStore interface {
	GetByID(ctx context.Context, id string) (*models.FileSubmission, error)
}

// CommentService manages the append-only review thread on a file.
type CommentService struct {
	comments commentStore
	files    commentFileStore
	audit    auditLogger
	logger   *zap.Logger
}

// NewCommentService constructs the service.
func NewCommentService(comments commentStore, files commentFileStore, audit auditLogger, logger *zap.Logger) *CommentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentService{comments: comments, files: files, audit: audit, logger: logger}
}

// PostComment adds a top-level comment to a file's thread.
func (s *CommentService) PostComment(ctx context.Context, fileID string, req dto.PostCommentRequest, actor models.Actor) (*models.Comment, []models.DomainEvent, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "comment body is required")
	}
	commentType := req.Type
	if commentType == "" {
		commentType = models.CommentTypeGeneral
	}
	if !models.ValidCommentType(commentType) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown comment type")
	}

	file, err := s.loadFile(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	if !canView(actor, file) {
		return nil, nil, appErrors.ErrForbidden
	}

	comment := &models.Comment{
		FileID:     file.ID,
		AuthorID:   actor.ID,
		AuthorName: actor.Username,
		AuthorRole: actor.Role,
		Body:       body,
		Type:       commentType,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store comment")
	}

	s.emitAudit(ctx, actor, comment.ID)
	events := []models.DomainEvent{models.CommentPosted{
		FileID:    file.ID,
		CommentID: comment.ID,
		Body:      body,
		Actor:     actor,
	}}
	return comment, events, nil
}

// PostReply adds a reply under an existing top-level comment. Replies to
// replies are rejected; the thread nests exactly one level.
func (s *CommentService) PostReply(ctx context.Context, commentID string, req dto.PostReplyRequest, actor models.Actor) (*models.Reply, []models.DomainEvent, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "reply body is required")
	}

	parent, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			isReply, checkErr := s.comments.ReplyExists(ctx, commentID)
			if checkErr != nil {
				return nil, nil, appErrors.Wrap(checkErr, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to resolve comment")
			}
			if isReply {
				return nil, nil, appErrors.Clone(appErrors.ErrValidation, "replies cannot be nested; reply to the top-level comment instead")
			}
			return nil, nil, appErrors.ErrNotFound
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load comment")
	}

	file, err := s.loadFile(ctx, parent.FileID)
	if err != nil {
		return nil, nil, err
	}
	if !canView(actor, file) {
		return nil, nil, appErrors.ErrForbidden
	}

	reply := &models.Reply{
		CommentID:  parent.ID,
		AuthorID:   actor.ID,
		AuthorName: actor.Username,
		AuthorRole: actor.Role,
		Body:       body,
	}
	if err := s.comments.CreateReply(ctx, reply); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store reply")
	}

	s.emitAudit(ctx, actor, reply.ID)
	events := []models.DomainEvent{models.CommentPosted{
		FileID:    parent.FileID,
		CommentID: parent.ID,
		Body:      body,
		Actor:     actor,
	}}
	return reply, events, nil
}

// GetThread returns the full comment thread of a file, oldest first.
func (s *CommentService) GetThread(ctx context.Context, fileID string, actor models.Actor) ([]models.Comment, error) {
	file, err := s.loadFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, file) {
		return nil, appErrors.ErrForbidden
	}
	comments, err := s.comments.ListByFile(ctx, file.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load comment thread")
	}
	return comments, nil
}

func (s *CommentService) loadFile(ctx context.Context, fileID string) (*models.FileSubmission, error) {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load file")
	}
	return file, nil
}

func (s *CommentService) emitAudit(ctx context.Context, actor models.Actor, resourceID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionCommentPost,
		Resource:   "comment",
		ResourceID: &resourceID,
		IPAddress:  "system",
		UserAgent:  "comment-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
