package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/file-approval-api/internal/dto"
	"github.com/noah-isme/file-approval-api/internal/models"
	"github.com/noah-isme/file-approval-api/internal/repository"
	appErrors "github.com/noah-isme/file-approval-api/pkg/errors"
)

type workflowFileStore interface {
	Create(ctx context.Context, file *models.FileSubmission, history *models.StatusHistory) error
	GetByID(ctx context.Context, id string) (*models.FileSubmission, error)
	List(ctx context.Context, filter models.FileFilter) ([]models.FileSubmission, error)
	Transition(ctx context.Context, params repository.TransitionParams) error
	GetHistory(ctx context.Context, fileID string) ([]models.StatusHistory, error)
	Delete(ctx context.Context, fileID string) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Publisher places a finally approved file at its public network location and
// returns the URL clients use to reach it.
type Publisher interface {
	Publish(ctx context.Context, storedPath, fileID, originalName string) (string, error)
}

// UploadRemover deletes a stored upload blob. Removal is best effort; a
// dangling blob is preferable to a failed delete.
type UploadRemover interface {
	Remove(ctx context.Context, storedPath string) error
}

// UploadPolicy bounds what submitters may upload.
type UploadPolicy struct {
	MaxSizeBytes int64
	AllowedMIMEs []string
}

// SubmitParams carries the metadata of an already stored upload into the
// workflow. The handler is responsible for writing the blob; the service owns
// everything from validation onward.
type SubmitParams struct {
	OriginalName string
	StoredPath   string
	Size         int64
	MimeType     string
	Description  string
}

// WorkflowService is the approval engine. Every status change goes through
// here: guard check, validation, the atomic repository transition, audit, and
// the domain events the dispatcher fans out after commit.
type WorkflowService struct {
	files     workflowFileStore
	audit     auditLogger
	publisher Publisher
	uploads   UploadRemover
	policy    UploadPolicy
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewWorkflowService constructs the engine. metrics may be nil.
func NewWorkflowService(files workflowFileStore, audit auditLogger, publisher Publisher, uploads UploadRemover, policy UploadPolicy, metrics *MetricsService, logger *zap.Logger) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{
		files:     files,
		audit:     audit,
		publisher: publisher,
		uploads:   uploads,
		policy:    policy,
		metrics:   metrics,
		logger:    logger,
	}
}

// Submit registers an uploaded file at the start of the pipeline.
func (s *WorkflowService) Submit(ctx context.Context, params SubmitParams, actor models.Actor) (*models.FileSubmission, []models.DomainEvent, error) {
	if err := s.validateUpload(params); err != nil {
		return nil, nil, err
	}
	now := time.Now().UTC()
	file := &models.FileSubmission{
		OriginalName:  strings.TrimSpace(params.OriginalName),
		StoredPath:    params.StoredPath,
		Size:          params.Size,
		MimeType:      params.MimeType,
		Description:   strings.TrimSpace(params.Description),
		SubmitterID:   actor.ID,
		SubmitterName: actor.Username,
		SubmitterTeam: actor.Team,
		UploadedAt:    now,
		Status:        models.StatusUploaded,
	}
	history := s.historyFor(nil, models.StatusUploaded, actor, nil)
	if err := s.files.Create(ctx, file, history); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store file submission")
	}
	s.emitAudit(ctx, actor, models.AuditActionFileSubmit, file.ID)
	events := []models.DomainEvent{models.FileSubmitted{File: *file, Actor: actor}}
	return file, events, nil
}

// TeamLeaderReview records the first stage decision on a file.
func (s *WorkflowService) TeamLeaderReview(ctx context.Context, fileID string, req dto.ReviewRequest, actor models.Actor) (*models.FileSubmission, []models.DomainEvent, error) {
	file, err := s.load(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	if decision := CanTransition(actor, file, ActionTeamLeaderReview); !decision.Allowed {
		return nil, nil, guardError(decision)
	}
	approve, comment, err := parseDecision(req)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	newStatus := models.StatusTeamLeaderApproved
	commentType := models.CommentTypeApproval
	if !approve {
		newStatus = models.StatusRejectedByTeamLeader
		commentType = models.CommentTypeRejection
	}

	params := repository.TransitionParams{
		FileID:         file.ID,
		ExpectedStatus: file.Status,
		NewStatus:      newStatus,
		TeamLeader: &repository.ReviewStamp{
			ReviewerID: actor.ID,
			Username:   actor.Username,
			ReviewedAt: now,
			Comment:    optionalString(comment),
		},
		History: *s.historyFor(file, newStatus, actor, optionalString(comment)),
	}
	if !approve {
		params.Rejection = &repository.Rejection{Reason: comment, RejectedBy: actor.ID, RejectedAt: now}
	}
	if comment != "" {
		params.Comment = reviewComment(file.ID, actor, comment, commentType)
	}

	if err := s.transition(ctx, params); err != nil {
		return nil, nil, err
	}

	from := file.Status
	file.Status = newStatus
	file.TeamLeaderID = &actor.ID
	file.TeamLeaderUsername = &actor.Username
	file.TeamLeaderReviewedAt = &now
	file.TeamLeaderComment = optionalString(comment)
	if !approve {
		file.RejectionReason = optionalString(comment)
		file.RejectedBy = &actor.ID
		file.RejectedAt = &now
	}

	s.emitAudit(ctx, actor, models.AuditActionFileReview, file.ID)
	return file, transitionEvents(file, from, actor, params.Comment), nil
}

// AdminReview records the final stage decision. Approval publishes the file to
// its public network location before the status flips; a file is never
// final_approved without a reachable URL.
func (s *WorkflowService) AdminReview(ctx context.Context, fileID string, req dto.ReviewRequest, actor models.Actor) (*models.FileSubmission, []models.DomainEvent, error) {
	file, err := s.load(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	if decision := CanTransition(actor, file, ActionAdminReview); !decision.Allowed {
		return nil, nil, guardError(decision)
	}
	approve, comment, err := parseDecision(req)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	newStatus := models.StatusFinalApproved
	commentType := models.CommentTypeApproval
	var publicURL string
	if approve {
		publicURL, err = s.publisher.Publish(ctx, file.StoredPath, file.ID, file.OriginalName)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to publish file to the network share")
		}
	} else {
		newStatus = models.StatusRejectedByAdmin
		commentType = models.CommentTypeRejection
	}

	params := repository.TransitionParams{
		FileID:         file.ID,
		ExpectedStatus: file.Status,
		NewStatus:      newStatus,
		Admin: &repository.ReviewStamp{
			ReviewerID: actor.ID,
			Username:   actor.Username,
			ReviewedAt: now,
			Comment:    optionalString(comment),
		},
		History: *s.historyFor(file, newStatus, actor, optionalString(comment)),
	}
	if approve {
		params.Publication = &repository.Publication{PublicNetworkURL: publicURL, ApprovedAt: now}
	} else {
		params.Rejection = &repository.Rejection{Reason: comment, RejectedBy: actor.ID, RejectedAt: now}
	}
	if comment != "" {
		params.Comment = reviewComment(file.ID, actor, comment, commentType)
	}

	if err := s.transition(ctx, params); err != nil {
		return nil, nil, err
	}

	from := file.Status
	file.Status = newStatus
	file.AdminID = &actor.ID
	file.AdminUsername = &actor.Username
	file.AdminReviewedAt = &now
	file.AdminComment = optionalString(comment)
	if approve {
		file.PublicNetworkURL = &publicURL
		file.FinalApprovedAt = &now
	} else {
		file.RejectionReason = optionalString(comment)
		file.RejectedBy = &actor.ID
		file.RejectedAt = &now
	}

	s.emitAudit(ctx, actor, models.AuditActionFileReview, file.ID)
	return file, transitionEvents(file, from, actor, params.Comment), nil
}

// Withdraw takes a still pending file out of the pipeline at the submitter's
// request.
func (s *WorkflowService) Withdraw(ctx context.Context, fileID, reason string, actor models.Actor) (*models.FileSubmission, []models.DomainEvent, error) {
	file, err := s.load(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	if decision := CanTransition(actor, file, ActionWithdraw); !decision.Allowed {
		return nil, nil, guardError(decision)
	}

	reason = strings.TrimSpace(reason)
	params := repository.TransitionParams{
		FileID:         file.ID,
		ExpectedStatus: file.Status,
		NewStatus:      models.StatusWithdrawn,
		History:        *s.historyFor(file, models.StatusWithdrawn, actor, optionalString(reason)),
	}
	if err := s.transition(ctx, params); err != nil {
		return nil, nil, err
	}

	from := file.Status
	file.Status = models.StatusWithdrawn
	s.emitAudit(ctx, actor, models.AuditActionFileWithdraw, file.ID)
	return file, transitionEvents(file, from, actor, nil), nil
}

// Resubmit starts a fresh submission linked to a rejected predecessor. The
// rejected file keeps its terminal status and full history; the new file
// restarts at the beginning of the pipeline.
func (s *WorkflowService) Resubmit(ctx context.Context, previousID string, params SubmitParams, actor models.Actor) (*models.FileSubmission, []models.DomainEvent, error) {
	previous, err := s.load(ctx, previousID)
	if err != nil {
		return nil, nil, err
	}
	if decision := CanTransition(actor, previous, ActionResubmit); !decision.Allowed {
		return nil, nil, guardError(decision)
	}
	if err := s.validateUpload(params); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	file := &models.FileSubmission{
		OriginalName:   strings.TrimSpace(params.OriginalName),
		StoredPath:     params.StoredPath,
		Size:           params.Size,
		MimeType:       params.MimeType,
		Description:    strings.TrimSpace(params.Description),
		SubmitterID:    actor.ID,
		SubmitterName:  actor.Username,
		SubmitterTeam:  actor.Team,
		UploadedAt:     now,
		Status:         models.StatusUploaded,
		PreviousFileID: &previous.ID,
	}
	reason := fmt.Sprintf("resubmission of file %s", previous.ID)
	history := s.historyFor(nil, models.StatusUploaded, actor, &reason)
	if err := s.files.Create(ctx, file, history); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store resubmission")
	}

	s.emitAudit(ctx, actor, models.AuditActionFileSubmit, file.ID)
	events := []models.DomainEvent{models.FileSubmitted{File: *file, Actor: actor}}
	return file, events, nil
}

// Get returns a file the actor is allowed to see.
func (s *WorkflowService) Get(ctx context.Context, fileID string, actor models.Actor) (*models.FileSubmission, error) {
	file, err := s.load(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, file) {
		return nil, appErrors.ErrForbidden
	}
	return file, nil
}

// List returns files scoped to the actor: users see their own submissions,
// team leaders their team's, admins everything.
func (s *WorkflowService) List(ctx context.Context, query dto.FileQuery, actor models.Actor) ([]models.FileSubmission, error) {
	filter := models.FileFilter{
		Status:      query.Status,
		Stage:       query.Stage,
		Team:        query.Team,
		SubmitterID: query.SubmitterID,
		Limit:       query.Limit,
		Offset:      query.Offset,
	}
	switch actor.Role {
	case models.RoleAdmin:
		// full access, filters as requested
	case models.RoleTeamLeader:
		filter.Team = actor.Team
	default:
		filter.SubmitterID = actor.ID
	}
	files, err := s.files.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list files")
	}
	return files, nil
}

// History returns the status trail of a file, oldest first.
func (s *WorkflowService) History(ctx context.Context, fileID string, actor models.Actor) ([]models.StatusHistory, error) {
	file, err := s.load(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, file) {
		return nil, appErrors.ErrForbidden
	}
	entries, err := s.files.GetHistory(ctx, file.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load status history")
	}
	return entries, nil
}

// Delete removes a file and everything attached to it. Admins may delete any
// file; submitters only their own once it is out of the pipeline.
func (s *WorkflowService) Delete(ctx context.Context, fileID string, actor models.Actor) error {
	file, err := s.load(ctx, fileID)
	if err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin {
		if file.SubmitterID != actor.ID {
			return appErrors.ErrForbidden
		}
		if stage := file.Stage(); stage != models.StageReturnedToUser && stage != models.StageWithdrawn {
			return appErrors.Clone(appErrors.ErrStateConflict, "only returned or withdrawn files can be deleted by their submitter")
		}
	}
	if err := s.files.Delete(ctx, file.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to delete file")
	}
	if s.uploads != nil {
		if err := s.uploads.Remove(ctx, file.StoredPath); err != nil {
			s.logger.Warn("failed to remove stored upload", zap.String("file_id", file.ID), zap.Error(err))
		}
	}
	s.emitAudit(ctx, actor, models.AuditActionFileDelete, file.ID)
	return nil
}

func (s *WorkflowService) load(ctx context.Context, fileID string) (*models.FileSubmission, error) {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load file")
	}
	return file, nil
}

func (s *WorkflowService) transition(ctx context.Context, params repository.TransitionParams) error {
	if err := s.files.Transition(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrStateConflict, "file was reviewed concurrently")
		}
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to apply transition")
	}
	s.metrics.ObserveTransition(params.ExpectedStatus, params.NewStatus)
	return nil
}

func (s *WorkflowService) historyFor(file *models.FileSubmission, newStatus models.FileStatus, actor models.Actor, reason *string) *models.StatusHistory {
	entry := &models.StatusHistory{
		NewStatus:     newStatus,
		NewStage:      models.StageForStatus(newStatus),
		ChangedByID:   actor.ID,
		ChangedByRole: actor.Role,
		Reason:        reason,
	}
	if file != nil {
		oldStatus := file.Status
		oldStage := file.Stage()
		entry.FileID = file.ID
		entry.OldStatus = &oldStatus
		entry.OldStage = &oldStage
	}
	return entry
}

func (s *WorkflowService) validateUpload(params SubmitParams) error {
	if strings.TrimSpace(params.OriginalName) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "file name is required")
	}
	if params.Size <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "uploaded file is empty")
	}
	if s.policy.MaxSizeBytes > 0 && params.Size > s.policy.MaxSizeBytes {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the maximum size of %d bytes", s.policy.MaxSizeBytes))
	}
	if len(s.policy.AllowedMIMEs) > 0 {
		allowed := false
		for _, mime := range s.policy.AllowedMIMEs {
			if strings.EqualFold(mime, params.MimeType) {
				allowed = true
				break
			}
		}
		if !allowed {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %s is not allowed", params.MimeType))
		}
	}
	return nil
}

func (s *WorkflowService) emitAudit(ctx context.Context, actor models.Actor, action, fileID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actor.ID,
		Action:     action,
		Resource:   "file",
		ResourceID: &fileID,
		IPAddress:  "system",
		UserAgent:  "workflow-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

// parseDecision validates the review body. Rejections always need an
// explanatory comment; approvals may carry one.
func parseDecision(req dto.ReviewRequest) (approve bool, comment string, err error) {
	comment = strings.TrimSpace(req.Comments)
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "approve":
		return true, comment, nil
	case "reject":
		if comment == "" {
			return false, "", appErrors.Clone(appErrors.ErrValidation, "a rejection requires an explanatory comment")
		}
		return false, comment, nil
	default:
		return false, "", appErrors.Clone(appErrors.ErrValidation, "action must be approve or reject")
	}
}

func guardError(decision GuardDecision) error {
	if decision.Authorization {
		return appErrors.Clone(appErrors.ErrForbidden, decision.Reason)
	}
	return appErrors.Clone(appErrors.ErrStateConflict, decision.Reason)
}

func canView(actor models.Actor, file *models.FileSubmission) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleTeamLeader:
		return actor.Team == file.SubmitterTeam || actor.ID == file.SubmitterID
	default:
		return actor.ID == file.SubmitterID
	}
}

func reviewComment(fileID string, actor models.Actor, body string, commentType models.CommentType) *models.Comment {
	return &models.Comment{
		FileID:     fileID,
		AuthorID:   actor.ID,
		AuthorName: actor.Username,
		AuthorRole: actor.Role,
		Body:       body,
		Type:       commentType,
	}
}

func transitionEvents(file *models.FileSubmission, from models.FileStatus, actor models.Actor, comment *models.Comment) []models.DomainEvent {
	events := []models.DomainEvent{
		models.FileTransitioned{File: *file, FromStatus: from, ToStatus: file.Status, Actor: actor},
	}
	if comment != nil {
		events = append(events, models.CommentPosted{
			FileID:    file.ID,
			CommentID: comment.ID,
			Body:      comment.Body,
			Actor:     actor,
		})
	}
	return events
}

func optionalString(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}
