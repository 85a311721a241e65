package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/file-approval-api/internal/dto"
	"github.com/noah-isme/file-approval-api/internal/models"
	appErrors "github.com/noah-isme/file-approval-api/pkg/errors"
	"github.com/noah-isme/file-approval-api/pkg/jobs"
)

type notificationStore interface {
	CreateBatch(ctx context.Context, notifications []models.Notification) error
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	ListByRecipient(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	UnreadCount(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, id, recipientID string) error
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	Delete(ctx context.Context, id, recipientID string) error
}

type recipientDirectory interface {
	ListByRoleAndTeam(ctx context.Context, role models.UserRole, team string) ([]models.User, error)
}

type unreadCountCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// NotificationConfig tunes the background delivery queue.
type NotificationConfig struct {
	Workers        int
	QueueSize      int
	MaxRetries     int
	RetryDelay     time.Duration
	UnreadCacheTTL time.Duration
}

// NotificationService is the dispatcher: it translates domain events into
// per-recipient notification rows on a background queue, and serves the inbox
// reads (list, unread count, read state). Dispatch is fire-and-forget; a
// failed fan-out retries on the queue and never reaches the actor who caused
// the event.
type NotificationService struct {
	notifications notificationStore
	users         recipientDirectory
	files         commentFileStore
	cache         unreadCountCache
	queue         *jobs.Queue
	metrics       *MetricsService
	cacheTTL      time.Duration
	logger        *zap.Logger
}

// NewNotificationService constructs the dispatcher and its delivery queue.
// Call Start before dispatching and Stop on shutdown. metrics may be nil.
func NewNotificationService(notifications notificationStore, users recipientDirectory, files commentFileStore, cache unreadCountCache, cfg NotificationConfig, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.UnreadCacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	s := &NotificationService{
		notifications: notifications,
		users:         users,
		files:         files,
		cache:         cache,
		metrics:       metrics,
		cacheTTL:      ttl,
		logger:        logger,
	}
	s.queue = jobs.NewQueue("notifications", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.QueueSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Dispatch enqueues domain events for asynchronous fan-out. It never returns
// an error: the triggering transition already committed, so delivery problems
// are logged and retried by the queue instead of surfacing to the actor.
func (s *NotificationService) Dispatch(events ...models.DomainEvent) {
	for _, event := range events {
		if event == nil {
			continue
		}
		job := jobs.Job{ID: uuid.NewString(), Type: event.EventName(), Payload: event}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue notification event",
				zap.String("event", event.EventName()), zap.Error(err))
		}
	}
}

func (s *NotificationService) handleJob(ctx context.Context, job jobs.Job) error {
	switch event := job.Payload.(type) {
	case models.FileSubmitted:
		return s.fanOutSubmission(ctx, event)
	case models.FileTransitioned:
		return s.fanOutTransition(ctx, event)
	case models.CommentPosted:
		return s.fanOutComment(ctx, event)
	default:
		s.logger.Warn("unknown notification job payload", zap.String("type", job.Type))
		return nil
	}
}

// fanOutSubmission tells every team leader of the submitter's team that a new
// file is waiting for them.
func (s *NotificationService) fanOutSubmission(ctx context.Context, event models.FileSubmitted) error {
	leaders, err := s.users.ListByRoleAndTeam(ctx, models.RoleTeamLeader, event.File.SubmitterTeam)
	if err != nil {
		return fmt.Errorf("resolve team leaders: %w", err)
	}
	fileID := event.File.ID
	notifications := make([]models.Notification, 0, len(leaders))
	for _, leader := range leaders {
		if leader.ID == event.Actor.ID {
			continue
		}
		notifications = append(notifications, models.Notification{
			RecipientUserID: leader.ID,
			Type:            models.NotificationTypeAssignment,
			Title:           "New file awaiting review",
			Message:         fmt.Sprintf("%s submitted %q for review", event.Actor.Username, event.File.OriginalName),
			ActingUserID:    event.Actor.ID,
			ActingUsername:  event.Actor.Username,
			ActingUserRole:  event.Actor.Role,
			FileID:          &fileID,
		})
	}
	return s.deliver(ctx, notifications)
}

// fanOutTransition notifies the submitter of every decision, plus the
// forwarding team leader when the decision is the admin's.
func (s *NotificationService) fanOutTransition(ctx context.Context, event models.FileTransitioned) error {
	file := event.File
	fileID := file.ID

	var notificationType models.NotificationType
	var title, message string
	recipients := []string{file.SubmitterID}

	switch event.ToStatus {
	case models.StatusTeamLeaderApproved:
		notificationType = models.NotificationTypeApproval
		title = "File approved by team leader"
		message = fmt.Sprintf("%s approved %q and forwarded it for final approval", event.Actor.Username, file.OriginalName)
	case models.StatusRejectedByTeamLeader:
		notificationType = models.NotificationTypeRejection
		title = "File rejected by team leader"
		message = fmt.Sprintf("%s rejected %q: %s", event.Actor.Username, file.OriginalName, rejectionReason(&file))
	case models.StatusFinalApproved:
		notificationType = models.NotificationTypeFinalApproval
		title = "File published"
		message = fmt.Sprintf("%s gave final approval to %q; it is now available on the network share", event.Actor.Username, file.OriginalName)
		recipients = appendReviewer(recipients, file.TeamLeaderID)
	case models.StatusRejectedByAdmin:
		notificationType = models.NotificationTypeFinalRejection
		title = "File rejected by admin"
		message = fmt.Sprintf("%s rejected %q: %s", event.Actor.Username, file.OriginalName, rejectionReason(&file))
		recipients = appendReviewer(recipients, file.TeamLeaderID)
	default:
		// withdrawals and unknown transitions have no mandated recipients
		return nil
	}

	notifications := make([]models.Notification, 0, len(recipients))
	for _, recipient := range dedupe(recipients) {
		if recipient == event.Actor.ID {
			continue
		}
		notifications = append(notifications, models.Notification{
			RecipientUserID: recipient,
			Type:            notificationType,
			Title:           title,
			Message:         message,
			ActingUserID:    event.Actor.ID,
			ActingUsername:  event.Actor.Username,
			ActingUserRole:  event.Actor.Role,
			FileID:          &fileID,
		})
	}
	return s.deliver(ctx, notifications)
}

// fanOutComment notifies the file's other participants: the submitter and any
// reviewer already on record, minus the comment's author.
func (s *NotificationService) fanOutComment(ctx context.Context, event models.CommentPosted) error {
	file, err := s.files.GetByID(ctx, event.FileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// file deleted between comment and delivery, nothing to do
			return nil
		}
		return fmt.Errorf("load file for comment fan-out: %w", err)
	}

	recipients := []string{file.SubmitterID}
	recipients = appendReviewer(recipients, file.TeamLeaderID)
	recipients = appendReviewer(recipients, file.AdminID)

	fileID := file.ID
	notifications := make([]models.Notification, 0, len(recipients))
	for _, recipient := range dedupe(recipients) {
		if recipient == event.Actor.ID {
			continue
		}
		notifications = append(notifications, models.Notification{
			RecipientUserID: recipient,
			Type:            models.NotificationTypeComment,
			Title:           "New comment",
			Message:         fmt.Sprintf("%s commented on %q: %s", event.Actor.Username, file.OriginalName, truncate(event.Body, 140)),
			ActingUserID:    event.Actor.ID,
			ActingUsername:  event.Actor.Username,
			ActingUserRole:  event.Actor.Role,
			FileID:          &fileID,
		})
	}
	return s.deliver(ctx, notifications)
}

func (s *NotificationService) deliver(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	if err := s.notifications.CreateBatch(ctx, notifications); err != nil {
		return fmt.Errorf("persist notifications: %w", err)
	}
	s.metrics.ObserveNotificationsDispatched(len(notifications))
	for _, notification := range notifications {
		s.invalidateUnread(ctx, notification.RecipientUserID)
	}
	return nil
}

// List returns a page of the actor's notifications, newest first, together
// with the unread badge count.
func (s *NotificationService) List(ctx context.Context, recipientID string, unreadOnly bool, page, limit int, actor models.Actor) (*dto.NotificationList, *models.Pagination, error) {
	if recipientID != actor.ID && actor.Role != models.RoleAdmin {
		return nil, nil, appErrors.ErrForbidden
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	notifications, total, err := s.notifications.ListByRecipient(ctx, models.NotificationFilter{
		RecipientUserID: recipientID,
		UnreadOnly:      unreadOnly,
		Page:            page,
		Limit:           limit,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list notifications")
	}
	unread, err := s.unreadCount(ctx, recipientID)
	if err != nil {
		return nil, nil, err
	}
	list := &dto.NotificationList{Notifications: notifications, UnreadCount: unread}
	pagination := &models.Pagination{Page: page, PageSize: limit, TotalCount: total}
	return list, pagination, nil
}

// MarkRead flips a single notification owned by the actor. A notification
// that exists but belongs to someone else is an authorization failure, not a
// missing row.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID string, actor models.Actor) error {
	if err := s.notifications.MarkRead(ctx, notificationID, actor.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.classifyMarkReadMiss(ctx, notificationID, actor)
		}
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to mark notification read")
	}
	s.invalidateUnread(ctx, actor.ID)
	return nil
}

// classifyMarkReadMiss disambiguates the recipient-scoped update matching no
// rows: the notification is either absent or owned by another user.
func (s *NotificationService) classifyMarkReadMiss(ctx context.Context, notificationID string, actor models.Actor) error {
	notification, err := s.notifications.GetByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load notification")
	}
	if notification.RecipientUserID != actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "notification belongs to another user")
	}
	return appErrors.ErrNotFound
}

// MarkAllRead clears the actor's unread set. Idempotent.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID string, actor models.Actor) (int64, error) {
	if recipientID != actor.ID && actor.Role != models.RoleAdmin {
		return 0, appErrors.ErrForbidden
	}
	count, err := s.notifications.MarkAllRead(ctx, recipientID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to mark notifications read")
	}
	s.invalidateUnread(ctx, recipientID)
	return count, nil
}

// Delete removes a notification owned by the actor.
func (s *NotificationService) Delete(ctx context.Context, notificationID string, actor models.Actor) error {
	if err := s.notifications.Delete(ctx, notificationID, actor.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to delete notification")
	}
	s.invalidateUnread(ctx, actor.ID)
	return nil
}

func (s *NotificationService) unreadCount(ctx context.Context, recipientID string) (int, error) {
	key := unreadCacheKey(recipientID)
	if s.cache != nil {
		var cached int
		start := time.Now()
		err := s.cache.Get(ctx, key, &cached)
		s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		if err == nil {
			return cached, nil
		}
	}

	start := time.Now()
	count, err := s.notifications.UnreadCount(ctx, recipientID)
	s.metrics.ObserveDBQuery("notifications_unread_count", time.Since(start))
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to count unread notifications")
	}

	if s.cache != nil {
		start = time.Now()
		err = s.cache.Set(ctx, key, count, s.cacheTTL)
		s.metrics.ObserveCacheWrite(time.Since(start))
		if err != nil {
			s.logger.Warn("failed to cache unread count", zap.Error(err))
		}
	}
	return count, nil
}

func (s *NotificationService) invalidateUnread(ctx context.Context, recipientID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, unreadCacheKey(recipientID)); err != nil {
		s.logger.Warn("failed to invalidate unread count cache", zap.Error(err))
	}
}

func unreadCacheKey(recipientID string) string {
	return fmt.Sprintf("notifications:unread:%s", recipientID)
}

func appendReviewer(recipients []string, reviewerID *string) []string {
	if reviewerID != nil && *reviewerID != "" {
		recipients = append(recipients, *reviewerID)
	}
	return recipients
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func rejectionReason(file *models.FileSubmission) string {
	if file.RejectionReason != nil && *file.RejectionReason != "" {
		return *file.RejectionReason
	}
	return "no reason given"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
