package models

import "time"

// NotificationType enumerates supported notification categories.
type NotificationType string

const (
	NotificationTypeComment        NotificationType = "comment"
	NotificationTypeApproval       NotificationType = "approval"
	NotificationTypeRejection      NotificationType = "rejection"
	NotificationTypeFinalApproval  NotificationType = "final_approval"
	NotificationTypeFinalRejection NotificationType = "final_rejection"
	NotificationTypeAssignment     NotificationType = "assignment"

	// NotificationTypePasswordReset is part of the persisted enum domain;
	// account recovery is handled outside this API so nothing here emits it.
	NotificationTypePasswordReset NotificationType = "password_reset_request"
)

// Notification is a per-recipient delivery record. At most one of FileID and
// AssignmentID is set; both nil means a system notice.
type Notification struct {
	ID                string           `db:"id" json:"id"`
	RecipientUserID   string           `db:"recipient_user_id" json:"recipientUserId"`
	Type              NotificationType `db:"type" json:"type"`
	Title             string           `db:"title" json:"title"`
	Message           string           `db:"message" json:"message"`
	ActingUserID      string           `db:"acting_user_id" json:"actingUserId"`
	ActingUsername    string           `db:"acting_username" json:"actingUsername"`
	ActingUserRole    UserRole         `db:"acting_user_role" json:"actingUserRole"`
	FileID            *string          `db:"file_id" json:"fileId,omitempty"`
	AssignmentID      *string          `db:"assignment_id" json:"assignmentId,omitempty"`
	IsRead            bool             `db:"is_read" json:"isRead"`
	CreatedAt         time.Time        `db:"created_at" json:"createdAt"`
}

// NotificationFilter constrains listing queries.
type NotificationFilter struct {
	RecipientUserID string
	UnreadOnly      bool
	Page            int
	Limit           int
}
