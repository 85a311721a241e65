package dto

import "github.com/noah-isme/file-approval-api/internal/models"

// NotificationList is the payload of the per-user notification listing:
// newest first, with the unread count polling clients badge on.
type NotificationList struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unreadCount"`
}
