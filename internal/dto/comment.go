package dto

import "github.com/noah-isme/file-approval-api/internal/models"

// PostCommentRequest adds a top-level comment to a file's thread.
type PostCommentRequest struct {
	Body string             `json:"body"`
	Type models.CommentType `json:"type,omitempty"`
}

// PostReplyRequest adds a reply to an existing comment.
type PostReplyRequest struct {
	Body string `json:"body"`
}
