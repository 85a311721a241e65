package models

import "time"

// CommentType classifies review feedback.
type CommentType string

const (
	CommentTypeGeneral   CommentType = "general"
	CommentTypeApproval  CommentType = "approval"
	CommentTypeRejection CommentType = "rejection"
	CommentTypeRevision  CommentType = "revision"
)

// ValidCommentType reports whether the value is a known comment type.
func ValidCommentType(t CommentType) bool {
	switch t {
	case CommentTypeGeneral, CommentTypeApproval, CommentTypeRejection, CommentTypeRevision:
		return true
	}
	return false
}

// Comment is a top-level entry in a file's review thread. Threads are
// append-only: no edit or delete.
type Comment struct {
	ID         string      `db:"id" json:"id"`
	FileID     string      `db:"file_id" json:"fileId"`
	AuthorID   string      `db:"author_id" json:"authorId"`
	AuthorName string      `db:"author_name" json:"authorName"`
	AuthorRole UserRole    `db:"author_role" json:"authorRole"`
	Body       string      `db:"body" json:"body"`
	Type       CommentType `db:"type" json:"type"`
	CreatedAt  time.Time   `db:"created_at" json:"createdAt"`

	Replies []Reply `db:"-" json:"replies,omitempty"`
}

// Reply is a response to a Comment. Replies nest exactly one level deep;
// keeping them in their own table makes deeper nesting unrepresentable.
type Reply struct {
	ID         string    `db:"id" json:"id"`
	CommentID  string    `db:"comment_id" json:"commentId"`
	AuthorID   string    `db:"author_id" json:"authorId"`
	AuthorName string    `db:"author_name" json:"authorName"`
	AuthorRole UserRole  `db:"author_role" json:"authorRole"`
	Body       string    `db:"body" json:"body"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
