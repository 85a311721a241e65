package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/file-approval-api/internal/models"
)

// CommentRepository persists review comments and their replies.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository constructs the repository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

const commentColumns = `id, file_id, author_id, author_name, author_role, body, type, created_at`

// Create inserts a standalone comment (outside a workflow transition).
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO comments (id, file_id, author_id, author_name, author_role, body, type, created_at)
	VALUES (:id, :file_id, :author_id, :author_name, :author_role, :body, :type, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// GetByID fetches a single comment.
func (r *CommentRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	query := fmt.Sprintf(`SELECT %s FROM comments WHERE id = $1`, commentColumns)
	var comment models.Comment
	if err := r.db.GetContext(ctx, &comment, query, id); err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListByFile returns the comment thread for a file, oldest first, with
// replies nested under their parents.
func (r *CommentRepository) ListByFile(ctx context.Context, fileID string) ([]models.Comment, error) {
	query := fmt.Sprintf(`SELECT %s FROM comments WHERE file_id = $1 ORDER BY created_at ASC`, commentColumns)
	var comments []models.Comment
	if err := r.db.SelectContext(ctx, &comments, query, fileID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if len(comments) == 0 {
		return comments, nil
	}

	const replyQuery = `SELECT r.id, r.comment_id, r.author_id, r.author_name, r.author_role, r.body, r.created_at
	FROM replies r
	JOIN comments c ON c.id = r.comment_id
	WHERE c.file_id = $1
	ORDER BY r.created_at ASC`
	var replies []models.Reply
	if err := r.db.SelectContext(ctx, &replies, replyQuery, fileID); err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}

	byParent := make(map[string][]models.Reply, len(comments))
	for _, reply := range replies {
		byParent[reply.CommentID] = append(byParent[reply.CommentID], reply)
	}
	for i := range comments {
		comments[i].Replies = byParent[comments[i].ID]
	}
	return comments, nil
}

// CreateReply appends a reply to an existing comment.
func (r *CommentRepository) CreateReply(ctx context.Context, reply *models.Reply) error {
	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	if reply.CreatedAt.IsZero() {
		reply.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO replies (id, comment_id, author_id, author_name, author_role, body, created_at)
	VALUES (:id, :comment_id, :author_id, :author_name, :author_role, :body, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reply); err != nil {
		return fmt.Errorf("create reply: %w", err)
	}
	return nil
}

// ReplyExists reports whether the identifier belongs to a reply. Used to tell
// a reply-to-reply attempt apart from a plain missing comment.
func (r *CommentRepository) ReplyExists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT 1 FROM replies WHERE id = $1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check reply: %w", err)
	}
	return true, nil
}
