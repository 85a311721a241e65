package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/file-approval-api/internal/models"
)

// FileRepository persists file submissions and their status history.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository constructs the repository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

const fileColumns = `id, original_name, stored_path, size, mime_type, description,
       submitter_id, submitter_name, submitter_team, uploaded_at, status, previous_file_id,
       team_leader_id, team_leader_username, team_leader_reviewed_at, team_leader_comment,
       admin_id, admin_username, admin_reviewed_at, admin_comment,
       public_network_url, final_approved_at, rejection_reason, rejected_by, rejected_at`

// Create inserts a new file submission together with its initial history row
// in a single transaction.
func (r *FileRepository) Create(ctx context.Context, file *models.FileSubmission, history *models.StatusHistory) (err error) {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.Status == "" {
		file.Status = models.StatusUploaded
	}
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin file create: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertQuery = `INSERT INTO files
	(id, original_name, stored_path, size, mime_type, description, submitter_id, submitter_name, submitter_team, uploaded_at, status, previous_file_id)
	VALUES (:id, :original_name, :stored_path, :size, :mime_type, :description, :submitter_id, :submitter_name, :submitter_team, :uploaded_at, :status, :previous_file_id)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, file); err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	if history != nil {
		history.FileID = file.ID
		if err = insertHistory(ctx, tx, history); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit file create: %w", err)
	}
	return nil
}

// GetByID fetches a file submission by identifier.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*models.FileSubmission, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = $1`, fileColumns)
	var file models.FileSubmission
	if err := r.db.GetContext(ctx, &file, query, id); err != nil {
		return nil, err
	}
	return &file, nil
}

// List returns file submissions matching the filter (newest first).
func (r *FileRepository) List(ctx context.Context, filter models.FileFilter) ([]models.FileSubmission, error) {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM files`, fileColumns))
	args := make([]interface{}, 0, 4)

	statuses := filter.Status
	if filter.Stage != "" {
		statuses = append(statuses, statusesForStage(filter.Stage)...)
	}

	conditions := make([]string, 0, 3)
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Team != "" {
		args = append(args, filter.Team)
		conditions = append(conditions, fmt.Sprintf("submitter_team = $%d", len(args)))
	}
	if filter.SubmitterID != "" {
		args = append(args, filter.SubmitterID)
		conditions = append(conditions, fmt.Sprintf("submitter_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY uploaded_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var files []models.FileSubmission
	if err := r.db.SelectContext(ctx, &files, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

func statusesForStage(stage models.FileStage) []models.FileStatus {
	all := []models.FileStatus{
		models.StatusUploaded,
		models.StatusTeamLeaderApproved,
		models.StatusFinalApproved,
		models.StatusRejectedByTeamLeader,
		models.StatusRejectedByAdmin,
		models.StatusWithdrawn,
	}
	matched := make([]models.FileStatus, 0, 2)
	for _, status := range all {
		if models.StageForStatus(status) == stage {
			matched = append(matched, status)
		}
	}
	return matched
}

// ReviewStamp carries reviewer metadata written by a transition.
type ReviewStamp struct {
	ReviewerID string
	Username   string
	ReviewedAt time.Time
	Comment    *string
}

// Publication carries the shared-location result of a final approval.
type Publication struct {
	PublicNetworkURL string
	ApprovedAt       time.Time
}

// Rejection carries terminal rejection metadata.
type Rejection struct {
	Reason     string
	RejectedBy string
	RejectedAt time.Time
}

// TransitionParams groups everything a single workflow transition writes.
type TransitionParams struct {
	FileID         string
	ExpectedStatus models.FileStatus
	NewStatus      models.FileStatus

	TeamLeader  *ReviewStamp
	Admin       *ReviewStamp
	Publication *Publication
	Rejection   *Rejection

	History models.StatusHistory
	Comment *models.Comment
}

// Transition atomically applies a status change: the guarded file update, the
// history row and the optional review comment succeed or fail together. The
// update is conditioned on the expected prior status so concurrent reviewers
// lose the race with sql.ErrNoRows instead of silently overwriting.
func (r *FileRepository) Transition(ctx context.Context, params TransitionParams) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	setParts := []string{"status = :status"}
	values := map[string]interface{}{
		"id":       params.FileID,
		"expected": params.ExpectedStatus,
		"status":   params.NewStatus,
	}
	if params.TeamLeader != nil {
		setParts = append(setParts,
			"team_leader_id = :tl_id",
			"team_leader_username = :tl_username",
			"team_leader_reviewed_at = :tl_reviewed_at",
			"team_leader_comment = :tl_comment",
		)
		values["tl_id"] = params.TeamLeader.ReviewerID
		values["tl_username"] = params.TeamLeader.Username
		values["tl_reviewed_at"] = params.TeamLeader.ReviewedAt
		values["tl_comment"] = params.TeamLeader.Comment
	}
	if params.Admin != nil {
		setParts = append(setParts,
			"admin_id = :admin_id",
			"admin_username = :admin_username",
			"admin_reviewed_at = :admin_reviewed_at",
			"admin_comment = :admin_comment",
		)
		values["admin_id"] = params.Admin.ReviewerID
		values["admin_username"] = params.Admin.Username
		values["admin_reviewed_at"] = params.Admin.ReviewedAt
		values["admin_comment"] = params.Admin.Comment
	}
	if params.Publication != nil {
		setParts = append(setParts, "public_network_url = :public_url", "final_approved_at = :final_approved_at")
		values["public_url"] = params.Publication.PublicNetworkURL
		values["final_approved_at"] = params.Publication.ApprovedAt
	}
	if params.Rejection != nil {
		setParts = append(setParts, "rejection_reason = :rejection_reason", "rejected_by = :rejected_by", "rejected_at = :rejected_at")
		values["rejection_reason"] = params.Rejection.Reason
		values["rejected_by"] = params.Rejection.RejectedBy
		values["rejected_at"] = params.Rejection.RejectedAt
	}

	query := fmt.Sprintf("UPDATE files SET %s WHERE id = :id AND status = :expected", strings.Join(setParts, ", "))
	result, err := tx.NamedExecContext(ctx, query, values)
	if err != nil {
		return fmt.Errorf("update file status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check transition rows: %w", err)
	}
	if rows == 0 {
		err = sql.ErrNoRows
		return err
	}

	history := params.History
	history.FileID = params.FileID
	if err = insertHistory(ctx, tx, &history); err != nil {
		return err
	}

	if params.Comment != nil {
		params.Comment.FileID = params.FileID
		if err = insertComment(ctx, tx, params.Comment); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

// GetHistory returns the audit trail for a file, oldest first.
func (r *FileRepository) GetHistory(ctx context.Context, fileID string) ([]models.StatusHistory, error) {
	const query = `SELECT id, file_id, old_status, new_status, old_stage, new_stage, changed_by_id, changed_by_role, reason, created_at
	FROM status_history WHERE file_id = $1 ORDER BY created_at ASC`
	var entries []models.StatusHistory
	if err := r.db.SelectContext(ctx, &entries, query, fileID); err != nil {
		return nil, fmt.Errorf("get status history: %w", err)
	}
	return entries, nil
}

// Delete removes a file and everything it owns: replies, comments, history and
// notifications referencing it. Children never outlive the file.
func (r *FileRepository) Delete(ctx context.Context, fileID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin file delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	cascades := []string{
		`DELETE FROM replies WHERE comment_id IN (SELECT id FROM comments WHERE file_id = $1)`,
		`DELETE FROM comments WHERE file_id = $1`,
		`DELETE FROM status_history WHERE file_id = $1`,
		`DELETE FROM notifications WHERE file_id = $1`,
	}
	for _, query := range cascades {
		if _, err = tx.ExecContext(ctx, query, fileID); err != nil {
			return fmt.Errorf("cascade file delete: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check delete rows: %w", err)
	}
	if rows == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit file delete: %w", err)
	}
	return nil
}

func insertHistory(ctx context.Context, tx *sqlx.Tx, entry *models.StatusHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO status_history
	(id, file_id, old_status, new_status, old_stage, new_stage, changed_by_id, changed_by_role, reason, created_at)
	VALUES (:id, :file_id, :old_status, :new_status, :old_stage, :new_stage, :changed_by_id, :changed_by_role, :reason, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

func insertComment(ctx context.Context, tx *sqlx.Tx, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO comments (id, file_id, author_id, author_name, author_role, body, type, created_at)
	VALUES (:id, :file_id, :author_id, :author_name, :author_role, :body, :type, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}
