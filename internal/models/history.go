package models

import "time"

// StatusHistory is an append-only audit record written once per successful
// workflow transition. Rows are never mutated or deleted while the file lives.
type StatusHistory struct {
	ID            string      `db:"id" json:"id"`
	FileID        string      `db:"file_id" json:"fileId"`
	OldStatus     *FileStatus `db:"old_status" json:"oldStatus,omitempty"`
	NewStatus     FileStatus  `db:"new_status" json:"newStatus"`
	OldStage      *FileStage  `db:"old_stage" json:"oldStage,omitempty"`
	NewStage      FileStage   `db:"new_stage" json:"newStage"`
	ChangedByID   string      `db:"changed_by_id" json:"changedById"`
	ChangedByRole UserRole    `db:"changed_by_role" json:"changedByRole"`
	Reason        *string     `db:"reason" json:"reason,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
}
