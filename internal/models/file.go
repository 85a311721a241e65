package models

import "time"

// FileStatus is the fine-grained workflow state of a submitted file.
type FileStatus string

const (
	StatusUploaded             FileStatus = "uploaded"
	StatusTeamLeaderApproved   FileStatus = "team_leader_approved"
	StatusFinalApproved        FileStatus = "final_approved"
	StatusRejectedByTeamLeader FileStatus = "rejected_by_team_leader"
	StatusRejectedByAdmin      FileStatus = "rejected_by_admin"
	StatusWithdrawn            FileStatus = "withdrawn"
)

// FileStage is the coarse workflow position shown to users. It is always
// derived from status, never stored or set independently.
type FileStage string

const (
	StagePendingTeamLeader FileStage = "pending_team_leader"
	StagePendingAdmin      FileStage = "pending_admin"
	StagePublished         FileStage = "published"
	StageReturnedToUser    FileStage = "returned_to_user"
	StageWithdrawn         FileStage = "withdrawn"
)

// StageForStatus derives the stage from the status. Keeping this a single pure
// function removes the class of bugs where two stored columns drift apart.
func StageForStatus(status FileStatus) FileStage {
	switch status {
	case StatusUploaded:
		return StagePendingTeamLeader
	case StatusTeamLeaderApproved:
		return StagePendingAdmin
	case StatusFinalApproved:
		return StagePublished
	case StatusRejectedByTeamLeader, StatusRejectedByAdmin:
		return StageReturnedToUser
	case StatusWithdrawn:
		return StageWithdrawn
	}
	return ""
}

// ValidStatus reports whether the value is one of the six workflow statuses.
func ValidStatus(status FileStatus) bool {
	return StageForStatus(status) != ""
}

// TerminalStage reports whether the stage has no outgoing transitions.
func TerminalStage(stage FileStage) bool {
	return stage == StagePublished || stage == StageWithdrawn
}

// FileSubmission is the aggregate root of the approval workflow. Upload
// metadata is immutable after creation; status is mutated only through
// WorkflowService transitions.
type FileSubmission struct {
	ID             string     `db:"id" json:"id"`
	OriginalName   string     `db:"original_name" json:"originalName"`
	StoredPath     string     `db:"stored_path" json:"storedPath"`
	Size           int64      `db:"size" json:"size"`
	MimeType       string     `db:"mime_type" json:"mimeType"`
	Description    string     `db:"description" json:"description,omitempty"`
	SubmitterID    string     `db:"submitter_id" json:"submitterId"`
	SubmitterName  string     `db:"submitter_name" json:"submitterName"`
	SubmitterTeam  string     `db:"submitter_team" json:"submitterTeam"`
	UploadedAt     time.Time  `db:"uploaded_at" json:"uploadedAt"`
	Status         FileStatus `db:"status" json:"status"`
	PreviousFileID *string    `db:"previous_file_id" json:"previousFileId,omitempty"`

	TeamLeaderID         *string    `db:"team_leader_id" json:"teamLeaderId,omitempty"`
	TeamLeaderUsername   *string    `db:"team_leader_username" json:"teamLeaderUsername,omitempty"`
	TeamLeaderReviewedAt *time.Time `db:"team_leader_reviewed_at" json:"teamLeaderReviewedAt,omitempty"`
	TeamLeaderComment    *string    `db:"team_leader_comment" json:"teamLeaderComment,omitempty"`

	AdminID         *string    `db:"admin_id" json:"adminId,omitempty"`
	AdminUsername   *string    `db:"admin_username" json:"adminUsername,omitempty"`
	AdminReviewedAt *time.Time `db:"admin_reviewed_at" json:"adminReviewedAt,omitempty"`
	AdminComment    *string    `db:"admin_comment" json:"adminComment,omitempty"`

	PublicNetworkURL *string    `db:"public_network_url" json:"publicNetworkUrl,omitempty"`
	FinalApprovedAt  *time.Time `db:"final_approved_at" json:"finalApprovedAt,omitempty"`

	RejectionReason *string    `db:"rejection_reason" json:"rejectionReason,omitempty"`
	RejectedBy      *string    `db:"rejected_by" json:"rejectedBy,omitempty"`
	RejectedAt      *time.Time `db:"rejected_at" json:"rejectedAt,omitempty"`
}

// Stage returns the derived workflow stage.
func (f *FileSubmission) Stage() FileStage {
	return StageForStatus(f.Status)
}

// FileFilter constrains listing queries.
type FileFilter struct {
	Status      []FileStatus
	Stage       FileStage
	Team        string
	SubmitterID string
	Limit       int
	Offset      int
}
