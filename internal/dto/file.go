package dto

import "github.com/noah-isme/file-approval-api/internal/models"

// ReviewRequest is the body of both review endpoints. The actor identity
// fields some clients still send (teamLeaderId, team and friends) are accepted
// for compatibility but ignored; the verified JWT claims are the only trusted
// identity source.
type ReviewRequest struct {
	Action   string `json:"action"`
	Comments string `json:"comments"`

	TeamLeaderID       string `json:"teamLeaderId,omitempty"`
	TeamLeaderUsername string `json:"teamLeaderUsername,omitempty"`
	AdminID            string `json:"adminId,omitempty"`
	AdminUsername      string `json:"adminUsername,omitempty"`
	Team               string `json:"team,omitempty"`
}

// WithdrawRequest is the body of the withdraw endpoint.
type WithdrawRequest struct {
	UserID string `json:"userId,omitempty"`
	Reason string `json:"reason"`
}

// FileQuery mirrors supported listing filters.
type FileQuery struct {
	Status      []models.FileStatus
	Stage       models.FileStage
	Team        string
	SubmitterID string
	Limit       int
	Offset      int
}
