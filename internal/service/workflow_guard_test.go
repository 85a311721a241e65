package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/file-approval-api/internal/models"
)

func TestCanTransition(t *testing.T) {
	submitter := models.Actor{ID: "u1", Username: "alice", Role: models.RoleUser, Team: "platform"}
	otherUser := models.Actor{ID: "u2", Username: "mallory", Role: models.RoleUser, Team: "platform"}
	leader := models.Actor{ID: "tl1", Username: "leader", Role: models.RoleTeamLeader, Team: "platform"}
	foreignLeader := models.Actor{ID: "tl2", Username: "other", Role: models.RoleTeamLeader, Team: "data"}
	admin := models.Actor{ID: "a1", Username: "admin", Role: models.RoleAdmin}

	fileWith := func(status models.FileStatus) *models.FileSubmission {
		return &models.FileSubmission{ID: "f1", SubmitterID: "u1", SubmitterTeam: "platform", Status: status}
	}

	tests := []struct {
		name          string
		actor         models.Actor
		status        models.FileStatus
		action        WorkflowAction
		allowed       bool
		authorization bool
	}{
		{"leader approves pending file", leader, models.StatusUploaded, ActionTeamLeaderReview, true, false},
		{"plain user cannot review", submitter, models.StatusUploaded, ActionTeamLeaderReview, false, true},
		{"admin cannot take the leader stage", admin, models.StatusUploaded, ActionTeamLeaderReview, false, true},
		{"leader of another team denied", foreignLeader, models.StatusUploaded, ActionTeamLeaderReview, false, true},
		{"leader review after leader approval", leader, models.StatusTeamLeaderApproved, ActionTeamLeaderReview, false, false},
		{"leader review on withdrawn file", leader, models.StatusWithdrawn, ActionTeamLeaderReview, false, false},

		{"admin approves forwarded file", admin, models.StatusTeamLeaderApproved, ActionAdminReview, true, false},
		{"leader cannot take the admin stage", leader, models.StatusTeamLeaderApproved, ActionAdminReview, false, true},
		{"admin review before leader approval", admin, models.StatusUploaded, ActionAdminReview, false, false},
		{"admin review on published file", admin, models.StatusFinalApproved, ActionAdminReview, false, false},

		{"submitter withdraws pending file", submitter, models.StatusUploaded, ActionWithdraw, true, false},
		{"submitter withdraws forwarded file", submitter, models.StatusTeamLeaderApproved, ActionWithdraw, true, false},
		{"someone else cannot withdraw", otherUser, models.StatusUploaded, ActionWithdraw, false, true},
		{"withdraw after publication", submitter, models.StatusFinalApproved, ActionWithdraw, false, false},
		{"withdraw a rejected file", submitter, models.StatusRejectedByTeamLeader, ActionWithdraw, false, false},

		{"submitter resubmits after leader rejection", submitter, models.StatusRejectedByTeamLeader, ActionResubmit, true, false},
		{"submitter resubmits after admin rejection", submitter, models.StatusRejectedByAdmin, ActionResubmit, true, false},
		{"someone else cannot resubmit", otherUser, models.StatusRejectedByAdmin, ActionResubmit, false, true},
		{"resubmit a pending file", submitter, models.StatusUploaded, ActionResubmit, false, false},
		{"resubmit a withdrawn file", submitter, models.StatusWithdrawn, ActionResubmit, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := CanTransition(tt.actor, fileWith(tt.status), tt.action)
			assert.Equal(t, tt.allowed, decision.Allowed)
			if !tt.allowed {
				assert.Equal(t, tt.authorization, decision.Authorization)
				assert.NotEmpty(t, decision.Reason)
			}
		})
	}
}

func TestCanTransitionUnknownAction(t *testing.T) {
	actor := models.Actor{ID: "u1", Role: models.RoleAdmin}
	file := &models.FileSubmission{ID: "f1", Status: models.StatusUploaded}
	decision := CanTransition(actor, file, WorkflowAction("promote"))
	assert.False(t, decision.Allowed)
	assert.False(t, decision.Authorization)
	assert.Equal(t, ReasonUnknown, decision.Reason)
}

func TestActorChecksRunBeforeStageChecks(t *testing.T) {
	// an unauthorized caller must get the same denial regardless of the
	// file's stage, so the error leaks nothing about workflow position
	intruder := models.Actor{ID: "u9", Role: models.RoleUser, Team: "platform"}
	for _, status := range []models.FileStatus{
		models.StatusUploaded,
		models.StatusTeamLeaderApproved,
		models.StatusFinalApproved,
		models.StatusWithdrawn,
	} {
		file := &models.FileSubmission{ID: "f1", SubmitterID: "u1", SubmitterTeam: "platform", Status: status}
		decision := CanTransition(intruder, file, ActionTeamLeaderReview)
		assert.False(t, decision.Allowed)
		assert.True(t, decision.Authorization)
		assert.Equal(t, ReasonWrongRole, decision.Reason)
	}
}
