package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageForStatus(t *testing.T) {
	tests := []struct {
		status FileStatus
		stage  FileStage
	}{
		{StatusUploaded, StagePendingTeamLeader},
		{StatusTeamLeaderApproved, StagePendingAdmin},
		{StatusFinalApproved, StagePublished},
		{StatusRejectedByTeamLeader, StageReturnedToUser},
		{StatusRejectedByAdmin, StageReturnedToUser},
		{StatusWithdrawn, StageWithdrawn},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.stage, StageForStatus(tt.status), string(tt.status))
	}
	assert.Empty(t, StageForStatus(FileStatus("draft")))
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(StatusUploaded))
	assert.True(t, ValidStatus(StatusWithdrawn))
	assert.False(t, ValidStatus(FileStatus("pending")))
	assert.False(t, ValidStatus(FileStatus("")))
}

func TestTerminalStage(t *testing.T) {
	assert.True(t, TerminalStage(StagePublished))
	assert.True(t, TerminalStage(StageWithdrawn))
	assert.False(t, TerminalStage(StagePendingTeamLeader))
	assert.False(t, TerminalStage(StagePendingAdmin))
	assert.False(t, TerminalStage(StageReturnedToUser))
}

func TestFileSubmissionStageIsDerived(t *testing.T) {
	file := &FileSubmission{Status: StatusTeamLeaderApproved}
	assert.Equal(t, StagePendingAdmin, file.Stage())

	file.Status = StatusFinalApproved
	assert.Equal(t, StagePublished, file.Stage())
}
