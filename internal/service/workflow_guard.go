package service

import "github.com/noah-isme/file-approval-api/internal/models"

// WorkflowAction names the operations the guard understands.
type WorkflowAction string

const (
	ActionTeamLeaderReview WorkflowAction = "team_leader_review"
	ActionAdminReview      WorkflowAction = "admin_review"
	ActionWithdraw         WorkflowAction = "withdraw"
	ActionResubmit         WorkflowAction = "resubmit"
)

// Guard reason codes. Denials distinguish who-you-are failures from
// where-the-file-is failures so callers can map them onto the right error
// class.
const (
	ReasonAllowed      = "allowed"
	ReasonWrongRole    = "actor role may not perform this action"
	ReasonWrongTeam    = "actor is not the team leader of the submitter's team"
	ReasonNotSubmitter = "actor is not the submitter of this file"
	ReasonWrongStage   = "file is not in a stage that permits this action"
	ReasonUnknown      = "unknown workflow action"
)

// GuardDecision is the outcome of a transition check.
type GuardDecision struct {
	Allowed bool
	Reason  string
	// Authorization is true when the denial concerns the actor rather than
	// the file's current stage.
	Authorization bool
}

func allow() GuardDecision {
	return GuardDecision{Allowed: true, Reason: ReasonAllowed}
}

func denyActor(reason string) GuardDecision {
	return GuardDecision{Reason: reason, Authorization: true}
}

func denyState(reason string) GuardDecision {
	return GuardDecision{Reason: reason}
}

// CanTransition is the single access-control guard shared by every workflow
// operation. It is pure: given the same (actor, file, action) triple it always
// returns the same decision, with no I/O. Actor checks run before stage
// checks, so an unauthorized caller learns nothing about the file's state.
func CanTransition(actor models.Actor, file *models.FileSubmission, action WorkflowAction) GuardDecision {
	stage := file.Stage()

	switch action {
	case ActionTeamLeaderReview:
		if actor.Role != models.RoleTeamLeader {
			return denyActor(ReasonWrongRole)
		}
		if actor.Team != file.SubmitterTeam {
			return denyActor(ReasonWrongTeam)
		}
		if stage != models.StagePendingTeamLeader {
			return denyState(ReasonWrongStage)
		}
		return allow()

	case ActionAdminReview:
		if actor.Role != models.RoleAdmin {
			return denyActor(ReasonWrongRole)
		}
		if stage != models.StagePendingAdmin {
			return denyState(ReasonWrongStage)
		}
		return allow()

	case ActionWithdraw:
		if actor.ID != file.SubmitterID {
			return denyActor(ReasonNotSubmitter)
		}
		if stage != models.StagePendingTeamLeader && stage != models.StagePendingAdmin {
			return denyState(ReasonWrongStage)
		}
		return allow()

	case ActionResubmit:
		if actor.ID != file.SubmitterID {
			return denyActor(ReasonNotSubmitter)
		}
		if file.Status != models.StatusRejectedByTeamLeader && file.Status != models.StatusRejectedByAdmin {
			return denyState(ReasonWrongStage)
		}
		return allow()
	}

	return denyState(ReasonUnknown)
}
