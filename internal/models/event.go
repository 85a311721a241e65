package models

// DomainEvent is an immutable fact emitted by a successful workflow operation.
// The caller hands events to the notification dispatcher after the transaction
// commits; dispatch never participates in the transition's consistency
// boundary.
type DomainEvent interface {
	EventName() string
}

// FileSubmitted is emitted when a file enters the pipeline (submit or
// resubmit).
type FileSubmitted struct {
	File  FileSubmission
	Actor Actor
}

// EventName implements DomainEvent.
func (FileSubmitted) EventName() string { return "file_submitted" }

// FileTransitioned is emitted once per successful status transition.
type FileTransitioned struct {
	File       FileSubmission
	FromStatus FileStatus
	ToStatus   FileStatus
	Actor      Actor
}

// EventName implements DomainEvent.
func (FileTransitioned) EventName() string { return "file_transitioned" }

// CommentPosted is emitted when a comment or reply lands on a file's thread.
type CommentPosted struct {
	FileID    string
	CommentID string
	Body      string
	Actor     Actor
}

// EventName implements DomainEvent.
func (CommentPosted) EventName() string { return "comment_posted" }
