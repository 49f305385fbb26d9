package workflows

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a status change is not in the transition table
var ErrInvalidTransition = errors.New("invalid status transition")

// Project lifecycle statuses
const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusRejected   = "rejected"
	StatusDelayed    = "delayed"
)

// Submission states of a wizard draft
const (
	SubmissionIdle      = "idle"
	SubmissionUploading = "uploading"
	SubmissionUploaded  = "uploaded"
)

// StateMachine enforces status transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewStateMachine creates a state machine over an explicit transition table
func NewStateMachine(transitions map[string][]string) *StateMachine {
	return &StateMachine{allowedTransitions: transitions}
}

// NewProjectStateMachine returns the authoritative project lifecycle table
func NewProjectStateMachine() *StateMachine {
	return NewStateMachine(map[string][]string{
		StatusPending:    {StatusInProgress, StatusRejected},
		StatusInProgress: {StatusCompleted, StatusDelayed, StatusRejected},
		StatusDelayed:    {StatusInProgress, StatusCompleted, StatusRejected},
		StatusRejected:   {StatusPending}, // reopened after review
		StatusCompleted:  {},
	})
}

// NewSubmissionStateMachine guards a draft against concurrent submission.
// An upload that fails returns to idle so the client can try again.
func NewSubmissionStateMachine() *StateMachine {
	return NewStateMachine(map[string][]string{
		SubmissionIdle:      {SubmissionUploading},
		SubmissionUploading: {SubmissionUploaded, SubmissionIdle},
		SubmissionUploaded:  {},
	})
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// Validate wraps ErrInvalidTransition with the offending pair
func (sm *StateMachine) Validate(from, to string) error {
	if !sm.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}

// IsKnown reports whether status appears in the table
func (sm *StateMachine) IsKnown(status string) bool {
	_, ok := sm.allowedTransitions[status]
	return ok
}
