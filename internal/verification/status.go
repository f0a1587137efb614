// Package verification holds the project status enum and the rules for
// who may move a project between statuses.
//
// The implemented workflow is deliberately narrow: admins approve a
// project directly from any non-terminal status (stamping the
// verification block), and rejection happens as an authorized delete
// rather than a status change. The full enum is still recognized so
// stored projects in intermediate statuses round-trip untouched.
package verification

import "veriflow-backend/internal/pkg/apperrors"

type Status string

const (
	StatusDraft       Status = "draft"
	StatusSubmitted   Status = "submitted"
	StatusUnderReview Status = "underReview"
	StatusVerified    Status = "verified"
	StatusRejected    Status = "rejected"
	StatusApproved    Status = "approved"
)

var allStatuses = []Status{
	StatusDraft,
	StatusSubmitted,
	StatusUnderReview,
	StatusVerified,
	StatusRejected,
	StatusApproved,
}

// Parse returns the Status for s, or false if s is not a known status.
func Parse(s string) (Status, bool) {
	for _, st := range allStatuses {
		if Status(s) == st {
			return st, true
		}
	}
	return "", false
}

// Terminal reports whether no further transition is allowed from s.
// Rejected is terminal in the enum even though the implemented rejection
// path deletes the project outright.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusVerified || s == StatusRejected
}

// Actor is the caller's relationship to the project under transition.
type Actor struct {
	IsOwner bool
	IsAdmin bool
}

// Transition validates moving a project from current to target on behalf
// of actor. It returns the resulting status or a coded error; it never
// mutates anything itself.
func Transition(current Status, target string, actor Actor) (Status, error) {
	next, ok := Parse(target)
	if !ok {
		return "", apperrors.Validation("Invalid status: " + target)
	}
	if !actor.IsOwner && !actor.IsAdmin {
		return "", apperrors.Forbidden("Forbidden")
	}
	if current.Terminal() {
		return "", apperrors.Validation("Project status is final")
	}
	if next == StatusApproved && !actor.IsAdmin {
		return "", apperrors.Forbidden("Forbidden")
	}
	return next, nil
}

// CanDelete reports whether actor may delete (reject) a project.
func CanDelete(actor Actor) bool {
	return actor.IsOwner || actor.IsAdmin
}
