// Package domain holds the error taxonomy shared by every service.
// Callers classify failures with errors.Is; no error is ever converted
// into a successful-looking response.
package domain

import "errors"

var (
	// ErrNotFound: the referenced complaint, authority or vote target is absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState: the action is forbidden by the target's current status.
	ErrInvalidState = errors.New("invalid state for this action")
	// ErrForbidden: the actor lacks rights over the target.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict: a concurrent mutation raced the caller; re-fetch and retry.
	ErrConflict = errors.New("conflicting concurrent update")
	// ErrTransient: the storage layer is temporarily unavailable.
	ErrTransient = errors.New("storage temporarily unavailable")
)
